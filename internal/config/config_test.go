package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	home := t.TempDir()

	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "uses defaults",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 66*time.Millisecond, c.TickInterval)
				assert.Equal(t, 1, c.ProcessEvery)
				assert.Equal(t, 40, c.MinFaceSize)
				assert.Equal(t, 1.0, c.Threshold)
				assert.Equal(t, 192, c.EmbeddingDim)
				assert.Equal(t, 112, c.PatchSize)
				assert.Equal(t, 64, c.CacheCapacity)
				assert.Equal(t, 30, c.CacheResetAfter)
				assert.Equal(t, 2, c.MaxInFlight)
				assert.Equal(t, ":8080", c.ListenAddr)
				assert.Equal(t, 10*time.Second, c.HookCooldown)
				assert.Equal(t, filepath.Join(home, ".drishti"), c.DataDir)
				assert.Equal(t, filepath.Join(home, ".drishti", "hooks"), c.HookDir)
				assert.Equal(t, filepath.Join(home, ".drishti", "faces.json"), c.GalleryPath())
				assert.Equal(t, filepath.Join(home, ".drishti", "drishti.db"), c.DBPath())
			},
		},
		{
			name: "reads prefixed variables",
			envVars: map[string]string{
				"DRISHTI_TICK_INTERVAL": "100ms",
				"DRISHTI_PROCESS_EVERY": "3",
				"DRISHTI_THRESHOLD":     "0.8",
				"DRISHTI_DATA_DIR":      "/var/lib/drishti",
				"DRISHTI_GALLERY_FILE":  "/srv/gallery.json",
				"DRISHTI_HOOK_DIR":      "/etc/drishti/hooks",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 100*time.Millisecond, c.TickInterval)
				assert.Equal(t, 3, c.ProcessEvery)
				assert.Equal(t, 0.8, c.Threshold)
				assert.Equal(t, "/srv/gallery.json", c.GalleryPath())
				assert.Equal(t, "/var/lib/drishti/drishti.db", c.DBPath())
				assert.Equal(t, "/etc/drishti/hooks", c.HookDir)
			},
		},
		{
			name:    "expands home in data dir",
			envVars: map[string]string{"DRISHTI_DATA_DIR": "~/faces"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, filepath.Join(home, "faces"), c.DataDir)
			},
		},
		{
			name:    "rejects malformed duration",
			envVars: map[string]string{"DRISHTI_TICK_INTERVAL": "soon"},
			wantErr: true,
		},
		{
			name:    "rejects zero threshold",
			envVars: map[string]string{"DRISHTI_THRESHOLD": "0"},
			wantErr: true,
		},
		{
			name:    "rejects zero decimation",
			envVars: map[string]string{"DRISHTI_PROCESS_EVERY": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", home)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown", "name", "alice")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "expected JSON output, got %q", out)
	assert.Contains(t, out, `"name":"alice"`)

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}
