package tray

import "testing"

func TestTray_Toggle(t *testing.T) {
	tr := New(true)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("unexpected toggle callbacks %v", got)
	}
	if !tr.IsEnabled() {
		t.Error("expected tray to be enabled after two toggles")
	}
}

func TestTray_LastRecognised(t *testing.T) {
	tr := New(false)
	if tr.IsEnabled() {
		t.Error("expected initial state to be disabled")
	}

	tr.SetLastRecognised("alice")
	tr.SetFaceCount(3)
	if tr.LastRecognised() != "alice" {
		t.Errorf("expected alice, got %q", tr.LastRecognised())
	}
}

func TestTitles(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{toggleTitle(true), "● Recognition on"},
		{toggleTitle(false), "○ Recognition off"},
		{lastTitle(""), "Last seen: nobody"},
		{lastTitle("bob"), "Last seen: bob"},
		{facesTitle(0), "0 registered faces"},
		{facesTitle(1), "1 registered face"},
		{facesTitle(12), "12 registered faces"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTray_OpenUI(t *testing.T) {
	tr := New(true)
	tr.handleOpenUI()

	opened := false
	tr.OnOpenUI(func() { opened = true })
	tr.handleOpenUI()
	if !opened {
		t.Error("expected open callback to run")
	}
}
