package detector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ayusman/drishti/internal/sidecar"
)

// SidecarDetector implements Detector using an external detection service.
// Each request is the frame width and height (uint32 big-endian) followed by
// the NV21 bytes; each reply is one JSON line.
type SidecarDetector struct {
	config Config
	proc   *sidecar.Process
}

// NewSidecarDetector creates a detector backed by the configured script.
// The service process is started lazily on first detection.
func NewSidecarDetector(config Config, log *slog.Logger) (*SidecarDetector, error) {
	if config.Script == "" {
		config.Script = DefaultConfig().Script
	}
	proc, err := sidecar.New(sidecar.Config{
		Script:  config.Script,
		Python:  config.Python,
		DataDir: config.DataDir,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	return &SidecarDetector{config: config, proc: proc}, nil
}

// Detect sends the frame to the service and returns the faces above the
// confidence threshold.
func (d *SidecarDetector) Detect(ctx context.Context, img Image) ([]Face, error) {
	payload := make([]byte, 8+len(img.NV21))
	binary.BigEndian.PutUint32(payload[0:4], uint32(img.Width))
	binary.BigEndian.PutUint32(payload[4:8], uint32(img.Height))
	copy(payload[8:], img.NV21)

	line, err := d.proc.Call(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}

	faces, err := decodeResponse(line, d.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	return faces, nil
}

// Close shuts down the service process.
func (d *SidecarDetector) Close() error {
	return d.proc.Close()
}

// jsonFace represents one detection in the service response.
type jsonFace struct {
	Box        [4]int  `json:"box"`
	TrackingID *int    `json:"tracking_id"`
	Score      float64 `json:"score"`
}

type jsonResponse struct {
	Faces []jsonFace `json:"faces"`
	Error string     `json:"error"`
}

func decodeResponse(line []byte, config Config) ([]Face, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("service error: %s", response.Error)
	}

	faces := make([]Face, 0, len(response.Faces))
	for _, f := range response.Faces {
		if f.Score < config.MinConfidence {
			continue
		}
		face := Face{Box: Box{Left: f.Box[0], Top: f.Box[1], Right: f.Box[2], Bottom: f.Box[3]}}
		if !face.Box.Valid() {
			continue
		}
		if config.Tracking && f.TrackingID != nil {
			face.TrackingID = *f.TrackingID
			face.Tracked = true
		}
		faces = append(faces, face)
	}
	return faces, nil
}
