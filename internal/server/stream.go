package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/drishti/internal/capture"
)

// DefaultStreamInterval is roughly 15 FPS.
const DefaultStreamInterval = 66 * time.Millisecond

// FrameSource provides the most recent camera frame.
type FrameSource interface {
	LatestFrame() *capture.Frame
}

// StreamHandler serves the latest camera frames as MJPEG.
type StreamHandler struct {
	source   FrameSource
	interval time.Duration
	encode   func(*capture.Frame) ([]byte, error)
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source FrameSource, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StreamHandler{
		source:   source,
		interval: interval,
		encode:   (*capture.Frame).EncodeJPEG,
	}
}

// ServeHTTP streams MJPEG frames to the client until it disconnects. A
// frame is only sent once.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame := h.source.LatestFrame()
		if frame == nil || (last != 0 && frame.Timestamp == last) {
			continue
		}
		last = frame.Timestamp

		buf, err := h.encode(frame)
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
		if _, err := w.Write(buf); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
