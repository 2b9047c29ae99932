package server

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"gocv.io/x/gocv"
)

// StreamHandler serves MJPEG frames tapped from the counting pipeline.
// Frames are only encoded while a client is watching.
type StreamHandler struct {
	mu      sync.Mutex
	clients int
	latest  []byte
	updated chan struct{}
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{updated: make(chan struct{})}
}

// OnFrame encodes frame as the latest JPEG. It is installed as the app
// frame hook and must not retain the Mat.
func (h *StreamHandler) OnFrame(frame *gocv.Mat) {
	h.mu.Lock()
	watching := h.clients > 0
	h.mu.Unlock()
	if !watching || frame == nil || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		log.Printf("Error encoding preview frame: %v", err)
		return
	}
	jpeg := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	h.mu.Lock()
	h.latest = jpeg
	close(h.updated)
	h.updated = make(chan struct{})
	h.mu.Unlock()
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.mu.Lock()
	h.clients++
	updated := h.updated
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.clients--
		h.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updated:
		}

		h.mu.Lock()
		jpeg := h.latest
		updated = h.updated
		h.mu.Unlock()

		if err := writePart(w, jpeg); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// Watching reports how many clients are connected.
func (h *StreamHandler) Watching() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// writePart writes one MJPEG part.
func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}
