package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/ayusman/curlcount/internal/app"
)

// Session is the counting session controlled over HTTP.
type Session interface {
	Start() error
	Stop()
	Toggle() error
	Reset()
	Snapshot() app.Snapshot
}

// SessionHandler handles HTTP requests for the counting session.
type SessionHandler struct {
	session Session
}

// NewSessionHandler creates a new SessionHandler for s.
func NewSessionHandler(s Session) *SessionHandler {
	return &SessionHandler{session: s}
}

// ServeHTTP routes /api/session and /api/session/{start|stop|toggle|reset}.
// Every successful request answers with the current snapshot.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/session")
	action := strings.Trim(path, "/")

	if action == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, h.session.Snapshot())
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var err error
	switch action {
	case "start":
		err = h.session.Start()
	case "stop":
		h.session.Stop()
	case "toggle":
		err = h.session.Toggle()
	case "reset":
		h.session.Reset()
	default:
		writeError(w, http.StatusNotFound, "Unknown session action")
		return
	}

	if err != nil {
		log.Printf("Session %s failed: %v", action, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.session.Snapshot())
}
