// Package hook runs external programs when a curl counting session changes:
// a rep was counted, or a session started, stopped or was reset.
package hook

import (
	"encoding/json"
	"slices"
)

// ManifestFile is the manifest name inside each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook's metadata and the events it wants.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to the hook's stdin as JSON.
type Request struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Limb      string          `json:"limb,omitempty"`
	Count     int             `json:"count,omitempty"`
	Running   bool            `json:"running"`
	Left      int             `json:"left"`
	Right     int             `json:"right"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Wants reports whether the hook subscribed to event. A manifest without
// events gets count events only.
func (h *Hook) Wants(event string) bool {
	if len(h.Manifest.Events) == 0 {
		return event == "count"
	}
	return slices.Contains(h.Manifest.Events, event)
}
