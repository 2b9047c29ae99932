// Package main provides a curlcount hook that speaks each counted rep.
// It uses say on macOS and spd-say elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the hook executor.
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

// Response represents the output to the hook executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// announceConfig is read from the manifest's config object.
type announceConfig struct {
	Voice string `json:"voice"`
	// SayLimb prefixes the count with the arm name.
	SayLimb bool `json:"say_limb"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg announceConfig
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	text := phrase(req, cfg)
	if text == "" {
		writeSuccessResponse()
		return
	}

	if err := speak(text, cfg.Voice); err != nil {
		writeErrorResponse(fmt.Sprintf("speak %q failed: %v", text, err))
		return
	}

	writeSuccessResponse()
}

// phrase returns what to say for req, or "" for nothing.
func phrase(req Request, cfg announceConfig) string {
	switch req.Event {
	case "count":
		if cfg.SayLimb {
			return fmt.Sprintf("%s %d", req.Limb, req.Count)
		}
		return fmt.Sprintf("%d", req.Count)
	case "state":
		if req.Running {
			return "Go"
		}
		return fmt.Sprintf("Done. Left %d, right %d", req.Left, req.Right)
	}
	return ""
}

func speak(text, voice string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		args := []string{}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		cmd = exec.Command("say", append(args, text)...)
	} else {
		args := []string{"-w"}
		if voice != "" {
			args = append(args, "-t", voice)
		}
		cmd = exec.Command("spd-say", append(args, text)...)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
