package app

import (
	"errors"
	"log"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/curlcount/internal/capture"
	"github.com/ayusman/curlcount/internal/detector"
	"github.com/ayusman/curlcount/internal/geometry"
)

// runPipeline is the camera frame loop for one session.
//
// Pipeline logic:
// 1. Read a frame at the camera FPS
// 2. Hand it to the frame hook (MJPEG preview)
// 3. Run pose detection outside the session lock
// 4. Apply the result only if the session that started this loop is still running
//
// The loop owns its stop channel and generation, so a Stop followed by a new
// Start never lets this loop touch the new session.
func (a *App) runPipeline(cam capture.Camera, det detector.Detector, stopCh <-chan struct{}, gen uint64, hook func(*gocv.Mat)) {
	fps := cam.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			frame, err := cam.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrCameraNotOpen) {
					continue
				}
				log.Printf("Error reading frame: %v", err)
				continue
			}

			if hook != nil {
				hook(frame)
			}

			landmarks, err := det.Detect(frame)
			frame.Close()

			if err != nil {
				log.Printf("Error detecting pose: %v", err)
				continue
			}

			a.apply(gen, landmarks)
		}
	}
}

// apply processes a detection result for session generation gen. Results
// for a stopped or superseded session are dropped.
func (a *App) apply(gen uint64, frame *detector.LandmarkFrame) []Event {
	a.mu.Lock()
	if !a.running || gen != a.generation {
		a.mu.Unlock()
		return nil
	}
	events := a.processLocked(frame)
	a.mu.Unlock()

	for _, ev := range events {
		a.notify(ev)
	}
	return events
}

// ProcessFrame feeds one externally produced frame into the running session
// and returns the count events it caused. A nil frame means no person was
// detected and changes nothing. Frames are ignored while stopped.
func (a *App) ProcessFrame(frame *detector.LandmarkFrame) []Event {
	a.mu.Lock()
	gen := a.generation
	a.mu.Unlock()
	return a.apply(gen, frame)
}

// processLocked runs geometry and the state machines for every limb.
func (a *App) processLocked(frame *detector.LandmarkFrame) []Event {
	if frame == nil {
		return nil
	}

	var events []Event
	for _, l := range a.limbs {
		if a.active.MinVisibility > 0 && !frame.ArmVisible(l.arm, a.active.MinVisibility) {
			continue
		}

		shoulder, elbow, wrist := frame.Arm(l.arm)
		angle := geometry.Angle(a.active.AngleMode, shoulder.Vec(), elbow.Vec(), wrist.Vec())
		if math.IsNaN(angle) {
			continue
		}

		if l.counter.Update(angle) {
			log.Printf("Rep counted: %s arm = %d", l.limb, l.counter.Count())
			events = append(events, Event{
				Type:      EventCount,
				SessionID: a.sessionID,
				Time:      time.Now(),
				Limb:      l.limb,
				Count:     l.counter.Count(),
			})
		}
	}

	return events
}
