// Package app runs curl counting sessions: it owns the per-limb state
// machines, feeds them from a pose source and reports count changes.
package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/curlcount/internal/capture"
	"github.com/ayusman/curlcount/internal/counter"
	"github.com/ayusman/curlcount/internal/detector"
	"github.com/ayusman/curlcount/internal/store"
)

// Source selects where landmark frames come from.
type Source string

const (
	// SourceCamera reads the local camera and runs the pose detector.
	SourceCamera Source = "camera"
	// SourceRemote takes frames pushed through ProcessFrame.
	SourceRemote Source = "remote"
)

// Config holds configuration options for the application.
type Config struct {
	Source Source

	// Camera overrides the device camera built from CaptureOptions.
	Camera         capture.Camera
	CaptureOptions capture.Options

	// Detector overrides the detector built by NewDetector.
	Detector    detector.Detector
	NewDetector func() (detector.Detector, error)

	Settings Settings

	// Store, when set, persists settings and overrides Settings at startup.
	Store *store.Store
}

// limbTracker binds a limb to its joints and state machine.
type limbTracker struct {
	limb    Limb
	arm     detector.Arm
	counter *counter.Counter
}

// App is a counting session controller. All state transitions happen under
// mu, so a frame is applied completely or not at all.
type App struct {
	config Config

	mu         sync.Mutex
	camera     capture.Camera
	detector   detector.Detector
	settings   Settings // pending, applied at Start
	active     Settings // in effect for the current session
	limbs      [2]*limbTracker
	running    bool
	sessionID  string
	generation uint64
	stopCh     chan struct{}
	frameHook  func(*gocv.Mat)

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.Source == "" {
		config.Source = SourceCamera
	}
	if config.Settings == (Settings{}) {
		config.Settings = DefaultSettings()
	}
	if config.NewDetector == nil {
		config.NewDetector = func() (detector.Detector, error) {
			d, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
			if err != nil {
				return nil, err
			}
			return d, nil
		}
	}

	settings := config.Settings
	if config.Store != nil {
		loaded, err := loadSettings(config.Store.Settings(), settings)
		if err != nil {
			log.Printf("Failed to load stored settings: %v", err)
		}
		settings = loaded
	}

	a := &App{
		config:    config,
		camera:    config.Camera,
		detector:  config.Detector,
		settings:  settings,
		active:    settings,
		listeners: make(map[int]Listener),
	}
	a.limbs[0] = &limbTracker{limb: LimbLeft, arm: detector.LeftArm, counter: counter.New(settings.Thresholds)}
	a.limbs[1] = &limbTracker{limb: LimbRight, arm: detector.RightArm, counter: counter.New(settings.Thresholds)}

	return a
}

// Start begins a new counting session. It acquires the camera and detector
// (reusing them if already initialized), resets both limbs and starts the
// frame loop. Starting a running session is a no-op.
func (a *App) Start() error {
	a.mu.Lock()

	if a.running {
		a.mu.Unlock()
		return nil
	}

	if a.config.Source == SourceCamera {
		if err := a.acquireLocked(); err != nil {
			a.mu.Unlock()
			return err
		}
	}

	a.generation++
	a.sessionID = uuid.NewString()
	a.active = a.settings
	for _, l := range a.limbs {
		if err := l.counter.SetThresholds(a.active.Thresholds); err != nil {
			log.Printf("Keeping thresholds for %s arm: %v", l.limb, err)
		}
		l.counter.Reset()
	}
	a.running = true

	if a.config.Source == SourceCamera {
		a.stopCh = make(chan struct{})
		go a.runPipeline(a.camera, a.detector, a.stopCh, a.generation, a.frameHook)
	}

	ev := a.stateEventLocked()
	a.mu.Unlock()

	log.Printf("Counting session %s started (%s source)", ev.SessionID, a.config.Source)
	a.notify(ev)
	return nil
}

// acquireLocked initializes the detector once and opens the camera.
func (a *App) acquireLocked() error {
	if a.detector == nil {
		d, err := a.config.NewDetector()
		if err != nil {
			return fmt.Errorf("init detector: %w", err)
		}
		a.detector = d
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(a.config.CaptureOptions)
	}
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	return nil
}

// Stop halts frame delivery. Counts stay visible and are not reset; a
// detection still in flight is discarded when it completes.
func (a *App) Stop() {
	a.mu.Lock()

	if !a.running {
		a.mu.Unlock()
		return
	}

	a.running = false
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
	if a.camera != nil && a.config.Source == SourceCamera {
		if err := a.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
	}

	ev := a.stateEventLocked()
	a.mu.Unlock()

	log.Printf("Counting session %s stopped (left=%d right=%d)",
		ev.SessionID, ev.Snapshot.Left.Count, ev.Snapshot.Right.Count)
	a.notify(ev)
}

// Toggle stops a running session or starts a stopped one.
func (a *App) Toggle() error {
	if a.Running() {
		a.Stop()
		return nil
	}
	return a.Start()
}

// Reset zeroes both limbs without ending the session. A stopped session
// keeps its final counts, so Reset does nothing until the next Start.
func (a *App) Reset() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	for _, l := range a.limbs {
		l.counter.Reset()
	}
	ev := a.stateEventLocked()
	a.mu.Unlock()

	a.notify(ev)
}

// Close stops the session and releases the detector.
func (a *App) Close() error {
	a.Stop()

	a.mu.Lock()
	d := a.detector
	a.detector = nil
	a.mu.Unlock()

	if d != nil {
		return d.Close()
	}
	return nil
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Snapshot returns the current session state.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Source returns the configured frame source.
func (a *App) Source() Source {
	return a.config.Source
}

// Settings returns the settings that will apply to the next session.
func (a *App) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// SetSettings validates s, persists it if a store is configured and applies
// it from the next Start.
func (a *App) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetMany(s.values()); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	return nil
}

// SetFrameHook registers fn to see every captured frame before detection.
// fn must not retain the Mat. It applies from the next Start.
func (a *App) SetFrameHook(fn func(*gocv.Mat)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frameHook = fn
}

// Subscribe registers l for session events and returns a function that
// removes it.
func (a *App) Subscribe(l Listener) func() {
	a.listenerMu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = l
	a.listenerMu.Unlock()

	return func() {
		a.listenerMu.Lock()
		delete(a.listeners, id)
		a.listenerMu.Unlock()
	}
}

// notify delivers ev outside of mu.
func (a *App) notify(ev Event) {
	a.listenerMu.RLock()
	listeners := make([]Listener, 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.listenerMu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

func (a *App) snapshotLocked() Snapshot {
	return Snapshot{
		Running:   a.running,
		SessionID: a.sessionID,
		Source:    a.config.Source,
		Left:      a.limbs[0].counter.State(),
		Right:     a.limbs[1].counter.State(),
	}
}

func (a *App) stateEventLocked() Event {
	snap := a.snapshotLocked()
	return Event{
		Type:      EventState,
		SessionID: a.sessionID,
		Time:      time.Now(),
		Snapshot:  &snap,
	}
}
