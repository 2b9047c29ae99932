// Package tray provides a system tray interface for the curlcount rep counter.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/curlcount/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func()
	onOpen   func()
	onQuit   func()
	running  bool
	left     int
	right    int
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLeft   *systray.MenuItem
	menuRight  *systray.MenuItem
}

// New creates a new Tray instance showing a stopped session.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback function to be called when Start/Stop is clicked.
func (t *Tray) OnToggle(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback function to be called when the browser menu item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Curls")
	systray.SetTooltip("curlcount arm curl counter")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop counting")
	systray.AddSeparator()

	t.menuLeft = systray.AddMenuItem(countTitle("Left", t.left), "Left arm repetitions")
	t.menuLeft.Disable()
	t.menuRight = systray.AddMenuItem(countTitle("Right", t.right), "Right arm repetitions")
	t.menuRight.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in browser", "Open the counter UI")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit curlcount")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle handles the Start/Stop menu item click. The title follows
// the session state events, not the click.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock; it triggers HandleEvent.
	if callback != nil {
		callback()
	}
}

// handleOpen handles the browser menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// HandleEvent updates the menu from a session event. It is meant to be
// subscribed to the app.
func (t *Tray) HandleEvent(ev app.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case app.EventState:
		if ev.Snapshot == nil {
			return
		}
		t.running = ev.Snapshot.Running
		t.left = ev.Snapshot.Left.Count
		t.right = ev.Snapshot.Right.Count
	case app.EventCount:
		if ev.Limb == app.LimbRight {
			t.right = ev.Count
		} else {
			t.left = ev.Count
		}
	}

	t.refreshLocked()
}

func (t *Tray) refreshLocked() {
	if t.menuToggle == nil {
		return
	}
	t.menuToggle.SetTitle(toggleTitle(t.running))
	t.menuLeft.SetTitle(countTitle("Left", t.left))
	t.menuRight.SetTitle(countTitle("Right", t.right))
}

// Counts returns the displayed left and right counts.
func (t *Tray) Counts() (left, right int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.left, t.right
}

// IsRunning returns the displayed session state.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func toggleTitle(running bool) string {
	if running {
		return "■ Stop"
	}
	return "▶ Start"
}

func countTitle(side string, n int) string {
	return fmt.Sprintf("%s: %d", side, n)
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
