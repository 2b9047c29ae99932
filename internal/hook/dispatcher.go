package hook

import (
	"context"
	"log"

	"github.com/ayusman/curlcount/internal/app"
)

const defaultQueueSize = 64

// Dispatcher feeds session events to hooks on its own goroutine so hook
// runs never hold up frame processing.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	queue    chan app.Event
}

// NewDispatcher creates a Dispatcher over the hooks known to m.
func NewDispatcher(m *Manager, e *Executor) *Dispatcher {
	return &Dispatcher{
		manager:  m,
		executor: e,
		queue:    make(chan app.Event, defaultQueueSize),
	}
}

// Handle queues ev. It is an app.Listener and never blocks; events are
// dropped when the queue is full.
func (d *Dispatcher) Handle(ev app.Event) {
	select {
	case d.queue <- ev:
	default:
		log.Printf("Hook queue full, dropping %s event", ev.Type)
	}
}

// Run executes hooks for queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		}
	}
}

// Flush runs hooks for every event still queued and returns once the queue
// is empty. It is meant for shutdown, after Run has returned.
func (d *Dispatcher) Flush(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev app.Event) {
	for _, h := range d.manager.List() {
		if !h.Wants(string(ev.Type)) {
			continue
		}

		req := newRequest(ev)
		req.Config = h.Manifest.Config

		resp, err := d.executor.Execute(ctx, h, req)
		if err != nil {
			log.Printf("Hook error: %v", err)
			continue
		}
		if !resp.Success {
			log.Printf("Hook %s reported failure: %s", h.Manifest.Name, resp.Error)
		}
	}
}

func newRequest(ev app.Event) *Request {
	req := &Request{
		Event:     string(ev.Type),
		SessionID: ev.SessionID,
		Limb:      string(ev.Limb),
		Count:     ev.Count,
	}
	// Counts only happen while running.
	if ev.Type == app.EventCount {
		req.Running = true
	}
	if ev.Snapshot != nil {
		req.Running = ev.Snapshot.Running
		req.Left = ev.Snapshot.Left.Count
		req.Right = ev.Snapshot.Right.Count
	}
	return req
}
