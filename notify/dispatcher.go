package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type route struct {
	name    string
	pred    Predicate
	handler Handler
}

// pending is a queued notification and the handlers that still owe it a
// delivery. A nil routes slice means routing has not happened yet.
type pending struct {
	n        Notification
	routes   []route
	attempts int
}

// Dispatcher routes posted notifications to every handler whose predicate
// matches, or to the fallback handlers when none does. Handlers are isolated
// from each other: a panic or error in one does not affect the rest. Failed
// deliveries are re-queued up to MaxRetries times, critical ones at the front.
type Dispatcher struct {
	mu       sync.Mutex
	routes   []route
	fallback []route
	queue    []pending
	wake     chan struct{}

	MaxRetries int
}

func NewDispatcher(maxRetries int) *Dispatcher {
	return &Dispatcher{
		wake:       make(chan struct{}, 1),
		MaxRetries: maxRetries,
	}
}

// Register adds a handler for notifications matching pred.
func (d *Dispatcher) Register(name string, pred Predicate, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, route{name: name, pred: pred, handler: h})
}

// Unregister removes every handler registered under name. Deliveries already
// routed to it still go through their retries.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	keep := func(rs []route) []route {
		out := rs[:0:0]
		for _, r := range rs {
			if r.name != name {
				out = append(out, r)
			}
		}
		return out
	}
	d.routes = keep(d.routes)
	d.fallback = keep(d.fallback)
}

// RegisterFallback adds a handler for notifications no predicate matched.
func (d *Dispatcher) RegisterFallback(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = append(d.fallback, route{name: name, handler: h})
}

// Post queues n for delivery and returns immediately.
func (d *Dispatcher) Post(n Notification) {
	d.mu.Lock()
	d.enqueue(pending{n: n})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// enqueue must be called with mu held.
func (d *Dispatcher) enqueue(p pending) {
	if p.n.Priority == PriorityCritical {
		d.queue = append([]pending{p}, d.queue...)
		return
	}
	d.queue = append(d.queue, p)
}

// Len is the number of notifications waiting for delivery.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run delivers notifications as they are posted until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
			d.Flush(ctx)
		}
	}
}

// Flush attempts one delivery of everything queued right now. Retries land
// back in the queue for the next flush. It returns the number of
// notifications fully delivered.
func (d *Dispatcher) Flush(ctx context.Context) int {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	delivered := 0
	for _, p := range batch {
		if p.routes == nil {
			p.routes = d.match(p.n)
		}

		var failed []route
		for _, r := range p.routes {
			if err := safeHandle(ctx, r, p.n); err != nil {
				slog.Warn("notification handler failed", "handler", r.name, "title", p.n.Title, "attempt", p.attempts+1, "error", err)
				failed = append(failed, r)
			}
		}
		if len(failed) == 0 {
			delivered++
			continue
		}

		p.routes = failed
		p.attempts++
		if p.attempts > d.MaxRetries {
			slog.Error("dropping notification", "title", p.n.Title, "fleet", p.n.FleetID, "attempts", p.attempts)
			continue
		}
		d.mu.Lock()
		d.enqueue(p)
		d.mu.Unlock()
	}

	if d.Len() > 0 {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
	return delivered
}

func (d *Dispatcher) match(n Notification) []route {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []route
	for _, r := range d.routes {
		if r.pred == nil || r.pred(n) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = append(out, d.fallback...)
	}
	// Non-nil so a notification nobody wants is not re-routed on retry.
	if out == nil {
		out = []route{}
	}
	return out
}

func safeHandle(ctx context.Context, r route, n Notification) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler %s panicked: %v", r.name, rec)
		}
	}()
	return r.handler(ctx, n)
}
