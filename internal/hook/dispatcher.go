package hook

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between recognition events for the
// same person.
const DefaultCooldown = 10 * time.Second

// Cooldown rate-limits events per person.
type Cooldown struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewCooldown creates a Cooldown. A zero window selects DefaultCooldown; a
// negative one allows every event.
func NewCooldown(window time.Duration) *Cooldown {
	if window == 0 {
		window = DefaultCooldown
	}
	return &Cooldown{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// Allow reports whether an event for name may be acted on now and, if so,
// starts a new window for it.
func (c *Cooldown) Allow(name string) bool {
	if c.window < 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[name]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[name] = now
	return true
}

// Forget clears the window for name.
func (c *Cooldown) Forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, name)
}

// Dispatcher fires hooks in the background.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	log      *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(manager *Manager, executor *Executor, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		log:      log,
	}
}

// Fire starts every hook subscribed to req and returns how many were
// started.
func (d *Dispatcher) Fire(ctx context.Context, req Request) int {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	hooks := d.manager.Matching(req.Event, req.Name)
	for _, h := range hooks {
		d.wg.Add(1)
		go func(h *Hook, req Request) {
			defer d.wg.Done()

			resp, err := d.executor.Execute(ctx, h, &req)
			switch {
			case err != nil:
				d.log.Warn("hook failed", "hook", h.Manifest.Name, "event", req.Event, "name", req.Name, "err", err)
			case !resp.Success:
				d.log.Warn("hook reported failure", "hook", h.Manifest.Name, "event", req.Event, "error", resp.Error)
			default:
				d.log.Debug("hook ran", "hook", h.Manifest.Name, "event", req.Event, "name", req.Name)
			}
		}(h, req)
	}
	return len(hooks)
}

// Wait blocks until every started hook has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
