package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RefreshFunc renews the session with the remote API. It is called at most once per refresh cycle.
type RefreshFunc func(ctx context.Context) error

// Future is the shared outcome of one refresh cycle.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the refresh has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the refresh outcome. It must only be read after Done is closed.
func (f *Future) Err() error {
	return f.err
}

func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Coordinator guarantees that at most one session refresh is in flight. Callers that need a fresh
// session while a refresh is running join it and are released in the order they arrived once it settles.
type Coordinator struct {
	refresh RefreshFunc
	timeout time.Duration

	mu       sync.Mutex
	inFlight bool
	pending  *Future
	queue    []func(error)
	onBegin  []func(*Future)
}

type CoordinatorOption func(*Coordinator) error

func WithRefreshFunc(f RefreshFunc) CoordinatorOption {
	return func(c *Coordinator) error {
		c.refresh = f
		return nil
	}
}

// WithTimeout bounds a single refresh call, zero means no bound.
func WithTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) error {
		if timeout < 0 {
			return fmt.Errorf("invalid refresh timeout %v", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

func NewCoordinator(options ...CoordinatorOption) (*Coordinator, error) {
	c := &Coordinator{timeout: 30 * time.Second}
	for _, opt := range options {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}
	if c.refresh == nil {
		return nil, fmt.Errorf("a refresh function is required to create a refresh coordinator")
	}
	return c, nil
}

// OnBegin registers a listener that is called with the future of every new refresh cycle.
// Listeners run on the goroutine that started the cycle and must not block.
func (c *Coordinator) OnBegin(listener func(*Future)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBegin = append(c.onBegin, listener)
}

// BeginRefresh returns the future of the refresh in flight, starting one if there is none.
func (c *Coordinator) BeginRefresh() *Future {
	return c.join(nil)
}

// Enqueue adds the callback to the wait queue of the refresh in flight, starting one if there is none.
// Callbacks are invoked exactly once, in registration order, with the refresh outcome.
func (c *Coordinator) Enqueue(callback func(error)) *Future {
	return c.join(callback)
}

// Refresh waits for a refresh cycle to settle, joining the one in flight if there is one.
// Cancelling ctx stops the wait but never the shared refresh.
func (c *Coordinator) Refresh(ctx context.Context) error {
	released := make(chan error, 1)
	c.join(func(err error) { released <- err })
	select {
	case err := <-released:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports whether a refresh is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Coordinator) join(callback func(error)) *Future {
	c.mu.Lock()
	if callback != nil {
		c.queue = append(c.queue, callback)
	}
	if c.inFlight {
		f := c.pending
		c.mu.Unlock()
		slog.Debug("REFRESH", "message", "joined refresh in flight")
		return f
	}
	f := newFuture()
	c.inFlight = true
	c.pending = f
	listeners := make([]func(*Future), len(c.onBegin))
	copy(listeners, c.onBegin)
	c.mu.Unlock()

	slog.Debug("REFRESH", "message", "starting session refresh")
	for _, listener := range listeners {
		listener(f)
	}
	go c.run(f)
	return f
}

func (c *Coordinator) run(f *Future) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session refresh panicked: %v", r)
		}
		c.settle(f, err)
	}()
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	err = c.refresh(ctx)
}

func (c *Coordinator) settle(f *Future, err error) {
	c.mu.Lock()
	c.inFlight = false
	c.pending = nil
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()

	if err != nil {
		slog.Info("REFRESH", "message", "session refresh failed", "error", err, "waiters", len(queue))
	} else {
		slog.Debug("REFRESH", "message", "session refresh succeeded", "waiters", len(queue))
	}
	f.err = err
	close(f.done)
	for _, callback := range queue {
		callback(err)
	}
}
