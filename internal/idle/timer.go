package idle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultTimeout time.Duration = 15 * time.Minute

// LogoutFunc ends the session once the user has been idle for the whole window.
type LogoutFunc func(ctx context.Context) error

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// Timer is a debounce timer: every activity signal pushes the logout deadline back by the full window.
type Timer struct {
	timeout       time.Duration
	logout        LogoutFunc
	logoutTimeout time.Duration
	afterFunc     afterFunc

	mu         sync.Mutex
	running    bool
	generation uint64
	timer      stopper
	firing     sync.WaitGroup
}

type TimerOption func(*Timer) error

func WithTimeout(timeout time.Duration) TimerOption {
	return func(t *Timer) error {
		if timeout <= 0 {
			return fmt.Errorf("the idle timeout must be positive, got %v", timeout)
		}
		t.timeout = timeout
		return nil
	}
}

func WithLogout(logout LogoutFunc) TimerOption {
	return func(t *Timer) error {
		t.logout = logout
		return nil
	}
}

func withAfterFunc(f afterFunc) TimerOption {
	return func(t *Timer) error {
		t.afterFunc = f
		return nil
	}
}

func NewTimer(options ...TimerOption) (*Timer, error) {
	t := &Timer{timeout: DefaultTimeout, logoutTimeout: 30 * time.Second, afterFunc: realAfterFunc}
	for _, opt := range options {
		err := opt(t)
		if err != nil {
			return nil, err
		}
	}
	if t.logout == nil {
		return nil, fmt.Errorf("a logout function is required to create an idle timer")
	}
	return t, nil
}

// Start arms the timer. Calling Start on a running timer re-arms it.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.arm()
	slog.Debug("IDLE", "message", "idle timer started", "timeout", t.timeout)
}

// Reset records user activity. It is ignored when the timer is not running.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.arm()
}

// Stop disarms the timer and waits for a logout that is already under way.
// No logout is started after Stop returns.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.running = false
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	t.firing.Wait()
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// arm must be called with the lock held.
func (t *Timer) arm() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	generation := t.generation
	t.timer = t.afterFunc(t.timeout, func() { t.fire(generation) })
}

func (t *Timer) fire(generation uint64) {
	t.mu.Lock()
	// a timer that was re-armed or stopped may still fire once
	if !t.running || generation != t.generation {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.timer = nil
	t.firing.Add(1)
	t.mu.Unlock()
	defer t.firing.Done()

	slog.Info("IDLE", "message", "no activity within the idle window, logging out", "timeout", t.timeout)
	ctx, cancel := context.WithTimeout(context.Background(), t.logoutTimeout)
	defer cancel()
	err := t.logout(ctx)
	if err != nil {
		slog.Error("IDLE", "message", "idle logout failed", "error", err)
	}
}
