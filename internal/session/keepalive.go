package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const DefaultKeepaliveInterval time.Duration = 14 * time.Minute

// Refresher renews the session. The refresh coordinator satisfies it, so keepalive runs share the
// in-flight refresh with requests that hit an expired session.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Keepalive refreshes the session periodically, just before the session cookie would expire.
type Keepalive struct {
	interval  time.Duration
	refresher Refresher
	active    func() bool
	scheduler *gocron.Scheduler
}

type KeepaliveOption func(*Keepalive) error

func WithInterval(interval time.Duration) KeepaliveOption {
	return func(k *Keepalive) error {
		if interval <= 0 {
			return fmt.Errorf("invalid keepalive interval (%v)", interval)
		}
		k.interval = interval
		return nil
	}
}

func WithRefresher(refresher Refresher) KeepaliveOption {
	return func(k *Keepalive) error {
		k.refresher = refresher
		return nil
	}
}

// WithActiveCheck skips runs while there is no session to keep alive.
func WithActiveCheck(active func() bool) KeepaliveOption {
	return func(k *Keepalive) error {
		k.active = active
		return nil
	}
}

func NewKeepalive(options ...KeepaliveOption) (*Keepalive, error) {
	k := &Keepalive{interval: DefaultKeepaliveInterval, active: func() bool { return true }}
	for _, opt := range options {
		err := opt(k)
		if err != nil {
			return nil, err
		}
	}
	if k.refresher == nil {
		return nil, fmt.Errorf("a refresher is required to create a keepalive")
	}
	return k, nil
}

// GetScheduler returns a scheduler with the keepalive job registered, it is not started.
func (k *Keepalive) GetScheduler() (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	keepaliveTask := func(job gocron.Job) {
		err := k.Run(job.Context())
		if err != nil {
			slog.Error("KEEPALIVE", "message", "session refresh failed", "error", err)
		}
	}

	_, err := s.Every(k.interval).
		WaitForSchedule().
		DoWithJobDetails(keepaliveTask)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run refreshes the session once, unless there is no session.
func (k *Keepalive) Run(ctx context.Context) error {
	if !k.active() {
		slog.Debug("KEEPALIVE", "message", "no active session, skipping refresh")
		return nil
	}
	slog.Debug("KEEPALIVE", "message", "refreshing session")
	return k.refresher.Refresh(ctx)
}

func (k *Keepalive) Start() error {
	if k.scheduler != nil {
		return fmt.Errorf("the keepalive is already running")
	}
	s, err := k.GetScheduler()
	if err != nil {
		return err
	}
	k.scheduler = s
	s.StartAsync()
	slog.Info("KEEPALIVE", "message", "keepalive started", "interval", k.interval)
	return nil
}

func (k *Keepalive) Stop() {
	if k.scheduler == nil {
		return
	}
	k.scheduler.Stop()
	k.scheduler = nil
}
