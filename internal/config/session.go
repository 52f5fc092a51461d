package config

import (
	"fmt"
	"time"
)

type SessionConfig struct {
	// IdleTimeout logs the user out after this long without any activity, 0 disables it
	IdleTimeout time.Duration
	// KeepaliveInterval proactively refreshes the session, 0 disables it
	KeepaliveInterval time.Duration
	LoginPath         string
}

func (c *SessionConfig) Validate() error {
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout (%s) cannot be negative", c.IdleTimeout)
	}
	if c.KeepaliveInterval < 0 {
		return fmt.Errorf("keepalive interval (%s) cannot be negative", c.KeepaliveInterval)
	}
	if c.KeepaliveInterval > 0 && c.KeepaliveInterval < time.Minute {
		return fmt.Errorf("keepalive interval (%s) needs to be at least one minute", c.KeepaliveInterval)
	}
	if c.LoginPath == "" {
		return fmt.Errorf("the login path cannot be empty")
	}
	return nil
}
