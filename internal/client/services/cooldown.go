package services

import (
	"context"
	"sync"
	"time"
)

const (
	FirstStrikeCooldown  = 30
	SecondStrikeCooldown = 60
)

// Cooldown is the send-gate countdown, in whole seconds. It never goes
// below zero.
type Cooldown struct {
	mu        sync.Mutex
	remaining int
}

func NewCooldown() *Cooldown { return &Cooldown{} }

// Start sets the countdown to n, replacing the current value.
func (c *Cooldown) Start(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = max(n, 0)
}

// Extend sets the countdown to n only if that lengthens it.
func (c *Cooldown) Extend(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = max(c.remaining, n)
}

// Tick takes one second off and returns what is left.
func (c *Cooldown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

func (c *Cooldown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Cooldown) Active() bool { return c.Remaining() > 0 }

// Run ticks once per interval until ctx is done.
func (c *Cooldown) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}
