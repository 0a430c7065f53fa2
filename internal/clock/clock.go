// Package clock implements the per-draft pick deadline.
//
// A Clock holds at most one pending deadline. Arm hands back a Token; the
// expiry callback receives that token exactly once unless Cancel wins first.
// Cancelling an expired or superseded token is a no-op, so callers never have
// to know whether they lost the race to the timer.
package clock

import (
	"errors"
	"sync"
	"time"
)

var ErrAlreadyArmed = errors.New("clock already armed")
var ErrStopped = errors.New("clock stopped")

// Token identifies one armed deadline.
type Token struct {
	Pick int
	seq  uint64
}

type pending struct {
	token Token
	timer *time.Timer
}

type Clock struct {
	mu       sync.Mutex
	onExpire func(Token)
	seq      uint64
	pending  *pending
	stopped  bool
}

func New(onExpire func(Token)) *Clock {
	return &Clock{onExpire: onExpire}
}

func (c *Clock) Arm(pick int, d time.Duration) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return Token{}, ErrStopped
	}
	if c.pending != nil {
		return Token{}, ErrAlreadyArmed
	}

	c.seq++
	tok := Token{Pick: pick, seq: c.seq}
	c.pending = &pending{token: tok}
	c.pending.timer = time.AfterFunc(max(d, 0), func() { c.fire(tok) })
	return tok, nil
}

// Cancel disarms tok and reports whether it was still pending.
func (c *Clock) Cancel(tok Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.token != tok {
		return false
	}
	c.pending.timer.Stop()
	c.pending = nil
	return true
}

func (c *Clock) Pending() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Token{}, false
	}
	return c.pending.token, true
}

// Stop cancels any pending deadline and refuses further arms.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.timer.Stop()
		c.pending = nil
	}
	c.stopped = true
}

func (c *Clock) fire(tok Token) {
	c.mu.Lock()
	if c.pending == nil || c.pending.token != tok {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire(tok)
	}
}
