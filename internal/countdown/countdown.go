// Package countdown turns a last-claim timestamp and a fixed cooldown into a
// live "time remaining" display, re-evaluated once per second on a
// clockwork clock without ever asking the backend.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DailyCooldown = 24 * time.Hour
	QuickCooldown = 15 * time.Minute

	tickInterval = time.Second
)

type Status struct {
	Claimable bool          `json:"claimable"`
	Remaining time.Duration `json:"remaining"`
	Text      string        `json:"text"`
}

// Evaluate is the pure core: a nil lastClaim or an elapsed cooldown is
// claimable with empty text.
func Evaluate(lastClaim *time.Time, cooldown time.Duration, now time.Time) Status {
	if lastClaim == nil {
		return Status{Claimable: true}
	}
	elapsed := now.Sub(*lastClaim)
	if elapsed >= cooldown {
		return Status{Claimable: true}
	}
	remaining := cooldown - elapsed
	return Status{Remaining: remaining, Text: Format(remaining)}
}

// Format renders MM:SS, or HH:MM:SS once the duration reaches an hour.
// Sub-second remainders are truncated.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// Timer owns at most one repeating ticker. OnChange runs on the ticker
// goroutine while the timer lock is held, so it must not call back into
// the Timer.
type Timer struct {
	clock    clockwork.Clock
	cooldown time.Duration
	onChange func(Status)

	mu        sync.Mutex
	status    Status
	lastClaim *time.Time
	stop      chan struct{}
}

func NewTimer(clock clockwork.Clock, cooldown time.Duration, onChange func(Status)) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{
		clock:    clock,
		cooldown: cooldown,
		onChange: onChange,
		status:   Status{Claimable: true},
	}
}

func (t *Timer) Cooldown() time.Duration {
	return t.cooldown
}

// Start cancels any running ticker and re-seeds the countdown from lastClaim.
func (t *Timer) Start(lastClaim *time.Time) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if lastClaim != nil {
		c := *lastClaim
		lastClaim = &c
	}
	t.lastClaim = lastClaim

	status := Evaluate(lastClaim, t.cooldown, t.clock.Now())
	t.setLocked(status)
	if status.Claimable {
		return status
	}

	stop := make(chan struct{})
	t.stop = stop
	ticker := t.clock.NewTicker(tickInterval)
	go t.run(ticker, stop)

	return status
}

func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
}

func (t *Timer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Timer) LastClaim() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastClaim == nil {
		return nil
	}
	c := *t.lastClaim
	return &c
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Timer) run(ticker clockwork.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if done := t.tick(stop); done {
				return
			}
		}
	}
}

func (t *Timer) tick(stop chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Superseded by a newer Start or a Stop.
	if t.stop != stop {
		return true
	}

	status := Evaluate(t.lastClaim, t.cooldown, t.clock.Now())
	if status.Claimable {
		t.stop = nil
		t.setLocked(status)
		return true
	}
	t.setLocked(status)
	return false
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) setLocked(status Status) {
	t.status = status
	if t.onChange != nil {
		t.onChange(status)
	}
}
