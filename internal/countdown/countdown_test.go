package countdown_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/countdown"
)

func ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	status := countdown.Evaluate(ago(now, 23*time.Hour), countdown.DailyCooldown, now)
	assert.False(t, status.Claimable)
	assert.Equal(t, "01:00:00", status.Text)
	assert.Equal(t, time.Hour, status.Remaining)

	status = countdown.Evaluate(ago(now, 25*time.Hour), countdown.DailyCooldown, now)
	assert.True(t, status.Claimable)
	assert.Empty(t, status.Text)

	status = countdown.Evaluate(nil, countdown.DailyCooldown, now)
	assert.True(t, status.Claimable)
	assert.Empty(t, status.Text)

	status = countdown.Evaluate(ago(now, 24*time.Hour), countdown.DailyCooldown, now)
	assert.True(t, status.Claimable, "exactly at the boundary is claimable")

	status = countdown.Evaluate(ago(now, 10*time.Minute), countdown.QuickCooldown, now)
	assert.False(t, status.Claimable)
	assert.Equal(t, "05:00", status.Text)
}

func TestFormat(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                     "00:00",
		-5 * time.Second:                      "00:00",
		59*time.Second + 900*time.Millisecond: "00:59",
		14*time.Minute + 3*time.Second:        "14:03",
		time.Hour:                             "01:00:00",
		23*time.Hour + 59*time.Minute + 59*time.Second: "23:59:59",
	}
	for d, want := range cases {
		assert.Equal(t, want, countdown.Format(d), d.String())
	}
}

func next(t *testing.T, ch <-chan countdown.Status) countdown.Status {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for countdown update")
		return countdown.Status{}
	}
}

func assertQuiet(t *testing.T, ch <-chan countdown.Status) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected countdown update: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerTicksAndSelfTerminates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	updates := make(chan countdown.Status, 16)
	timer := countdown.NewTimer(clock, countdown.DailyCooldown, func(s countdown.Status) {
		updates <- s
	})

	status := timer.Start(ago(clock.Now(), countdown.DailyCooldown-2*time.Second))
	require.False(t, status.Claimable)
	assert.Equal(t, "00:02", status.Text)
	assert.Equal(t, "00:02", next(t, updates).Text)
	assert.True(t, timer.Running())

	clock.Advance(time.Second)
	assert.Equal(t, "00:01", next(t, updates).Text)

	clock.Advance(time.Second)
	final := next(t, updates)
	assert.True(t, final.Claimable)
	assert.Empty(t, final.Text)
	assert.Zero(t, final.Remaining)

	assert.False(t, timer.Running())
	assert.True(t, timer.Status().Claimable)

	clock.Advance(5 * time.Second)
	assertQuiet(t, updates)
}

func TestTimerClaimableDoesNotTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	updates := make(chan countdown.Status, 4)
	timer := countdown.NewTimer(clock, countdown.QuickCooldown, func(s countdown.Status) {
		updates <- s
	})

	status := timer.Start(nil)
	assert.True(t, status.Claimable)
	assert.True(t, next(t, updates).Claimable)
	assert.False(t, timer.Running())

	clock.Advance(time.Minute)
	assertQuiet(t, updates)
}

func TestTimerRestartReplacesPreviousTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	updates := make(chan countdown.Status, 16)
	timer := countdown.NewTimer(clock, countdown.QuickCooldown, func(s countdown.Status) {
		updates <- s
	})

	timer.Start(ago(clock.Now(), time.Minute))
	assert.Equal(t, "14:00", next(t, updates).Text)

	// A fresh claim re-seeds from zero elapsed.
	timer.Start(ago(clock.Now(), 0))
	assert.Equal(t, "15:00", next(t, updates).Text)

	clock.Advance(time.Second)
	assert.Equal(t, "14:59", next(t, updates).Text)
	assertQuiet(t, updates)

	timer.Stop()
	assert.False(t, timer.Running())
	clock.Advance(time.Second)
	assertQuiet(t, updates)
}

func TestTimerLastClaimIsCopied(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := countdown.NewTimer(clock, countdown.QuickCooldown, nil)

	claim := clock.Now().Add(-time.Minute)
	timer.Start(&claim)
	claim = claim.Add(-time.Hour)

	got := timer.LastClaim()
	require.NotNil(t, got)
	assert.Equal(t, clock.Now().Add(-time.Minute), *got)
	timer.Stop()
}
