package reels_test

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/audio"
	"casino-miniapp/internal/reels"
)

type eventLog struct {
	mu     sync.Mutex
	events []reels.Event
}

func (l *eventLog) add(ev reels.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) all() []reels.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]reels.Event(nil), l.events...)
}

func newSequencer(t *testing.T) (*reels.Sequencer, *clockwork.FakeClock, *audio.Recorder, *eventLog) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	rec := &audio.Recorder{}
	log := &eventLog{}
	seq, err := reels.New(clock, reels.DefaultConfig(), rec,
		reels.WithRand(rand.New(rand.NewPCG(1, 2))),
		reels.WithEventObserver(log.add),
	)
	require.NoError(t, err)
	return seq, clock, rec, log
}

// drive advances the fake clock frame by frame until anim completes.
func drive(t *testing.T, clock *clockwork.FakeClock, anim *reels.Animation) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-anim.Done():
			return
		case <-deadline:
			t.Fatal("reel animation did not complete")
		default:
			clock.Advance(16 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSequencerCompletesAfterAllReelsStop(t *testing.T) {
	seq, clock, rec, log := newSequencer(t)

	anim, err := seq.Play(finals)
	require.NoError(t, err)
	assert.True(t, seq.Busy())

	drive(t, clock, anim)

	assert.False(t, anim.Superseded())
	assert.False(t, seq.Busy())
	assert.Equal(t, 3, rec.Count(audio.CueReelStop))
	assert.Equal(t, 1, rec.Count(audio.CueSpinStart))
	assert.Equal(t, audio.CueSpinStart, rec.Cues()[0])

	stops := ofType(log.all(), reels.EventReelStopped)
	require.Len(t, stops, 3)
	for i, ev := range stops {
		assert.Equal(t, i, ev.Reel)
		if i > 0 {
			assert.Greater(t, ev.At, stops[i-1].At)
		}
	}
	all := log.all()
	assert.Equal(t, reels.EventComplete, all[len(all)-1].Type)

	for i, view := range seq.Reels() {
		assert.Equal(t, []string{finals[i]}, view.Strip)
		assert.Equal(t, finals[i], view.Visible())
		assert.Zero(t, view.Offset)
	}
}

func TestSequencerOverwritesAnimationInFlight(t *testing.T) {
	seq, clock, rec, _ := newSequencer(t)

	first, err := seq.Play([]string{"🍋", "🍋", "🍋"})
	require.NoError(t, err)
	second, err := seq.Play(finals)
	require.NoError(t, err)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded animation was not released")
	}
	assert.True(t, first.Superseded())

	drive(t, clock, second)
	assert.False(t, second.Superseded())
	assert.Equal(t, 3, rec.Count(audio.CueReelStop))
	for i, view := range seq.Reels() {
		assert.Equal(t, []string{finals[i]}, view.Strip)
	}
}

func TestSequencerRunReportsSupersede(t *testing.T) {
	seq, clock, _, _ := newSequencer(t)

	errCh := make(chan error, 1)
	go func() { errCh <- seq.Run(context.Background(), []string{"🍇", "🍇", "🍇"}) }()
	require.Eventually(t, seq.Busy, time.Second, time.Millisecond)

	anim, err := seq.Play(finals)
	require.NoError(t, err)
	assert.ErrorIs(t, <-errCh, reels.ErrSuperseded)

	drive(t, clock, anim)
}

func TestSequencerRunContextOnlyStopsWaiting(t *testing.T) {
	seq, clock, rec, _ := newSequencer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := seq.Run(ctx, finals)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, seq.Busy(), "animation keeps running after the caller stops waiting")

	require.Eventually(t, func() bool {
		clock.Advance(50 * time.Millisecond)
		return !seq.Busy()
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, 3, rec.Count(audio.CueReelStop))
}

func TestSequencerRejectsBadFinals(t *testing.T) {
	seq, _, rec, _ := newSequencer(t)

	_, err := seq.Play([]string{"💎"})
	assert.ErrorIs(t, err, reels.ErrSymbolCount)
	assert.False(t, seq.Busy())
	assert.Empty(t, rec.Cues())
}

func TestSequencerFrameObserver(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var mu sync.Mutex
	frames := 0
	seq, err := reels.New(clock, reels.DefaultConfig(), nil,
		reels.WithFrameObserver(func(views []reels.ReelView) {
			mu.Lock()
			frames++
			mu.Unlock()
			assert.Len(t, views, 3)
		}),
	)
	require.NoError(t, err)

	anim, err := seq.Play(finals)
	require.NoError(t, err)
	drive(t, clock, anim)

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, frames)
}
