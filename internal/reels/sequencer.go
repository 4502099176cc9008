// Package reels drives the slot reel spin: every reel starts scrolling at
// the same instant, each one settles a stagger later than the previous, and
// the returned completion channel closes only once the last reel is at rest
// on its final symbol.
package reels

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/audio"
	"casino-miniapp/internal/models"
)

var ErrSuperseded = errors.New("reels: animation superseded by a newer spin")

type Option func(*Sequencer)

// WithRand makes filler strips reproducible.
func WithRand(r *rand.Rand) Option {
	return func(s *Sequencer) { s.pick = r.IntN }
}

// WithEventObserver receives spin_start, tick, reel_stopped and complete
// events in the order they occur.
func WithEventObserver(fn func(Event)) Option {
	return func(s *Sequencer) { s.onEvent = fn }
}

// WithFrameObserver receives the reel views after every animation frame.
func WithFrameObserver(fn func([]ReelView)) Option {
	return func(s *Sequencer) { s.onFrame = fn }
}

// Animation is the handle for one Play call.
type Animation struct {
	ID     string
	done   chan struct{}
	stop   chan struct{}
	mu     sync.Mutex
	killed bool
}

// Done closes once every reel has stopped, or when a newer Play took over.
func (a *Animation) Done() <-chan struct{} {
	return a.done
}

func (a *Animation) Superseded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.killed
}

func (a *Animation) supersede() {
	a.mu.Lock()
	a.killed = true
	a.mu.Unlock()
	close(a.stop)
}

type Sequencer struct {
	clock   clockwork.Clock
	cfg     Config
	cues    audio.Engine
	pick    func(n int) int
	onEvent func(Event)
	onFrame func([]ReelView)

	mu      sync.Mutex
	current *Animation
	views   []ReelView
}

func New(clock clockwork.Clock, cfg Config, cues audio.Engine, opts ...Option) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Sequencer{
		clock: clock,
		cfg:   cfg,
		cues:  cues,
		pick:  rand.IntN,
		views: make([]ReelView, cfg.Reels),
	}
	for i := range s.views {
		s.views[i] = ReelView{Index: i, Strip: []string{"?"}, Phase: PhaseIdle}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sequencer) Config() Config {
	return s.cfg
}

// Play starts a spin ending on finals, one symbol per reel. A spin already
// in flight is overwritten: its reels are reset to the origin and its
// Animation is released as superseded.
func (s *Sequencer) Play(finals []string) (*Animation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, err := NewTimeline(s.cfg, finals, s.pick)
	if err != nil {
		return nil, err
	}

	if s.current != nil {
		log.Warn().Str("animation_id", s.current.ID).Msg("overwriting reel animation still in flight")
		s.current.supersede()
	}

	anim := &Animation{
		ID:   models.GeneratePlayID(),
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	s.current = anim
	for i := range s.views {
		s.views[i] = ReelView{Index: i, Strip: s.views[i].Strip, Offset: 0, Phase: PhaseIdle}
	}

	ticker := s.clock.NewTicker(s.cfg.FrameInterval)
	start := s.clock.Now()
	go s.run(anim, tl, ticker, start)

	return anim, nil
}

// Run plays finals and waits for every reel to stop. Cancelling ctx only
// stops the wait; the animation itself runs to completion.
func (s *Sequencer) Run(ctx context.Context, finals []string) error {
	anim, err := s.Play(finals)
	if err != nil {
		return err
	}
	select {
	case <-anim.Done():
		if anim.Superseded() {
			return ErrSuperseded
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports whether a spin is in flight.
func (s *Sequencer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Reels returns the last rendered state of every reel.
func (s *Sequencer) Reels() []ReelView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReelView, len(s.views))
	for i, v := range s.views {
		v.Strip = append([]string(nil), v.Strip...)
		out[i] = v
	}
	return out
}

func (s *Sequencer) run(anim *Animation, tl *Timeline, ticker clockwork.Ticker, start time.Time) {
	defer close(anim.done)
	defer ticker.Stop()

	if s.frame(anim, tl, 0) {
		return
	}
	for {
		select {
		case <-anim.stop:
			return
		case <-ticker.Chan():
			if s.frame(anim, tl, s.clock.Since(start)) {
				return
			}
		}
	}
}

// frame advances the timeline and reports whether this animation is over,
// either finished or taken over by a newer one.
func (s *Sequencer) frame(anim *Animation, tl *Timeline, elapsed time.Duration) bool {
	s.mu.Lock()
	if s.current != anim {
		s.mu.Unlock()
		return true
	}
	events := tl.Advance(elapsed)
	s.views = tl.Reels()
	done := tl.Done()
	if done {
		s.current = nil
	}
	s.mu.Unlock()

	if s.onFrame != nil {
		s.onFrame(tl.Reels())
	}
	for _, ev := range events {
		s.dispatch(ev)
	}
	if done {
		log.Debug().Str("animation_id", anim.ID).Dur("elapsed", elapsed).Msg("reels settled")
	}
	return done
}

func (s *Sequencer) dispatch(ev Event) {
	if s.cues != nil {
		switch ev.Type {
		case EventSpinStart:
			s.cues.Trigger(audio.CueSpinStart)
		case EventTick:
			s.cues.Trigger(audio.CueReelTick)
		case EventReelStopped:
			s.cues.Trigger(audio.CueReelStop)
		}
	}
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
