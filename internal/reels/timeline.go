package reels

import (
	"errors"
	"fmt"
	"time"

	"casino-miniapp/internal/models"
)

var (
	ErrSymbolCount   = errors.New("reels: wrong number of final symbols")
	ErrUnknownSymbol = errors.New("reels: unknown symbol")
	ErrInvalidConfig = errors.New("reels: invalid config")
)

type Config struct {
	Reels int
	// Cycles is how many lengths of the alphabet the filler strip spans.
	Cycles int
	// SpinBase is reel 0's constant-velocity scroll time; reel i scrolls
	// for SpinBase + i*Stagger unless its settle takes over first.
	SpinBase time.Duration
	// Stagger is the offset from sequence start at which each successive
	// reel begins to settle.
	Stagger        time.Duration
	SettleDuration time.Duration
	SymbolHeight   float64
	FrameInterval  time.Duration
	// Tick cues fire while phase 1 progress is strictly inside this window.
	TickFrom float64
	TickTo   float64
	Alphabet []string
}

func DefaultConfig() Config {
	return Config{
		Reels:          models.ReelCount,
		Cycles:         5,
		SpinBase:       800 * time.Millisecond,
		Stagger:        200 * time.Millisecond,
		SettleDuration: time.Second,
		SymbolHeight:   100,
		FrameInterval:  16 * time.Millisecond,
		TickFrom:       0.10,
		TickTo:         0.95,
		Alphabet:       models.AllReelSymbols,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Reels < 1:
		return fmt.Errorf("%w: need at least one reel", ErrInvalidConfig)
	case c.Cycles < 1:
		return fmt.Errorf("%w: cycles must be positive", ErrInvalidConfig)
	case len(c.Alphabet) == 0:
		return fmt.Errorf("%w: empty alphabet", ErrInvalidConfig)
	case c.SpinBase <= 0 || c.SettleDuration <= 0 || c.FrameInterval <= 0:
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	case c.Stagger <= 0:
		return fmt.Errorf("%w: stagger must be positive so reels never stop together", ErrInvalidConfig)
	case c.SymbolHeight <= 0:
		return fmt.Errorf("%w: symbol height must be positive", ErrInvalidConfig)
	}
	return nil
}

// SpinDuration is the nominal length of phase 1 of reel i. Tick progress is
// measured against it.
func (c Config) SpinDuration(i int) time.Duration {
	return c.SpinBase + time.Duration(i)*c.Stagger
}

// SettleStart is the offset from sequence start at which reel i leaves
// phase 1 and starts easing into its final position.
func (c Config) SettleStart(i int) time.Duration {
	return time.Duration(i) * c.Stagger
}

// StopAt is the offset from sequence start at which reel i comes to rest.
func (c Config) StopAt(i int) time.Duration {
	return c.SettleStart(i) + c.SettleDuration
}

// TotalDuration is when the slowest reel settles.
func (c Config) TotalDuration() time.Duration {
	return c.StopAt(c.Reels - 1)
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSpinning Phase = "spinning"
	PhaseSettling Phase = "settling"
	PhaseStopped  Phase = "stopped"
)

type EventType string

const (
	EventSpinStart   EventType = "spin_start"
	EventTick        EventType = "tick"
	EventReelStopped EventType = "reel_stopped"
	EventComplete    EventType = "complete"
)

type Event struct {
	Type   EventType     `json:"type"`
	Reel   int           `json:"reel"`
	At     time.Duration `json:"at"`
	Symbol string        `json:"symbol,omitempty"`
}

// ReelView is the renderable state of one reel. Offset is a vertical
// translation in pixels; zero is the origin and scrolling moves it negative.
type ReelView struct {
	Index  int      `json:"index"`
	Strip  []string `json:"strip"`
	Offset float64  `json:"offset"`
	Phase  Phase    `json:"phase"`
}

func (r ReelView) Visible() string {
	if len(r.Strip) == 0 {
		return ""
	}
	return r.Strip[len(r.Strip)-1]
}

type track struct {
	ReelView
	final    string
	spinFor  time.Duration
	settleAt time.Duration
	stopAt   time.Duration
	// rest is the scroll distance at which the final symbol is in view.
	rest float64
	// settleFrom is the offset phase 1 had reached when the settle took over.
	settleFrom float64
}

// Timeline is the pure, clock-free state machine behind a spin. It is
// driven by calling Advance with the elapsed time since sequence start.
type Timeline struct {
	cfg       Config
	tracks    []*track
	started   bool
	stopped   int
	completed bool
}

// NewTimeline builds one strip per reel: Cycles*len(Alphabet) uniformly
// drawn fillers followed by the mandated final symbol.
func NewTimeline(cfg Config, finals []string, pick func(n int) int) (*Timeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(finals) != cfg.Reels {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrSymbolCount, cfg.Reels, len(finals))
	}
	for i, s := range finals {
		if !contains(cfg.Alphabet, s) {
			return nil, fmt.Errorf("%w: %q on reel %d", ErrUnknownSymbol, s, i)
		}
	}

	fillers := cfg.Cycles * len(cfg.Alphabet)
	tl := &Timeline{cfg: cfg, tracks: make([]*track, cfg.Reels)}
	for i, final := range finals {
		strip := make([]string, 0, fillers+1)
		for j := 0; j < fillers; j++ {
			strip = append(strip, cfg.Alphabet[pick(len(cfg.Alphabet))])
		}
		strip = append(strip, final)

		tl.tracks[i] = &track{
			ReelView: ReelView{Index: i, Strip: strip, Phase: PhaseIdle},
			final:    final,
			spinFor:  cfg.SpinDuration(i),
			settleAt: cfg.SettleStart(i),
			stopAt:   cfg.StopAt(i),
			rest:     float64(len(strip)-1) * cfg.SymbolHeight,
		}
	}
	return tl, nil
}

func (tl *Timeline) Config() Config {
	return tl.cfg
}

// Advance moves every reel to the given elapsed time and returns the events
// that occurred, reels visited in index order.
func (tl *Timeline) Advance(elapsed time.Duration) []Event {
	if elapsed < 0 {
		elapsed = 0
	}
	var events []Event

	if !tl.started {
		tl.started = true
		for _, tr := range tl.tracks {
			tr.Offset = 0
			tr.Phase = PhaseSpinning
		}
		events = append(events, Event{Type: EventSpinStart, Reel: 0, At: 0})
	}

	for _, tr := range tl.tracks {
		if tr.Phase == PhaseSpinning {
			if elapsed >= tr.settleAt {
				// The settle overwrites phase 1 from wherever it had got to.
				tr.settleFrom = -tr.spinProgress(tr.settleAt) * tr.rest
				tr.Phase = PhaseSettling
			} else {
				progress := tr.spinProgress(elapsed)
				tr.Offset = -progress * tr.rest
				if progress > tl.cfg.TickFrom && progress < tl.cfg.TickTo {
					events = append(events, Event{Type: EventTick, Reel: tr.Index, At: elapsed})
				}
			}
		}

		if tr.Phase == PhaseSettling {
			q := clamp(float64(elapsed-tr.settleAt) / float64(tl.cfg.SettleDuration))
			tr.Offset = tr.settleFrom + easeOutQuad(q)*(-tr.rest-tr.settleFrom)
			if elapsed >= tr.stopAt {
				tr.Strip = []string{tr.final}
				tr.Offset = 0
				tr.Phase = PhaseStopped
				tl.stopped++
				events = append(events, Event{Type: EventReelStopped, Reel: tr.Index, At: tr.stopAt, Symbol: tr.final})
			}
		}
	}

	if tl.Done() && !tl.completed {
		tl.completed = true
		events = append(events, Event{Type: EventComplete, Reel: len(tl.tracks) - 1, At: tl.cfg.TotalDuration()})
	}
	return events
}

func (tr *track) spinProgress(elapsed time.Duration) float64 {
	return clamp(float64(elapsed) / float64(tr.spinFor))
}

func (tl *Timeline) Done() bool {
	return tl.stopped == len(tl.tracks)
}

func (tl *Timeline) Reels() []ReelView {
	out := make([]ReelView, len(tl.tracks))
	for i, tr := range tl.tracks {
		out[i] = ReelView{
			Index:  tr.Index,
			Strip:  append([]string(nil), tr.Strip...),
			Offset: tr.Offset,
			Phase:  tr.Phase,
		}
	}
	return out
}

// easeOutQuad matches the power2.out curve.
func easeOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
