// Package audio routes named sound cues to whatever engine renders them.
// Triggers are fire-and-forget and silently dropped until the engine has
// been unlocked by a user gesture.
package audio

import (
	"sync"
	"sync/atomic"
)

type Cue string

const (
	CueSpinStart Cue = "spin_start"
	CueReelTick  Cue = "reel_tick"
	CueReelStop  Cue = "reel_stop"
	CueWin       Cue = "win"
	CueBigWin    Cue = "big_win"
	CueLose      Cue = "lose"
	CueLevelUp   Cue = "level_up"
	CueBonus     Cue = "bonus"
	CueCoinFlip  Cue = "coin_flip"
)

// Engine is anything that can play a cue.
type Engine interface {
	Trigger(cue Cue)
}

// EngineFunc adapts a plain function to Engine.
type EngineFunc func(cue Cue)

func (f EngineFunc) Trigger(cue Cue) { f(cue) }

// Player gates an Engine behind an unlocked flag.
type Player struct {
	engine Engine
	ready  atomic.Bool
}

func NewPlayer(engine Engine) *Player {
	return &Player{engine: engine}
}

// Unlock marks the engine as initialized.
func (p *Player) Unlock() {
	p.ready.Store(true)
}

func (p *Player) Ready() bool {
	return p != nil && p.ready.Load()
}

func (p *Player) Trigger(cue Cue) {
	if !p.Ready() || p.engine == nil {
		return
	}
	p.engine.Trigger(cue)
}

// Recorder keeps every cue it receives. Useful as an Engine in tests and
// for replaying cues to a late subscriber.
type Recorder struct {
	mu   sync.Mutex
	cues []Cue
}

func (r *Recorder) Trigger(cue Cue) {
	r.mu.Lock()
	r.cues = append(r.cues, cue)
	r.mu.Unlock()
}

func (r *Recorder) Cues() []Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cue(nil), r.cues...)
}

func (r *Recorder) Count(cue Cue) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.cues {
		if c == cue {
			n++
		}
	}
	return n
}
