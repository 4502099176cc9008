// Package state holds the single local copy of the player's state. The only
// way to change it is Reconcile, which swaps in a fresh server copy in one
// step and then notifies subscribers about what changed.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/countdown"
	"casino-miniapp/internal/models"
)

type EventType string

const (
	EventStateReplaced  EventType = "state"
	EventBalanceChanged EventType = "balance_changed"
	EventLevelUp        EventType = "level_up"
	EventCooldown       EventType = "cooldown"
)

type Event struct {
	Type       EventType         `json:"type"`
	State      *models.UserState `json:"state,omitempty"`
	OldBalance int64             `json:"old_balance,omitempty"`
	NewBalance int64             `json:"new_balance,omitempty"`
	OldLevel   int               `json:"old_level,omitempty"`
	NewLevel   int               `json:"new_level,omitempty"`
	Bonus      models.BonusKind  `json:"bonus,omitempty"`
	Cooldown   *countdown.Status `json:"cooldown,omitempty"`
}

type Store struct {
	// reconcileMu serializes whole reconciliations so events go out in the
	// same order the states were applied.
	reconcileMu sync.Mutex

	mu     sync.RWMutex
	state  models.UserState
	loaded bool

	listenersMu sync.RWMutex
	listeners   map[int]func(Event)
	nextID      int

	timers map[models.BonusKind]*countdown.Timer
}

func NewStore(clock clockwork.Clock, username string) *Store {
	s := &Store{
		state:     models.DefaultUserState(username),
		listeners: make(map[int]func(Event)),
	}
	s.timers = map[models.BonusKind]*countdown.Timer{
		models.BonusDaily: countdown.NewTimer(clock, countdown.DailyCooldown, s.cooldownChanged(models.BonusDaily)),
		models.BonusQuick: countdown.NewTimer(clock, countdown.QuickCooldown, s.cooldownChanged(models.BonusQuick)),
	}
	return s
}

// Subscribe registers fn for every future event and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) Snapshot() models.UserState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Loaded reports whether at least one server state has been applied.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Cooldown(kind models.BonusKind) countdown.Status {
	t, ok := s.timers[kind]
	if !ok {
		return countdown.Status{}
	}
	return t.Status()
}

// Reconcile replaces the local state with next. An invalid state is
// rejected and the previous state is kept.
func (s *Store) Reconcile(next models.UserState) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("rejecting server state: %w", err)
	}

	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	s.mu.Lock()
	prev := s.state
	wasLoaded := s.loaded
	if next.UserID == nil {
		next.UserID = prev.UserID
	}
	if next.Username == "" {
		next.Username = prev.Username
	}
	if next.NextLevelXP <= 0 {
		next.NextLevelXP = models.NextLevelXP(next.Level)
	}
	s.state = next.Clone()
	s.loaded = true
	s.mu.Unlock()

	snapshot := next.Clone()
	s.emit(Event{Type: EventStateReplaced, State: &snapshot})

	if next.Balance != prev.Balance {
		s.emit(Event{Type: EventBalanceChanged, OldBalance: prev.Balance, NewBalance: next.Balance})
	}

	if wasLoaded && next.Level > prev.Level {
		log.Info().Int("from", prev.Level).Int("to", next.Level).Msg("level up")
		s.emit(Event{Type: EventLevelUp, OldLevel: prev.Level, NewLevel: next.Level})
	}

	if !wasLoaded || !sameTime(prev.LastDailyBonusClaim, next.LastDailyBonusClaim) {
		s.timers[models.BonusDaily].Start(next.LastDailyBonusClaim)
	}
	if !wasLoaded || !sameTime(prev.LastQuickBonusClaim, next.LastQuickBonusClaim) {
		s.timers[models.BonusQuick].Start(next.LastQuickBonusClaim)
	}

	return nil
}

// Close stops both cooldown tickers.
func (s *Store) Close() {
	for _, t := range s.timers {
		t.Stop()
	}
}

func (s *Store) cooldownChanged(kind models.BonusKind) func(countdown.Status) {
	return func(status countdown.Status) {
		s.emit(Event{Type: EventCooldown, Bonus: kind, Cooldown: &status})
	}
}

func (s *Store) emit(ev Event) {
	s.listenersMu.RLock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
