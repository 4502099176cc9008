// Package session runs one player's game surface: it issues actions
// against the backend, plays the reel and coin animations to completion,
// then reconciles the local state with what the backend answered.
package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/audio"
	"casino-miniapp/internal/countdown"
	"casino-miniapp/internal/gateway"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/reels"
	"casino-miniapp/internal/state"
)

const DefaultFlipDuration = 1500 * time.Millisecond

type Action string

const (
	ActionSpin       Action = "spin"
	ActionCoinFlip   Action = "coin_flip"
	ActionDailyBonus Action = "daily_bonus"
	ActionQuickBonus Action = "quick_bonus"
)

var actions = []Action{ActionSpin, ActionCoinFlip, ActionDailyBonus, ActionQuickBonus}

type EventType string

const (
	EventCue          EventType = "cue"
	EventReelFrame    EventType = "reel_frame"
	EventReelStopped  EventType = "reel_stopped"
	EventSpinComplete EventType = "spin_complete"
	EventSpinResult   EventType = "spin_result"
	EventCoinFlip     EventType = "coin_flip"
	EventBonusClaimed EventType = "bonus_claimed"
	EventNotice       EventType = "notice"
)

// Event is what a session publishes to its presentation layer. State store
// events keep their own type names (state, balance_changed, level_up,
// cooldown).
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type options struct {
	clock        clockwork.Clock
	reelConfig   reels.Config
	reelRand     *rand.Rand
	engine       audio.Engine
	sink         func(Event)
	flipDuration time.Duration
}

type Option func(*options)

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func WithReelConfig(cfg reels.Config) Option {
	return func(o *options) { o.reelConfig = cfg }
}

func WithReelRand(r *rand.Rand) Option {
	return func(o *options) { o.reelRand = r }
}

// WithAudioEngine renders cues locally in addition to publishing them.
func WithAudioEngine(engine audio.Engine) Option {
	return func(o *options) { o.engine = engine }
}

// WithSink receives every event the session publishes. It is called from
// animation and timer goroutines and must not block.
func WithSink(fn func(Event)) Option {
	return func(o *options) { o.sink = fn }
}

func WithFlipDuration(d time.Duration) Option {
	return func(o *options) { o.flipDuration = d }
}

// Session is constructed once per launch. A nil user means the host gave no
// identity: every action then fails with ErrMissingIdentity without a call.
type Session struct {
	user         *models.TelegramUser
	gw           gateway.Gateway
	clock        clockwork.Clock
	store        *state.Store
	reels        *reels.Sequencer
	audio        *audio.Player
	sink         func(Event)
	flipDuration time.Duration

	busy map[Action]*atomic.Bool

	unsubscribe func()
}

func New(user *models.TelegramUser, gw gateway.Gateway, opts ...Option) (*Session, error) {
	o := options{
		clock:        clockwork.NewRealClock(),
		reelConfig:   reels.DefaultConfig(),
		flipDuration: DefaultFlipDuration,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		user:         user,
		gw:           gw,
		clock:        o.clock,
		sink:         o.sink,
		flipDuration: o.flipDuration,
		busy:         make(map[Action]*atomic.Bool, len(actions)),
	}
	for _, a := range actions {
		s.busy[a] = &atomic.Bool{}
	}

	local := o.engine
	s.audio = audio.NewPlayer(audio.EngineFunc(func(cue audio.Cue) {
		if local != nil {
			local.Trigger(cue)
		}
		s.publish(Event{Type: EventCue, Data: cue})
	}))

	reelOpts := []reels.Option{
		reels.WithEventObserver(s.onReelEvent),
		reels.WithFrameObserver(func(views []reels.ReelView) {
			s.publish(Event{Type: EventReelFrame, Data: views})
		}),
	}
	if o.reelRand != nil {
		reelOpts = append(reelOpts, reels.WithRand(o.reelRand))
	}
	seq, err := reels.New(o.clock, o.reelConfig, s.audio, reelOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create reel sequencer: %w", err)
	}
	s.reels = seq

	username := ""
	if user != nil {
		username = user.DisplayName()
	}
	s.store = state.NewStore(o.clock, username)
	s.unsubscribe = s.store.Subscribe(s.onStateEvent)

	return s, nil
}

func (s *Session) User() *models.TelegramUser {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Identified reports whether actions are enabled at all.
func (s *Session) Identified() bool {
	return s.user != nil
}

func (s *Session) Store() *state.Store {
	return s.store
}

// UnlockAudio is the first user gesture: cues play from here on.
func (s *Session) UnlockAudio() {
	s.audio.Unlock()
}

func (s *Session) Busy(a Action) bool {
	flag, ok := s.busy[a]
	return ok && flag.Load()
}

// View is everything the presentation layer needs to redraw from scratch.
type View struct {
	Identified bool             `json:"identified"`
	Loaded     bool             `json:"loaded"`
	State      models.UserState `json:"state"`
	Progress   float64          `json:"progress"`
	DailyBonus countdown.Status `json:"daily_bonus"`
	QuickBonus countdown.Status `json:"quick_bonus"`
	Busy       map[Action]bool  `json:"busy"`
	Reels      []reels.ReelView `json:"reels"`
	Notice     *Notice          `json:"notice,omitempty"`
}

func (s *Session) View() View {
	snap := s.store.Snapshot()
	v := View{
		Identified: s.Identified(),
		Loaded:     s.store.Loaded(),
		State:      snap,
		Progress:   snap.Progress(),
		DailyBonus: s.store.Cooldown(models.BonusDaily),
		QuickBonus: s.store.Cooldown(models.BonusQuick),
		Busy:       make(map[Action]bool, len(actions)),
		Reels:      s.reels.Reels(),
	}
	for _, a := range actions {
		v.Busy[a] = s.Busy(a)
	}
	if !v.Identified {
		n := missingIdentityNotice
		v.Notice = &n
	}
	return v
}

// Load fetches the authoritative state and reconciles it.
func (s *Session) Load(ctx context.Context) error {
	if s.user == nil {
		return s.missingIdentity()
	}
	if err := s.fetch(ctx); err != nil {
		return s.fail(gateway.OpGetState, err)
	}
	return nil
}

// Spin asks the backend for a result, plays the reels until the last one
// has stopped, and only then applies the new balance. A second Spin while
// one is in flight returns ErrBusy without calling the backend.
func (s *Session) Spin(ctx context.Context) (*models.SpinResult, error) {
	if s.user == nil {
		return nil, s.missingIdentity()
	}
	if !s.acquire(ActionSpin) {
		return nil, ErrBusy
	}
	defer s.release(ActionSpin)

	res, err := s.gw.Spin(ctx, s.user.ID)
	if err != nil {
		s.audio.Trigger(audio.CueLose)
		return nil, s.fail(gateway.OpSpin, err)
	}

	// Once started the reels run to the end regardless of ctx.
	if err := s.reels.Run(context.WithoutCancel(ctx), res.Symbols); err != nil {
		s.audio.Trigger(audio.CueLose)
		return nil, s.fail(gateway.OpSpin, &gateway.TransportError{Op: gateway.OpSpin, Err: err})
	}

	s.audio.Trigger(winCue(res.Winnings))
	res.Message = res.Summary()
	s.publish(Event{Type: EventSpinResult, Data: res})
	log.Info().Int64("user_id", s.user.ID).Strs("symbols", res.Symbols).Int64("winnings", res.Winnings).Msg("spin settled")

	if err := s.apply(ctx, gateway.OpSpin, res.Standing); err != nil {
		return res, err
	}
	return res, nil
}

// FlipCoin validates the choice, asks the backend, waits out the flip
// animation and then applies the result.
func (s *Session) FlipCoin(ctx context.Context, choice models.CoinSide) (*models.CoinFlipResult, error) {
	if s.user == nil {
		return nil, s.missingIdentity()
	}
	if !choice.Valid() {
		return nil, ErrInvalidChoice
	}
	if !s.acquire(ActionCoinFlip) {
		return nil, ErrBusy
	}
	defer s.release(ActionCoinFlip)

	res, err := s.gw.FlipCoin(ctx, s.user.ID, choice)
	if err != nil {
		s.audio.Trigger(audio.CueLose)
		return nil, s.fail(gateway.OpCoinFlip, err)
	}

	s.audio.Trigger(audio.CueCoinFlip)
	<-s.clock.After(s.flipDuration)

	s.audio.Trigger(winCue(res.Winnings))
	s.publish(Event{Type: EventCoinFlip, Data: res})

	if err := s.apply(ctx, gateway.OpCoinFlip, res.Standing); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Session) ClaimDailyBonus(ctx context.Context) (*models.BonusClaim, error) {
	return s.ClaimBonus(ctx, models.BonusDaily)
}

func (s *Session) ClaimQuickBonus(ctx context.Context) (*models.BonusClaim, error) {
	return s.ClaimBonus(ctx, models.BonusQuick)
}

// ClaimBonus claims a bonus that the local countdown says is available,
// then refetches state so the countdown restarts from the server's claim
// time.
func (s *Session) ClaimBonus(ctx context.Context, kind models.BonusKind) (*models.BonusClaim, error) {
	var (
		action Action
		op     string
		call   func(context.Context, int64) (*models.BonusClaim, error)
	)
	switch kind {
	case models.BonusDaily:
		action, op, call = ActionDailyBonus, gateway.OpDailyBonus, s.gw.ClaimDailyBonus
	case models.BonusQuick:
		action, op, call = ActionQuickBonus, gateway.OpQuickBonus, s.gw.ClaimQuickBonus
	default:
		return nil, fmt.Errorf("session: unknown bonus kind %q", kind)
	}

	if s.user == nil {
		return nil, s.missingIdentity()
	}
	if !s.acquire(action) {
		return nil, ErrBusy
	}
	defer s.release(action)

	if s.store.Loaded() {
		if status := s.store.Cooldown(kind); !status.Claimable {
			return nil, fmt.Errorf("%w: %s remaining", ErrOnCooldown, status.Text)
		}
	}

	claim, err := call(ctx, s.user.ID)
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.audio.Trigger(audio.CueBonus)
	s.publish(Event{Type: EventBonusClaimed, Data: claim})
	log.Info().Int64("user_id", s.user.ID).Str("bonus", string(kind)).Int64("amount", claim.Amount).Msg("bonus claimed")

	if err := s.fetch(ctx); err != nil {
		log.Warn().Err(err).Str("bonus", string(kind)).Msg("refresh after bonus failed, applying claim locally")
		next := s.store.Snapshot()
		if claim.Known() {
			next = next.WithStanding(claim.Standing)
		}
		now := s.clock.Now().UTC()
		if kind == models.BonusDaily {
			next.LastDailyBonusClaim = &now
		} else {
			next.LastQuickBonusClaim = &now
		}
		if err := s.store.Reconcile(next); err != nil {
			return claim, s.fail(op, &gateway.TransportError{Op: op, Err: err})
		}
	}
	return claim, nil
}

// Leaderboard needs no identity; it is sorted by level then XP.
func (s *Session) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := s.gw.GetLeaderboard(ctx)
	if err != nil {
		return nil, s.fail(gateway.OpLeaderboard, err)
	}
	models.SortLeaderboard(entries)
	return entries, nil
}

// Close stops the cooldown tickers. An animation still in flight finishes
// on its own.
func (s *Session) Close() {
	s.unsubscribe()
	s.store.Close()
}

func (s *Session) fetch(ctx context.Context) error {
	next, err := s.gw.GetState(ctx, s.user.ID, s.user.DisplayName())
	if err != nil {
		return err
	}
	if err := s.store.Reconcile(*next); err != nil {
		return &gateway.TransportError{Op: gateway.OpGetState, Err: err}
	}
	return nil
}

// apply reconciles the standing an action returned, or refetches when the
// response carried none.
func (s *Session) apply(ctx context.Context, op string, standing models.Standing) error {
	if !standing.Known() {
		if err := s.fetch(ctx); err != nil {
			return s.fail(gateway.OpGetState, err)
		}
		return nil
	}
	next := s.store.Snapshot().WithStanding(standing)
	if err := s.store.Reconcile(next); err != nil {
		return s.fail(op, &gateway.TransportError{Op: op, Err: err})
	}
	return nil
}

func (s *Session) acquire(a Action) bool {
	return s.busy[a].CompareAndSwap(false, true)
}

func (s *Session) release(a Action) {
	s.busy[a].Store(false)
}

func (s *Session) missingIdentity() error {
	s.publish(Event{Type: EventNotice, Data: missingIdentityNotice})
	return ErrMissingIdentity
}

// fail publishes the notice for err and returns it unchanged.
func (s *Session) fail(op string, err error) error {
	notice, ok := Classify(err)
	if !ok {
		notice = transportNotice
	}
	switch notice.Kind {
	case NoticeRemoteRejection:
		log.Warn().Str("op", op).Str("reason", notice.Message).Msg("action rejected by backend")
	default:
		log.Error().Err(err).Str("op", op).Msg("action failed")
	}
	s.publish(Event{Type: EventNotice, Data: notice})
	return err
}

func (s *Session) onStateEvent(ev state.Event) {
	if ev.Type == state.EventLevelUp {
		s.audio.Trigger(audio.CueLevelUp)
	}
	s.publish(Event{Type: EventType(ev.Type), Data: ev})
}

func (s *Session) onReelEvent(ev reels.Event) {
	switch ev.Type {
	case reels.EventReelStopped:
		s.publish(Event{Type: EventReelStopped, Data: ev})
	case reels.EventComplete:
		s.publish(Event{Type: EventSpinComplete, Data: ev})
	}
}

func (s *Session) publish(ev Event) {
	if s.sink != nil {
		s.sink(ev)
	}
}

func winCue(winnings int64) audio.Cue {
	switch {
	case winnings >= models.BigWinThreshold:
		return audio.CueBigWin
	case winnings > 0:
		return audio.CueWin
	}
	return audio.CueLose
}
