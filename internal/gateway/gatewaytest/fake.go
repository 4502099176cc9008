// Package gatewaytest provides an in-memory gateway.Gateway that records
// every call it receives.
package gatewaytest

import (
	"context"
	"sync"

	"casino-miniapp/internal/gateway"
	"casino-miniapp/internal/models"
)

var _ gateway.Gateway = (*Fake)(nil)

type Fake struct {
	mu    sync.Mutex
	calls map[string]int

	State       *models.UserState
	SpinResult  *models.SpinResult
	FlipResult  *models.CoinFlipResult
	Claim       *models.BonusClaim
	Leaderboard []models.LeaderboardEntry

	// Err, when set for an op, is returned instead of the canned result.
	Err map[string]error

	// SpinGate, when non-nil, blocks Spin until it is closed or receives.
	SpinGate chan struct{}
}

func New() *Fake {
	return &Fake{calls: make(map[string]int), Err: make(map[string]error)}
}

func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *Fake) SetErr(op string, err error) {
	f.mu.Lock()
	f.Err[op] = err
	f.mu.Unlock()
}

func (f *Fake) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.Err[op]
}

func (f *Fake) GetState(_ context.Context, userID int64, username string) (*models.UserState, error) {
	if err := f.record(gateway.OpGetState); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.State == nil {
		s := models.DefaultUserState(username)
		s.Balance = 10000
		f.State = &s
	}
	out := f.State.Clone()
	id := userID
	out.UserID = &id
	return &out, nil
}

func (f *Fake) Spin(ctx context.Context, _ int64) (*models.SpinResult, error) {
	if err := f.record(gateway.OpSpin); err != nil {
		return nil, err
	}
	if f.SpinGate != nil {
		select {
		case <-f.SpinGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res := *f.SpinResult
	res.Symbols = append([]string(nil), f.SpinResult.Symbols...)
	return &res, nil
}

func (f *Fake) FlipCoin(_ context.Context, _ int64, _ models.CoinSide) (*models.CoinFlipResult, error) {
	if err := f.record(gateway.OpCoinFlip); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res := *f.FlipResult
	return &res, nil
}

func (f *Fake) ClaimDailyBonus(_ context.Context, _ int64) (*models.BonusClaim, error) {
	return f.claim(gateway.OpDailyBonus, models.BonusDaily)
}

func (f *Fake) ClaimQuickBonus(_ context.Context, _ int64) (*models.BonusClaim, error) {
	return f.claim(gateway.OpQuickBonus, models.BonusQuick)
}

func (f *Fake) claim(op string, kind models.BonusKind) (*models.BonusClaim, error) {
	if err := f.record(op); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	claim := models.BonusClaim{Kind: kind}
	if f.Claim != nil {
		claim = *f.Claim
		claim.Kind = kind
	}
	return &claim, nil
}

func (f *Fake) GetLeaderboard(_ context.Context) ([]models.LeaderboardEntry, error) {
	if err := f.record(gateway.OpLeaderboard); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.LeaderboardEntry(nil), f.Leaderboard...), nil
}

// SetState replaces what GetState returns next.
func (f *Fake) SetState(s models.UserState) {
	f.mu.Lock()
	f.State = &s
	f.mu.Unlock()
}
