// Package gateway is the client side of the remote game backend. The
// backend owns randomness, payouts and persistence; this package only
// issues requests and classifies how they failed.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"casino-miniapp/internal/models"
)

// Gateway is the set of backend operations a game session can issue. Every
// call is a single request/response with no retries.
type Gateway interface {
	GetState(ctx context.Context, userID int64, username string) (*models.UserState, error)
	Spin(ctx context.Context, userID int64) (*models.SpinResult, error)
	FlipCoin(ctx context.Context, userID int64, choice models.CoinSide) (*models.CoinFlipResult, error)
	ClaimDailyBonus(ctx context.Context, userID int64) (*models.BonusClaim, error)
	ClaimQuickBonus(ctx context.Context, userID int64) (*models.BonusClaim, error)
	GetLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
}

const (
	OpGetState    = "get_balance"
	OpSpin        = "spin"
	OpCoinFlip    = "coin_flip"
	OpDailyBonus  = "claim_daily_bonus"
	OpQuickBonus  = "claim_quick_bonus"
	OpLeaderboard = "get_leaderboard"
)

// RemoteError means the backend answered but refused the action.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s rejected (%d): %s", e.Op, e.Status, e.Message)
}

// TransportError means the call never produced a usable answer: the request
// failed, timed out, or the response could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Reason returns the backend's rejection message, or "" when err is not a
// remote rejection.
func Reason(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	return ""
}
