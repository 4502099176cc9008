package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/models"
)

var _ Gateway = (*HTTPClient)(nil)

// HTTPClient talks to the backend's JSON API, one POST per operation.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		headers: make(map[string]string),
	}
}

func (c *HTTPClient) SetHeader(key, value string) {
	c.headers[key] = value
}

type userRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

type coinFlipRequest struct {
	UserID int64           `json:"user_id"`
	Choice models.CoinSide `json:"choice"`
}

// stateResponse mirrors get_balance. Claim times arrive as ISO 8601 strings
// that may or may not carry a zone.
type stateResponse struct {
	Username            string  `json:"username"`
	Balance             int64   `json:"balance"`
	XP                  int64   `json:"xp"`
	Level               int     `json:"level"`
	NextLevelXP         int64   `json:"next_level_xp"`
	LastDailyBonusClaim *string `json:"last_daily_bonus_claim"`
	LastQuickBonusClaim *string `json:"last_quick_bonus_claim"`
}

type leaderboardResponse struct {
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
}

func (c *HTTPClient) GetState(ctx context.Context, userID int64, username string) (*models.UserState, error) {
	var resp stateResponse
	if err := c.post(ctx, OpGetState, userID, userRequest{UserID: userID, Username: username}, &resp); err != nil {
		return nil, err
	}

	daily, err := parseClaimTime(resp.LastDailyBonusClaim)
	if err != nil {
		return nil, &TransportError{Op: OpGetState, Err: fmt.Errorf("last_daily_bonus_claim: %w", err)}
	}
	quick, err := parseClaimTime(resp.LastQuickBonusClaim)
	if err != nil {
		return nil, &TransportError{Op: OpGetState, Err: fmt.Errorf("last_quick_bonus_claim: %w", err)}
	}

	id := userID
	state := &models.UserState{
		UserID:              &id,
		Username:            resp.Username,
		Balance:             resp.Balance,
		XP:                  resp.XP,
		Level:               resp.Level,
		NextLevelXP:         resp.NextLevelXP,
		LastDailyBonusClaim: daily,
		LastQuickBonusClaim: quick,
	}
	if state.NextLevelXP <= 0 {
		state.NextLevelXP = models.NextLevelXP(state.Level)
	}
	return state, nil
}

func (c *HTTPClient) Spin(ctx context.Context, userID int64) (*models.SpinResult, error) {
	var resp models.SpinResult
	if err := c.post(ctx, OpSpin, userID, userRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, &TransportError{Op: OpSpin, Err: err}
	}
	return &resp, nil
}

func (c *HTTPClient) FlipCoin(ctx context.Context, userID int64, choice models.CoinSide) (*models.CoinFlipResult, error) {
	var resp models.CoinFlipResult
	if err := c.post(ctx, OpCoinFlip, userID, coinFlipRequest{UserID: userID, Choice: choice}, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Valid() {
		return nil, &TransportError{Op: OpCoinFlip, Err: fmt.Errorf("unexpected coin side %q", resp.Result)}
	}
	return &resp, nil
}

func (c *HTTPClient) ClaimDailyBonus(ctx context.Context, userID int64) (*models.BonusClaim, error) {
	return c.claim(ctx, OpDailyBonus, models.BonusDaily, userID)
}

func (c *HTTPClient) ClaimQuickBonus(ctx context.Context, userID int64) (*models.BonusClaim, error) {
	return c.claim(ctx, OpQuickBonus, models.BonusQuick, userID)
}

func (c *HTTPClient) claim(ctx context.Context, op string, kind models.BonusKind, userID int64) (*models.BonusClaim, error) {
	var resp models.BonusClaim
	if err := c.post(ctx, op, userID, userRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	resp.Kind = kind
	return &resp, nil
}

func (c *HTTPClient) GetLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var resp leaderboardResponse
	if err := c.post(ctx, OpLeaderboard, 0, struct{}{}, &resp); err != nil {
		return nil, err
	}
	models.SortLeaderboard(resp.Leaderboard)
	return resp.Leaderboard, nil
}

// post sends body to /api/<op> and decodes a 2xx answer into out. Non-2xx
// answers become *RemoteError; everything else becomes *TransportError.
// post calls /api/<op>. userID is only used for logging; zero means the call
// is not tied to a player.
func (c *HTTPClient) post(ctx context.Context, op string, userID int64, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+op, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	ev := log.Debug().Str("op", op)
	if userID != 0 {
		ev = ev.Int64("user_id", userID)
	}
	ev.Msg("calling game backend")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Op: op, Status: resp.StatusCode, Message: rejectionMessage(resp.StatusCode, data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// rejectionMessage pulls the reason out of {"detail": ...} or {"error": ...}
// bodies, falling back to the status text.
func rejectionMessage(status int, body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		var detail string
		if len(parsed.Detail) > 0 && json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return http.StatusText(status)
}

var claimTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseClaimTime accepts the timestamp shapes the backend emits. Values
// without a zone are UTC.
func parseClaimTime(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	for _, layout := range claimTimeLayouts {
		if t, err := time.Parse(layout, *value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", *value)
}
