package models

import (
	"fmt"
	"strconv"
	"time"
)

// UserState is the client's local view of a player, replaced wholesale on
// every reconciliation with the backend.
type UserState struct {
	UserID              *int64     `json:"user_id,omitempty"`
	Username            string     `json:"username"`
	Balance             int64      `json:"balance"`
	XP                  int64      `json:"xp"`
	Level               int        `json:"level"`
	NextLevelXP         int64      `json:"next_level_xp"`
	LastDailyBonusClaim *time.Time `json:"last_daily_bonus_claim"`
	LastQuickBonusClaim *time.Time `json:"last_quick_bonus_claim"`
}

// DefaultUserState is the placeholder shown before the first fetch.
func DefaultUserState(username string) UserState {
	return UserState{
		Username:    username,
		Level:       1,
		NextLevelXP: NextLevelXP(1),
	}
}

func (u UserState) Validate() error {
	if u.Balance < 0 {
		return fmt.Errorf("balance must not be negative, got %d", u.Balance)
	}
	if u.XP < 0 {
		return fmt.Errorf("xp must not be negative, got %d", u.XP)
	}
	if u.Level < 1 {
		return fmt.Errorf("level must be at least 1, got %d", u.Level)
	}
	return nil
}

// Progress returns the XP bar fill in percent, capped at 100.
func (u UserState) Progress() float64 {
	next := u.NextLevelXP
	if next <= 0 {
		next = NextLevelXP(u.Level)
	}
	if next <= 0 {
		return 100
	}
	p := float64(u.XP) / float64(next) * 100
	if p > 100 {
		return 100
	}
	return p
}

// WithStanding returns a copy of u with balance, XP and level taken from s.
// Identity and bonus claim times are kept.
func (u UserState) WithStanding(s Standing) UserState {
	out := u.Clone()
	out.Balance = s.Balance
	out.XP = s.XP
	out.Level = s.Level
	out.NextLevelXP = s.NextLevelXP
	if out.NextLevelXP <= 0 {
		out.NextLevelXP = NextLevelXP(s.Level)
	}
	return out
}

// LastClaim returns the claim time recorded for a bonus kind.
func (u UserState) LastClaim(kind BonusKind) *time.Time {
	switch kind {
	case BonusDaily:
		return u.LastDailyBonusClaim
	case BonusQuick:
		return u.LastQuickBonusClaim
	}
	return nil
}

// Clone returns a deep copy so snapshots never alias store internals.
func (u UserState) Clone() UserState {
	out := u
	if u.UserID != nil {
		id := *u.UserID
		out.UserID = &id
	}
	out.LastDailyBonusClaim = cloneTime(u.LastDailyBonusClaim)
	out.LastQuickBonusClaim = cloneTime(u.LastQuickBonusClaim)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

type TelegramUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// DisplayName prefers the Telegram handle, then the first name, then a
// generated "Player NNNN" from the last four digits of the id.
func (u TelegramUser) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	id := strconv.FormatInt(u.ID, 10)
	if len(id) > 4 {
		id = id[len(id)-4:]
	}
	return "Player " + id
}

type UserSession struct {
	ID           int64        `json:"id" redis:"id"`
	SessionID    string       `json:"session_id" redis:"session_id"`
	TelegramUser TelegramUser `json:"telegram_user" redis:"telegram_user"`
	CreatedAt    time.Time    `json:"created_at" redis:"created_at"`
	LastAccessed time.Time    `json:"last_accessed" redis:"last_accessed"`
}
