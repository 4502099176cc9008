package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"casino-miniapp/internal/models"
)

func TestUserStateValidate(t *testing.T) {
	state := models.DefaultUserState("alice")
	assert.NoError(t, state.Validate())
	assert.Equal(t, int64(100), state.NextLevelXP)

	state.Level = 0
	assert.Error(t, state.Validate())

	state = models.DefaultUserState("alice")
	state.XP = -1
	assert.Error(t, state.Validate())
}

func TestUserStateProgress(t *testing.T) {
	state := models.UserState{Level: 2, XP: 150, NextLevelXP: 300}
	assert.InDelta(t, 50.0, state.Progress(), 0.001)

	state.XP = 900
	assert.Equal(t, 100.0, state.Progress())

	state = models.UserState{Level: 1, XP: 25}
	assert.InDelta(t, 25.0, state.Progress(), 0.001)
}

func TestUserStateCloneDoesNotAlias(t *testing.T) {
	claim := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	id := int64(42)
	state := models.UserState{UserID: &id, Level: 1, LastDailyBonusClaim: &claim}

	clone := state.Clone()
	*clone.LastDailyBonusClaim = clone.LastDailyBonusClaim.Add(time.Hour)
	*clone.UserID = 7

	assert.Equal(t, claim, *state.LastDailyBonusClaim)
	assert.Equal(t, int64(42), *state.UserID)
}

func TestNextLevelXP(t *testing.T) {
	assert.Equal(t, int64(100), models.NextLevelXP(1))
	assert.Equal(t, int64(300), models.NextLevelXP(2))
	assert.Equal(t, int64(10000), models.NextLevelXP(12))
	assert.Equal(t, int64(10000), models.NextLevelXP(40))
	assert.Equal(t, int64(100), models.NextLevelXP(0))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "neo", models.TelegramUser{ID: 1, Username: "neo", FirstName: "Thomas"}.DisplayName())
	assert.Equal(t, "Thomas", models.TelegramUser{ID: 1, FirstName: "Thomas"}.DisplayName())
	assert.Equal(t, "Player 6789", models.TelegramUser{ID: 123456789}.DisplayName())
	assert.Equal(t, "Player 42", models.TelegramUser{ID: 42}.DisplayName())
}

func TestSpinResultSummary(t *testing.T) {
	assert.Equal(t, "You won 250 coins!", models.SpinResult{Winnings: 250}.Summary())
	assert.Equal(t, "Try again!", models.SpinResult{}.Summary())
	assert.Equal(t, "Jackpot", models.SpinResult{Winnings: 5000, Message: "Jackpot"}.Summary())
}

func TestSpinResultValidate(t *testing.T) {
	ok := models.SpinResult{Symbols: []string{"💎", "🍒", "⭐"}, Winnings: 0}
	assert.NoError(t, ok.Validate())

	short := models.SpinResult{Symbols: []string{"💎", "🍒"}}
	assert.Error(t, short.Validate())

	unknown := models.SpinResult{Symbols: []string{"💎", "🍒", "?"}}
	assert.Error(t, unknown.Validate())
}

func TestSortLeaderboard(t *testing.T) {
	entries := []models.LeaderboardEntry{
		{Username: "a", Level: 2, XP: 150},
		{Username: "b", Level: 3, XP: 310},
		{Username: "c", Level: 2, XP: 290},
	}
	models.SortLeaderboard(entries)

	assert.Equal(t, "b", entries[0].Username)
	assert.Equal(t, "c", entries[1].Username)
	assert.Equal(t, "a", entries[2].Username)
}

func TestAllReelSymbols(t *testing.T) {
	assert.Len(t, models.AllReelSymbols, 9)
	assert.True(t, models.IsReelSymbol(models.WildSymbol))
	assert.True(t, models.IsReelSymbol(models.ScatterSymbol))
	assert.False(t, models.IsReelSymbol("?"))
	assert.True(t, models.CoinTails.Valid())
	assert.False(t, models.CoinSide("edge").Valid())
}

func TestWithStandingKeepsIdentityAndClaims(t *testing.T) {
	claim := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	id := int64(9)
	state := models.UserState{UserID: &id, Username: "alice", Balance: 100, Level: 1, LastQuickBonusClaim: &claim}

	next := state.WithStanding(models.Standing{Balance: 250, XP: 310, Level: 3})
	assert.Equal(t, int64(250), next.Balance)
	assert.Equal(t, 3, next.Level)
	assert.Equal(t, int64(600), next.NextLevelXP)
	assert.Equal(t, "alice", next.Username)
	assert.Equal(t, &claim, next.LastClaim(models.BonusQuick))
	assert.Nil(t, next.LastClaim(models.BonusDaily))
	assert.Equal(t, int64(100), state.Balance)
}

func TestStandingKnown(t *testing.T) {
	assert.False(t, models.Standing{}.Known())
	assert.True(t, models.Standing{Level: 1}.Known())
	assert.True(t, models.BonusDaily.Valid())
	assert.False(t, models.BonusKind("weekly").Valid())
}
