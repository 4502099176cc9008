package models

import (
	"fmt"
	"sort"
)

const ReelCount = 3

const BigWinThreshold = 500

// Standing is the balance, XP and level the backend echoes back with every
// action result. Level is zero when the response carried none.
type Standing struct {
	Balance     int64 `json:"balance"`
	XP          int64 `json:"xp"`
	Level       int   `json:"level"`
	NextLevelXP int64 `json:"next_level_xp"`
}

func (s Standing) Known() bool {
	return s.Level > 0
}

type SpinResult struct {
	Symbols  []string `json:"symbols"`
	Winnings int64    `json:"winnings"`
	Message  string   `json:"message,omitempty"`
	Standing
}

// Summary is the backend's message, or a win/lose line when it sent none.
func (r SpinResult) Summary() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Winnings > 0:
		return "You won " + FormatCoins(r.Winnings) + "!"
	default:
		return "Try again!"
	}
}

func (r SpinResult) Validate() error {
	if len(r.Symbols) != ReelCount {
		return fmt.Errorf("expected %d symbols, got %d", ReelCount, len(r.Symbols))
	}
	for i, s := range r.Symbols {
		if !IsReelSymbol(s) {
			return fmt.Errorf("unknown symbol %q on reel %d", s, i)
		}
	}
	if r.Winnings < 0 {
		return fmt.Errorf("winnings must not be negative, got %d", r.Winnings)
	}
	return nil
}

type CoinSide string

const (
	CoinHeads CoinSide = "heads"
	CoinTails CoinSide = "tails"
)

func (c CoinSide) Valid() bool {
	return c == CoinHeads || c == CoinTails
}

type CoinFlipResult struct {
	Result   CoinSide `json:"result"`
	Winnings int64    `json:"winnings"`
	Message  string   `json:"message"`
	Standing
}

func (r CoinFlipResult) Won() bool {
	return r.Winnings > 0
}

type BonusKind string

const (
	BonusDaily BonusKind = "daily"
	BonusQuick BonusKind = "quick"
)

type BonusClaim struct {
	Kind    BonusKind `json:"kind"`
	Amount  int64     `json:"amount"`
	Message string    `json:"message,omitempty"`
	Standing
}

func (k BonusKind) Valid() bool {
	return k == BonusDaily || k == BonusQuick
}

type LeaderboardEntry struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username"`
	Level    int    `json:"level"`
	Balance  int64  `json:"balance"`
	XP       int64  `json:"xp"`
}

// SortLeaderboard orders entries by level, then XP, both descending.
func SortLeaderboard(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Level != entries[j].Level {
			return entries[i].Level > entries[j].Level
		}
		return entries[i].XP > entries[j].XP
	})
}
