package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var LevelThresholds = []int64{0, 100, 300, 600, 1000, 1500, 2200, 3000, 4000, 5500, 7500, 10000}

// NextLevelXP returns the XP needed to leave the given level. Past the last
// threshold it keeps returning the final one.
func NextLevelXP(level int) int64 {
	if level < 1 {
		level = 1
	}
	if level >= len(LevelThresholds) {
		return LevelThresholds[len(LevelThresholds)-1]
	}
	return LevelThresholds[level]
}

func GenerateSessionID() string {
	return uuid.NewString()
}

func GeneratePlayID() string {
	return fmt.Sprintf("play_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func FormatCoins(amount int64) string {
	return fmt.Sprintf("%d coins", amount)
}
