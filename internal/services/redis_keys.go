package services

import "time"

const (
	KeyUserSession = "user:%d:session:%s"
	KeyUserInfo    = "user:%d:info"
	KeyLeaderboard = "leaderboard:top"
	KeyRateLimit   = "ratelimit:%d:%s"

	TTLUserSession = 24 * time.Hour
	TTLUserInfo    = 30 * 24 * time.Hour // 30 days
	TTLLeaderboard = 10 * time.Second

	DefaultRateLimitActions = 30 // per minute
)
