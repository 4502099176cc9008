package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// RedisService keeps what the companion server needs across requests:
// auth sessions, a short-lived leaderboard copy and action rate limits.
// Game state itself lives on the backend.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

// NewRedisServiceWithClient wraps an existing client.
func NewRedisServiceWithClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error {
	key := fmt.Sprintf(KeyUserSession, session.ID, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.client.Set(ctx, key, data, expiry).Err()
}

// GetUserSession loads a session and slides its expiry forward.
func (s *RedisService) GetUserSession(ctx context.Context, userID int64, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session.LastAccessed = time.Now()
	if updated, err := json.Marshal(session); err == nil {
		s.client.Set(ctx, key, updated, TTLUserSession)
	}

	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, userID int64, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) StoreUser(ctx context.Context, user *models.TelegramUser) error {
	key := fmt.Sprintf(KeyUserInfo, user.ID)

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	return s.client.Set(ctx, key, data, TTLUserInfo).Err()
}

func (s *RedisService) GetUser(ctx context.Context, userID int64) (*models.TelegramUser, error) {
	key := fmt.Sprintf(KeyUserInfo, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var user models.TelegramUser
	err = json.Unmarshal([]byte(data), &user)
	return &user, err
}

func (s *RedisService) CacheLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	return s.client.Set(ctx, KeyLeaderboard, data, TTLLeaderboard).Err()
}

// GetCachedLeaderboard reports false on a miss.
func (s *RedisService) GetCachedLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, bool, error) {
	data, err := s.client.Get(ctx, KeyLeaderboard).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal leaderboard: %w", err)
	}
	return entries, true, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, userID int64, action string) error {
	key := fmt.Sprintf(KeyRateLimit, userID, action)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
