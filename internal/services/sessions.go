package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/gateway"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/session"
)

// SessionManager keeps one live game session per Telegram user, shared by
// every request and socket that user opens.
type SessionManager struct {
	gw          gateway.Gateway
	broadcaster Broadcaster
	opts        []session.Option

	mu       sync.Mutex
	sessions map[int64]*session.Session
}

func NewSessionManager(gw gateway.Gateway, broadcaster Broadcaster, opts ...session.Option) *SessionManager {
	return &SessionManager{
		gw:          gw,
		broadcaster: broadcaster,
		opts:        opts,
		sessions:    make(map[int64]*session.Session),
	}
}

// Open returns the user's session, creating and loading it on first use.
// A failed initial load still returns the session; its state stays on the
// placeholder until the next reconciliation.
func (m *SessionManager) Open(ctx context.Context, user models.TelegramUser) (*session.Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[user.ID]; ok {
		m.mu.Unlock()
		return s, nil
	}

	userID := user.ID
	opts := append(append([]session.Option(nil), m.opts...), session.WithSink(func(ev session.Event) {
		if m.broadcaster != nil {
			m.broadcaster.Publish(userID, ev)
		}
	}))
	s, err := session.New(&user, m.gw, opts...)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.sessions[user.ID] = s
	m.mu.Unlock()

	log.Info().Int64("user_id", user.ID).Str("username", user.DisplayName()).Msg("game session opened")

	if err := s.Load(ctx); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("initial state load failed")
	}
	return s, nil
}

func (m *SessionManager) Get(userID int64) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *SessionManager) Close(userID int64) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
		log.Info().Int64("user_id", userID).Msg("game session closed")
	}
}

func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int64]*session.Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
