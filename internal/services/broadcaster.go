package services

import "casino-miniapp/internal/session"

// Broadcaster delivers session events to a player's open connections.
type Broadcaster interface {
	Publish(userID int64, event session.Event)
}

type BroadcasterFunc func(userID int64, event session.Event)

func (f BroadcasterFunc) Publish(userID int64, event session.Event) { f(userID, event) }
