package session

import (
	"errors"

	"casino-miniapp/internal/gateway"
)

var (
	ErrMissingIdentity = errors.New("session: no player identity, launch the game from Telegram")
	ErrBusy            = errors.New("session: action already in progress")
	ErrInvalidChoice   = errors.New("session: coin choice must be heads or tails")
	ErrOnCooldown      = errors.New("session: bonus is still on cooldown")
)

type NoticeKind string

const (
	NoticeMissingIdentity  NoticeKind = "missing_identity"
	NoticeRemoteRejection  NoticeKind = "remote_rejection"
	NoticeTransportFailure NoticeKind = "transport_failure"
)

// Notice is the dismissible message shown when an action fails. None of
// them are fatal and the player may retry.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

var (
	missingIdentityNotice = Notice{
		Kind:    NoticeMissingIdentity,
		Title:   "Launch via Telegram",
		Message: "Open the game from the Telegram bot to play.",
	}
	transportNotice = Notice{
		Kind:    NoticeTransportFailure,
		Title:   "Connection problem",
		Message: "Could not reach the game server. Please try again.",
	}
)

// Classify maps an action error onto the notice taxonomy. Errors that are
// not one of the three kinds report false.
func Classify(err error) (Notice, bool) {
	switch {
	case err == nil:
		return Notice{}, false
	case errors.Is(err, ErrMissingIdentity):
		return missingIdentityNotice, true
	case gateway.IsRemote(err):
		return Notice{Kind: NoticeRemoteRejection, Title: "Action rejected", Message: gateway.Reason(err)}, true
	case gateway.IsTransport(err):
		return transportNotice, true
	}
	return Notice{}, false
}
