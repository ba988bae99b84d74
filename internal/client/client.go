// Package client implements the participant side of the room protocol: the
// session lifecycle state machine, the playback convergence engine and the
// presence/messaging relay. One Session drives one room on one channel.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/cinemasync/server/internal/domain"
)

var (
	// ErrPasswordRequired short-circuits a join into a private room before
	// any frame is sent; a join without credentials is a guaranteed fail.
	ErrPasswordRequired = errors.New("password required")
	ErrNotJoined        = errors.New("not joined to a room")
	ErrNotHost          = errors.New("only the host can control playback")
	ErrNoMovie          = errors.New("no movie source selected")
	ErrSessionClosed    = errors.New("session closed")
	ErrJoinTimeout      = errors.New("join timed out")
	ErrReconnectFailed  = errors.New("reconnect attempts exhausted")
)

// Phase is the lifecycle state of a SessionHandle.
type Phase int32

const (
	PhaseInitial Phase = iota
	PhaseConnecting
	PhaseJoining
	PhaseJoined
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseConnecting:
		return "connecting"
	case PhaseJoining:
		return "joining"
	case PhaseJoined:
		return "joined"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Player is the local media player the sync engine drives. Followers never
// push local player state back to the room; the flow is one-way.
type Player interface {
	SetPlaying(playing bool)
	Position() float64
	Seek(seconds float64)
	Load(url string)
}

// MediaResolver turns an opaque movie source descriptor into a playable URL.
type MediaResolver interface {
	Resolve(ctx context.Context, source domain.MovieSource) (string, error)
}

// Directory is the REST room directory used to pre-populate metadata before
// the real-time channel joins.
type Directory interface {
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
}

// TokenProvider supplies the short-lived identity credential.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider for credentials that never rotate.
type StaticToken string

func (t StaticToken) Token(_ context.Context) (string, error) {
	return string(t), nil
}

type Config struct {
	RoomID         string
	UserID         string
	JoinTimeout    time.Duration
	DriftThreshold float64
	ReconnectBase  time.Duration
	ReconnectMax   time.Duration
	MaxReconnects  int
}

func (cfg *Config) withDefaults() Config {
	out := *cfg
	out.RoomID = domain.CanonicalID(out.RoomID)
	out.UserID = domain.CanonicalID(out.UserID)
	if out.JoinTimeout <= 0 {
		out.JoinTimeout = 10 * time.Second
	}
	if out.DriftThreshold <= 0 {
		out.DriftThreshold = 0.5
	}
	if out.ReconnectBase <= 0 {
		out.ReconnectBase = 500 * time.Millisecond
	}
	if out.ReconnectMax <= 0 {
		out.ReconnectMax = 30 * time.Second
	}
	if out.MaxReconnects <= 0 {
		out.MaxReconnects = 5
	}
	return out
}
