// Package directory defines the persistent room store contract. Rooms are
// server-owned documents; participants and playback snapshots hang off them.
package directory

import (
	"errors"

	"github.com/cinemasync/server/internal/domain"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
)

type AddParticipantParams struct {
	RoomID      string
	Participant domain.Participant
}

type RemoveParticipantParams struct {
	RoomID string
	UserID string
}

type SetParticipantOnlineParams struct {
	RoomID   string
	UserID   string
	IsOnline bool
}

type UpdatePlaybackParams struct {
	RoomID   string
	Playback domain.PlaybackState
}

type SetMovieSourceParams struct {
	RoomID string
	Source domain.MovieSource
}

type ListActiveRoomsParams struct {
	Limit int
	Skip  int
}
