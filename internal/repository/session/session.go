// Package session defines the volatile per-room state contract: the live
// playback snapshot served on the hot path while a room has participants.
package session

import (
	"errors"

	"github.com/cinemasync/server/internal/domain"
)

var ErrPlaybackNotFound = errors.New("playback not found")

type SetPlaybackParams struct {
	RoomID   string
	Playback domain.PlaybackState
}
