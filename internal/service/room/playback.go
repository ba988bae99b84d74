package room

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/repository/directory"
	"github.com/cinemasync/server/internal/repository/session"
)

type UpdatePlaybackParams struct {
	RoomID          string
	SenderID        string
	IsPlaying       bool
	PositionSeconds float64
}

type UpdatePlaybackResponse struct {
	Playback domain.PlaybackState
	Conns    []*websocket.Conn
}

// UpdatePlayback replaces the room's authoritative playback state. Only the
// host's mutations are accepted; acceptance is observed by every participant
// through the playback_updated broadcast, never by a direct success reply.
func (s service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	room, err := s.getRoom(ctx, params.RoomID)
	if err != nil {
		return UpdatePlaybackResponse{}, err
	}

	if !room.HasParticipant(params.SenderID) {
		return UpdatePlaybackResponse{}, ErrNotParticipant
	}

	if !room.IsHost(params.SenderID) {
		return UpdatePlaybackResponse{}, ErrPermissionDenied
	}

	if room.MovieSource.IsZero() {
		return UpdatePlaybackResponse{}, ErrNoMovieSource
	}

	playback := domain.PlaybackState{
		IsPlaying:       params.IsPlaying,
		PositionSeconds: params.PositionSeconds,
		UpdatedAt:       time.Now().UTC(),
	}

	// the durable document is written first; the volatile shadow is only a
	// cache and must never be the sole holder of an accepted mutation
	if err := s.directoryRepo.UpdatePlayback(ctx, &directory.UpdatePlaybackParams{
		RoomID:   params.RoomID,
		Playback: playback,
	}); err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to persist playback: %w", err)
	}

	if err := s.sessionRepo.SetPlayback(ctx, &session.SetPlaybackParams{
		RoomID:   params.RoomID,
		Playback: playback,
	}); err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to set playback: %w", err)
	}

	return UpdatePlaybackResponse{
		Playback: playback,
		Conns:    s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type SetMovieSourceParams struct {
	RoomID   string
	SenderID string
	Source   domain.MovieSource
}

type SetMovieSourceResponse struct {
	Source   domain.MovieSource
	Playback domain.PlaybackState
	Conns    []*websocket.Conn
}

// SetMovieSource replaces the room's movie source and resets playback to a
// paused state at position zero. This is a distinct operation from playback
// mutation; the broadcast carries the reset state so followers converge.
func (s service) SetMovieSource(ctx context.Context, params *SetMovieSourceParams) (SetMovieSourceResponse, error) {
	room, err := s.getRoom(ctx, params.RoomID)
	if err != nil {
		return SetMovieSourceResponse{}, err
	}

	if !room.HasParticipant(params.SenderID) {
		return SetMovieSourceResponse{}, ErrNotParticipant
	}

	if !room.IsHost(params.SenderID) {
		return SetMovieSourceResponse{}, ErrPermissionDenied
	}

	if err := s.directoryRepo.SetMovieSource(ctx, &directory.SetMovieSourceParams{
		RoomID: params.RoomID,
		Source: params.Source,
	}); err != nil {
		return SetMovieSourceResponse{}, fmt.Errorf("failed to set movie source: %w", err)
	}

	playback := domain.PlaybackState{
		IsPlaying:       false,
		PositionSeconds: 0,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.directoryRepo.UpdatePlayback(ctx, &directory.UpdatePlaybackParams{
		RoomID:   params.RoomID,
		Playback: playback,
	}); err != nil {
		return SetMovieSourceResponse{}, fmt.Errorf("failed to persist playback reset: %w", err)
	}
	if err := s.sessionRepo.SetPlayback(ctx, &session.SetPlaybackParams{
		RoomID:   params.RoomID,
		Playback: playback,
	}); err != nil {
		return SetMovieSourceResponse{}, fmt.Errorf("failed to reset playback: %w", err)
	}

	return SetMovieSourceResponse{
		Source:   params.Source,
		Playback: playback,
		Conns:    s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}
