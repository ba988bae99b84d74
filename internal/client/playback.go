package client

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/protocol"
	"github.com/cinemasync/server/pkg/wsrouter"
)

// UpdatePlayback asks the coordinator to move the room's playback state. The
// local player is not touched here; the change is applied when the
// playback_updated broadcast comes back, the same path every follower takes.
func (s *Session) UpdatePlayback(ctx context.Context, isPlaying bool, positionSeconds float64) error {
	frame, ch, err := s.hostFrame(protocol.EventUpdatePlayback, protocol.UpdatePlaybackPayload{
		RoomID: s.cfg.RoomID,
		UserID: s.cfg.UserID,
		PlaybackState: protocol.PlaybackRequest{
			IsPlaying:       isPlaying,
			PositionSeconds: positionSeconds,
		},
	}, true)
	if err != nil {
		return err
	}

	return ch.Send(ctx, frame)
}

// SetRoomVideo swaps the room's movie source. Unlike UpdatePlayback it is
// legal with no movie selected yet; that is how the first one gets picked.
func (s *Session) SetRoomVideo(ctx context.Context, source domain.MovieSource) error {
	frame, ch, err := s.hostFrame(protocol.EventSetRoomVideo, protocol.SetRoomVideoPayload{
		RoomID: s.cfg.RoomID,
		UserID: s.cfg.UserID,
		Source: source,
	}, false)
	if err != nil {
		return err
	}

	return ch.Send(ctx, frame)
}

// hostFrame builds a host-only frame, failing fast locally instead of round
// tripping a request the coordinator is guaranteed to reject.
func (s *Session) hostFrame(eventType string, payload any, needsMovie bool) (*wsrouter.Message, Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase() != PhaseJoined {
		return nil, nil, ErrNotJoined
	}
	if !s.room.IsHost(s.cfg.UserID) {
		return nil, nil, ErrNotHost
	}
	if needsMovie && s.room.MovieSource.IsZero() {
		return nil, nil, ErrNoMovie
	}

	frame, err := s.newFrame(eventType, uuid.NewString(), payload)
	if err != nil {
		return nil, nil, err
	}

	return frame, s.ch, nil
}

// applyPlaybackUpdate converges the local player on the broadcast state.
// Play/pause is applied unconditionally; position only moves when local
// drift exceeds the threshold, so minor decoder skew never causes a seek.
func (s *Session) applyPlaybackUpdate(payload *protocol.PlaybackUpdatedPayload) {
	s.mu.Lock()
	s.playback = payload.PlaybackState
	s.room.Playback = payload.PlaybackState
	player := s.player
	threshold := s.cfg.DriftThreshold
	s.mu.Unlock()

	if player == nil {
		return
	}

	player.SetPlaying(payload.PlaybackState.IsPlaying)
	if drift := math.Abs(player.Position() - payload.PlaybackState.PositionSeconds); drift > threshold {
		player.Seek(payload.PlaybackState.PositionSeconds)
	}
}

// applyVideoChange swaps the loaded movie and resets local playback to the
// broadcast state, which the coordinator always resets to paused at zero.
func (s *Session) applyVideoChange(ctx context.Context, payload *protocol.VideoChangedPayload) {
	s.mu.Lock()
	s.room.MovieSource = payload.Source
	s.playback = payload.PlaybackState
	s.room.Playback = payload.PlaybackState
	s.mu.Unlock()

	s.applySnapshot(ctx, payload.Source, payload.PlaybackState)
}

// applySnapshot drives the player to an authoritative room state: resolve and
// load the movie, then match play state and position.
func (s *Session) applySnapshot(ctx context.Context, source domain.MovieSource, playback domain.PlaybackState) {
	s.mu.Lock()
	player := s.player
	resolver := s.resolver
	s.mu.Unlock()

	if player == nil {
		return
	}

	if !source.IsZero() && resolver != nil {
		url, err := resolver.Resolve(ctx, source)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve movie source", "kind", source.Kind, "error", err)
		} else {
			player.Load(url)
		}
	}

	player.SetPlaying(playback.IsPlaying)
	player.Seek(playback.PositionSeconds)
}
