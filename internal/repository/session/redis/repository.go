package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/repository/session"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

func (r repo) getPlaybackKey(roomID string) string {
	return "room:" + roomID + ":playback"
}

func (r repo) SetPlayback(ctx context.Context, params *session.SetPlaybackParams) error {
	playbackKey := r.getPlaybackKey(params.RoomID)
	if err := r.rc.HSet(ctx, playbackKey,
		"is_playing", params.Playback.IsPlaying,
		"position_seconds", params.Playback.PositionSeconds,
		"updated_at", params.Playback.UpdatedAt.UnixMilli(),
	).Err(); err != nil {
		return fmt.Errorf("failed to set playback: %w", err)
	}

	r.rc.Expire(ctx, playbackKey, r.expireDuration)

	return nil
}

func (r repo) GetPlayback(ctx context.Context, roomID string) (domain.PlaybackState, error) {
	playbackKey := r.getPlaybackKey(roomID)
	cmd := r.rc.HGetAll(ctx, playbackKey)
	fields, err := cmd.Result()
	if err != nil {
		return domain.PlaybackState{}, fmt.Errorf("failed to get playback: %w", err)
	}

	if len(fields) == 0 {
		return domain.PlaybackState{}, session.ErrPlaybackNotFound
	}

	r.rc.Expire(ctx, playbackKey, r.expireDuration)

	var raw struct {
		IsPlaying       bool    `redis:"is_playing"`
		PositionSeconds float64 `redis:"position_seconds"`
		UpdatedAt       int64   `redis:"updated_at"`
	}
	if err := cmd.Scan(&raw); err != nil {
		return domain.PlaybackState{}, fmt.Errorf("failed to scan playback: %w", err)
	}

	return domain.PlaybackState{
		IsPlaying:       raw.IsPlaying,
		PositionSeconds: raw.PositionSeconds,
		UpdatedAt:       time.UnixMilli(raw.UpdatedAt),
	}, nil
}

func (r repo) RemovePlayback(ctx context.Context, roomID string) error {
	if err := r.rc.Del(ctx, r.getPlaybackKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to remove playback: %w", err)
	}

	return nil
}
