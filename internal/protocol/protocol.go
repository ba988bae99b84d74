// Package protocol defines the real-time channel events exchanged between a
// room participant and the coordinator. Every payload is a concrete struct
// validated at the channel boundary; handlers never branch on message text.
package protocol

import (
	"time"

	"github.com/cinemasync/server/internal/domain"
)

const (
	EventJoinRoom        = "join_room"
	EventRoomJoined      = "room_joined"
	EventLeaveRoom       = "leave_room"
	EventRoomLeft        = "room_left"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventUpdatePlayback  = "update_playback"
	EventPlaybackUpdated = "playback_updated"
	EventSetRoomVideo    = "set_room_video"
	EventVideoChanged    = "video_changed"
	EventChatMessage     = "chat_message"
	EventNewChatMessage  = "new_chat_message"
	EventReaction        = "reaction"
	EventNewReaction     = "new_reaction"
	EventError           = "error"
	EventAck             = "ack"
)

type JoinRoomPayload struct {
	RoomID   string `json:"room_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	Password string `json:"password,omitempty"`
}

type RoomJoinedPayload struct {
	Room domain.Room `json:"room"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"room_id" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
}

type RoomLeftPayload struct {
	RoomID string `json:"room_id"`
}

// RosterPayload carries the full participant list on every membership change.
// Clients replace their roster wholesale instead of applying diffs.
type RosterPayload struct {
	UserID       string               `json:"user_id"`
	RoomID       string               `json:"room_id"`
	Participants []domain.Participant `json:"participants"`
}

// PlaybackRequest is the mutable subset of a playback state a host may set.
type PlaybackRequest struct {
	IsPlaying       bool    `json:"is_playing"`
	PositionSeconds float64 `json:"position_seconds"`
}

type UpdatePlaybackPayload struct {
	RoomID        string          `json:"room_id" validate:"required"`
	UserID        string          `json:"user_id" validate:"required"`
	PlaybackState PlaybackRequest `json:"playback_state"`
}

type PlaybackUpdatedPayload struct {
	PlaybackState domain.PlaybackState `json:"playback_state"`
	UpdatedBy     string               `json:"updated_by"`
}

type SetRoomVideoPayload struct {
	RoomID string             `json:"room_id" validate:"required"`
	UserID string             `json:"user_id" validate:"required"`
	Source domain.MovieSource `json:"movie_source"`
}

type VideoChangedPayload struct {
	Source        domain.MovieSource   `json:"movie_source"`
	PlaybackState domain.PlaybackState `json:"playback_state"`
}

type ChatMessagePayload struct {
	RoomID  string `json:"room_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message" validate:"required,max=2000"`
}

type NewChatMessagePayload struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ReactionPayload struct {
	RoomID   string `json:"room_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	Reaction string `json:"reaction" validate:"required,max=32"`
}

type NewReactionPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Reaction string `json:"reaction"`
}

type ErrorPayload struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// AckPayload answers a frame that carried a client-assigned id. Success is
// still confirmed by the follow-up broadcast; the ack only reports acceptance.
type AckPayload struct {
	OK    bool          `json:"ok"`
	Error *ErrorPayload `json:"error,omitempty"`
}
