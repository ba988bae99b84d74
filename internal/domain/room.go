package domain

import (
	"strings"
	"time"
)

// SourceKind tells the media source resolver how to interpret a movie reference.
type SourceKind string

const (
	SourceNone      SourceKind = "none"
	SourceDirectURL SourceKind = "direct-url"
	SourceDriveFile SourceKind = "drive-file"
	SourceEmbedded  SourceKind = "embedded-video"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceNone, SourceDirectURL, SourceDriveFile, SourceEmbedded:
		return true
	}
	return false
}

// MovieSource is an opaque descriptor. The server stores and forwards it;
// only the resolver on the client side may interpret the reference.
type MovieSource struct {
	Kind      SourceKind `json:"kind" bson:"kind"`
	Reference string     `json:"reference" bson:"reference"`
	Name      string     `json:"name,omitempty" bson:"name,omitempty"`
}

func (m MovieSource) IsZero() bool {
	return m.Kind == "" || m.Kind == SourceNone
}

// PlaybackState is the single authoritative playback snapshot of a room.
// Clients hold a shadow copy that is always overwritable by server broadcasts.
type PlaybackState struct {
	IsPlaying       bool      `json:"is_playing" bson:"is_playing" redis:"is_playing"`
	PositionSeconds float64   `json:"position_seconds" bson:"position_seconds" redis:"position_seconds"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

type Participant struct {
	UserID   string    `json:"user_id" bson:"user_id"`
	Name     string    `json:"name" bson:"name"`
	IsHost   bool      `json:"is_host" bson:"is_host"`
	IsOnline bool      `json:"is_online" bson:"is_online"`
	JoinedAt time.Time `json:"joined_at" bson:"joined_at"`
}

type Room struct {
	ID              string        `json:"room_id" bson:"room_id"`
	Name            string        `json:"name" bson:"name"`
	Description     string        `json:"description" bson:"description"`
	HostID          string        `json:"host_id" bson:"host_id"`
	IsPrivate       bool          `json:"is_private" bson:"is_private"`
	PasswordHash    string        `json:"-" bson:"password_hash,omitempty"`
	MovieSource     MovieSource   `json:"movie_source" bson:"movie_source"`
	EnableChat      bool          `json:"enable_chat" bson:"enable_chat"`
	EnableReactions bool          `json:"enable_reactions" bson:"enable_reactions"`
	MaxParticipants int           `json:"max_participants" bson:"max_participants"`
	Participants    []Participant `json:"participants" bson:"participants"`
	Playback        PlaybackState `json:"playback_state" bson:"playback_state"`
	IsActive        bool          `json:"is_active" bson:"is_active"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at"`
}

// IsHost reports whether userID holds playback authority for the room.
// Both sides of the comparison are canonical strings, normalized at ingestion.
func (r *Room) IsHost(userID string) bool {
	return r.HostID != "" && r.HostID == userID
}

func (r *Room) HasParticipant(userID string) bool {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return true
		}
	}
	return false
}

// CanonicalID normalizes an identifier to its canonical string form.
// Every identifier entering the system passes through here exactly once.
func CanonicalID(id string) string {
	return strings.TrimSpace(id)
}
