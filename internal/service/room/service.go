package room

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/repository/directory"
	"github.com/cinemasync/server/internal/repository/session"
	"github.com/cinemasync/server/pkg/randstr"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomInactive      = errors.New("room is no longer active")
	ErrRoomFull          = errors.New("room is full")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrPermissionDenied  = errors.New("only host can control playback")
	ErrNotParticipant    = errors.New("user not in room")
	ErrNoMovieSource     = errors.New("no movie source selected")
	ErrChatDisabled      = errors.New("chat is disabled in this room")
	ErrReactionsDisabled = errors.New("reactions are disabled in this room")
)

type iDirectoryRepo interface {
	CreateRoom(context.Context, *domain.Room) error
	GetRoom(context.Context, string) (domain.Room, error)
	ListActiveRooms(context.Context, *directory.ListActiveRoomsParams) ([]domain.Room, error)
	AddParticipant(context.Context, *directory.AddParticipantParams) error
	RemoveParticipant(context.Context, *directory.RemoveParticipantParams) error
	SetParticipantOnline(context.Context, *directory.SetParticipantOnlineParams) error
	UpdatePlayback(context.Context, *directory.UpdatePlaybackParams) error
	SetMovieSource(context.Context, *directory.SetMovieSourceParams) error
	DeactivateRoom(context.Context, string) error
}

type iSessionRepo interface {
	SetPlayback(context.Context, *session.SetPlaybackParams) error
	GetPlayback(context.Context, string) (domain.PlaybackState, error)
	RemovePlayback(context.Context, string) error
}

type iConnRepo interface {
	Add(conn *websocket.Conn, roomID, userID string) error
	RemoveByConn(conn *websocket.Conn) (string, string, error)
	RemoveByUser(roomID, userID string) error
	GetRoomConns(roomID string) []*websocket.Conn
}

type iTaskQueue interface {
	EnqueueRoomDeactivation(ctx context.Context, roomID string, delay time.Duration) error
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	RoomCodeLength    int
	MaxParticipants   int
	DeactivationDelay time.Duration
}

type service struct {
	directoryRepo iDirectoryRepo
	sessionRepo   iSessionRepo
	connRepo      iConnRepo
	taskQueue     iTaskQueue
	generator     iGenerator
	cfg           *Config
}

func NewService(directoryRepo iDirectoryRepo, sessionRepo iSessionRepo, connRepo iConnRepo, taskQueue iTaskQueue, cfg *Config) *service {
	s := service{
		directoryRepo: directoryRepo,
		sessionRepo:   sessionRepo,
		connRepo:      connRepo,
		taskQueue:     taskQueue,
		cfg:           cfg,
	}

	// room codes look like the original short invite codes, e.g. "4F7A2B9C"
	letterBytes := []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

// getRoom loads a room and overlays the live playback snapshot when one
// exists; the volatile copy wins over the persisted one while the room is hot.
func (s service) getRoom(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.directoryRepo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			return domain.Room{}, ErrRoomNotFound
		}
		return domain.Room{}, err
	}

	playback, err := s.sessionRepo.GetPlayback(ctx, roomID)
	if err == nil {
		room.Playback = playback
	} else if !errors.Is(err, session.ErrPlaybackNotFound) {
		return domain.Room{}, err
	}

	return room, nil
}
