package room

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/repository/connection/inmemory"
	"github.com/cinemasync/server/internal/repository/directory"
	sessionRedis "github.com/cinemasync/server/internal/repository/session/redis"
)

type fakeDirectoryRepo struct {
	rooms map[string]*domain.Room
}

func newFakeDirectoryRepo() *fakeDirectoryRepo {
	return &fakeDirectoryRepo{rooms: make(map[string]*domain.Room)}
}

func (f *fakeDirectoryRepo) CreateRoom(_ context.Context, room *domain.Room) error {
	stored := *room
	f.rooms[room.ID] = &stored
	return nil
}

func (f *fakeDirectoryRepo) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return domain.Room{}, directory.ErrRoomNotFound
	}
	out := *room
	out.Participants = append([]domain.Participant(nil), room.Participants...)
	return out, nil
}

func (f *fakeDirectoryRepo) ListActiveRooms(_ context.Context, params *directory.ListActiveRoomsParams) ([]domain.Room, error) {
	var out []domain.Room
	for _, room := range f.rooms {
		if room.IsActive && !room.IsPrivate {
			out = append(out, *room)
		}
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (f *fakeDirectoryRepo) AddParticipant(_ context.Context, params *directory.AddParticipantParams) error {
	room, ok := f.rooms[params.RoomID]
	if !ok {
		return directory.ErrRoomNotFound
	}
	if !room.HasParticipant(params.Participant.UserID) {
		room.Participants = append(room.Participants, params.Participant)
	}
	return nil
}

func (f *fakeDirectoryRepo) RemoveParticipant(_ context.Context, params *directory.RemoveParticipantParams) error {
	room, ok := f.rooms[params.RoomID]
	if !ok {
		return directory.ErrRoomNotFound
	}
	kept := room.Participants[:0]
	for _, p := range room.Participants {
		if p.UserID != params.UserID {
			kept = append(kept, p)
		}
	}
	room.Participants = kept
	return nil
}

func (f *fakeDirectoryRepo) SetParticipantOnline(_ context.Context, params *directory.SetParticipantOnlineParams) error {
	room, ok := f.rooms[params.RoomID]
	if !ok {
		return directory.ErrRoomNotFound
	}
	for i := range room.Participants {
		if room.Participants[i].UserID == params.UserID {
			room.Participants[i].IsOnline = params.IsOnline
			return nil
		}
	}
	return directory.ErrParticipantNotFound
}

func (f *fakeDirectoryRepo) UpdatePlayback(_ context.Context, params *directory.UpdatePlaybackParams) error {
	room, ok := f.rooms[params.RoomID]
	if !ok {
		return directory.ErrRoomNotFound
	}
	room.Playback = params.Playback
	return nil
}

func (f *fakeDirectoryRepo) SetMovieSource(_ context.Context, params *directory.SetMovieSourceParams) error {
	room, ok := f.rooms[params.RoomID]
	if !ok {
		return directory.ErrRoomNotFound
	}
	room.MovieSource = params.Source
	return nil
}

func (f *fakeDirectoryRepo) DeactivateRoom(_ context.Context, roomID string) error {
	room, ok := f.rooms[roomID]
	if !ok {
		return directory.ErrRoomNotFound
	}
	room.IsActive = false
	return nil
}

type fakeTaskQueue struct {
	enqueued []string
	delays   []time.Duration
}

func (f *fakeTaskQueue) EnqueueRoomDeactivation(_ context.Context, roomID string, delay time.Duration) error {
	f.enqueued = append(f.enqueued, roomID)
	f.delays = append(f.delays, delay)
	return nil
}

func newTestService(t *testing.T) (*service, *fakeDirectoryRepo, *fakeTaskQueue, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})

	directoryRepo := newFakeDirectoryRepo()
	sessionRepo := sessionRedis.NewRepo(rc, time.Hour)
	connRepo := inmemory.NewRepo()
	taskQueue := &fakeTaskQueue{}

	return NewService(directoryRepo, sessionRepo, connRepo, taskQueue, &Config{
		RoomCodeLength:    8,
		MaxParticipants:   10,
		DeactivationDelay: time.Minute,
	}), directoryRepo, taskQueue, s
}

func TestCreateAndJoinRoom(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:          "host-1",
		HostName:        "Alice",
		Password:        " secret ",
		EnableChat:      true,
		EnableReactions: true,
	})
	require.NoError(t, err)
	assert.Len(t, createResp.Room.ID, 8, "room code length")
	assert.True(t, createResp.Room.IsPrivate, "a password must imply a private room")
	assert.Equal(t, "Room "+createResp.Room.ID, createResp.Room.Name)
	assert.False(t, createResp.Room.Playback.IsPlaying)

	roomID := createResp.Room.ID

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:   roomID,
		UserID:   "user-2",
		UserName: "Bob",
		Password: "wrong",
		Conn:     &websocket.Conn{},
	})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	// the stored password was trimmed, so the bare form must match
	joinResp, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:   roomID,
		UserID:   "user-2",
		UserName: "Bob",
		Password: "secret",
		Conn:     &websocket.Conn{},
	})
	require.NoError(t, err)
	assert.Len(t, joinResp.Participants, 2)
	assert.Len(t, joinResp.Conns, 1)

	hostJoinResp, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:   roomID,
		UserID:   "host-1",
		UserName: "Alice",
		Password: " secret ",
		Conn:     &websocket.Conn{},
	})
	require.NoError(t, err)
	assert.Len(t, hostJoinResp.Participants, 2, "host was already on the roster")
	assert.Len(t, hostJoinResp.Conns, 2)
}

func TestJoinRoomIdempotent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:   "host-1",
		HostName: "Alice",
	})
	require.NoError(t, err)
	roomID := createResp.Room.ID

	first, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "host-1",
		Conn:   &websocket.Conn{},
	})
	require.NoError(t, err)
	assert.Len(t, first.Participants, 1)

	// a rejoin replaces the conn and leaves the roster alone
	second, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "host-1",
		Conn:   &websocket.Conn{},
	})
	require.NoError(t, err)
	assert.Len(t, second.Participants, 1)
	assert.Len(t, second.Conns, 1)
}

func TestUpdatePlayback(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:   "host-1",
		HostName: "Alice",
	})
	require.NoError(t, err)
	roomID := createResp.Room.ID

	for _, userID := range []string{"host-1", "user-2"} {
		_, err = svc.JoinRoom(ctx, &JoinRoomParams{
			RoomID: roomID,
			UserID: userID,
			Conn:   &websocket.Conn{},
		})
		require.NoError(t, err)
	}

	_, err = svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID:   roomID,
		SenderID: "user-2",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID:   roomID,
		SenderID: "host-1",
	})
	assert.ErrorIs(t, err, ErrNoMovieSource, "playback without a movie must be rejected")

	_, err = svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID:   roomID,
		SenderID: "stranger",
	})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.SetMovieSource(ctx, &SetMovieSourceParams{
		RoomID:   roomID,
		SenderID: "host-1",
		Source: domain.MovieSource{
			Kind:      domain.SourceDirectURL,
			Reference: "https://example.com/movie.mp4",
		},
	})
	require.NoError(t, err)

	updateResp, err := svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID:          roomID,
		SenderID:        "host-1",
		IsPlaying:       true,
		PositionSeconds: 42.0,
	})
	require.NoError(t, err)
	assert.True(t, updateResp.Playback.IsPlaying)
	assert.Equal(t, 42.0, updateResp.Playback.PositionSeconds)
	assert.Len(t, updateResp.Conns, 2, "the host hears its own change via broadcast")

	// the fractional position must survive the volatile store round trip
	state, err := svc.GetRoomState(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, state.Playback.PositionSeconds)
	assert.True(t, state.Playback.IsPlaying)
	assert.Empty(t, state.PasswordHash)
}

func TestSetMovieSourceResetsPlayback(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID: "host-1",
		MovieSource: domain.MovieSource{
			Kind:      domain.SourceDirectURL,
			Reference: "https://example.com/old.mp4",
		},
	})
	require.NoError(t, err)
	roomID := createResp.Room.ID

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "host-1",
		Conn:   &websocket.Conn{},
	})
	require.NoError(t, err)

	_, err = svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID:          roomID,
		SenderID:        "host-1",
		IsPlaying:       true,
		PositionSeconds: 1200.5,
	})
	require.NoError(t, err)

	setResp, err := svc.SetMovieSource(ctx, &SetMovieSourceParams{
		RoomID:   roomID,
		SenderID: "host-1",
		Source: domain.MovieSource{
			Kind:      domain.SourceDriveFile,
			Reference: "file-id-123",
			Name:      "Another Movie",
		},
	})
	require.NoError(t, err)
	assert.False(t, setResp.Playback.IsPlaying, "a video change must reset playback")
	assert.Equal(t, 0.0, setResp.Playback.PositionSeconds)

	state, err := svc.GetRoomState(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDriveFile, state.MovieSource.Kind)
	assert.Equal(t, 0.0, state.Playback.PositionSeconds)
}

func TestChatAndReactionGating(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:          "host-1",
		HostName:        "Alice",
		EnableChat:      false,
		EnableReactions: true,
	})
	require.NoError(t, err)
	roomID := createResp.Room.ID

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:   roomID,
		UserID:   "host-1",
		UserName: "Alice",
		Conn:     &websocket.Conn{},
	})
	require.NoError(t, err)

	_, err = svc.SendChatMessage(ctx, &SendChatMessageParams{
		RoomID:   roomID,
		SenderID: "host-1",
		Message:  "hello",
	})
	assert.ErrorIs(t, err, ErrChatDisabled)

	_, err = svc.SendReaction(ctx, &SendReactionParams{
		RoomID:   roomID,
		SenderID: "stranger",
		Reaction: "🔥",
	})
	assert.ErrorIs(t, err, ErrNotParticipant)

	reactionResp, err := svc.SendReaction(ctx, &SendReactionParams{
		RoomID:   roomID,
		SenderID: "host-1",
		Reaction: "🔥",
	})
	require.NoError(t, err)
	assert.Len(t, reactionResp.Conns, 1)
}

func TestSendChatMessage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:     "host-1",
		HostName:   "Alice",
		EnableChat: true,
	})
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:   createResp.Room.ID,
		UserID:   "host-1",
		UserName: "Alice",
		Conn:     &websocket.Conn{},
	})
	require.NoError(t, err)

	chatResp, err := svc.SendChatMessage(ctx, &SendChatMessageParams{
		RoomID:   createResp.Room.ID,
		SenderID: "host-1",
		Message:  "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", chatResp.SenderName)
	assert.False(t, chatResp.Timestamp.IsZero())
}

func TestLeaveRoomSchedulesDeactivation(t *testing.T) {
	svc, directoryRepo, taskQueue, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:   "host-1",
		HostName: "Alice",
	})
	require.NoError(t, err)
	roomID := createResp.Room.ID

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "host-1",
		Conn:   &websocket.Conn{},
	})
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "user-2",
		Conn:   &websocket.Conn{},
	})
	require.NoError(t, err)

	leaveResp, err := svc.LeaveRoom(ctx, &LeaveRoomParams{RoomID: roomID, UserID: "user-2"})
	require.NoError(t, err)
	assert.False(t, leaveResp.RoomEmptied)
	assert.Empty(t, taskQueue.enqueued)

	leaveResp, err = svc.LeaveRoom(ctx, &LeaveRoomParams{RoomID: roomID, UserID: "host-1"})
	require.NoError(t, err)
	assert.True(t, leaveResp.RoomEmptied)
	assert.Equal(t, []string{roomID}, taskQueue.enqueued)
	assert.Equal(t, []time.Duration{time.Minute}, taskQueue.delays)

	deactivated, err := svc.DeactivateRoomIfEmpty(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, deactivated)
	assert.False(t, directoryRepo.rooms[roomID].IsActive)

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "user-3",
		Conn:   &websocket.Conn{},
	})
	assert.ErrorIs(t, err, ErrRoomInactive)
}

func TestDeactivateRoomIfEmptySkipsRepopulatedRoom(t *testing.T) {
	svc, directoryRepo, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:   "host-1",
		HostName: "Alice",
	})
	require.NoError(t, err)
	roomID := createResp.Room.ID

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "host-1",
		Conn:   &websocket.Conn{},
	})
	require.NoError(t, err)

	// someone came back before the grace delay expired
	deactivated, err := svc.DeactivateRoomIfEmpty(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, deactivated)
	assert.True(t, directoryRepo.rooms[roomID].IsActive)
}

func TestPlaybackSurvivesShadowLoss(t *testing.T) {
	svc, _, _, mr := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		HostID:   "host-1",
		HostName: "Alice",
		MovieSource: domain.MovieSource{
			Kind:      domain.SourceDirectURL,
			Reference: "https://example.com/movie.mp4",
		},
	})
	require.NoError(t, err)
	roomID := createResp.Room.ID

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID: roomID,
		UserID: "host-1",
		Conn:   &websocket.Conn{},
	})
	require.NoError(t, err)

	_, err = svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID:          roomID,
		SenderID:        "host-1",
		IsPlaying:       true,
		PositionSeconds: 42.0,
	})
	require.NoError(t, err)

	// the volatile shadow is gone; the durable document must still hold the
	// accepted mutation
	mr.FlushAll()

	state, err := svc.GetRoomState(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, state.Playback.PositionSeconds)
	assert.True(t, state.Playback.IsPlaying)

	_, err = svc.SetMovieSource(ctx, &SetMovieSourceParams{
		RoomID:   roomID,
		SenderID: "host-1",
		Source: domain.MovieSource{
			Kind:      domain.SourceDriveFile,
			Reference: "file-id-123",
		},
	})
	require.NoError(t, err)

	mr.FlushAll()

	state, err = svc.GetRoomState(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, state.Playback.IsPlaying, "the reset must be durable too")
	assert.Equal(t, 0.0, state.Playback.PositionSeconds)
}

func TestGetActiveRoomsHidesPrivateRooms(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, &CreateRoomParams{HostID: "host-1", Name: "public"})
	require.NoError(t, err)

	_, err = svc.CreateRoom(ctx, &CreateRoomParams{HostID: "host-2", Name: "hidden", Password: "pw"})
	require.NoError(t, err)

	rooms, err := svc.GetActiveRooms(ctx, &GetActiveRoomsParams{})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "public", rooms[0].Name)
	assert.Empty(t, rooms[0].PasswordHash)
}
