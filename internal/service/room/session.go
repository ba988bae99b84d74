package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/repository/connection"
	"github.com/cinemasync/server/internal/repository/directory"
	"github.com/cinemasync/server/internal/repository/session"
)

type CreateRoomParams struct {
	HostID          string
	HostName        string
	Name            string
	Description     string
	Password        string
	IsPrivate       bool
	EnableChat      bool
	EnableReactions bool
	MaxParticipants int
	MovieSource     domain.MovieSource
}

type CreateRoomResponse struct {
	Room domain.Room
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	now := time.Now().UTC()

	maxParticipants := params.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = s.cfg.MaxParticipants
	}

	var passwordHash string
	if password := strings.TrimSpace(params.Password); password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return CreateRoomResponse{}, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hash)
		// a password implies a private room regardless of the flag sent
		params.IsPrivate = true
	}

	room := domain.Room{
		ID:              s.generator.GenerateRandomString(s.cfg.RoomCodeLength),
		Name:            params.Name,
		Description:     params.Description,
		HostID:          params.HostID,
		IsPrivate:       params.IsPrivate,
		PasswordHash:    passwordHash,
		MovieSource:     params.MovieSource,
		EnableChat:      params.EnableChat,
		EnableReactions: params.EnableReactions,
		MaxParticipants: maxParticipants,
		Participants: []domain.Participant{{
			UserID:   params.HostID,
			Name:     params.HostName,
			IsHost:   true,
			JoinedAt: now,
		}},
		Playback: domain.PlaybackState{
			IsPlaying:       false,
			PositionSeconds: 0,
			UpdatedAt:       now,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if room.Name == "" {
		room.Name = "Room " + room.ID
	}

	if err := s.directoryRepo.CreateRoom(ctx, &room); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
	}

	if err := s.sessionRepo.SetPlayback(ctx, &session.SetPlaybackParams{
		RoomID:   room.ID,
		Playback: room.Playback,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to seed playback: %w", err)
	}

	return CreateRoomResponse{Room: room}, nil
}

type JoinRoomParams struct {
	RoomID   string
	UserID   string
	UserName string
	Password string
	Conn     *websocket.Conn
}

type JoinRoomResponse struct {
	Room         domain.Room
	Participants []domain.Participant
	Conns        []*websocket.Conn
}

// JoinRoom admits a participant over an established channel. Joining twice
// with the same user is idempotent: the roster is unchanged and the fresh
// conn replaces the stale one, so a reconnect converges to the same state
// as an initial join.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	room, err := s.getRoom(ctx, params.RoomID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	if !room.IsActive {
		return JoinRoomResponse{}, ErrRoomInactive
	}

	// both sides are trimmed so a copy-pasted password with stray
	// whitespace does not produce a false mismatch
	if room.PasswordHash != "" {
		supplied := strings.TrimSpace(params.Password)
		if err := bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(supplied)); err != nil {
			return JoinRoomResponse{}, ErrInvalidPassword
		}
	}

	if !room.HasParticipant(params.UserID) {
		if len(room.Participants) >= room.MaxParticipants {
			return JoinRoomResponse{}, ErrRoomFull
		}

		participant := domain.Participant{
			UserID:   params.UserID,
			Name:     params.UserName,
			IsHost:   room.IsHost(params.UserID),
			IsOnline: true,
			JoinedAt: time.Now().UTC(),
		}
		if err := s.directoryRepo.AddParticipant(ctx, &directory.AddParticipantParams{
			RoomID:      params.RoomID,
			Participant: participant,
		}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to add participant: %w", err)
		}
	} else {
		if err := s.directoryRepo.SetParticipantOnline(ctx, &directory.SetParticipantOnlineParams{
			RoomID:   params.RoomID,
			UserID:   params.UserID,
			IsOnline: true,
		}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to set participant online: %w", err)
		}
	}

	if err := s.connRepo.Add(params.Conn, params.RoomID, params.UserID); err != nil && !errors.Is(err, connection.ErrAlreadyExists) {
		return JoinRoomResponse{}, fmt.Errorf("failed to register conn: %w", err)
	}

	room, err = s.getRoom(ctx, params.RoomID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse{
		Room:         room,
		Participants: room.Participants,
		Conns:        s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type LeaveRoomParams struct {
	RoomID string
	UserID string
}

type LeaveRoomResponse struct {
	Participants []domain.Participant
	Conns        []*websocket.Conn
	RoomEmptied  bool
}

func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	room, err := s.directoryRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			return LeaveRoomResponse{}, ErrRoomNotFound
		}
		return LeaveRoomResponse{}, err
	}

	if !room.HasParticipant(params.UserID) {
		return LeaveRoomResponse{}, ErrNotParticipant
	}

	if err := s.directoryRepo.RemoveParticipant(ctx, &directory.RemoveParticipantParams{
		RoomID: params.RoomID,
		UserID: params.UserID,
	}); err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove participant: %w", err)
	}

	if err := s.connRepo.RemoveByUser(params.RoomID, params.UserID); err != nil && !errors.Is(err, connection.ErrNotFound) {
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove conn: %w", err)
	}

	room, err = s.directoryRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	emptied := len(room.Participants) == 0
	if emptied {
		if err := s.taskQueue.EnqueueRoomDeactivation(ctx, params.RoomID, s.cfg.DeactivationDelay); err != nil {
			return LeaveRoomResponse{}, fmt.Errorf("failed to enqueue deactivation: %w", err)
		}
	}

	return LeaveRoomResponse{
		Participants: room.Participants,
		Conns:        s.connRepo.GetRoomConns(params.RoomID),
		RoomEmptied:  emptied,
	}, nil
}

type DisconnectParams struct {
	Conn *websocket.Conn
}

type DisconnectResponse struct {
	RoomID       string
	UserID       string
	Participants []domain.Participant
	Conns        []*websocket.Conn
}

// Disconnect handles a channel dropping without an explicit leave_room. The
// participant leaves the roster like on a clean leave; membership cannot be
// asserted over a dead channel.
func (s service) Disconnect(ctx context.Context, params *DisconnectParams) (DisconnectResponse, error) {
	roomID, userID, err := s.connRepo.RemoveByConn(params.Conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			// the conn never completed a join, nothing to clean up
			return DisconnectResponse{}, nil
		}
		return DisconnectResponse{}, err
	}

	leaveResp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomID: roomID, UserID: userID})
	if err != nil {
		if errors.Is(err, ErrNotParticipant) || errors.Is(err, ErrRoomNotFound) {
			return DisconnectResponse{RoomID: roomID, UserID: userID}, nil
		}
		return DisconnectResponse{}, err
	}

	return DisconnectResponse{
		RoomID:       roomID,
		UserID:       userID,
		Participants: leaveResp.Participants,
		Conns:        leaveResp.Conns,
	}, nil
}
