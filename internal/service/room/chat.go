package room

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type SendChatMessageParams struct {
	RoomID   string
	SenderID string
	Message  string
}

type SendChatMessageResponse struct {
	SenderName string
	Timestamp  time.Time
	Conns      []*websocket.Conn
}

// SendChatMessage relays a message verbatim with a server-assigned timestamp.
// No ordering stronger than arrival order is promised.
func (s service) SendChatMessage(ctx context.Context, params *SendChatMessageParams) (SendChatMessageResponse, error) {
	room, err := s.directoryRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		return SendChatMessageResponse{}, ErrRoomNotFound
	}

	if !room.EnableChat {
		return SendChatMessageResponse{}, ErrChatDisabled
	}

	if !room.HasParticipant(params.SenderID) {
		return SendChatMessageResponse{}, ErrNotParticipant
	}

	var senderName string
	for i := range room.Participants {
		if room.Participants[i].UserID == params.SenderID {
			senderName = room.Participants[i].Name
			break
		}
	}

	return SendChatMessageResponse{
		SenderName: senderName,
		Timestamp:  time.Now().UTC(),
		Conns:      s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type SendReactionParams struct {
	RoomID   string
	SenderID string
	Reaction string
}

type SendReactionResponse struct {
	Conns []*websocket.Conn
}

// SendReaction is fire-and-display-and-discard; a dropped reaction is not an
// error.
func (s service) SendReaction(ctx context.Context, params *SendReactionParams) (SendReactionResponse, error) {
	room, err := s.directoryRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		return SendReactionResponse{}, ErrRoomNotFound
	}

	if !room.EnableReactions {
		return SendReactionResponse{}, ErrReactionsDisabled
	}

	if !room.HasParticipant(params.SenderID) {
		return SendReactionResponse{}, ErrNotParticipant
	}

	return SendReactionResponse{
		Conns: s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}
