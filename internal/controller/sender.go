package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/protocol"
	"github.com/cinemasync/server/internal/service/room"
	"github.com/cinemasync/server/pkg/wsrouter"
)

type Output struct {
	Type    string `json:"type"`
	Id      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) error {
	muAny, _ := c.writeLocks.LoadOrStore(conn, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)

	mu.Lock()
	err := conn.WriteJSON(output)
	mu.Unlock()

	if err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "error", err)
		return err
	}

	return nil
}

func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) {
	for _, conn := range conns {
		c.writeToConn(ctx, conn, output)
	}
}

// classify maps service errors onto the wire error taxonomy so clients can
// branch on kind instead of matching message text.
func classify(err error) *protocol.ErrorPayload {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return &protocol.ErrorPayload{Kind: domainErr.Kind, Message: domainErr.Message}
	}

	kind := domain.KindTransient
	switch {
	case errors.Is(err, room.ErrInvalidPassword), errors.Is(err, room.ErrPermissionDenied):
		kind = domain.KindAuthorization
	case errors.Is(err, room.ErrNotParticipant):
		kind = domain.KindNotJoined
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrRoomInactive),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrNoMovieSource),
		errors.Is(err, room.ErrChatDisabled),
		errors.Is(err, room.ErrReactionsDisabled):
		kind = domain.KindValidation
	}

	return &protocol.ErrorPayload{Kind: kind, Message: err.Error()}
}

// respond answers a handled frame. Frames carrying an id get an ack; frames
// without one get an error event on failure and silence on success, because
// success is observed through the follow-up broadcast.
func (c controller) respond(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message, err error) {
	if msg.Id == "" {
		if err != nil {
			c.writeToConn(ctx, conn, &Output{
				Type:    protocol.EventError,
				Payload: classify(err),
			})
		}
		return
	}

	ack := protocol.AckPayload{OK: err == nil}
	if err != nil {
		ack.Error = classify(err)
	}

	c.writeToConn(ctx, conn, &Output{
		Type:    protocol.EventAck,
		Id:      msg.Id,
		Payload: ack,
	})
}
