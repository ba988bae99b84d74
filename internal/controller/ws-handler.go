package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/protocol"
	"github.com/cinemasync/server/internal/service/room"
	"github.com/cinemasync/server/pkg/ctxlogger"
	"github.com/cinemasync/server/pkg/wsrouter"
)

// serveRoom upgrades an authenticated request to the room's real-time
// channel. The participant is not in the room yet; membership starts when
// the channel delivers a join_room frame and ends on leave_room or channel
// teardown.
func (c controller) serveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := domain.CanonicalID(chi.URLParam(r, "room-id"))
	if roomID == "" {
		c.logger.DebugContext(r.Context(), "empty room id")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	claims, err := c.parseIdentity(r)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to parse identity", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	ctx := context.WithValue(r.Context(), roomIDCtxKey, roomID)
	ctx = context.WithValue(ctx, userIDCtxKey, claims.UserID)
	ctx = context.WithValue(ctx, userNameCtxKey, claims.Name)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomID))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", claims.UserID))

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "channel closed", "error", err)
	}

	c.handleDisconnect(ctx, conn)
	c.writeLocks.Delete(conn)
}

func (c controller) handleDisconnect(ctx context.Context, conn *websocket.Conn) {
	disconnectResp, err := c.roomService.Disconnect(ctx, &room.DisconnectParams{Conn: conn})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to clean up disconnect", "error", err)
		return
	}

	if disconnectResp.UserID == "" {
		// the conn never joined, nothing to announce
		return
	}

	c.broadcast(ctx, disconnectResp.Conns, &Output{
		Type: protocol.EventUserLeft,
		Payload: protocol.RosterPayload{
			UserID:       disconnectResp.UserID,
			RoomID:       disconnectResp.RoomID,
			Participants: disconnectResp.Participants,
		},
	})
}

// decode unmarshals and validates a frame payload, reporting a structured
// validation failure to the peer on mismatch.
func (c controller) decode(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message, dst any) bool {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "malformed payload"))
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, validationErrors[0].Message))
		return false
	}

	return true
}

// matchesSession rejects payloads whose identifiers disagree with the
// authenticated channel; the payload carries them for wire compatibility but
// the channel is the source of truth.
func (c controller) matchesSession(ctx context.Context, roomID, userID string) bool {
	return domain.CanonicalID(roomID) == c.getRoomIDFromCtx(ctx) &&
		domain.CanonicalID(userID) == c.getUserIDFromCtx(ctx)
}

func (c controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
	var payload protocol.JoinRoomPayload
	if !c.decode(ctx, conn, msg, &payload) {
		return nil
	}

	if !c.matchesSession(ctx, payload.RoomID, payload.UserID) {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "identifiers do not match the channel"))
		return nil
	}

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		UserID:   c.getUserIDFromCtx(ctx),
		UserName: c.getUserNameFromCtx(ctx),
		Password: payload.Password,
		Conn:     conn,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to join room", "error", err)
		c.respond(ctx, conn, msg, err)
		return err
	}

	c.respond(ctx, conn, msg, nil)

	// the joiner gets the authoritative snapshot; everyone gets the roster
	if err := c.writeToConn(ctx, conn, &Output{
		Type:    protocol.EventRoomJoined,
		Payload: protocol.RoomJoinedPayload{Room: joinRoomResp.Room},
	}); err != nil {
		return err
	}

	c.broadcast(ctx, joinRoomResp.Conns, &Output{
		Type: protocol.EventUserJoined,
		Payload: protocol.RosterPayload{
			UserID:       c.getUserIDFromCtx(ctx),
			RoomID:       c.getRoomIDFromCtx(ctx),
			Participants: joinRoomResp.Participants,
		},
	})

	return nil
}

func (c controller) handleLeaveRoom(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
	var payload protocol.LeaveRoomPayload
	if !c.decode(ctx, conn, msg, &payload) {
		return nil
	}

	if !c.matchesSession(ctx, payload.RoomID, payload.UserID) {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "identifiers do not match the channel"))
		return nil
	}

	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomID: c.getRoomIDFromCtx(ctx),
		UserID: c.getUserIDFromCtx(ctx),
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to leave room", "error", err)
		c.respond(ctx, conn, msg, err)
		return err
	}

	c.respond(ctx, conn, msg, nil)

	c.writeToConn(ctx, conn, &Output{
		Type:    protocol.EventRoomLeft,
		Payload: protocol.RoomLeftPayload{RoomID: c.getRoomIDFromCtx(ctx)},
	})

	c.broadcast(ctx, leaveRoomResp.Conns, &Output{
		Type: protocol.EventUserLeft,
		Payload: protocol.RosterPayload{
			UserID:       c.getUserIDFromCtx(ctx),
			RoomID:       c.getRoomIDFromCtx(ctx),
			Participants: leaveRoomResp.Participants,
		},
	})

	return nil
}

func (c controller) handleUpdatePlayback(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
	var payload protocol.UpdatePlaybackPayload
	if !c.decode(ctx, conn, msg, &payload) {
		return nil
	}

	if !c.matchesSession(ctx, payload.RoomID, payload.UserID) {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "identifiers do not match the channel"))
		return nil
	}

	updatePlaybackResp, err := c.roomService.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		RoomID:          c.getRoomIDFromCtx(ctx),
		SenderID:        c.getUserIDFromCtx(ctx),
		IsPlaying:       payload.PlaybackState.IsPlaying,
		PositionSeconds: payload.PlaybackState.PositionSeconds,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to update playback", "error", err)
		c.respond(ctx, conn, msg, err)
		return err
	}

	c.respond(ctx, conn, msg, nil)

	// confirmation-by-broadcast: the mutator hears about its own change the
	// same way every follower does
	c.broadcast(ctx, updatePlaybackResp.Conns, &Output{
		Type: protocol.EventPlaybackUpdated,
		Payload: protocol.PlaybackUpdatedPayload{
			PlaybackState: updatePlaybackResp.Playback,
			UpdatedBy:     c.getUserIDFromCtx(ctx),
		},
	})

	return nil
}

func (c controller) handleSetRoomVideo(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
	var payload protocol.SetRoomVideoPayload
	if !c.decode(ctx, conn, msg, &payload) {
		return nil
	}

	if !c.matchesSession(ctx, payload.RoomID, payload.UserID) {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "identifiers do not match the channel"))
		return nil
	}

	if !payload.Source.Kind.Valid() {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "unknown movie source kind"))
		return nil
	}

	setMovieSourceResp, err := c.roomService.SetMovieSource(ctx, &room.SetMovieSourceParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getUserIDFromCtx(ctx),
		Source:   payload.Source,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to set movie source", "error", err)
		c.respond(ctx, conn, msg, err)
		return err
	}

	c.respond(ctx, conn, msg, nil)

	c.broadcast(ctx, setMovieSourceResp.Conns, &Output{
		Type: protocol.EventVideoChanged,
		Payload: protocol.VideoChangedPayload{
			Source:        setMovieSourceResp.Source,
			PlaybackState: setMovieSourceResp.Playback,
		},
	})

	return nil
}

func (c controller) handleChatMessage(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
	var payload protocol.ChatMessagePayload
	if !c.decode(ctx, conn, msg, &payload) {
		return nil
	}

	if !c.matchesSession(ctx, payload.RoomID, payload.UserID) {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "identifiers do not match the channel"))
		return nil
	}

	chatResp, err := c.roomService.SendChatMessage(ctx, &room.SendChatMessageParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getUserIDFromCtx(ctx),
		Message:  payload.Message,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to send chat message", "error", err)
		c.respond(ctx, conn, msg, err)
		return err
	}

	c.respond(ctx, conn, msg, nil)

	c.broadcast(ctx, chatResp.Conns, &Output{
		Type: protocol.EventNewChatMessage,
		Payload: protocol.NewChatMessagePayload{
			RoomID:    c.getRoomIDFromCtx(ctx),
			UserID:    c.getUserIDFromCtx(ctx),
			UserName:  chatResp.SenderName,
			Message:   payload.Message,
			Timestamp: chatResp.Timestamp,
		},
	})

	return nil
}

func (c controller) handleReaction(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
	var payload protocol.ReactionPayload
	if !c.decode(ctx, conn, msg, &payload) {
		return nil
	}

	if !c.matchesSession(ctx, payload.RoomID, payload.UserID) {
		c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "identifiers do not match the channel"))
		return nil
	}

	reactionResp, err := c.roomService.SendReaction(ctx, &room.SendReactionParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getUserIDFromCtx(ctx),
		Reaction: payload.Reaction,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to send reaction", "error", err)
		c.respond(ctx, conn, msg, err)
		return err
	}

	c.respond(ctx, conn, msg, nil)

	c.broadcast(ctx, reactionResp.Conns, &Output{
		Type: protocol.EventNewReaction,
		Payload: protocol.NewReactionPayload{
			RoomID:   c.getRoomIDFromCtx(ctx),
			UserID:   c.getUserIDFromCtx(ctx),
			Reaction: payload.Reaction,
		},
	})

	return nil
}

func (c controller) handleUnknown(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
	c.respond(ctx, conn, msg, domain.NewError(domain.KindValidation, "unknown message type"))
	return nil
}
