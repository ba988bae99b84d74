package controller

import (
	"github.com/cinemasync/server/internal/protocol"
	"github.com/cinemasync/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	// session
	mux.Handle(protocol.EventJoinRoom, c.handleJoinRoom)
	mux.Handle(protocol.EventLeaveRoom, c.handleLeaveRoom)

	// playback
	mux.Handle(protocol.EventUpdatePlayback, c.handleUpdatePlayback)
	mux.Handle(protocol.EventSetRoomVideo, c.handleSetRoomVideo)

	// presence & messaging
	mux.Handle(protocol.EventChatMessage, c.handleChatMessage)
	mux.Handle(protocol.EventReaction, c.handleReaction)

	mux.HandleUnknown(c.handleUnknown)

	return mux
}
