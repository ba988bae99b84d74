package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/service/room"
	"github.com/cinemasync/server/pkg/validator"
	"github.com/cinemasync/server/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	Disconnect(context.Context, *room.DisconnectParams) (room.DisconnectResponse, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) (room.UpdatePlaybackResponse, error)
	SetMovieSource(context.Context, *room.SetMovieSourceParams) (room.SetMovieSourceResponse, error)
	SendChatMessage(context.Context, *room.SendChatMessageParams) (room.SendChatMessageResponse, error)
	SendReaction(context.Context, *room.SendReactionParams) (room.SendReactionResponse, error)
	GetRoomState(context.Context, string) (domain.Room, error)
	GetActiveRooms(context.Context, *room.GetActiveRoomsParams) ([]domain.Room, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	jwtSecret   []byte
	// per-conn write locks; gorilla conns allow one concurrent writer and
	// broadcasts run on whichever handler goroutine triggered them
	writeLocks *sync.Map
	logger     *slog.Logger
}

func NewController(roomService iRoomService, jwtSecret string, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		jwtSecret:   []byte(jwtSecret),
		writeLocks:  &sync.Map{},
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
