package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/service/room"
	"github.com/cinemasync/server/pkg/rest"
)

type createRoomRequest struct {
	Name            string `json:"name" validate:"max=100"`
	Description     string `json:"description" validate:"max=500"`
	Password        string `json:"password" validate:"max=72"`
	IsPrivate       bool   `json:"is_private"`
	EnableChat      *bool  `json:"enable_chat"`
	EnableReactions *bool  `json:"enable_reactions"`
	MaxParticipants int    `json:"max_participants" validate:"omitempty,min=2,max=50"`
	MovieSource     struct {
		Kind      string `json:"kind" validate:"required,oneof=none direct-url drive-file embedded-video"`
		Reference string `json:"reference"`
		Name      string `json:"name" validate:"max=200"`
	} `json:"movie_source"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	enabled := func(v *bool) bool { return v == nil || *v }

	createRoomResp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		HostID:          c.getUserIDFromCtx(r.Context()),
		HostName:        c.getUserNameFromCtx(r.Context()),
		Name:            req.Name,
		Description:     req.Description,
		Password:        req.Password,
		IsPrivate:       req.IsPrivate,
		EnableChat:      enabled(req.EnableChat),
		EnableReactions: enabled(req.EnableReactions),
		MaxParticipants: req.MaxParticipants,
		MovieSource: domain.MovieSource{
			Kind:      domain.SourceKind(req.MovieSource.Kind),
			Reference: req.MovieSource.Reference,
			Name:      req.MovieSource.Name,
		},
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "failed to create room"})
		return
	}

	createdRoom := createRoomResp.Room
	createdRoom.PasswordHash = ""

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"room": createdRoom})
}

type roomView struct {
	domain.Room
	PasswordRequired bool `json:"password_required"`
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID := domain.CanonicalID(chi.URLParam(r, "room-id"))
	if roomID == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return
	}

	roomState, err := c.roomService.GetRoomState(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return
		}
		c.logger.WarnContext(r.Context(), "failed to get room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "failed to get room"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"room": roomView{
		Room:             roomState,
		PasswordRequired: roomState.IsPrivate,
	}})
}

func (c controller) listRooms(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

	rooms, err := c.roomService.GetActiveRooms(r.Context(), &room.GetActiveRoomsParams{
		Limit: limit,
		Skip:  skip,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to list rooms", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "failed to list rooms"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{
		"rooms": rooms,
		"count": len(rooms),
	})
}
