package room

import (
	"context"
	"fmt"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/repository/directory"
)

// GetRoomState returns the room with the live playback snapshot overlaid.
// The password hash never leaves the service layer.
func (s service) GetRoomState(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}

	room.PasswordHash = ""

	return room, nil
}

type GetActiveRoomsParams struct {
	Limit int
	Skip  int
}

func (s service) GetActiveRooms(ctx context.Context, params *GetActiveRoomsParams) ([]domain.Room, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rooms, err := s.directoryRepo.ListActiveRooms(ctx, &directory.ListActiveRoomsParams{
		Limit: limit,
		Skip:  params.Skip,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	for i := range rooms {
		rooms[i].PasswordHash = ""
	}

	return rooms, nil
}

// DeactivateRoomIfEmpty is invoked by the deactivation worker after the grace
// delay. A room that regained a participant in the meantime is left alone.
func (s service) DeactivateRoomIfEmpty(ctx context.Context, roomID string) (bool, error) {
	room, err := s.directoryRepo.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}

	if !room.IsActive {
		return false, nil
	}

	if len(room.Participants) > 0 || len(s.connRepo.GetRoomConns(roomID)) > 0 {
		return false, nil
	}

	if err := s.directoryRepo.DeactivateRoom(ctx, roomID); err != nil {
		return false, fmt.Errorf("failed to deactivate room: %w", err)
	}

	if err := s.sessionRepo.RemovePlayback(ctx, roomID); err != nil {
		return false, fmt.Errorf("failed to remove playback: %w", err)
	}

	return true, nil
}
