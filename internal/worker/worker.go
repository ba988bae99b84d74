// Package worker runs the asynq server processing background tasks.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/cinemasync/server/internal/tasks"
)

type iRoomService interface {
	DeactivateRoomIfEmpty(ctx context.Context, roomID string) (bool, error)
}

type Worker struct {
	server      *asynq.Server
	roomService iRoomService
	logger      *slog.Logger
}

func New(redisOpt asynq.RedisClientOpt, roomService iRoomService, logger *slog.Logger) *Worker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.ErrorContext(ctx, "task failed", "task_type", task.Type(), "error", err)
		}),
	})

	return &Worker{
		server:      server,
		roomService: roomService,
		logger:      logger,
	}
}

func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRoomDeactivation, w.handleRoomDeactivation)

	return w.server.Run(mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleRoomDeactivation(ctx context.Context, t *asynq.Task) error {
	var payload tasks.RoomDeactivationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	deactivated, err := w.roomService.DeactivateRoomIfEmpty(ctx, payload.RoomID)
	if err != nil {
		return fmt.Errorf("failed to deactivate room: %w", err)
	}

	w.logger.InfoContext(ctx, "room deactivation check",
		"room_id", payload.RoomID,
		"deactivated", deactivated,
	)

	return nil
}
