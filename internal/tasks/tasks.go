// Package tasks defines the background task types shared by the server and
// the worker, plus a thin enqueue client.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeRoomDeactivation marks an emptied room for deferred deactivation.
	// The delay gives a reconnecting participant time to rejoin before the
	// room is torn down.
	TypeRoomDeactivation = "room:deactivate"
)

type RoomDeactivationPayload struct {
	RoomID string `json:"room_id"`
}

func NewRoomDeactivationTask(roomID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomDeactivationPayload{RoomID: roomID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeRoomDeactivation, payload), nil
}

type Queue struct {
	client *asynq.Client
}

func NewQueue(redisOpt asynq.RedisClientOpt) *Queue {
	return &Queue{client: asynq.NewClient(redisOpt)}
}

func (q *Queue) EnqueueRoomDeactivation(ctx context.Context, roomID string, delay time.Duration) error {
	task, err := NewRoomDeactivationTask(roomID)
	if err != nil {
		return err
	}

	if _, err := q.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay)); err != nil {
		return fmt.Errorf("failed to enqueue room deactivation: %w", err)
	}

	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
