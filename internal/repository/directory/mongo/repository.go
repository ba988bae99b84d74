package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/repository/directory"
)

const collectionName = "rooms"

type repo struct {
	collection *mongo.Collection
}

func NewRepo(client *mongo.Client, dbName string) *repo {
	return &repo{
		collection: client.Database(dbName).Collection(collectionName),
	}
}

func (r repo) CreateRoom(ctx context.Context, room *domain.Room) error {
	if _, err := r.collection.InsertOne(ctx, room); err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	err := r.collection.FindOne(ctx, bson.M{"room_id": roomID}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Room{}, directory.ErrRoomNotFound
		}
		return domain.Room{}, fmt.Errorf("failed to find room: %w", err)
	}

	return room, nil
}

func (r repo) ListActiveRooms(ctx context.Context, params *directory.ListActiveRoomsParams) ([]domain.Room, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(params.Skip)).
		SetLimit(int64(params.Limit))

	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true, "is_private": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer cursor.Close(ctx)

	rooms := make([]domain.Room, 0)
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}

	return rooms, nil
}

func (r repo) AddParticipant(ctx context.Context, params *directory.AddParticipantParams) error {
	// the $ne guard makes a repeated add a no-op instead of a duplicate
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"room_id": params.RoomID, "participants.user_id": bson.M{"$ne": params.Participant.UserID}},
		bson.M{
			"$push": bson.M{"participants": params.Participant},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *directory.RemoveParticipantParams) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"room_id": params.RoomID},
		bson.M{
			"$pull": bson.M{"participants": bson.M{"user_id": params.UserID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	if res.MatchedCount == 0 {
		return directory.ErrRoomNotFound
	}

	return nil
}

func (r repo) SetParticipantOnline(ctx context.Context, params *directory.SetParticipantOnlineParams) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"room_id": params.RoomID, "participants.user_id": params.UserID},
		bson.M{"$set": bson.M{
			"participants.$.is_online": params.IsOnline,
			"updated_at":               time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set participant online: %w", err)
	}

	if res.MatchedCount == 0 {
		return directory.ErrParticipantNotFound
	}

	return nil
}

func (r repo) UpdatePlayback(ctx context.Context, params *directory.UpdatePlaybackParams) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"room_id": params.RoomID},
		bson.M{"$set": bson.M{
			"playback_state": params.Playback,
			"updated_at":     time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	if res.MatchedCount == 0 {
		return directory.ErrRoomNotFound
	}

	return nil
}

func (r repo) SetMovieSource(ctx context.Context, params *directory.SetMovieSourceParams) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"room_id": params.RoomID},
		bson.M{"$set": bson.M{
			"movie_source": params.Source,
			"updated_at":   time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set movie source: %w", err)
	}

	if res.MatchedCount == 0 {
		return directory.ErrRoomNotFound
	}

	return nil
}

func (r repo) DeactivateRoom(ctx context.Context, roomID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"room_id": roomID},
		bson.M{"$set": bson.M{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate room: %w", err)
	}

	if res.MatchedCount == 0 {
		return directory.ErrRoomNotFound
	}

	return nil
}
