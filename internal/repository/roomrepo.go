package repository

import (
	"context"

	"github.com/avdeev7/collabcode/internal/model"
)

// RoomRepository stores share-link rooms. Rooms are immutable once created.
type RoomRepository interface {
	// Create inserts a new room.
	Create(ctx context.Context, r *model.Room) error

	// Get resolves a room id back to its document binding.
	Get(ctx context.Context, id string) (*model.Room, error)
}
