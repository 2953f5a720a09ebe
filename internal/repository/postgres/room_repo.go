package postgres

import (
	"context"
	"errors"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
)

// RoomRepo implements RoomRepository using PostgreSQL.
type RoomRepo struct{ db *DB }

// NewRoomRepo constructs a room repository.
func NewRoomRepo(db *DB) *RoomRepo { return &RoomRepo{db: db} }

// Create inserts a new room.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	const q = `
INSERT INTO rooms (id, doc_id, host_id)
VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, room.ID, room.DocID, room.HostID)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get resolves a room id back to its document binding.
func (r *RoomRepo) Get(ctx context.Context, id string) (*model.Room, error) {
	const q = `
SELECT id, doc_id, host_id, created_at
FROM rooms WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var room model.Room
	if err := row.Scan(&room.ID, &room.DocID, &room.HostID, &room.CreatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &room, nil
}
