package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
	"github.com/avdeev7/collabcode/internal/repository"
)

// roomIDLen is the length of the public share-link id.
const roomIDLen = 12

// RoomService creates share links and resolves them for joining guests.
type RoomService interface {
	// Create generates a share room for the document. Host-only.
	Create(ctx context.Context, docID int64, actingUser uuid.UUID) (*model.Room, string, error)

	// Join resolves a room id to its document with a fresh content snapshot,
	// used to bootstrap a guest's view before live subscription.
	Join(ctx context.Context, roomID string) (*model.Document, error)
}

type RoomServiceImpl struct {
	rooms   repository.RoomRepository
	docs    repository.DocumentRepository
	baseURL string
	logger  *zap.Logger
}

// NewRoomService constructs the room service. baseURL is the public server
// address used to build joinable links.
func NewRoomService(rooms repository.RoomRepository, docs repository.DocumentRepository, baseURL string, logger *zap.Logger) *RoomServiceImpl {
	return &RoomServiceImpl{rooms: rooms, docs: docs, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Create stores an immutable room binding and returns it with the join URL.
func (s *RoomServiceImpl) Create(ctx context.Context, docID int64, actingUser uuid.UUID) (*model.Room, string, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, "", err
	}
	if doc.OwnerID != actingUser {
		return nil, "", fmt.Errorf("%w: only the host may share a document", errs.ErrForbidden)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, "", err
	}
	room := &model.Room{
		ID:     strings.ReplaceAll(id.String(), "-", "")[:roomIDLen],
		DocID:  docID,
		HostID: actingUser,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, "", err
	}

	url := fmt.Sprintf("%s/room/%s", s.baseURL, room.ID)
	s.logger.Info("room created",
		zap.String("roomID", room.ID),
		zap.Int64("docID", docID),
		zap.String("url", url))
	return room, url, nil
}

// Join resolves the room and returns the bound document's current state.
func (s *RoomServiceImpl) Join(ctx context.Context, roomID string) (*model.Document, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.docs.Get(ctx, room.DocID)
}
