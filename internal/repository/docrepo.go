package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/avdeev7/collabcode/internal/model"
)

// DocumentRepository provides durable storage for shared documents.
type DocumentRepository interface {
	// Create inserts a new document and returns it with the assigned id.
	Create(ctx context.Context, d *model.Document) (*model.Document, error)

	// Get selects a document by id.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// ListByOwner returns the owner's documents, most recently updated first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error)

	// UpdateContent replaces the document's content (last write wins).
	UpdateContent(ctx context.Context, id int64, content string) error

	// Rename changes the document's display name.
	Rename(ctx context.Context, id int64, name string) error

	// Delete removes the document.
	Delete(ctx context.Context, id int64) error
}
