package repository

import (
	"context"

	"github.com/avdeev7/collabcode/internal/model"
)

// PermissionRepository stores per-document access grants. A grant is keyed on
// either an authenticated user id or a guest label, never both.
type PermissionRepository interface {
	// Upsert creates the grant or replaces the role of an existing one in place.
	Upsert(ctx context.Context, g *model.Grant) (*model.Grant, error)

	// Find returns the active grant for (doc, identity), or ErrNotFound.
	Find(ctx context.Context, docID int64, ident model.Identity) (*model.Grant, error)

	// ListByDoc returns all grants for a document.
	ListByDoc(ctx context.Context, docID int64) ([]model.Grant, error)

	// DeleteByDoc removes every grant for a document (document deletion cleanup).
	DeleteByDoc(ctx context.Context, docID int64) error
}
