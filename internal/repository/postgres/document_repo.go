package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
)

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

// Create inserts a new document and returns it with the assigned id.
func (r *DocumentRepo) Create(ctx context.Context, d *model.Document) (*model.Document, error) {
	const q = `
INSERT INTO documents (name, content, language, owner_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`
	row := r.db.Pool.QueryRow(ctx, q, d.Name, d.Content, d.Language, d.OwnerID)
	out := *d
	if err := row.Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get selects a document by id.
func (r *DocumentRepo) Get(ctx context.Context, id int64) (*model.Document, error) {
	const q = `
SELECT id, name, content, language, owner_id, created_at, updated_at
FROM documents WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var d model.Document
	if err := row.Scan(&d.ID, &d.Name, &d.Content, &d.Language, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &d, nil
}

// ListByOwner returns the owner's documents, most recently updated first.
func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error) {
	const q = `
SELECT id, name, content, language, owner_id, created_at, updated_at
FROM documents WHERE owner_id=$1 ORDER BY updated_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Content, &d.Language, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateContent replaces the document's content. Last write wins.
func (r *DocumentRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	const q = `UPDATE documents SET content=$2, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Rename changes the document's display name.
func (r *DocumentRepo) Rename(ctx context.Context, id int64, name string) error {
	const q = `UPDATE documents SET name=$2, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the document.
func (r *DocumentRepo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM documents WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
