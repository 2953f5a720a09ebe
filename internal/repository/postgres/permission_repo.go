package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
)

// PermissionRepo implements PermissionRepository using PostgreSQL.
type PermissionRepo struct{ db *DB }

// NewPermissionRepo constructs a permission repository.
func NewPermissionRepo(db *DB) *PermissionRepo { return &PermissionRepo{db: db} }

// validateGrant enforces the exactly-one-of(user, guest) keying invariant.
func validateGrant(g *model.Grant) error {
	hasUser := g.UserID.Valid
	hasGuest := g.GuestName != ""
	if hasUser == hasGuest {
		return fmt.Errorf("%w: grant must name exactly one of user id or guest name", errs.ErrValidation)
	}
	return nil
}

// Upsert creates the grant or replaces the role of an existing one in place.
// There is at most one active grant per (document, identity) pair.
func (r *PermissionRepo) Upsert(ctx context.Context, g *model.Grant) (*model.Grant, error) {
	if err := validateGrant(g); err != nil {
		return nil, err
	}

	out := *g
	if g.UserID.Valid {
		const q = `
INSERT INTO permissions (doc_id, user_id, role, granted_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (doc_id, user_id) WHERE user_id IS NOT NULL
DO UPDATE SET role=EXCLUDED.role, granted_by=EXCLUDED.granted_by, granted_at=now()
RETURNING id, granted_at`
		row := r.db.Pool.QueryRow(ctx, q, g.DocID, g.UserID.UUID, string(g.Role), g.GrantedBy)
		if err := row.Scan(&out.ID, &out.GrantedAt); err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("%w: document", errs.ErrNotFound)
			}
			return nil, err
		}
		return &out, nil
	}

	const q = `
INSERT INTO permissions (doc_id, guest_name, role, granted_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (doc_id, guest_name) WHERE guest_name IS NOT NULL
DO UPDATE SET role=EXCLUDED.role, granted_by=EXCLUDED.granted_by, granted_at=now()
RETURNING id, granted_at`
	row := r.db.Pool.QueryRow(ctx, q, g.DocID, g.GuestName, string(g.Role), g.GrantedBy)
	if err := row.Scan(&out.ID, &out.GrantedAt); err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: document", errs.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

// Find returns the active grant for (doc, identity).
func (r *PermissionRepo) Find(ctx context.Context, docID int64, ident model.Identity) (*model.Grant, error) {
	var row pgx.Row
	if ident.Authenticated() {
		const q = `
SELECT id, doc_id, user_id, COALESCE(guest_name, ''), role, granted_by, granted_at
FROM permissions WHERE doc_id=$1 AND user_id=$2`
		row = r.db.Pool.QueryRow(ctx, q, docID, ident.UserID.UUID)
	} else {
		const q = `
SELECT id, doc_id, user_id, COALESCE(guest_name, ''), role, granted_by, granted_at
FROM permissions WHERE doc_id=$1 AND guest_name=$2`
		row = r.db.Pool.QueryRow(ctx, q, docID, ident.Name)
	}
	return scanGrant(row)
}

// ListByDoc returns all grants for a document.
func (r *PermissionRepo) ListByDoc(ctx context.Context, docID int64) ([]model.Grant, error) {
	const q = `
SELECT id, doc_id, user_id, COALESCE(guest_name, ''), role, granted_by, granted_at
FROM permissions WHERE doc_id=$1 ORDER BY granted_at`
	rows, err := r.db.Pool.Query(ctx, q, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// DeleteByDoc removes every grant for a document.
func (r *PermissionRepo) DeleteByDoc(ctx context.Context, docID int64) error {
	const q = `DELETE FROM permissions WHERE doc_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, docID)
	return err
}

func scanGrant(row pgx.Row) (*model.Grant, error) {
	var g model.Grant
	var role string
	if err := row.Scan(&g.ID, &g.DocID, &g.UserID, &g.GuestName, &role, &g.GrantedBy, &g.GrantedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	g.Role = model.Role(role)
	return &g, nil
}
