package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/model"
	"github.com/avdeev7/collabcode/internal/repository"
)

// Action is the access being requested through the gate.
type Action int

const (
	ActionView Action = iota
	ActionEdit
)

// PermissionService is both the grant store front and the per-request gate.
type PermissionService interface {
	// Authorize accepts or rejects an action. The document's owner is
	// implicitly authorized for EDIT; everyone else needs a grant. Evaluated
	// fresh on every call, never cached.
	Authorize(ctx context.Context, docID int64, ident model.Identity, action Action) error

	// GrantEdit gives ident EDIT on the document. Only the document's owner
	// may grant; the change is broadcast so connected sessions observe it
	// without reconnecting.
	GrantEdit(ctx context.Context, docID int64, ident model.Identity, actingUser uuid.UUID) (*model.Grant, error)

	// RevokeEdit downgrades ident to VIEW. Owner-only, broadcast like GrantEdit.
	RevokeEdit(ctx context.Context, docID int64, ident model.Identity, actingUser uuid.UUID) (*model.Grant, error)

	// ListByDoc returns all grants for a document (owner-only).
	ListByDoc(ctx context.Context, docID int64, actingUser uuid.UUID) ([]model.Grant, error)
}

type PermissionServiceImpl struct {
	grants repository.PermissionRepository
	docs   repository.DocumentRepository
	pub    Publisher
	logger *zap.Logger
}

// NewPermissionService constructs the permission store/gate.
func NewPermissionService(grants repository.PermissionRepository, docs repository.DocumentRepository, pub Publisher, logger *zap.Logger) *PermissionServiceImpl {
	return &PermissionServiceImpl{grants: grants, docs: docs, pub: pub, logger: logger}
}

// Authorize checks ident against the document's ownership and grant rows.
func (s *PermissionServiceImpl) Authorize(ctx context.Context, docID int64, ident model.Identity, action Action) error {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return err
	}
	if ident.Authenticated() && doc.OwnerID == ident.UserID.UUID {
		return nil // host holds EDIT implicitly
	}

	g, err := s.grants.Find(ctx, docID, ident)
	switch {
	case err == nil:
		if action == ActionEdit && g.Role != model.RoleEdit {
			return fmt.Errorf("%w: view-only grant", errs.ErrForbidden)
		}
		return nil
	case errors.Is(err, errs.ErrNotFound):
		if action == ActionView {
			// join-by-link guests may view without an explicit grant row
			return nil
		}
		return fmt.Errorf("%w: no edit grant", errs.ErrForbidden)
	default:
		return err
	}
}

// GrantEdit upserts an EDIT grant and broadcasts the change.
func (s *PermissionServiceImpl) GrantEdit(ctx context.Context, docID int64, ident model.Identity, actingUser uuid.UUID) (*model.Grant, error) {
	return s.setRole(ctx, docID, ident, actingUser, model.RoleEdit)
}

// RevokeEdit downgrades the grant to VIEW in place and broadcasts the change.
func (s *PermissionServiceImpl) RevokeEdit(ctx context.Context, docID int64, ident model.Identity, actingUser uuid.UUID) (*model.Grant, error) {
	return s.setRole(ctx, docID, ident, actingUser, model.RoleView)
}

// ListByDoc returns all grants for the document.
func (s *PermissionServiceImpl) ListByDoc(ctx context.Context, docID int64, actingUser uuid.UUID) ([]model.Grant, error) {
	if err := s.requireOwner(ctx, docID, actingUser); err != nil {
		return nil, err
	}
	return s.grants.ListByDoc(ctx, docID)
}

func (s *PermissionServiceImpl) setRole(ctx context.Context, docID int64, ident model.Identity, actingUser uuid.UUID, role model.Role) (*model.Grant, error) {
	if actingUser == uuid.Nil {
		return nil, fmt.Errorf("%w: unresolved acting user", errs.ErrUnauthorized)
	}
	if err := s.requireOwner(ctx, docID, actingUser); err != nil {
		return nil, err
	}

	g := &model.Grant{
		DocID:     docID,
		Role:      role,
		GrantedBy: actingUser,
	}
	if ident.Authenticated() {
		g.UserID = ident.UserID
	} else {
		g.GuestName = ident.Name
	}

	saved, err := s.grants.Upsert(ctx, g)
	if err != nil {
		return nil, err
	}

	s.logger.Info("permission changed",
		zap.Int64("docID", docID),
		zap.String("identity", identityLabel(ident)),
		zap.String("role", string(role)))

	s.pub.Publish(hub.PermissionsTopic(docID), model.PermissionEvent{
		Identity: identityLabel(ident),
		CanEdit:  role == model.RoleEdit,
		DocID:    docID,
	})
	return saved, nil
}

// requireOwner rejects actions by anyone but the document's host.
func (s *PermissionServiceImpl) requireOwner(ctx context.Context, docID int64, actingUser uuid.UUID) error {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return err
	}
	if doc.OwnerID != actingUser {
		return fmt.Errorf("%w: only the document owner may manage permissions", errs.ErrForbidden)
	}
	return nil
}

func identityLabel(ident model.Identity) string {
	if ident.Authenticated() {
		return ident.UserID.UUID.String()
	}
	return ident.Name
}
