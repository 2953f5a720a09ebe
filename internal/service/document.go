package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
	"github.com/avdeev7/collabcode/internal/repository"
)

// DocumentService manages document lifecycle for hosts.
type DocumentService interface {
	Create(ctx context.Context, name, content, language string, owner uuid.UUID) (*model.Document, error)
	Get(ctx context.Context, id int64) (*model.Document, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]model.Document, error)
	Rename(ctx context.Context, id int64, name string, actingUser uuid.UUID) error
	// Delete removes the document and every grant attached to it.
	Delete(ctx context.Context, id int64, actingUser uuid.UUID) error
}

type DocumentServiceImpl struct {
	docs   repository.DocumentRepository
	grants repository.PermissionRepository
	logger *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(docs repository.DocumentRepository, grants repository.PermissionRepository, logger *zap.Logger) *DocumentServiceImpl {
	return &DocumentServiceImpl{docs: docs, grants: grants, logger: logger}
}

// Create inserts a new document owned by owner.
func (s *DocumentServiceImpl) Create(ctx context.Context, name, content, language string, owner uuid.UUID) (*model.Document, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty document name", errs.ErrValidation)
	}
	if owner == uuid.Nil {
		return nil, fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	if language == "" {
		language = "java"
	}
	doc, err := s.docs.Create(ctx, &model.Document{
		Name:     name,
		Content:  content,
		Language: language,
		OwnerID:  owner,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("document created", zap.Int64("docID", doc.ID), zap.String("name", doc.Name))
	return doc, nil
}

// Get returns a document by id.
func (s *DocumentServiceImpl) Get(ctx context.Context, id int64) (*model.Document, error) {
	return s.docs.Get(ctx, id)
}

// ListByOwner returns the owner's documents.
func (s *DocumentServiceImpl) ListByOwner(ctx context.Context, owner uuid.UUID) ([]model.Document, error) {
	return s.docs.ListByOwner(ctx, owner)
}

// Rename changes the document name. Owner-only.
func (s *DocumentServiceImpl) Rename(ctx context.Context, id int64, name string, actingUser uuid.UUID) error {
	if name == "" {
		return fmt.Errorf("%w: empty document name", errs.ErrValidation)
	}
	if err := s.requireOwner(ctx, id, actingUser); err != nil {
		return err
	}
	return s.docs.Rename(ctx, id, name)
}

// Delete removes the document with its grants. Owner-only.
func (s *DocumentServiceImpl) Delete(ctx context.Context, id int64, actingUser uuid.UUID) error {
	if err := s.requireOwner(ctx, id, actingUser); err != nil {
		return err
	}
	if err := s.grants.DeleteByDoc(ctx, id); err != nil {
		return err
	}
	return s.docs.Delete(ctx, id)
}

func (s *DocumentServiceImpl) requireOwner(ctx context.Context, id int64, actingUser uuid.UUID) error {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.OwnerID != actingUser {
		return fmt.Errorf("%w: not the document owner", errs.ErrForbidden)
	}
	return nil
}
