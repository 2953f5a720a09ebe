package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/model"
	"github.com/avdeev7/collabcode/internal/repository"
	"github.com/avdeev7/collabcode/internal/syntax"
)

// CollabService handles the real-time editing flow: gate, persist, analyze,
// broadcast. Content semantics are whole-document replace, last write wins.
type CollabService interface {
	// ApplyEdit authorizes and applies an inbound edit, then broadcasts it
	// together with fresh diagnostics. A persistence failure is logged and the
	// broadcast still proceeds.
	ApplyEdit(ctx context.Context, docID int64, ident model.Identity, content string) error

	// MoveCursor broadcasts a caret move. Cursor traffic is not gated and
	// never persisted.
	MoveCursor(ctx context.Context, docID int64, ident model.Identity, line, column int)
}

type CollabServiceImpl struct {
	docs     repository.DocumentRepository
	gate     PermissionService
	analyzer syntax.Analyzer
	pub      Publisher
	logger   *zap.Logger
}

// NewCollabService constructs the collaboration service.
func NewCollabService(docs repository.DocumentRepository, gate PermissionService, analyzer syntax.Analyzer, pub Publisher, logger *zap.Logger) *CollabServiceImpl {
	return &CollabServiceImpl{docs: docs, gate: gate, analyzer: analyzer, pub: pub, logger: logger}
}

// ApplyEdit runs the full accepted-edit flow.
func (s *CollabServiceImpl) ApplyEdit(ctx context.Context, docID int64, ident model.Identity, content string) error {
	if err := s.gate.Authorize(ctx, docID, ident, ActionEdit); err != nil {
		return err
	}

	// Durable copy is best-effort: collaborators must see the edit even if
	// the store is transiently down.
	if err := s.docs.UpdateContent(ctx, docID, content); err != nil {
		s.logger.Error("persist edit failed, broadcasting anyway",
			zap.Int64("docID", docID), zap.Error(err))
	}

	s.pub.Publish(hub.EditsTopic(docID), model.EditEvent{
		Content:    content,
		AuthorName: ident.Name,
	})

	s.publishDiagnostics(ctx, docID, ident, content)
	return nil
}

// MoveCursor fans a caret position out to the document's subscribers.
func (s *CollabServiceImpl) MoveCursor(_ context.Context, docID int64, ident model.Identity, line, column int) {
	s.pub.Publish(hub.CursorsTopic(docID), model.CursorEvent{
		AuthorName: ident.Name,
		Line:       line,
		Column:     column,
	})
}

// publishDiagnostics analyzes content and publishes the result. Empty content
// publishes an empty event to clear stale markers client-side; an analyzer
// failure degrades to the same empty event and never aborts the edit.
func (s *CollabServiceImpl) publishDiagnostics(ctx context.Context, docID int64, ident model.Identity, content string) {
	var diags []model.Diagnostic
	if content != "" {
		var err error
		diags, err = s.analyzer.Analyze(ctx, content)
		if err != nil {
			s.logger.Warn("syntax analysis failed, treating as no diagnostics",
				zap.Int64("docID", docID), zap.Error(err))
			diags = nil
		}
	}
	if diags == nil {
		diags = []model.Diagnostic{}
	}
	s.pub.Publish(hub.DiagnosticsTopic(docID), model.DiagnosticsEvent{
		AuthorName:  ident.Name,
		Diagnostics: diags,
		Timestamp:   time.Now().UnixMilli(),
	})
}
