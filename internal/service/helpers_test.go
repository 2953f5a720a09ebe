package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
	"github.com/avdeev7/collabcode/internal/repository"
)

// fakePub records every published event in order.
type fakePub struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *fakePub) Publish(topic string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
}

func (p *fakePub) published() ([]string, []any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([]any(nil), p.events...)
}

// fakeDocRepo is an in-memory DocumentRepository.
type fakeDocRepo struct {
	mu        sync.Mutex
	docs      map[int64]*model.Document
	nextID    int64
	updateErr error
}

var _ repository.DocumentRepository = (*fakeDocRepo)(nil)

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: map[int64]*model.Document{}, nextID: 1}
}

func (f *fakeDocRepo) Create(_ context.Context, d *model.Document) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *d
	out.ID = f.nextID
	f.nextID++
	f.docs[out.ID] = &out
	return &out, nil
}

func (f *fakeDocRepo) Get(_ context.Context, id int64) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (f *fakeDocRepo) ListByOwner(_ context.Context, owner uuid.UUID) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, d := range f.docs {
		if d.OwnerID == owner {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDocRepo) UpdateContent(_ context.Context, id int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	d, ok := f.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	d.Content = content
	return nil
}

func (f *fakeDocRepo) Rename(_ context.Context, id int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	d.Name = name
	return nil
}

func (f *fakeDocRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

// fakeGrantRepo is an in-memory PermissionRepository enforcing the XOR key.
type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*model.Grant
	nextID int64
}

var _ repository.PermissionRepository = (*fakeGrantRepo)(nil)

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: map[string]*model.Grant{}, nextID: 1}
}

func grantKey(docID int64, ident model.Identity) string {
	if ident.Authenticated() {
		return "u:" + ident.UserID.UUID.String() + ":" + strconv.FormatInt(docID, 10)
	}
	return "g:" + ident.Name + ":" + strconv.FormatInt(docID, 10)
}

func (f *fakeGrantRepo) Upsert(_ context.Context, g *model.Grant) (*model.Grant, error) {
	hasUser := g.UserID.Valid
	hasGuest := g.GuestName != ""
	if hasUser == hasGuest {
		return nil, errs.ErrValidation
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ident := model.Identity{UserID: g.UserID, Name: g.GuestName}
	key := grantKey(g.DocID, ident)
	if existing, ok := f.grants[key]; ok {
		existing.Role = g.Role
		existing.GrantedBy = g.GrantedBy
		out := *existing
		return &out, nil
	}
	out := *g
	out.ID = f.nextID
	f.nextID++
	f.grants[key] = &out
	cp := out
	return &cp, nil
}

func (f *fakeGrantRepo) Find(_ context.Context, docID int64, ident model.Identity) (*model.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[grantKey(docID, ident)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := *g
	return &out, nil
}

func (f *fakeGrantRepo) ListByDoc(_ context.Context, docID int64) ([]model.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Grant
	for _, g := range f.grants {
		if g.DocID == docID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGrantRepo) DeleteByDoc(_ context.Context, docID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, g := range f.grants {
		if g.DocID == docID {
			delete(f.grants, k)
		}
	}
	return nil
}
