package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/model"
	"github.com/avdeev7/collabcode/internal/presence"
	"github.com/avdeev7/collabcode/internal/service"
)

var testSignKey = []byte("test-sign-key")

func makeJWT(t *testing.T, sub string, key []byte) string {
	t.Helper()
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

type fakeAuth struct {
	id       uuid.UUID
	loginErr error
}

func (f *fakeAuth) Register(_ context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errs.ErrValidation
	}
	if username == "taken" {
		return "", errs.ErrAlreadyExists
	}
	return f.id.String(), nil
}

func (f *fakeAuth) LoginWithIP(context.Context, string, string, string) (model.Tokens, model.User, error) {
	if f.loginErr != nil {
		return model.Tokens{}, model.User{}, f.loginErr
	}
	return model.Tokens{AccessToken: "dummy", ExpiresAt: time.Now().Add(time.Minute)},
		model.User{ID: f.id, Username: "alice"}, nil
}

type fakeDocs struct {
	mu     sync.Mutex
	docs   map[int64]*model.Document
	nextID int64
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[int64]*model.Document{}, nextID: 1}
}

func (f *fakeDocs) Create(_ context.Context, name, content, language string, owner uuid.UUID) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &model.Document{ID: f.nextID, Name: name, Content: content, Language: language, OwnerID: owner}
	f.docs[d.ID] = d
	f.nextID++
	return d, nil
}

func (f *fakeDocs) Get(_ context.Context, id int64) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (f *fakeDocs) ListByOwner(_ context.Context, owner uuid.UUID) ([]model.Document, error) {
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

func (f *fakeDocs) Rename(_ context.Context, id int64, name string, actingUser uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	if d.OwnerID != actingUser {
		return errs.ErrForbidden
	}
	d.Name = name
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id int64, actingUser uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	if d.OwnerID != actingUser {
		return errs.ErrForbidden
	}
	delete(f.docs, id)
	return nil
}

type fakePerms struct {
	mu      sync.Mutex
	granted []model.Identity
	revoked []model.Identity
}

func (f *fakePerms) Authorize(context.Context, int64, model.Identity, service.Action) error {
	return nil
}

func (f *fakePerms) GrantEdit(_ context.Context, docID int64, ident model.Identity, _ uuid.UUID) (*model.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, ident)
	return &model.Grant{ID: 1, DocID: docID, UserID: ident.UserID, GuestName: ident.Name, Role: model.RoleEdit}, nil
}

func (f *fakePerms) RevokeEdit(_ context.Context, docID int64, ident model.Identity, _ uuid.UUID) (*model.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, ident)
	return &model.Grant{ID: 1, DocID: docID, UserID: ident.UserID, GuestName: ident.Name, Role: model.RoleView}, nil
}

func (f *fakePerms) ListByDoc(context.Context, int64, uuid.UUID) ([]model.Grant, error) {
	return nil, nil
}

type fakeRooms struct{}

func (fakeRooms) Create(_ context.Context, docID int64, _ uuid.UUID) (*model.Room, string, error) {
	return &model.Room{ID: "abc123def456", DocID: docID}, "http://localhost:8080/room/abc123def456", nil
}

func (fakeRooms) Join(_ context.Context, roomID string) (*model.Document, error) {
	if roomID != "abc123def456" {
		return nil, errs.ErrNotFound
	}
	return &model.Document{ID: 1, Name: "Main.java"}, nil
}

type fakeCollab struct {
	mu      sync.Mutex
	edits   []string
	cursors [][2]int
	editErr error
}

func (f *fakeCollab) ApplyEdit(_ context.Context, _ int64, _ model.Identity, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, content)
	return nil
}

func (f *fakeCollab) MoveCursor(_ context.Context, _ int64, _ model.Identity, line, column int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, [2]int{line, column})
}

type fakePipeline struct {
	lastIdent model.Identity
	res       service.RunResult
	err       error
}

func (f *fakePipeline) Run(_ context.Context, _ int64, _ string, ident model.Identity) (service.RunResult, error) {
	f.lastIdent = ident
	return f.res, f.err
}

type fakeUsers struct {
	byID map[uuid.UUID]*model.User
}

func (f *fakeUsers) Create(context.Context, *model.User) error { return nil }

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByUsername(context.Context, string) (*model.User, error) {
	return nil, errs.ErrNotFound
}

type serverFixture struct {
	srv    *Server
	auth   *fakeAuth
	docs   *fakeDocs
	perms  *fakePerms
	collab *fakeCollab
	pipe   *fakePipeline
	users  *fakeUsers
	userID uuid.UUID
	token  string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	userID := uuid.Must(uuid.NewV4())
	logger := zap.NewNop()
	h := hub.New(logger)
	f := &serverFixture{
		auth:   &fakeAuth{id: userID},
		docs:   newFakeDocs(),
		perms:  &fakePerms{},
		collab: &fakeCollab{},
		pipe:   &fakePipeline{},
		users:  &fakeUsers{byID: map[uuid.UUID]*model.User{userID: {ID: userID, Username: "alice"}}},
		userID: userID,
		token:  makeJWT(t, userID.String(), testSignKey),
	}
	f.srv = New(f.auth, f.docs, f.perms, fakeRooms{}, f.collab, f.pipe, f.users,
		h, presence.New(h, logger), testSignKey, logger)
	return f
}

// do runs one request through the full router.
func (f *serverFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}
