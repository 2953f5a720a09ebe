package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
)

// --- Auth ---

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}
	userID, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"userId": userID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	tok, u, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, ip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": tok.AccessToken,
		"expiresAt":   tok.ExpiresAt,
		"userId":      u.ID.String(),
		"username":    u.Username,
	})
}

// --- Documents ---

type createDocumentRequest struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	owner, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}
	doc, err := s.docs.Create(r.Context(), req.Name, req.Content, req.Language, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	list, err := s.docs.ListByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.docs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRenameDocument(w http.ResponseWriter, r *http.Request) {
	actingUser, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}
	if err := s.docs.Rename(r.Context(), id, req.Name, actingUser); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	actingUser, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.docs.Delete(r.Context(), id, actingUser); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Compiler ---

type compilerRunRequest struct {
	FileID    int64  `json:"fileId"`
	Code      string `json:"code"`
	GuestName string `json:"guestName,omitempty"`
}

func (s *Server) handleCompilerRun(w http.ResponseWriter, r *http.Request) {
	var req compilerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}
	ident := requestIdentity(r, req.GuestName)
	res, err := s.pipeline.Run(r.Context(), req.FileID, req.Code, ident)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Permissions ---

type permissionRequest struct {
	FileID    int64  `json:"fileId"`
	UserID    string `json:"userId,omitempty"`
	GuestName string `json:"guestName,omitempty"`
}

func (s *Server) handleGrantEdit(w http.ResponseWriter, r *http.Request) {
	s.handleSetRole(w, r, true)
}

func (s *Server) handleRevokeEdit(w http.ResponseWriter, r *http.Request) {
	s.handleSetRole(w, r, false)
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request, grant bool) {
	actingUser, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}
	ident, err := subjectIdentity(req)
	if err != nil {
		writeError(w, err)
		return
	}
	var g *model.Grant
	if grant {
		g, err = s.perms.GrantEdit(r.Context(), req.FileID, ident, actingUser)
	} else {
		g, err = s.perms.RevokeEdit(r.Context(), req.FileID, ident, actingUser)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	actingUser, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	grants, err := s.perms.ListByDoc(r.Context(), id, actingUser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

// subjectIdentity builds the grant subject from a request that must name
// exactly one of a registered user or a guest.
func subjectIdentity(req permissionRequest) (model.Identity, error) {
	if (req.UserID == "") == (req.GuestName == "") {
		return model.Identity{}, fmt.Errorf("%w: exactly one of userId/guestName required", errs.ErrValidation)
	}
	if req.UserID != "" {
		id, err := uuid.FromString(req.UserID)
		if err != nil {
			return model.Identity{}, fmt.Errorf("%w: bad userId", errs.ErrValidation)
		}
		return model.Identity{UserID: uuid.NullUUID{UUID: id, Valid: true}}, nil
	}
	return model.Identity{Name: req.GuestName}, nil
}

// requestIdentity resolves who is acting: the authenticated principal when
// present, otherwise a guest under the supplied name.
func requestIdentity(r *http.Request, guestName string) model.Identity {
	if id, ok := UserIDFromCtx(r.Context()); ok {
		return model.Identity{UserID: uuid.NullUUID{UUID: id, Valid: true}}
	}
	if guestName == "" {
		guestName = "Guest"
	}
	return model.Identity{Name: guestName}
}

// --- Rooms ---

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	actingUser, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthorized)
		return
	}
	var req struct {
		FileID int64 `json:"fileId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad body", errs.ErrValidation))
		return
	}
	room, shareURL, err := s.rooms.Create(r.Context(), req.FileID, actingUser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"roomId":   room.ID,
		"fileId":   room.DocID,
		"shareUrl": shareURL,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := muxVar(r, "roomId")
	doc, err := s.rooms.Join(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
