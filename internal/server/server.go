// Package server exposes the HTTP and WebSocket API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/presence"
	"github.com/avdeev7/collabcode/internal/repository"
	"github.com/avdeev7/collabcode/internal/service"
)

// Server wires services into HTTP handlers and WebSocket sessions.
type Server struct {
	auth     service.AuthService
	docs     service.DocumentService
	perms    service.PermissionService
	rooms    service.RoomService
	collab   service.CollabService
	pipeline service.PipelineService
	users    repository.UserRepository
	hub      *hub.Hub
	tracker  *presence.Tracker
	signKey  []byte
	logger   *zap.Logger
}

// New constructs the server with injected services.
func New(
	auth service.AuthService,
	docs service.DocumentService,
	perms service.PermissionService,
	rooms service.RoomService,
	collab service.CollabService,
	pipeline service.PipelineService,
	users repository.UserRepository,
	h *hub.Hub,
	tracker *presence.Tracker,
	signKey []byte,
	logger *zap.Logger,
) *Server {
	return &Server{
		auth:     auth,
		docs:     docs,
		perms:    perms,
		rooms:    rooms,
		collab:   collab,
		pipeline: pipeline,
		users:    users,
		hub:      h,
		tracker:  tracker,
		signKey:  signKey,
		logger:   logger,
	}
}

// Router builds the full route table with middleware applied.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(Recover(s.logger), Logging(s.logger), Auth(s.signKey))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	api.HandleFunc("/files", s.handleCreateDocument).Methods(http.MethodPost)
	api.HandleFunc("/files", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/files/{id:[0-9]+}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/files/{id:[0-9]+}", s.handleRenameDocument).Methods(http.MethodPut)
	api.HandleFunc("/files/{id:[0-9]+}", s.handleDeleteDocument).Methods(http.MethodDelete)

	api.HandleFunc("/compiler/run", s.handleCompilerRun).Methods(http.MethodPost)

	api.HandleFunc("/permissions/grant-edit", s.handleGrantEdit).Methods(http.MethodPost)
	api.HandleFunc("/permissions/revoke-edit", s.handleRevokeEdit).Methods(http.MethodPost)
	api.HandleFunc("/permissions/{id:[0-9]+}", s.handleListGrants).Methods(http.MethodGet)

	api.HandleFunc("/room/create", s.handleCreateRoom).Methods(http.MethodPost)
	api.HandleFunc("/room/{roomId}", s.handleJoinRoom).Methods(http.MethodGet)

	r.HandleFunc("/ws/room/{id:[0-9]+}", s.handleWS).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps service sentinels onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, errs.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, errs.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, errs.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "already exists"})
	case errors.Is(err, errs.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limited"})
	case errors.Is(err, errs.ErrToolchainUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.ErrValidation
	}
	return id, nil
}
