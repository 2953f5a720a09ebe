// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the access level an identity holds on a document.
type Role string

const (
	RoleView Role = "VIEW"
	RoleEdit Role = "EDIT"
)

// User represents a registered account (a potential document host).
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, Salt)
	Salt      []byte    // per-user auth salt
	CreatedAt time.Time
}

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Document is the shared source-text artifact being collaboratively edited.
// Content is authoritative as last-write-wins: the last accepted edit replaces
// the whole text, no merge.
type Document struct {
	ID        int64
	Name      string
	Content   string
	Language  string    // e.g. "java"
	OwnerID   uuid.UUID // host identity; implicitly holds EDIT
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Grant gives an identity VIEW or EDIT rights on a document. Exactly one of
// UserID or GuestName is set, never both and never neither.
type Grant struct {
	ID        int64
	DocID     int64
	UserID    uuid.NullUUID // authenticated identity (unset for guests)
	GuestName string        // guest display label (empty for authenticated users)
	Role      Role
	GrantedBy uuid.UUID
	GrantedAt time.Time
}

// Identity names a participant on exactly one of its two axes: an authenticated
// user id or a guest label chosen at join time.
type Identity struct {
	UserID uuid.NullUUID
	Name   string // display name used in presence and broadcasts
}

// Authenticated reports whether the identity carries a real account.
func (i Identity) Authenticated() bool { return i.UserID.Valid }

// Room binds a random short id to a document so guests can join by link.
// Immutable once created.
type Room struct {
	ID        string
	DocID     int64
	HostID    uuid.UUID
	CreatedAt time.Time
}

// Diagnostic is a single structured compiler or parser message.
type Diagnostic struct {
	Line     int64  `json:"line"`
	Column   int64  `json:"column"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // ERROR, WARNING, NOTE
	Code     string `json:"code"`     // raw toolchain code, may be empty
}

// CompileResult is the ephemeral outcome of one compile stage.
type CompileResult struct {
	Success      bool         `json:"success"`
	ClassName    string       `json:"className"`
	OutputDir    string       `json:"-"` // per-request scratch dir, never serialized
	Diagnostics  []Diagnostic `json:"errors"`
	ErrorMessage string       `json:"errorMessage,omitempty"` // configuration errors only
	Elapsed      int64        `json:"compilationTimeMs"`
}

// ExecResult is the ephemeral outcome of one execute stage.
type ExecResult struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"output"`
	Stderr   string `json:"error"`
	ExitCode int    `json:"exitCode"`
	TimedOut bool   `json:"timedOut"`
	Elapsed  int64  `json:"executionTimeMs"`
}

// Stage names one step of the compile-execute state machine.
type Stage string

const (
	StageStarted         Stage = "compilation_started"
	StageCompiling       Stage = "compiling"
	StageCompiled        Stage = "compilation_success"
	StageCompileFailed   Stage = "compilation_failed"
	StageExecuting       Stage = "executing"
	StageExecuted        Stage = "execution_success"
	StageExecutionFailed Stage = "execution_failed"
)
