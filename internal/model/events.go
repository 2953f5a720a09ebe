package model

// Broadcast event payloads. Field names match the client wire protocol.

// EditEvent carries a whole-document content replacement.
type EditEvent struct {
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
}

// CursorEvent carries one participant's caret position.
type CursorEvent struct {
	AuthorName string `json:"authorName"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// DiagnosticsEvent carries syntax diagnostics for the latest accepted edit.
// An empty Diagnostics slice is published deliberately to clear stale markers.
type DiagnosticsEvent struct {
	AuthorName  string       `json:"authorName"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Timestamp   int64        `json:"timestamp"`
}

// PresenceEvent carries the full active-user list for a document.
type PresenceEvent struct {
	DocID int64    `json:"fileId"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// PermissionEvent announces a grant change to already-connected sessions.
type PermissionEvent struct {
	Identity string `json:"identity"`
	CanEdit  bool   `json:"canEdit"`
	DocID    int64  `json:"fileId"`
}

// StageEvent reports one compile-execute state machine transition.
type StageEvent struct {
	Event     Stage        `json:"event"`
	DocID     int64        `json:"fileId"`
	ClassName string       `json:"className,omitempty"`
	Elapsed   int64        `json:"elapsedMs"`
	Timestamp int64        `json:"timestamp"`
	Errors    []Diagnostic `json:"errors,omitempty"`
	Message   string       `json:"errorMessage,omitempty"`
	Output    string       `json:"output,omitempty"`
	ExitCode  int          `json:"exitCode,omitempty"`
}
