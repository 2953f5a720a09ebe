package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 1 << 20
	guestTagLength = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// the browser client is served from another origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is a client-to-server message on an open session.
type wsFrame struct {
	Type    string `json:"type"` // "edit" or "cursor"
	Content string `json:"content,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// envelope wraps a broadcast payload with its topic for the client.
type envelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// handleWS upgrades the request and runs one collaborative session: the
// connection joins the document's presence set, receives every broadcast on
// the document's topics, and feeds inbound edit and cursor frames to the
// collaboration service.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.docs.Get(r.Context(), docID); err != nil {
		writeError(w, err)
		return
	}

	connID, err := uuid.NewV4()
	if err != nil {
		writeError(w, err)
		return
	}
	ident := s.resolveIdentity(r, connID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		s.logger.Warn("ws upgrade", zap.Error(err))
		return
	}

	log := s.logger.With(
		zap.Int64("docID", docID),
		zap.String("connID", connID.String()),
		zap.String("user", ident.Name),
	)
	log.Info("session opened")

	sub := s.hub.Subscribe(
		hub.EditsTopic(docID),
		hub.CursorsTopic(docID),
		hub.DiagnosticsTopic(docID),
		hub.UsersTopic(docID),
		hub.PermissionsTopic(docID),
		hub.CompilerTopic(docID),
	)
	s.tracker.Join(docID, ident.Name)

	done := make(chan struct{})
	go s.writePump(conn, sub, done, log)

	s.readLoop(r.Context(), conn, docID, ident, log)

	// teardown: leaving presence notifies the remaining users, closing the
	// subscription stops the write pump
	s.tracker.Leave(docID, ident.Name)
	s.hub.Unsubscribe(sub)
	<-done
	_ = conn.Close()
	log.Info("session closed")
}

// resolveIdentity picks the session display name: an explicit name from the
// client wins, then the authenticated account's username, then a generated
// guest tag derived from the connection id.
func (s *Server) resolveIdentity(r *http.Request, connID uuid.UUID) model.Identity {
	var ident model.Identity
	if id, ok := UserIDFromCtx(r.Context()); ok {
		ident.UserID = uuid.NullUUID{UUID: id, Valid: true}
	}

	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		ident.Name = name
		return ident
	}
	if ident.Authenticated() {
		if u, err := s.users.GetByID(r.Context(), ident.UserID.UUID); err == nil {
			ident.Name = u.Username
			return ident
		}
	}
	ident.Name = "Guest_" + guestTag(connID)
	return ident
}

// guestTag is the first 8 hex characters of the connection id.
func guestTag(connID uuid.UUID) string {
	hex := strings.ReplaceAll(connID.String(), "-", "")
	return hex[:guestTagLength]
}

// writePump is the sole writer on the connection. It forwards hub broadcasts
// and keeps the connection alive with pings.
func (s *Server) writePump(conn *websocket.Conn, sub *hub.Subscription, done chan<- struct{}, log *zap.Logger) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			data, err := json.Marshal(envelope{Topic: msg.Topic, Payload: msg.Payload})
			if err != nil {
				log.Error("marshal broadcast", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes frames until the client disconnects.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, docID int64, ident model.Identity, log *zap.Logger) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read", zap.Error(err))
			}
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn("bad frame", zap.Error(err))
			continue
		}
		s.dispatch(ctx, docID, ident, frame, log)
	}
}

// dispatch routes one inbound frame. A rejected edit is dropped without
// tearing down the session: the client may have been revoked mid-session.
func (s *Server) dispatch(ctx context.Context, docID int64, ident model.Identity, frame wsFrame, log *zap.Logger) {
	switch frame.Type {
	case "edit":
		if err := s.collab.ApplyEdit(ctx, docID, ident, frame.Content); err != nil {
			if errors.Is(err, errs.ErrForbidden) {
				log.Info("edit rejected")
				return
			}
			log.Error("apply edit", zap.Error(err))
		}
	case "cursor":
		s.collab.MoveCursor(ctx, docID, ident, frame.Line, frame.Column)
	default:
		log.Warn("unknown frame type", zap.String("type", frame.Type))
	}
}
