package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/avdeev7/collabcode/internal/hub"
)

func identityRequest(t *testing.T, f *serverFixture, query string, authed bool) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ws/room/1"+query, nil)
	if authed {
		req = req.WithContext(WithUserID(req.Context(), f.userID))
	}
	return req
}

func TestResolveIdentity_ExplicitNameWins(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)
	connID := uuid.Must(uuid.NewV4())

	ident := f.srv.resolveIdentity(identityRequest(t, f, "?name=Renamed", true), connID)
	require.Equal(t, "Renamed", ident.Name)
	require.True(t, ident.Authenticated())
}

func TestResolveIdentity_FallsBackToUsername(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)
	connID := uuid.Must(uuid.NewV4())

	ident := f.srv.resolveIdentity(identityRequest(t, f, "", true), connID)
	require.Equal(t, "alice", ident.Name)
	require.True(t, ident.Authenticated())
}

func TestResolveIdentity_AnonymousGetsGuestTag(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)
	connID := uuid.Must(uuid.NewV4())

	ident := f.srv.resolveIdentity(identityRequest(t, f, "", false), connID)
	require.False(t, ident.Authenticated())
	require.True(t, strings.HasPrefix(ident.Name, "Guest_"))
	require.Len(t, ident.Name, len("Guest_")+guestTagLength)
	require.Equal(t, "Guest_"+guestTag(connID), ident.Name)
}

func TestGuestTagStable(t *testing.T) {
	t.Parallel()
	connID := uuid.Must(uuid.FromString("4f5b8c21-0000-4000-8000-000000000000"))
	require.Equal(t, "4f5b8c21", guestTag(connID))
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

// readEnvelope reads frames until one arrives on the wanted topic.
func readEnvelope(t *testing.T, conn *websocket.Conn, topic string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env struct {
			Topic   string          `json:"topic"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Topic != topic {
			continue
		}
		var payload map[string]any
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		return payload
	}
}

func TestSession_PresenceAndEditFlow(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)
	_, err := f.docs.Create(t.Context(), "Main.java", "", "java", f.userID)
	require.NoError(t, err)

	ts := httptest.NewServer(f.srv.Router())
	defer ts.Close()

	alice := dialWS(t, ts, "/ws/room/1?name=alice")
	defer alice.Close()

	// own join is observed
	users := readEnvelope(t, alice, hub.UsersTopic(1))
	require.Equal(t, float64(1), users["count"])

	bob := dialWS(t, ts, "/ws/room/1?name=bob")
	users = readEnvelope(t, alice, hub.UsersTopic(1))
	require.Equal(t, float64(2), users["count"])

	// an edit frame reaches the collaboration service
	require.NoError(t, alice.WriteJSON(wsFrame{Type: "edit", Content: "class A {}"}))
	require.Eventually(t, func() bool {
		f.collab.mu.Lock()
		defer f.collab.mu.Unlock()
		return len(f.collab.edits) == 1 && f.collab.edits[0] == "class A {}"
	}, 2*time.Second, 10*time.Millisecond)

	// cursor frames too
	require.NoError(t, alice.WriteJSON(wsFrame{Type: "cursor", Line: 3, Column: 7}))
	require.Eventually(t, func() bool {
		f.collab.mu.Lock()
		defer f.collab.mu.Unlock()
		return len(f.collab.cursors) == 1 && f.collab.cursors[0] == [2]int{3, 7}
	}, 2*time.Second, 10*time.Millisecond)

	// departure shrinks the presence set
	require.NoError(t, bob.Close())
	users = readEnvelope(t, alice, hub.UsersTopic(1))
	require.Equal(t, float64(1), users["count"])
}

func TestSession_UnknownDocumentRejected(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	ts := httptest.NewServer(f.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/room/404"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
