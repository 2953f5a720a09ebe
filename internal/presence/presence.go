// Package presence tracks which identities are currently connected to each
// document. Documents are tracked independently: contention on one document
// never serializes another.
package presence

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/model"
)

// Publisher is the hub surface the tracker needs.
type Publisher interface {
	Publish(topic string, payload any)
}

type docEntry struct {
	mu    sync.Mutex
	users map[string]struct{}
}

// Tracker maintains the per-document set of active identities and broadcasts
// the updated list on every change.
type Tracker struct {
	mu     sync.RWMutex
	docs   map[int64]*docEntry
	pub    Publisher
	logger *zap.Logger
}

// New constructs a tracker publishing presence events through pub.
func New(pub Publisher, logger *zap.Logger) *Tracker {
	return &Tracker{docs: make(map[int64]*docEntry), pub: pub, logger: logger}
}

// Join adds identity to the document's active set. Idempotent.
func (t *Tracker) Join(docID int64, identity string) {
	e := t.entry(docID)
	e.mu.Lock()
	e.users[identity] = struct{}{}
	e.mu.Unlock()

	t.logger.Info("user joined", zap.Int64("docID", docID), zap.String("user", identity))
	t.broadcast(docID)
}

// Leave removes identity from the document's active set. When the set becomes
// empty the per-document entry itself is reclaimed.
func (t *Tracker) Leave(docID int64, identity string) {
	t.mu.RLock()
	e, ok := t.docs[docID]
	t.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	delete(e.users, identity)
	empty := len(e.users) == 0
	e.mu.Unlock()

	if empty {
		t.mu.Lock()
		if e2, ok := t.docs[docID]; ok {
			e2.mu.Lock()
			if len(e2.users) == 0 {
				delete(t.docs, docID)
			}
			e2.mu.Unlock()
		}
		t.mu.Unlock()
	}

	t.logger.Info("user left", zap.Int64("docID", docID), zap.String("user", identity))
	t.broadcast(docID)
}

// Snapshot returns a point-in-time sorted copy of the document's active set.
// Callers never see the live set.
func (t *Tracker) Snapshot(docID int64) []string {
	t.mu.RLock()
	e, ok := t.docs[docID]
	t.mu.RUnlock()
	if !ok {
		return []string{}
	}
	e.mu.Lock()
	out := make([]string, 0, len(e.users))
	for u := range e.users {
		out = append(out, u)
	}
	e.mu.Unlock()
	sort.Strings(out)
	return out
}

// Active reports whether identity is currently connected to the document.
func (t *Tracker) Active(docID int64, identity string) bool {
	t.mu.RLock()
	e, ok := t.docs[docID]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	_, in := e.users[identity]
	e.mu.Unlock()
	return in
}

func (t *Tracker) entry(docID int64) *docEntry {
	t.mu.RLock()
	e, ok := t.docs[docID]
	t.mu.RUnlock()
	if ok {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.docs[docID]; ok {
		return e
	}
	e = &docEntry{users: make(map[string]struct{})}
	t.docs[docID] = e
	return e
}

func (t *Tracker) broadcast(docID int64) {
	users := t.Snapshot(docID)
	t.pub.Publish(hub.UsersTopic(docID), model.PresenceEvent{
		DocID: docID,
		Users: users,
		Count: len(users),
	})
}
