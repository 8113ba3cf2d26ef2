// Package registry tracks which users are online right now. It is the only
// state shared between sessions and the single source of truth for the
// online-push vs. offline-persist routing decision.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatrelay/internal/protocol"
)

// Session is the handle the registry keeps for an online user. Push writes
// an asynchronous event to that user's connection; Kick closes it. ID
// distinguishes handles so a superseded registration cannot unregister its
// successor.
type Session interface {
	ID() uuid.UUID
	Push(resp *protocol.Response) error
	Kick()
}

// Registry is a concurrent username → session map. At most one session is
// registered per username; a re-login replaces the previous entry
// (last-login-wins).
type Registry struct {
	mu     sync.RWMutex
	online map[string]Session
}

func New() *Registry {
	return &Registry{online: make(map[string]Session)}
}

// Register records s as the live session for username and returns the
// session it superseded, if any. The caller decides what to do with the
// old handle (we close it).
func (r *Registry) Register(username string, s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.online[username]
	r.online[username] = s
	return prev
}

// Unregister removes the entry for username, but only while it still points
// at s. A session torn down after being superseded must not clobber the
// newer registration.
func (r *Registry) Unregister(username string, s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.online[username]
	if !ok || cur.ID() != s.ID() {
		return false
	}
	delete(r.online, username)
	return true
}

// Lookup returns the live session for username, if online.
func (r *Registry) Lookup(username string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.online[username]
	return s, ok
}

// Count reports how many users are currently online.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.online)
}
