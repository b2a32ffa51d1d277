package orchestrator

import (
	"github.com/cornelk/hashmap"

	"btctl/internal/gatt"
)

// SessionRegistry tracks at most one open GATT session per address. The
// orchestrator is the only writer; sessions never live in package state.
type SessionRegistry struct {
	sessions *hashmap.Map[string, gatt.Session]
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: hashmap.New[string, gatt.Session]()}
}

// Get returns the registered session for the address, if any.
func (r *SessionRegistry) Get(address string) (gatt.Session, bool) {
	return r.sessions.Get(address)
}

// Put registers a session, replacing any previous entry.
func (r *SessionRegistry) Put(address string, sess gatt.Session) {
	r.sessions.Set(address, sess)
}

// Remove drops the entry and returns the session that was registered.
func (r *SessionRegistry) Remove(address string) (gatt.Session, bool) {
	sess, ok := r.sessions.Get(address)
	if ok {
		r.sessions.Del(address)
	}
	return sess, ok
}

// Addresses returns every address with a registered session.
func (r *SessionRegistry) Addresses() []string {
	var out []string
	r.sessions.Range(func(addr string, _ gatt.Session) bool {
		out = append(out, addr)
		return true
	})
	return out
}

// Len returns the number of registered sessions.
func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}
