// Package presence tracks which users currently hold at least one live
// connection. The registry is a pure state container: it reports online and
// offline transitions to the caller but never broadcasts them itself.
package presence

import (
	"sync"
)

// Registry maps a user id to the set of that user's open sessions. S is the
// session handle type; the registry never calls into it. All methods are
// individually atomic, no method holds the lock across a delivery.
type Registry[S comparable] struct {
	mu    sync.Mutex
	users map[string]map[S]struct{}
}

func NewRegistry[S comparable]() *Registry[S] {
	return &Registry[S]{
		users: make(map[string]map[S]struct{}),
	}
}

// Register adds session to the user's set and reports whether the user just
// came online, i.e. this was the user's first open session.
func (r *Registry[S]) Register(userId string, session S) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.users[userId]
	if !ok {
		sessions = make(map[S]struct{})
		r.users[userId] = sessions
	}
	sessions[session] = struct{}{}

	return !ok
}

// Unregister removes session from the user's set and reports whether the user
// just went offline, i.e. the set became empty. Unregistering a session that
// was already removed is a no-op, so duplicate disconnect signals are safe.
func (r *Registry[S]) Unregister(userId string, session S) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.users[userId]
	if !ok {
		return false
	}

	if _, ok := sessions[session]; !ok {
		return false
	}

	delete(sessions, session)
	if len(sessions) == 0 {
		delete(r.users, userId)
		return true
	}

	return false
}

// SessionsFor returns the user's currently open sessions. The slice is a
// snapshot; it reflects every register/unregister completed before the call.
func (r *Registry[S]) SessionsFor(userId string) []S {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]S, 0, len(r.users[userId]))
	for s := range r.users[userId] {
		sessions = append(sessions, s)
	}

	return sessions
}

// OnlineUserIds returns the ids of all users with at least one open session.
func (r *Registry[S]) OnlineUserIds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}

	return ids
}

// NumOnline returns the number of users with at least one open session.
func (r *Registry[S]) NumOnline() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}
