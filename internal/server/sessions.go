package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/session"
)

// entry guards one session. Sessions are not safe for concurrent use, so
// every read or edit happens under mu.
type entry struct {
	mu      sync.Mutex
	session *session.Session
	// updated is the unix nano time of the last successful edit.
	updated atomic.Int64
}

func newEntry(s *session.Session) *entry {
	e := &entry{session: s}
	e.updated.Store(time.Now().UnixNano())

	return e
}

// sessionStore keeps the sessions edited through the API in memory.
type sessionStore struct {
	entries map[string]*entry
	mutex   sync.RWMutex
	max     int
}

func newSessionStore(max int) *sessionStore {
	return &sessionStore{
		entries: make(map[string]*entry),
		max:     max,
	}
}

// create registers s under a fresh id. The least recently edited session is
// evicted when the store is full.
func (st *sessionStore) create(s *session.Session) string {
	id := uuid.NewString()

	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.max > 0 && len(st.entries) >= st.max {
		st.evictOldest()
	}
	st.entries[id] = newEntry(s)

	return id
}

func (st *sessionStore) evictOldest() {
	var (
		oldestID string
		oldest   int64
	)
	for id, e := range st.entries {
		if at := e.updated.Load(); oldestID == "" || at < oldest {
			oldestID, oldest = id, at
		}
	}
	delete(st.entries, oldestID)
}

func (st *sessionStore) get(id string) (*entry, error) {
	st.mutex.RLock()
	e, ok := st.entries[id]
	st.mutex.RUnlock()

	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeSessionNotFound,
			fmt.Sprintf("session %q not found", id))
	}

	return e, nil
}

func (st *sessionStore) delete(id string) bool {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	_, ok := st.entries[id]
	delete(st.entries, id)

	return ok
}

func (st *sessionStore) count() int {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	return len(st.entries)
}

// view runs fn with the session locked.
func (e *entry) view(fn func(s *session.Session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return fn(e.session)
}

// edit runs fn with the session locked and stamps the entry when fn
// succeeds. fn may return a replacement session.
func (e *entry) edit(fn func(s *session.Session) (*session.Session, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.session)
	if err != nil {
		return err
	}
	if next != nil {
		e.session = next
	}
	e.updated.Store(time.Now().UnixNano())

	return nil
}
