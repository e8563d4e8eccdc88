// ABOUTME: Thread-safe, TTL-bounded store of per-user sessions.
// ABOUTME: Per-user mutexes linearize read-modify-write; a background sweeper evicts idle sessions.

package session

import (
	"log/slog"
	"sync"
	"time"
)

// entry wraps a stored session with its own mutex so operations for
// distinct users never contend.
type entry struct {
	mu      sync.Mutex
	session Session
}

// Store holds all live sessions. Sessions are created lazily on first
// lookup and evicted by the sweeper once idle past the TTL.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	logger   *slog.Logger
	done     chan struct{}
	closed   bool
}

// NewStore creates a session store with the given idle TTL. If
// sweepInterval is positive, a background goroutine sweeps expired
// sessions on that interval until Close is called.
func NewStore(ttl, sweepInterval time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		logger:   logger.With("component", "session"),
		done:     make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Get returns a copy of the user's session with LastActivity refreshed,
// creating a default session if the user is unseen. It never returns a
// zero session for a valid user id.
func (s *Store) Get(userID string) Session {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.LastActivity = time.Now()
	return e.session
}

// Update replaces the stored session for userID, refreshing LastActivity.
func (s *Store) Update(userID string, sess Session) {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	sess.UserID = userID
	sess.LastActivity = time.Now()
	e.session = sess
}

// Mutate runs fn on the user's session under its per-user lock, so
// concurrent events for the same user cannot interleave a read-modify-write.
// LastActivity is refreshed after fn returns.
func (s *Store) Mutate(userID string, fn func(*Session)) Session {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.session)
	e.session.UserID = userID
	e.session.LastActivity = time.Now()
	return e.session
}

// Clear replaces the user's session with a fresh default one. Used by
// the /reset command; the user keeps existing but starts over.
func (s *Store) Clear(userID string) {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = newSession(userID)
}

// Delete removes the user's session entirely. Used on unfollow, which is
// a hard goodbye rather than a reset.
func (s *Store) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepExpired removes every session idle longer than ttl and returns
// the number removed.
func (s *Store) SweepExpired(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for userID, e := range s.sessions {
		e.mu.Lock()
		expired := now.Sub(e.session.LastActivity) > ttl
		e.mu.Unlock()
		if expired {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

// Close stops the background sweeper. Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
}

// entryFor returns the entry for userID, creating it if absent.
func (s *Store) entryFor(userID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		e = &entry{session: newSession(userID)}
		s.sessions[userID] = e
	}
	return e
}

// sweepLoop periodically evicts expired sessions until Close.
func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.SweepExpired(s.ttl); n > 0 {
				s.logger.Info("swept expired sessions", "count", n)
			}
		case <-s.done:
			return
		}
	}
}
