package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/evanmtz/streampost/internal/cookies"
	"github.com/evanmtz/streampost/internal/platform"
	"github.com/evanmtz/streampost/internal/schedule"
	"github.com/evanmtz/streampost/internal/storage"
)

// entry pairs a session with its own mutex so unrelated sessions
// never contend on one global lock. The registry map itself is only
// locked for insert/lookup/delete.
type entry struct {
	mu         sync.Mutex
	sess       Session
	done       chan struct{} // closed on the terminal transition
	terminalAt time.Time
}

// Store is the single owner of mutable login-session state. All
// mutation goes through the compare-and-transition primitive, which
// totally orders transitions per session: a late worker report can
// never overwrite a Cancelled or Timeout terminal state.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	window time.Duration // login window fixed at creation
	grace  time.Duration // how long terminal sessions stay pollable in memory

	repo  *storage.LoginRepository // optional terminal-snapshot archive
	sweep *schedule.Task
}

// NewStore creates a session store. repo may be nil to run without
// the redis snapshot archive.
func NewStore(repo *storage.LoginRepository, window, grace time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		window:  window,
		grace:   grace,
		repo:    repo,
	}
}

// Create registers a new session in Initializing with a fixed
// deadline and returns a snapshot of it
func (s *Store) Create(p platform.Platform) (Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return Session{}, err
	}

	now := time.Now()
	e := &entry{
		sess: Session{
			ID:        id,
			Platform:  p,
			Status:    StatusInitializing,
			CreatedAt: now,
			Deadline:  now.Add(s.window),
		},
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()

	slog.Info("login session created",
		"session_id", id,
		"platform", p,
		"deadline", e.sess.Deadline)

	return e.sess, nil
}

// lookup finds the live entry for a session id
func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	return e, ok
}

// Get returns a snapshot of the session's current state. Sessions
// garbage-collected from memory are served from the terminal-snapshot
// archive so a final client poll still observes the outcome.
func (s *Store) Get(id string) (Session, error) {
	if e, ok := s.lookup(id); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return snapshot(&e.sess), nil
	}

	// Fall back to the archive for recently collected sessions
	if s.repo != nil {
		if state, err := s.repo.Get(id); err == nil {
			return stateToSession(state), nil
		}
	}

	return Session{}, ErrSessionNotFound
}

// Done returns a channel closed when the session reaches a terminal
// state. Workers watch it for cancellation.
func (s *Store) Done(id string) (<-chan struct{}, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.done, nil
}

// transition is the compare-and-transition primitive: mutate runs
// only if the session's current status is one of from. Returns false
// without touching the session otherwise, so duplicate or late
// reports are no-ops.
func (s *Store) transition(id string, from []Status, to Status, mutate func(*Session)) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}

	e.mu.Lock()

	matched := false
	for _, st := range from {
		if e.sess.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		e.mu.Unlock()
		return false
	}

	e.sess.Status = to
	if mutate != nil {
		mutate(&e.sess)
	}

	var archived Session
	terminal := to.Terminal()
	if terminal {
		e.terminalAt = time.Now()
		close(e.done)
		archived = snapshot(&e.sess)
	}

	e.mu.Unlock()

	slog.Info("login session transition",
		"session_id", id,
		"status", to)

	// Archive terminal snapshots outside the entry lock
	if terminal {
		s.archive(archived)
	}

	return true
}

// SetWaiting moves a freshly allocated session into Waiting and
// records its login URL
func (s *Store) SetWaiting(id, loginURL string) bool {
	return s.transition(id, []Status{StatusInitializing}, StatusWaiting, func(sess *Session) {
		sess.LoginURL = loginURL
	})
}

// Complete moves a Waiting session to LoggedIn with its captured
// cookies. A session that already timed out or was cancelled is left
// untouched.
func (s *Store) Complete(id string, records []cookies.Record) bool {
	return s.transition(id, []Status{StatusWaiting}, StatusLoggedIn, func(sess *Session) {
		sess.Cookies = records
	})
}

// Fail moves a non-terminal session to Error with a message the
// polling client will see
func (s *Store) Fail(id, message string) bool {
	return s.transition(id, []Status{StatusInitializing, StatusWaiting}, StatusError, func(sess *Session) {
		sess.ErrorMessage = message
	})
}

// Cancel moves a non-terminal session to Cancelled. Always acks for
// known sessions; cancelling an already-terminal session is a no-op.
func (s *Store) Cancel(id string) error {
	if _, ok := s.lookup(id); !ok {
		// Archived terminal sessions still ack
		if _, err := s.Get(id); err != nil {
			return err
		}
		return nil
	}

	s.transition(id, []Status{StatusInitializing, StatusWaiting}, StatusCancelled, nil)
	return nil
}

// SweepOnce runs one pass of the background sweep: Waiting sessions
// past their deadline become Timeout, and terminal sessions past the
// grace period are collected. Safe to run concurrently with
// client-triggered transitions; it uses the same CAS primitive.
func (s *Store) SweepOnce(now time.Time) {
	// Phase 1: collect candidate ids under the read lock
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	// Phase 2: examine each session under its own lock
	var collect []string
	for _, id := range ids {
		e, ok := s.lookup(id)
		if !ok {
			continue
		}

		e.mu.Lock()
		expired := e.sess.Status == StatusWaiting && now.After(e.sess.Deadline)
		collectable := e.sess.Status.Terminal() && now.Sub(e.terminalAt) > s.grace
		e.mu.Unlock()

		if expired {
			if s.transition(id, []Status{StatusWaiting}, StatusTimeout, func(sess *Session) {
				sess.ErrorMessage = "login window elapsed"
			}) {
				slog.Info("login session timed out", "session_id", id)
			}
		}

		if collectable {
			collect = append(collect, id)
		}
	}

	// Phase 3: drop collected sessions from the registry; the archive
	// keeps serving their terminal snapshot until its TTL runs out
	if len(collect) > 0 {
		s.mu.Lock()
		for _, id := range collect {
			delete(s.entries, id)
		}
		s.mu.Unlock()

		slog.Debug("collected terminal login sessions", "count", len(collect))
	}
}

// StartSweeper runs the sweep on a fixed period until Close
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	s.sweep = schedule.Every(ctx, interval, s.SweepOnce)
	slog.Info("login sweep started", "interval", interval)
}

// Close stops the sweeper
func (s *Store) Close() {
	if s.sweep != nil {
		s.sweep.Stop()
	}
}

// Count returns the number of sessions currently registered
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// archive writes a terminal snapshot to redis, best effort
func (s *Store) archive(sess Session) {
	if s.repo == nil {
		return
	}

	if err := s.repo.SaveTerminal(sessionToState(sess)); err != nil {
		slog.Warn("failed to archive login session",
			"session_id", sess.ID,
			"error", err)
	}
}

// snapshot copies a session so callers never share the store's slice
func snapshot(sess *Session) Session {
	copied := *sess
	if sess.Cookies != nil {
		copied.Cookies = make([]cookies.Record, len(sess.Cookies))
		copy(copied.Cookies, sess.Cookies)
	}
	return copied
}

// sessionToState converts to the storage representation
func sessionToState(sess Session) *storage.LoginSessionState {
	return &storage.LoginSessionState{
		SessionID:    sess.ID,
		Platform:     string(sess.Platform),
		Status:       string(sess.Status),
		LoginURL:     sess.LoginURL,
		Cookies:      cookies.Serialize(sess.Cookies),
		ErrorMessage: sess.ErrorMessage,
		CreatedAt:    sess.CreatedAt,
		Deadline:     sess.Deadline,
	}
}

// stateToSession converts an archived snapshot back
func stateToSession(state *storage.LoginSessionState) Session {
	sess := Session{
		ID:           state.SessionID,
		Platform:     platform.Platform(state.Platform),
		Status:       Status(state.Status),
		LoginURL:     state.LoginURL,
		ErrorMessage: state.ErrorMessage,
		CreatedAt:    state.CreatedAt,
		Deadline:     state.Deadline,
	}

	if state.Cookies != "" {
		var records []cookies.Record
		if err := json.Unmarshal([]byte(state.Cookies), &records); err == nil {
			sess.Cookies = records
		}
	}

	return sess
}
