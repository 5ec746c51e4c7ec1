package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evanmtz/streampost/internal/cookies"
	"github.com/evanmtz/streampost/internal/platform"
)

// Error definitions
var (
	ErrSessionNotFound = errors.New("login session not found")
)

// Allocation is a live, isolated browser context prepared for one
// interactive login
type Allocation interface {
	// LoginURL is the page the user completes the login on
	LoginURL() string

	// Watch blocks until the platform's success-signal cookies appear,
	// then returns the captured raw cookie payload. Returns the
	// context's error when cancelled or timed out.
	Watch(ctx context.Context) (string, error)

	// Release tears the browser context down. Idempotent.
	Release()
}

// Worker is the automation collaborator that drives a real browser.
// It holds only the session snapshot and reports back through the
// broker; it never mutates session state directly.
type Worker interface {
	Allocate(ctx context.Context, sess Session) (Allocation, error)
}

// Outcome is the worker's report for a session: either captured
// cookies or an unrecoverable failure
type Outcome struct {
	Success bool
	Cookies string // raw payload; normalized before storage
	Error   string
}

// InitiateResult is what the client gets back from Initiate. On
// allocation failure the session id is still returned so the failure
// can be observed by polling.
type InitiateResult struct {
	SessionID    string
	LoginURL     string
	Status       Status
	ErrorMessage string
}

// Broker decouples "client asks for status" from "worker eventually
// reports an outcome". The interactive login is unbounded in
// wall-clock time, so it proceeds entirely in a background watcher
// while clients poll the store.
type Broker struct {
	store  *Store
	worker Worker
}

// NewBroker creates a broker over the given store and worker
func NewBroker(store *Store, worker Worker) *Broker {
	return &Broker{
		store:  store,
		worker: worker,
	}
}

// Initiate creates a session and asks the worker for an isolated
// browser context. Blocks only on allocation; the login itself runs
// in the background.
func (b *Broker) Initiate(ctx context.Context, p platform.Platform) (InitiateResult, error) {
	sess, err := b.store.Create(p)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("failed to create login session: %w", err)
	}

	alloc, err := b.worker.Allocate(ctx, sess)
	if err != nil {
		// Allocation failures are captured into session state, never
		// thrown across the session boundary
		message := fmt.Sprintf("failed to allocate browser context: %v", err)
		b.store.Fail(sess.ID, message)

		slog.Error("login allocation failed",
			"session_id", sess.ID,
			"platform", p,
			"error", err)

		return InitiateResult{
			SessionID:    sess.ID,
			Status:       StatusError,
			ErrorMessage: message,
		}, nil
	}

	if !b.store.SetWaiting(sess.ID, alloc.LoginURL()) {
		// The client cancelled while we were allocating
		alloc.Release()

		current, _ := b.store.Get(sess.ID)
		return InitiateResult{SessionID: sess.ID, Status: current.Status}, nil
	}

	// Hand the allocation to a background watcher; Initiate returns
	// immediately while the user performs the login
	current, _ := b.store.Get(sess.ID)
	go b.watch(current, alloc)

	return InitiateResult{
		SessionID: sess.ID,
		LoginURL:  alloc.LoginURL(),
		Status:    StatusWaiting,
	}, nil
}

// Status returns a snapshot of the session; pure read, never blocks
// beyond a lock acquisition
func (b *Broker) Status(id string) (Session, error) {
	return b.store.Get(id)
}

// Cancel flips the session to Cancelled and lets the watcher tear its
// browser context down. Idempotent; always a silent success for known
// sessions regardless of prior state.
func (b *Broker) Cancel(id string) error {
	return b.store.Cancel(id)
}

// ReportOutcome applies a worker's report. Only a session still in
// Waiting transitions; duplicate or late reports are no-ops. Captured
// cookies pass through the normalizer before storage, and the
// platform's required cookie names are enforced on this path the same
// way the paste flow enforces them.
func (b *Broker) ReportOutcome(id string, outcome Outcome) error {
	sess, err := b.store.Get(id)
	if err != nil {
		return err
	}

	if !outcome.Success {
		b.store.Fail(id, outcome.Error)
		return nil
	}

	records := cookies.DedupeByName(cookies.Normalize(outcome.Cookies, sess.Platform))

	if missing := cookies.MissingRequired(records, sess.Platform); len(missing) > 0 {
		b.store.Fail(id, fmt.Sprintf("captured cookies missing required names: %s",
			strings.Join(missing, ", ")))
		return nil
	}

	b.store.Complete(id, records)
	return nil
}

// watch waits for the worker to observe a login outcome, bounded by
// the session deadline and cut short by cancellation
func (b *Broker) watch(sess Session, alloc Allocation) {
	defer alloc.Release()

	done, err := b.store.Done(sess.ID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithDeadline(context.Background(), sess.Deadline)
	defer cancel()

	// Cut the watch short the moment the session goes terminal
	// (cancel, timeout sweep, or a competing report)
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()

	payload, err := alloc.Watch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled or out of time; the store transition is owned
			// by Cancel or the timeout sweep, nothing to report
			return
		}

		if reportErr := b.ReportOutcome(sess.ID, Outcome{Error: err.Error()}); reportErr != nil {
			slog.Warn("failed to report login failure",
				"session_id", sess.ID,
				"error", reportErr)
		}
		return
	}

	if reportErr := b.ReportOutcome(sess.ID, Outcome{Success: true, Cookies: payload}); reportErr != nil {
		slog.Warn("failed to report login success",
			"session_id", sess.ID,
			"error", reportErr)
	}
}
