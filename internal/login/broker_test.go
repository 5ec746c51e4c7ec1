package login

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evanmtz/streampost/internal/platform"
)

// stubAllocation waits for cancellation unless a watch function is
// supplied
type stubAllocation struct {
	loginURL string
	watchFn  func(ctx context.Context) (string, error)
	released atomic.Bool
}

func (a *stubAllocation) LoginURL() string { return a.loginURL }

func (a *stubAllocation) Watch(ctx context.Context) (string, error) {
	if a.watchFn != nil {
		return a.watchFn(ctx)
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func (a *stubAllocation) Release() { a.released.Store(true) }

type stubWorker struct {
	allocateFn func(ctx context.Context, sess Session) (Allocation, error)
}

func (w *stubWorker) Allocate(ctx context.Context, sess Session) (Allocation, error) {
	return w.allocateFn(ctx, sess)
}

func newTestBroker(t *testing.T, worker Worker) (*Broker, *Store) {
	t.Helper()
	store := NewStore(nil, 5*time.Minute, 30*time.Second)
	return NewBroker(store, worker), store
}

// waitForStatus polls until the session reaches the wanted status or
// the test deadline passes
func waitForStatus(t *testing.T, broker *Broker, id string, want Status) Session {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := broker.Status(id)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if sess.Status == want {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}

	sess, _ := broker.Status(id)
	t.Fatalf("session never reached %s, stuck at %s", want, sess.Status)
	return Session{}
}

func waitFor(t *testing.T, cond func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestInitiateMovesToWaiting(t *testing.T) {
	alloc := &stubAllocation{loginURL: "https://rumble.com/login.php"}
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return alloc, nil
	}}
	broker, _ := newTestBroker(t, worker)

	result, err := broker.Initiate(context.Background(), platform.Rumble)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	if result.Status != StatusWaiting {
		t.Errorf("expected status %s, got %s", StatusWaiting, result.Status)
	}
	if result.LoginURL != "https://rumble.com/login.php" {
		t.Errorf("unexpected login URL %q", result.LoginURL)
	}

	sess, err := broker.Status(result.SessionID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if sess.Status != StatusWaiting {
		t.Errorf("store shows status %s, expected %s", sess.Status, StatusWaiting)
	}

	broker.Cancel(result.SessionID)
}

func TestInitiateAllocationFailure(t *testing.T) {
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return nil, errors.New("pool exhausted")
	}}
	broker, _ := newTestBroker(t, worker)

	result, err := broker.Initiate(context.Background(), platform.Rumble)
	if err != nil {
		t.Fatalf("allocation failures should surface through state, got %v", err)
	}

	if result.Status != StatusError {
		t.Errorf("expected status %s, got %s", StatusError, result.Status)
	}
	if result.SessionID == "" {
		t.Error("expected the session id even on allocation failure")
	}

	// The failure is observable by polling
	sess, err := broker.Status(result.SessionID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if sess.Status != StatusError || sess.ErrorMessage == "" {
		t.Errorf("expected an Error session with a message, got %+v", sess)
	}
}

func TestWatchDeliversCapturedCookies(t *testing.T) {
	alloc := &stubAllocation{
		loginURL: "https://rumble.com/login.php",
		watchFn: func(ctx context.Context) (string, error) {
			return "a_s=session-token; u_s=user-token", nil
		},
	}
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return alloc, nil
	}}
	broker, _ := newTestBroker(t, worker)

	result, err := broker.Initiate(context.Background(), platform.Rumble)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	sess := waitForStatus(t, broker, result.SessionID, StatusLoggedIn)

	if len(sess.Cookies) != 2 {
		t.Fatalf("expected 2 normalized cookies, got %d", len(sess.Cookies))
	}
	for _, c := range sess.Cookies {
		if c.Domain != ".rumble.com" {
			t.Errorf("cookie %s not defaulted to the platform domain: %q", c.Name, c.Domain)
		}
	}

	waitFor(t, alloc.released.Load, "allocation never released after success")
}

func TestWatchFailureCapturedInState(t *testing.T) {
	alloc := &stubAllocation{
		loginURL: "https://rumble.com/login.php",
		watchFn: func(ctx context.Context) (string, error) {
			return "", errors.New("browser crashed")
		},
	}
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return alloc, nil
	}}
	broker, _ := newTestBroker(t, worker)

	result, _ := broker.Initiate(context.Background(), platform.Rumble)

	sess := waitForStatus(t, broker, result.SessionID, StatusError)
	if sess.ErrorMessage != "browser crashed" {
		t.Errorf("unexpected error message %q", sess.ErrorMessage)
	}

	waitFor(t, alloc.released.Load, "allocation never released after failure")
}

func TestReportOutcomeMissingRequiredCookies(t *testing.T) {
	alloc := &stubAllocation{loginURL: "https://rumble.com/login.php"}
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return alloc, nil
	}}
	broker, _ := newTestBroker(t, worker)

	result, _ := broker.Initiate(context.Background(), platform.Rumble)

	// Rumble requires a_s and u_s; only a_s arrives
	if err := broker.ReportOutcome(result.SessionID, Outcome{Success: true, Cookies: "a_s=only"}); err != nil {
		t.Fatalf("ReportOutcome failed: %v", err)
	}

	sess := waitForStatus(t, broker, result.SessionID, StatusError)
	if sess.ErrorMessage == "" {
		t.Error("expected the missing names in the error message")
	}
}

func TestDuplicateReportIsNoOp(t *testing.T) {
	alloc := &stubAllocation{loginURL: "https://rumble.com/login.php"}
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return alloc, nil
	}}
	broker, _ := newTestBroker(t, worker)

	result, _ := broker.Initiate(context.Background(), platform.Rumble)

	if err := broker.ReportOutcome(result.SessionID, Outcome{Success: true, Cookies: "a_s=1; u_s=2"}); err != nil {
		t.Fatalf("first report failed: %v", err)
	}
	sess := waitForStatus(t, broker, result.SessionID, StatusLoggedIn)

	// A late failure report must not overwrite the terminal state
	if err := broker.ReportOutcome(result.SessionID, Outcome{Error: "late crash"}); err != nil {
		t.Fatalf("duplicate report errored: %v", err)
	}

	again, _ := broker.Status(result.SessionID)
	if again.Status != StatusLoggedIn {
		t.Errorf("late report overwrote terminal state: %s", again.Status)
	}
	if len(again.Cookies) != len(sess.Cookies) {
		t.Error("late report mutated captured cookies")
	}
}

func TestCancelReleasesAllocation(t *testing.T) {
	alloc := &stubAllocation{loginURL: "https://rumble.com/login.php"}
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return alloc, nil
	}}
	broker, _ := newTestBroker(t, worker)

	result, _ := broker.Initiate(context.Background(), platform.Rumble)

	if err := broker.Cancel(result.SessionID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	sess, _ := broker.Status(result.SessionID)
	if sess.Status != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, sess.Status)
	}

	waitFor(t, alloc.released.Load, "allocation never released after cancel")

	// A report racing the cancel loses
	broker.ReportOutcome(result.SessionID, Outcome{Success: true, Cookies: "a_s=1; u_s=2"})
	again, _ := broker.Status(result.SessionID)
	if again.Status != StatusCancelled {
		t.Errorf("late report overwrote cancellation: %s", again.Status)
	}
}

func TestTimeoutSweepReleasesAllocation(t *testing.T) {
	alloc := &stubAllocation{loginURL: "https://rumble.com/login.php"}
	worker := &stubWorker{allocateFn: func(ctx context.Context, sess Session) (Allocation, error) {
		return alloc, nil
	}}
	broker, store := newTestBroker(t, worker)

	result, _ := broker.Initiate(context.Background(), platform.Rumble)
	sess, _ := broker.Status(result.SessionID)

	store.SweepOnce(sess.Deadline.Add(time.Second))

	timedOut := waitForStatus(t, broker, result.SessionID, StatusTimeout)
	if timedOut.ErrorMessage == "" {
		t.Error("expected a timeout message")
	}

	waitFor(t, alloc.released.Load, "allocation never released after timeout")
}
