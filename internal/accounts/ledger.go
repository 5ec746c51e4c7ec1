package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Ledger is the single owner of per-account job counters. Outcomes
// arrive from the job executor as it finishes posting attempts;
// mutations are serialized per account, not behind one global lock,
// so unrelated accounts never contend.
type Ledger struct {
	repo Repository

	// locks is never pruned: one mutex per account ever touched,
	// bounded by the account table, which has no delete path
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewLedger creates a ledger backed by the given repository
func NewLedger(repo Repository) *Ledger {
	return &Ledger{
		repo:  repo,
		locks: make(map[int64]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one account's counters,
// creating it on first use
func (l *Ledger) lockFor(accountID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[accountID] = lock
	}
	return lock
}

// RecordOutcome applies one job outcome to the named account:
// increments the matching counter and, on success, stamps the last
// successful submission time
func (l *Ledger) RecordOutcome(ctx context.Context, accountID int64, success bool) error {
	lock := l.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	// Verify the account exists so callers get a clean NotFound
	// instead of a silent no-op update
	if _, err := l.repo.GetByID(ctx, accountID); err != nil {
		return err
	}

	now := time.Now()
	if err := l.repo.IncrementJobCounters(ctx, accountID, success, now); err != nil {
		return fmt.Errorf("failed to record job outcome: %w", err)
	}

	slog.Debug("job outcome recorded",
		"account_id", accountID,
		"success", success)

	return nil
}

// UpdateCookies installs a freshly captured or pasted cookie set on
// the account
func (l *Ledger) UpdateCookies(ctx context.Context, accountID int64, cookies string, expiresAt *time.Time) error {
	lock := l.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := l.repo.GetByID(ctx, accountID); err != nil {
		return err
	}

	if err := l.repo.UpdateCookies(ctx, accountID, cookies, expiresAt); err != nil {
		return fmt.Errorf("failed to update cookies: %w", err)
	}

	slog.Info("account cookies updated", "account_id", accountID)
	return nil
}
