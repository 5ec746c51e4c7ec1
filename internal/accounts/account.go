package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/evanmtz/streampost/internal/platform"
)

// ErrNotFound is returned when an account id is unknown
var ErrNotFound = errors.New("account not found")

// Account is a platform account the posting automation acts on behalf
// of. Cookies are held in serialized form; job counters are mutated
// only through the Ledger.
type Account struct {
	ID                       int64
	Platform                 platform.Platform
	AccountName              string
	Cookies                  string
	CookieExpiresAt          *time.Time
	IsActive                 bool
	TotalSuccessfulJobs      int64
	TotalFailedJobs          int64
	LastSuccessfulSubmission *time.Time
	CreatedAt                time.Time
}

// Repository defines the persistence operations for accounts
type Repository interface {
	Create(ctx context.Context, acc *Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	List(ctx context.Context, p platform.Platform) ([]*Account, error)

	// UpdateCookies replaces an account's cookie set and its tracked
	// expiry after a paste or a completed interactive login
	UpdateCookies(ctx context.Context, id int64, cookies string, expiresAt *time.Time) error

	// IncrementJobCounters applies a job outcome. The increments are
	// expressed in SQL so concurrent writers never lose an update.
	IncrementJobCounters(ctx context.Context, id int64, success bool, completedAt time.Time) error
}
