package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/evanmtz/streampost/internal/accounts"
	"github.com/evanmtz/streampost/internal/platform"
)

// AccountRepository implements accounts.Repository using sqlite
type AccountRepository struct {
	db *sqlx.DB
}

// Compile-time check that the interface is satisfied
var _ accounts.Repository = (*AccountRepository)(nil)

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// accountRow maps the SQL table onto a Go struct
type accountRow struct {
	ID                       int64         `db:"id"`
	Platform                 string        `db:"platform"`
	AccountName              string        `db:"account_name"`
	Cookies                  string        `db:"cookies"`
	CookieExpiresAt          sql.NullInt64 `db:"cookie_expires_at"`
	IsActive                 int           `db:"is_active"`
	TotalSuccessfulJobs      int64         `db:"total_successful_jobs"`
	TotalFailedJobs          int64         `db:"total_failed_jobs"`
	LastSuccessfulSubmission sql.NullInt64 `db:"last_successful_submission"`
	CreatedAt                int64         `db:"created_at"`
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, acc *accounts.Account) (int64, error) {
	query := `
		INSERT INTO accounts (platform, account_name, cookies, cookie_expires_at, is_active)
		VALUES (:platform, :account_name, :cookies, :cookie_expires_at, :is_active)
	`

	isActive := 0
	if acc.IsActive {
		isActive = 1
	}

	var expiresAt interface{}
	if acc.CookieExpiresAt != nil {
		expiresAt = acc.CookieExpiresAt.Unix()
	}

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"platform":          string(acc.Platform),
		"account_name":      acc.AccountName,
		"cookies":           acc.Cookies,
		"cookie_expires_at": expiresAt,
		"is_active":         isActive,
	})
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// GetByID fetches one account
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*accounts.Account, error) {
	var row accountRow

	query := `SELECT * FROM accounts WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, accounts.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return accountRowToDomain(&row), nil
}

// List returns all accounts for a platform
func (r *AccountRepository) List(ctx context.Context, p platform.Platform) ([]*accounts.Account, error) {
	var rows []accountRow

	query := `SELECT * FROM accounts WHERE platform = ? ORDER BY account_name`
	if err := r.db.SelectContext(ctx, &rows, query, string(p)); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	result := make([]*accounts.Account, len(rows))
	for i := range rows {
		result[i] = accountRowToDomain(&rows[i])
	}
	return result, nil
}

// UpdateCookies replaces an account's cookie set and tracked expiry
func (r *AccountRepository) UpdateCookies(ctx context.Context, id int64, cookies string, expiresAt *time.Time) error {
	var expires interface{}
	if expiresAt != nil {
		expires = expiresAt.Unix()
	}

	query := `UPDATE accounts SET cookies = ?, cookie_expires_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, cookies, expires, id)
	if err != nil {
		return fmt.Errorf("update cookies: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return accounts.ErrNotFound
	}

	return nil
}

// IncrementJobCounters applies one job outcome. The increment happens
// in SQL so concurrent completions never lose an update.
func (r *AccountRepository) IncrementJobCounters(ctx context.Context, id int64, success bool, completedAt time.Time) error {
	var query string
	var args []interface{}

	if success {
		query = `
			UPDATE accounts
			SET total_successful_jobs = total_successful_jobs + 1,
			    last_successful_submission = ?
			WHERE id = ?
		`
		args = []interface{}{completedAt.Unix(), id}
	} else {
		query = `
			UPDATE accounts
			SET total_failed_jobs = total_failed_jobs + 1
			WHERE id = ?
		`
		args = []interface{}{id}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("increment job counters: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return accounts.ErrNotFound
	}

	return nil
}

// accountRowToDomain converts a database row to the domain type
func accountRowToDomain(row *accountRow) *accounts.Account {
	acc := &accounts.Account{
		ID:                  row.ID,
		Platform:            platform.Platform(row.Platform),
		AccountName:         row.AccountName,
		Cookies:             row.Cookies,
		IsActive:            row.IsActive != 0,
		TotalSuccessfulJobs: row.TotalSuccessfulJobs,
		TotalFailedJobs:     row.TotalFailedJobs,
		CreatedAt:           time.Unix(row.CreatedAt, 0),
	}

	if row.CookieExpiresAt.Valid {
		t := time.Unix(row.CookieExpiresAt.Int64, 0)
		acc.CookieExpiresAt = &t
	}
	if row.LastSuccessfulSubmission.Valid {
		t := time.Unix(row.LastSuccessfulSubmission.Int64, 0)
		acc.LastSuccessfulSubmission = &t
	}

	return acc
}
