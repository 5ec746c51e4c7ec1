package api

import (
	"time"

	"github.com/evanmtz/streampost/internal/accounts"
	"github.com/evanmtz/streampost/internal/login"
)

// Request Types

// InitiateLoginRequest for POST /login-sessions
type InitiateLoginRequest struct {
	Platform string `json:"platform" validate:"required"`
}

// CreateAccountRequest for POST /accounts
type CreateAccountRequest struct {
	Platform    string `json:"platform" validate:"required"`
	AccountName string `json:"account_name" validate:"required"`
	// Optional: cookies to install right away, either a JSON export
	// array or a raw Cookie header string
	Cookies string `json:"cookies,omitempty"`
}

// UpdateCookiesRequest for POST /accounts/{id}/cookies
type UpdateCookiesRequest struct {
	Cookies string `json:"cookies" validate:"required"`
}

// RecordOutcomeRequest for POST /accounts/{id}/outcomes
type RecordOutcomeRequest struct {
	Success bool `json:"success"`
}

// Response Types

// InitiateLoginResponse returned when a login session is created
type InitiateLoginResponse struct {
	SessionID    string       `json:"session_id"`
	Platform     string       `json:"platform"`
	Status       login.Status `json:"status"`
	LoginURL     string       `json:"login_url,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// LoginSessionResponse returned with session state on a poll
type LoginSessionResponse struct {
	SessionID    string       `json:"session_id"`
	Platform     string       `json:"platform"`
	Status       login.Status `json:"status"`
	LoginURL     string       `json:"login_url,omitempty"`
	Cookies      string       `json:"cookies,omitempty"` // serialized, only when logged_in
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	Deadline     time.Time    `json:"deadline"`
}

// AccountResponse returned for account reads and creation
type AccountResponse struct {
	ID                       int64      `json:"id"`
	Platform                 string     `json:"platform"`
	AccountName              string     `json:"account_name"`
	HasCookies               bool       `json:"has_cookies"`
	CookieExpiresAt          *time.Time `json:"cookie_expires_at"`
	IsActive                 bool       `json:"is_active"`
	TotalSuccessfulJobs      int64      `json:"total_successful_jobs"`
	TotalFailedJobs          int64      `json:"total_failed_jobs"`
	LastSuccessfulSubmission *time.Time `json:"last_successful_submission"`
	CreatedAt                time.Time  `json:"created_at"`
}

// ListAccountsResponse returned with all accounts for a platform
type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
	Count    int               `json:"count"`
}

// UpdateCookiesResponse returned after a cookie set is installed
type UpdateCookiesResponse struct {
	AccountID       int64      `json:"account_id"`
	CookieCount     int        `json:"cookie_count"`
	CookieExpiresAt *time.Time `json:"cookie_expires_at"`
}

// HealthResponse wraps a derived health report
type HealthResponse struct {
	AccountID int64                  `json:"account_id"`
	Health    accounts.HealthReport  `json:"health"`
}

// MissingCookiesResponse explains a rejected cookie set
type MissingCookiesResponse struct {
	Error   ErrorDetail `json:"error"`
	Missing []string    `json:"missing"`
}

// Error Types

// ErrorResponse for all error cases
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`    // Machine-readable error code
	Message string `json:"message"` // Human-readable message
}

// Common error codes
const (
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeMissingCookies  = "MISSING_COOKIES"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)
