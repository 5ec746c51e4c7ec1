package login

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/evanmtz/streampost/internal/cookies"
	"github.com/evanmtz/streampost/internal/platform"
)

// Status represents where a login session is in its lifecycle
type Status string

const (
	StatusInitializing Status = "initializing" // browser context being allocated
	StatusWaiting      Status = "waiting"      // login page open, awaiting the user
	StatusLoggedIn     Status = "logged_in"    // success signal seen, cookies captured
	StatusError        Status = "error"        // allocation or automation failure
	StatusTimeout      Status = "timeout"      // login window elapsed
	StatusCancelled    Status = "cancelled"    // client gave up
)

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	switch s {
	case StatusLoggedIn, StatusError, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Session is one attempt to acquire login cookies for a platform via
// an automation-controlled browser context. The store owns the only
// mutable copy; everything handed out is a snapshot.
type Session struct {
	ID           string
	Platform     platform.Platform
	Status       Status
	LoginURL     string           // set on the transition to Waiting
	Cookies      []cookies.Record // set only on the transition to LoggedIn
	ErrorMessage string           // set only on Error/Timeout
	CreatedAt    time.Time
	Deadline     time.Time // fixed at creation; the login window
}

// generateSessionID creates a unique session identifier
func generateSessionID() (string, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	return "login_" + base64.URLEncoding.EncodeToString(randomBytes), nil
}
