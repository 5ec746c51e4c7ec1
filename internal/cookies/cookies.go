package cookies

import (
	"time"
)

// SameSite values accepted by the browser automation layer
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// RawCookieLifetime is the expiry assigned to cookies that arrive
// without one, such as raw header strings pasted by a user
const RawCookieLifetime = 182 * time.Hour

// Record is a single automation-ready cookie. Every field is always
// populated; the worker installs records into a browser context and
// relies on the full shape being present.
type Record struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // Unix timestamp, seconds
	Secure   bool    `json:"secure"`
	HttpOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite"`
}

// EarliestExpiry returns the soonest expiry across the records, used
// to track when an account's cookie set goes stale. Non-positive
// expiries carry no real expiry (session cookies) and are skipped.
// Returns the zero time when no record carries one.
func EarliestExpiry(records []Record) time.Time {
	var earliest float64
	for _, r := range records {
		if r.Expires <= 0 {
			continue
		}
		if earliest == 0 || r.Expires < earliest {
			earliest = r.Expires
		}
	}

	if earliest == 0 {
		return time.Time{}
	}

	return time.Unix(int64(earliest), 0)
}
