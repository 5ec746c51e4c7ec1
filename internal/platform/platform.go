package platform

import "fmt"

// Platform identifies a supported streaming platform
type Platform string

const (
	Rumble  Platform = "rumble"
	YouTube Platform = "youtube"
)

// Config holds the per-platform constants used by the login broker,
// the cookie normalizer and the paste-validation flow
type Config struct {
	// CookieDomain is the canonical domain assigned to cookies that
	// arrive without one
	CookieDomain string

	// LoginURL is the page the automation worker opens for an
	// interactive login
	LoginURL string

	// RequiredCookies must all be present before a pasted or captured
	// cookie set is accepted
	RequiredCookies []string

	// SuccessCookies signal that an interactive login completed;
	// the worker polls for these
	SuccessCookies []string
}

// Per-platform configuration table, looked up once per operation
// instead of branching on the platform string throughout the code
var configs = map[Platform]Config{
	Rumble: {
		CookieDomain:    ".rumble.com",
		LoginURL:        "https://rumble.com/login.php",
		RequiredCookies: []string{"a_s", "u_s"},
		SuccessCookies:  []string{"u_s"},
	},
	YouTube: {
		CookieDomain:    ".youtube.com",
		LoginURL:        "https://accounts.google.com/ServiceLogin?service=youtube&continue=https%3A%2F%2Fwww.youtube.com%2F",
		RequiredCookies: []string{"SID", "HSID", "SSID", "APISID", "SAPISID"},
		SuccessCookies:  []string{"SID", "SAPISID"},
	},
}

// Parse validates a platform string from an API request
func Parse(s string) (Platform, error) {
	p := Platform(s)
	if _, ok := configs[p]; !ok {
		return "", fmt.Errorf("unsupported platform: %q", s)
	}
	return p, nil
}

// Config returns the configuration table entry for the platform.
// Unknown platforms return the zero Config; callers are expected to
// have validated the platform via Parse at the boundary.
func (p Platform) Config() Config {
	return configs[p]
}

// Valid reports whether the platform is one of the supported variants
func (p Platform) Valid() bool {
	_, ok := configs[p]
	return ok
}

// String implements fmt.Stringer
func (p Platform) String() string {
	return string(p)
}
