package cookies

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/evanmtz/streampost/internal/platform"
)

// exportedCookie mirrors one element of a browser-extension cookie
// export. Pointer fields distinguish "absent" from "zero" so that
// values the export already carries are preserved verbatim.
type exportedCookie struct {
	Name     string   `json:"name"`
	Value    *string  `json:"value"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Expires  *float64 `json:"expires"`
	Secure   *bool    `json:"secure"`
	HttpOnly *bool    `json:"httpOnly"`
	SameSite string   `json:"sameSite"`
}

// Normalize converts a raw cookie payload into automation-ready
// records. The input is either a JSON array exported by a browser
// extension or a `;`-delimited Cookie header string; anything that
// cannot be made sense of degrades to dropped entries rather than an
// error, so Normalize is total.
func Normalize(input string, p platform.Platform) []Record {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return []Record{}
	}

	// Try the JSON export format first
	if records, ok := parseJSONExport(trimmed, p); ok {
		return records
	}

	// Fall back to header-string parsing
	return parseHeaderString(trimmed, p)
}

// parseJSONExport parses a JSON array of cookie objects. Returns
// ok=false if the input is not a JSON array at all; elements missing
// a name or value are dropped silently.
func parseJSONExport(input string, p platform.Platform) ([]Record, bool) {
	var exported []exportedCookie
	if err := json.Unmarshal([]byte(input), &exported); err != nil {
		return nil, false
	}

	records := make([]Record, 0, len(exported))
	for _, c := range exported {
		// A cookie without both a name and a value is unusable
		if c.Name == "" || c.Value == nil {
			continue
		}

		record := Record{
			Name:     c.Name,
			Value:    *c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   true,
			HttpOnly: false,
			SameSite: SameSiteNone,
			Expires:  defaultExpiry(),
		}

		// Preserve any fields the export already supplies. CDP
		// reports session cookies with expires -1; a non-positive
		// expiry means "no explicit expiry" and keeps the default.
		if c.Expires != nil && *c.Expires > 0 {
			record.Expires = *c.Expires
		}
		if c.Secure != nil {
			record.Secure = *c.Secure
		}
		if c.HttpOnly != nil {
			record.HttpOnly = *c.HttpOnly
		}
		if s := normalizeSameSite(c.SameSite); s != "" {
			record.SameSite = s
		}

		applyDefaults(&record, p)
		records = append(records, record)
	}

	return records, true
}

// parseHeaderString parses a `name=value; name2=value2` header string.
// Each piece is split on the first `=` only, so values containing `=`
// survive intact.
func parseHeaderString(input string, p platform.Platform) []Record {
	pieces := strings.Split(input, ";")

	records := make([]Record, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		name, value, _ := strings.Cut(piece, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}

		record := Record{
			Name:     name,
			Value:    value,
			Secure:   true,
			HttpOnly: false,
			SameSite: SameSiteNone,
			Expires:  defaultExpiry(),
		}

		applyDefaults(&record, p)
		records = append(records, record)
	}

	return records
}

// applyDefaults fills the fields both parse paths share, keeping the
// record shape identical regardless of the input format
func applyDefaults(r *Record, p platform.Platform) {
	if r.Domain == "" {
		r.Domain = p.Config().CookieDomain
	}
	if r.Path == "" {
		r.Path = "/"
	}
}

func defaultExpiry() float64 {
	return float64(time.Now().Add(RawCookieLifetime).Unix())
}

// normalizeSameSite maps the values seen in the wild (CDP uses
// lowercase, extensions vary) onto the canonical spelling. Returns ""
// for anything unrecognized.
func normalizeSameSite(s string) string {
	switch strings.ToLower(s) {
	case "strict":
		return SameSiteStrict
	case "lax":
		return SameSiteLax
	case "none", "no_restriction":
		return SameSiteNone
	}
	return ""
}

// DedupeByName collapses duplicate cookie names, keeping the entry
// with the longest value. Multi-domain captures sometimes yield a
// short placeholder alongside the full value for the same name.
func DedupeByName(records []Record) []Record {
	deduped := make([]Record, 0, len(records))
	index := make(map[string]int, len(records))

	for _, r := range records {
		i, seen := index[r.Name]
		if !seen {
			index[r.Name] = len(deduped)
			deduped = append(deduped, r)
			continue
		}
		if len(r.Value) > len(deduped[i].Value) {
			deduped[i] = r
		}
	}

	return deduped
}

// MissingRequired returns the platform's required cookie names that
// are absent from the records, in the order the platform declares
// them. An empty result means the set is acceptable.
func MissingRequired(records []Record, p platform.Platform) []string {
	present := make(map[string]bool, len(records))
	for _, r := range records {
		present[r.Name] = true
	}

	missing := []string{}
	for _, name := range p.Config().RequiredCookies {
		if !present[name] {
			missing = append(missing, name)
		}
	}

	return missing
}

// Serialize renders records back to the JSON export format, which is
// how cookie sets are stored on accounts and returned to clients
func Serialize(records []Record) string {
	data, err := json.Marshal(records)
	if err != nil {
		// Record contains no unmarshalable types
		return "[]"
	}
	return string(data)
}
