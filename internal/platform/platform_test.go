package platform

import "testing"

// TestParse tests platform string validation
func TestParse(t *testing.T) {
	p, err := Parse("rumble")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p != Rumble {
		t.Errorf("expected rumble, got %s", p)
	}

	p, err = Parse("youtube")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p != YouTube {
		t.Errorf("expected youtube, got %s", p)
	}

	for _, bad := range []string{"", "twitch", "RUMBLE"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("expected error for %q, got nil", bad)
		}
	}
}

// TestConfigTable tests that every platform carries a complete entry
func TestConfigTable(t *testing.T) {
	for _, p := range []Platform{Rumble, YouTube} {
		cfg := p.Config()

		if cfg.CookieDomain == "" {
			t.Errorf("%s: empty cookie domain", p)
		}
		if cfg.LoginURL == "" {
			t.Errorf("%s: empty login URL", p)
		}
		if len(cfg.RequiredCookies) == 0 {
			t.Errorf("%s: no required cookies", p)
		}
		if len(cfg.SuccessCookies) == 0 {
			t.Errorf("%s: no success-signal cookies", p)
		}

		// Success-signal cookies are a subset of the required set
		required := make(map[string]bool)
		for _, name := range cfg.RequiredCookies {
			required[name] = true
		}
		for _, name := range cfg.SuccessCookies {
			if !required[name] {
				t.Errorf("%s: success cookie %s not in required set", p, name)
			}
		}
	}
}

// TestValid tests the Valid helper
func TestValid(t *testing.T) {
	if !Rumble.Valid() {
		t.Error("rumble should be valid")
	}
	if Platform("twitch").Valid() {
		t.Error("twitch should not be valid")
	}
}
