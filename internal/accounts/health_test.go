package accounts

import (
	"testing"
	"time"
)

// accountWithExpiry builds a test account with a fixed expiry offset
func accountWithExpiry(offset time.Duration, now time.Time) *Account {
	expires := now.Add(offset)
	return &Account{
		ID:              1,
		AccountName:     "test",
		CookieExpiresAt: &expires,
	}
}

// TestEvaluateNoExpiry tests the optimistic no-expiry case
func TestEvaluateNoExpiry(t *testing.T) {
	acc := &Account{ID: 1, AccountName: "test"}

	report := Evaluate(acc, time.Now())

	if report.HealthStatus != HealthHealthy {
		t.Errorf("expected healthy, got %s", report.HealthStatus)
	}
	if report.DaysUntilExpiration != nil {
		t.Errorf("expected nil days, got %d", *report.DaysUntilExpiration)
	}
}

// TestEvaluateExpired tests the critical classification
func TestEvaluateExpired(t *testing.T) {
	now := time.Now()
	acc := accountWithExpiry(-24*time.Hour, now)

	report := Evaluate(acc, now)

	if report.HealthStatus != HealthCritical {
		t.Errorf("expected critical, got %s", report.HealthStatus)
	}
	if report.DaysUntilExpiration == nil {
		t.Fatal("expected days until expiration to be set")
	}
	if *report.DaysUntilExpiration > 0 {
		t.Errorf("expected <= 0 days, got %d", *report.DaysUntilExpiration)
	}
}

// TestEvaluateExpiringSoon tests the warning window
func TestEvaluateExpiringSoon(t *testing.T) {
	now := time.Now()
	acc := accountWithExpiry(3*24*time.Hour, now)

	report := Evaluate(acc, now)

	if report.HealthStatus != HealthWarning {
		t.Errorf("expected warning, got %s", report.HealthStatus)
	}
	if report.DaysUntilExpiration == nil || *report.DaysUntilExpiration != 3 {
		t.Errorf("expected 3 days, got %v", report.DaysUntilExpiration)
	}
}

// TestEvaluateFreshCookies tests the healthy classification
func TestEvaluateFreshCookies(t *testing.T) {
	now := time.Now()
	acc := accountWithExpiry(30*24*time.Hour, now)

	report := Evaluate(acc, now)

	if report.HealthStatus != HealthHealthy {
		t.Errorf("expected healthy, got %s", report.HealthStatus)
	}
	if report.DaysUntilExpiration == nil || *report.DaysUntilExpiration != 30 {
		t.Errorf("expected 30 days, got %v", report.DaysUntilExpiration)
	}
}

// TestEvaluateWarningBoundary tests the edge of the warning window
func TestEvaluateWarningBoundary(t *testing.T) {
	now := time.Now()

	// Exactly 7 days out is still a warning
	report := Evaluate(accountWithExpiry(7*24*time.Hour, now), now)
	if report.HealthStatus != HealthWarning {
		t.Errorf("expected warning at 7 days, got %s", report.HealthStatus)
	}

	// Just past 7 days is healthy (ceil rounds up to 8)
	report = Evaluate(accountWithExpiry(7*24*time.Hour+time.Minute, now), now)
	if report.HealthStatus != HealthHealthy {
		t.Errorf("expected healthy past 7 days, got %s", report.HealthStatus)
	}
}

// TestEvaluateSuccessRate tests the rate computation
func TestEvaluateSuccessRate(t *testing.T) {
	cases := []struct {
		successful int64
		failed     int64
		want       int
	}{
		{8, 2, 80},
		{0, 0, 0},
		{10, 0, 100},
		{0, 10, 0},
		{1, 2, 33},
		{2, 1, 67},
	}

	for _, tc := range cases {
		acc := &Account{
			TotalSuccessfulJobs: tc.successful,
			TotalFailedJobs:     tc.failed,
		}
		report := Evaluate(acc, time.Now())

		if report.SuccessRate != tc.want {
			t.Errorf("(%d, %d): expected rate %d, got %d",
				tc.successful, tc.failed, tc.want, report.SuccessRate)
		}
		if report.TotalSuccessfulJobs != tc.successful || report.TotalFailedJobs != tc.failed {
			t.Errorf("(%d, %d): counters not carried through", tc.successful, tc.failed)
		}
	}
}

// TestEvaluateCarriesSubmissionTime tests passthrough of the last
// successful submission
func TestEvaluateCarriesSubmissionTime(t *testing.T) {
	last := time.Now().Add(-2 * time.Hour)
	acc := &Account{LastSuccessfulSubmission: &last}

	report := Evaluate(acc, time.Now())

	if report.LastSuccessfulSubmission == nil || !report.LastSuccessfulSubmission.Equal(last) {
		t.Errorf("expected %v, got %v", last, report.LastSuccessfulSubmission)
	}
}
