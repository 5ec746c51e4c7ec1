package accounts

import (
	"math"
	"time"
)

// HealthStatus classifies how usable an account currently is
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// HealthReport is a derived summary of an account's cookie freshness
// and job history. It is recomputed on every query, never persisted.
type HealthReport struct {
	HealthStatus             HealthStatus `json:"health_status"`
	SuccessRate              int          `json:"success_rate"`
	DaysUntilExpiration      *int         `json:"days_until_expiration"`
	TotalSuccessfulJobs      int64        `json:"total_successful_jobs"`
	TotalFailedJobs          int64        `json:"total_failed_jobs"`
	LastSuccessfulSubmission *time.Time   `json:"last_successful_submission"`
}

// Expiry warning window: cookies expiring within this many days flag
// the account before it actually breaks
const expiryWarningDays = 7

// Evaluate derives a health report for the account as of now. Pure:
// no side effects, no caching.
func Evaluate(acc *Account, now time.Time) HealthReport {
	report := HealthReport{
		HealthStatus:             HealthHealthy,
		TotalSuccessfulJobs:      acc.TotalSuccessfulJobs,
		TotalFailedJobs:          acc.TotalFailedJobs,
		LastSuccessfulSubmission: acc.LastSuccessfulSubmission,
	}

	// Cookie expiry classification. An account with no tracked expiry
	// is treated optimistically.
	if acc.CookieExpiresAt != nil {
		days := int(math.Ceil(acc.CookieExpiresAt.Sub(now).Hours() / 24))
		report.DaysUntilExpiration = &days

		switch {
		case days <= 0:
			report.HealthStatus = HealthCritical
		case days <= expiryWarningDays:
			report.HealthStatus = HealthWarning
		}
	}

	// Success rate over all completed jobs
	total := acc.TotalSuccessfulJobs + acc.TotalFailedJobs
	if total > 0 {
		report.SuccessRate = int(math.Round(100 * float64(acc.TotalSuccessfulJobs) / float64(total)))
	}

	return report
}
