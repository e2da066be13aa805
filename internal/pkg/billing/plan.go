package billing

import (
	"strings"
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
)

func normalizeInterval(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	switch i {
	case models.BillingIntervalMonth, models.BillingIntervalYear:
		return i
	default:
		return models.BillingIntervalUnknown
	}
}

// cycleExpiry computes the entitlement expiry granted by a completed
// checkout. The next subscription.updated event replaces it with the
// provider's own period end.
func cycleExpiry(from time.Time, interval string) time.Time {
	switch normalizeInterval(interval) {
	case models.BillingIntervalYear:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// isEntitlingStatus reports whether a provider subscription status keeps
// the paid tier. Unknown statuses fail closed.
func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return true
	default:
		return false
	}
}
