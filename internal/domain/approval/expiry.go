package approval

import (
	"math"
	"time"
)

// Urgent requests get a tight SLA window; everything else gets a business day.
const (
	UrgentExpiryWindow  = 2 * time.Hour
	DefaultExpiryWindow = 24 * time.Hour
)

// ExpiryFor computes the expiry deadline for a request submitted at requestedAt.
func ExpiryFor(priority Priority, requestedAt time.Time) time.Time {
	if priority == PriorityUrgent {
		return requestedAt.Add(UrgentExpiryWindow)
	}
	return requestedAt.Add(DefaultExpiryWindow)
}

// ResponseMinutes is the decision latency rounded to the nearest minute.
func ResponseMinutes(requestedAt time.Time, reviewedAt time.Time) int {
	return int(math.Round(reviewedAt.Sub(requestedAt).Minutes()))
}
