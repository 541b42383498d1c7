package clientdata

import "time"

// TTL constants for provider responses.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Market valuations drift slowly; a day-old quote is still a fair reference
	TTLFairValueQuote = 24 * time.Hour

	// DefaultStepResultTTL applies when no EVALUATION_CACHE_TTL_MINUTES is configured
	DefaultStepResultTTL = time.Hour
)
