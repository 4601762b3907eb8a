package llm

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/stockgrader/internal/common"
)

// newRequestLimiter spaces requests by the configured rate_limit duration
func newRequestLimiter(spacing string, fallback time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(common.ParseDuration(spacing, fallback)), 1)
}
