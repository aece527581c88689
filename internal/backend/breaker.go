package backend

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// DefaultBreakerSettings opens after five consecutive failures and lets a
// trial request through after thirty seconds. Client errors (4xx) do not
// count as failures. A request the caller cancelled counts as neither
// success nor failure.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return false
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	}
}
