package database

import (
	"context"
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
)

// RetryProfile describes how many times an operation against a database is
// retried and how long to wait between attempts. Larger tables hold their
// connections longer and are given more headroom.
type RetryProfile struct {
	MaxRetries int
	Delay      time.Duration
}

// ProfileForCategory returns the retry profile for a table's performance
// category: large 5 retries / 2s, medium 3 / 1s, everything else 3 / 0.5s.
func ProfileForCategory(category config.PerformanceCategory) RetryProfile {
	switch category {
	case config.CategoryLarge:
		return RetryProfile{MaxRetries: 5, Delay: 2 * time.Second}
	case config.CategoryMedium:
		return RetryProfile{MaxRetries: 3, Delay: time.Second}
	default:
		return RetryProfile{MaxRetries: 3, Delay: 500 * time.Millisecond}
	}
}

// Do runs op, retrying transient failures per the profile. The last error is
// returned when every attempt fails. Context cancellation stops the loop.
func (p RetryProfile) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}

	return err
}
