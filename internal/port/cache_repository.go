package port

import (
	"context"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
	// ReleaseIdempotency drops a key so the same request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// CacheReport stores the most recent business report
	CacheReport(ctx context.Context, report domain.BusinessReport) error

	// LatestReport returns the most recent business report, nil if none was cached
	LatestReport(ctx context.Context) (*domain.BusinessReport, error)
}
