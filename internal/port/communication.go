package port

import (
	"context"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

// Communicator renders an outcome for the customer.
type Communicator interface {
	Format(outcome domain.Outcome) string
}

type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome domain.Outcome, message string) error
	PublishReport(ctx context.Context, report domain.BusinessReport) error
}
