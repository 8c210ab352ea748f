package port

import (
	"context"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

// Classifier turns raw request text into a structured request. It is best
// effort: callers must check Confidence.
type Classifier interface {
	Classify(ctx context.Context, rawText string) (domain.ParsedRequest, error)
}
