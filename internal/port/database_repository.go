package port

import (
	"context"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

// TransactionJournal persists committed transactions. The in-memory cash ledger
// stays the ledger of record; the journal is its durable copy.
type TransactionJournal interface {
	SaveTransaction(ctx context.Context, tx domain.Transaction) error
}

// QuoteHistory answers comparable-sales lookups for the quote engine.
type QuoteHistory interface {
	Search(ctx context.Context, itemID string, window domain.HistoryWindow) ([]domain.HistoricalSale, error)
}

// OutcomeStore keeps the two result artifacts: per-request outcomes and reports.
type OutcomeStore interface {
	SaveOutcome(ctx context.Context, outcome domain.Outcome) error
	SaveReport(ctx context.Context, report domain.BusinessReport) error
}

type DatabaseRepository interface {
	TransactionJournal
	QuoteHistory
	OutcomeStore
}
