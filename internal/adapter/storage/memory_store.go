package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

// MemoryStore keeps journal, history and results in process. It backs the batch
// entry point and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	txs      []domain.Transaction
	sales    []domain.HistoricalSale
	outcomes map[string]domain.Outcome
	order    []string
	reports  []domain.BusinessReport
}

func NewMemoryStore(history []domain.HistoricalSale) *MemoryStore {
	return &MemoryStore{
		sales:    append([]domain.HistoricalSale(nil), history...),
		outcomes: make(map[string]domain.Outcome),
	}
}

// SaveTransaction journals tx. Sale lines become comparable history for later quotes.
func (m *MemoryStore) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs = append(m.txs, tx)
	if tx.Type == domain.TransactionSale {
		m.sales = append(m.sales, salesFromTransaction(tx)...)
	}
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, itemID string, w domain.HistoryWindow) ([]domain.HistoricalSale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.HistoricalSale
	for _, s := range m.sales {
		if s.ItemID == itemID && w.Contains(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	if w.Limit > 0 && len(out) > w.Limit {
		out = out[:w.Limit]
	}
	return out, nil
}

func (m *MemoryStore) SaveOutcome(ctx context.Context, o domain.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.outcomes[o.RequestID]; !ok {
		m.order = append(m.order, o.RequestID)
	}
	m.outcomes[o.RequestID] = o
	return nil
}

func (m *MemoryStore) SaveReport(ctx context.Context, r domain.BusinessReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *MemoryStore) Transactions() []domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Transaction(nil), m.txs...)
}

// Outcomes returns saved outcomes in the order they were first saved.
func (m *MemoryStore) Outcomes() []domain.Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Outcome, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.outcomes[id])
	}
	return out
}

func (m *MemoryStore) Reports() []domain.BusinessReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.BusinessReport(nil), m.reports...)
}

func salesFromTransaction(tx domain.Transaction) []domain.HistoricalSale {
	sales := make([]domain.HistoricalSale, 0, len(tx.Lines))
	for i, l := range tx.Lines {
		sales = append(sales, domain.HistoricalSale{
			ID:        fmt.Sprintf("%s-%d", tx.ID, i+1),
			ItemID:    l.ItemID,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Timestamp: tx.CommittedAt,
		})
	}
	return sales
}
