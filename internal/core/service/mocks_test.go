package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

// Mock Classifier keyed by raw text
type mockClassifier struct {
	parses map[string]domain.ParsedRequest
	err    error
}

func (m *mockClassifier) Classify(ctx context.Context, raw string) (domain.ParsedRequest, error) {
	if m.err != nil {
		return domain.ParsedRequest{}, m.err
	}
	p, ok := m.parses[raw]
	if !ok {
		return domain.ParsedRequest{Kind: domain.RequestKindInquiry, Confidence: 0.3}, nil
	}
	return p, nil
}

// Mock QuoteHistory
type mockHistory struct {
	sales []domain.HistoricalSale
	err   error
	mu    sync.Mutex
	calls int
}

func (m *mockHistory) Search(ctx context.Context, itemID string, w domain.HistoryWindow) ([]domain.HistoricalSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.HistoricalSale
	for _, s := range m.sales {
		if s.ItemID == itemID && w.Contains(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if w.Limit > 0 && len(out) > w.Limit {
		out = out[:w.Limit]
	}
	return out, nil
}

// Mock TransactionJournal, OutcomeStore and OutcomePublisher
type mockSink struct {
	mu       sync.Mutex
	txs      []domain.Transaction
	outcomes []domain.Outcome
	reports  []domain.BusinessReport
	saved    []domain.Outcome
	stored   []domain.BusinessReport
	failSave bool
}

func (m *mockSink) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("journal unavailable")
	}
	m.txs = append(m.txs, tx)
	return nil
}

func (m *mockSink) PublishOutcome(ctx context.Context, o domain.Outcome, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *mockSink) PublishReport(ctx context.Context, r domain.BusinessReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *mockSink) SaveOutcome(ctx context.Context, o domain.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, o)
	return nil
}

func (m *mockSink) SaveReport(ctx context.Context, r domain.BusinessReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, r)
	return nil
}
