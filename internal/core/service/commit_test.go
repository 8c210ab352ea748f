package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
)

// contendedStock lets a rival buyer act around each commit attempt.
type contendedStock struct {
	*ledger.InventoryLedger

	mu       sync.Mutex
	attempts int
	before   func(attempt int)
	after    func(attempt int)
}

func (s *contendedStock) ReserveAll(lines []domain.StockLine) error {
	s.mu.Lock()
	s.attempts++
	n := s.attempts
	s.mu.Unlock()

	if s.before != nil {
		s.before(n)
	}
	err := s.InventoryLedger.ReserveAll(lines)
	if s.after != nil {
		s.after(n)
	}
	return err
}

// failingCash refuses every sale.
type failingCash struct {
	*ledger.CashLedger
	err error
}

func (c *failingCash) Apply(entry domain.CashEntry) (domain.Transaction, error) {
	if entry.Type == domain.TransactionSale {
		return domain.Transaction{}, c.err
	}
	return c.CashLedger.Apply(entry)
}

func assertNothingCommitted(t *testing.T, f *fixture, res Result) {
	t.Helper()
	assert.Equal(t, domain.StatusRejected, res.Outcome.Status)
	assert.Empty(t, res.Outcome.TransactionID)
	assert.Nil(t, res.Transaction)
	assert.True(t, res.Outcome.FinalTotal.IsZero())
	assert.True(t, f.cash.Balance().IsZero())
	assert.Empty(t, f.cash.Transactions())
	assert.Empty(t, f.sink.txs)
}

func TestCommit_RaceLostAndRecheckShort(t *testing.T) {
	f := newFixture(t, "0")
	stock := &contendedStock{InventoryLedger: f.inv}
	stock.before = func(attempt int) {
		require.NoError(t, f.inv.ReserveAndDecrement("glossy", 30))
	}
	f.rewire(t, stock, f.cash)

	res := f.submit(t, "r1", "80 glossy", order(line("glossy paper", 80)), domain.CustomerContext{})

	assertNothingCommitted(t, f, res)
	assert.Equal(t, domain.ReasonInsufficientStock, res.Outcome.PrimaryReason())
	assert.Equal(t, 1, stock.attempts)
	assert.Equal(t, 70, f.stock("glossy"))
}

func TestCommit_RaceLostThenRetrySucceeds(t *testing.T) {
	f := newFixture(t, "0")
	stock := &contendedStock{InventoryLedger: f.inv}
	stock.before = func(attempt int) {
		if attempt == 1 {
			require.NoError(t, f.inv.ReserveAndDecrement("glossy", 30))
		}
	}
	stock.after = func(attempt int) {
		if attempt == 1 {
			require.NoError(t, f.inv.Restock("glossy", 30))
		}
	}
	f.rewire(t, stock, f.cash)

	res := f.submit(t, "r1", "80 glossy", order(line("glossy paper", 80)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusFulfilled, res.Outcome.Status)
	assert.Equal(t, 2, stock.attempts)
	assert.Equal(t, 20, f.stock("glossy"))
	assert.True(t, f.cash.Balance().Equal(d("11.20")), "cash %s", f.cash.Balance())
	assert.Len(t, f.cash.Transactions(), 1)
}

func TestCommit_RetryLostReportsRace(t *testing.T) {
	f := newFixture(t, "0")
	stock := &contendedStock{InventoryLedger: f.inv}
	stock.before = func(attempt int) {
		require.NoError(t, f.inv.ReserveAndDecrement("glossy", 30))
	}
	stock.after = func(attempt int) {
		if attempt == 1 {
			require.NoError(t, f.inv.Restock("glossy", 30))
		}
	}
	f.rewire(t, stock, f.cash)

	res := f.submit(t, "r1", "80 glossy", order(line("glossy paper", 80)), domain.CustomerContext{})

	assertNothingCommitted(t, f, res)
	assert.Equal(t, 2, stock.attempts)
	require.Len(t, res.Outcome.Reasons, 1)
	assert.Equal(t, domain.ReasonCommitRaceLost, res.Outcome.Reasons[0].Code)
	assert.Equal(t, "Glossy paper", res.Outcome.Reasons[0].Item)
	assert.Equal(t, 80, res.Outcome.Reasons[0].Quantity)
	// Only the rival's 30 are gone.
	assert.Equal(t, 70, f.stock("glossy"))
}

func TestCommit_CashFailureRestoresStock(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ReasonCode
	}{
		{"insufficient funds", ledger.ErrInsufficientFunds, domain.ReasonInsufficientFunds},
		{"other failure", errors.New("ledger offline"), domain.ReasonInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "0")
			f.rewire(t, f.inv, &failingCash{CashLedger: f.cash, err: tt.err})

			res := f.submit(t, "r1", "50 glossy", order(line("glossy paper", 50), line("cardstock", 5)), domain.CustomerContext{})

			assertNothingCommitted(t, f, res)
			assert.Equal(t, tt.want, res.Outcome.PrimaryReason())
			assert.Equal(t, 100, f.stock("glossy"))
			assert.Equal(t, 10, f.stock("cardstock"))
		})
	}
}
