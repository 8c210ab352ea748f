package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

// CashLedger holds the balance and the transaction log. Both change together
// inside Apply and nowhere else.
type CashLedger struct {
	mu      sync.RWMutex
	initial decimal.Decimal
	balance decimal.Decimal
	log     []domain.Transaction
	byID    map[string]int

	// refunded maps a sale id to the refund that reversed it.
	refunded map[string]string
}

func NewCashLedger(initial decimal.Decimal) *CashLedger {
	if initial.IsNegative() {
		panic(fmt.Sprintf("ledger: negative opening balance %s", initial))
	}
	return &CashLedger{
		initial:  initial,
		balance:  initial,
		byID:     make(map[string]int),
		refunded: make(map[string]string),
	}
}

func (c *CashLedger) Balance() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balance
}

func (c *CashLedger) Initial() decimal.Decimal {
	return c.initial
}

// Apply adds entry.Amount to the balance and records the transaction, unless the
// balance would go negative, in which case nothing changes.
func (c *CashLedger) Apply(entry domain.CashEntry) (domain.Transaction, error) {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.RefundOf != "" {
		if _, done := c.refunded[entry.RefundOf]; done {
			return domain.Transaction{}, fmt.Errorf("%w: %s", ErrAlreadyRefunded, entry.RefundOf)
		}
	}

	next := c.balance.Add(entry.Amount)
	if next.IsNegative() {
		return domain.Transaction{}, fmt.Errorf("%w: balance %s, delta %s", ErrInsufficientFunds, c.balance.StringFixed(2), entry.Amount.StringFixed(2))
	}

	tx := domain.Transaction{
		ID:               uuid.New().String(),
		RequestID:        entry.RequestID,
		Type:             entry.Type,
		Amount:           entry.Amount,
		Lines:            append([]domain.TransactionLine(nil), entry.Lines...),
		CommittedAt:      at,
		ResultingBalance: next,
		RefundOf:         entry.RefundOf,
		Reason:           entry.Reason,
	}
	c.balance = next
	c.byID[tx.ID] = len(c.log)
	c.log = append(c.log, tx)
	if tx.RefundOf != "" {
		c.refunded[tx.RefundOf] = tx.ID
	}
	return tx, nil
}

func (c *CashLedger) Transaction(id string) (domain.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byID[id]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("%w: %s", ErrUnknownTx, id)
	}
	return c.log[idx], nil
}

// RefundFor returns the refund recorded against a sale, if any.
func (c *CashLedger) RefundFor(saleID string) (domain.Transaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.refunded[saleID]
	if !ok {
		return domain.Transaction{}, false
	}
	return c.log[c.byID[id]], true
}

func (c *CashLedger) Transactions() []domain.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Transaction(nil), c.log...)
}
