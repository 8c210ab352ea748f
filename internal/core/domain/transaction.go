package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionSale   TransactionType = "SALE"
	TransactionRefund TransactionType = "REFUND"
)

type TransactionLine struct {
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Transaction is an append-only ledger-of-record entry. Amount is the signed
// cash delta it applied.
type Transaction struct {
	ID               string            `json:"transaction_id"`
	RequestID        string            `json:"request_id"`
	Type             TransactionType   `json:"type"`
	Amount           decimal.Decimal   `json:"amount"`
	Lines            []TransactionLine `json:"lines"`
	CommittedAt      time.Time         `json:"committed_at"`
	ResultingBalance decimal.Decimal   `json:"resulting_cash_balance"`
	RefundOf         string            `json:"refund_of,omitempty"`
	Reason           string            `json:"reason,omitempty"`
}

// CashEntry is a request to move cash, turned into a Transaction by the cash ledger.
type CashEntry struct {
	RequestID string
	Type      TransactionType
	Amount    decimal.Decimal
	Lines     []TransactionLine
	RefundOf  string
	Reason    string
	At        time.Time
}

type HistoricalSale struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// HistoryWindow bounds a comparable-sales lookup. Zero values are unbounded.
type HistoryWindow struct {
	Since       time.Time
	Until       time.Time
	MinQuantity int
	MaxQuantity int
	Limit       int
}

func (w HistoryWindow) Contains(s HistoricalSale) bool {
	if !w.Since.IsZero() && s.Timestamp.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && s.Timestamp.After(w.Until) {
		return false
	}
	if w.MinQuantity > 0 && s.Quantity < w.MinQuantity {
		return false
	}
	if w.MaxQuantity > 0 && s.Quantity > w.MaxQuantity {
		return false
	}
	return true
}
