package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownItem       = errors.New("unknown inventory item")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnknownTx         = errors.New("unknown transaction")
	ErrAlreadyRefunded   = errors.New("transaction already refunded")
)

// StockError names the item and quantity that could not be served.
type StockError struct {
	ItemID    string
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d", e.ItemID, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
