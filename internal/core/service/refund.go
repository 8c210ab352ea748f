package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

var zero = decimal.Zero

// Refund reverses a committed sale: the cash goes back out first, then the stock
// comes back in. A refund that would overdraw the balance fails with
// ledger.ErrInsufficientFunds and changes nothing. The reason is kept on the
// REFUND transaction.
func (c *Coordinator) Refund(ctx context.Context, transactionID, reason string) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, err
	}
	sale, err := c.Cash.Transaction(transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if sale.Type != domain.TransactionSale {
		return domain.Transaction{}, fmt.Errorf("%w: %s is a %s", ErrNotRefundable, sale.ID, sale.Type)
	}

	refund, err := c.Cash.Apply(domain.CashEntry{
		RequestID: sale.RequestID,
		Type:      domain.TransactionRefund,
		Amount:    sale.Amount.Neg(),
		Lines:     sale.Lines,
		RefundOf:  sale.ID,
		Reason:    strings.TrimSpace(reason),
		At:        c.Now(),
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("refund %s: %w", sale.ID, err)
	}

	lines := make([]domain.StockLine, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		lines = append(lines, domain.StockLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	if err := c.Inventory.RestockAll(lines); err != nil {
		panic(fmt.Sprintf("service: restock for refund of %s: %v", sale.ID, err))
	}

	c.Logger.Info("sale refunded",
		zap.String("request_id", sale.RequestID),
		zap.String("transaction_id", refund.ID),
		zap.String("refund_of", sale.ID),
		zap.String("reason", refund.Reason),
		zap.String("balance", refund.ResultingBalance.StringFixed(2)))

	if c.Journal != nil {
		if err := c.Journal.SaveTransaction(context.WithoutCancel(ctx), refund); err != nil {
			c.Logger.Error("failed to journal refund", zap.String("transaction_id", refund.ID), zap.Error(err))
		}
	}
	return refund, nil
}

// plainCommunicator is used when no formatter is wired in.
type plainCommunicator struct{}

func (plainCommunicator) Format(o domain.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "request %s: %s", o.RequestID, o.Status)
	if o.Status == domain.StatusFulfilled || o.Status == domain.StatusQuoted {
		fmt.Fprintf(&b, ", total $%s", o.FinalTotal.StringFixed(2))
	}
	for _, r := range o.Reasons {
		fmt.Fprintf(&b, " [%s]", r.Code)
	}
	return b.String()
}
