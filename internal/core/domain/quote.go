package domain

import "github.com/shopspring/decimal"

type QuoteLine struct {
	ItemID       string
	ItemName     string
	Quantity     int
	UnitCost     decimal.Decimal
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
	LeadTimeDays int
}

// Quote is computed fresh per request and never mutated after creation.
type Quote struct {
	Lines                  []QuoteLine
	Subtotal               decimal.Decimal
	HistoricalReferenceIDs []string

	// LeadTimeDays is the longest supplier lead time among the lines.
	LeadTimeDays int
}

// Cost is the profitability floor: the sum of unit cost times quantity.
func (q Quote) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.Lines {
		total = total.Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (q Quote) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, StockLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return lines
}

// NegotiationContext is a derived view used only to select a discount policy.
type NegotiationContext struct {
	JobType        string
	RepeatCustomer bool
	Subtotal       decimal.Decimal
}

func NewNegotiationContext(c CustomerContext, q Quote) NegotiationContext {
	return NegotiationContext{
		JobType:        c.JobType,
		RepeatCustomer: c.RepeatCustomer,
		Subtotal:       q.Subtotal,
	}
}

type NegotiatedQuote struct {
	Quote
	// PolicyRate is the rate the segment policy asked for before the floor clamp.
	PolicyRate   decimal.Decimal
	DiscountRate decimal.Decimal
	FinalTotal   decimal.Decimal
	FloorClamped bool
	Segments     []string
}

// Discount is the absolute amount taken off the subtotal.
func (n NegotiatedQuote) Discount() decimal.Decimal {
	return n.Subtotal.Sub(n.FinalTotal)
}
