// Package pricing computes base quotes and negotiated discounts. Everything in
// it is a pure function of its arguments.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const unitPricePlaces = 4

var ErrEmptyQuote = errors.New("quote has no lines")

type QuoteConfig struct {
	MarginMultiplier decimal.Decimal
	// CatalogWeight is the share of the catalog-margin price in the blend with
	// the historical median; the rest goes to history.
	CatalogWeight decimal.Decimal
	HistorySample int
}

func DefaultQuoteConfig() QuoteConfig {
	return QuoteConfig{
		MarginMultiplier: decimal.RequireFromString("1.4"),
		CatalogWeight:    decimal.RequireFromString("0.7"),
		HistorySample:    5,
	}
}

// QuoteInput pairs a resolved line with the catalog entry it resolved to.
type QuoteInput struct {
	Line domain.ResolvedLineItem
	Item domain.InventoryItem
}

type QuoteEngine struct {
	cfg QuoteConfig
}

func NewQuoteEngine(cfg QuoteConfig) *QuoteEngine {
	if cfg.HistorySample <= 0 {
		cfg.HistorySample = DefaultQuoteConfig().HistorySample
	}
	return &QuoteEngine{cfg: cfg}
}

// Quote prices every line. history maps item ID to comparable past sales.
func (e *QuoteEngine) Quote(inputs []QuoteInput, history map[string][]domain.HistoricalSale) (domain.Quote, error) {
	if len(inputs) == 0 {
		return domain.Quote{}, ErrEmptyQuote
	}

	q := domain.Quote{Subtotal: decimal.Zero}
	var refs []string
	for _, in := range inputs {
		if in.Line.Quantity <= 0 {
			return domain.Quote{}, fmt.Errorf("invalid quantity %d for %s", in.Line.Quantity, in.Item.ID)
		}
		price, used := e.UnitPrice(in.Item, history[in.Item.ID])
		total := price.Mul(decimal.NewFromInt(int64(in.Line.Quantity)))
		q.Lines = append(q.Lines, domain.QuoteLine{
			ItemID:       in.Item.ID,
			ItemName:     in.Item.Name,
			Quantity:     in.Line.Quantity,
			UnitCost:     in.Item.UnitCost,
			UnitPrice:    price,
			LineTotal:    total,
			LeadTimeDays: in.Item.LeadTimeDays,
		})
		q.Subtotal = q.Subtotal.Add(total)
		if in.Item.LeadTimeDays > q.LeadTimeDays {
			q.LeadTimeDays = in.Item.LeadTimeDays
		}
		refs = append(refs, used...)
	}
	sort.Strings(refs)
	q.HistoricalReferenceIDs = refs
	return q, nil
}

// UnitPrice returns the blended unit price and the history ids it relied on.
func (e *QuoteEngine) UnitPrice(item domain.InventoryItem, sales []domain.HistoricalSale) (decimal.Decimal, []string) {
	catalog := item.UnitCost.Mul(e.cfg.MarginMultiplier)

	recent := mostRecent(sales, item.ID, e.cfg.HistorySample)
	if len(recent) == 0 {
		return catalog.Round(unitPricePlaces), nil
	}

	prices := make([]decimal.Decimal, 0, len(recent))
	ids := make([]string, 0, len(recent))
	for _, s := range recent {
		prices = append(prices, s.UnitPrice)
		ids = append(ids, s.ID)
	}
	hist := median(prices)
	w := e.cfg.CatalogWeight
	blended := catalog.Mul(w).Add(hist.Mul(decimal.NewFromInt(1).Sub(w)))
	return blended.Round(unitPricePlaces), ids
}

// mostRecent keeps the n newest sales of itemID, newest first, ties by id.
func mostRecent(sales []domain.HistoricalSale, itemID string, n int) []domain.HistoricalSale {
	out := make([]domain.HistoricalSale, 0, len(sales))
	for _, s := range sales {
		if s.ItemID == itemID && s.UnitPrice.IsPositive() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func median(values []decimal.Decimal) decimal.Decimal {
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
