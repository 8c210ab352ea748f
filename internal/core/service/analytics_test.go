package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
)

func fulfilled(id, subtotal, rate, final string) domain.Outcome {
	return domain.Outcome{
		RequestID: id, Status: domain.StatusFulfilled, TransactionID: "tx-" + id,
		Subtotal: d(subtotal), DiscountRate: d(rate), FinalTotal: d(final),
	}
}

func rejectedForStock(id, item string) domain.Outcome {
	return domain.Outcome{
		RequestID: id, Status: domain.StatusRejected, Subtotal: zero, DiscountRate: zero, FinalTotal: zero,
		Reasons: []domain.Reason{{Code: domain.ReasonInsufficientStock, Item: item, Quantity: 500}},
	}
}

func TestAggregator_Cadence(t *testing.T) {
	inv := ledger.NewInventoryLedger(testCatalog())
	a := NewAggregator(3, inv, ledger.NewCashLedger(d("0")))

	var emitted []int
	for i := 1; i <= 10; i++ {
		if r := a.Observe(fulfilled(fmt.Sprint(i), "1", "0", "1")); r != nil {
			emitted = append(emitted, i)
		}
	}

	assert.Equal(t, []int{3, 6, 9}, emitted)
	assert.Equal(t, 10, a.Closed())
	assert.Len(t, a.Reports(), 3)
}

func TestAggregator_ReportContents(t *testing.T) {
	inv := ledger.NewInventoryLedger(testCatalog())
	a := NewAggregator(5, inv, ledger.NewCashLedger(d("40")))

	a.Observe(fulfilled("r1", "7.00", "0.10", "6.30"))
	a.Observe(fulfilled("r2", "10.00", "0", "10.00"))
	a.Observe(rejectedForStock("r3", "Glossy paper"))
	a.Observe(domain.Outcome{RequestID: "r4", Status: domain.StatusManualReview})
	r := a.Observe(domain.Outcome{RequestID: "r5", Status: domain.StatusAnswered})
	require.NotNil(t, r)

	assert.Equal(t, 1, r.Sequence)
	assert.Equal(t, 5, r.Requests)
	assert.True(t, r.Revenue.Equal(d("16.30")), "revenue %s", r.Revenue)
	assert.True(t, r.CashBalance.Equal(d("40")))
	assert.Equal(t, map[domain.Status]int{
		domain.StatusFulfilled:    2,
		domain.StatusRejected:     1,
		domain.StatusManualReview: 1,
		domain.StatusAnswered:     1,
	}, r.StatusCounts)

	assert.Equal(t, 1, r.Discounts.Discounted)
	assert.True(t, r.Discounts.AverageRate.Equal(d("0.05")))
	assert.True(t, r.Discounts.TotalDiscount.Equal(d("0.70")))

	// cardstock: stock 10, threshold 50
	require.Len(t, r.ItemsLowOnStock, 1)
	low := r.ItemsLowOnStock[0]
	assert.Equal(t, "cardstock", low.ItemID)
	assert.Equal(t, 90, low.SuggestedReorder)
	assert.Equal(t, 7, low.LeadTimeDays)

	types := map[string]domain.Priority{}
	for _, rec := range r.Recommendations {
		types[rec.Type] = rec.Priority
	}
	assert.Equal(t, domain.PriorityHigh, types["inventory"])
	assert.Equal(t, domain.PriorityMedium, types["revenue"])
	assert.Equal(t, domain.PriorityMedium, types["efficiency"])
	assert.NotContains(t, types, "pricing")
}

func TestAggregator_QuietWindowGetsLowPriorityNote(t *testing.T) {
	inv := ledger.NewInventoryLedger([]domain.InventoryItem{
		{ID: "glossy", Name: "Glossy paper", UnitCost: d("0.10"), Stock: 100, ReorderThreshold: 20},
	})
	a := NewAggregator(1, inv, ledger.NewCashLedger(d("0")))

	r := a.Observe(fulfilled("r1", "1", "0", "1"))
	require.NotNil(t, r)
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, domain.PriorityLow, r.Recommendations[0].Priority)
	assert.Empty(t, r.ItemsLowOnStock)
}

func TestAggregator_StockRejectionsDominate(t *testing.T) {
	inv := ledger.NewInventoryLedger(testCatalog())
	a := NewAggregator(2, inv, ledger.NewCashLedger(d("0")))

	a.Observe(rejectedForStock("r1", "Glossy paper"))
	r := a.Observe(fulfilled("r2", "1", "0", "1"))
	require.NotNil(t, r)

	var revenue *domain.Recommendation
	for i := range r.Recommendations {
		if r.Recommendations[i].Type == "revenue" {
			revenue = &r.Recommendations[i]
		}
	}
	require.NotNil(t, revenue)
	assert.Equal(t, domain.PriorityHigh, revenue.Priority)
	assert.Contains(t, revenue.Description, "Glossy paper")
}

func TestAggregator_FloorClampFlagsPricing(t *testing.T) {
	inv := ledger.NewInventoryLedger(testCatalog())
	a := NewAggregator(1, inv, ledger.NewCashLedger(d("0")))

	o := fulfilled("r1", "10.50", "0.0476", "10.0002")
	o.FloorClamped = true
	r := a.Observe(o)
	require.NotNil(t, r)

	assert.Equal(t, 1, r.Discounts.FloorClamped)
	found := false
	for _, rec := range r.Recommendations {
		if rec.Type == "pricing" {
			found = true
		}
	}
	assert.True(t, found)

	s := a.Summary()
	assert.Equal(t, len(r.Recommendations), s.Total)
	assert.Equal(t, 1, s.ByType["pricing"])
}
