package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
)

const DefaultReportCadence = 5

// Aggregator counts closed requests and emits a BusinessReport on every
// cadence-th one. It only reads the ledgers.
type Aggregator struct {
	mu      sync.Mutex
	cadence int
	inv     *ledger.InventoryLedger
	cash    *ledger.CashLedger
	now     func() time.Time

	closed  int
	window  []domain.Outcome
	reports []domain.BusinessReport
}

func NewAggregator(cadence int, inv *ledger.InventoryLedger, cash *ledger.CashLedger) *Aggregator {
	if cadence <= 0 {
		cadence = DefaultReportCadence
	}
	return &Aggregator{
		cadence: cadence,
		inv:     inv,
		cash:    cash,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Observe records a closed request. It returns a report exactly when the number
// of closed requests reaches a multiple of the cadence, and nil otherwise.
func (a *Aggregator) Observe(o domain.Outcome) *domain.BusinessReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed++
	a.window = append(a.window, o)
	if a.closed%a.cadence != 0 {
		return nil
	}

	report := a.build()
	a.reports = append(a.reports, report)
	a.window = nil
	return &report
}

func (a *Aggregator) Closed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Aggregator) Reports() []domain.BusinessReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.BusinessReport(nil), a.reports...)
}

// RecommendationSummary counts every recommendation issued so far.
type RecommendationSummary struct {
	Total      int                     `json:"total"`
	ByPriority map[domain.Priority]int `json:"by_priority"`
	ByType     map[string]int          `json:"by_type"`
}

func (a *Aggregator) Summary() RecommendationSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := RecommendationSummary{ByPriority: map[domain.Priority]int{}, ByType: map[string]int{}}
	for _, r := range a.reports {
		for _, rec := range r.Recommendations {
			s.Total++
			s.ByPriority[rec.Priority]++
			s.ByType[rec.Type]++
		}
	}
	return s
}

// build summarises the current window. Caller holds mu.
func (a *Aggregator) build() domain.BusinessReport {
	r := domain.BusinessReport{
		Sequence:      len(a.reports) + 1,
		WindowStartID: a.window[0].RequestID,
		WindowEndID:   a.window[len(a.window)-1].RequestID,
		Requests:      len(a.window),
		Revenue:       decimal.Zero,
		StatusCounts:  make(map[domain.Status]int),
		CashBalance:   a.cash.Balance(),
		GeneratedAt:   a.now(),
	}

	rateSum := decimal.Zero
	fulfilled := 0
	r.Discounts = domain.DiscountSummary{AverageRate: decimal.Zero, TotalDiscount: decimal.Zero}
	for _, o := range a.window {
		r.StatusCounts[o.Status]++
		if !o.Committed() {
			continue
		}
		fulfilled++
		r.Revenue = r.Revenue.Add(o.FinalTotal)
		rateSum = rateSum.Add(o.DiscountRate)
		if o.DiscountRate.IsPositive() {
			r.Discounts.Discounted++
			r.Discounts.TotalDiscount = r.Discounts.TotalDiscount.Add(o.Subtotal.Sub(o.FinalTotal))
		}
		if o.FloorClamped {
			r.Discounts.FloorClamped++
		}
	}
	if fulfilled > 0 {
		r.Discounts.AverageRate = rateSum.Div(decimal.NewFromInt(int64(fulfilled))).Round(4)
	}

	for _, it := range a.inv.ItemsBelowThreshold() {
		r.ItemsLowOnStock = append(r.ItemsLowOnStock, domain.LowStockItem{
			ItemID:           it.ID,
			Name:             it.Name,
			Stock:            it.Stock,
			ReorderThreshold: it.ReorderThreshold,
			SuggestedReorder: suggestedReorder(it),
			LeadTimeDays:     it.LeadTimeDays,
		})
	}

	r.Recommendations = recommend(r, a.window)
	return r
}

func suggestedReorder(it domain.InventoryItem) int {
	n := 2*it.ReorderThreshold - it.Stock
	if n < it.ReorderThreshold {
		n = it.ReorderThreshold
	}
	if n < 1 {
		n = 1
	}
	return n
}

var maxDiscountPressure = decimal.RequireFromString("0.15")

func recommend(r domain.BusinessReport, window []domain.Outcome) []domain.Recommendation {
	var recs []domain.Recommendation

	for _, it := range r.ItemsLowOnStock {
		p := domain.PriorityMedium
		if it.Stock == 0 || it.Stock*2 < it.ReorderThreshold {
			p = domain.PriorityHigh
		}
		recs = append(recs, domain.Recommendation{
			Priority:       p,
			Type:           "inventory",
			Description:    fmt.Sprintf("Reorder %d units of %s (stock %d, threshold %d); supplier lead time %d days.", it.SuggestedReorder, it.Name, it.Stock, it.ReorderThreshold, it.LeadTimeDays),
			ExpectedImpact: "Keeps the item orderable and avoids stock-out rejections.",
		})
	}

	stockRejections := 0
	var missed []string
	seen := map[string]bool{}
	manual := 0
	for _, o := range window {
		switch o.Status {
		case domain.StatusRejected:
			for _, reason := range o.Reasons {
				if reason.Code == domain.ReasonInsufficientStock || reason.Code == domain.ReasonCommitRaceLost {
					stockRejections++
					if reason.Item != "" && !seen[reason.Item] {
						seen[reason.Item] = true
						missed = append(missed, reason.Item)
					}
					break
				}
			}
		case domain.StatusManualReview:
			manual++
		}
	}
	if stockRejections > 0 {
		p := domain.PriorityMedium
		if stockRejections*2 >= len(window) {
			p = domain.PriorityHigh
		}
		sort.Strings(missed)
		recs = append(recs, domain.Recommendation{
			Priority:       p,
			Type:           "revenue",
			Description:    fmt.Sprintf("%d of %d requests were lost to insufficient stock (%s); raise stock levels for these items.", stockRejections, len(window), strings.Join(missed, ", ")),
			ExpectedImpact: "Recovers revenue currently turned away at the availability check.",
		})
	}
	if manual > 0 {
		recs = append(recs, domain.Recommendation{
			Priority:       domain.PriorityMedium,
			Type:           "efficiency",
			Description:    fmt.Sprintf("%d of %d requests needed manual review; extend catalog names or aliases for unmatched descriptions.", manual, len(window)),
			ExpectedImpact: "Fewer requests escalated to staff.",
		})
	}
	if r.Discounts.FloorClamped > 0 || r.Discounts.AverageRate.GreaterThanOrEqual(maxDiscountPressure) {
		recs = append(recs, domain.Recommendation{
			Priority:       domain.PriorityMedium,
			Type:           "pricing",
			Description:    fmt.Sprintf("Average discount %s%% with %d orders held at the profitability floor; review margins on discounted segments.", r.Discounts.AverageRate.Mul(decimal.NewFromInt(100)).StringFixed(1), r.Discounts.FloorClamped),
			ExpectedImpact: "Protects margin on education, volume and loyalty deals.",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, domain.Recommendation{
			Priority:       domain.PriorityLow,
			Type:           "operations",
			Description:    "No stock, pricing or resolution issues in this window.",
			ExpectedImpact: "None; keep current settings.",
		})
	}
	return recs
}
