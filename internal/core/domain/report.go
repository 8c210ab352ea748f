package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type Recommendation struct {
	Priority       Priority `json:"priority"`
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	ExpectedImpact string   `json:"expected_impact"`
}

type DiscountSummary struct {
	Discounted    int             `json:"discounted"`
	AverageRate   decimal.Decimal `json:"average_rate"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	FloorClamped  int             `json:"floor_clamped"`
}

// BusinessReport is produced read-only by the analytics aggregator.
type BusinessReport struct {
	Sequence        int              `json:"sequence"`
	WindowStartID   string           `json:"window_start_id"`
	WindowEndID     string           `json:"window_end_id"`
	Requests        int              `json:"requests"`
	Revenue         decimal.Decimal  `json:"revenue"`
	StatusCounts    map[Status]int   `json:"status_counts"`
	ItemsLowOnStock []LowStockItem   `json:"items_low_on_stock"`
	Discounts       DiscountSummary  `json:"discount_summary"`
	CashBalance     decimal.Decimal  `json:"cash_balance"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
