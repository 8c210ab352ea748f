package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusFulfilled    Status = "fulfilled"
	StatusQuoted       Status = "quoted"
	StatusAnswered     Status = "answered"
	StatusRejected     Status = "rejected"
	StatusManualReview Status = "manual_review"
)

type ReasonCode string

const (
	ReasonClassificationAmbiguous ReasonCode = "CLASSIFICATION_AMBIGUOUS"
	ReasonNoConfidentMatch        ReasonCode = "NO_CONFIDENT_MATCH"
	ReasonInsufficientStock       ReasonCode = "INSUFFICIENT_STOCK"
	ReasonInsufficientFunds       ReasonCode = "INSUFFICIENT_FUNDS"
	ReasonProfitabilityFloor      ReasonCode = "PROFITABILITY_FLOOR_VIOLATION"
	ReasonCommitRaceLost          ReasonCode = "COMMIT_RACE_LOST"
	ReasonInternal                ReasonCode = "INTERNAL_ERROR"
)

type Reason struct {
	Code     ReasonCode `json:"code"`
	Item     string     `json:"item,omitempty"`
	Quantity int        `json:"quantity,omitempty"`
	Detail   string     `json:"detail,omitempty"`
}

type OutcomeLine struct {
	ItemID    string          `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Outcome is the externally visible result of one request. It must never carry
// stock levels, unit costs or margins.
type Outcome struct {
	RequestID     string          `json:"request_id"`
	CustomerName  string          `json:"customer_name"`
	Kind          RequestKind     `json:"kind"`
	Status        Status          `json:"status"`
	Lines         []OutcomeLine   `json:"line_items,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	FinalTotal    decimal.Decimal `json:"final_total"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Reasons       []Reason        `json:"reasons,omitempty"`

	// EstimatedDelivery and ValidUntil are set on quoted and fulfilled outcomes.
	EstimatedDelivery time.Time `json:"estimated_delivery,omitzero"`
	ValidUntil        time.Time `json:"valid_until,omitzero"`
	ClosedAt          time.Time `json:"closed_at"`

	// FloorClamped stays internal; analytics uses it for the discount summary.
	FloorClamped bool `json:"-"`
}

func (o Outcome) Committed() bool {
	return o.Status == StatusFulfilled && o.TransactionID != ""
}

// PrimaryReason returns the first reason code, or "" when there is none.
func (o Outcome) PrimaryReason() ReasonCode {
	if len(o.Reasons) == 0 {
		return ""
	}
	return o.Reasons[0].Code
}
