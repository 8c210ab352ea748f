package domain

import (
	"fmt"
	"strings"
	"time"
)

type RequestKind string

const (
	RequestKindInquiry RequestKind = "inquiry"
	RequestKindOrder   RequestKind = "order"
	RequestKindQuote   RequestKind = "quote"
)

type CustomerContext struct {
	JobType        string `json:"job_type"`
	EventType      string `json:"event_type"`
	NeedSize       string `json:"need_size,omitempty"`
	RepeatCustomer bool   `json:"repeat_customer"`
}

// CustomerRequest is immutable once received.
type CustomerRequest struct {
	ID           string          `json:"request_id"`
	CustomerName string          `json:"customer_name"`
	RawText      string          `json:"raw_text"`
	Context      CustomerContext `json:"customer_context"`
	RequestedAt  time.Time       `json:"requested_at"`
}

// ParsedRequest is what the classifier oracle produces for a raw request.
type ParsedRequest struct {
	Kind       RequestKind      `json:"kind"`
	LineItems  []ParsedLineItem `json:"line_items"`
	Confidence float64          `json:"confidence"`
}

type ParsedLineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type ResolvedLineItem struct {
	ItemID     string  `json:"item_id"`
	Quantity   int     `json:"quantity"`
	Confidence float64 `json:"confidence"`
}

var requestDateLayouts = []string{"2006-01-02", "1/2/06", "1/2/2006", time.RFC3339}

// ParseRequestDate accepts ISO dates, US short dates and RFC 3339 timestamps.
func ParseRequestDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range requestDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised request date %q", s)
}
