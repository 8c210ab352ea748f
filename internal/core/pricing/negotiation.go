package pricing

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const ratePlaces = 4

var ErrProfitabilityFloor = errors.New("quote is below cost before any discount")

const (
	SegmentEducation = "education"
	SegmentVolume    = "volume"
	SegmentLoyalty   = "loyalty"
)

// VolumeTier grants Rate once the subtotal reaches MinSubtotal.
type VolumeTier struct {
	MinSubtotal decimal.Decimal
	Rate        decimal.Decimal
}

type Policy struct {
	EducationJobs []string
	EducationRate decimal.Decimal
	VolumeTiers   []VolumeTier
	MaxVolumeRate decimal.Decimal
	LoyaltyRate   decimal.Decimal
	MaxDiscount   decimal.Decimal
}

func DefaultPolicy() Policy {
	d := decimal.RequireFromString
	return Policy{
		EducationJobs: []string{"school", "teacher", "education", "university", "non-profit", "nonprofit", "charity"},
		EducationRate: d("0.10"),
		VolumeTiers: []VolumeTier{
			{MinSubtotal: d("100"), Rate: d("0.05")},
			{MinSubtotal: d("500"), Rate: d("0.08")},
			{MinSubtotal: d("1000"), Rate: d("0.12")},
		},
		MaxVolumeRate: d("0.12"),
		LoyaltyRate:   d("0.02"),
		MaxDiscount:   d("0.20"),
	}
}

type NegotiationEngine struct {
	policy Policy
	tiers  []VolumeTier
	edu    map[string]struct{}
}

func NewNegotiationEngine(p Policy) *NegotiationEngine {
	tiers := append([]VolumeTier(nil), p.VolumeTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinSubtotal.LessThan(tiers[j].MinSubtotal) })
	edu := make(map[string]struct{}, len(p.EducationJobs))
	for _, j := range p.EducationJobs {
		edu[normalizeJob(j)] = struct{}{}
	}
	return &NegotiationEngine{policy: p, tiers: tiers, edu: edu}
}

// PolicyRate sums every applicable segment rate and clamps to [0, MaxDiscount].
func (e *NegotiationEngine) PolicyRate(nc domain.NegotiationContext) (decimal.Decimal, []string) {
	rate := decimal.Zero
	var segments []string

	if _, ok := e.edu[normalizeJob(nc.JobType)]; ok {
		rate = rate.Add(e.policy.EducationRate)
		segments = append(segments, SegmentEducation)
	}
	if v := e.volumeRate(nc.Subtotal); v.IsPositive() {
		rate = rate.Add(v)
		segments = append(segments, SegmentVolume)
	}
	if nc.RepeatCustomer {
		rate = rate.Add(e.policy.LoyaltyRate)
		segments = append(segments, SegmentLoyalty)
	}
	return clamp(rate, decimal.Zero, e.policy.MaxDiscount), segments
}

func (e *NegotiationEngine) volumeRate(subtotal decimal.Decimal) decimal.Decimal {
	rate := decimal.Zero
	for _, t := range e.tiers {
		if subtotal.GreaterThanOrEqual(t.MinSubtotal) {
			rate = t.Rate
		}
	}
	return decimal.Min(rate, e.policy.MaxVolumeRate)
}

// Negotiate applies the segment policy and then the profitability floor, which
// has the final word on the rate.
func (e *NegotiationEngine) Negotiate(q domain.Quote, nc domain.NegotiationContext) (domain.NegotiatedQuote, error) {
	cost := q.Cost()
	if q.Subtotal.LessThan(cost) || !q.Subtotal.IsPositive() {
		return domain.NegotiatedQuote{}, ErrProfitabilityFloor
	}

	policyRate, segments := e.PolicyRate(nc)
	rate := policyRate
	clamped := false
	if floor := MaxFloorRate(q.Subtotal, cost); rate.GreaterThan(floor) {
		rate = floor
		clamped = true
	}

	one := decimal.NewFromInt(1)
	return domain.NegotiatedQuote{
		Quote:        q,
		PolicyRate:   policyRate,
		DiscountRate: rate,
		FinalTotal:   q.Subtotal.Mul(one.Sub(rate)),
		FloorClamped: clamped,
		Segments:     segments,
	}, nil
}

// MaxFloorRate is the largest rate, truncated to 4 places, that keeps
// subtotal × (1 − rate) at or above cost.
func MaxFloorRate(subtotal, cost decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || cost.GreaterThanOrEqual(subtotal) {
		return decimal.Zero
	}
	step := decimal.New(1, -ratePlaces)
	rate := subtotal.Sub(cost).Div(subtotal).Truncate(ratePlaces)
	for rate.IsPositive() && subtotal.Mul(decimal.NewFromInt(1).Sub(rate)).LessThan(cost) {
		rate = rate.Sub(step)
	}
	return rate
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(v, hi))
}

func normalizeJob(j string) string {
	return strings.ToLower(strings.TrimSpace(j))
}
