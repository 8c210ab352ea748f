package batch

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/service"
)

var outcomeHeader = []string{
	"request_id", "customer", "job", "event", "need_size", "request_date",
	"kind", "status", "reason", "subtotal", "discount_rate", "final_total", "transaction_id",
	"estimated_delivery", "valid_until", "cash_balance_after", "inventory_value_after", "total_assets_after", "response",
}

// WriteOutcomes writes one CSV row per request, in the given order.
func WriteOutcomes(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(outcomeHeader); err != nil {
		return err
	}
	for _, r := range rows {
		o := r.Result.Outcome
		status, reason := string(o.Status), string(o.PrimaryReason())
		response := r.Result.Message
		if r.Err != nil {
			status, reason, response = "error", string(domain.ReasonInternal), r.Err.Error()
		}
		rec := []string{
			r.Request.ID,
			r.Request.CustomerName,
			r.Request.Context.JobType,
			r.Request.Context.EventType,
			r.Request.Context.NeedSize,
			r.Request.RequestedAt.Format("2006-01-02"),
			string(o.Kind),
			status,
			reason,
			o.Subtotal.StringFixed(2),
			o.DiscountRate.StringFixed(4),
			o.FinalTotal.StringFixed(2),
			o.TransactionID,
			day(o.EstimatedDelivery),
			day(o.ValidUntil),
			r.CashBalance.StringFixed(2),
			r.InventoryValue.StringFixed(2),
			r.TotalAssets().StringFixed(2),
			response,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

type reportFile struct {
	Reports []domain.BusinessReport       `json:"reports"`
	Summary service.RecommendationSummary `json:"recommendation_summary"`
	Counts  map[string]int                `json:"outcome_counts"`
}

// WriteReports writes every business report plus totals for the run as JSON.
func WriteReports(w io.Writer, reports []domain.BusinessReport, summary service.RecommendationSummary, rows []Row) error {
	counts := make(map[string]int)
	for _, r := range rows {
		if r.Err != nil {
			counts["error"]++
			continue
		}
		counts[string(r.Result.Outcome.Status)]++
	}
	counts["total"] = len(rows)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reportFile{Reports: reports, Summary: summary, Counts: counts})
}
