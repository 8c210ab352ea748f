package notify

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const DefaultCompany = "Beaver's Choice Paper Company"

var funcs = template.FuncMap{
	"money":    func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"pct":      func(d decimal.Decimal) string { return d.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%" },
	"reason":   reasonText,
	"positive": func(d decimal.Decimal) bool { return d.IsPositive() },
	"date":     func(t time.Time) string { return t.Format("January 2, 2006") },
}

const letterText = `Dear {{.Customer}},

Thank you for contacting {{.Company}}.
{{- if eq .Outcome.Status "fulfilled"}}

Your order {{.Outcome.RequestID}} has been confirmed:
{{range .Outcome.Lines}}
  - {{.Quantity}} x {{.ItemName}} at {{money .UnitPrice}} = {{money .LineTotal}}
{{- end}}

Subtotal: {{money .Outcome.Subtotal}}
{{- if positive .Outcome.DiscountRate}}
Discount: {{pct .Outcome.DiscountRate}}
{{- end}}
Total due: {{money .Outcome.FinalTotal}}
Transaction reference: {{.Outcome.TransactionID}}
{{- if not .Outcome.EstimatedDelivery.IsZero}}
Estimated delivery: {{date .Outcome.EstimatedDelivery}}
{{- end}}
{{- else if eq .Outcome.Status "quoted"}}

Here is your quote for request {{.Outcome.RequestID}}:
{{range .Outcome.Lines}}
  - {{.Quantity}} x {{.ItemName}} at {{money .UnitPrice}} = {{money .LineTotal}}
{{- end}}

Subtotal: {{money .Outcome.Subtotal}}
{{- if positive .Outcome.DiscountRate}}
Discount: {{pct .Outcome.DiscountRate}}
{{- end}}
Quoted total: {{money .Outcome.FinalTotal}}
{{- if not .Outcome.EstimatedDelivery.IsZero}}
Estimated delivery: {{date .Outcome.EstimatedDelivery}}
{{- end}}
{{- if not .Outcome.ValidUntil.IsZero}}
This quote is valid until {{date .Outcome.ValidUntil}}.
{{- end}}

Reply to this message to place the order.
{{- else if eq .Outcome.Status "rejected"}}

Unfortunately we cannot fulfil request {{.Outcome.RequestID}} at this time:
{{range .Outcome.Reasons}}
  - {{reason .}}
{{- end}}
{{- else if eq .Outcome.Status "manual_review"}}

A member of our team will review request {{.Outcome.RequestID}} and follow up, because we could not match:
{{range .Outcome.Reasons}}
  - {{.Item}}
{{- end}}
{{- else}}

We have received your message and will answer your question shortly.
{{- end}}

Best regards,
{{.Company}}
Customer Service Team
`

var letter = template.Must(template.New("letter").Funcs(funcs).Parse(letterText))

// LetterFormatter renders outcomes as customer letters. Only outcome fields are
// used, so stock levels and costs never reach the customer.
type LetterFormatter struct {
	company string
}

func NewLetterFormatter(company string) *LetterFormatter {
	if company == "" {
		company = DefaultCompany
	}
	return &LetterFormatter{company: company}
}

func (f *LetterFormatter) Format(o domain.Outcome) string {
	customer := strings.TrimSpace(o.CustomerName)
	if customer == "" {
		customer = "Valued Customer"
	}

	var buf bytes.Buffer
	err := letter.Execute(&buf, struct {
		Customer string
		Company  string
		Outcome  domain.Outcome
	}{customer, f.company, o})
	if err != nil {
		return "Dear " + customer + ",\n\nThank you for contacting " + f.company + ". We will respond to your request shortly.\n"
	}
	return buf.String()
}

func reasonText(r domain.Reason) string {
	switch r.Code {
	case domain.ReasonInsufficientStock, domain.ReasonCommitRaceLost:
		if r.Item != "" {
			return "we do not have enough " + r.Item + " in stock for this quantity"
		}
		return "we do not have enough stock for this order"
	case domain.ReasonInsufficientFunds:
		return "the payment could not be processed"
	case domain.ReasonProfitabilityFloor:
		return "we are unable to offer this price"
	default:
		return "an internal problem prevented us from completing the order"
	}
}
