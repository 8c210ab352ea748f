package classifier

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const (
	confidenceExplicit = 0.9
	confidenceImplicit = 0.6
	confidenceUnsure   = 0.3
)

var (
	orderWords   = []string{"place an order", "order", "buy", "purchase", "need", "would like", "send us", "deliver"}
	quoteWords   = []string{"quote", "price", "pricing", "cost", "how much", "estimate"}
	inquiryWords = []string{"in stock", "stock", "inventory", "available", "do you have", "do you carry"}

	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	thousands    = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b`)
	separators   = regexp.MustCompile(`[;,\n]|\band\b|\bplus\b`)
	quantityLine = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(?:x\s+)?(?:(?:sheets?|reams?|rolls?|pieces?|units?|packs?|packets?|boxes|box|pads?|sets?)\s+)?(?:of\s+)?(?:the\s+)?([a-z][a-z0-9\- ]*)`)
	stopWords    = map[string]bool{
		"for": true, "to": true, "by": true, "please": true, "delivered": true, "at": true,
		"with": true, "on": true, "before": true, "so": true, "asap": true, "which": true, "that": true,
		"cost": true, "costs": true, "would": true, "will": true, "is": true, "are": true, "be": true,
	}
)

// KeywordClassifier is the rule-based Classifier: keyword routing for the
// request kind and regex extraction of "<quantity> <item>" lines.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Classify(ctx context.Context, raw string) (domain.ParsedRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParsedRequest{}, err
	}
	text := strings.ToLower(raw)
	items := ExtractLineItems(raw)

	switch {
	case containsAny(text, quoteWords) && !containsAny(text, []string{"place an order", "purchase", "buy"}):
		conf := confidenceUnsure
		if len(items) > 0 {
			conf = confidenceExplicit
		}
		return domain.ParsedRequest{Kind: domain.RequestKindQuote, LineItems: items, Confidence: conf}, nil
	case containsAny(text, orderWords) && len(items) > 0:
		return domain.ParsedRequest{Kind: domain.RequestKindOrder, LineItems: items, Confidence: confidenceExplicit}, nil
	case len(items) > 0 && !containsAny(text, inquiryWords):
		return domain.ParsedRequest{Kind: domain.RequestKindOrder, LineItems: items, Confidence: confidenceImplicit}, nil
	default:
		return domain.ParsedRequest{Kind: domain.RequestKindInquiry, LineItems: items, Confidence: confidenceUnsure}, nil
	}
}

// ExtractLineItems finds quantity/description pairs. Bulleted lines are read one
// item per line; free text is split on commas, semicolons and "and". Thousands
// separators are dropped first so "2,500" stays one quantity.
func ExtractLineItems(raw string) []domain.ParsedLineItem {
	raw = thousands.ReplaceAllStringFunc(raw, func(n string) string {
		return strings.ReplaceAll(n, ",", "")
	})

	var segments []string
	for _, l := range strings.Split(raw, "\n") {
		if bulletPrefix.MatchString(l) {
			segments = append(segments, bulletPrefix.ReplaceAllString(l, ""))
		}
	}
	if len(segments) == 0 {
		segments = separators.Split(raw, -1)
	}

	var items []domain.ParsedLineItem
	for _, seg := range segments {
		m := quantityLine.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		qty, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || qty <= 0 {
			continue
		}
		desc := trimDescription(m[2])
		if desc == "" {
			continue
		}
		items = append(items, domain.ParsedLineItem{Description: desc, Quantity: qty})
	}
	return items
}

func trimDescription(s string) string {
	words := strings.Fields(strings.ToLower(s))
	out := words[:0]
	for _, w := range words {
		if stopWords[w] {
			break
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
