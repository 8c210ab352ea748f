package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
	"github.com/rl1809/paper-fulfillment/internal/core/pricing"
	"github.com/rl1809/paper-fulfillment/internal/core/resolver"
	"github.com/rl1809/paper-fulfillment/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrNotRefundable    = errors.New("only sales can be refunded")
)

type Config struct {
	// ClassifierThreshold is the confidence under which an order is handled as an inquiry.
	ClassifierThreshold float64
	HistoryLookback     time.Duration
	// HistoryBand widens the comparable quantity range to [q/band, q*band].
	HistoryBand   int
	HistorySample int
	// QuoteValidity is how long a quoted price holds after the request date.
	QuoteValidity time.Duration
}

func DefaultConfig() Config {
	return Config{
		ClassifierThreshold: 0.5,
		HistoryLookback:     90 * 24 * time.Hour,
		HistoryBand:         4,
		HistorySample:       5,
		QuoteValidity:       30 * 24 * time.Hour,
	}
}

// Stock is the part of the inventory ledger the coordinator drives.
type Stock interface {
	CheckAvailability(itemID string, quantity int) (bool, error)
	ReserveAll(lines []domain.StockLine) error
	RestockAll(lines []domain.StockLine) error
	Items() []domain.InventoryItem
}

// Cashbook is the part of the cash ledger the coordinator drives.
type Cashbook interface {
	Apply(entry domain.CashEntry) (domain.Transaction, error)
	Transaction(id string) (domain.Transaction, error)
}

// Deps are the collaborators of a Coordinator. Journal, Outcomes, Publisher and
// Analytics are optional.
type Deps struct {
	Inventory    Stock
	Cash         Cashbook
	Classifier   port.Classifier
	History      port.QuoteHistory
	Communicator port.Communicator
	Journal      port.TransactionJournal
	Outcomes     port.OutcomeStore
	Publisher    port.OutcomePublisher
	Resolver     *resolver.Resolver
	Quotes       *pricing.QuoteEngine
	Negotiator   *pricing.NegotiationEngine
	Analytics    *Aggregator
	Logger       *zap.Logger
	Now          func() time.Time
}

// Result is everything a closed request produced.
type Result struct {
	Outcome     domain.Outcome
	Message     string
	Report      *domain.BusinessReport
	Transaction *domain.Transaction
}

// Coordinator drives one request at a time through classification, resolution,
// quoting, negotiation, decision and commit. It is safe for concurrent use; the
// ledgers are the only shared state.
type Coordinator struct {
	Deps
	cfg Config
}

func NewCoordinator(d Deps, cfg Config) *Coordinator {
	if d.Inventory == nil || d.Cash == nil || d.Classifier == nil {
		panic("service: coordinator needs inventory, cash and classifier")
	}
	def := DefaultConfig()
	if cfg.HistoryLookback <= 0 {
		cfg.HistoryLookback = def.HistoryLookback
	}
	if cfg.HistoryBand <= 1 {
		cfg.HistoryBand = def.HistoryBand
	}
	if cfg.HistorySample <= 0 {
		cfg.HistorySample = def.HistorySample
	}
	if cfg.QuoteValidity <= 0 {
		cfg.QuoteValidity = def.QuoteValidity
	}
	if d.Resolver == nil {
		d.Resolver = resolver.New(nil, resolver.DefaultThreshold)
	}
	if d.Quotes == nil {
		d.Quotes = pricing.NewQuoteEngine(pricing.DefaultQuoteConfig())
	}
	if d.Negotiator == nil {
		d.Negotiator = pricing.NewNegotiationEngine(pricing.DefaultPolicy())
	}
	if d.Communicator == nil {
		d.Communicator = plainCommunicator{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{Deps: d, cfg: cfg}
}

// Process runs req to a closed outcome. Rejections are outcomes, not errors; an
// error means the request could not be processed at all and nothing was committed.
func (c *Coordinator) Process(ctx context.Context, req domain.CustomerRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	log := c.Logger.With(zap.String("request_id", req.ID))

	parsed, err := c.Classifier.Classify(ctx, req.RawText)
	if err != nil {
		return Result{}, fmt.Errorf("classify request %s: %w", req.ID, err)
	}

	out, tx, err := c.decide(ctx, req, parsed, log)
	if err != nil {
		return Result{}, err
	}
	return c.close(ctx, out, tx, log), nil
}

func (c *Coordinator) decide(ctx context.Context, req domain.CustomerRequest, parsed domain.ParsedRequest, log *zap.Logger) (domain.Outcome, *domain.Transaction, error) {
	out := domain.Outcome{
		RequestID:    req.ID,
		CustomerName: req.CustomerName,
		Kind:         parsed.Kind,
		Subtotal:     zero,
		DiscountRate: zero,
		FinalTotal:   zero,
	}

	if parsed.Kind != domain.RequestKindInquiry &&
		(parsed.Confidence < c.cfg.ClassifierThreshold || len(parsed.LineItems) == 0) {
		log.Info("ambiguous classification, answering as inquiry",
			zap.String("kind", string(parsed.Kind)), zap.Float64("confidence", parsed.Confidence))
		out.Kind = domain.RequestKindInquiry
		out.Reasons = []domain.Reason{{
			Code:   domain.ReasonClassificationAmbiguous,
			Detail: fmt.Sprintf("classified %s with confidence %.2f", parsed.Kind, parsed.Confidence),
		}}
	}
	if out.Kind == domain.RequestKindInquiry {
		out.Status = domain.StatusAnswered
		return out, nil, nil
	}

	inputs, unresolved := c.resolve(parsed.LineItems)
	if len(unresolved) > 0 {
		log.Info("request needs manual review", zap.Int("unresolved", len(unresolved)))
		out.Status = domain.StatusManualReview
		out.Reasons = unresolved
		return out, nil, nil
	}

	if short := c.shortages(inputs); len(short) > 0 {
		return reject(out, short...), nil, nil
	}

	history := c.lookupHistory(ctx, req, inputs, log)
	quote, err := c.Quotes.Quote(inputs, history)
	if err != nil {
		return out, nil, fmt.Errorf("quote request %s: %w", req.ID, err)
	}
	out.Lines = outcomeLines(quote)

	nq, err := c.Negotiator.Negotiate(quote, domain.NewNegotiationContext(req.Context, quote))
	if errors.Is(err, pricing.ErrProfitabilityFloor) {
		return reject(out, domain.Reason{Code: domain.ReasonProfitabilityFloor, Detail: "price cannot cover cost"}), nil, nil
	}
	if err != nil {
		return out, nil, fmt.Errorf("negotiate request %s: %w", req.ID, err)
	}
	out.Subtotal = nq.Subtotal
	out.DiscountRate = nq.DiscountRate
	out.FinalTotal = nq.FinalTotal
	out.FloorClamped = nq.FloorClamped
	out.EstimatedDelivery, out.ValidUntil = c.schedule(req, quote)

	if parsed.Kind == domain.RequestKindQuote {
		out.Status = domain.StatusQuoted
		return out, nil, nil
	}

	// Time has passed since the first check; look again before deciding.
	if short := c.shortages(inputs); len(short) > 0 {
		return reject(out, short...), nil, nil
	}
	if nq.FinalTotal.LessThan(nq.Cost()) {
		return reject(out, domain.Reason{Code: domain.ReasonProfitabilityFloor, Detail: "discounted total below cost"}), nil, nil
	}

	// Last point at which cancellation is honoured.
	if err := ctx.Err(); err != nil {
		return out, nil, err
	}

	tx, reasons := c.commit(req, nq, inputs, log)
	if len(reasons) > 0 {
		return reject(out, reasons...), nil, nil
	}
	out.Status = domain.StatusFulfilled
	out.TransactionID = tx.ID
	return out, &tx, nil
}

// commit is the only code path that creates a SALE transaction. Inventory is
// decremented for all lines or none; a failed cash credit gives the stock back.
func (c *Coordinator) commit(req domain.CustomerRequest, nq domain.NegotiatedQuote, inputs []pricing.QuoteInput, log *zap.Logger) (domain.Transaction, []domain.Reason) {
	lines := nq.StockLines()

	if err := c.Inventory.ReserveAll(lines); err != nil {
		if !errors.Is(err, ledger.ErrInsufficientStock) {
			log.Error("inventory commit failed", zap.Error(err))
			return domain.Transaction{}, []domain.Reason{{Code: domain.ReasonInternal, Detail: "inventory commit failed"}}
		}
		log.Info("commit race lost, re-checking availability", zap.Error(err))
		if short := c.shortages(inputs); len(short) > 0 {
			return domain.Transaction{}, short
		}
		if err := c.Inventory.ReserveAll(lines); err != nil {
			log.Warn("commit retry failed", zap.Error(err))
			return domain.Transaction{}, []domain.Reason{raceReason(err, inputs)}
		}
	}

	txLines := make([]domain.TransactionLine, 0, len(nq.Lines))
	for _, l := range nq.Lines {
		txLines = append(txLines, domain.TransactionLine{ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	tx, err := c.Cash.Apply(domain.CashEntry{
		RequestID: req.ID,
		Type:      domain.TransactionSale,
		Amount:    nq.FinalTotal,
		Lines:     txLines,
		At:        c.Now(),
	})
	if err != nil {
		if rerr := c.Inventory.RestockAll(lines); rerr != nil {
			panic(fmt.Sprintf("service: restock after failed cash apply for %s: %v", req.ID, rerr))
		}
		log.Warn("cash apply failed, inventory restored", zap.Error(err))
		code := domain.ReasonInternal
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			code = domain.ReasonInsufficientFunds
		}
		return domain.Transaction{}, []domain.Reason{{Code: code}}
	}

	log.Info("order committed",
		zap.String("transaction_id", tx.ID),
		zap.String("amount", tx.Amount.StringFixed(2)),
		zap.String("balance", tx.ResultingBalance.StringFixed(2)))
	return tx, nil
}

func (c *Coordinator) close(ctx context.Context, out domain.Outcome, tx *domain.Transaction, log *zap.Logger) Result {
	out.ClosedAt = c.Now()
	// The commit already happened; persistence must not be cut short by the caller.
	ctx = context.WithoutCancel(ctx)

	if tx != nil && c.Journal != nil {
		if err := c.Journal.SaveTransaction(ctx, *tx); err != nil {
			log.Error("failed to journal transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
	}

	msg := c.Communicator.Format(out)

	var report *domain.BusinessReport
	if c.Analytics != nil {
		report = c.Analytics.Observe(out)
	}

	if c.Outcomes != nil {
		if err := c.Outcomes.SaveOutcome(ctx, out); err != nil {
			log.Error("failed to save outcome", zap.Error(err))
		}
		if report != nil {
			if err := c.Outcomes.SaveReport(ctx, *report); err != nil {
				log.Error("failed to save report", zap.Int("sequence", report.Sequence), zap.Error(err))
			}
		}
	}

	if c.Publisher != nil {
		if err := c.Publisher.PublishOutcome(ctx, out, msg); err != nil {
			log.Warn("failed to publish outcome", zap.Error(err))
		}
		if report != nil {
			if err := c.Publisher.PublishReport(ctx, *report); err != nil {
				log.Warn("failed to publish report", zap.Int("sequence", report.Sequence), zap.Error(err))
			}
		}
	}

	log.Info("request closed",
		zap.String("status", string(out.Status)),
		zap.String("reason", string(out.PrimaryReason())),
		zap.String("final_total", out.FinalTotal.StringFixed(2)))
	return Result{Outcome: out, Message: msg, Report: report, Transaction: tx}
}

func (c *Coordinator) resolve(items []domain.ParsedLineItem) ([]pricing.QuoteInput, []domain.Reason) {
	catalog := c.Inventory.Items()
	byID := make(map[string]domain.InventoryItem, len(catalog))
	for _, it := range catalog {
		byID[it.ID] = it
	}

	var inputs []pricing.QuoteInput
	var unresolved []domain.Reason
	for _, li := range items {
		r, err := c.Resolver.Resolve(li, catalog)
		if err != nil {
			unresolved = append(unresolved, domain.Reason{
				Code:     domain.ReasonNoConfidentMatch,
				Item:     li.Description,
				Quantity: li.Quantity,
			})
			continue
		}
		inputs = append(inputs, pricing.QuoteInput{Line: r, Item: byID[r.ItemID]})
	}
	return inputs, unresolved
}

// shortages checks every item against its total requested quantity.
func (c *Coordinator) shortages(inputs []pricing.QuoteInput) []domain.Reason {
	need := make(map[string]int)
	names := make(map[string]string)
	for _, in := range inputs {
		need[in.Item.ID] += in.Line.Quantity
		names[in.Item.ID] = in.Item.Name
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var short []domain.Reason
	for _, id := range ids {
		ok, err := c.Inventory.CheckAvailability(id, need[id])
		if err != nil || !ok {
			short = append(short, domain.Reason{
				Code:     domain.ReasonInsufficientStock,
				Item:     names[id],
				Quantity: need[id],
			})
		}
	}
	return short
}

// lookupHistory runs outside every ledger lock. A failing lookup degrades to
// catalog-only pricing.
func (c *Coordinator) lookupHistory(ctx context.Context, req domain.CustomerRequest, inputs []pricing.QuoteInput, log *zap.Logger) map[string][]domain.HistoricalSale {
	if c.History == nil {
		return nil
	}
	at := req.RequestedAt
	if at.IsZero() {
		at = c.Now()
	}

	out := make(map[string][]domain.HistoricalSale, len(inputs))
	for _, in := range inputs {
		if _, done := out[in.Item.ID]; done {
			continue
		}
		qty := in.Line.Quantity
		sales, err := c.History.Search(ctx, in.Item.ID, domain.HistoryWindow{
			Since:       at.Add(-c.cfg.HistoryLookback),
			Until:       at,
			MinQuantity: qty / c.cfg.HistoryBand,
			MaxQuantity: qty * c.cfg.HistoryBand,
			Limit:       c.cfg.HistorySample,
		})
		if err != nil {
			log.Warn("history lookup failed, pricing from catalog", zap.String("item_id", in.Item.ID), zap.Error(err))
			sales = nil
		}
		out[in.Item.ID] = sales
	}
	return out
}

// schedule dates a priced request from its request day: delivery after the
// longest supplier lead time, price validity after QuoteValidity.
func (c *Coordinator) schedule(req domain.CustomerRequest, q domain.Quote) (delivery, validUntil time.Time) {
	at := req.RequestedAt
	if at.IsZero() {
		at = c.Now()
	}
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, q.LeadTimeDays), day.Add(c.cfg.QuoteValidity)
}

func reject(out domain.Outcome, reasons ...domain.Reason) domain.Outcome {
	out.Status = domain.StatusRejected
	out.Reasons = reasons
	out.FinalTotal = zero
	out.DiscountRate = zero
	out.EstimatedDelivery = time.Time{}
	out.ValidUntil = time.Time{}
	return out
}

func raceReason(err error, inputs []pricing.QuoteInput) domain.Reason {
	r := domain.Reason{Code: domain.ReasonCommitRaceLost}
	var se *ledger.StockError
	if errors.As(err, &se) {
		r.Quantity = se.Requested
		for _, in := range inputs {
			if in.Item.ID == se.ItemID {
				r.Item = in.Item.Name
				break
			}
		}
	}
	return r
}

func outcomeLines(q domain.Quote) []domain.OutcomeLine {
	lines := make([]domain.OutcomeLine, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, domain.OutcomeLine{
			ItemID:    l.ItemID,
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return lines
}
