package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var requestDay = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func testCatalog() []domain.InventoryItem {
	return []domain.InventoryItem{
		{ID: "glossy", Name: "Glossy paper", UnitCost: d("0.10"), Stock: 100, ReorderThreshold: 20, LeadTimeDays: 3},
		{ID: "cardstock", Name: "Cardstock", UnitCost: d("0.15"), Stock: 10, ReorderThreshold: 50, LeadTimeDays: 7},
	}
}

func order(items ...domain.ParsedLineItem) domain.ParsedRequest {
	return domain.ParsedRequest{Kind: domain.RequestKindOrder, LineItems: items, Confidence: 0.9}
}

func line(desc string, qty int) domain.ParsedLineItem {
	return domain.ParsedLineItem{Description: desc, Quantity: qty}
}

type fixture struct {
	coord *Coordinator
	inv   *ledger.InventoryLedger
	cash  *ledger.CashLedger
	cls   *mockClassifier
	hist  *mockHistory
	sink  *mockSink
}

func newFixture(t *testing.T, cash string) *fixture {
	t.Helper()
	f := &fixture{
		inv:  ledger.NewInventoryLedger(testCatalog()),
		cash: ledger.NewCashLedger(d(cash)),
		cls:  &mockClassifier{parses: map[string]domain.ParsedRequest{}},
		hist: &mockHistory{},
		sink: &mockSink{},
	}
	f.rewire(t, f.inv, f.cash)
	return f
}

// rewire rebuilds the coordinator over the given ledger views.
func (f *fixture) rewire(t *testing.T, inv Stock, cash Cashbook) {
	t.Helper()
	f.coord = NewCoordinator(Deps{
		Inventory:  inv,
		Cash:       cash,
		Classifier: f.cls,
		History:    f.hist,
		Journal:    f.sink,
		Outcomes:   f.sink,
		Publisher:  f.sink,
		Analytics:  NewAggregator(5, f.inv, f.cash),
		Logger:     zaptest.NewLogger(t),
		Now:        func() time.Time { return requestDay },
	}, DefaultConfig())
}

func (f *fixture) submit(t *testing.T, id, raw string, parsed domain.ParsedRequest, cc domain.CustomerContext) Result {
	t.Helper()
	f.cls.parses[raw] = parsed
	res, err := f.coord.Process(context.Background(), domain.CustomerRequest{
		ID: id, CustomerName: "Customer " + id, RawText: raw, Context: cc, RequestedAt: requestDay,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) stock(id string) int {
	it, _ := f.inv.Item(id)
	return it.Stock
}

func TestProcess_SchoolOrderFulfilled(t *testing.T) {
	f := newFixture(t, "0")

	res := f.submit(t, "r1", "50 sheets of glossy paper", order(line("glossy paper", 50)), domain.CustomerContext{JobType: "school"})

	out := res.Outcome
	assert.Equal(t, domain.StatusFulfilled, out.Status)
	assert.True(t, out.Subtotal.Equal(d("7.00")), "subtotal %s", out.Subtotal)
	assert.True(t, out.DiscountRate.Equal(d("0.10")))
	assert.True(t, out.FinalTotal.Equal(d("6.30")), "final %s", out.FinalTotal)
	assert.NotEmpty(t, out.TransactionID)
	assert.Equal(t, 50, f.stock("glossy"))
	assert.True(t, f.cash.Balance().Equal(d("6.30")))

	assert.Equal(t, time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC), out.EstimatedDelivery)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), out.ValidUntil)

	require.NotNil(t, res.Transaction)
	assert.Equal(t, domain.TransactionSale, res.Transaction.Type)
	assert.True(t, res.Transaction.ResultingBalance.Equal(d("6.30")))
	require.Len(t, f.sink.txs, 1)
	assert.Equal(t, out.TransactionID, f.sink.txs[0].ID)
	require.Len(t, f.sink.outcomes, 1)
	assert.Contains(t, res.Message, "fulfilled")
}

func TestProcess_InsufficientStockLeavesLedgersUntouched(t *testing.T) {
	f := newFixture(t, "0")

	res := f.submit(t, "r1", "150 glossy", order(line("glossy paper", 150)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusRejected, res.Outcome.Status)
	assert.Equal(t, domain.ReasonInsufficientStock, res.Outcome.PrimaryReason())
	assert.Equal(t, "Glossy paper", res.Outcome.Reasons[0].Item)
	assert.Equal(t, 150, res.Outcome.Reasons[0].Quantity)
	assert.True(t, res.Outcome.FinalTotal.IsZero())
	assert.True(t, res.Outcome.EstimatedDelivery.IsZero())
	assert.Equal(t, 100, f.stock("glossy"))
	assert.True(t, f.cash.Balance().IsZero())
	assert.Empty(t, f.cash.Transactions())
	assert.Empty(t, f.sink.txs)
}

func TestProcess_RepeatedLinesAreAggregated(t *testing.T) {
	f := newFixture(t, "0")

	res := f.submit(t, "r1", "two batches", order(line("glossy paper", 60), line("glossy paper", 60)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusRejected, res.Outcome.Status)
	assert.Equal(t, domain.ReasonInsufficientStock, res.Outcome.PrimaryReason())
	assert.Equal(t, 120, res.Outcome.Reasons[0].Quantity)
	assert.Equal(t, 100, f.stock("glossy"))
}

func TestProcess_MultiLineAllOrNothing(t *testing.T) {
	f := newFixture(t, "0")

	res := f.submit(t, "r1", "glossy and cardstock", order(line("glossy paper", 10), line("cardstock", 11)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusRejected, res.Outcome.Status)
	assert.Equal(t, 100, f.stock("glossy"))
	assert.Equal(t, 10, f.stock("cardstock"))
}

func TestProcess_ConcurrentSixtiesOnlyOneWins(t *testing.T) {
	f := newFixture(t, "0")
	f.cls.parses["60 glossy"] = order(line("glossy paper", 60))

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.coord.Process(context.Background(), domain.CustomerRequest{
				ID: fmt.Sprintf("r%d", i), RawText: "60 glossy", RequestedAt: requestDay,
			})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	fulfilled := 0
	for _, r := range results {
		switch r.Outcome.Status {
		case domain.StatusFulfilled:
			fulfilled++
		case domain.StatusRejected:
			assert.Contains(t, []domain.ReasonCode{domain.ReasonInsufficientStock, domain.ReasonCommitRaceLost}, r.Outcome.PrimaryReason())
		default:
			t.Errorf("unexpected status %s", r.Outcome.Status)
		}
	}
	assert.Equal(t, 1, fulfilled)
	assert.Equal(t, 40, f.stock("glossy"))
	assert.Len(t, f.cash.Transactions(), 1)
}

func TestProcess_UnresolvedLineGoesToManualReview(t *testing.T) {
	f := newFixture(t, "0")

	res := f.submit(t, "r1", "unicorn vellum", order(line("glossy paper", 5), line("unicorn vellum", 5)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusManualReview, res.Outcome.Status)
	require.Len(t, res.Outcome.Reasons, 1)
	assert.Equal(t, domain.ReasonNoConfidentMatch, res.Outcome.Reasons[0].Code)
	assert.Equal(t, "unicorn vellum", res.Outcome.Reasons[0].Item)
	assert.Equal(t, 100, f.stock("glossy"))
	assert.Empty(t, f.cash.Transactions())
}

func TestProcess_LowConfidenceIsAnsweredAsInquiry(t *testing.T) {
	f := newFixture(t, "0")
	parsed := order(line("glossy paper", 5))
	parsed.Confidence = 0.3

	res := f.submit(t, "r1", "maybe some paper?", parsed, domain.CustomerContext{})

	assert.Equal(t, domain.RequestKindInquiry, res.Outcome.Kind)
	assert.Equal(t, domain.StatusAnswered, res.Outcome.Status)
	assert.Equal(t, domain.ReasonClassificationAmbiguous, res.Outcome.PrimaryReason())
	assert.Equal(t, 100, f.stock("glossy"))
}

func TestProcess_QuoteDoesNotCommit(t *testing.T) {
	f := newFixture(t, "0")
	parsed := order(line("glossy paper", 50))
	parsed.Kind = domain.RequestKindQuote

	res := f.submit(t, "r1", "how much for 50 glossy", parsed, domain.CustomerContext{JobType: "school"})

	assert.Equal(t, domain.StatusQuoted, res.Outcome.Status)
	assert.True(t, res.Outcome.FinalTotal.Equal(d("6.30")))
	assert.Empty(t, res.Outcome.TransactionID)
	assert.Nil(t, res.Transaction)
	assert.Equal(t, time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC), res.Outcome.EstimatedDelivery)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), res.Outcome.ValidUntil)
	assert.Equal(t, 100, f.stock("glossy"))
	assert.True(t, f.cash.Balance().IsZero())
}

func TestProcess_DeliveryFollowsSlowestLine(t *testing.T) {
	f := newFixture(t, "0")
	parsed := order(line("glossy paper", 10), line("cardstock", 2))
	parsed.Kind = domain.RequestKindQuote

	res := f.submit(t, "r1", "quote glossy and cardstock", parsed, domain.CustomerContext{})

	assert.Equal(t, domain.StatusQuoted, res.Outcome.Status)
	assert.Equal(t, time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), res.Outcome.EstimatedDelivery)
}

func TestProcess_HistoryBlendsIntoPrice(t *testing.T) {
	f := newFixture(t, "0")
	f.hist.sales = []domain.HistoricalSale{
		{ID: "h1", ItemID: "glossy", UnitPrice: d("0.20"), Quantity: 40, Timestamp: requestDay.AddDate(0, 0, -3)},
		// outside the quantity band
		{ID: "h2", ItemID: "glossy", UnitPrice: d("9.00"), Quantity: 5000, Timestamp: requestDay.AddDate(0, 0, -2)},
		// outside the lookback
		{ID: "h3", ItemID: "glossy", UnitPrice: d("9.00"), Quantity: 50, Timestamp: requestDay.AddDate(-1, 0, 0)},
	}

	res := f.submit(t, "r1", "50 glossy", order(line("glossy paper", 50)), domain.CustomerContext{})

	// 0.7*0.14 + 0.3*0.20
	require.Len(t, res.Outcome.Lines, 1)
	assert.True(t, res.Outcome.Lines[0].UnitPrice.Equal(d("0.158")), "unit price %s", res.Outcome.Lines[0].UnitPrice)
	assert.True(t, res.Outcome.FinalTotal.Equal(d("7.90")))
}

func TestProcess_HistoryFailureFallsBackToCatalog(t *testing.T) {
	f := newFixture(t, "0")
	f.hist.err = errors.New("history store down")

	res := f.submit(t, "r1", "50 glossy", order(line("glossy paper", 50)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusFulfilled, res.Outcome.Status)
	assert.True(t, res.Outcome.FinalTotal.Equal(d("7.00")))
}

func TestProcess_BelowCostIsRejected(t *testing.T) {
	f := newFixture(t, "0")
	f.hist.sales = []domain.HistoricalSale{
		{ID: "h1", ItemID: "glossy", UnitPrice: d("0.001"), Quantity: 50, Timestamp: requestDay.AddDate(0, 0, -1)},
	}

	res := f.submit(t, "r1", "50 glossy", order(line("glossy paper", 50)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusRejected, res.Outcome.Status)
	assert.Equal(t, domain.ReasonProfitabilityFloor, res.Outcome.PrimaryReason())
	assert.Equal(t, 100, f.stock("glossy"))
	assert.True(t, f.cash.Balance().IsZero())
}

func TestProcess_ClassifierErrorCommitsNothing(t *testing.T) {
	f := newFixture(t, "0")
	f.cls.err = errors.New("oracle timeout")

	_, err := f.coord.Process(context.Background(), domain.CustomerRequest{ID: "r1", RawText: "x"})
	require.Error(t, err)
	assert.Equal(t, 0, f.coord.Analytics.Closed())
	assert.Equal(t, 100, f.stock("glossy"))
}

func TestProcess_CancelledContext(t *testing.T) {
	f := newFixture(t, "0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coord.Process(ctx, domain.CustomerRequest{ID: "r1", RawText: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_JournalFailureKeepsCommit(t *testing.T) {
	f := newFixture(t, "0")
	f.sink.failSave = true

	res := f.submit(t, "r1", "10 glossy", order(line("glossy paper", 10)), domain.CustomerContext{})

	assert.Equal(t, domain.StatusFulfilled, res.Outcome.Status)
	assert.Equal(t, 90, f.stock("glossy"))
	assert.Len(t, f.cash.Transactions(), 1)
}

func TestRefund_RestoresStockAndCash(t *testing.T) {
	f := newFixture(t, "0")
	res := f.submit(t, "r1", "50 glossy", order(line("glossy paper", 50)), domain.CustomerContext{JobType: "school"})
	require.Equal(t, domain.StatusFulfilled, res.Outcome.Status)

	refund, err := f.coord.Refund(context.Background(), res.Outcome.TransactionID, " damaged in transit ")
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionRefund, refund.Type)
	assert.Equal(t, "damaged in transit", refund.Reason)
	assert.Equal(t, res.Outcome.TransactionID, refund.RefundOf)
	assert.True(t, refund.Amount.Equal(d("-6.30")))
	assert.True(t, f.cash.Balance().IsZero())
	assert.Equal(t, 100, f.stock("glossy"))

	_, err = f.coord.Refund(context.Background(), res.Outcome.TransactionID, "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyRefunded)
	assert.Equal(t, 100, f.stock("glossy"))
	assert.Len(t, f.sink.txs, 2)
}

func TestRefund_RejectsRefundsAndUnknownIDs(t *testing.T) {
	f := newFixture(t, "0")
	res := f.submit(t, "r1", "10 glossy", order(line("glossy paper", 10)), domain.CustomerContext{})
	refund, err := f.coord.Refund(context.Background(), res.Outcome.TransactionID, "")
	require.NoError(t, err)

	_, err = f.coord.Refund(context.Background(), refund.ID, "")
	assert.ErrorIs(t, err, ErrNotRefundable)

	_, err = f.coord.Refund(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ledger.ErrUnknownTx)
}

func TestProcess_ConcurrentLoadConservesStockAndCash(t *testing.T) {
	f := newFixture(t, "100")
	f.coord.Analytics = nil
	rng := rand.New(rand.NewSource(7))
	quantities := make([]int, 200)
	for i := range quantities {
		quantities[i] = rng.Intn(9) + 1
		f.cls.parses[fmt.Sprintf("order %d", i)] = order(line("glossy paper", quantities[i]))
	}

	var wg sync.WaitGroup
	for i := range quantities {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.coord.Process(context.Background(), domain.CustomerRequest{
				ID: fmt.Sprintf("r%d", i), RawText: fmt.Sprintf("order %d", i), RequestedAt: requestDay,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sold := 0
	revenue := decimal.Zero
	for _, tx := range f.cash.Transactions() {
		for _, l := range tx.Lines {
			sold += l.Quantity
		}
		revenue = revenue.Add(tx.Amount)
	}
	assert.Equal(t, 100, f.stock("glossy")+sold)
	assert.GreaterOrEqual(t, f.stock("glossy"), 0)
	assert.True(t, f.cash.Balance().Equal(d("100").Add(revenue)))
}

func TestProcess_ReportsEveryFifthClosedRequest(t *testing.T) {
	f := newFixture(t, "0")
	var reports []*domain.BusinessReport
	for i := 1; i <= 12; i++ {
		res := f.submit(t, fmt.Sprintf("r%02d", i), "1 glossy", order(line("glossy paper", 1)), domain.CustomerContext{})
		if res.Report != nil {
			reports = append(reports, res.Report)
		}
	}

	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Sequence)
	assert.Equal(t, "r01", reports[0].WindowStartID)
	assert.Equal(t, "r05", reports[0].WindowEndID)
	assert.Equal(t, "r10", reports[1].WindowEndID)
	assert.Equal(t, 12, f.coord.Analytics.Closed())
	assert.Len(t, f.sink.reports, 2)
	assert.Len(t, f.sink.stored, 2)
	assert.Len(t, f.sink.saved, 12)
}
