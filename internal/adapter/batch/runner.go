package batch

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
	"github.com/rl1809/paper-fulfillment/internal/core/service"
)

type Processor interface {
	Process(ctx context.Context, req domain.CustomerRequest) (service.Result, error)
}

// Row is one processed request with the financial position right after it closed.
type Row struct {
	Request        domain.CustomerRequest
	Result         service.Result
	Err            error
	CashBalance    decimal.Decimal
	InventoryValue decimal.Decimal
}

func (r Row) TotalAssets() decimal.Decimal {
	return r.CashBalance.Add(r.InventoryValue)
}

// Runner feeds requests to a bounded pool of workers. Rows come back in input
// order whatever the pool size; with one worker the processing order is the
// input order too.
type Runner struct {
	proc    Processor
	inv     *ledger.InventoryLedger
	cash    *ledger.CashLedger
	workers int
	logger  *zap.Logger
}

func NewRunner(proc Processor, inv *ledger.InventoryLedger, cash *ledger.CashLedger, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{proc: proc, inv: inv, cash: cash, workers: workers, logger: logger}
}

func (r *Runner) Run(ctx context.Context, reqs []domain.CustomerRequest) []Row {
	rows := make([]Row, len(reqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range jobs {
				rows[i] = r.process(ctx, id, reqs[i])
			}
		}(w)
	}

	for i := range reqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(reqs); j++ {
				rows[j] = Row{Request: reqs[j], Err: ctx.Err(), CashBalance: r.cash.Balance(), InventoryValue: InventoryValue(r.inv)}
			}
			close(jobs)
			wg.Wait()
			return rows
		}
	}
	close(jobs)
	wg.Wait()
	return rows
}

func (r *Runner) process(ctx context.Context, worker int, req domain.CustomerRequest) Row {
	res, err := r.proc.Process(ctx, req)
	if err != nil {
		r.logger.Error("request failed", zap.Int("worker", worker), zap.String("request_id", req.ID), zap.Error(err))
	}
	return Row{
		Request:        req,
		Result:         res,
		Err:            err,
		CashBalance:    r.cash.Balance(),
		InventoryValue: InventoryValue(r.inv),
	}
}

// InventoryValue is stock valued at unit cost.
func InventoryValue(inv *ledger.InventoryLedger) decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items() {
		total = total.Add(it.UnitCost.Mul(decimal.NewFromInt(int64(it.Stock))))
	}
	return total
}
