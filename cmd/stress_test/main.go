package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/config"
	"github.com/rl1809/paper-fulfillment/internal/app"
	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const (
	itemID        = "glossy-paper"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	cfg := config.LoadEnv()
	cfg.Pipeline.InitialCash = decimal.Zero

	items := []domain.InventoryItem{{
		ID: itemID, Name: "Glossy paper", UnitCost: decimal.RequireFromString("0.20"),
		Stock: initialStock, ReorderThreshold: 5, LeadTimeDays: 5,
	}}
	p := app.NewPipeline(cfg, items, app.Stores{}, zap.NewNop())

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			res, err := p.Coordinator.Process(ctx, domain.CustomerRequest{
				ID:      fmt.Sprintf("stress-%d", n),
				RawText: "Please place an order for 1 sheet of glossy paper",
			})
			switch {
			case err != nil:
				errorCount.Add(1)
			case res.Outcome.Status == domain.StatusFulfilled:
				successCount.Add(1)
			default:
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", fail)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	item, ok := p.Inventory.Item(itemID)
	if !ok {
		log.Fatalf("item %s missing", itemID)
	}
	fmt.Printf("Final Stock:      %d\n", item.Stock)
	if item.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", item.Stock)
	}

	// Every sale must be backed by exactly the cash it brought in.
	revenue := decimal.Zero
	for _, tx := range p.Cash.Transactions() {
		revenue = revenue.Add(tx.Amount)
	}
	if revenue.Equal(p.Cash.Balance()) && len(p.Cash.Transactions()) == int(success) {
		fmt.Printf("PASS: Cash %s matches %d sales\n", p.Cash.Balance().StringFixed(2), success)
	} else {
		fmt.Printf("FAIL: Cash %s, revenue %s over %d transactions\n",
			p.Cash.Balance().StringFixed(2), revenue.StringFixed(2), len(p.Cash.Transactions()))
	}
}
