package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/config"
	"github.com/rl1809/paper-fulfillment/internal/adapter/batch"
	"github.com/rl1809/paper-fulfillment/internal/adapter/storage"
	"github.com/rl1809/paper-fulfillment/internal/app"
	"github.com/rl1809/paper-fulfillment/internal/catalog"
	"github.com/rl1809/paper-fulfillment/internal/logger"
)

func main() {
	in := flag.String("in", "quote_requests_sample.csv", "request CSV")
	out := flag.String("out", "outcomes.csv", "outcome CSV")
	reports := flag.String("reports", "reports.json", "business report JSON")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger := logger.NewZapLogger(logger.FromEnv(cfg.Server.AppEnv, cfg.Logger.Level, cfg.Logger.Encoding,
		cfg.Logger.DisableCaller, cfg.Logger.DisableStacktrace))
	defer appLogger.Sync()

	if err := run(cfg, appLogger, *in, *out, *reports); err != nil {
		appLogger.Error("batch failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, in, out, reportsPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := catalog.Load(cfg.Pipeline.CatalogPath)
	if err != nil {
		return err
	}

	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("open requests: %w", err)
	}
	reqs, err := batch.ReadRequests(f, log)
	f.Close()
	if err != nil {
		return err
	}
	log.Info("loaded requests", zap.Int("count", len(reqs)), zap.String("file", in))

	store := storage.NewMemoryStore(nil)
	p := app.NewPipeline(cfg, items, app.Stores{History: store, Journal: store, Outcomes: store}, log)
	rows := batch.NewRunner(p.Coordinator, p.Inventory, p.Cash, cfg.Pipeline.Workers, log).Run(ctx, reqs)

	of, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create outcomes: %w", err)
	}
	defer of.Close()
	if err := batch.WriteOutcomes(of, rows); err != nil {
		return fmt.Errorf("write outcomes: %w", err)
	}

	rf, err := os.Create(reportsPath)
	if err != nil {
		return fmt.Errorf("create reports: %w", err)
	}
	defer rf.Close()
	if err := batch.WriteReports(rf, p.Analytics.Reports(), p.Analytics.Summary(), rows); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}

	summary := p.Analytics.Summary()
	log.Info("batch complete",
		zap.Int("requests", len(rows)),
		zap.Int("reports", len(p.Analytics.Reports())),
		zap.Int("recommendations", summary.Total),
		zap.String("initial_cash", p.Cash.Initial().StringFixed(2)),
		zap.String("final_cash", p.Cash.Balance().StringFixed(2)),
		zap.String("inventory_value", batch.InventoryValue(p.Inventory).StringFixed(2)),
		zap.String("outcomes", out),
		zap.String("report_file", reportsPath))
	return nil
}
