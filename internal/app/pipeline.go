package app

import (
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/config"
	"github.com/rl1809/paper-fulfillment/internal/adapter/classifier"
	"github.com/rl1809/paper-fulfillment/internal/adapter/notify"
	"github.com/rl1809/paper-fulfillment/internal/core/domain"
	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
	"github.com/rl1809/paper-fulfillment/internal/core/pricing"
	"github.com/rl1809/paper-fulfillment/internal/core/resolver"
	"github.com/rl1809/paper-fulfillment/internal/core/service"
	"github.com/rl1809/paper-fulfillment/internal/port"
)

// Stores are the optional outer collaborators of a pipeline.
type Stores struct {
	History   port.QuoteHistory
	Journal   port.TransactionJournal
	Outcomes  port.OutcomeStore
	Publisher port.OutcomePublisher
}

type Pipeline struct {
	Inventory   *ledger.InventoryLedger
	Cash        *ledger.CashLedger
	Analytics   *service.Aggregator
	Coordinator *service.Coordinator
}

// NewPipeline wires ledgers, engines and the coordinator from configuration.
func NewPipeline(cfg *config.Config, items []domain.InventoryItem, stores Stores, logger *zap.Logger) *Pipeline {
	inv := ledger.NewInventoryLedger(items)
	cash := ledger.NewCashLedger(cfg.Pipeline.InitialCash)
	analytics := service.NewAggregator(cfg.Pipeline.ReportCadence, inv, cash)

	coord := service.NewCoordinator(service.Deps{
		Inventory:    inv,
		Cash:         cash,
		Classifier:   classifier.NewKeywordClassifier(),
		History:      stores.History,
		Communicator: notify.NewLetterFormatter(cfg.Pipeline.Company),
		Journal:      stores.Journal,
		Outcomes:     stores.Outcomes,
		Publisher:    stores.Publisher,
		Resolver:     resolver.New(nil, cfg.Pipeline.ResolverThreshold),
		Quotes:       pricing.NewQuoteEngine(cfg.Pricing.QuoteConfig()),
		Negotiator:   pricing.NewNegotiationEngine(cfg.Negotiation.Policy()),
		Analytics:    analytics,
		Logger:       logger,
	}, cfg.Pipeline.CoordinatorConfig(cfg.Pricing.HistorySample))

	logger.Info("pipeline ready",
		zap.Int("items", len(items)),
		zap.String("initial_cash", cfg.Pipeline.InitialCash.StringFixed(2)),
		zap.Int("report_cadence", cfg.Pipeline.ReportCadence))

	return &Pipeline{Inventory: inv, Cash: cash, Analytics: analytics, Coordinator: coord}
}
