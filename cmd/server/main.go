package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/paper-fulfillment/config"
	"github.com/rl1809/paper-fulfillment/internal/adapter/handler"
	"github.com/rl1809/paper-fulfillment/internal/adapter/messaging"
	"github.com/rl1809/paper-fulfillment/internal/adapter/storage"
	"github.com/rl1809/paper-fulfillment/internal/app"
	"github.com/rl1809/paper-fulfillment/internal/catalog"
	"github.com/rl1809/paper-fulfillment/internal/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger := logger.NewZapLogger(logger.FromEnv(cfg.Server.AppEnv, cfg.Logger.Level, cfg.Logger.Encoding,
		cfg.Logger.DisableCaller, cfg.Logger.DisableStacktrace))
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items, err := catalog.Load(cfg.Pipeline.CatalogPath)
	if err != nil {
		appLogger.Fatal("failed to load catalog", zap.Error(err))
	}

	// Initialize MySQL
	db, err := sqlx.Connect("mysql", cfg.MySQL.DSN)
	if err != nil {
		appLogger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.MySQL.ConnMaxLifetime) * time.Second)

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		appLogger.Fatal("failed to migrate mysql", zap.Error(err))
	}
	appLogger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("failed to connect redis", zap.Error(err))
	}
	appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	stores := app.Stores{History: mysqlAdapter, Journal: mysqlAdapter, Outcomes: mysqlAdapter}

	// RabbitMQ is optional; outcomes are still stored without it.
	var publisher *messaging.RabbitPublisher
	if cfg.RabbitMQ.Enabled {
		publisher, err = messaging.NewRabbitPublisher(messaging.RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
		}, appLogger)
		if err != nil {
			appLogger.Warn("publishing disabled", zap.Error(err))
		} else {
			stores.Publisher = publisher
		}
	}

	pipeline := app.NewPipeline(cfg, items, stores, appLogger)
	intake := handler.NewIntake(pipeline.Coordinator, storage.NewRedisAdapter(rdb), appLogger)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterFulfillmentServer(grpcServer, handler.NewGRPCHandler(intake))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(handler.FulfillmentServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	grpcPort := cfg.Server.GRPCPort
	if !strings.HasPrefix(grpcPort, ":") {
		grpcPort = ":" + grpcPort
	}
	lis, err := net.Listen("tcp", grpcPort)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		appLogger.Info("gRPC server listening", zap.String("port", grpcPort))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPPort,
		Handler: handler.NewHTTPHandler(intake, appLogger).Router(),
	}

	go func() {
		appLogger.Info("HTTP server listening", zap.String("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	appLogger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	appLogger.Info("gRPC server stopped")

	appLogger.Info("final position",
		zap.String("cash_balance", pipeline.Cash.Balance().StringFixed(2)),
		zap.Int("closed_requests", pipeline.Analytics.Closed()))

	if publisher != nil {
		publisher.Close()
	}
	rdb.Close()
	db.Close()
	appLogger.Info("connections closed")
}
