package main

import (
	"context"
	"github.com/ariefcatur/go-farm-orders/internal/clock"
	"github.com/ariefcatur/go-farm-orders/internal/config"
	"github.com/ariefcatur/go-farm-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-farm-orders/internal/kafka"
	"github.com/ariefcatur/go-farm-orders/internal/lifecycle"
	"github.com/ariefcatur/go-farm-orders/internal/logging"
	"github.com/ariefcatur/go-farm-orders/internal/notify"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/ariefcatur/go-farm-orders/internal/postgres"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"os/signal"
	"syscall"
)

// The standalone sweeper. Several replicas may run; the Redis lease keeps
// them from scanning at the same moment.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.ServiceName+"-sweeper", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for auto-confirm notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, 1024, logger)
	prod.Start(ctx)

	store := &orders.Repo{DB: db}
	clk := clock.System{}
	svc := &lifecycle.Service{
		Store:    store,
		Ledger:   &inventory.Ledger{Store: store, Log: logger},
		Machine:  orders.Machine{AutoConfirmAfter: cfg.AutoConfirmAfter},
		Notifier: &notify.Kafka{Publisher: prod, Service: cfg.ServiceName + "-sweeper", Clock: clk, Log: logger},
		Clock:    clk,
		Log:      logger,
	}
	sweeper := &lifecycle.Sweeper{
		Lifecycle: svc,
		Batch:     cfg.SweepBatch,
		Lease: &redisx.Lease{
			Redis: rdb,
			Key:   redisx.KeySweeperLease,
			Token: uuid.NewString(),
			TTL:   2 * cfg.SweepInterval,
		},
		Log: logger,
	}

	if err := sweeper.Run(ctx, cfg.SweepInterval); err != nil {
		logger.Error("sweeper exit", zap.Error(err))
	}
	prod.Close()
	prod.WaitClosed()
}
