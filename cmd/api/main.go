package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-farm-orders/internal/cart"
	"github.com/ariefcatur/go-farm-orders/internal/catalog"
	"github.com/ariefcatur/go-farm-orders/internal/checkout"
	"github.com/ariefcatur/go-farm-orders/internal/clock"
	"github.com/ariefcatur/go-farm-orders/internal/config"
	"github.com/ariefcatur/go-farm-orders/internal/httpx"
	"github.com/ariefcatur/go-farm-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-farm-orders/internal/kafka"
	"github.com/ariefcatur/go-farm-orders/internal/lifecycle"
	"github.com/ariefcatur/go-farm-orders/internal/logging"
	"github.com/ariefcatur/go-farm-orders/internal/notify"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/ariefcatur/go-farm-orders/internal/postgres"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	seed, err := loadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Store & catalog
	var (
		store orders.Store
		cat   orders.Catalog
	)
	switch cfg.StoreDriver {
	case "memory":
		mem := orders.NewMemStore()
		for _, p := range seed {
			mem.PutProduct(p)
		}
		store, cat = mem, mem
		logger.Info("using in-memory store", zap.Int("products", len(seed)))
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		if err := postgres.Seed(ctx, db, seed); err != nil {
			return err
		}
		store = &orders.Repo{DB: db}
		cat = &catalog.Cached{
			Primary: &catalog.Postgres{DB: db},
			Redis:   rdb,
			TTL:     cfg.CatalogCacheTTL,
			Log:     logger.With(zap.String("component", "catalog")),
		}
	}

	// Notifications. The memory driver is for local runs and only logs them.
	clk := clock.System{}
	var notifier notify.Notifier = notify.Log{Log: logger.With(zap.String("component", "notify"))}
	if cfg.StoreDriver != "memory" && len(cfg.KafkaBrokers) > 0 {
		prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, 1024, logger)
		prod.Start(ctx)
		defer func() {
			prod.Close()
			prod.WaitClosed()
		}()
		notifier = &notify.Kafka{Publisher: prod, Service: cfg.ServiceName, Clock: clk, Log: logger.With(zap.String("component", "notify"))}
	}

	// Engine
	ledger := &inventory.Ledger{Store: store, Log: logger.With(zap.String("component", "ledger"))}
	svc := &lifecycle.Service{
		Store:    store,
		Ledger:   ledger,
		Machine:  orders.Machine{AutoConfirmAfter: cfg.AutoConfirmAfter},
		Notifier: notifier,
		Clock:    clk,
		Log:      logger.With(zap.String("component", "lifecycle")),
	}
	sweeper := &lifecycle.Sweeper{
		Lifecycle: svc,
		Batch:     cfg.SweepBatch,
		Log:       logger.With(zap.String("component", "sweeper")),
	}
	crt := &cart.Redis{Redis: rdb, Catalog: cat}
	co := &checkout.Coordinator{
		Store:     store,
		Ledger:    ledger,
		Catalog:   cat,
		Cart:      crt,
		Notifier:  notifier,
		Clock:     clk,
		TxTimeout: cfg.TxTimeout,
		Log:       logger.With(zap.String("component", "checkout")),
	}

	// HTTP
	idem := &httpx.Idempotency{Redis: rdb, Log: logger}
	limit := httpx.RateLimit(rdb, cfg.RateLimit, time.Minute, logger)
	router := httpx.NewRouter(logger)
	(&httpx.OrdersHandler{
		Checkout:    co,
		Lifecycle:   svc,
		Resolver:    &lifecycle.Resolver{Lifecycle: svc},
		Sweeper:     sweeper,
		Ledger:      ledger,
		Idempotency: idem,
		Timeout:     cfg.TxTimeout,
		Log:         logger,
	}).Register(router, limit)
	(&httpx.CartsHandler{Cart: crt, Checkout: co, Idempotency: idem, Log: logger}).Register(router, limit)
	(&httpx.NotificationsHandler{
		Inbox: &notify.Inbox{Redis: rdb, Size: int64(cfg.InboxSize), Service: cfg.ServiceName, Log: logger},
		Log:   logger,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if cfg.SweeperEnabled {
		g.Go(func() error { return sweeper.Run(gctx, cfg.SweepInterval) })
	}
	return g.Wait()
}

// loadSeed reads a JSON array of products. An empty path means no seed.
func loadSeed(path string) ([]orders.Product, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	var ps []orders.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	for _, p := range ps {
		if p.ID == "" || p.ProducerID == "" || p.AvailableQuantity.IsNegative() {
			return nil, fmt.Errorf("seed file %s: invalid product %q", path, p.ID)
		}
	}
	return ps, nil
}
