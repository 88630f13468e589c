package main

import (
	"context"
	"github.com/ariefcatur/go-farm-orders/internal/config"
	kafkax "github.com/ariefcatur/go-farm-orders/internal/kafka"
	"github.com/ariefcatur/go-farm-orders/internal/logging"
	"github.com/ariefcatur/go-farm-orders/internal/notify"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"os/signal"
	"syscall"
)

// The notifier consumes notification events and files them into each
// recipient's inbox.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.ServiceName+"-notifier", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	inbox := &notify.Inbox{
		Redis:   rdb,
		Size:    int64(cfg.InboxSize),
		Service: cfg.NotifierGroup,
		Log:     logger,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.NotifyTopic, cfg.NotifierWorkers, logger)
	logger.Info("notifier consumer started",
		zap.String("group", cfg.NotifierGroup), zap.String("topic", cfg.NotifyTopic), zap.Int("workers", cfg.NotifierWorkers))
	if err := cons.Start(ctx, inbox.HandleMessage); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}
	logger.Info("notifier stopped")
}
