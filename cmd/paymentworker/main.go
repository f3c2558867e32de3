package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/example/order-lifecycle/internal/config"
	"github.com/example/order-lifecycle/internal/events"
	"github.com/example/order-lifecycle/internal/inventory"
	kafkax "github.com/example/order-lifecycle/internal/kafka"
	"github.com/example/order-lifecycle/internal/orders"
	"github.com/example/order-lifecycle/internal/payments"
	"github.com/example/order-lifecycle/internal/postgres"
	"github.com/example/order-lifecycle/internal/redisx"
)

// The payment worker is the second, asynchronous entry point into the order
// state machine: it applies payment outcomes delivered by the payment
// service's queue.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName+"-payments").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	store := &orders.PostgresStore{DB: db}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
	prod.Start(ctx)

	publisher := events.NewPublisher(prod, cfg.ServiceName, logger)
	inv := inventory.NewClient(cfg.InventoryURL)
	engine := orders.NewEngine(store, inv, publisher, logger)
	handler := payments.NewHandler(engine, rdb, logger)

	processed := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentGroup, events.TopicPaymentProcessed, logger)
	failed := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentGroup, events.TopicPaymentFailed, logger)

	go func() {
		if err := processed.Start(ctx, handler.HandleProcessed); err != nil {
			logger.Error().Err(err).Msg("payment.processed consumer exit")
			cancel()
		}
	}()
	go func() {
		if err := failed.Start(ctx, handler.HandleFailed); err != nil {
			logger.Error().Err(err).Msg("payment.failed consumer exit")
			cancel()
		}
	}()
	logger.Info().Str("group", cfg.PaymentGroup).Msg("payment consumers started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
