package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/example/order-lifecycle/internal/config"
	"github.com/example/order-lifecycle/internal/events"
	"github.com/example/order-lifecycle/internal/httpx"
	"github.com/example/order-lifecycle/internal/inventory"
	kafkax "github.com/example/order-lifecycle/internal/kafka"
	"github.com/example/order-lifecycle/internal/orders"
	"github.com/example/order-lifecycle/internal/postgres"
	"github.com/example/order-lifecycle/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	store := &orders.PostgresStore{DB: db}
	if err := store.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("init schema")
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
	prod.Start(ctx)

	publisher := events.NewPublisher(prod, cfg.ServiceName, logger)
	inv := inventory.NewClient(cfg.InventoryURL)
	engine := orders.NewEngine(store, inv, publisher, logger)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Engine: engine, Redis: rdb, Logger: logger}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	prod.Close() // flush remaining events
	cancel()
	prod.WaitClosed()
}
