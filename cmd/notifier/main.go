package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-shop-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName+"-notifier")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Error("invalid configuration", "err", errors.New("KAFKA_BROKERS is required"))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &notify.Dispatcher{Mailer: notify.LogMailer{Log: log}, Log: log}
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		d.Dedup = redisx.NewDedup(rdb)
	}

	topics := []string{orders.TopicOrderPlaced, orders.TopicOrderPaid, orders.TopicOrderCancelled}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers, log)

	log.Info("notifier consumer started", "group", cfg.NotifierGroup, "topics", topics, "workers", cfg.NotifierWorkers)
	if err := cons.Start(ctx, d.HandleMessage); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
