package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-shop-checkout/internal/cart"
	"github.com/ariefcatur/go-shop-checkout/internal/catalog"
	"github.com/ariefcatur/go-shop-checkout/internal/checkout"
	"github.com/ariefcatur/go-shop-checkout/internal/config"
	"github.com/ariefcatur/go-shop-checkout/internal/history"
	"github.com/ariefcatur/go-shop-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
	stripex "github.com/ariefcatur/go-shop-checkout/internal/payments/stripe"
	"github.com/ariefcatur/go-shop-checkout/internal/postgres"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
	"github.com/ariefcatur/go-shop-checkout/internal/store/memstore"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "api")

	// Redis is optional: without it webhook retries rely on the
	// status checks alone.
	var dedup payments.Deduper
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		dedup = redisx.NewDedup(rdb)
	}

	// Kafka producer outlives the HTTP server so late notifications flush.
	prodCtx, stopProducer := context.WithCancel(context.Background())
	defer stopProducer()
	var notifier notify.Notifier = notify.LogNotifier{Log: log}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start(prodCtx)
		notifier = notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}
	}

	var proc payments.Processor
	mode := checkout.ModeOffline
	if cfg.PaymentMode == config.PaymentStripe {
		proc = stripex.New(stripex.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Currency:      cfg.StripeCurrency,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		}, log)
		mode = checkout.ModeRedirect
	}

	api := &httpx.API{
		Catalog:  &catalog.Service{Store: st},
		Carts:    &cart.Service{Store: st, Log: log},
		Checkout: &checkout.Workflow{Store: st, Mode: mode, Processor: proc, Notifier: notifier, Metrics: m, Log: log},
		Payments: &payments.Reconciler{Store: st, Processor: proc, Notifier: notifier, Dedup: dedup, Metrics: m, Log: log},
		History:  &history.Service{Store: st},
		Log:      log,
	}
	router := httpx.NewRouter(log, m)
	router.Handle("/metrics", metrics.Handler(reg))
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr, "payment_mode", cfg.PaymentMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	if prod != nil {
		prod.Close()      // stop accepting, flush the inbox
		prod.WaitClosed() // writer closed
	}
	return err
}

// openStore returns the Postgres store, or a seeded in-memory one when no
// DSN is configured.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		ms := memstore.New()
		for _, p := range catalog.Demo() {
			ms.PutProduct(p)
		}
		log.Warn("POSTGRES_DSN not set, using in-memory store with demo catalog")
		return ms, func() {}, nil
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewStore(db), db.Close, nil
}
