package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-shop-checkout/internal/catalog"
	"github.com/ariefcatur/go-shop-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
	"github.com/ariefcatur/go-shop-checkout/internal/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("service", cfg.ServiceName+"-orderctl")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "orderctl",
		Short:         "Operator tasks for the shop database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(cfg), seedCmd(cfg), cancelPendingCmd(cfg, log))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	return postgres.Connect(ctx, cfg.PostgresDSN, 2)
}

func migrateCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func seedCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the demo catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			products := catalog.Demo()
			if err := postgres.Seed(cmd.Context(), db, products); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", len(products))
			return nil
		},
	}
}

func cancelPendingCmd(cfg config.Config, log *slog.Logger) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cancel-pending",
		Short: "Cancel pending orders older than --days and return their stock",
		Long: `Cancel every order still pending after the given number of days.

Each order is cancelled in its own transaction: its stock is returned, its
payment is cancelled and the owner is notified. Failures are reported and
make the command exit non-zero.

Examples:
  orderctl cancel-pending
  orderctl cancel-pending --days 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			db, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var notifier notify.Notifier = notify.LogNotifier{Log: log}
			if len(cfg.KafkaBrokers) > 0 {
				prod := kafkax.NewProducer(cfg.KafkaBrokers, 256, log)
				prod.Start(context.Background())
				defer prod.WaitClosed()
				defer prod.Close()
				notifier = notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}
			}

			rc := &payments.Reconciler{Store: postgres.NewStore(db), Notifier: notifier, Log: log}
			return cancelPending(cmd.Context(), rc, days, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&days, "days", cfg.StaleOrderDays, "age in days after which a pending order is cancelled")
	return cmd
}

func cancelPending(ctx context.Context, rc *payments.Reconciler, days int, out io.Writer) error {
	rep, err := rc.CancelStale(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "found %d pending orders older than %d days\n", rep.Found, days)
	fmt.Fprintf(out, "cancelled: %d\n", len(rep.Cancelled))
	for _, id := range rep.Cancelled {
		fmt.Fprintf(out, "  %s\n", id)
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(out, "skipped: %d\n", len(rep.Skipped))
	}
	if len(rep.Failed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rep.Failed))
	for id := range rep.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(out, "failed: %d\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s: %v\n", id, rep.Failed[id])
	}
	return fmt.Errorf("%d orders could not be cancelled", len(ids))
}
