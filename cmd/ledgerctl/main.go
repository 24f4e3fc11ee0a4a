// ledgerctl is the operational companion to the ledger daemon: selling a
// package, registering a visit, reversing a mistake or topping up a
// miscounted import without reaching for raw SQL.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Spok95/wellness-ledger/internal/config"
	"github.com/Spok95/wellness-ledger/internal/domain/catalog"
	"github.com/Spok95/wellness-ledger/internal/domain/expiry"
	"github.com/Spok95/wellness-ledger/internal/domain/ledger"
	"github.com/Spok95/wellness-ledger/internal/domain/packages"
	"github.com/Spok95/wellness-ledger/internal/infra/db"
	"github.com/Spok95/wellness-ledger/internal/infra/logger"
	"github.com/Spok95/wellness-ledger/internal/infra/notify"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
)

type app struct {
	cfg       config.Config
	pool      *pgxpool.Pool
	allocator *ledger.Allocator
	consumer  *ledger.Consumer
	repo      *ledger.Repo
}

var (
	configPath string
	theApp     *app
)

func initApp(ctx context.Context) (*app, error) {
	_ = gotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.App.Env)

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	repo := ledger.NewRepo(pool)
	tx := db.NewPoolRunner(pool)

	idsByName, err := catalog.NewRepo(pool).IDsByName(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	policy, err := ledger.PolicyFromNames(cfg.Ledger.Substitutions, idsByName)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		pool:      pool,
		allocator: ledger.NewAllocator(repo, packages.NewRepo(pool), tx, log),
		consumer:  ledger.NewConsumer(repo, policy, tx, log),
		repo:      repo,
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Administer the package session ledger",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		a, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		theApp = a
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if theApp != nil {
			theApp.pool.Close()
		}
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell [customer-id] [definition-id]",
	Short: "Sell a package and allocate its sessions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		customerID, definitionID, err := twoIDs(args)
		if err != nil {
			return err
		}
		p, allocs, err := theApp.allocator.Sell(cmd.Context(), customerID, definitionID, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("purchase %d: valid %s .. %s\n", p.ID,
			p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
		for _, a := range allocs {
			fmt.Printf("  allocation %d: service type %d, %d sessions\n", a.ID, a.ServiceTypeID, a.Total)
		}
		return nil
	},
}

var consumeKey string

var consumeCmd = &cobra.Command{
	Use:   "consume [customer-id] [service-type-id]",
	Short: "Register one rendered session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		customerID, serviceTypeID, err := twoIDs(args)
		if err != nil {
			return err
		}
		ev, err := theApp.consumer.Consume(cmd.Context(), customerID, serviceTypeID, time.Now(), consumeKey)
		if err != nil {
			return err
		}
		fmt.Printf("event %d: allocation %d, delta %+d\n", ev.ID, ev.AllocationID, ev.Delta)
		return nil
	},
}

var reverseCmd = &cobra.Command{
	Use:   "reverse [event-id]",
	Short: "Reverse a consumption event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := oneID(args)
		if err != nil {
			return err
		}
		ev, err := theApp.consumer.Reverse(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("event %d compensates event %d\n", ev.ID, ev.Reverses)
		return nil
	},
}

var topupCmd = &cobra.Command{
	Use:   "topup [allocation-id] [extra-sessions]",
	Short: "Add sessions to an allocation (import corrections)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, extra, err := twoIDs(args)
		if err != nil {
			return err
		}
		if err := theApp.allocator.TopUp(cmd.Context(), id, int(extra)); err != nil {
			return err
		}
		fmt.Printf("allocation %d: +%d sessions\n", id, extra)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [purchase-id]",
	Short: "Cancel an active purchase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := oneID(args)
		if err != nil {
			return err
		}
		if err := theApp.repo.Cancel(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("purchase %d cancelled\n", id)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [purchase-id]",
	Short: "Show a purchase and its allocations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := oneID(args)
		if err != nil {
			return err
		}
		p, err := theApp.repo.PurchaseByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("purchase %d: customer %d, %s, %s .. %s\n", p.ID, p.CustomerID, p.Status,
			p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
		allocs, err := theApp.repo.AllocationsByPurchase(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			fmt.Printf("  allocation %d: service type %d, total %d, used %d, remaining %d\n",
				a.ID, a.ServiceTypeID, a.Total, a.Used, a.Remaining)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [allocation-id]",
	Short: "Show the consumption audit trail of an allocation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := oneID(args)
		if err != nil {
			return err
		}
		events, err := theApp.repo.ListEvents(cmd.Context(), id)
		if err != nil {
			return err
		}
		for _, e := range events {
			line := fmt.Sprintf("event %d: %s, delta %+d", e.ID, e.OccurredAt.Format("2006-01-02 15:04"), e.Delta)
			if e.Reverses != 0 {
				line += fmt.Sprintf(" (reverses %d)", e.Reverses)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single expiry scan pass now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := logger.New(theApp.cfg.App.Env)
		scanner := expiry.NewScanner(
			expiry.NewRepo(theApp.pool),
			consoleGateway{},
			db.NewPoolRunner(theApp.pool),
			expiry.SystemClock{},
			expiry.Config{
				Interval:          theApp.cfg.Ledger.ScanInterval,
				WarnThresholdDays: theApp.cfg.Ledger.WarnThresholdDays,
			},
			log,
		)
		return scanner.ScanOnce(cmd.Context())
	},
}

type consoleGateway struct{}

func (consoleGateway) Send(_ context.Context, customerID int64, kind notify.Kind, message string) (notify.Delivery, error) {
	fmt.Printf("notify customer %d [%s]: %s\n", customerID, kind, message)
	return notify.Delivery{Delivered: true, ProviderRef: "console"}, nil
}

func oneID(args []string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func twoIDs(args []string) (int64, int64, error) {
	a, err := oneID(args[:1])
	if err != nil {
		return 0, 0, err
	}
	b, err := oneID(args[1:])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/example.yaml", "path to config file")
	consumeCmd.Flags().StringVarP(&consumeKey, "key", "k", "", "idempotency key for safe retries")
	rootCmd.AddCommand(sellCmd, consumeCmd, reverseCmd, topupCmd, cancelCmd, showCmd, historyCmd, scanCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
