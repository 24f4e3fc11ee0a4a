package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/wellness-ledger/internal/config"
	"github.com/Spok95/wellness-ledger/internal/domain/customers"
	"github.com/Spok95/wellness-ledger/internal/domain/expiry"
	"github.com/Spok95/wellness-ledger/internal/infra/db"
	httpx "github.com/Spok95/wellness-ledger/internal/infra/http"
	"github.com/Spok95/wellness-ledger/internal/infra/logger"
	"github.com/Spok95/wellness-ledger/internal/infra/notify"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	customersRepo := customers.NewRepo(pool)

	var gateway notify.Gateway
	if cfg.Telegram.Token != "" {
		gateway, err = notify.NewTelegramGateway(cfg.Telegram.Token, cfg.Telegram.SendTimeout, customersRepo)
		if err != nil {
			log.Error("telegram gateway init failed", "err", err)
			return
		}
	} else {
		// No token: dev mode, notices only reach the log.
		gateway = logGateway{log: log}
	}

	scanner := expiry.NewScanner(
		expiry.NewRepo(pool),
		gateway,
		db.NewPoolRunner(pool),
		expiry.SystemClock{},
		expiry.Config{
			Interval:          cfg.Ledger.ScanInterval,
			WarnThresholdDays: cfg.Ledger.WarnThresholdDays,
		},
		log,
	)
	scanner.Start(ctx)

	srv := httpx.New(cfg.HTTP.Addr, pool, cfg.Metrics.Enabled)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	scanner.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}

type logGateway struct {
	log *slog.Logger
}

func (g logGateway) Send(_ context.Context, customerID int64, kind notify.Kind, message string) (notify.Delivery, error) {
	g.log.Info("notification (log only)", "customer_id", customerID, "kind", string(kind), "message", message)
	return notify.Delivery{Delivered: true, ProviderRef: "log"}, nil
}
