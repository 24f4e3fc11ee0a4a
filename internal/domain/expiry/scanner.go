package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Spok95/wellness-ledger/internal/infra/db"
	"github.com/Spok95/wellness-ledger/internal/infra/metrics"
	"github.com/Spok95/wellness-ledger/internal/infra/notify"
)

type Store interface {
	DuePurchases(ctx context.Context) ([]DuePurchase, error)
	MarkExpired(ctx context.Context, purchaseID int64) (bool, error)
	HasRecord(ctx context.Context, purchaseID int64, kind notify.Kind) (bool, error)
	InsertRecord(ctx context.Context, purchaseID int64, kind notify.Kind, sentAt time.Time) (*Record, error)
	SetDeliveryStatus(ctx context.Context, recordID int64, status DeliveryStatus, providerRef string) error
}

type Config struct {
	Interval          time.Duration
	WarnThresholdDays int
}

// Scanner walks active purchases on a fixed cadence, expires the overdue
// ones and requests the time-based notices. One bad purchase never aborts
// the rest of the pass.
type Scanner struct {
	store   Store
	gateway notify.Gateway
	tx      db.TxRunner
	clock   Clock
	cfg     Config
	log     *slog.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

func NewScanner(store Store, gateway notify.Gateway, tx db.TxRunner, clock Clock, cfg Config, log *slog.Logger) *Scanner {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scanner{
		store:   store,
		gateway: gateway,
		tx:      tx,
		clock:   clock,
		cfg:     cfg,
		log:     log,
		stop:    make(chan struct{}),
	}
}

// Start runs the periodic loop in a goroutine; the first pass happens
// immediately, not one interval later.
func (s *Scanner) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.log.Info("expiry scanner started",
		"interval", s.cfg.Interval,
		"warn_threshold_days", s.cfg.WarnThresholdDays,
	)
}

func (s *Scanner) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.log.Info("expiry scanner stopped")
}

func (s *Scanner) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.ScanOnce(ctx); err != nil {
			s.log.Error("expiry scan failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce performs a single pass. Shutdown is honored between purchases;
// a purchase already inside its transaction finishes first.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	purchases, err := s.store.DuePurchases(ctx)
	if err != nil {
		return err
	}

	for _, p := range purchases {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		default:
		}

		if err := s.scanPurchase(ctx, p); err != nil {
			// Log and move on; the idempotency records make the next
			// tick pick up whatever was not written this time.
			s.log.Error("purchase scan failed", "purchase_id", p.ID, "err", err)
		}
	}

	metrics.ScansCompleted.Inc()
	return nil
}

func (s *Scanner) scanPurchase(ctx context.Context, p DuePurchase) error {
	now := s.clock.Now()
	days := daysBetween(now, p.EndDate)

	switch {
	case days < 0:
		return s.expire(ctx, p)
	case days <= s.cfg.WarnThresholdDays:
		return s.warn(ctx, p, days)
	default:
		return nil
	}
}

func (s *Scanner) expire(ctx context.Context, p DuePurchase) error {
	var rec *Record
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		transitioned, err := s.store.MarkExpired(ctx, p.ID)
		if err != nil {
			return err
		}
		if transitioned {
			metrics.PurchasesExpired.Inc()
			s.log.Info("purchase expired", "purchase_id", p.ID)
		}

		exists, err := s.store.HasRecord(ctx, p.ID, notify.KindExpired)
		if err != nil || exists {
			return err
		}
		rec, err = s.store.InsertRecord(ctx, p.ID, notify.KindExpired, s.clock.Now())
		return err
	})
	if err != nil || rec == nil {
		return err
	}

	s.deliver(ctx, p, rec, notify.RenderExpired(p.DefinitionName))
	return nil
}

func (s *Scanner) warn(ctx context.Context, p DuePurchase, daysLeft int) error {
	exists, err := s.store.HasRecord(ctx, p.ID, notify.KindExpiringSoon)
	if err != nil || exists {
		return err
	}

	var rec *Record
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Re-check inside the transaction, then record before sending:
		// at most one attempt ever happens for this purchase and kind.
		exists, err := s.store.HasRecord(ctx, p.ID, notify.KindExpiringSoon)
		if err != nil || exists {
			return err
		}
		rec, err = s.store.InsertRecord(ctx, p.ID, notify.KindExpiringSoon, s.clock.Now())
		return err
	})
	if err != nil || rec == nil {
		return err
	}

	s.deliver(ctx, p, rec, notify.RenderExpiringSoon(p.DefinitionName, daysLeft))
	return nil
}

// deliver happens after the record is committed; the outcome only updates
// delivery_status, it never decides whether another attempt is allowed.
func (s *Scanner) deliver(ctx context.Context, p DuePurchase, rec *Record, message string) {
	d, err := s.gateway.Send(ctx, p.CustomerID, rec.Kind, message)
	if err != nil || !d.Delivered {
		metrics.NotificationsSent.WithLabelValues(string(rec.Kind), "failed").Inc()
		s.log.Warn("notification send failed",
			"purchase_id", p.ID,
			"kind", string(rec.Kind),
			"error_code", d.ErrorCode,
			"err", err,
		)
		if uerr := s.store.SetDeliveryStatus(ctx, rec.ID, DeliveryFailed, ""); uerr != nil {
			s.log.Error("delivery status update failed", "record_id", rec.ID, "err", uerr)
		}
		return
	}

	metrics.NotificationsSent.WithLabelValues(string(rec.Kind), "delivered").Inc()
	if uerr := s.store.SetDeliveryStatus(ctx, rec.ID, DeliveryDelivered, d.ProviderRef); uerr != nil {
		s.log.Error("delivery status update failed", "record_id", rec.ID, "err", uerr)
	}
}

// daysBetween counts whole calendar days from now's date to end's date;
// negative when end is in the past.
func daysBetween(now, end time.Time) int {
	ny, nm, nd := now.Date()
	ey, em, ed := end.Date()
	from := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour))
}
