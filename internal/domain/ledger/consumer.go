package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Spok95/wellness-ledger/internal/infra/db"
	"github.com/Spok95/wellness-ledger/internal/infra/metrics"
)

// SubstitutionPolicy maps a requested service type to the types allowed to
// cover for it when it is exhausted, best candidate first. Directions are
// independent: allowing premium to cover basic says nothing about the reverse.
type SubstitutionPolicy map[int64][]int64

type ConsumerStore interface {
	EventByKey(ctx context.Context, key string) (*Event, error)
	EventByID(ctx context.Context, id int64) (*Event, error)
	// LockEligibleAllocation picks the allocation of the soonest-expiring
	// active purchase covering occurredAt with remaining > 0, holding a row
	// lock on it until the transaction ends.
	LockEligibleAllocation(ctx context.Context, customerID, serviceTypeID int64, occurredAt time.Time) (*Allocation, error)
	HasExpiredCoverage(ctx context.Context, customerID int64, serviceTypeIDs []int64, occurredAt time.Time) (bool, error)
	ApplyConsumption(ctx context.Context, allocationID int64, occurredAt time.Time, key string) (*Event, error)
	LockAllocation(ctx context.Context, allocationID int64) (*Allocation, error)
	ApplyReversal(ctx context.Context, ev *Event) (*Event, error)
}

// Consumer decrements session budgets when a service is rendered.
type Consumer struct {
	store ConsumerStore
	subs  SubstitutionPolicy
	tx    db.TxRunner
	log   *slog.Logger
}

func NewConsumer(store ConsumerStore, subs SubstitutionPolicy, tx db.TxRunner, log *slog.Logger) *Consumer {
	if subs == nil {
		subs = SubstitutionPolicy{}
	}
	return &Consumer{store: store, subs: subs, tx: tx, log: log}
}

// Consume draws one session for the given service type. Active purchases are
// tried soonest-expiring first; when the exact type is exhausted the
// substitution policy is consulted on the same ordered set. A repeated call
// with the same idempotency key returns the original event untouched.
func (c *Consumer) Consume(ctx context.Context, customerID, serviceTypeID int64, occurredAt time.Time, idempotencyKey string) (*Event, error) {
	var out *Event
	err := c.tx.WithinTx(ctx, func(ctx context.Context) error {
		if idempotencyKey != "" {
			ev, err := c.store.EventByKey(ctx, idempotencyKey)
			if err == nil {
				out = ev
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		candidates := append([]int64{serviceTypeID}, c.subs[serviceTypeID]...)
		for i, typeID := range candidates {
			alloc, err := c.store.LockEligibleAllocation(ctx, customerID, typeID, occurredAt)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			ev, err := c.store.ApplyConsumption(ctx, alloc.ID, occurredAt, idempotencyKey)
			if err != nil {
				return err
			}
			if i > 0 {
				metrics.Substitutions.Inc()
				c.log.Info("consumption substituted",
					"customer_id", customerID,
					"requested_type", serviceTypeID,
					"used_type", typeID,
				)
			}
			out = ev
			return nil
		}

		// Nothing left anywhere. Distinguish "never had / used up" from
		// "coverage exists but the purchase expired" for the caller.
		expired, err := c.store.HasExpiredCoverage(ctx, customerID, candidates, occurredAt)
		if err != nil {
			return err
		}
		if expired {
			return ErrPurchaseExpired
		}
		return ErrInsufficientSessions
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientSessions):
			metrics.ConsumptionsRejected.WithLabelValues("insufficient").Inc()
		case errors.Is(err, ErrPurchaseExpired):
			metrics.ConsumptionsRejected.WithLabelValues("expired").Inc()
		}
		return nil, err
	}
	metrics.ConsumptionsApplied.Inc()
	return out, nil
}

// Reverse compensates a prior consumption with a delta=-1 event and gives the
// session back. Reversing a reversal, an already-reversed event, or more
// sessions than were ever used fails with ErrInvalidState.
func (c *Consumer) Reverse(ctx context.Context, eventID int64) (*Event, error) {
	var out *Event
	err := c.tx.WithinTx(ctx, func(ctx context.Context) error {
		ev, err := c.store.EventByID(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Delta <= 0 || ev.Reverses != 0 {
			return ErrInvalidState
		}

		alloc, err := c.store.LockAllocation(ctx, ev.AllocationID)
		if err != nil {
			return err
		}
		if alloc.Used < ev.Delta {
			return ErrInvalidState
		}

		out, err = c.store.ApplyReversal(ctx, ev)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("consumption reversed", "event_id", eventID, "allocation_id", out.AllocationID)
	return out, nil
}
