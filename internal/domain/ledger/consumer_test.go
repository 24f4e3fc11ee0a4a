package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	typeBrain int64 = 1
	typePulse int64 = 2
)

func TestConsumerConsume(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("draws from the soonest-expiring purchase", func(t *testing.T) {
		s := newFakeStore()
		late := s.addPurchase(7, StatusActive, today.AddDate(0, 0, -10), today.AddDate(0, 0, 40))
		lateAlloc := s.addAllocation(late, typeBrain, 10, 0)
		soon := s.addPurchase(7, StatusActive, today.AddDate(0, 0, -20), today.AddDate(0, 0, 5))
		soonAlloc := s.addAllocation(soon, typeBrain, 10, 0)

		c := NewConsumer(s, nil, fakeTx{}, testLogger())
		ev, err := c.Consume(ctx, 7, typeBrain, today, "")
		require.NoError(t, err)

		assert.Equal(t, soonAlloc, ev.AllocationID)
		assert.Equal(t, 9, s.allocations[soonAlloc].Remaining)
		assert.Equal(t, 10, s.allocations[lateAlloc].Remaining)
		assertInvariants(t, s)
	})

	t.Run("same idempotency key decrements once", func(t *testing.T) {
		s := newFakeStore()
		p := s.addPurchase(7, StatusActive, today.AddDate(0, 0, -1), today.AddDate(0, 0, 10))
		allocID := s.addAllocation(p, typeBrain, 10, 0)

		c := NewConsumer(s, nil, fakeTx{}, testLogger())
		first, err := c.Consume(ctx, 7, typeBrain, today, "visit-42")
		require.NoError(t, err)
		second, err := c.Consume(ctx, 7, typeBrain, today, "visit-42")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 9, s.allocations[allocID].Remaining)

		events := 0
		for range s.events {
			events++
		}
		assert.Equal(t, 1, events)
	})

	t.Run("substitution covers an exhausted type", func(t *testing.T) {
		s := newFakeStore()
		p := s.addPurchase(7, StatusActive, today.AddDate(0, 0, -1), today.AddDate(0, 0, 10))
		brain := s.addAllocation(p, typeBrain, 10, 10) // remaining 0
		pulse := s.addAllocation(p, typePulse, 10, 5)  // remaining 5

		policy := SubstitutionPolicy{typeBrain: {typePulse}}
		c := NewConsumer(s, policy, fakeTx{}, testLogger())

		ev, err := c.Consume(ctx, 7, typeBrain, today, "")
		require.NoError(t, err)

		assert.Equal(t, pulse, ev.AllocationID)
		assert.Equal(t, 4, s.allocations[pulse].Remaining)
		assert.Equal(t, 0, s.allocations[brain].Remaining)
		assertInvariants(t, s)
	})

	t.Run("substitution is not symmetric", func(t *testing.T) {
		s := newFakeStore()
		p := s.addPurchase(7, StatusActive, today.AddDate(0, 0, -1), today.AddDate(0, 0, 10))
		s.addAllocation(p, typeBrain, 10, 0)  // brain available
		s.addAllocation(p, typePulse, 10, 10) // pulse exhausted

		policy := SubstitutionPolicy{typeBrain: {typePulse}}
		c := NewConsumer(s, policy, fakeTx{}, testLogger())

		_, err := c.Consume(ctx, 7, typePulse, today, "")
		assert.ErrorIs(t, err, ErrInsufficientSessions)
	})

	t.Run("nothing left anywhere", func(t *testing.T) {
		s := newFakeStore()
		p := s.addPurchase(7, StatusActive, today.AddDate(0, 0, -1), today.AddDate(0, 0, 10))
		s.addAllocation(p, typeBrain, 10, 10)

		c := NewConsumer(s, nil, fakeTx{}, testLogger())
		_, err := c.Consume(ctx, 7, typeBrain, today, "")
		assert.ErrorIs(t, err, ErrInsufficientSessions)
	})

	t.Run("expired purchase rejects consumption", func(t *testing.T) {
		s := newFakeStore()
		p := s.addPurchase(7, StatusExpired, today.AddDate(0, 0, -30), today.AddDate(0, 0, -1))
		allocID := s.addAllocation(p, typeBrain, 10, 3)

		c := NewConsumer(s, nil, fakeTx{}, testLogger())
		_, err := c.Consume(ctx, 7, typeBrain, today, "")
		assert.ErrorIs(t, err, ErrPurchaseExpired)
		assert.Equal(t, 7, s.allocations[allocID].Remaining, "no mutation on rejection")
	})

	t.Run("purchase outside its window is skipped", func(t *testing.T) {
		s := newFakeStore()
		p := s.addPurchase(7, StatusActive, today.AddDate(0, 0, 3), today.AddDate(0, 0, 30))
		s.addAllocation(p, typeBrain, 10, 0)

		c := NewConsumer(s, nil, fakeTx{}, testLogger())
		_, err := c.Consume(ctx, 7, typeBrain, today, "")
		assert.ErrorIs(t, err, ErrInsufficientSessions)
	})
}

func TestConsumerReverse(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*fakeStore, *Consumer, *Event, int64) {
		t.Helper()
		s := newFakeStore()
		p := s.addPurchase(7, StatusActive, today.AddDate(0, 0, -1), today.AddDate(0, 0, 10))
		allocID := s.addAllocation(p, typeBrain, 10, 0)
		c := NewConsumer(s, nil, fakeTx{}, testLogger())
		ev, err := c.Consume(ctx, 7, typeBrain, today, "")
		require.NoError(t, err)
		return s, c, ev, allocID
	}

	t.Run("round-trip restores the counters exactly", func(t *testing.T) {
		s, c, ev, allocID := setup(t)

		comp, err := c.Reverse(ctx, ev.ID)
		require.NoError(t, err)

		assert.Equal(t, -1, comp.Delta)
		assert.Equal(t, ev.ID, comp.Reverses)
		assert.Equal(t, 0, s.allocations[allocID].Used)
		assert.Equal(t, 10, s.allocations[allocID].Remaining)
		assertInvariants(t, s)
	})

	t.Run("double reversal is rejected", func(t *testing.T) {
		_, c, ev, _ := setup(t)
		_, err := c.Reverse(ctx, ev.ID)
		require.NoError(t, err)
		_, err = c.Reverse(ctx, ev.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("reversing a reversal is rejected", func(t *testing.T) {
		_, c, ev, _ := setup(t)
		comp, err := c.Reverse(ctx, ev.ID)
		require.NoError(t, err)
		_, err = c.Reverse(ctx, comp.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, c, _, _ := setup(t)
		_, err := c.Reverse(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
