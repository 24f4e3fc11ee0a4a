package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/Spok95/wellness-ledger/internal/domain/packages"
)

// fakeTx runs the closure directly; rollback semantics are exercised by the
// store snapshots in the tests that need them.
type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeStore struct {
	purchases   map[int64]*Purchase
	allocations map[int64]*Allocation
	events      map[int64]*Event
	defs        map[int64]*packages.Definition
	items       map[int64][]packages.Item
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		purchases:   map[int64]*Purchase{},
		allocations: map[int64]*Allocation{},
		events:      map[int64]*Event{},
		defs:        map[int64]*packages.Definition{},
		items:       map[int64][]packages.Item{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func covers(p *Purchase, at time.Time) bool {
	d := dateOnly(at)
	return !d.Before(dateOnly(p.StartDate)) && !d.After(dateOnly(p.EndDate))
}

func (s *fakeStore) PurchaseByID(_ context.Context, id int64) (*Purchase, error) {
	p, ok := s.purchases[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CreatePurchase(_ context.Context, p *Purchase) (*Purchase, error) {
	cp := *p
	cp.ID = s.id()
	s.purchases[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeStore) AllocationCount(_ context.Context, purchaseID int64) (int, error) {
	n := 0
	for _, a := range s.allocations {
		if a.PurchaseID == purchaseID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) InsertAllocations(_ context.Context, allocs []Allocation) ([]Allocation, error) {
	out := make([]Allocation, 0, len(allocs))
	for _, a := range allocs {
		a.ID = s.id()
		cp := a
		s.allocations[a.ID] = &cp
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) AddSessions(_ context.Context, allocationID int64, extra int) error {
	a, ok := s.allocations[allocationID]
	if !ok {
		return ErrNotFound
	}
	a.Total += extra
	a.Remaining += extra
	return nil
}

func (s *fakeStore) EventByKey(_ context.Context, key string) (*Event, error) {
	for _, e := range s.events {
		if e.IdempotencyKey == key {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) EventByID(_ context.Context, id int64) (*Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeStore) LockEligibleAllocation(_ context.Context, customerID, serviceTypeID int64, occurredAt time.Time) (*Allocation, error) {
	var candidates []*Allocation
	for _, a := range s.allocations {
		p := s.purchases[a.PurchaseID]
		if p == nil || p.CustomerID != customerID || p.Status != StatusActive {
			continue
		}
		if !covers(p, occurredAt) {
			continue
		}
		if a.ServiceTypeID == serviceTypeID && a.Remaining > 0 {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi := s.purchases[candidates[i].PurchaseID]
		pj := s.purchases[candidates[j].PurchaseID]
		return pi.EndDate.Before(pj.EndDate)
	})
	cp := *candidates[0]
	return &cp, nil
}

func (s *fakeStore) HasExpiredCoverage(_ context.Context, customerID int64, serviceTypeIDs []int64, occurredAt time.Time) (bool, error) {
	types := map[int64]bool{}
	for _, id := range serviceTypeIDs {
		types[id] = true
	}
	for _, a := range s.allocations {
		p := s.purchases[a.PurchaseID]
		if p == nil || p.CustomerID != customerID || p.Status != StatusExpired {
			continue
		}
		if dateOnly(p.StartDate).After(dateOnly(occurredAt)) {
			continue
		}
		if types[a.ServiceTypeID] {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ApplyConsumption(_ context.Context, allocationID int64, occurredAt time.Time, key string) (*Event, error) {
	a, ok := s.allocations[allocationID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Remaining < 1 {
		return nil, ErrInsufficientSessions
	}
	a.Used++
	a.Remaining--
	e := &Event{
		ID:             s.id(),
		AllocationID:   allocationID,
		OccurredAt:     occurredAt,
		Delta:          1,
		IdempotencyKey: key,
	}
	s.events[e.ID] = e
	cp := *e
	return &cp, nil
}

func (s *fakeStore) LockAllocation(_ context.Context, allocationID int64) (*Allocation, error) {
	a, ok := s.allocations[allocationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) ApplyReversal(_ context.Context, ev *Event) (*Event, error) {
	for _, e := range s.events {
		if e.Reverses == ev.ID {
			return nil, ErrInvalidState
		}
	}
	a, ok := s.allocations[ev.AllocationID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Used < ev.Delta {
		return nil, ErrInvalidState
	}
	a.Used -= ev.Delta
	a.Remaining += ev.Delta
	e := &Event{
		ID:           s.id(),
		AllocationID: ev.AllocationID,
		OccurredAt:   time.Now(),
		Delta:        -ev.Delta,
		Reverses:     ev.ID,
	}
	s.events[e.ID] = e
	cp := *e
	return &cp, nil
}

// DefinitionSource for the allocator.

func (s *fakeStore) Get(_ context.Context, id int64) (*packages.Definition, error) {
	d, ok := s.defs[id]
	if !ok {
		return nil, packages.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) Items(_ context.Context, definitionID int64) ([]packages.Item, error) {
	return s.items[definitionID], nil
}

// Builders.

func (s *fakeStore) addDefinition(name string, validDays int, counts map[int64]int) int64 {
	id := s.id()
	s.defs[id] = &packages.Definition{ID: id, Name: name, Price: 1000, ValidDays: validDays}
	pos := 0
	var typeIDs []int64
	for typeID := range counts {
		typeIDs = append(typeIDs, typeID)
	}
	sort.Slice(typeIDs, func(i, j int) bool { return typeIDs[i] < typeIDs[j] })
	for _, typeID := range typeIDs {
		pos++
		s.items[id] = append(s.items[id], packages.Item{
			ID:            s.id(),
			DefinitionID:  id,
			ServiceTypeID: typeID,
			SessionCount:  counts[typeID],
			Position:      pos,
		})
	}
	return id
}

func (s *fakeStore) addPurchase(customerID int64, status PurchaseStatus, start, end time.Time) int64 {
	id := s.id()
	s.purchases[id] = &Purchase{
		ID:         id,
		CustomerID: customerID,
		StartDate:  start,
		EndDate:    end,
		Status:     status,
	}
	return id
}

func (s *fakeStore) addAllocation(purchaseID, serviceTypeID int64, total, used int) int64 {
	id := s.id()
	s.allocations[id] = &Allocation{
		ID:            id,
		PurchaseID:    purchaseID,
		ServiceTypeID: serviceTypeID,
		Total:         total,
		Used:          used,
		Remaining:     total - used,
	}
	return id
}
