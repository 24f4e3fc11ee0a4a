package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/Spok95/wellness-ledger/internal/domain/packages"
	"github.com/Spok95/wellness-ledger/internal/infra/db"
)

// DefinitionSource is the read-only lookup supplied by the package catalog.
type DefinitionSource interface {
	Get(ctx context.Context, id int64) (*packages.Definition, error)
	Items(ctx context.Context, definitionID int64) ([]packages.Item, error)
}

type AllocatorStore interface {
	PurchaseByID(ctx context.Context, id int64) (*Purchase, error)
	CreatePurchase(ctx context.Context, p *Purchase) (*Purchase, error)
	AllocationCount(ctx context.Context, purchaseID int64) (int, error)
	InsertAllocations(ctx context.Context, allocs []Allocation) ([]Allocation, error)
	AddSessions(ctx context.Context, allocationID int64, extra int) error
}

// Allocator carves a purchase into per-service-type session budgets.
type Allocator struct {
	store AllocatorStore
	defs  DefinitionSource
	tx    db.TxRunner
	log   *slog.Logger
}

func NewAllocator(store AllocatorStore, defs DefinitionSource, tx db.TxRunner, log *slog.Logger) *Allocator {
	return &Allocator{store: store, defs: defs, tx: tx, log: log}
}

// Allocate writes one allocation per service type of the purchased
// definition, all in one transaction. A second call for the same purchase
// fails with ErrAlreadyAllocated so a retried sale cannot double the budget.
func (a *Allocator) Allocate(ctx context.Context, purchaseID int64) ([]Allocation, error) {
	var out []Allocation
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := a.store.PurchaseByID(ctx, purchaseID)
		if err != nil {
			return err
		}

		n, err := a.store.AllocationCount(ctx, p.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyAllocated
		}

		items, err := a.defs.Items(ctx, p.DefinitionID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyDefinition
		}

		allocs := make([]Allocation, 0, len(items))
		for _, it := range items {
			allocs = append(allocs, Allocation{
				PurchaseID:    p.ID,
				ServiceTypeID: it.ServiceTypeID,
				Total:         it.SessionCount,
				Used:          0,
				Remaining:     it.SessionCount,
			})
		}
		out, err = a.store.InsertAllocations(ctx, allocs)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("purchase allocated", "purchase_id", purchaseID, "allocations", len(out))
	return out, nil
}

// Sell creates the purchase and allocates it in the same transaction, so a
// purchase without its allocation rows is never observable.
func (a *Allocator) Sell(ctx context.Context, customerID, definitionID int64, startDate time.Time) (*Purchase, []Allocation, error) {
	var (
		purchase *Purchase
		allocs   []Allocation
	)
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		def, err := a.defs.Get(ctx, definitionID)
		if err != nil {
			return err
		}

		p, err := a.store.CreatePurchase(ctx, &Purchase{
			CustomerID:   customerID,
			DefinitionID: def.ID,
			PurchaseDate: startDate,
			StartDate:    startDate,
			EndDate:      startDate.AddDate(0, 0, def.ValidDays),
			Status:       StatusActive,
		})
		if err != nil {
			return err
		}
		purchase = p

		allocs, err = a.Allocate(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return purchase, allocs, nil
}

// TopUp is an administrative correction for undercounted imports: raises
// total and remaining together so the sum invariant keeps holding.
func (a *Allocator) TopUp(ctx context.Context, allocationID int64, extra int) error {
	if extra <= 0 {
		return ErrInvalidTopUp
	}
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		return a.store.AddSessions(ctx, allocationID, extra)
	})
	if err != nil {
		return err
	}
	a.log.Info("allocation topped up", "allocation_id", allocationID, "extra", extra)
	return nil
}
