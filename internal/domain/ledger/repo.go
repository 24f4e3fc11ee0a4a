package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/wellness-ledger/internal/infra/db"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

var (
	_ AllocatorStore = (*Repo)(nil)
	_ ConsumerStore  = (*Repo)(nil)
)

const purchaseCols = `id, customer_id, package_definition_id, purchase_date, start_date, end_date, status, created_at, updated_at`

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.CustomerID, &p.DefinitionID, &p.PurchaseDate,
		&p.StartDate, &p.EndDate, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repo) PurchaseByID(ctx context.Context, id int64) (*Purchase, error) {
	q := `SELECT ` + purchaseCols + ` FROM package_purchases WHERE id=$1`
	return scanPurchase(db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *Repo) CreatePurchase(ctx context.Context, p *Purchase) (*Purchase, error) {
	q := `INSERT INTO package_purchases
	      (customer_id, package_definition_id, purchase_date, start_date, end_date, status)
	      VALUES ($1,$2,$3,$4,$5,$6)
	      RETURNING ` + purchaseCols
	return scanPurchase(db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q,
		p.CustomerID, p.DefinitionID, p.PurchaseDate, p.StartDate, p.EndDate, p.Status))
}

// Cancel is the explicit cancellation path; only active purchases qualify.
func (r *Repo) Cancel(ctx context.Context, purchaseID int64) error {
	const q = `UPDATE package_purchases SET status='cancelled', updated_at=NOW()
	           WHERE id=$1 AND status='active'`
	tag, err := db.ExecutorFrom(ctx, r.pool).Exec(ctx, q, purchaseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.PurchaseByID(ctx, purchaseID); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

func (r *Repo) AllocationCount(ctx context.Context, purchaseID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM session_allocations WHERE purchase_id=$1`
	var n int
	err := db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, purchaseID).Scan(&n)
	return n, err
}

const allocationCols = `id, purchase_id, service_type_id, total, used, remaining, created_at, updated_at`

func scanAllocation(row pgx.Row) (*Allocation, error) {
	var a Allocation
	err := row.Scan(&a.ID, &a.PurchaseID, &a.ServiceTypeID,
		&a.Total, &a.Used, &a.Remaining, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repo) InsertAllocations(ctx context.Context, allocs []Allocation) ([]Allocation, error) {
	ex := db.ExecutorFrom(ctx, r.pool)
	out := make([]Allocation, 0, len(allocs))
	for _, a := range allocs {
		q := `INSERT INTO session_allocations (purchase_id, service_type_id, total, used, remaining)
		      VALUES ($1,$2,$3,$4,$5)
		      RETURNING ` + allocationCols
		ins, err := scanAllocation(ex.QueryRow(ctx, q, a.PurchaseID, a.ServiceTypeID, a.Total, a.Used, a.Remaining))
		if err != nil {
			return nil, err
		}
		out = append(out, *ins)
	}
	return out, nil
}

func (r *Repo) AddSessions(ctx context.Context, allocationID int64, extra int) error {
	const q = `UPDATE session_allocations
	           SET total=total+$2, remaining=remaining+$2, updated_at=NOW()
	           WHERE id=$1`
	tag, err := db.ExecutorFrom(ctx, r.pool).Exec(ctx, q, allocationID, extra)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) AllocationsByPurchase(ctx context.Context, purchaseID int64) ([]Allocation, error) {
	q := `SELECT ` + allocationCols + ` FROM session_allocations
	      WHERE purchase_id=$1 ORDER BY service_type_id`
	rows, err := db.ExecutorFrom(ctx, r.pool).Query(ctx, q, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.PurchaseID, &a.ServiceTypeID,
			&a.Total, &a.Used, &a.Remaining, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LockAllocation takes the row-level exclusive lock two concurrent consumers
// would otherwise race past, both seeing remaining=1.
func (r *Repo) LockAllocation(ctx context.Context, allocationID int64) (*Allocation, error) {
	q := `SELECT ` + allocationCols + ` FROM session_allocations WHERE id=$1 FOR UPDATE`
	return scanAllocation(db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, allocationID))
}

func (r *Repo) LockEligibleAllocation(ctx context.Context, customerID, serviceTypeID int64, occurredAt time.Time) (*Allocation, error) {
	q := `SELECT a.id, a.purchase_id, a.service_type_id, a.total, a.used, a.remaining, a.created_at, a.updated_at
	      FROM session_allocations a
	      JOIN package_purchases p ON p.id = a.purchase_id
	      WHERE p.customer_id=$1 AND p.status='active'
	        AND p.start_date <= $3::date AND p.end_date >= $3::date
	        AND a.service_type_id=$2 AND a.remaining > 0
	      ORDER BY p.end_date
	      LIMIT 1
	      FOR UPDATE OF a`
	return scanAllocation(db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, customerID, serviceTypeID, occurredAt))
}

func (r *Repo) HasExpiredCoverage(ctx context.Context, customerID int64, serviceTypeIDs []int64, occurredAt time.Time) (bool, error) {
	const q = `SELECT EXISTS (
	             SELECT 1
	             FROM session_allocations a
	             JOIN package_purchases p ON p.id = a.purchase_id
	             WHERE p.customer_id=$1 AND p.status='expired'
	               AND p.start_date <= $3::date
	               AND a.service_type_id = ANY($2)
	           )`
	var ok bool
	err := db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, customerID, serviceTypeIDs, occurredAt).Scan(&ok)
	return ok, err
}

const eventCols = `id, allocation_id, occurred_at, delta, COALESCE(idempotency_key,''), COALESCE(reverses,0), created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.AllocationID, &e.OccurredAt, &e.Delta,
		&e.IdempotencyKey, &e.Reverses, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repo) EventByID(ctx context.Context, id int64) (*Event, error) {
	q := `SELECT ` + eventCols + ` FROM consumption_events WHERE id=$1`
	return scanEvent(db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *Repo) EventByKey(ctx context.Context, key string) (*Event, error) {
	q := `SELECT ` + eventCols + ` FROM consumption_events WHERE idempotency_key=$1`
	return scanEvent(db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, key))
}

func (r *Repo) ApplyConsumption(ctx context.Context, allocationID int64, occurredAt time.Time, key string) (*Event, error) {
	ex := db.ExecutorFrom(ctx, r.pool)

	const upd = `UPDATE session_allocations
	             SET used=used+1, remaining=remaining-1, updated_at=NOW()
	             WHERE id=$1 AND remaining >= 1`
	tag, err := ex.Exec(ctx, upd, allocationID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInsufficientSessions
	}

	ins := `INSERT INTO consumption_events (allocation_id, occurred_at, delta, idempotency_key)
	        VALUES ($1,$2,1,NULLIF($3,''))
	        RETURNING ` + eventCols
	return scanEvent(ex.QueryRow(ctx, ins, allocationID, occurredAt, key))
}

func (r *Repo) ApplyReversal(ctx context.Context, ev *Event) (*Event, error) {
	ex := db.ExecutorFrom(ctx, r.pool)

	const upd = `UPDATE session_allocations
	             SET used=used-$2, remaining=remaining+$2, updated_at=NOW()
	             WHERE id=$1 AND used >= $2`
	tag, err := ex.Exec(ctx, upd, ev.AllocationID, ev.Delta)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInvalidState
	}

	ins := `INSERT INTO consumption_events (allocation_id, occurred_at, delta, reverses)
	        VALUES ($1, NOW(), $2, $3)
	        RETURNING ` + eventCols
	out, err := scanEvent(ex.QueryRow(ctx, ins, ev.AllocationID, -ev.Delta, ev.ID))
	if err != nil {
		// UNIQUE(reverses): this event was already compensated.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	return out, nil
}

// ListEvents returns the append-only audit trail of one allocation.
func (r *Repo) ListEvents(ctx context.Context, allocationID int64) ([]Event, error) {
	q := `SELECT ` + eventCols + ` FROM consumption_events
	      WHERE allocation_id=$1 ORDER BY id`
	rows, err := db.ExecutorFrom(ctx, r.pool).Query(ctx, q, allocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AllocationID, &e.OccurredAt, &e.Delta,
			&e.IdempotencyKey, &e.Reverses, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
