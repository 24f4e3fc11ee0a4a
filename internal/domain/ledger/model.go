package ledger

import "time"

type PurchaseStatus string

const (
	StatusActive    PurchaseStatus = "active"
	StatusExpired   PurchaseStatus = "expired"
	StatusCancelled PurchaseStatus = "cancelled"
)

type Purchase struct {
	ID           int64
	CustomerID   int64
	DefinitionID int64
	PurchaseDate time.Time
	StartDate    time.Time
	EndDate      time.Time // start_date + valid_days
	Status       PurchaseStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Allocation is the per-service-type session budget of one purchase.
// total = used + remaining holds at all times; remaining never goes negative.
type Allocation struct {
	ID            int64
	PurchaseID    int64
	ServiceTypeID int64
	Total         int
	Used          int
	Remaining     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event is the append-only audit trail of an allocation. Reversal events
// carry delta=-1 and point at the event they compensate.
type Event struct {
	ID             int64
	AllocationID   int64
	OccurredAt     time.Time
	Delta          int
	IdempotencyKey string
	Reverses       int64 // 0 unless this is a compensating event
	CreatedAt      time.Time
}
