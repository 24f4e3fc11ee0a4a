package expiry

import (
	"time"

	"github.com/Spok95/wellness-ledger/internal/infra/notify"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Record is written before the send is confirmed: one record per
// (purchase, kind) caps the business at a single send attempt. Duplicate
// reminders annoy customers more than a rare missed one.
type Record struct {
	ID             int64
	PurchaseID     int64
	Kind           notify.Kind
	SentAt         time.Time
	DeliveryStatus DeliveryStatus
	ProviderRef    string
}

// DuePurchase is the scanner's view of an active purchase.
type DuePurchase struct {
	ID             int64
	CustomerID     int64
	DefinitionName string
	EndDate        time.Time
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
