package notify

import "context"

type Kind string

const (
	KindExpiringSoon Kind = "expiring_soon"
	KindExpired      Kind = "expired"
)

type Delivery struct {
	Delivered   bool
	ProviderRef string
	ErrorCode   string
}

// Gateway is the outbound notification contract. The ledger does not care
// whether the transport is SMS, email or a messenger; it only needs the
// boolean-success answer. Retries are the caller's business.
type Gateway interface {
	Send(ctx context.Context, customerID int64, kind Kind, message string) (Delivery, error)
}
