package ledger

import "errors"

var (
	// ErrNotFound: the referenced purchase, allocation or event does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrAlreadyAllocated guards against double-allocation on retried sales.
	ErrAlreadyAllocated = errors.New("ledger: purchase already allocated")

	// ErrEmptyDefinition: the package definition has no service type entries.
	ErrEmptyDefinition = errors.New("ledger: package definition has no items")

	// ErrInsufficientSessions is a business outcome, not a fault: neither the
	// requested type nor any configured substitute has sessions left.
	ErrInsufficientSessions = errors.New("ledger: insufficient sessions")

	// ErrPurchaseExpired: the only coverage for the request sits on an
	// expired purchase; consuming from it is forbidden.
	ErrPurchaseExpired = errors.New("ledger: purchase expired")

	// ErrInvalidState: the reversal would push used below zero or the event
	// was already reversed.
	ErrInvalidState = errors.New("ledger: invalid state")

	// ErrInvalidTopUp: top-up amount must be positive.
	ErrInvalidTopUp = errors.New("ledger: top-up must be positive")
)
