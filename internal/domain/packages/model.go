package packages

import "time"

// Definition is a named bundle of session counts per service type.
// Immutable once purchased at least once; price changes mean a new definition.
type Definition struct {
	ID        int64
	Name      string
	Price     float64
	ValidDays int
	CreatedAt time.Time
}

type Item struct {
	ID            int64
	DefinitionID  int64
	ServiceTypeID int64
	SessionCount  int
	Position      int
}
