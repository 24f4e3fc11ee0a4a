package catalog

import "time"

// ServiceType is immutable once any allocation references it.
type ServiceType struct {
	ID           int64
	Name         string
	DisplayOrder int
	CreatedAt    time.Time
}
