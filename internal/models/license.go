package models

import "time"

// license key status
const (
	LicenseStatusAvailable = "available"
	LicenseStatusActive    = "active"
	LicenseStatusRevoked   = "revoked"
)

// LicenseKey is one unit of sellable license stock. A key is claimed by at
// most one settled order and never re-issued after revocation.
type LicenseKey struct {
	ID          uint64
	ProductID   string
	Key         string
	Status      string
	OrderID     *string
	Duration    *string
	ActivatedAt *time.Time
	CreatedAt   time.Time
}
