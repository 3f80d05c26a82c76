package entity

import "time"

// Warehouse almacén físico de una institución (general, farmacia, red fría...).
// Code es único en todo el sistema.
type Warehouse struct {
	ID            string
	InstitutionID string
	Code          string
	Name          string
	Address       string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
