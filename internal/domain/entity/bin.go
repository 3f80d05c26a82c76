package entity

import "time"

// Estados de una ubicación de almacén.
const (
	BinStateAvailable  = "AVAILABLE"
	BinStateOccupied   = "OCCUPIED"
	BinStateBlocked    = "BLOCKED"
	BinStateQuarantine = "QUARANTINE"
	BinStateExpired    = "EXPIRED"
	BinStateReturns    = "RETURNS"
)

// Bin ubicación física dentro de un almacén. Code es único por almacén.
type Bin struct {
	ID          string
	WarehouseID string
	Code        string
	Description string
	Level       string
	Aisle       string
	Rack        string
	Section     string
	State       string
	CreatedAt   time.Time
}

// ValidBinState indica si s pertenece al conjunto de estados de ubicación.
func ValidBinState(s string) bool {
	switch s {
	case BinStateAvailable, BinStateOccupied, BinStateBlocked,
		BinStateQuarantine, BinStateExpired, BinStateReturns:
		return true
	}
	return false
}
