package entity

import "time"

// Estados del conteo físico.
const (
	CountOpen   = "OPEN"
	CountClosed = "CLOSED"
)

// PhysicalCount conteo físico de una ubicación: tres conteos sucesivos, el tercero es definitivo.
type PhysicalCount struct {
	ID             string
	PlacementID    string
	LotID          string
	BinID          string
	SystemQuantity int64 // existencia al abrir el conteo
	First          *int64
	Second         *int64
	Third          *int64
	State          string
	Difference     int64
	MovementID     string
	CreatedBy      string
	CreatedAt      time.Time
	ClosedAt       *time.Time
}

// Next número del siguiente conteo (1..3) o 0 si ya está completo.
func (c *PhysicalCount) Next() int {
	switch {
	case c.First == nil:
		return 1
	case c.Second == nil:
		return 2
	case c.Third == nil:
		return 3
	}
	return 0
}
