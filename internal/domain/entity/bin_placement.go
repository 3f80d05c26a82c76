package entity

import "time"

// BinPlacement distribución espacial de un lote: (LotID, BinID) es único.
// QuantityReserved registra cuánto de esta ubicación está comprometido en propuestas.
type BinPlacement struct {
	ID               string
	LotID            string
	BinID            string
	Quantity         int64
	QuantityReserved int64
	AssignedBy       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Free cantidad de la ubicación que aún puede reservarse o reubicarse.
func (p *BinPlacement) Free() int64 {
	return p.Quantity - p.QuantityReserved
}
