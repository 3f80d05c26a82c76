package entity

import "time"

// Supplier proveedor identificado por RFC.
type Supplier struct {
	ID        string
	RFC       string
	Name      string
	Contact   string
	Active    bool
	CreatedAt time.Time
}

// SupplyOrder orden de suministro de la que provienen uno o más lotes.
type SupplyOrder struct {
	ID            string
	OrderNumber   string // único
	SupplierID    string
	FundingSource string // fuente de financiamiento
	Budget        string // partida presupuestal
	OrderDate     *time.Time
	CreatedAt     time.Time
}
