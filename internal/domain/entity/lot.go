package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotState estado del lote (valores numéricos heredados del catálogo institucional).
type LotState int

const (
	LotStateAvailable LotState = 1
	LotStateSuspended LotState = 4
	LotStateDamaged   LotState = 5
	LotStateExpired   LotState = 6
)

func (s LotState) String() string {
	switch s {
	case LotStateAvailable:
		return "AVAILABLE"
	case LotStateSuspended:
		return "SUSPENDED"
	case LotStateDamaged:
		return "DAMAGED"
	case LotStateExpired:
		return "EXPIRED"
	}
	return "UNKNOWN"
}

// ParseLotState acepta el nombre del estado; devuelve 0 si no existe.
func ParseLotState(name string) LotState {
	for _, s := range []LotState{LotStateAvailable, LotStateSuspended, LotStateDamaged, LotStateExpired} {
		if s.String() == name {
			return s
		}
	}
	return 0
}

// Valid indica si el estado pertenece al catálogo.
func (s LotState) Valid() bool {
	return s == LotStateAvailable || s == LotStateSuspended || s == LotStateDamaged || s == LotStateExpired
}

// Terminal: un lote dañado o caducado ya no vuelve a inventario.
func (s LotState) Terminal() bool {
	return s == LotStateDamaged || s == LotStateExpired
}

// Procurement metadatos de adquisición del lote (alimentan los reportes de entradas y salidas).
type Procurement struct {
	Contract      string `json:"contract,omitempty"`
	Remission     string `json:"remission,omitempty"`
	Budget        string `json:"budget,omitempty"` // partida
	Tender        string `json:"tender,omitempty"` // licitación / procedimiento
	Brand         string `json:"brand,omitempty"`
	Manufacturer  string `json:"manufacturer,omitempty"`
	FundingSource string `json:"funding_source,omitempty"`
	DeliveryType  string `json:"delivery_type,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Lot lote de un producto propiedad de una institución.
// Identidad de negocio: (ProductID, InstitutionID, LotNumber).
//
// Invariantes: 0 <= QuantityReserved <= QuantityAvailable y
// QuantityAvailable == Σ BinPlacement.Quantity del lote.
type Lot struct {
	ID                string
	ProductID         string
	InstitutionID     string
	LotNumber         string
	QuantityInitial   int64
	QuantityAvailable int64
	QuantityReserved  int64
	UnitPrice         decimal.Decimal
	TotalValue        decimal.Decimal // QuantityInitial × UnitPrice
	ExpiryDate        time.Time
	ManufactureDate   *time.Time
	ReceptionDate     time.Time
	State             LotState
	StateReason       string
	StateChangedAt    *time.Time
	StateChangedBy    string
	SupplyOrderID     string
	WarehouseID       string // almacén de recepción
	Procurement       Procurement
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EffectiveAvailable es el único valor válido para decidir asignaciones.
func (l *Lot) EffectiveAvailable() int64 {
	return l.QuantityAvailable - l.QuantityReserved
}

// RecomputeTotalValue deriva TotalValue; se llama en cada escritura.
func (l *Lot) RecomputeTotalValue() {
	l.TotalValue = decimal.NewFromInt(l.QuantityInitial).Mul(l.UnitPrice)
}

// LotStateChange transición registrada en el historial del lote.
type LotStateChange struct {
	ID        string
	LotID     string
	From      LotState
	To        LotState
	Reason    string
	ChangedBy string
	ChangedAt time.Time
}
