package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// UpsertLotRequest alta o actualización de un lote. ProductKey se resuelve contra
// el catálogo cuando no viene ProductID.
type UpsertLotRequest struct {
	ProductID       string             `json:"product_id"`
	ProductKey      string             `json:"product_key"`
	InstitutionID   string             `json:"institution_id"`
	LotNumber       string             `json:"lot_number" validate:"required"`
	QuantityInitial int64              `json:"quantity_initial"`
	UnitPrice       decimal.Decimal    `json:"unit_price"`
	ExpiryDate      time.Time          `json:"expiry_date" validate:"required"`
	ManufactureDate *time.Time         `json:"manufacture_date,omitempty"`
	ReceptionDate   *time.Time         `json:"reception_date,omitempty"`
	SupplyOrderID   string             `json:"supply_order_id,omitempty"`
	WarehouseID     string             `json:"warehouse_id,omitempty"`
	Procurement     entity.Procurement `json:"procurement"`
}

// PlaceLotRequest acomodo de unidades de un lote en una ubicación.
type PlaceLotRequest struct {
	BinID    string `json:"bin_id" validate:"required"`
	Quantity int64  `json:"quantity"`
}

// ChangeLotStateRequest State acepta el nombre (AVAILABLE, SUSPENDED, DAMAGED, EXPIRED).
type ChangeLotStateRequest struct {
	State  string `json:"state" validate:"required"`
	Reason string `json:"reason"`
}

// RelocateRequest reubicación entre ubicaciones del mismo lote.
type RelocateRequest struct {
	FromBinID string `json:"from_bin_id" validate:"required"`
	ToBinID   string `json:"to_bin_id" validate:"required"`
	Quantity  int64  `json:"quantity"`
}

// RecordMovementRequest body para POST /api/movements.
type RecordMovementRequest struct {
	LotID     string `json:"lot_id" validate:"required"`
	BinID     string `json:"bin_id"`
	Kind      string `json:"kind" validate:"required"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// RegisterCountRequest captura de un conteo físico.
type RegisterCountRequest struct {
	PlacementID string `json:"placement_id" validate:"required"`
	Counted     int64  `json:"counted"`
}

// ImportLotRow renglón de la carga masiva de lotes.
type ImportLotRow struct {
	Key             string             `json:"key"`
	LotNumber       string             `json:"lot_number"`
	BinCode         string             `json:"bin_code"`
	Quantity        int64              `json:"quantity"`
	ExpiryDate      time.Time          `json:"expiry_date"`
	ManufactureDate *time.Time         `json:"manufacture_date,omitempty"`
	UnitPrice       decimal.Decimal    `json:"unit_price"`
	Procurement     entity.Procurement `json:"procurement"`
}

// ImportLotsRequest carga masiva de lotes en un almacén.
type ImportLotsRequest struct {
	InstitutionID string         `json:"institution_id"`
	WarehouseID   string         `json:"warehouse_id" validate:"required"`
	Rows          []ImportLotRow `json:"rows"`
}

// LotResponse salida de un lote.
type LotResponse struct {
	ID                string             `json:"id"`
	ProductID         string             `json:"product_id"`
	InstitutionID     string             `json:"institution_id"`
	LotNumber         string             `json:"lot_number"`
	QuantityInitial   int64              `json:"quantity_initial"`
	QuantityAvailable int64              `json:"quantity_available"`
	QuantityReserved  int64              `json:"quantity_reserved"`
	Effective         int64              `json:"effective_available"`
	UnitPrice         decimal.Decimal    `json:"unit_price"`
	TotalValue        decimal.Decimal    `json:"total_value"`
	ExpiryDate        time.Time          `json:"expiry_date"`
	ManufactureDate   *time.Time         `json:"manufacture_date,omitempty"`
	ReceptionDate     time.Time          `json:"reception_date"`
	State             string             `json:"state"`
	StateReason       string             `json:"state_reason,omitempty"`
	SupplyOrderID     string             `json:"supply_order_id,omitempty"`
	WarehouseID       string             `json:"warehouse_id,omitempty"`
	Procurement       entity.Procurement `json:"procurement"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// PlacementResponse salida de una ubicación de lote.
type PlacementResponse struct {
	ID               string    `json:"id"`
	LotID            string    `json:"lot_id"`
	BinID            string    `json:"bin_id"`
	Quantity         int64     `json:"quantity"`
	QuantityReserved int64     `json:"quantity_reserved"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LotDetailResponse lote con sus ubicaciones.
type LotDetailResponse struct {
	Lot        LotResponse         `json:"lot"`
	Placements []PlacementResponse `json:"placements"`
}

// UpsertLotResponse Created distingue alta de actualización.
type UpsertLotResponse struct {
	Lot     LotResponse `json:"lot"`
	Created bool        `json:"created"`
}

// LotStateChangeResponse transición del historial de estados.
type LotStateChangeResponse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// MovementResponse renglón del kardex.
type MovementResponse struct {
	ID                       string     `json:"id"`
	Seq                      int64      `json:"seq"`
	LotID                    string     `json:"lot_id"`
	BinID                    string     `json:"bin_id,omitempty"`
	Kind                     string     `json:"kind"`
	Quantity                 int64      `json:"quantity"`
	QuantityBefore           int64      `json:"quantity_before"`
	QuantityAfter            int64      `json:"quantity_after"`
	Reason                   string     `json:"reason,omitempty"`
	Reference                string     `json:"reference,omitempty"`
	Folio                    string     `json:"folio,omitempty"`
	ProposalID               string     `json:"proposal_id,omitempty"`
	DestinationInstitutionID string     `json:"destination_institution_id,omitempty"`
	CompensatesID            string     `json:"compensates_id,omitempty"`
	CreatedBy                string     `json:"created_by"`
	CreatedAt                time.Time  `json:"created_at"`
	Voided                   bool       `json:"voided"`
	VoidedAt                 *time.Time `json:"voided_at,omitempty"`
}

// CountResponse estado de un conteo físico.
type CountResponse struct {
	ID             string     `json:"id"`
	PlacementID    string     `json:"placement_id"`
	LotID          string     `json:"lot_id"`
	BinID          string     `json:"bin_id"`
	SystemQuantity int64      `json:"system_quantity"`
	First          *int64     `json:"first,omitempty"`
	Second         *int64     `json:"second,omitempty"`
	Third          *int64     `json:"third,omitempty"`
	State          string     `json:"state"`
	Difference     int64      `json:"difference"`
	MovementID     string     `json:"movement_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}
