package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest alta de un insumo del CNIS.
type CreateProductRequest struct {
	Key            string           `json:"key" validate:"required,max=50"`
	Description    string           `json:"description" validate:"required"`
	UnitMeasure    string           `json:"unit_measure"`
	Category       string           `json:"category"`
	TaxRate        decimal.Decimal  `json:"tax_rate"`
	ReferencePrice *decimal.Decimal `json:"reference_price,omitempty"`
}

// UpdateProductRequest la clave no se modifica.
type UpdateProductRequest struct {
	Description    *string          `json:"description"`
	UnitMeasure    *string          `json:"unit_measure"`
	Category       *string          `json:"category"`
	TaxRate        *decimal.Decimal `json:"tax_rate"`
	ReferencePrice *decimal.Decimal `json:"reference_price"`
	Active         *bool            `json:"active"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID             string           `json:"id"`
	Key            string           `json:"key"`
	Description    string           `json:"description"`
	UnitMeasure    string           `json:"unit_measure"`
	Category       string           `json:"category,omitempty"`
	TaxRate        decimal.Decimal  `json:"tax_rate"`
	ReferencePrice *decimal.Decimal `json:"reference_price,omitempty"`
	Active         bool             `json:"active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// CreateInstitutionRequest alta de una institución por CLUES.
type CreateInstitutionRequest struct {
	Clue     string `json:"clue" validate:"required"`
	IBClue   string `json:"ib_clue"`
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type"`
	Locality string `json:"locality"`
}

// InstitutionResponse salida de una institución.
type InstitutionResponse struct {
	ID        string    `json:"id"`
	Clue      string    `json:"clue"`
	IBClue    string    `json:"ib_clue,omitempty"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Locality  string    `json:"locality,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateWarehouseRequest alta de un almacén.
type CreateWarehouseRequest struct {
	InstitutionID string `json:"institution_id" validate:"required"`
	Code          string `json:"code" validate:"required"`
	Name          string `json:"name" validate:"required,min=1,max=200"`
	Address       string `json:"address"`
}

// WarehouseResponse salida de un almacén.
type WarehouseResponse struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Address       string    `json:"address,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateBinRequest alta de una ubicación dentro de un almacén.
type CreateBinRequest struct {
	WarehouseID string `json:"warehouse_id" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Description string `json:"description"`
	Level       string `json:"level"`
	Aisle       string `json:"aisle"`
	Rack        string `json:"rack"`
	Section     string `json:"section"`
}

// ChangeBinStateRequest cambio de estado de una ubicación.
type ChangeBinStateRequest struct {
	State string `json:"state" validate:"required"`
}

// BinResponse salida de una ubicación.
type BinResponse struct {
	ID          string    `json:"id"`
	WarehouseID string    `json:"warehouse_id"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Level       string    `json:"level,omitempty"`
	Aisle       string    `json:"aisle,omitempty"`
	Rack        string    `json:"rack,omitempty"`
	Section     string    `json:"section,omitempty"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateSupplierRequest alta de un proveedor.
type CreateSupplierRequest struct {
	RFC     string `json:"rfc" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact"`
}

// SupplierResponse salida de un proveedor.
type SupplierResponse struct {
	ID        string    `json:"id"`
	RFC       string    `json:"rfc"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSupplyOrderRequest alta de una orden de suministro.
type CreateSupplyOrderRequest struct {
	OrderNumber   string     `json:"order_number" validate:"required"`
	SupplierID    string     `json:"supplier_id" validate:"required"`
	FundingSource string     `json:"funding_source"`
	Budget        string     `json:"budget"`
	OrderDate     *time.Time `json:"order_date"`
}

// SupplyOrderResponse salida de una orden de suministro.
type SupplyOrderResponse struct {
	ID            string     `json:"id"`
	OrderNumber   string     `json:"order_number"`
	SupplierID    string     `json:"supplier_id"`
	FundingSource string     `json:"funding_source,omitempty"`
	Budget        string     `json:"budget,omitempty"`
	OrderDate     *time.Time `json:"order_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
