package dto

import (
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// RequisitionItemRequest renglón solicitado.
type RequisitionItemRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	Quantity      int64  `json:"quantity"`
	Justification string `json:"justification"`
}

// CreateRequisitionRequest alta manual de una solicitud. InstitutionID vacío toma
// la institución del token.
type CreateRequisitionRequest struct {
	InstitutionID     string                   `json:"institution_id"`
	WarehouseID       string                   `json:"warehouse_id" validate:"required"`
	ScheduledDelivery *time.Time               `json:"scheduled_delivery,omitempty"`
	Observations      string                   `json:"observations"`
	Items             []RequisitionItemRequest `json:"items"`
}

// ValidateRequisitionRequest Approvals por id de renglón.
type ValidateRequisitionRequest struct {
	Approvals map[string]int64 `json:"approvals"`
	Notes     string           `json:"notes"`
}

// RejectRequisitionRequest motivo del rechazo.
type RejectRequisitionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// BulkRequisitionRow renglón {CLAVE, CANTIDAD SOLICITADA}.
type BulkRequisitionRow struct {
	Key      string `json:"key"`
	Quantity int64  `json:"quantity"`
}

// BulkRequisitionRequest carga masiva de una solicitud.
type BulkRequisitionRequest struct {
	InstitutionID     string               `json:"institution_id"`
	WarehouseID       string               `json:"warehouse_id" validate:"required"`
	ScheduledDelivery *time.Time           `json:"scheduled_delivery,omitempty"`
	Observations      string               `json:"observations"`
	ExternalFolio     string               `json:"external_folio"`
	Rows              []BulkRequisitionRow `json:"rows"`
}

// RequisitionItemResponse renglón de la solicitud.
type RequisitionItemResponse struct {
	ID                string `json:"id"`
	ProductID         string `json:"product_id"`
	Position          int    `json:"position"`
	QuantityRequested int64  `json:"quantity_requested"`
	QuantityApproved  int64  `json:"quantity_approved"`
	State             string `json:"state"`
	Justification     string `json:"justification,omitempty"`
}

// RequisitionResponse salida de una solicitud.
type RequisitionResponse struct {
	ID                string                    `json:"id"`
	Folio             string                    `json:"folio"`
	InstitutionID     string                    `json:"institution_id"`
	WarehouseID       string                    `json:"warehouse_id"`
	Origin            string                    `json:"origin"`
	State             string                    `json:"state"`
	ScheduledDelivery *time.Time                `json:"scheduled_delivery,omitempty"`
	Observations      string                    `json:"observations,omitempty"`
	ValidationNotes   string                    `json:"validation_notes,omitempty"`
	RequestedBy       string                    `json:"requested_by"`
	ValidatedBy       string                    `json:"validated_by,omitempty"`
	ValidatedAt       *time.Time                `json:"validated_at,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
	Items             []RequisitionItemResponse `json:"items"`
}

// BulkRequisitionResponse resultado de la carga masiva.
type BulkRequisitionResponse struct {
	Requisition *RequisitionResponse `json:"requisition,omitempty"`
	Accepted    int                  `json:"accepted"`
	Skipped     int                  `json:"skipped"`
	Errors      []domain.RowError    `json:"errors"`
}
