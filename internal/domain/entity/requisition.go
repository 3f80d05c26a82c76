package entity

import "time"

// Estados de la solicitud de pedido.
const (
	RequisitionPending       = "PENDING"
	RequisitionValidated     = "VALIDATED"
	RequisitionRejected      = "REJECTED"
	RequisitionInPreparation = "IN_PREPARATION"
	RequisitionPrepared      = "PREPARED"
	RequisitionDispatched    = "DISPATCHED"
	RequisitionCancelled     = "CANCELLED"
)

// Origen de la solicitud.
const (
	RequisitionOriginManual = "MANUAL"
	RequisitionOriginBulk   = "BULK"
)

// Estados de un renglón de la solicitud.
const (
	RequisitionItemPending  = "PENDING"
	RequisitionItemApproved = "APPROVED"
	RequisitionItemPartial  = "PARTIALLY_APPROVED"
	RequisitionItemRejected = "REJECTED"
)

var requisitionTransitions = map[string][]string{
	RequisitionPending:       {RequisitionValidated, RequisitionRejected, RequisitionCancelled},
	RequisitionValidated:     {RequisitionRejected, RequisitionInPreparation},
	RequisitionInPreparation: {RequisitionValidated, RequisitionPrepared, RequisitionDispatched},
	RequisitionPrepared:      {RequisitionValidated, RequisitionDispatched},
}

// CanRequisitionTransition indica si la máquina de estados permite from → to.
func CanRequisitionTransition(from, to string) bool {
	for _, s := range requisitionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Requisition solicitud de pedido de una institución.
type Requisition struct {
	ID                string
	Folio             string // IB-YYYY-NNNNNN, único
	InstitutionID     string // institución solicitante
	WarehouseID       string // almacén destino
	Origin            string
	State             string
	ScheduledDelivery *time.Time
	Observations      string
	ValidationNotes   string
	RequestedBy       string
	ValidatedBy       string
	ValidatedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []*RequisitionItem
}

// RequisitionItem renglón (Requisition, Product) único.
type RequisitionItem struct {
	ID                string
	RequisitionID     string
	ProductID         string
	Position          int
	QuantityRequested int64
	QuantityApproved  int64
	State             string
	Justification     string
}

// Item devuelve el renglón con el id dado o nil.
func (r *Requisition) Item(id string) *RequisitionItem {
	for _, it := range r.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}
