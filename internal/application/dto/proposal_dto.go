package dto

import "time"

// DispatchRequest AssignmentIDs sólo en modo incremental.
type DispatchRequest struct {
	AssignmentIDs []string `json:"assignment_ids"`
}

// ProposalResponse cabecera de la propuesta.
type ProposalResponse struct {
	ID              string     `json:"id"`
	RequisitionID   string     `json:"requisition_id"`
	Folio           string     `json:"folio"`
	State           string     `json:"state"`
	TotalRequested  int64      `json:"total_requested"`
	TotalAvailable  int64      `json:"total_available"`
	TotalProposed   int64      `json:"total_proposed"`
	TotalDispatched int64      `json:"total_dispatched"`
	GeneratedBy     string     `json:"generated_by"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	DispatchedBy    string     `json:"dispatched_by,omitempty"`
	DispatchedAt    *time.Time `json:"dispatched_at,omitempty"`
	CancelledBy     string     `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ProposalItemResponse renglón de la propuesta.
type ProposalItemResponse struct {
	ID                 string `json:"id"`
	RequisitionItemID  string `json:"requisition_item_id"`
	ProductID          string `json:"product_id"`
	QuantitySolicited  int64  `json:"quantity_solicited"`
	QuantityAvailable  int64  `json:"quantity_available"`
	QuantityProposed   int64  `json:"quantity_proposed"`
	QuantityDispatched int64  `json:"quantity_dispatched"`
	State              string `json:"state"`
	Notes              string `json:"notes,omitempty"`
}

// AssignmentResponse unidades de una ubicación asignadas a un renglón.
type AssignmentResponse struct {
	ID             string     `json:"id"`
	ProposalItemID string     `json:"proposal_item_id"`
	PlacementID    string     `json:"placement_id"`
	LotID          string     `json:"lot_id"`
	BinID          string     `json:"bin_id"`
	Quantity       int64      `json:"quantity"`
	Dispatched     bool       `json:"dispatched"`
	AssignedAt     time.Time  `json:"assigned_at"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
}

// ProposalLogResponse entrada de la bitácora.
type ProposalLogResponse struct {
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProposalDetailResponse propuesta completa.
type ProposalDetailResponse struct {
	Proposal    ProposalResponse       `json:"proposal"`
	Items       []ProposalItemResponse `json:"items"`
	Assignments []AssignmentResponse   `json:"assignments"`
	Log         []ProposalLogResponse  `json:"log"`
}

// DispatchResponse resultado del despacho.
type DispatchResponse struct {
	Proposal  ProposalResponse   `json:"proposal"`
	Movements []MovementResponse `json:"movements"`
	Complete  bool               `json:"complete"`
}
