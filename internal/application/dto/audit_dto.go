package dto

import "time"

// ReconcileRequest DryRun sólo reporta.
type ReconcileRequest struct {
	DryRun bool `json:"dry_run"`
}

// ErrorLogResponse renglón de la bitácora de errores.
type ErrorLogResponse struct {
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	Key               string    `json:"key"`
	QuantityRequested int64     `json:"quantity_requested"`
	RequisitionID     string    `json:"requisition_id,omitempty"`
	InstitutionID     string    `json:"institution_id"`
	UserID            string    `json:"user_id"`
	Description       string    `json:"description,omitempty"`
	AlertSent         bool      `json:"alert_sent"`
	CreatedAt         time.Time `json:"created_at"`
}

// ErrorSummaryResponse conteos agrupados.
type ErrorSummaryResponse struct {
	Total         int            `json:"total"`
	ByKind        map[string]int `json:"by_kind"`
	ByInstitution map[string]int `json:"by_institution"`
	ByUser        map[string]int `json:"by_user"`
	PendingAlerts int            `json:"pending_alerts"`
}

// ReconciliationEntryResponse renglón persistido de una corrida.
type ReconciliationEntryResponse struct {
	RunID      string    `json:"run_id"`
	Finding    string    `json:"finding"`
	LotID      string    `json:"lot_id,omitempty"`
	ProposalID string    `json:"proposal_id,omitempty"`
	Expected   int64     `json:"expected"`
	Actual     int64     `json:"actual"`
	Delta      int64     `json:"delta"`
	Fixed      bool      `json:"fixed"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
