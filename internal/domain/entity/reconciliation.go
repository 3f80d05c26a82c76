package entity

import "time"

// Hallazgos de auditoría.
const (
	FindingLotTotalsDrift      = "LOT_TOTALS_DRIFT"
	FindingReservedDrift       = "RESERVED_DRIFT"
	FindingTerminalReservation = "TERMINAL_PROPOSAL_RESERVATION"
	FindingMissingExit         = "DISPATCH_WITHOUT_EXIT"
	FindingDuplicateAssignment = "DUPLICATE_ASSIGNMENT"
	FindingDuplicatePlacement  = "DUPLICATE_PLACEMENT"
)

// ReconciliationEntry registro persistente de la bitácora de conciliación.
type ReconciliationEntry struct {
	ID         string
	RunID      string
	Finding    string
	LotID      string
	ProposalID string
	Expected   int64
	Actual     int64
	Delta      int64
	Fixed      bool
	Details    string
	CreatedAt  time.Time
}
