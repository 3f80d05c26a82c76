package entity

import "time"

// Estados de la propuesta de surtimiento.
const (
	ProposalGenerated  = "GENERATED"
	ProposalReviewed   = "REVIEWED"
	ProposalInPicking  = "IN_PICKING"
	ProposalDispatched = "DISPATCHED"
	ProposalCancelled  = "CANCELLED"
)

// Estados de un renglón de la propuesta.
const (
	ProposalItemAvailable   = "AVAILABLE"
	ProposalItemPartial     = "PARTIAL"
	ProposalItemUnavailable = "UNAVAILABLE"
	ProposalItemDispatched  = "DISPATCHED"
)

var proposalTransitions = map[string][]string{
	ProposalGenerated: {ProposalReviewed, ProposalCancelled},
	ProposalReviewed:  {ProposalInPicking, ProposalCancelled},
	ProposalInPicking: {ProposalDispatched, ProposalCancelled},
}

// CanProposalTransition indica si la máquina de estados permite from → to.
func CanProposalTransition(from, to string) bool {
	for _, s := range proposalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ProposalTerminal estados sin salida.
func ProposalTerminal(state string) bool {
	return state == ProposalDispatched || state == ProposalCancelled
}

// Proposal plan de asignación que atiende una solicitud. Una solicitud tiene a lo
// más una propuesta activa; las canceladas se conservan como historial.
type Proposal struct {
	ID               string
	RequisitionID    string
	Folio            string // folio de la solicitud
	State            string
	TotalRequested   int64
	TotalAvailable   int64
	TotalProposed    int64
	TotalDispatched  int64
	GeneratedBy      string
	ReviewedBy       string
	ReviewedAt       *time.Time
	PickingStartedBy string
	PickingStartedAt *time.Time
	DispatchedBy     string
	DispatchedAt     *time.Time
	CancelledBy      string
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProposalItem renglón de la propuesta; QuantityAvailable es la foto al generar.
type ProposalItem struct {
	ID                 string
	ProposalID         string
	RequisitionItemID  string
	ProductID          string
	QuantitySolicited  int64
	QuantityAvailable  int64
	QuantityProposed   int64
	QuantityDispatched int64
	State              string
	Notes              string
}

// LotAssignment unidades de una ubicación (BinPlacement) asignadas a un renglón.
// (ProposalItemID, PlacementID) es único; sólo Dispatched/DispatchedAt cambian.
type LotAssignment struct {
	ID             string
	ProposalID     string
	ProposalItemID string
	PlacementID    string
	LotID          string
	BinID          string
	Quantity       int64
	Dispatched     bool
	ReadyForPick   bool
	AssignedAt     time.Time
	DispatchedAt   *time.Time
}

// ProposalLog bitácora de acciones sobre una propuesta.
type ProposalLog struct {
	ID         string
	ProposalID string
	Actor      string
	Action     string
	Details    string
	CreatedAt  time.Time
}

// Acciones registradas en la bitácora.
const (
	ProposalActionGenerated    = "GENERADA"
	ProposalActionReviewed     = "REVISADA"
	ProposalActionPickingStart = "INICIO_SURTIMIENTO"
	ProposalActionDispatched   = "DESPACHADA"
	ProposalActionPartial      = "DESPACHO_PARCIAL"
	ProposalActionCancelled    = "CANCELADA"
)
