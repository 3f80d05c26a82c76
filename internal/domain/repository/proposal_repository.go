package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// ProposalFilter filtros de listado.
type ProposalFilter struct {
	RequisitionID string
	States        []string
	Limit         int
	Offset        int
}

// DuplicateAssignment par (renglón, ubicación) con más de una asignación.
// IDs ordenados por fecha de asignación: el primero es el que se conserva.
type DuplicateAssignment struct {
	ProposalID     string
	ProposalItemID string
	PlacementID    string
	AssignmentIDs  []string
}

// ProposalRepository puerto de propuestas, renglones y lotes asignados.
type ProposalRepository interface {
	Create(ctx context.Context, p *entity.Proposal) error
	Update(ctx context.Context, p *entity.Proposal) error
	GetByID(ctx context.Context, id string) (*entity.Proposal, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Proposal, error)
	// GetActiveByRequisition propuesta no terminal de la solicitud o nil.
	GetActiveByRequisition(ctx context.Context, requisitionID string) (*entity.Proposal, error)
	List(ctx context.Context, f ProposalFilter) ([]*entity.Proposal, error)

	CreateItem(ctx context.Context, it *entity.ProposalItem) error
	UpdateItem(ctx context.Context, it *entity.ProposalItem) error
	ListItems(ctx context.Context, proposalID string) ([]*entity.ProposalItem, error)
	DeleteItems(ctx context.Context, proposalID string) error

	CreateAssignment(ctx context.Context, a *entity.LotAssignment) error
	UpdateAssignment(ctx context.Context, a *entity.LotAssignment) error
	DeleteAssignment(ctx context.Context, id string) error
	DeleteAssignments(ctx context.Context, proposalID string) error
	// ListAssignments en orden de asignación.
	ListAssignments(ctx context.Context, proposalID string) ([]*entity.LotAssignment, error)
	// PendingReservedByLot Σ de asignaciones no despachadas en propuestas no terminales, por lote.
	PendingReservedByLot(ctx context.Context) (map[string]int64, error)
	// ReservedByTerminalProposals Σ de asignaciones no despachadas en propuestas terminales, por propuesta.
	ReservedByTerminalProposals(ctx context.Context) (map[string]int64, error)
	FindDuplicateAssignments(ctx context.Context) ([]DuplicateAssignment, error)
}

// ProposalLogRepository bitácora de propuestas.
type ProposalLogRepository interface {
	Create(ctx context.Context, l *entity.ProposalLog) error
	ListByProposal(ctx context.Context, proposalID string) ([]*entity.ProposalLog, error)
}
