package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.ProposalRepository    = (*ProposalRepo)(nil)
	_ repository.ProposalLogRepository = (*ProposalLogRepo)(nil)
)

// terminalStates estados de propuesta sin salida, en el orden de entity.ProposalTerminal.
var terminalStates = []string{entity.ProposalDispatched, entity.ProposalCancelled}

// ProposalRepo propuestas, renglones y lotes asignados.
type ProposalRepo struct {
	q Querier
}

// NewProposalRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProposalRepository(q Querier) *ProposalRepo {
	return &ProposalRepo{q: q}
}

const (
	proposalColumns = `id, requisition_id, folio, state, total_requested, total_available, total_proposed,
	total_dispatched, generated_by, reviewed_by, reviewed_at, picking_started_by, picking_started_at,
	dispatched_by, dispatched_at, cancelled_by, cancelled_at, created_at, updated_at`
	proposalItemColumns = `pi.id, pi.proposal_id, pi.requisition_item_id, pi.product_id, pi.quantity_solicited,
	pi.quantity_available, pi.quantity_proposed, pi.quantity_dispatched, pi.state, pi.notes`
	assignmentColumns = `id, proposal_id, proposal_item_id, placement_id, lot_id, bin_id, quantity,
	dispatched, ready_for_pick, assigned_at, dispatched_at`
)

func scanProposal(row interface{ Scan(...any) error }) (*entity.Proposal, error) {
	var p entity.Proposal
	err := row.Scan(&p.ID, &p.RequisitionID, &p.Folio, &p.State, &p.TotalRequested, &p.TotalAvailable, &p.TotalProposed,
		&p.TotalDispatched, &p.GeneratedBy, &p.ReviewedBy, &p.ReviewedAt, &p.PickingStartedBy, &p.PickingStartedAt,
		&p.DispatchedBy, &p.DispatchedAt, &p.CancelledBy, &p.CancelledAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func scanAssignment(row interface{ Scan(...any) error }) (*entity.LotAssignment, error) {
	var a entity.LotAssignment
	err := row.Scan(&a.ID, &a.ProposalID, &a.ProposalItemID, &a.PlacementID, &a.LotID, &a.BinID, &a.Quantity,
		&a.Dispatched, &a.ReadyForPick, &a.AssignedAt, &a.DispatchedAt)
	return &a, err
}

// Create una segunda propuesta activa para la misma solicitud → ErrDuplicate (índice parcial).
func (r *ProposalRepo) Create(ctx context.Context, p *entity.Proposal) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO proposals (`+proposalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		p.ID, p.RequisitionID, p.Folio, p.State, p.TotalRequested, p.TotalAvailable, p.TotalProposed,
		p.TotalDispatched, p.GeneratedBy, p.ReviewedBy, p.ReviewedAt, p.PickingStartedBy, p.PickingStartedAt,
		p.DispatchedBy, p.DispatchedAt, p.CancelledBy, p.CancelledAt, p.CreatedAt, p.UpdatedAt,
	)
	return wrapErr("insert proposal", err)
}

func (r *ProposalRepo) Update(ctx context.Context, p *entity.Proposal) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE proposals SET state = $2, total_requested = $3, total_available = $4, total_proposed = $5,
			total_dispatched = $6, reviewed_by = $7, reviewed_at = $8, picking_started_by = $9,
			picking_started_at = $10, dispatched_by = $11, dispatched_at = $12, cancelled_by = $13,
			cancelled_at = $14, updated_at = $15
		WHERE id = $1`,
		p.ID, p.State, p.TotalRequested, p.TotalAvailable, p.TotalProposed,
		p.TotalDispatched, p.ReviewedBy, p.ReviewedAt, p.PickingStartedBy,
		p.PickingStartedAt, p.DispatchedBy, p.DispatchedAt, p.CancelledBy,
		p.CancelledAt, p.UpdatedAt,
	)
	return mustAffect("update proposal", tag, err)
}

func (r *ProposalRepo) GetByID(ctx context.Context, id string) (*entity.Proposal, error) {
	p, err := scanProposal(r.q.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
	return noRows(p, err, "get proposal")
}

func (r *ProposalRepo) GetForUpdate(ctx context.Context, id string) (*entity.Proposal, error) {
	p, err := scanProposal(r.q.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id))
	return noRows(p, err, "lock proposal")
}

func (r *ProposalRepo) GetActiveByRequisition(ctx context.Context, requisitionID string) (*entity.Proposal, error) {
	p, err := scanProposal(r.q.QueryRow(ctx, `SELECT `+proposalColumns+`
		FROM proposals WHERE requisition_id = $1 AND NOT (state = ANY($2))`, requisitionID, terminalStates))
	return noRows(p, err, "get active proposal")
}

// List más recientes primero.
func (r *ProposalRepo) List(ctx context.Context, f repository.ProposalFilter) ([]*entity.Proposal, error) {
	var w where
	if f.RequisitionID != "" {
		w.add(`requisition_id = ?`, f.RequisitionID)
	}
	if len(f.States) > 0 {
		w.add(`state = ANY(?)`, f.States)
	}
	rows, err := r.q.Query(ctx, `SELECT `+proposalColumns+` FROM proposals`+w.String()+
		` ORDER BY created_at DESC`+pageClause(f.Limit, f.Offset), w.args...)
	if err != nil {
		return nil, wrapErr("list proposals", err)
	}
	defer rows.Close()
	var list []*entity.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *ProposalRepo) CreateItem(ctx context.Context, it *entity.ProposalItem) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO proposal_items (id, proposal_id, requisition_item_id, product_id, quantity_solicited,
			quantity_available, quantity_proposed, quantity_dispatched, state, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		it.ID, it.ProposalID, it.RequisitionItemID, it.ProductID, it.QuantitySolicited,
		it.QuantityAvailable, it.QuantityProposed, it.QuantityDispatched, it.State, it.Notes,
	)
	return wrapErr("insert proposal item", err)
}

func (r *ProposalRepo) UpdateItem(ctx context.Context, it *entity.ProposalItem) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE proposal_items SET quantity_available = $2, quantity_proposed = $3, quantity_dispatched = $4,
			state = $5, notes = $6
		WHERE id = $1`,
		it.ID, it.QuantityAvailable, it.QuantityProposed, it.QuantityDispatched, it.State, it.Notes,
	)
	return mustAffect("update proposal item", tag, err)
}

// ListItems en el orden de los renglones de la solicitud.
func (r *ProposalRepo) ListItems(ctx context.Context, proposalID string) ([]*entity.ProposalItem, error) {
	rows, err := r.q.Query(ctx, `SELECT `+proposalItemColumns+`
		FROM proposal_items pi JOIN requisition_items ri ON ri.id = pi.requisition_item_id
		WHERE pi.proposal_id = $1 ORDER BY ri.position, pi.id`, proposalID)
	if err != nil {
		return nil, wrapErr("list proposal items", err)
	}
	defer rows.Close()
	var list []*entity.ProposalItem
	for rows.Next() {
		var it entity.ProposalItem
		if err := rows.Scan(&it.ID, &it.ProposalID, &it.RequisitionItemID, &it.ProductID, &it.QuantitySolicited,
			&it.QuantityAvailable, &it.QuantityProposed, &it.QuantityDispatched, &it.State, &it.Notes); err != nil {
			return nil, fmt.Errorf("scan proposal item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

// DeleteItems exige que las asignaciones ya se hayan borrado (FK).
func (r *ProposalRepo) DeleteItems(ctx context.Context, proposalID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM proposal_items WHERE proposal_id = $1`, proposalID)
	return wrapErr("delete proposal items", err)
}

// CreateAssignment cantidad no positiva → ErrInvalidQuantity; renglón inexistente → ErrNotFound;
// segunda asignación del mismo renglón a la misma ubicación → ErrDuplicate.
func (r *ProposalRepo) CreateAssignment(ctx context.Context, a *entity.LotAssignment) error {
	if a.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO lot_assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.ProposalID, a.ProposalItemID, a.PlacementID, a.LotID, a.BinID, a.Quantity,
		a.Dispatched, a.ReadyForPick, a.AssignedAt, a.DispatchedAt,
	)
	return wrapErr("insert assignment", err)
}

func (r *ProposalRepo) UpdateAssignment(ctx context.Context, a *entity.LotAssignment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE lot_assignments SET quantity = $2, dispatched = $3, ready_for_pick = $4, dispatched_at = $5
		WHERE id = $1`,
		a.ID, a.Quantity, a.Dispatched, a.ReadyForPick, a.DispatchedAt,
	)
	return mustAffect("update assignment", tag, err)
}

func (r *ProposalRepo) DeleteAssignment(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM lot_assignments WHERE id = $1`, id)
	return wrapErr("delete assignment", err)
}

func (r *ProposalRepo) DeleteAssignments(ctx context.Context, proposalID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM lot_assignments WHERE proposal_id = $1`, proposalID)
	return wrapErr("delete assignments", err)
}

// ListAssignments en orden de asignación.
func (r *ProposalRepo) ListAssignments(ctx context.Context, proposalID string) ([]*entity.LotAssignment, error) {
	rows, err := r.q.Query(ctx, `SELECT `+assignmentColumns+`
		FROM lot_assignments WHERE proposal_id = $1 ORDER BY assigned_at, id`, proposalID)
	if err != nil {
		return nil, wrapErr("list assignments", err)
	}
	defer rows.Close()
	var list []*entity.LotAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *ProposalRepo) PendingReservedByLot(ctx context.Context) (map[string]int64, error) {
	return r.sums(ctx, "pending reserved", `
		SELECT a.lot_id::text, SUM(a.quantity)::bigint
		FROM lot_assignments a JOIN proposals p ON p.id = a.proposal_id
		WHERE NOT a.dispatched AND NOT (p.state = ANY($1))
		GROUP BY a.lot_id`)
}

func (r *ProposalRepo) ReservedByTerminalProposals(ctx context.Context) (map[string]int64, error) {
	return r.sums(ctx, "terminal reserved", `
		SELECT p.id::text, SUM(a.quantity)::bigint
		FROM lot_assignments a JOIN proposals p ON p.id = a.proposal_id
		WHERE NOT a.dispatched AND p.state = ANY($1)
		GROUP BY p.id`)
}

func (r *ProposalRepo) sums(ctx context.Context, op, sql string) (map[string]int64, error) {
	rows, err := r.q.Query(ctx, sql, terminalStates)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var (
			id  string
			sum int64
		)
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out[id] = sum
	}
	return out, rows.Err()
}

// FindDuplicateAssignments IDs de la más antigua a la más reciente.
func (r *ProposalRepo) FindDuplicateAssignments(ctx context.Context) ([]repository.DuplicateAssignment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT proposal_id::text, proposal_item_id::text, placement_id::text,
			array_agg(id::text ORDER BY assigned_at, id)
		FROM lot_assignments
		GROUP BY proposal_id, proposal_item_id, placement_id
		HAVING COUNT(*) > 1
		ORDER BY MIN(assigned_at)`)
	if err != nil {
		return nil, wrapErr("find duplicate assignments", err)
	}
	defer rows.Close()
	var out []repository.DuplicateAssignment
	for rows.Next() {
		var d repository.DuplicateAssignment
		if err := rows.Scan(&d.ProposalID, &d.ProposalItemID, &d.PlacementID, &d.AssignmentIDs); err != nil {
			return nil, fmt.Errorf("scan duplicate assignment: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ProposalLogRepo bitácora de propuestas.
type ProposalLogRepo struct {
	q Querier
}

// NewProposalLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProposalLogRepository(q Querier) *ProposalLogRepo {
	return &ProposalLogRepo{q: q}
}

func (r *ProposalLogRepo) Create(ctx context.Context, l *entity.ProposalLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO proposal_logs (id, proposal_id, actor, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.ProposalID, l.Actor, l.Action, l.Details, l.CreatedAt,
	)
	return wrapErr("insert proposal log", err)
}

func (r *ProposalLogRepo) ListByProposal(ctx context.Context, proposalID string) ([]*entity.ProposalLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, proposal_id, actor, action, details, created_at
		FROM proposal_logs WHERE proposal_id = $1 ORDER BY created_at, id`, proposalID)
	if err != nil {
		return nil, wrapErr("list proposal logs", err)
	}
	defer rows.Close()
	var list []*entity.ProposalLog
	for rows.Next() {
		var l entity.ProposalLog
		if err := rows.Scan(&l.ID, &l.ProposalID, &l.Actor, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal log: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
