package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo kardex: sólo inserción, salvo la marca de anulación.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

var movementFields = []string{
	"id", "seq", "lot_id", "bin_id", "kind", "quantity", "quantity_before", "quantity_after",
	"reason", "reference", "folio", "requisition_id", "proposal_id", "destination_institution_id",
	"compensates_id", "created_by", "created_at", "voided", "voided_at", "voided_by",
}

func movementColumns(alias string) string {
	if alias == "" {
		return strings.Join(movementFields, ", ")
	}
	cols := make([]string, len(movementFields))
	for i, f := range movementFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

func scanMovement(row interface{ Scan(...any) error }) (*entity.Movement, error) {
	var (
		m                                        entity.Movement
		kind                                     string
		binID, reqID, propID, destID, compensate *string
	)
	err := row.Scan(&m.ID, &m.Seq, &m.LotID, &binID, &kind, &m.Quantity, &m.QuantityBefore, &m.QuantityAfter,
		&m.Reason, &m.Reference, &m.Folio, &reqID, &propID, &destID,
		&compensate, &m.CreatedBy, &m.CreatedAt, &m.Voided, &m.VoidedAt, &m.VoidedBy)
	m.Kind = entity.MovementKind(kind)
	m.BinID = deref(binID)
	m.RequisitionID = deref(reqID)
	m.ProposalID = deref(propID)
	m.DestinationInstitutionID = deref(destID)
	m.CompensatesID = deref(compensate)
	return &m, err
}

// Create asigna Seq desde la secuencia; lote inexistente → ErrNotFound.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO movements (id, lot_id, bin_id, kind, quantity, quantity_before, quantity_after,
			reason, reference, folio, requisition_id, proposal_id, destination_institution_id,
			compensates_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING seq`,
		m.ID, m.LotID, nullable(m.BinID), string(m.Kind), m.Quantity, m.QuantityBefore, m.QuantityAfter,
		m.Reason, m.Reference, m.Folio, nullable(m.RequisitionID), nullable(m.ProposalID), nullable(m.DestinationInstitutionID),
		nullable(m.CompensatesID), m.CreatedBy, m.CreatedAt,
	).Scan(&m.Seq)
	return wrapErr("insert movement", err)
}

func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns("")+` FROM movements WHERE id = $1`, id))
	return noRows(m, err, "get movement")
}

func (r *MovementRepo) GetForUpdate(ctx context.Context, id string) (*entity.Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns("")+` FROM movements WHERE id = $1 FOR UPDATE`, id))
	return noRows(m, err, "lock movement")
}

func (r *MovementRepo) MarkVoided(ctx context.Context, id, actor string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE movements SET voided = true, voided_at = $2, voided_by = $3 WHERE id = $1`, id, at, actor)
	return mustAffect("void movement", tag, err)
}

// List ordenado por (created_at, seq).
func (r *MovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	var w where
	if f.LotID != "" {
		w.add(`m.lot_id = ?`, f.LotID)
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		w.add(`m.kind = ANY(?)`, kinds)
	}
	if f.Folio != "" {
		w.add(`m.folio = ?`, f.Folio)
	}
	if f.InstitutionID != "" {
		w.add(`l.institution_id = ?`, f.InstitutionID)
	}
	if f.From != nil {
		w.add(`m.created_at >= ?`, *f.From)
	}
	if f.To != nil {
		w.add(`m.created_at <= ?`, *f.To)
	}
	if !f.IncludeVoided {
		w.raw(`NOT m.voided`)
	}
	rows, err := r.q.Query(ctx, `SELECT `+movementColumns("m")+`
		FROM movements m JOIN lots l ON l.id = m.lot_id`+w.String()+
		` ORDER BY m.created_at, m.seq`+pageClause(f.Limit, f.Offset), w.args...)
	if err != nil {
		return nil, wrapErr("list movements", err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// SumExitsByFolio salidas no anuladas por lote con el folio dado.
func (r *MovementRepo) SumExitsByFolio(ctx context.Context, folio string) (map[string]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT lot_id::text, SUM(quantity)::bigint FROM movements
		WHERE kind = $1 AND folio = $2 AND NOT voided
		GROUP BY lot_id`, string(entity.MovementExit), folio)
	if err != nil {
		return nil, wrapErr("sum exits", err)
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var (
			lotID string
			sum   int64
		)
		if err := rows.Scan(&lotID, &sum); err != nil {
			return nil, fmt.Errorf("scan exit sum: %w", err)
		}
		out[lotID] = sum
	}
	return out, rows.Err()
}
