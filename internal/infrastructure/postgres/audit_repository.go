package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.ErrorLogRepository       = (*ErrorLogRepo)(nil)
	_ repository.ReconciliationRepository = (*ReconciliationRepo)(nil)
)

// ErrorLogRepo bitácora de renglones rechazados (LogErrorPedido).
type ErrorLogRepo struct {
	q Querier
}

// NewErrorLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewErrorLogRepository(q Querier) *ErrorLogRepo {
	return &ErrorLogRepo{q: q}
}

func (r *ErrorLogRepo) Create(ctx context.Context, e *entity.ErrorLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO error_logs (id, kind, clave, quantity_requested, requisition_id, institution_id,
			user_id, description, alert_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Kind, e.Key, e.QuantityRequested, nullable(e.RequisitionID), nullable(e.InstitutionID),
		e.UserID, e.Description, e.AlertSent, e.CreatedAt,
	)
	return wrapErr("insert error log", err)
}

func (r *ErrorLogRepo) MarkAlertSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `UPDATE error_logs SET alert_sent = true WHERE id = ANY($1::uuid[])`, ids)
	return wrapErr("mark alert sent", err)
}

// List más antiguos primero.
func (r *ErrorLogRepo) List(ctx context.Context, f repository.ErrorLogFilter) ([]*entity.ErrorLog, error) {
	var w where
	if f.Kind != "" {
		w.add(`kind = ?`, f.Kind)
	}
	if f.InstitutionID != "" {
		w.add(`institution_id = ?`, f.InstitutionID)
	}
	if f.UserID != "" {
		w.add(`user_id = ?`, f.UserID)
	}
	if f.From != nil {
		w.add(`created_at >= ?`, *f.From)
	}
	if f.To != nil {
		w.add(`created_at <= ?`, *f.To)
	}
	if f.PendingAlert {
		w.raw(`NOT alert_sent`)
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, kind, clave, quantity_requested, requisition_id, institution_id, user_id, description,
			alert_sent, created_at
		FROM error_logs`+w.String()+` ORDER BY created_at, id`+pageClause(f.Limit, f.Offset), w.args...)
	if err != nil {
		return nil, wrapErr("list error logs", err)
	}
	defer rows.Close()
	var list []*entity.ErrorLog
	for rows.Next() {
		var (
			e                  entity.ErrorLog
			reqID, institution *string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Key, &e.QuantityRequested, &reqID, &institution, &e.UserID,
			&e.Description, &e.AlertSent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		e.RequisitionID = deref(reqID)
		e.InstitutionID = deref(institution)
		list = append(list, &e)
	}
	return list, rows.Err()
}

// ReconciliationRepo bitácora persistente de conciliación.
type ReconciliationRepo struct {
	q Querier
}

// NewReconciliationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReconciliationRepository(q Querier) *ReconciliationRepo {
	return &ReconciliationRepo{q: q}
}

func (r *ReconciliationRepo) Create(ctx context.Context, e *entity.ReconciliationEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO reconciliation_log (id, run_id, finding, lot_id, proposal_id, expected, actual, delta,
			fixed, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.RunID, e.Finding, nullable(e.LotID), nullable(e.ProposalID), e.Expected, e.Actual, e.Delta,
		e.Fixed, e.Details, e.CreatedAt,
	)
	return wrapErr("insert reconciliation entry", err)
}

// List runID vacío devuelve todas las corridas.
func (r *ReconciliationRepo) List(ctx context.Context, runID string, limit, offset int) ([]*entity.ReconciliationEntry, error) {
	var w where
	if runID != "" {
		w.add(`run_id = ?`, runID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, run_id, finding, lot_id, proposal_id, expected, actual, delta, fixed, details, created_at
		FROM reconciliation_log`+w.String()+` ORDER BY created_at, id`+pageClause(limit, offset), w.args...)
	if err != nil {
		return nil, wrapErr("list reconciliation", err)
	}
	defer rows.Close()
	var list []*entity.ReconciliationEntry
	for rows.Next() {
		var (
			e             entity.ReconciliationEntry
			lotID, propID *string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Finding, &lotID, &propID, &e.Expected, &e.Actual, &e.Delta,
			&e.Fixed, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation entry: %w", err)
		}
		e.LotID = deref(lotID)
		e.ProposalID = deref(propID)
		list = append(list, &e)
	}
	return list, rows.Err()
}
