package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.RequisitionRepository = (*RequisitionRepo)(nil)
	_ repository.FolioRepository       = (*FolioRepo)(nil)
)

// RequisitionRepo solicitudes y sus renglones.
type RequisitionRepo struct {
	q Querier
}

// NewRequisitionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRequisitionRepository(q Querier) *RequisitionRepo {
	return &RequisitionRepo{q: q}
}

const (
	requisitionColumns = `id, folio, institution_id, warehouse_id, origin, state, scheduled_delivery, observations,
	validation_notes, requested_by, validated_by, validated_at, created_at, updated_at`
	requisitionItemColumns = `id, requisition_id, product_id, position, quantity_requested, quantity_approved, state, justification`
)

func scanRequisition(row interface{ Scan(...any) error }) (*entity.Requisition, error) {
	var (
		r           entity.Requisition
		warehouseID *string
	)
	err := row.Scan(&r.ID, &r.Folio, &r.InstitutionID, &warehouseID, &r.Origin, &r.State, &r.ScheduledDelivery, &r.Observations,
		&r.ValidationNotes, &r.RequestedBy, &r.ValidatedBy, &r.ValidatedAt, &r.CreatedAt, &r.UpdatedAt)
	r.WarehouseID = deref(warehouseID)
	return &r, err
}

// Create inserta cabecera y renglones; folio o producto repetido → ErrDuplicate.
// Debe llamarse dentro de una tx para que la solicitud sea atómica.
func (r *RequisitionRepo) Create(ctx context.Context, req *entity.Requisition) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO requisitions (`+requisitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		req.ID, req.Folio, req.InstitutionID, nullable(req.WarehouseID), req.Origin, req.State, req.ScheduledDelivery,
		req.Observations, req.ValidationNotes, req.RequestedBy, req.ValidatedBy, req.ValidatedAt, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert requisition", err)
	}
	for _, it := range req.Items {
		it.RequisitionID = req.ID
		_, err := r.q.Exec(ctx, `
			INSERT INTO requisition_items (`+requisitionItemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, it.RequisitionID, it.ProductID, it.Position, it.QuantityRequested, it.QuantityApproved, it.State, it.Justification,
		)
		if err != nil {
			return wrapErr("insert requisition item", err)
		}
	}
	return nil
}

func (r *RequisitionRepo) get(ctx context.Context, op, sql string, args ...any) (*entity.Requisition, error) {
	req, err := scanRequisition(r.q.QueryRow(ctx, sql, args...))
	if req, err = noRows(req, err, op); err != nil || req == nil {
		return req, err
	}
	if err := r.loadItems(ctx, []*entity.Requisition{req}); err != nil {
		return nil, err
	}
	return req, nil
}

// GetByID incluye renglones ordenados por posición.
func (r *RequisitionRepo) GetByID(ctx context.Context, id string) (*entity.Requisition, error) {
	return r.get(ctx, "get requisition", `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1`, id)
}

func (r *RequisitionRepo) GetForUpdate(ctx context.Context, id string) (*entity.Requisition, error) {
	return r.get(ctx, "lock requisition", `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1 FOR UPDATE`, id)
}

func (r *RequisitionRepo) GetByFolio(ctx context.Context, folio string) (*entity.Requisition, error) {
	return r.get(ctx, "get requisition by folio", `SELECT `+requisitionColumns+` FROM requisitions WHERE folio = $1`, folio)
}

// Update guarda estado y campos de validación; los renglones van por UpdateItem.
func (r *RequisitionRepo) Update(ctx context.Context, req *entity.Requisition) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE requisitions SET state = $2, scheduled_delivery = $3, observations = $4, validation_notes = $5,
			validated_by = $6, validated_at = $7, updated_at = $8
		WHERE id = $1`,
		req.ID, req.State, req.ScheduledDelivery, req.Observations, req.ValidationNotes,
		req.ValidatedBy, req.ValidatedAt, req.UpdatedAt,
	)
	return mustAffect("update requisition", tag, err)
}

func (r *RequisitionRepo) UpdateItem(ctx context.Context, it *entity.RequisitionItem) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE requisition_items SET quantity_approved = $2, state = $3, justification = $4
		WHERE id = $1`,
		it.ID, it.QuantityApproved, it.State, it.Justification,
	)
	return mustAffect("update requisition item", tag, err)
}

// List más recientes primero.
func (r *RequisitionRepo) List(ctx context.Context, f repository.RequisitionFilter) ([]*entity.Requisition, error) {
	var w where
	if f.InstitutionID != "" {
		w.add(`institution_id = ?`, f.InstitutionID)
	}
	if f.State != "" {
		w.add(`state = ?`, f.State)
	}
	if f.From != nil {
		w.add(`created_at >= ?`, *f.From)
	}
	if f.To != nil {
		w.add(`created_at <= ?`, *f.To)
	}
	return r.list(ctx, `SELECT `+requisitionColumns+` FROM requisitions`+w.String()+
		` ORDER BY created_at DESC`+pageClause(f.Limit, f.Offset), w.args...)
}

// FindByObservation coincidencia literal de marker (sin comodines).
func (r *RequisitionRepo) FindByObservation(ctx context.Context, userID, marker string, from, to time.Time) ([]*entity.Requisition, error) {
	return r.list(ctx, `SELECT `+requisitionColumns+` FROM requisitions
		WHERE requested_by = $1 AND strpos(observations, $2) > 0 AND created_at BETWEEN $3 AND $4
		ORDER BY created_at`, userID, marker, from, to)
}

// ClaimExternalFolio se apoya en la llave primaria de external_folios: de dos cargas
// simultáneas del mismo folio sólo una inserta o renueva el registro.
func (r *RequisitionRepo) ClaimExternalFolio(ctx context.Context, userID, folio, requisitionID string, at, reuseAfter time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO external_folios (requested_by, external_folio, requisition_id, claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (requested_by, external_folio) DO UPDATE
		SET requisition_id = EXCLUDED.requisition_id, claimed_at = EXCLUDED.claimed_at
		WHERE external_folios.claimed_at < $5`,
		userID, folio, requisitionID, at, reuseAfter)
	if err != nil {
		return false, wrapErr("claim external folio", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RequisitionRepo) list(ctx context.Context, sql string, args ...any) ([]*entity.Requisition, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr("list requisitions", err)
	}
	var list []*entity.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan requisition: %w", err)
		}
		list = append(list, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// loadItems carga los renglones de todas las solicitudes en una sola consulta.
func (r *RequisitionRepo) loadItems(ctx context.Context, reqs []*entity.Requisition) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]string, len(reqs))
	byID := make(map[string]*entity.Requisition, len(reqs))
	for i, req := range reqs {
		ids[i] = req.ID
		req.Items = nil
		byID[req.ID] = req
	}
	rows, err := r.q.Query(ctx, `SELECT `+requisitionItemColumns+`
		FROM requisition_items WHERE requisition_id = ANY($1::uuid[]) ORDER BY requisition_id, position`, ids)
	if err != nil {
		return wrapErr("list requisition items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.RequisitionItem
		if err := rows.Scan(&it.ID, &it.RequisitionID, &it.ProductID, &it.Position,
			&it.QuantityRequested, &it.QuantityApproved, &it.State, &it.Justification); err != nil {
			return fmt.Errorf("scan requisition item: %w", err)
		}
		if req := byID[it.RequisitionID]; req != nil {
			req.Items = append(req.Items, &it)
		}
	}
	return rows.Err()
}

// FolioRepo secuencias anuales de folios.
type FolioRepo struct {
	q Querier
}

// NewFolioRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFolioRepository(q Querier) *FolioRepo {
	return &FolioRepo{q: q}
}

// Next el upsert bloquea la fila (prefix, year) hasta el fin de la tx, así dos
// solicitudes concurrentes nunca obtienen el mismo número.
func (r *FolioRepo) Next(ctx context.Context, prefix string, year int) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		INSERT INTO folio_sequences (prefix, year, last) VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year) DO UPDATE SET last = folio_sequences.last + 1
		RETURNING last`, prefix, year).Scan(&n)
	if err != nil {
		return 0, wrapErr("next folio", err)
	}
	return n, nil
}
