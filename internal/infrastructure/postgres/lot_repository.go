package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.LotRepository            = (*LotRepo)(nil)
	_ repository.PlacementRepository      = (*PlacementRepo)(nil)
	_ repository.CountRepository          = (*CountRepo)(nil)
	_ repository.PlacementAuditRepository = (*PlacementAuditRepo)(nil)
)

// LotRepo lotes. Los métodos *ForUpdate sólo bloquean dentro de una tx.
type LotRepo struct {
	q Querier
}

// NewLotRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewLotRepository(q Querier) *LotRepo {
	return &LotRepo{q: q}
}

const lotColumns = `id, product_id, institution_id, lot_number, quantity_initial, quantity_available,
	quantity_reserved, unit_price, total_value, expiry_date, manufacture_date, reception_date, state,
	state_reason, state_changed_at, state_changed_by, supply_order_id, warehouse_id, procurement,
	created_by, created_at, updated_at`

func scanLot(row interface{ Scan(...any) error }) (*entity.Lot, error) {
	var (
		l                  entity.Lot
		state              int16
		order, warehouseID *string
	)
	err := row.Scan(&l.ID, &l.ProductID, &l.InstitutionID, &l.LotNumber, &l.QuantityInitial, &l.QuantityAvailable,
		&l.QuantityReserved, &l.UnitPrice, &l.TotalValue, &l.ExpiryDate, &l.ManufactureDate, &l.ReceptionDate, &state,
		&l.StateReason, &l.StateChangedAt, &l.StateChangedBy, &order, &warehouseID, &l.Procurement,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	l.State = entity.LotState(state)
	l.SupplyOrderID = deref(order)
	l.WarehouseID = deref(warehouseID)
	return &l, err
}

func (r *LotRepo) queryLots(ctx context.Context, op, sql string, args ...any) ([]*entity.Lot, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	var list []*entity.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Create (producto, institución, lote) repetido → ErrDuplicate.
func (r *LotRepo) Create(ctx context.Context, l *entity.Lot) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO lots (`+lotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		l.ID, l.ProductID, l.InstitutionID, l.LotNumber, l.QuantityInitial, l.QuantityAvailable,
		l.QuantityReserved, l.UnitPrice, l.TotalValue, l.ExpiryDate, l.ManufactureDate, l.ReceptionDate, int16(l.State),
		l.StateReason, l.StateChangedAt, l.StateChangedBy, nullable(l.SupplyOrderID), nullable(l.WarehouseID), l.Procurement,
		l.CreatedBy, l.CreatedAt, l.UpdatedAt,
	)
	return wrapErr("insert lot", err)
}

// Update escribe existencias, estado y metadatos; la identidad no cambia.
func (r *LotRepo) Update(ctx context.Context, l *entity.Lot) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE lots SET quantity_initial = $2, quantity_available = $3, quantity_reserved = $4,
			unit_price = $5, total_value = $6, expiry_date = $7, manufacture_date = $8, reception_date = $9,
			state = $10, state_reason = $11, state_changed_at = $12, state_changed_by = $13,
			supply_order_id = $14, warehouse_id = $15, procurement = $16, updated_at = $17
		WHERE id = $1`,
		l.ID, l.QuantityInitial, l.QuantityAvailable, l.QuantityReserved,
		l.UnitPrice, l.TotalValue, l.ExpiryDate, l.ManufactureDate, l.ReceptionDate,
		int16(l.State), l.StateReason, l.StateChangedAt, l.StateChangedBy,
		nullable(l.SupplyOrderID), nullable(l.WarehouseID), l.Procurement, l.UpdatedAt,
	)
	return mustAffect("update lot", tag, err)
}

func (r *LotRepo) CreateStateChange(ctx context.Context, c *entity.LotStateChange) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO lot_state_changes (id, lot_id, from_state, to_state, reason, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.LotID, int16(c.From), int16(c.To), c.Reason, c.ChangedBy, c.ChangedAt,
	)
	return wrapErr("insert lot state change", err)
}

func (r *LotRepo) ListStateChanges(ctx context.Context, lotID string) ([]*entity.LotStateChange, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, lot_id, from_state, to_state, reason, changed_by, changed_at
		FROM lot_state_changes WHERE lot_id = $1 ORDER BY changed_at, id`, lotID)
	if err != nil {
		return nil, wrapErr("list lot state changes", err)
	}
	defer rows.Close()
	var list []*entity.LotStateChange
	for rows.Next() {
		var (
			c        entity.LotStateChange
			from, to int16
		)
		if err := rows.Scan(&c.ID, &c.LotID, &from, &to, &c.Reason, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan lot state change: %w", err)
		}
		c.From, c.To = entity.LotState(from), entity.LotState(to)
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *LotRepo) GetByID(ctx context.Context, id string) (*entity.Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id))
	return noRows(l, err, "get lot")
}

func (r *LotRepo) GetForUpdate(ctx context.Context, id string) (*entity.Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1 FOR UPDATE`, id))
	return noRows(l, err, "lock lot")
}

func (r *LotRepo) GetByKey(ctx context.Context, productID, institutionID, lotNumber string) (*entity.Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, `SELECT `+lotColumns+`
		FROM lots WHERE product_id = $1 AND institution_id = $2 AND lot_number = $3`,
		productID, institutionID, lotNumber))
	return noRows(l, err, "get lot by key")
}

func eligibleWhere(q repository.EligibleLotQuery) *where {
	w := &where{}
	w.add(`product_id = ?`, q.ProductID)
	w.add(`state = ?`, int16(entity.LotStateAvailable))
	w.raw(`quantity_available - quantity_reserved > 0`)
	w.add(`expiry_date >= ?::date`, q.MinExpiry)
	if q.InstitutionID != "" {
		w.add(`institution_id = ?`, q.InstitutionID)
	}
	if q.ExcludeInstitution != "" {
		w.add(`institution_id <> ?`, q.ExcludeInstitution)
	}
	return w
}

// ListEligibleForUpdate orden FEFO (caducidad, recepción, id) y bloqueo de las filas
// en ese mismo orden, lo que evita interbloqueos entre generadores concurrentes.
func (r *LotRepo) ListEligibleForUpdate(ctx context.Context, q repository.EligibleLotQuery) ([]*entity.Lot, error) {
	w := eligibleWhere(q)
	return r.queryLots(ctx, "lock eligible lots", `SELECT `+lotColumns+` FROM lots`+w.String()+
		` ORDER BY expiry_date, reception_date, id FOR UPDATE`, w.args...)
}

func (r *LotRepo) ListEligible(ctx context.Context, q repository.EligibleLotQuery) ([]*entity.Lot, error) {
	w := eligibleWhere(q)
	return r.queryLots(ctx, "list eligible lots", `SELECT `+lotColumns+` FROM lots`+w.String()+
		` ORDER BY expiry_date, reception_date, id`, w.args...)
}

// List ordenado por caducidad e id.
func (r *LotRepo) List(ctx context.Context, f repository.LotFilter) ([]*entity.Lot, error) {
	var w where
	if f.ProductID != "" {
		w.add(`product_id = ?`, f.ProductID)
	}
	if f.InstitutionID != "" {
		w.add(`institution_id = ?`, f.InstitutionID)
	}
	if len(f.States) > 0 {
		states := make([]int16, len(f.States))
		for i, s := range f.States {
			states[i] = int16(s)
		}
		w.add(`state = ANY(?)`, states)
	}
	if f.ExpiryFrom != nil {
		w.add(`expiry_date >= ?::date`, *f.ExpiryFrom)
	}
	if f.ExpiryTo != nil {
		w.add(`expiry_date <= ?::date`, *f.ExpiryTo)
	}
	if f.OnlyWithStock {
		w.raw(`quantity_available > 0`)
	}
	return r.queryLots(ctx, "list lots", `SELECT `+lotColumns+` FROM lots`+w.String()+
		` ORDER BY expiry_date, id`+pageClause(f.Limit, f.Offset), w.args...)
}

// PlacementRepo distribución lote-ubicación.
type PlacementRepo struct {
	q Querier
}

// NewPlacementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPlacementRepository(q Querier) *PlacementRepo {
	return &PlacementRepo{q: q}
}

const placementColumns = `id, lot_id, bin_id, quantity, quantity_reserved, assigned_by, created_at, updated_at`

func scanPlacement(row interface{ Scan(...any) error }) (*entity.BinPlacement, error) {
	var p entity.BinPlacement
	err := row.Scan(&p.ID, &p.LotID, &p.BinID, &p.Quantity, &p.QuantityReserved, &p.AssignedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *PlacementRepo) queryPlacements(ctx context.Context, op, sql string, args ...any) ([]*entity.BinPlacement, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	var list []*entity.BinPlacement
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Create (lote, ubicación) repetido → ErrDuplicate; lote o ubicación inexistente → ErrNotFound.
func (r *PlacementRepo) Create(ctx context.Context, p *entity.BinPlacement) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO bin_placements (`+placementColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.LotID, p.BinID, p.Quantity, p.QuantityReserved, p.AssignedBy, p.CreatedAt, p.UpdatedAt,
	)
	return wrapErr("insert placement", err)
}

func (r *PlacementRepo) Update(ctx context.Context, p *entity.BinPlacement) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE bin_placements SET quantity = $2, quantity_reserved = $3, assigned_by = $4, updated_at = $5
		WHERE id = $1`,
		p.ID, p.Quantity, p.QuantityReserved, p.AssignedBy, p.UpdatedAt,
	)
	return mustAffect("update placement", tag, err)
}

func (r *PlacementRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM bin_placements WHERE id = $1`, id)
	return wrapErr("delete placement", err)
}

func (r *PlacementRepo) GetByID(ctx context.Context, id string) (*entity.BinPlacement, error) {
	p, err := scanPlacement(r.q.QueryRow(ctx, `SELECT `+placementColumns+` FROM bin_placements WHERE id = $1`, id))
	return noRows(p, err, "get placement")
}

func (r *PlacementRepo) GetForUpdate(ctx context.Context, id string) (*entity.BinPlacement, error) {
	p, err := scanPlacement(r.q.QueryRow(ctx, `SELECT `+placementColumns+` FROM bin_placements WHERE id = $1 FOR UPDATE`, id))
	return noRows(p, err, "lock placement")
}

func (r *PlacementRepo) Get(ctx context.Context, lotID, binID string) (*entity.BinPlacement, error) {
	p, err := scanPlacement(r.q.QueryRow(ctx, `SELECT `+placementColumns+`
		FROM bin_placements WHERE lot_id = $1 AND bin_id = $2 ORDER BY created_at, id LIMIT 1`, lotID, binID))
	return noRows(p, err, "get placement by bin")
}

// ListByLot la más antigua primero.
func (r *PlacementRepo) ListByLot(ctx context.Context, lotID string) ([]*entity.BinPlacement, error) {
	return r.queryPlacements(ctx, "list placements", `SELECT `+placementColumns+`
		FROM bin_placements WHERE lot_id = $1 ORDER BY created_at, id`, lotID)
}

func (r *PlacementRepo) ListByLotForUpdate(ctx context.Context, lotID string) ([]*entity.BinPlacement, error) {
	return r.queryPlacements(ctx, "lock placements", `SELECT `+placementColumns+`
		FROM bin_placements WHERE lot_id = $1 ORDER BY created_at, id FOR UPDATE`, lotID)
}

func (r *PlacementRepo) ListByBin(ctx context.Context, binID string) ([]*entity.BinPlacement, error) {
	return r.queryPlacements(ctx, "list placements by bin", `SELECT `+placementColumns+`
		FROM bin_placements WHERE bin_id = $1 ORDER BY created_at, id`, binID)
}

func (r *PlacementRepo) SumByLot(ctx context.Context, lotID string) (int64, error) {
	var sum int64
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0)::bigint FROM bin_placements WHERE lot_id = $1`, lotID).Scan(&sum)
	if err != nil {
		return 0, wrapErr("sum placements", err)
	}
	return sum, nil
}

// CountRepo conteos físicos; a lo más uno abierto por ubicación (índice parcial).
type CountRepo struct {
	q Querier
}

// NewCountRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCountRepository(q Querier) *CountRepo {
	return &CountRepo{q: q}
}

const countColumns = `id, placement_id, lot_id, bin_id, system_quantity, first_count, second_count, third_count,
	state, difference, movement_id, created_by, created_at, closed_at`

func scanCount(row interface{ Scan(...any) error }) (*entity.PhysicalCount, error) {
	var (
		c          entity.PhysicalCount
		movementID *string
	)
	err := row.Scan(&c.ID, &c.PlacementID, &c.LotID, &c.BinID, &c.SystemQuantity, &c.First, &c.Second, &c.Third,
		&c.State, &c.Difference, &movementID, &c.CreatedBy, &c.CreatedAt, &c.ClosedAt)
	c.MovementID = deref(movementID)
	return &c, err
}

func (r *CountRepo) Create(ctx context.Context, c *entity.PhysicalCount) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO physical_counts (`+countColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.PlacementID, c.LotID, c.BinID, c.SystemQuantity, c.First, c.Second, c.Third,
		c.State, c.Difference, nullable(c.MovementID), c.CreatedBy, c.CreatedAt, c.ClosedAt,
	)
	return wrapErr("insert count", err)
}

func (r *CountRepo) Update(ctx context.Context, c *entity.PhysicalCount) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE physical_counts SET first_count = $2, second_count = $3, third_count = $4, state = $5,
			difference = $6, movement_id = $7, closed_at = $8
		WHERE id = $1`,
		c.ID, c.First, c.Second, c.Third, c.State, c.Difference, nullable(c.MovementID), c.ClosedAt,
	)
	return mustAffect("update count", tag, err)
}

func (r *CountRepo) GetOpenByPlacement(ctx context.Context, placementID string) (*entity.PhysicalCount, error) {
	c, err := scanCount(r.q.QueryRow(ctx, `SELECT `+countColumns+`
		FROM physical_counts WHERE placement_id = $1 AND state = $2`, placementID, entity.CountOpen))
	return noRows(c, err, "get open count")
}

func (r *CountRepo) ListByLot(ctx context.Context, lotID string) ([]*entity.PhysicalCount, error) {
	rows, err := r.q.Query(ctx, `SELECT `+countColumns+` FROM physical_counts WHERE lot_id = $1 ORDER BY created_at, id`, lotID)
	if err != nil {
		return nil, wrapErr("list counts", err)
	}
	defer rows.Close()
	var list []*entity.PhysicalCount
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// PlacementAuditRepo consultas de integridad de la conciliación.
type PlacementAuditRepo struct {
	q Querier
}

// NewPlacementAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPlacementAuditRepository(q Querier) *PlacementAuditRepo {
	return &PlacementAuditRepo{q: q}
}

func (r *PlacementAuditRepo) PlacementSums(ctx context.Context) (map[string]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT lot_id::text, SUM(quantity)::bigint FROM bin_placements GROUP BY lot_id`)
	if err != nil {
		return nil, wrapErr("placement sums", err)
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var (
			lotID string
			sum   int64
		)
		if err := rows.Scan(&lotID, &sum); err != nil {
			return nil, fmt.Errorf("scan placement sum: %w", err)
		}
		out[lotID] = sum
	}
	return out, rows.Err()
}

// FindDuplicatePlacements sólo encuentra filas en bases cargadas antes del índice único.
func (r *PlacementAuditRepo) FindDuplicatePlacements(ctx context.Context) ([]repository.DuplicatePlacement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT lot_id::text, bin_id::text, array_agg(id::text ORDER BY created_at, id)
		FROM bin_placements
		GROUP BY lot_id, bin_id
		HAVING COUNT(*) > 1
		ORDER BY MIN(created_at)`)
	if err != nil {
		return nil, wrapErr("find duplicate placements", err)
	}
	defer rows.Close()
	var out []repository.DuplicatePlacement
	for rows.Next() {
		var d repository.DuplicatePlacement
		if err := rows.Scan(&d.LotID, &d.BinID, &d.PlacementIDs); err != nil {
			return nil, fmt.Errorf("scan duplicate placement: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
