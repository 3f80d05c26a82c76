package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.WarehouseRepository = (*WarehouseRepo)(nil)
	_ repository.BinRepository       = (*BinRepo)(nil)
)

// WarehouseRepo implementación del puerto WarehouseRepository sobre PostgreSQL.
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador de persistencia para almacenes.
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

const warehouseColumns = `id, institution_id, code, name, address, active, created_at, updated_at`

func scanWarehouse(row interface{ Scan(...any) error }) (*entity.Warehouse, error) {
	var w entity.Warehouse
	err := row.Scan(&w.ID, &w.InstitutionID, &w.Code, &w.Name, &w.Address, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	return &w, err
}

// Create persiste un almacén; código repetido → ErrDuplicate.
func (r *WarehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO warehouses (`+warehouseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.InstitutionID, w.Code, w.Name, w.Address, w.Active, w.CreatedAt, w.UpdatedAt,
	)
	return wrapErr("insert warehouse", err)
}

// GetByID obtiene un almacén por ID.
func (r *WarehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	w, err := scanWarehouse(r.q.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id))
	return noRows(w, err, "get warehouse")
}

// GetByCode obtiene un almacén por código.
func (r *WarehouseRepo) GetByCode(ctx context.Context, code string) (*entity.Warehouse, error) {
	w, err := scanWarehouse(r.q.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE code = $1`, code))
	return noRows(w, err, "get warehouse by code")
}

// ListByInstitution ordenados por código.
func (r *WarehouseRepo) ListByInstitution(ctx context.Context, institutionID string) ([]*entity.Warehouse, error) {
	rows, err := r.q.Query(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE institution_id = $1 ORDER BY code`, institutionID)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	defer rows.Close()
	var list []*entity.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// BinRepo ubicaciones físicas.
type BinRepo struct {
	q Querier
}

// NewBinRepository construye el adaptador de ubicaciones.
func NewBinRepository(q Querier) *BinRepo {
	return &BinRepo{q: q}
}

const binColumns = `id, warehouse_id, code, description, level, aisle, rack, section, state, created_at`

func scanBin(row interface{ Scan(...any) error }) (*entity.Bin, error) {
	var b entity.Bin
	err := row.Scan(&b.ID, &b.WarehouseID, &b.Code, &b.Description, &b.Level, &b.Aisle, &b.Rack, &b.Section, &b.State, &b.CreatedAt)
	return &b, err
}

// Create (almacén, código) repetido → ErrDuplicate.
func (r *BinRepo) Create(ctx context.Context, b *entity.Bin) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO bins (`+binColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.WarehouseID, b.Code, b.Description, b.Level, b.Aisle, b.Rack, b.Section, b.State, b.CreatedAt,
	)
	return wrapErr("insert bin", err)
}

func (r *BinRepo) GetByID(ctx context.Context, id string) (*entity.Bin, error) {
	b, err := scanBin(r.q.QueryRow(ctx, `SELECT `+binColumns+` FROM bins WHERE id = $1`, id))
	return noRows(b, err, "get bin")
}

func (r *BinRepo) GetByCode(ctx context.Context, warehouseID, code string) (*entity.Bin, error) {
	b, err := scanBin(r.q.QueryRow(ctx, `SELECT `+binColumns+` FROM bins WHERE warehouse_id = $1 AND code = $2`, warehouseID, code))
	return noRows(b, err, "get bin by code")
}

// ListByWarehouse ordenado por código.
func (r *BinRepo) ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.Bin, error) {
	rows, err := r.q.Query(ctx, `SELECT `+binColumns+` FROM bins WHERE warehouse_id = $1 ORDER BY code`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}
	defer rows.Close()
	var list []*entity.Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bin: %w", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

func (r *BinRepo) UpdateState(ctx context.Context, id, state string) error {
	tag, err := r.q.Exec(ctx, `UPDATE bins SET state = $2 WHERE id = $1`, id, state)
	return mustAffect("update bin state", tag, err)
}
