package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.InstitutionRepository = (*InstitutionRepo)(nil)
	_ repository.SupplierRepository    = (*SupplierRepo)(nil)
)

// InstitutionRepo instituciones identificadas por CLUES.
type InstitutionRepo struct {
	q Querier
}

// NewInstitutionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInstitutionRepository(q Querier) *InstitutionRepo {
	return &InstitutionRepo{q: q}
}

const institutionColumns = `id, clues, ib_clue, name, type, locality, active, created_at`

func scanInstitution(row interface{ Scan(...any) error }) (*entity.Institution, error) {
	var i entity.Institution
	err := row.Scan(&i.ID, &i.Clue, &i.IBClue, &i.Name, &i.Type, &i.Locality, &i.Active, &i.CreatedAt)
	return &i, err
}

func (r *InstitutionRepo) Create(ctx context.Context, inst *entity.Institution) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO institutions (`+institutionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inst.ID, inst.Clue, inst.IBClue, inst.Name, inst.Type, inst.Locality, inst.Active, inst.CreatedAt,
	)
	return wrapErr("insert institution", err)
}

func (r *InstitutionRepo) GetByID(ctx context.Context, id string) (*entity.Institution, error) {
	i, err := scanInstitution(r.q.QueryRow(ctx, `SELECT `+institutionColumns+` FROM institutions WHERE id = $1`, id))
	return noRows(i, err, "get institution")
}

func (r *InstitutionRepo) GetByClue(ctx context.Context, clue string) (*entity.Institution, error) {
	i, err := scanInstitution(r.q.QueryRow(ctx, `SELECT `+institutionColumns+` FROM institutions WHERE clues = $1`, clue))
	return noRows(i, err, "get institution by clues")
}

func (r *InstitutionRepo) List(ctx context.Context, limit, offset int) ([]*entity.Institution, error) {
	rows, err := r.q.Query(ctx, `SELECT `+institutionColumns+` FROM institutions ORDER BY clues`+pageClause(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()
	var list []*entity.Institution
	for rows.Next() {
		i, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

// SupplierRepo proveedores y órdenes de suministro.
type SupplierRepo struct {
	q Querier
}

// NewSupplierRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSupplierRepository(q Querier) *SupplierRepo {
	return &SupplierRepo{q: q}
}

const (
	supplierColumns = `id, rfc, name, contact, active, created_at`
	orderColumns    = `id, order_number, supplier_id, funding_source, budget, order_date, created_at`
)

func scanSupplier(row interface{ Scan(...any) error }) (*entity.Supplier, error) {
	var s entity.Supplier
	err := row.Scan(&s.ID, &s.RFC, &s.Name, &s.Contact, &s.Active, &s.CreatedAt)
	return &s, err
}

func scanOrder(row interface{ Scan(...any) error }) (*entity.SupplyOrder, error) {
	var o entity.SupplyOrder
	err := row.Scan(&o.ID, &o.OrderNumber, &o.SupplierID, &o.FundingSource, &o.Budget, &o.OrderDate, &o.CreatedAt)
	return &o, err
}

func (r *SupplierRepo) Create(ctx context.Context, s *entity.Supplier) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO suppliers (`+supplierColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.RFC, s.Name, s.Contact, s.Active, s.CreatedAt,
	)
	return wrapErr("insert supplier", err)
}

func (r *SupplierRepo) GetByID(ctx context.Context, id string) (*entity.Supplier, error) {
	s, err := scanSupplier(r.q.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	return noRows(s, err, "get supplier")
}

func (r *SupplierRepo) GetByRFC(ctx context.Context, rfc string) (*entity.Supplier, error) {
	s, err := scanSupplier(r.q.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE rfc = $1`, rfc))
	return noRows(s, err, "get supplier by rfc")
}

func (r *SupplierRepo) List(ctx context.Context, limit, offset int) ([]*entity.Supplier, error) {
	rows, err := r.q.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name`+pageClause(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *SupplierRepo) CreateOrder(ctx context.Context, o *entity.SupplyOrder) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO supply_orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.OrderNumber, o.SupplierID, o.FundingSource, o.Budget, o.OrderDate, o.CreatedAt,
	)
	return wrapErr("insert supply order", err)
}

func (r *SupplierRepo) GetOrderByID(ctx context.Context, id string) (*entity.SupplyOrder, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM supply_orders WHERE id = $1`, id))
	return noRows(o, err, "get supply order")
}

func (r *SupplierRepo) GetOrderByNumber(ctx context.Context, number string) (*entity.SupplyOrder, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM supply_orders WHERE order_number = $1`, number))
	return noRows(o, err, "get supply order by number")
}
