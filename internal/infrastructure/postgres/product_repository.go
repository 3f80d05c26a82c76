package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, clave_cnis, description, unit_measure, category, tax_rate, reference_price, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.Key, &p.Description, &p.UnitMeasure, &p.Category,
		&p.TaxRate, &p.ReferencePrice, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

// Create persiste un nuevo producto; clave repetida → ErrDuplicate.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Key, p.Description, p.UnitMeasure, p.Category,
		p.TaxRate, p.ReferencePrice, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update la clave no se modifica.
func (r *ProductRepo) Update(ctx context.Context, p *entity.Product) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE products SET description = $2, unit_measure = $3, category = $4, tax_rate = $5,
			reference_price = $6, active = $7, updated_at = $8
		WHERE id = $1`,
		p.ID, p.Description, p.UnitMeasure, p.Category, p.TaxRate, p.ReferencePrice, p.Active, p.UpdatedAt,
	)
	return mustAffect("update product", tag, err)
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	return noRows(p, err, "get product")
}

// GetByKey coincidencia exacta sobre clave_cnis.
func (r *ProductRepo) GetByKey(ctx context.Context, key string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE clave_cnis = $1`, key))
	return noRows(p, err, "get product by key")
}

// List búsqueda por subcadena, sin distinguir mayúsculas, ordenada por clave.
func (r *ProductRepo) List(ctx context.Context, search string, limit, offset int) ([]*entity.Product, error) {
	var w where
	if search != "" {
		w.add(`(clave_cnis ILIKE ? OR description ILIKE ?)`, "%"+search+"%")
	}
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products`+w.String()+
		` ORDER BY clave_cnis`+pageClause(limit, offset), w.args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
