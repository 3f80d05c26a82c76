package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// ProductRepository puerto de persistencia del catálogo CNIS.
type ProductRepository interface {
	Create(ctx context.Context, p *entity.Product) error
	Update(ctx context.Context, p *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetByKey coincidencia exacta sobre clave_cnis.
	GetByKey(ctx context.Context, key string) (*entity.Product, error)
	// List con búsqueda por subcadena (sólo para interfaz de usuario).
	List(ctx context.Context, search string, limit, offset int) ([]*entity.Product, error)
}

// InstitutionRepository puerto de instituciones (CLUES).
type InstitutionRepository interface {
	Create(ctx context.Context, inst *entity.Institution) error
	GetByID(ctx context.Context, id string) (*entity.Institution, error)
	GetByClue(ctx context.Context, clue string) (*entity.Institution, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Institution, error)
}

// WarehouseRepository puerto de almacenes.
type WarehouseRepository interface {
	Create(ctx context.Context, w *entity.Warehouse) error
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
	GetByCode(ctx context.Context, code string) (*entity.Warehouse, error)
	ListByInstitution(ctx context.Context, institutionID string) ([]*entity.Warehouse, error)
}

// BinRepository puerto de ubicaciones.
type BinRepository interface {
	Create(ctx context.Context, b *entity.Bin) error
	GetByID(ctx context.Context, id string) (*entity.Bin, error)
	GetByCode(ctx context.Context, warehouseID, code string) (*entity.Bin, error)
	// ListByWarehouse ordenado por código.
	ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.Bin, error)
	UpdateState(ctx context.Context, id, state string) error
}

// SupplierRepository puerto de proveedores y órdenes de suministro.
type SupplierRepository interface {
	Create(ctx context.Context, s *entity.Supplier) error
	GetByID(ctx context.Context, id string) (*entity.Supplier, error)
	GetByRFC(ctx context.Context, rfc string) (*entity.Supplier, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Supplier, error)
	CreateOrder(ctx context.Context, o *entity.SupplyOrder) error
	GetOrderByID(ctx context.Context, id string) (*entity.SupplyOrder, error)
	GetOrderByNumber(ctx context.Context, number string) (*entity.SupplyOrder, error)
}
