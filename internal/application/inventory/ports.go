package inventory

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback de todos los efectos.
type TxRunner interface {
	Run(ctx context.Context, fn func(r repository.Repos) error) error
	// RunReadOnly ejecuta fn en una transacción de sólo lectura: todas sus lecturas
	// ven la misma instantánea.
	RunReadOnly(ctx context.Context, fn func(r repository.Repos) error) error
}

// ProductLookup resuelve claves CNIS (el caso de uso de catálogo, con caché).
type ProductLookup interface {
	GetProductByKey(ctx context.Context, key string) (*entity.Product, error)
}
