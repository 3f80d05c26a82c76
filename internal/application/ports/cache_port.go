package ports

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// CatalogCache caché de lectura del catálogo. Un fallo de caché nunca es un error
// de negocio: las implementaciones devuelven (nil, false) y registran.
type CatalogCache interface {
	GetProduct(ctx context.Context, key string) (*entity.Product, bool)
	SetProduct(ctx context.Context, p *entity.Product)
	DeleteProduct(ctx context.Context, key string)
	GetInstitution(ctx context.Context, clue string) (*entity.Institution, bool)
	SetInstitution(ctx context.Context, inst *entity.Institution)
}

// NopCache caché deshabilitada.
type NopCache struct{}

func (NopCache) GetProduct(context.Context, string) (*entity.Product, bool)         { return nil, false }
func (NopCache) SetProduct(context.Context, *entity.Product)                        {}
func (NopCache) DeleteProduct(context.Context, string)                              {}
func (NopCache) GetInstitution(context.Context, string) (*entity.Institution, bool) { return nil, false }
func (NopCache) SetInstitution(context.Context, *entity.Institution)                {}
