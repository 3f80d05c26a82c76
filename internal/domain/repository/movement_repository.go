package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// MovementFilter filtros del kardex.
type MovementFilter struct {
	LotID         string
	Kinds         []entity.MovementKind
	Folio         string
	InstitutionID string // institución dueña del lote
	From          *time.Time
	To            *time.Time
	IncludeVoided bool
	Limit         int
	Offset        int
}

// MovementRepository puerto del kardex (sólo inserción, salvo la marca de anulación).
type MovementRepository interface {
	// Create asigna Seq y persiste el movimiento.
	Create(ctx context.Context, m *entity.Movement) error
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Movement, error)
	MarkVoided(ctx context.Context, id, actor string, at time.Time) error
	// List ordenado por (created_at, seq).
	List(ctx context.Context, f MovementFilter) ([]*entity.Movement, error)
	// SumExitsByFolio cantidad total de salidas no anuladas por lote con el folio dado.
	SumExitsByFolio(ctx context.Context, folio string) (map[string]int64, error)
}
