package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// LotFilter filtros de consulta de lotes. Campos vacíos no filtran.
type LotFilter struct {
	ProductID     string
	InstitutionID string
	States        []entity.LotState
	ExpiryFrom    *time.Time
	ExpiryTo      *time.Time
	OnlyWithStock bool
	Limit         int
	Offset        int
}

// EligibleLotQuery criterio del generador: estado AVAILABLE, disponible efectivo > 0
// y caducidad >= MinExpiry. ExcludeInstitution se usa para el respaldo entre instituciones.
type EligibleLotQuery struct {
	ProductID          string
	InstitutionID      string
	ExcludeInstitution string
	MinExpiry          time.Time
}

// LotRepository puerto de lotes.
type LotRepository interface {
	Create(ctx context.Context, lot *entity.Lot) error
	Update(ctx context.Context, lot *entity.Lot) error
	GetByID(ctx context.Context, id string) (*entity.Lot, error)
	// GetForUpdate bloquea la fila del lote hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Lot, error)
	GetByKey(ctx context.Context, productID, institutionID, lotNumber string) (*entity.Lot, error)
	// ListEligibleForUpdate devuelve los lotes elegibles en orden FEFO
	// (caducidad, recepción, id) y los bloquea.
	ListEligibleForUpdate(ctx context.Context, q EligibleLotQuery) ([]*entity.Lot, error)
	// ListEligible igual que ListEligibleForUpdate pero sin bloqueo (consultas).
	ListEligible(ctx context.Context, q EligibleLotQuery) ([]*entity.Lot, error)
	// List ordenado por caducidad e id.
	List(ctx context.Context, f LotFilter) ([]*entity.Lot, error)
	// CreateStateChange agrega una transición al historial del lote.
	CreateStateChange(ctx context.Context, c *entity.LotStateChange) error
	// ListStateChanges historial del lote en orden cronológico.
	ListStateChanges(ctx context.Context, lotID string) ([]*entity.LotStateChange, error)
}

// PlacementRepository puerto de la distribución lote-ubicación.
type PlacementRepository interface {
	Create(ctx context.Context, p *entity.BinPlacement) error
	Update(ctx context.Context, p *entity.BinPlacement) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*entity.BinPlacement, error)
	GetForUpdate(ctx context.Context, id string) (*entity.BinPlacement, error)
	Get(ctx context.Context, lotID, binID string) (*entity.BinPlacement, error)
	// ListByLot en orden de creación (la más antigua primero).
	ListByLot(ctx context.Context, lotID string) ([]*entity.BinPlacement, error)
	// ListByLotForUpdate igual que ListByLot, bloqueando las filas.
	ListByLotForUpdate(ctx context.Context, lotID string) ([]*entity.BinPlacement, error)
	ListByBin(ctx context.Context, binID string) ([]*entity.BinPlacement, error)
	SumByLot(ctx context.Context, lotID string) (int64, error)
}

// CountRepository puerto de conteos físicos.
type CountRepository interface {
	Create(ctx context.Context, c *entity.PhysicalCount) error
	Update(ctx context.Context, c *entity.PhysicalCount) error
	GetOpenByPlacement(ctx context.Context, placementID string) (*entity.PhysicalCount, error)
	ListByLot(ctx context.Context, lotID string) ([]*entity.PhysicalCount, error)
}
