package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// ErrorLogFilter filtros de la bitácora de errores de carga.
type ErrorLogFilter struct {
	Kind          string
	InstitutionID string
	UserID        string
	From          *time.Time
	To            *time.Time
	PendingAlert  bool
	Limit         int
	Offset        int
}

// ErrorLogRepository puerto de LogErrorPedido.
type ErrorLogRepository interface {
	Create(ctx context.Context, e *entity.ErrorLog) error
	MarkAlertSent(ctx context.Context, ids []string) error
	List(ctx context.Context, f ErrorLogFilter) ([]*entity.ErrorLog, error)
}

// ReconciliationRepository bitácora persistente de conciliación.
type ReconciliationRepository interface {
	Create(ctx context.Context, e *entity.ReconciliationEntry) error
	List(ctx context.Context, runID string, limit, offset int) ([]*entity.ReconciliationEntry, error)
}

// DuplicatePlacement (lote, ubicación) con más de una fila, IDs del más antiguo al más reciente.
type DuplicatePlacement struct {
	LotID        string
	BinID        string
	PlacementIDs []string
}

// PlacementAuditRepository consultas de integridad sobre ubicaciones.
type PlacementAuditRepository interface {
	// PlacementSums Σ de cantidades por lote (sólo lotes con ubicaciones).
	PlacementSums(ctx context.Context) (map[string]int64, error)
	FindDuplicatePlacements(ctx context.Context) ([]DuplicatePlacement, error)
}
