package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// RequisitionFilter filtros de listado.
type RequisitionFilter struct {
	InstitutionID string
	State         string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// RequisitionRepository puerto de solicitudes y sus renglones.
type RequisitionRepository interface {
	// Create persiste la solicitud con sus renglones.
	Create(ctx context.Context, r *entity.Requisition) error
	// GetByID incluye renglones ordenados por posición.
	GetByID(ctx context.Context, id string) (*entity.Requisition, error)
	// GetForUpdate bloquea la fila de la solicitud (e incluye renglones).
	GetForUpdate(ctx context.Context, id string) (*entity.Requisition, error)
	GetByFolio(ctx context.Context, folio string) (*entity.Requisition, error)
	// Update guarda estado y campos de validación (no renglones).
	Update(ctx context.Context, r *entity.Requisition) error
	UpdateItem(ctx context.Context, it *entity.RequisitionItem) error
	List(ctx context.Context, f RequisitionFilter) ([]*entity.Requisition, error)
	// FindByObservation busca solicitudes de un usuario cuyo campo de observaciones
	// contiene marker, creadas en [from, to].
	FindByObservation(ctx context.Context, userID, marker string, from, to time.Time) ([]*entity.Requisition, error)
	// ClaimExternalFolio registra (userID, folio) para requisitionID. Devuelve false
	// si el par ya está registrado en o después de reuseAfter.
	ClaimExternalFolio(ctx context.Context, userID, folio, requisitionID string, at, reuseAfter time.Time) (bool, error)
}

// FolioRepository secuencias anuales de folios.
type FolioRepository interface {
	// Next incrementa y devuelve la secuencia (prefix, year); la primera es 1.
	Next(ctx context.Context, prefix string, year int) (int, error)
}
