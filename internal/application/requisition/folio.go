package requisition

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/folio"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// FolioService emite folios PREFIJO-AAAA-NNNNNN con secuencia anual.
type FolioService struct {
	prefix string
}

// NewFolioService construye el servicio; prefijo vacío usa folio.DefaultPrefix.
func NewFolioService(prefix string) *FolioService {
	if prefix == "" {
		prefix = folio.DefaultPrefix
	}
	return &FolioService{prefix: prefix}
}

// NextTx toma el siguiente consecutivo del año de at dentro de la transacción del
// llamador; si la transacción se revierte el consecutivo también.
func (s *FolioService) NextTx(ctx context.Context, r repository.Repos, at time.Time) (string, error) {
	year := at.Year()
	seq, err := r.Folios.Next(ctx, s.prefix, year)
	if err != nil {
		return "", fmt.Errorf("folio %s-%d: %w", s.prefix, year, err)
	}
	if seq > folio.MaxSequence {
		return "", fmt.Errorf("folios del año %d agotados: %w", year, domain.ErrConflict)
	}
	return folio.Format(s.prefix, year, seq), nil
}
