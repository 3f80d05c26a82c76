package inventory

import (
	"context"
	"errors"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	rules "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// SweepResult resultado del barrido de caducados.
type SweepResult struct {
	Expired []string `json:"expired"`
	Skipped []string `json:"skipped"` // lotes con reservas vigentes
}

// SweepExpired marca como EXPIRED los lotes cuya caducidad ya pasó. Cada lote va en
// su propia transacción; los que tienen reservas se omiten y se reportan.
func (s *LotStore) SweepExpired(ctx context.Context, actor string) (SweepResult, error) {
	var res SweepResult
	yesterday := rules.DateOnly(s.now()).AddDate(0, 0, -1)
	lots, err := s.repos.Lots.List(ctx, repository.LotFilter{
		States:   []entity.LotState{entity.LotStateAvailable, entity.LotStateSuspended},
		ExpiryTo: &yesterday,
	})
	if err != nil {
		return res, err
	}
	for _, lot := range lots {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := s.ChangeState(ctx, lot.ID, entity.LotStateExpired, "Caducidad vencida", actor)
		switch {
		case err == nil:
			res.Expired = append(res.Expired, lot.ID)
		case errors.Is(err, domain.ErrConflict):
			s.log.Warn().Str("lot_id", lot.ID).Str("lote", lot.LotNumber).Msg("lote caducado con reservas, se omite")
			res.Skipped = append(res.Skipped, lot.ID)
		default:
			return res, err
		}
	}
	s.log.Info().Int("caducados", len(res.Expired)).Int("omitidos", len(res.Skipped)).Msg("barrido de caducidad terminado")
	return res, nil
}
