package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// RegisterCount captura el siguiente conteo físico de una ubicación. Al tercer conteo
// el conteo se cierra y la diferencia contra la existencia se registra como ajuste.
func (s *LotStore) RegisterCount(ctx context.Context, placementID string, counted int64, actor string) (*entity.PhysicalCount, error) {
	if placementID == "" {
		return nil, domain.ErrInvalidInput
	}
	if counted < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	var out *entity.PhysicalCount
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		p, err := r.Placements.GetByID(ctx, placementID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("ubicación de lote %s: %w", placementID, domain.ErrNotFound)
		}
		// Orden de bloqueo: lote y luego ubicación.
		if _, err := lockLot(ctx, r, p.LotID); err != nil {
			return err
		}
		if p, err = r.Placements.GetForUpdate(ctx, placementID); err != nil {
			return err
		}

		now := s.now()
		c, err := r.Counts.GetOpenByPlacement(ctx, placementID)
		if err != nil {
			return err
		}
		if c == nil {
			c = &entity.PhysicalCount{
				ID:             uuid.New().String(),
				PlacementID:    p.ID,
				LotID:          p.LotID,
				BinID:          p.BinID,
				SystemQuantity: p.Quantity,
				State:          entity.CountOpen,
				CreatedBy:      actor,
				CreatedAt:      now,
			}
			if err := r.Counts.Create(ctx, c); err != nil {
				return err
			}
		}

		v := counted
		switch c.Next() {
		case 1:
			c.First = &v
		case 2:
			c.Second = &v
		case 3:
			c.Third = &v
		}
		if c.Third != nil {
			c.Difference = *c.Third - p.Quantity
			if c.Difference != 0 {
				kind := entity.MovementPositiveAdjustment
				qty := c.Difference
				if qty < 0 {
					kind, qty = entity.MovementNegativeAdjustment, -qty
				}
				mov, err := s.RecordMovementTx(ctx, r, MovementInput{
					LotID:     p.LotID,
					BinID:     p.BinID,
					Kind:      kind,
					Quantity:  qty,
					Reason:    "Ajuste por conteo físico",
					Reference: c.ID,
					Actor:     actor,
				})
				if err != nil {
					return err
				}
				c.MovementID = mov.ID
			}
			c.State = entity.CountClosed
			c.ClosedAt = &now
		}
		if err := r.Counts.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}
