// Package proposal genera propuestas de surtimiento FEFO y administra su ciclo de vida.
package proposal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	rules "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// Generator arma la propuesta de una solicitud validada reservando lotes en orden FEFO.
type Generator struct {
	txRunner  inventory.TxRunner
	repos     repository.Repos
	ledger    *inventory.Ledger
	publisher ports.EventPublisher
	log       *logger.Logger
	cfg       config.AllocationConfig
	now       func() time.Time
}

// NewGenerator construye el generador.
func NewGenerator(
	txRunner inventory.TxRunner,
	repos repository.Repos,
	ledger *inventory.Ledger,
	publisher ports.EventPublisher,
	log *logger.Logger,
	cfg config.AllocationConfig,
) *Generator {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	return &Generator{
		txRunner:  txRunner,
		repos:     repos,
		ledger:    ledger,
		publisher: publisher,
		log:       log.WithComponent("proposal_generator"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj.
func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// Generate crea la propuesta de la solicitud. Falla con ErrConflict si ya tiene
// una propuesta activa.
func (g *Generator) Generate(ctx context.Context, requisitionID, actor string) (*Detail, error) {
	return g.run(ctx, requisitionID, actor, false)
}

// Regenerate cancela la propuesta activa (liberando sus reservas) y genera una nueva
// en la misma transacción.
func (g *Generator) Regenerate(ctx context.Context, requisitionID, actor string) (*Detail, error) {
	return g.run(ctx, requisitionID, actor, true)
}

func (g *Generator) run(ctx context.Context, requisitionID, actor string, replace bool) (*Detail, error) {
	var (
		out       *Detail
		cancelled *entity.Proposal
		noStock   []*entity.ErrorLog
	)
	err := g.txRunner.Run(ctx, func(r repository.Repos) error {
		req, err := r.Requisitions.GetForUpdate(ctx, requisitionID)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("solicitud %s: %w", requisitionID, domain.ErrNotFound)
		}
		active, err := r.Proposals.GetActiveByRequisition(ctx, req.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if !replace {
				return fmt.Errorf("la solicitud %s ya tiene la propuesta %s en %s: %w",
					req.Folio, active.ID, active.State, domain.ErrConflict)
			}
			if err := cancelTx(ctx, r, g.ledger, active, req, actor, g.now()); err != nil {
				return err
			}
			cancelled = active
		}
		if req.State != entity.RequisitionValidated {
			return domain.NewTransitionError("solicitud", req.State, entity.RequisitionInPreparation)
		}

		out, noStock, err = g.generateTx(ctx, r, req, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	events := make([]ports.Event, 0, 2+len(noStock))
	if cancelled != nil {
		events = append(events, proposalEvent(ports.EventProposalCancelled, cancelled, actor))
	}
	events = append(events, proposalEvent(ports.EventProposalGenerated, out.Proposal, actor))
	var alertIDs []string
	for _, l := range noStock {
		events = append(events, requisition.AlertEvent(l))
		alertIDs = append(alertIDs, l.ID)
	}
	if err := g.publisher.Publish(ctx, events...); err != nil {
		g.log.Warn().Err(err).Str("folio", out.Proposal.Folio).Msg("eventos de propuesta no publicados")
	} else if len(alertIDs) > 0 {
		if err := g.repos.ErrorLogs.MarkAlertSent(ctx, alertIDs); err != nil {
			g.log.Error().Err(err).Msg("alertas publicadas sin marcar como enviadas")
		}
	}

	p := out.Proposal
	g.log.Info().
		Str("folio", p.Folio).
		Str("proposal_id", p.ID).
		Int64("solicitado", p.TotalRequested).
		Int64("propuesto", p.TotalProposed).
		Msg("propuesta generada")
	return out, nil
}

// generateTx recorre cada renglón aprobado, reserva lote por lote y crea las asignaciones.
func (g *Generator) generateTx(ctx context.Context, r repository.Repos, req *entity.Requisition, actor string) (*Detail, []*entity.ErrorLog, error) {
	now := g.now()
	p := &entity.Proposal{
		ID:            uuid.New().String(),
		RequisitionID: req.ID,
		Folio:         req.Folio,
		State:         entity.ProposalGenerated,
		GeneratedBy:   actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.Proposals.Create(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("propuesta de %s: %w", req.Folio, err)
	}

	out := &Detail{Proposal: p}
	var noStock []*entity.ErrorLog
	minExpiry := rules.MinExpiry(now, g.ledger.MinExpiryDays())
	for _, ri := range req.Items {
		item := &entity.ProposalItem{
			ID:                uuid.New().String(),
			ProposalID:        p.ID,
			RequisitionItemID: ri.ID,
			ProductID:         ri.ProductID,
			QuantitySolicited: ri.QuantityApproved,
		}
		if ri.QuantityApproved <= 0 {
			item.State = entity.ProposalItemUnavailable
			item.Notes = "renglón no aprobado"
			if err := r.Proposals.CreateItem(ctx, item); err != nil {
				return nil, nil, err
			}
			out.Items = append(out.Items, item)
			continue
		}
		if err := r.Proposals.CreateItem(ctx, item); err != nil {
			return nil, nil, err
		}

		assignments, err := g.allocateTx(ctx, r, req, item, minExpiry, now)
		if err != nil {
			return nil, nil, err
		}
		item.State = rules.ItemState(item.QuantitySolicited, item.QuantityProposed)
		if err := r.Proposals.UpdateItem(ctx, item); err != nil {
			return nil, nil, err
		}
		out.Items = append(out.Items, item)
		out.Assignments = append(out.Assignments, assignments...)

		if item.QuantityProposed == 0 && req.Origin == entity.RequisitionOriginBulk {
			l := &entity.ErrorLog{
				ID:                uuid.New().String(),
				Kind:              entity.ErrorKindNoStock,
				Key:               productKey(ctx, r, ri.ProductID),
				QuantityRequested: ri.QuantityApproved,
				RequisitionID:     req.ID,
				InstitutionID:     req.InstitutionID,
				UserID:            req.RequestedBy,
				Description:       "sin lotes elegibles con caducidad mayor al margen mínimo",
				CreatedAt:         now,
			}
			if err := r.ErrorLogs.Create(ctx, l); err != nil {
				return nil, nil, err
			}
			noStock = append(noStock, l)
		}

		p.TotalRequested += item.QuantitySolicited
		p.TotalAvailable += item.QuantityAvailable
		p.TotalProposed += item.QuantityProposed
	}

	if err := r.Proposals.Update(ctx, p); err != nil {
		return nil, nil, err
	}
	if err := writeLog(ctx, r, p.ID, actor, entity.ProposalActionGenerated,
		fmt.Sprintf("renglones=%d solicitado=%d propuesto=%d", len(out.Items), p.TotalRequested, p.TotalProposed), now); err != nil {
		return nil, nil, err
	}
	if err := requisition.Advance(req, entity.RequisitionInPreparation, now); err != nil {
		return nil, nil, err
	}
	if err := r.Requisitions.Update(ctx, req); err != nil {
		return nil, nil, err
	}
	return out, noStock, nil
}

// allocateTx reserva para un renglón: primero lotes de la institución solicitante y,
// si está configurado, del resto de instituciones.
func (g *Generator) allocateTx(
	ctx context.Context,
	r repository.Repos,
	req *entity.Requisition,
	item *entity.ProposalItem,
	minExpiry time.Time,
	now time.Time,
) ([]*entity.LotAssignment, error) {
	queries := []repository.EligibleLotQuery{{
		ProductID:     item.ProductID,
		InstitutionID: req.InstitutionID,
		MinExpiry:     minExpiry,
	}}
	if g.cfg.CrossInstitution {
		queries = append(queries, repository.EligibleLotQuery{
			ProductID:          item.ProductID,
			ExcludeInstitution: req.InstitutionID,
			MinExpiry:          minExpiry,
		})
	}

	var out []*entity.LotAssignment
	remaining := item.QuantitySolicited
	for _, q := range queries {
		lots, err := r.Lots.ListEligibleForUpdate(ctx, q)
		if err != nil {
			return nil, err
		}
		lots = rules.FilterEligible(lots, minExpiry)
		rules.SortFEFO(lots)
		for _, lot := range lots {
			item.QuantityAvailable += lot.EffectiveAvailable()
			if remaining == 0 {
				continue
			}
			res, err := g.reserveUpTo(ctx, r, lot, min(lot.EffectiveAvailable(), remaining))
			if err != nil {
				return nil, err
			}
			if res.Outcome != inventory.ReserveOK {
				continue
			}
			for _, t := range res.Takes {
				a := &entity.LotAssignment{
					ID:             uuid.New().String(),
					ProposalID:     item.ProposalID,
					ProposalItemID: item.ID,
					PlacementID:    t.PlacementID,
					LotID:          lot.ID,
					BinID:          t.BinID,
					Quantity:       t.Quantity,
					AssignedAt:     now,
				}
				if err := r.Proposals.CreateAssignment(ctx, a); err != nil {
					return nil, err
				}
				out = append(out, a)
			}
			item.QuantityProposed += res.Quantity
			remaining -= res.Quantity
		}
	}
	return out, nil
}

// reserveUpTo reserva qty; si el ledger observa menos disponible (ubicaciones que no
// respaldan el total del lote) reintenta una vez con lo que sí está respaldado.
func (g *Generator) reserveUpTo(ctx context.Context, r repository.Repos, lot *entity.Lot, qty int64) (inventory.Reservation, error) {
	res, err := g.ledger.ReserveTx(ctx, r, lot.ID, qty)
	if err != nil || res.Outcome == inventory.ReserveOK {
		return res, err
	}
	if res.Effective <= 0 {
		return res, nil
	}
	g.log.Warn().Str("lot_id", lot.ID).Int64("pedido", qty).Int64("efectivo", res.Effective).Msg("reserva reducida")
	return g.ledger.ReserveTx(ctx, r, lot.ID, min(res.Effective, qty))
}

func productKey(ctx context.Context, r repository.Repos, productID string) string {
	p, err := r.Products.GetByID(ctx, productID)
	if err != nil || p == nil {
		return productID
	}
	return p.Key
}

func writeLog(ctx context.Context, r repository.Repos, proposalID, actor, action, details string, at time.Time) error {
	return r.ProposalLogs.Create(ctx, &entity.ProposalLog{
		ID:         uuid.New().String(),
		ProposalID: proposalID,
		Actor:      actor,
		Action:     action,
		Details:    details,
		CreatedAt:  at,
	})
}

func proposalEvent(kind string, p *entity.Proposal, actor string) ports.Event {
	return ports.Event{
		Type:       kind,
		Key:        p.Folio,
		OccurredAt: p.UpdatedAt,
		Payload: map[string]any{
			"proposal_id":      p.ID,
			"requisition_id":   p.RequisitionID,
			"state":            p.State,
			"total_requested":  p.TotalRequested,
			"total_proposed":   p.TotalProposed,
			"total_dispatched": p.TotalDispatched,
			"actor":            actor,
		},
	}
}
