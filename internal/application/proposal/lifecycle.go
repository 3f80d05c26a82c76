package proposal

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// Detail propuesta con renglones, asignaciones y bitácora.
type Detail struct {
	Proposal    *entity.Proposal
	Items       []*entity.ProposalItem
	Assignments []*entity.LotAssignment
	Log         []*entity.ProposalLog
}

// Lifecycle transiciones de la propuesta: revisión, surtimiento, despacho y cancelación.
type Lifecycle struct {
	txRunner  inventory.TxRunner
	repos     repository.Repos
	ledger    *inventory.Ledger
	publisher ports.EventPublisher
	log       *logger.Logger
	mode      string
	now       func() time.Time
}

// NewLifecycle construye el ciclo de vida; cfg.DispatchMode decide el modo de despacho.
func NewLifecycle(
	txRunner inventory.TxRunner,
	repos repository.Repos,
	ledger *inventory.Ledger,
	publisher ports.EventPublisher,
	log *logger.Logger,
	cfg config.AllocationConfig,
) *Lifecycle {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	mode := cfg.DispatchMode
	if mode == "" {
		mode = config.DispatchAllOrNothing
	}
	return &Lifecycle{
		txRunner:  txRunner,
		repos:     repos,
		ledger:    ledger,
		publisher: publisher,
		log:       log.WithComponent("proposal_lifecycle"),
		mode:      mode,
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj.
func (lc *Lifecycle) SetClock(now func() time.Time) { lc.now = now }

// DispatchMode modo de despacho activo.
func (lc *Lifecycle) DispatchMode() string { return lc.mode }

// Review GENERATED → REVIEWED. Sin efecto en inventario.
func (lc *Lifecycle) Review(ctx context.Context, id, actor string) (*entity.Proposal, error) {
	var out *entity.Proposal
	err := lc.txRunner.Run(ctx, func(r repository.Repos) error {
		p, err := lockProposal(ctx, r, id)
		if err != nil {
			return err
		}
		now := lc.now()
		if err := advance(p, entity.ProposalReviewed, now); err != nil {
			return err
		}
		p.ReviewedBy = actor
		p.ReviewedAt = &now
		if err := r.Proposals.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return writeLog(ctx, r, p.ID, actor, entity.ProposalActionReviewed, "", now)
	})
	if err != nil {
		return nil, err
	}
	lc.log.Info().Str("folio", out.Folio).Str("actor", actor).Msg("propuesta revisada")
	return out, nil
}

// StartPicking REVIEWED → IN_PICKING: marca las asignaciones como listas para
// surtir y la solicitud pasa a PREPARED.
func (lc *Lifecycle) StartPicking(ctx context.Context, id, actor string) (*entity.Proposal, error) {
	var out *entity.Proposal
	err := lc.txRunner.Run(ctx, func(r repository.Repos) error {
		p, err := lockProposal(ctx, r, id)
		if err != nil {
			return err
		}
		now := lc.now()
		if err := advance(p, entity.ProposalInPicking, now); err != nil {
			return err
		}
		p.PickingStartedBy = actor
		p.PickingStartedAt = &now
		if err := r.Proposals.Update(ctx, p); err != nil {
			return err
		}
		assignments, err := r.Proposals.ListAssignments(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			a.ReadyForPick = true
			if err := r.Proposals.UpdateAssignment(ctx, a); err != nil {
				return err
			}
		}
		req, err := r.Requisitions.GetForUpdate(ctx, p.RequisitionID)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("solicitud %s: %w", p.RequisitionID, domain.ErrNotFound)
		}
		if err := requisition.Advance(req, entity.RequisitionPrepared, now); err != nil {
			return err
		}
		if err := r.Requisitions.Update(ctx, req); err != nil {
			return err
		}
		out = p
		return writeLog(ctx, r, p.ID, actor, entity.ProposalActionPickingStart,
			fmt.Sprintf("asignaciones=%d", len(assignments)), now)
	})
	if err != nil {
		return nil, err
	}
	lc.log.Info().Str("folio", out.Folio).Str("actor", actor).Msg("surtimiento iniciado")
	return out, nil
}

// DispatchInput AssignmentIDs sólo aplica en modo incremental; vacío despacha
// todo lo pendiente.
type DispatchInput struct {
	Actor         string
	AssignmentIDs []string
}

// DispatchResult movimientos de salida escritos (uno por lote) y si la propuesta
// quedó completamente despachada.
type DispatchResult struct {
	Proposal  *entity.Proposal
	Movements []*entity.Movement
	Complete  bool
}

// Dispatch confirma la salida. Todo ocurre en una transacción: si una salida falla
// no queda ningún efecto. En modo all_or_nothing se despachan todas las asignaciones;
// en incremental la propuesta sigue IN_PICKING hasta que no quedan pendientes.
//
// Cada llamada escribe un EXIT por lote tocado, siempre con el folio de la solicitud:
// un lote despachado en dos pasos deja dos EXIT con el mismo folio. Tras la primera
// salida parcial la propuesta ya no se puede cancelar.
func (lc *Lifecycle) Dispatch(ctx context.Context, id string, in DispatchInput) (*DispatchResult, error) {
	var out *DispatchResult
	err := lc.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		out, err = lc.dispatchTx(ctx, r, id, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	p := out.Proposal
	log := lc.log.WithFolio(p.Folio)
	if out.Complete {
		if err := lc.publisher.Publish(ctx, proposalEvent(ports.EventProposalDispatched, p, in.Actor)); err != nil {
			log.Warn().Err(err).Msg("evento de despacho no publicado")
		}
	}
	log.Info().
		Str("proposal_id", p.ID).
		Int("lotes", len(out.Movements)).
		Int64("despachado", p.TotalDispatched).
		Bool("completo", out.Complete).
		Msg("despacho confirmado")
	return out, nil
}

func (lc *Lifecycle) dispatchTx(ctx context.Context, r repository.Repos, id string, in DispatchInput) (*DispatchResult, error) {
	p, err := lockProposal(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if p.State != entity.ProposalInPicking {
		return nil, domain.NewTransitionError("propuesta", p.State, entity.ProposalDispatched)
	}
	assignments, err := r.Proposals.ListAssignments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, fmt.Errorf("la propuesta %s no tiene lotes asignados: %w", p.Folio, domain.ErrConflict)
	}
	if dup := duplicatedPair(assignments); dup != "" {
		return nil, fmt.Errorf("la propuesta %s tiene asignaciones duplicadas (%s): %w", p.Folio, dup, domain.ErrConflict)
	}
	selected, err := lc.selectForDispatch(assignments, in.AssignmentIDs)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no hay asignaciones pendientes de despacho: %w", domain.ErrConflict)
	}

	req, err := r.Requisitions.GetForUpdate(ctx, p.RequisitionID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("solicitud %s: %w", p.RequisitionID, domain.ErrNotFound)
	}
	ref := inventory.DispatchRef{
		Folio:                    req.Folio,
		RequisitionID:            req.ID,
		ProposalID:               p.ID,
		DestinationInstitutionID: req.InstitutionID,
		Actor:                    in.Actor,
	}

	res := &DispatchResult{Proposal: p}
	byItem := map[string]int64{}
	var lotOrder []string
	byLot := map[string][]*entity.LotAssignment{}
	for _, a := range selected {
		if _, ok := byLot[a.LotID]; !ok {
			lotOrder = append(lotOrder, a.LotID)
		}
		byLot[a.LotID] = append(byLot[a.LotID], a)
	}
	for _, lotID := range lotOrder {
		mov, err := lc.ledger.CommitDispatchTx(ctx, r, lotID, byLot[lotID], ref)
		if err != nil {
			return nil, err
		}
		if mov == nil {
			continue
		}
		res.Movements = append(res.Movements, mov)
		p.TotalDispatched += mov.Quantity
		for _, a := range byLot[lotID] {
			byItem[a.ProposalItemID] += a.Quantity
		}
	}

	items, err := r.Proposals.ListItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		n, ok := byItem[it.ID]
		if !ok {
			continue
		}
		it.QuantityDispatched += n
		if it.QuantityProposed > 0 && it.QuantityDispatched >= it.QuantityProposed {
			it.State = entity.ProposalItemDispatched
		}
		if err := r.Proposals.UpdateItem(ctx, it); err != nil {
			return nil, err
		}
	}

	now := lc.now()
	res.Complete = true
	for _, a := range assignments {
		if !a.Dispatched {
			res.Complete = false
			break
		}
	}
	action := entity.ProposalActionPartial
	if res.Complete {
		action = entity.ProposalActionDispatched
		if err := advance(p, entity.ProposalDispatched, now); err != nil {
			return nil, err
		}
		p.DispatchedBy = in.Actor
		p.DispatchedAt = &now
		if err := requisition.Advance(req, entity.RequisitionDispatched, now); err != nil {
			return nil, err
		}
		if err := r.Requisitions.Update(ctx, req); err != nil {
			return nil, err
		}
	}
	p.UpdatedAt = now
	if err := r.Proposals.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := writeLog(ctx, r, p.ID, in.Actor, action,
		fmt.Sprintf("lotes=%d despachado=%d", len(res.Movements), p.TotalDispatched), now); err != nil {
		return nil, err
	}
	return res, nil
}

// selectForDispatch aplica el modo de despacho. CommitDispatchTx marca las
// asignaciones elegidas, por lo que la lista completa refleja lo pendiente al final.
func (lc *Lifecycle) selectForDispatch(all []*entity.LotAssignment, ids []string) ([]*entity.LotAssignment, error) {
	var pending []*entity.LotAssignment
	for _, a := range all {
		if !a.Dispatched {
			pending = append(pending, a)
		}
	}
	if len(ids) == 0 {
		return pending, nil
	}
	if lc.mode != config.DispatchIncremental {
		return nil, fmt.Errorf("despacho parcial no habilitado (modo %s): %w", lc.mode, domain.ErrInvalidInput)
	}
	byID := make(map[string]*entity.LotAssignment, len(all))
	for _, a := range all {
		byID[a.ID] = a
	}
	var out []*entity.LotAssignment
	seen := map[string]bool{}
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("asignación %s no pertenece a la propuesta: %w", id, domain.ErrInvalidInput)
		}
		if a.Dispatched || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, a)
	}
	return out, nil
}

func duplicatedPair(assignments []*entity.LotAssignment) string {
	seen := make(map[[2]string]bool, len(assignments))
	for _, a := range assignments {
		k := [2]string{a.ProposalItemID, a.PlacementID}
		if seen[k] {
			return a.ProposalItemID + "/" + a.PlacementID
		}
		seen[k] = true
	}
	return ""
}

// Cancel libera las reservas no despachadas, borra asignaciones y renglones y
// regresa la solicitud a VALIDATED. Cancelar una propuesta ya cancelada no hace nada.
func (lc *Lifecycle) Cancel(ctx context.Context, id, actor string) (*entity.Proposal, error) {
	var (
		out     *entity.Proposal
		changed bool
	)
	err := lc.txRunner.Run(ctx, func(r repository.Repos) error {
		p, err := lockProposal(ctx, r, id)
		if err != nil {
			return err
		}
		out = p
		if p.State == entity.ProposalCancelled {
			return nil
		}
		req, err := r.Requisitions.GetForUpdate(ctx, p.RequisitionID)
		if err != nil {
			return err
		}
		changed = true
		return cancelTx(ctx, r, lc.ledger, p, req, actor, lc.now())
	})
	if err != nil {
		return nil, err
	}
	if changed {
		if err := lc.publisher.Publish(ctx, proposalEvent(ports.EventProposalCancelled, out, actor)); err != nil {
			lc.log.Warn().Err(err).Str("folio", out.Folio).Msg("evento de cancelación no publicado")
		}
		lc.log.Info().Str("folio", out.Folio).Str("actor", actor).Msg("propuesta cancelada")
	}
	return out, nil
}

// cancelTx requiere la propuesta y la solicitud ya bloqueadas. req puede ser nil
// si la solicitud desapareció.
func cancelTx(
	ctx context.Context,
	r repository.Repos,
	ledger *inventory.Ledger,
	p *entity.Proposal,
	req *entity.Requisition,
	actor string,
	now time.Time,
) error {
	if !entity.CanProposalTransition(p.State, entity.ProposalCancelled) {
		return domain.NewTransitionError("propuesta", p.State, entity.ProposalCancelled)
	}
	assignments, err := r.Proposals.ListAssignments(ctx, p.ID)
	if err != nil {
		return err
	}
	var released int64
	for _, a := range assignments {
		if a.Dispatched {
			return fmt.Errorf("la propuesta %s tiene salidas confirmadas: %w", p.Folio, domain.ErrConflict)
		}
	}
	for _, a := range assignments {
		if err := ledger.ReleaseTx(ctx, r, a.LotID, a.PlacementID, a.Quantity); err != nil {
			return err
		}
		released += a.Quantity
	}
	if err := r.Proposals.DeleteAssignments(ctx, p.ID); err != nil {
		return err
	}
	if err := r.Proposals.DeleteItems(ctx, p.ID); err != nil {
		return err
	}

	p.State = entity.ProposalCancelled
	p.CancelledBy = actor
	p.CancelledAt = &now
	p.UpdatedAt = now
	if err := r.Proposals.Update(ctx, p); err != nil {
		return err
	}
	if err := writeLog(ctx, r, p.ID, actor, entity.ProposalActionCancelled,
		fmt.Sprintf("asignaciones=%d liberado=%d", len(assignments), released), now); err != nil {
		return err
	}

	if req == nil {
		return nil
	}
	if req.State == entity.RequisitionInPreparation || req.State == entity.RequisitionPrepared {
		if err := requisition.Advance(req, entity.RequisitionValidated, now); err != nil {
			return err
		}
		return r.Requisitions.Update(ctx, req)
	}
	return nil
}

// Get devuelve la propuesta con su detalle; nil si no existe.
func (lc *Lifecycle) Get(ctx context.Context, id string) (*Detail, error) {
	p, err := lc.repos.Proposals.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	d := &Detail{Proposal: p}
	if d.Items, err = lc.repos.Proposals.ListItems(ctx, id); err != nil {
		return nil, err
	}
	if d.Assignments, err = lc.repos.Proposals.ListAssignments(ctx, id); err != nil {
		return nil, err
	}
	if d.Log, err = lc.repos.ProposalLogs.ListByProposal(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// List lista propuestas.
func (lc *Lifecycle) List(ctx context.Context, f repository.ProposalFilter) ([]*entity.Proposal, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return lc.repos.Proposals.List(ctx, f)
}

func lockProposal(ctx context.Context, r repository.Repos, id string) (*entity.Proposal, error) {
	p, err := r.Proposals.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("propuesta %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func advance(p *entity.Proposal, to string, at time.Time) error {
	if !entity.CanProposalTransition(p.State, to) {
		return domain.NewTransitionError("propuesta", p.State, to)
	}
	p.State = to
	p.UpdatedAt = at
	return nil
}
