package requisition

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/folio"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// UseCase casos de uso de solicitudes de pedido: alta, validación, rechazo,
// cancelación y carga masiva.
type UseCase struct {
	txRunner  inventory.TxRunner
	repos     repository.Repos
	folios    *FolioService
	ledger    *inventory.Ledger
	products  inventory.ProductLookup
	publisher ports.EventPublisher
	log       *logger.Logger
	cfg       config.AllocationConfig
	now       func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(
	txRunner inventory.TxRunner,
	repos repository.Repos,
	folios *FolioService,
	ledger *inventory.Ledger,
	products inventory.ProductLookup,
	publisher ports.EventPublisher,
	log *logger.Logger,
	cfg config.AllocationConfig,
) *UseCase {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	return &UseCase{
		txRunner:  txRunner,
		repos:     repos,
		folios:    folios,
		ledger:    ledger,
		products:  products,
		publisher: publisher,
		log:       log.WithComponent("requisition"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj.
func (uc *UseCase) SetClock(now func() time.Time) { uc.now = now }

// ItemInput renglón solicitado.
type ItemInput struct {
	ProductID     string
	Quantity      int64
	Justification string
}

// CreateInput alta de una solicitud.
type CreateInput struct {
	InstitutionID     string
	WarehouseID       string
	ScheduledDelivery *time.Time
	Observations      string
	RequestedBy       string
	Origin            string
	Items             []ItemInput
}

// Create da de alta la solicitud en PENDING con folio nuevo. Renglones repetidos
// del mismo producto se suman en uno solo.
func (uc *UseCase) Create(ctx context.Context, in CreateInput) (*entity.Requisition, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("la solicitud no tiene renglones: %w", domain.ErrInvalidInput)
	}
	var out *entity.Requisition
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		out, err = uc.createTx(ctx, r, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("folio", out.Folio).Int("renglones", len(out.Items)).Msg("solicitud creada")
	return out, nil
}

func (uc *UseCase) createTx(ctx context.Context, r repository.Repos, in CreateInput) (*entity.Requisition, error) {
	if err := checkDestination(ctx, r, in.InstitutionID, in.WarehouseID); err != nil {
		return nil, err
	}
	now := uc.now()
	req := &entity.Requisition{
		ID:                uuid.New().String(),
		InstitutionID:     in.InstitutionID,
		WarehouseID:       in.WarehouseID,
		Origin:            in.Origin,
		State:             entity.RequisitionPending,
		ScheduledDelivery: in.ScheduledDelivery,
		Observations:      in.Observations,
		RequestedBy:       in.RequestedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Origin == "" {
		req.Origin = entity.RequisitionOriginManual
	}

	byProduct := make(map[string]*entity.RequisitionItem, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("producto %s: %w", it.ProductID, domain.ErrInvalidQuantity)
		}
		if prev, ok := byProduct[it.ProductID]; ok {
			prev.QuantityRequested += it.Quantity
			continue
		}
		p, err := r.Products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("producto %s: %w", it.ProductID, domain.ErrUnknownKey)
		}
		item := &entity.RequisitionItem{
			ID:                uuid.New().String(),
			RequisitionID:     req.ID,
			ProductID:         p.ID,
			Position:          len(req.Items) + 1,
			QuantityRequested: it.Quantity,
			State:             entity.RequisitionItemPending,
			Justification:     it.Justification,
		}
		byProduct[p.ID] = item
		req.Items = append(req.Items, item)
	}

	number, err := uc.folios.NextTx(ctx, r, now)
	if err != nil {
		return nil, err
	}
	req.Folio = number
	if err := r.Requisitions.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("solicitud %s: %w", number, err)
	}
	return req, nil
}

func checkDestination(ctx context.Context, r repository.Repos, institutionID, warehouseID string) error {
	if institutionID == "" || warehouseID == "" {
		return fmt.Errorf("institución y almacén destino son obligatorios: %w", domain.ErrInvalidInput)
	}
	inst, err := r.Institutions.GetByID(ctx, institutionID)
	if err != nil {
		return err
	}
	if inst == nil || !inst.Active {
		return fmt.Errorf("institución %s: %w", institutionID, domain.ErrNotFound)
	}
	wh, err := r.Warehouses.GetByID(ctx, warehouseID)
	if err != nil {
		return err
	}
	if wh == nil {
		return fmt.Errorf("almacén %s: %w", warehouseID, domain.ErrNotFound)
	}
	if wh.InstitutionID != institutionID {
		return fmt.Errorf("el almacén %s no pertenece a la institución %s: %w", wh.Code, inst.Clue, domain.ErrForbidden)
	}
	return nil
}

// ValidateInput cantidades aprobadas por id de renglón. Un renglón ausente del
// mapa se aprueba por lo solicitado.
type ValidateInput struct {
	Approvals map[string]int64
	Notes     string
	Actor     string
}

// Validate fija las cantidades aprobadas (0 ≤ aprobada ≤ solicitada) y pasa la
// solicitud a VALIDATED. Con ValidationRequiresStock se rechaza la validación
// cuando ningún renglón aprobado tiene disponible efectivo.
func (uc *UseCase) Validate(ctx context.Context, id string, in ValidateInput) (*entity.Requisition, error) {
	var out *entity.Requisition
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		req, err := lockRequisition(ctx, r, id)
		if err != nil {
			return err
		}
		if req.State != entity.RequisitionPending {
			return domain.NewTransitionError("solicitud", req.State, entity.RequisitionValidated)
		}
		for itemID := range in.Approvals {
			if req.Item(itemID) == nil {
				return fmt.Errorf("renglón %s no pertenece a la solicitud %s: %w", itemID, req.Folio, domain.ErrInvalidInput)
			}
		}

		var approvedTotal int64
		for _, it := range req.Items {
			approved, ok := in.Approvals[it.ID]
			if !ok {
				approved = it.QuantityRequested
			}
			if approved < 0 || approved > it.QuantityRequested {
				return fmt.Errorf("renglón %d: aprobada %d, solicitada %d: %w",
					it.Position, approved, it.QuantityRequested, domain.ErrInvalidQuantity)
			}
			it.QuantityApproved = approved
			it.State = approvalState(it.QuantityRequested, approved)
			approvedTotal += approved
		}
		if approvedTotal == 0 {
			return fmt.Errorf("ningún renglón aprobado; use rechazar: %w", domain.ErrInvalidInput)
		}
		if uc.cfg.ValidationRequiresStock {
			if err := uc.requireSomeStock(ctx, r, req); err != nil {
				return err
			}
		}

		for _, it := range req.Items {
			if err := r.Requisitions.UpdateItem(ctx, it); err != nil {
				return err
			}
		}
		now := uc.now()
		if err := Advance(req, entity.RequisitionValidated, now); err != nil {
			return err
		}
		req.ValidationNotes = in.Notes
		req.ValidatedBy = in.Actor
		req.ValidatedAt = &now
		if err := r.Requisitions.Update(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("folio", out.Folio).Str("actor", in.Actor).Msg("solicitud validada")
	return out, nil
}

func (uc *UseCase) requireSomeStock(ctx context.Context, r repository.Repos, req *entity.Requisition) error {
	institution := req.InstitutionID
	if uc.cfg.CrossInstitution {
		institution = ""
	}
	for _, it := range req.Items {
		if it.QuantityApproved == 0 {
			continue
		}
		av, err := uc.ledger.AvailabilityCheckTx(ctx, r, it.ProductID, it.QuantityApproved, institution)
		if err != nil {
			return err
		}
		if av.EffectiveTotal > 0 {
			return nil
		}
	}
	return fmt.Errorf("solicitud %s: %w", req.Folio, domain.ErrNoAvailability)
}

func approvalState(requested, approved int64) string {
	switch {
	case approved == 0:
		return entity.RequisitionItemRejected
	case approved < requested:
		return entity.RequisitionItemPartial
	default:
		return entity.RequisitionItemApproved
	}
}

// Reject pasa a REJECTED una solicitud PENDING o VALIDATED sin propuesta activa.
func (uc *UseCase) Reject(ctx context.Context, id, reason, actor string) (*entity.Requisition, error) {
	var out *entity.Requisition
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		req, err := lockRequisition(ctx, r, id)
		if err != nil {
			return err
		}
		if err := Advance(req, entity.RequisitionRejected, uc.now()); err != nil {
			return err
		}
		req.ValidationNotes = reason
		req.ValidatedBy = actor
		if err := r.Requisitions.Update(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("folio", out.Folio).Str("actor", actor).Str("motivo", reason).Msg("solicitud rechazada")
	return out, nil
}

// Cancel cancela una solicitud PENDING.
func (uc *UseCase) Cancel(ctx context.Context, id, actor string) (*entity.Requisition, error) {
	var out *entity.Requisition
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		req, err := lockRequisition(ctx, r, id)
		if err != nil {
			return err
		}
		if err := Advance(req, entity.RequisitionCancelled, uc.now()); err != nil {
			return err
		}
		if err := r.Requisitions.Update(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("folio", out.Folio).Str("actor", actor).Msg("solicitud cancelada")
	return out, nil
}

// Get obtiene una solicitud con sus renglones; nil si no existe.
func (uc *UseCase) Get(ctx context.Context, id string) (*entity.Requisition, error) {
	return uc.repos.Requisitions.GetByID(ctx, id)
}

// GetByFolio busca por folio; el folio debe tener formato válido.
func (uc *UseCase) GetByFolio(ctx context.Context, number string) (*entity.Requisition, error) {
	f, err := folio.Parse(number)
	if err != nil {
		return nil, err
	}
	return uc.repos.Requisitions.GetByFolio(ctx, f.String())
}

// List lista solicitudes con filtros.
func (uc *UseCase) List(ctx context.Context, f repository.RequisitionFilter) ([]*entity.Requisition, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return uc.repos.Requisitions.List(ctx, f)
}

// Advance aplica la transición de la máquina de estados de la solicitud.
func Advance(req *entity.Requisition, to string, at time.Time) error {
	if !entity.CanRequisitionTransition(req.State, to) {
		return domain.NewTransitionError("solicitud", req.State, to)
	}
	req.State = to
	req.UpdatedAt = at
	return nil
}

func lockRequisition(ctx context.Context, r repository.Repos, id string) (*entity.Requisition, error) {
	req, err := r.Requisitions.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("solicitud %s: %w", id, domain.ErrNotFound)
	}
	return req, nil
}
