package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
	"github.com/jhoicas/Farmacia-api/pkg/textnorm"
)

// LotStore almacén de lotes y ubicaciones: alta de lotes, distribución por ubicación,
// kardex y estados. Cada escritura bloquea la fila del lote (SELECT FOR UPDATE).
type LotStore struct {
	txRunner  TxRunner
	repos     repository.Repos
	publisher ports.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewLotStore construye el almacén de lotes.
func NewLotStore(txRunner TxRunner, repos repository.Repos, publisher ports.EventPublisher, log *logger.Logger) *LotStore {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	return &LotStore{
		txRunner:  txRunner,
		repos:     repos,
		publisher: publisher,
		log:       log.WithComponent("lot_store"),
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj.
func (s *LotStore) SetClock(now func() time.Time) { s.now = now }

// LotInput atributos de alta o actualización de un lote.
// (ProductID, InstitutionID, LotNumber) es la llave del upsert.
type LotInput struct {
	ProductID       string
	InstitutionID   string
	LotNumber       string
	QuantityInitial int64
	UnitPrice       decimal.Decimal
	ExpiryDate      time.Time
	ManufactureDate *time.Time
	ReceptionDate   time.Time
	SupplyOrderID   string
	WarehouseID     string
	Procurement     entity.Procurement
	Actor           string
}

// UpsertLot crea o actualiza el lote en su propia transacción.
func (s *LotStore) UpsertLot(ctx context.Context, in LotInput) (*entity.Lot, bool, error) {
	var (
		lot     *entity.Lot
		created bool
	)
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		lot, created, err = s.UpsertLotTx(ctx, r, in)
		return err
	})
	return lot, created, err
}

// UpsertLotTx crea el lote o actualiza sus atributos si la llave ya existe.
// Las existencias no cambian aquí: las define la distribución por ubicación.
func (s *LotStore) UpsertLotTx(ctx context.Context, r repository.Repos, in LotInput) (*entity.Lot, bool, error) {
	in.LotNumber = textnorm.Code(in.LotNumber)
	if in.ProductID == "" || in.InstitutionID == "" || in.LotNumber == "" {
		return nil, false, domain.ErrInvalidInput
	}
	if in.QuantityInitial < 0 || in.UnitPrice.IsNegative() {
		return nil, false, domain.ErrInvalidQuantity
	}
	if in.ExpiryDate.IsZero() {
		return nil, false, fmt.Errorf("lote %s sin fecha de caducidad: %w", in.LotNumber, domain.ErrInvalidInput)
	}
	product, err := r.Products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, false, err
	}
	if product == nil {
		return nil, false, domain.ErrUnknownKey
	}
	inst, err := r.Institutions.GetByID(ctx, in.InstitutionID)
	if err != nil {
		return nil, false, err
	}
	if inst == nil {
		return nil, false, fmt.Errorf("institución %s: %w", in.InstitutionID, domain.ErrNotFound)
	}

	now := s.now()
	existing, err := r.Lots.GetByKey(ctx, in.ProductID, in.InstitutionID, in.LotNumber)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		lot, err := r.Lots.GetForUpdate(ctx, existing.ID)
		if err != nil {
			return nil, false, err
		}
		if in.QuantityInitial > 0 {
			lot.QuantityInitial = in.QuantityInitial
		}
		lot.UnitPrice = in.UnitPrice
		lot.ExpiryDate = in.ExpiryDate
		if in.ManufactureDate != nil {
			lot.ManufactureDate = in.ManufactureDate
		}
		if !in.ReceptionDate.IsZero() {
			lot.ReceptionDate = in.ReceptionDate
		}
		if in.SupplyOrderID != "" {
			lot.SupplyOrderID = in.SupplyOrderID
		}
		if in.WarehouseID != "" {
			lot.WarehouseID = in.WarehouseID
		}
		lot.Procurement = in.Procurement
		lot.RecomputeTotalValue()
		lot.UpdatedAt = now
		if err := r.Lots.Update(ctx, lot); err != nil {
			return nil, false, err
		}
		return lot, false, nil
	}

	reception := in.ReceptionDate
	if reception.IsZero() {
		reception = now
	}
	lot := &entity.Lot{
		ID:              uuid.New().String(),
		ProductID:       in.ProductID,
		InstitutionID:   in.InstitutionID,
		LotNumber:       in.LotNumber,
		QuantityInitial: in.QuantityInitial,
		UnitPrice:       in.UnitPrice,
		ExpiryDate:      in.ExpiryDate,
		ManufactureDate: in.ManufactureDate,
		ReceptionDate:   reception,
		State:           entity.LotStateAvailable,
		SupplyOrderID:   in.SupplyOrderID,
		WarehouseID:     in.WarehouseID,
		Procurement:     in.Procurement,
		CreatedBy:       in.Actor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	lot.RecomputeTotalValue()
	if err := r.Lots.Create(ctx, lot); err != nil {
		return nil, false, err
	}
	return lot, true, nil
}

// PlaceLot fija la cantidad del lote en una ubicación en su propia transacción.
func (s *LotStore) PlaceLot(ctx context.Context, lotID, binID string, qty int64, actor string) (*entity.BinPlacement, error) {
	var p *entity.BinPlacement
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		p, err = s.PlaceLotTx(ctx, r, lotID, binID, qty, actor)
		return err
	})
	return p, err
}

// PlaceLotTx crea o ajusta la ubicación (lote, ubicación) a qty. La diferencia se
// registra como entrada o ajuste negativo y al final se resincroniza el lote.
func (s *LotStore) PlaceLotTx(ctx context.Context, r repository.Repos, lotID, binID string, qty int64, actor string) (*entity.BinPlacement, error) {
	if qty < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	lot, err := lockLot(ctx, r, lotID)
	if err != nil {
		return nil, err
	}
	bin, err := r.Bins.GetByID(ctx, binID)
	if err != nil {
		return nil, err
	}
	if bin == nil {
		return nil, fmt.Errorf("ubicación %s: %w", binID, domain.ErrNotFound)
	}

	now := s.now()
	p, err := r.Placements.Get(ctx, lotID, binID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &entity.BinPlacement{
			ID:         uuid.New().String(),
			LotID:      lotID,
			BinID:      binID,
			AssignedBy: actor,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.Placements.Create(ctx, p); err != nil {
			return nil, err
		}
	} else if p, err = r.Placements.GetForUpdate(ctx, p.ID); err != nil {
		return nil, err
	}

	delta := qty - p.Quantity
	switch {
	case delta > 0:
		if bin.State == entity.BinStateBlocked {
			return nil, fmt.Errorf("ubicación %s bloqueada: %w", bin.Code, domain.ErrConflict)
		}
		_, err = s.applyTx(ctx, r, lot, []*entity.BinPlacement{p}, MovementInput{
			LotID: lotID, BinID: binID, Kind: entity.MovementEntry, Quantity: delta,
			Reason: "Asignación de ubicación", Actor: actor,
		})
	case delta < 0:
		_, err = s.applyTx(ctx, r, lot, []*entity.BinPlacement{p}, MovementInput{
			LotID: lotID, BinID: binID, Kind: entity.MovementNegativeAdjustment, Quantity: -delta,
			Reason: "Ajuste de ubicación", Actor: actor,
		})
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.SyncLotTotalsTx(ctx, r, lotID, ""); err != nil {
		return nil, err
	}
	return p, nil
}

// SyncResult corrección aplicada por SyncLotTotals.
type SyncResult struct {
	LotID  string `json:"lot_id"`
	Before int64  `json:"before"`
	After  int64  `json:"after"`
	Delta  int64  `json:"delta"`
}

// Changed indica si hubo deriva.
func (r SyncResult) Changed() bool { return r.Delta != 0 }

// SyncLotTotals resincroniza el lote en su propia transacción.
func (s *LotStore) SyncLotTotals(ctx context.Context, lotID string) (SyncResult, error) {
	var res SyncResult
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		res, err = s.SyncLotTotalsTx(ctx, r, lotID, "")
		return err
	})
	return res, err
}

// SyncLotTotalsTx iguala quantity_available a Σ ubicaciones. Si había deriva la
// registra en la bitácora de conciliación (runID vacío para correcciones sueltas).
// Es idempotente: sin deriva no escribe nada.
func (s *LotStore) SyncLotTotalsTx(ctx context.Context, r repository.Repos, lotID, runID string) (SyncResult, error) {
	lot, err := lockLot(ctx, r, lotID)
	if err != nil {
		return SyncResult{}, err
	}
	sum, err := r.Placements.SumByLot(ctx, lotID)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{LotID: lotID, Before: lot.QuantityAvailable, After: sum, Delta: sum - lot.QuantityAvailable}
	if !res.Changed() {
		return res, nil
	}
	if sum < lot.QuantityReserved {
		s.log.Error().Str("lot_id", lotID).Int64("suma_ubicaciones", sum).Int64("reservado", lot.QuantityReserved).
			Msg("resincronización dejaría reservado mayor que disponible")
		return res, fmt.Errorf("lote %s: %w", lot.LotNumber, domain.ErrReservationIntegrity)
	}

	now := s.now()
	lot.QuantityAvailable = sum
	lot.UpdatedAt = now
	if err := r.Lots.Update(ctx, lot); err != nil {
		return res, err
	}
	entry := &entity.ReconciliationEntry{
		ID:        uuid.New().String(),
		RunID:     runID,
		Finding:   entity.FindingLotTotalsDrift,
		LotID:     lotID,
		Expected:  sum,
		Actual:    res.Before,
		Delta:     res.Delta,
		Fixed:     true,
		Details:   fmt.Sprintf("quantity_available %d → %d (Σ ubicaciones)", res.Before, sum),
		CreatedAt: now,
	}
	if err := r.Reconciliation.Create(ctx, entry); err != nil {
		return res, err
	}
	s.log.Info().Str("lot_id", lotID).Int64("delta", res.Delta).Msg("lote resincronizado con sus ubicaciones")
	return res, nil
}

// MovementInput datos de un movimiento manual del kardex.
type MovementInput struct {
	LotID                    string
	BinID                    string
	Kind                     entity.MovementKind
	Quantity                 int64
	Reason                   string
	Reference                string
	Folio                    string
	RequisitionID            string
	ProposalID               string
	DestinationInstitutionID string
	CompensatesID            string
	Actor                    string
}

// RecordMovement registra un movimiento en su propia transacción.
func (s *LotStore) RecordMovement(ctx context.Context, in MovementInput) (*entity.Movement, error) {
	var m *entity.Movement
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		m, err = s.RecordMovementTx(ctx, r, in)
		return err
	})
	return m, err
}

// RecordMovementTx escribe el movimiento con qty_before/qty_after y aplica el delta
// al lote y a la ubicación indicada. Sin BinID sólo se acepta si el lote tiene
// una única ubicación.
func (s *LotStore) RecordMovementTx(ctx context.Context, r repository.Repos, in MovementInput) (*entity.Movement, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("tipo de movimiento %q: %w", in.Kind, domain.ErrInvalidInput)
	}
	if in.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	lot, err := lockLot(ctx, r, in.LotID)
	if err != nil {
		return nil, err
	}
	targets, err := s.resolvePlacementsTx(ctx, r, lot, in.BinID, in.Kind.Sign() > 0, in.Actor)
	if err != nil {
		return nil, err
	}
	if in.BinID == "" && len(targets) != 1 {
		return nil, fmt.Errorf("lote %s con %d ubicaciones, indique la ubicación: %w",
			lot.LotNumber, len(targets), domain.ErrInvalidInput)
	}
	in.BinID = targets[0].BinID
	return s.applyTx(ctx, r, lot, targets, in)
}

// resolvePlacementsTx devuelve las ubicaciones bloqueadas sobre las que se aplica el
// movimiento. Con binID, la de esa ubicación (creándola en entradas); sin él, todas.
func (s *LotStore) resolvePlacementsTx(
	ctx context.Context,
	r repository.Repos,
	lot *entity.Lot,
	binID string,
	positive bool,
	actor string,
) ([]*entity.BinPlacement, error) {
	if binID == "" {
		ps, err := r.Placements.ListByLotForUpdate(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		if len(ps) == 0 {
			return nil, fmt.Errorf("lote %s sin ubicaciones: %w", lot.LotNumber, domain.ErrInvalidInput)
		}
		return ps, nil
	}
	p, err := r.Placements.Get(ctx, lot.ID, binID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		p, err = r.Placements.GetForUpdate(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return []*entity.BinPlacement{p}, nil
	}
	if !positive {
		return nil, fmt.Errorf("el lote %s no está en la ubicación %s: %w", lot.LotNumber, binID, domain.ErrNegativeStock)
	}
	bin, err := r.Bins.GetByID(ctx, binID)
	if err != nil {
		return nil, err
	}
	if bin == nil {
		return nil, fmt.Errorf("ubicación %s: %w", binID, domain.ErrNotFound)
	}
	now := s.now()
	p = &entity.BinPlacement{
		ID:         uuid.New().String(),
		LotID:      lot.ID,
		BinID:      binID,
		AssignedBy: actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.Placements.Create(ctx, p); err != nil {
		return nil, err
	}
	return []*entity.BinPlacement{p}, nil
}

// applyTx núcleo del kardex: valida existencias, actualiza lote y ubicaciones y
// escribe el movimiento. Las salidas se toman de las ubicaciones en orden
// respetando lo reservado en cada una; las entradas van a la primera.
func (s *LotStore) applyTx(
	ctx context.Context,
	r repository.Repos,
	lot *entity.Lot,
	placements []*entity.BinPlacement,
	in MovementInput,
) (*entity.Movement, error) {
	sign := in.Kind.Sign()
	now := s.now()
	before := lot.QuantityAvailable

	if sign > 0 {
		if lot.State.Terminal() {
			return nil, fmt.Errorf("lote %s en estado %s: %w", lot.LotNumber, lot.State, domain.ErrLotNotAvailable)
		}
		p := placements[0]
		p.Quantity += in.Quantity
		p.UpdatedAt = now
		if err := r.Placements.Update(ctx, p); err != nil {
			return nil, err
		}
		lot.QuantityAvailable += in.Quantity
	} else {
		if before < in.Quantity {
			return nil, fmt.Errorf("lote %s: existencia %d, salida %d: %w",
				lot.LotNumber, before, in.Quantity, domain.ErrNegativeStock)
		}
		if before-in.Quantity < lot.QuantityReserved {
			return nil, fmt.Errorf("lote %s: reservado %d: %w", lot.LotNumber, lot.QuantityReserved, domain.ErrReservationIntegrity)
		}
		var onHand, free int64
		for _, p := range placements {
			onHand += p.Quantity
			free += max(p.Free(), 0)
		}
		if onHand < in.Quantity {
			return nil, fmt.Errorf("lote %s: ubicación con %d, salida %d: %w",
				lot.LotNumber, onHand, in.Quantity, domain.ErrNegativeStock)
		}
		if free < in.Quantity {
			return nil, fmt.Errorf("lote %s: libre en ubicación %d: %w", lot.LotNumber, free, domain.ErrReservationIntegrity)
		}
		remaining := in.Quantity
		for _, p := range placements {
			if remaining == 0 {
				break
			}
			n := min(max(p.Free(), 0), remaining)
			if n == 0 {
				continue
			}
			p.Quantity -= n
			p.UpdatedAt = now
			remaining -= n
			if err := r.Placements.Update(ctx, p); err != nil {
				return nil, err
			}
		}
		lot.QuantityAvailable -= in.Quantity
	}

	lot.UpdatedAt = now
	if err := r.Lots.Update(ctx, lot); err != nil {
		return nil, err
	}
	mov := &entity.Movement{
		ID:                       uuid.New().String(),
		LotID:                    lot.ID,
		BinID:                    in.BinID,
		Kind:                     in.Kind,
		Quantity:                 in.Quantity,
		QuantityBefore:           before,
		QuantityAfter:            lot.QuantityAvailable,
		Reason:                   in.Reason,
		Reference:                in.Reference,
		Folio:                    in.Folio,
		RequisitionID:            in.RequisitionID,
		ProposalID:               in.ProposalID,
		DestinationInstitutionID: in.DestinationInstitutionID,
		CompensatesID:            in.CompensatesID,
		CreatedBy:                in.Actor,
		CreatedAt:                now,
	}
	if err := r.Movements.Create(ctx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

// ChangeState cambia el estado del lote en su propia transacción.
func (s *LotStore) ChangeState(ctx context.Context, lotID string, state entity.LotState, reason, actor string) (*entity.Lot, error) {
	var lot *entity.Lot
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		lot, err = s.ChangeStateTx(ctx, r, lotID, state, reason, actor)
		return err
	})
	if err == nil && lot.State == entity.LotStateExpired {
		s.publishExpired(ctx, lot)
	}
	return lot, err
}

// ChangeStateTx registra la transición con fecha y actor. EXPIRED y DAMAGED son
// terminales: dan de baja lo que quede con un movimiento de merma y dejan las
// ubicaciones en cero. Un lote con reservas vigentes no puede darse de baja.
func (s *LotStore) ChangeStateTx(
	ctx context.Context,
	r repository.Repos,
	lotID string,
	state entity.LotState,
	reason, actor string,
) (*entity.Lot, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("estado de lote %d: %w", state, domain.ErrInvalidInput)
	}
	lot, err := lockLot(ctx, r, lotID)
	if err != nil {
		return nil, err
	}
	if lot.State == state {
		return lot, nil
	}
	if lot.State.Terminal() {
		return nil, domain.NewTransitionError("lote", lot.State.String(), state.String())
	}

	now := s.now()
	change := &entity.LotStateChange{
		ID:        uuid.New().String(),
		LotID:     lot.ID,
		From:      lot.State,
		To:        state,
		Reason:    reason,
		ChangedBy: actor,
		ChangedAt: now,
	}
	if state.Terminal() {
		if lot.QuantityReserved > 0 {
			return nil, fmt.Errorf("lote %s con %d reservadas: %w", lot.LotNumber, lot.QuantityReserved, domain.ErrConflict)
		}
		if lot.QuantityAvailable > 0 {
			kind := entity.MovementDamageWriteOff
			if state == entity.LotStateExpired {
				kind = entity.MovementExpiryWriteOff
			}
			mov := &entity.Movement{
				ID:             uuid.New().String(),
				LotID:          lot.ID,
				Kind:           kind,
				Quantity:       lot.QuantityAvailable,
				QuantityBefore: lot.QuantityAvailable,
				QuantityAfter:  0,
				Reason:         reason,
				CreatedBy:      actor,
				CreatedAt:      now,
			}
			if err := r.Movements.Create(ctx, mov); err != nil {
				return nil, err
			}
		}
		placements, err := r.Placements.ListByLotForUpdate(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range placements {
			if p.Quantity == 0 && p.QuantityReserved == 0 {
				continue
			}
			p.Quantity = 0
			p.QuantityReserved = 0
			p.UpdatedAt = now
			if err := r.Placements.Update(ctx, p); err != nil {
				return nil, err
			}
		}
		lot.QuantityAvailable = 0
	}

	lot.State = state
	lot.StateReason = reason
	lot.StateChangedAt = &now
	lot.StateChangedBy = actor
	lot.UpdatedAt = now
	if err := r.Lots.Update(ctx, lot); err != nil {
		return nil, err
	}
	if err := r.Lots.CreateStateChange(ctx, change); err != nil {
		return nil, err
	}
	s.log.Info().Str("lot_id", lot.ID).Str("de", change.From.String()).Str("estado", state.String()).Str("actor", actor).Msg("cambio de estado de lote")
	return lot, nil
}

// VoidMovement anula un movimiento y escribe su compensación de signo contrario.
// Nunca borra: el original queda con voided=true.
func (s *LotStore) VoidMovement(ctx context.Context, movementID, actor string) (*entity.Movement, error) {
	var comp *entity.Movement
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		comp, err = s.VoidMovementTx(ctx, r, movementID, actor)
		return err
	})
	return comp, err
}

// VoidMovementTx igual que VoidMovement dentro de la transacción del llamador.
func (s *LotStore) VoidMovementTx(ctx context.Context, r repository.Repos, movementID, actor string) (*entity.Movement, error) {
	m, err := r.Movements.GetForUpdate(ctx, movementID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("movimiento %s: %w", movementID, domain.ErrNotFound)
	}
	if m.Voided {
		return nil, fmt.Errorf("movimiento %s ya anulado: %w", movementID, domain.ErrConflict)
	}
	if m.CompensatesID != "" {
		return nil, fmt.Errorf("movimiento %s es una compensación: %w", movementID, domain.ErrConflict)
	}

	kind := entity.MovementPositiveAdjustment
	if m.Kind.Sign() > 0 {
		kind = entity.MovementNegativeAdjustment
	}
	lot, err := lockLot(ctx, r, m.LotID)
	if err != nil {
		return nil, err
	}
	targets, err := s.resolvePlacementsTx(ctx, r, lot, m.BinID, kind.Sign() > 0, actor)
	if err != nil {
		return nil, err
	}
	comp, err := s.applyTx(ctx, r, lot, targets, MovementInput{
		LotID:         m.LotID,
		BinID:         targets[0].BinID,
		Kind:          kind,
		Quantity:      m.Quantity,
		Reason:        "Anulación de movimiento " + m.ID,
		Reference:     m.Reference,
		Folio:         m.Folio,
		RequisitionID: m.RequisitionID,
		ProposalID:    m.ProposalID,
		CompensatesID: m.ID,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	if err := r.Movements.MarkVoided(ctx, m.ID, actor, comp.CreatedAt); err != nil {
		return nil, err
	}
	return comp, nil
}

// Relocate mueve unidades libres del lote entre dos ubicaciones con un par
// TRANSFER_OUT / TRANSFER_IN. La existencia total del lote no cambia.
func (s *LotStore) Relocate(ctx context.Context, lotID, fromBinID, toBinID string, qty int64, actor string) ([]*entity.Movement, error) {
	if fromBinID == "" || toBinID == "" || fromBinID == toBinID {
		return nil, domain.ErrInvalidInput
	}
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	var out []*entity.Movement
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		to, err := r.Bins.GetByID(ctx, toBinID)
		if err != nil {
			return err
		}
		if to == nil {
			return fmt.Errorf("ubicación %s: %w", toBinID, domain.ErrNotFound)
		}
		if to.State == entity.BinStateBlocked {
			return fmt.Errorf("ubicación %s bloqueada: %w", to.Code, domain.ErrConflict)
		}
		ref := uuid.New().String()
		outMov, err := s.RecordMovementTx(ctx, r, MovementInput{
			LotID: lotID, BinID: fromBinID, Kind: entity.MovementTransferOut, Quantity: qty,
			Reason: "Reubicación", Reference: ref, Actor: actor,
		})
		if err != nil {
			return err
		}
		inMov, err := s.RecordMovementTx(ctx, r, MovementInput{
			LotID: lotID, BinID: toBinID, Kind: entity.MovementTransferIn, Quantity: qty,
			Reason: "Reubicación", Reference: ref, Actor: actor,
		})
		if err != nil {
			return err
		}
		out = []*entity.Movement{outMov, inMov}
		return nil
	})
	return out, err
}

// Kardex movimientos de un lote en orden (created_at, seq).
func (s *LotStore) Kardex(ctx context.Context, lotID string, includeVoided bool) ([]*entity.Movement, error) {
	if lotID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.repos.Movements.List(ctx, repository.MovementFilter{LotID: lotID, IncludeVoided: includeVoided})
}

// StateHistory transiciones de estado del lote, la más antigua primero.
func (s *LotStore) StateHistory(ctx context.Context, lotID string) ([]*entity.LotStateChange, error) {
	if lotID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.repos.Lots.ListStateChanges(ctx, lotID)
}

// GetLot lote con sus ubicaciones.
func (s *LotStore) GetLot(ctx context.Context, lotID string) (*entity.Lot, []*entity.BinPlacement, error) {
	lot, err := s.repos.Lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, nil, err
	}
	if lot == nil {
		return nil, nil, domain.ErrNotFound
	}
	ps, err := s.repos.Placements.ListByLot(ctx, lotID)
	if err != nil {
		return nil, nil, err
	}
	return lot, ps, nil
}

// ListLots consulta de lotes.
func (s *LotStore) ListLots(ctx context.Context, f repository.LotFilter) ([]*entity.Lot, error) {
	return s.repos.Lots.List(ctx, f)
}

func (s *LotStore) publishExpired(ctx context.Context, lot *entity.Lot) {
	ev := ports.Event{
		Type:       ports.EventLotExpired,
		Key:        lot.ID,
		OccurredAt: s.now(),
		Payload: map[string]any{
			"lot_number":     lot.LotNumber,
			"product_id":     lot.ProductID,
			"institution_id": lot.InstitutionID,
			"expiry_date":    lot.ExpiryDate.Format(time.DateOnly),
		},
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("lot_id", lot.ID).Msg("no se pudo publicar caducidad de lote")
	}
}

func lockLot(ctx context.Context, r repository.Repos, lotID string) (*entity.Lot, error) {
	if lotID == "" {
		return nil, domain.ErrInvalidInput
	}
	lot, err := r.Lots.GetForUpdate(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("lote %s: %w", lotID, domain.ErrNotFound)
	}
	return lot, nil
}
