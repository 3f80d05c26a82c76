package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	rules "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// ReserveOutcome resultado explícito de una reserva (no es un error).
type ReserveOutcome int

const (
	ReserveOK ReserveOutcome = iota
	ReserveInsufficient
)

func (o ReserveOutcome) String() string {
	if o == ReserveOK {
		return "OK"
	}
	return "INSUFFICIENT"
}

// Reservation detalle de una reserva. Effective es el disponible efectivo observado
// bajo bloqueo; Takes reparte la cantidad reservada entre ubicaciones.
type Reservation struct {
	Outcome   ReserveOutcome
	LotID     string
	Quantity  int64
	Effective int64
	Takes     []rules.Take
}

// DispatchRef referencias que viajan al movimiento de salida.
type DispatchRef struct {
	Folio                    string
	RequisitionID            string
	ProposalID               string
	DestinationInstitutionID string
	Actor                    string
}

// Ledger libro de reservas: único componente que modifica quantity_reserved y,
// junto con el almacén de lotes, quantity_available.
type Ledger struct {
	txRunner      TxRunner
	repos         repository.Repos
	log           *logger.Logger
	minExpiryDays int
	now           func() time.Time
}

// NewLedger construye el libro de reservas. repos son los repositorios sobre el pool (lecturas).
func NewLedger(txRunner TxRunner, repos repository.Repos, log *logger.Logger, minExpiryDays int) *Ledger {
	return &Ledger{
		txRunner:      txRunner,
		repos:         repos,
		log:           log.WithComponent("ledger"),
		minExpiryDays: minExpiryDays,
		now:           time.Now,
	}
}

// SetClock reemplaza el reloj (pruebas y trabajos programados).
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// MinExpiryDays margen de caducidad configurado.
func (l *Ledger) MinExpiryDays() int { return l.minExpiryDays }

// Reserve reserva qty del lote en su propia transacción.
func (l *Ledger) Reserve(ctx context.Context, lotID string, qty int64) (Reservation, error) {
	var res Reservation
	err := l.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		res, err = l.ReserveTx(ctx, r, lotID, qty)
		return err
	})
	return res, err
}

// ReserveTx bloquea el lote y sus ubicaciones, verifica el disponible efectivo e
// incrementa quantity_reserved. Insuficiencia se devuelve como ReserveInsufficient.
func (l *Ledger) ReserveTx(ctx context.Context, r repository.Repos, lotID string, qty int64) (Reservation, error) {
	res := Reservation{LotID: lotID, Outcome: ReserveInsufficient}
	if qty <= 0 {
		return res, domain.ErrInvalidQuantity
	}
	lot, err := r.Lots.GetForUpdate(ctx, lotID)
	if err != nil {
		return res, err
	}
	if lot == nil {
		return res, fmt.Errorf("lote %s: %w", lotID, domain.ErrNotFound)
	}
	if lot.State != entity.LotStateAvailable {
		return res, fmt.Errorf("lote %s en estado %s: %w", lot.LotNumber, lot.State, domain.ErrLotNotAvailable)
	}
	res.Effective = lot.EffectiveAvailable()
	if res.Effective < qty {
		return res, nil
	}

	placements, err := r.Placements.ListByLotForUpdate(ctx, lot.ID)
	if err != nil {
		return res, err
	}
	takes, covered := rules.SplitAcrossPlacements(placements, qty)
	if covered < qty {
		// Las ubicaciones no respaldan lo que el lote dice tener libre.
		l.log.Warn().Str("lot_id", lot.ID).Int64("efectivo", res.Effective).Int64("ubicaciones", covered).
			Msg("disponible del lote no respaldado por ubicaciones")
		res.Effective = covered
		return res, nil
	}

	lot.QuantityReserved += qty
	if lot.QuantityReserved > lot.QuantityAvailable {
		return res, domain.ErrReservationIntegrity
	}
	lot.UpdatedAt = l.now()
	if err := r.Lots.Update(ctx, lot); err != nil {
		return res, err
	}
	byID := indexPlacements(placements)
	for _, t := range takes {
		p := byID[t.PlacementID]
		p.QuantityReserved += t.Quantity
		p.UpdatedAt = lot.UpdatedAt
		if err := r.Placements.Update(ctx, p); err != nil {
			return res, err
		}
	}
	res.Outcome = ReserveOK
	res.Quantity = qty
	res.Takes = takes
	return res, nil
}

// Release libera qty del lote en su propia transacción.
func (l *Ledger) Release(ctx context.Context, lotID string, qty int64) error {
	return l.txRunner.Run(ctx, func(r repository.Repos) error {
		return l.ReleaseTx(ctx, r, lotID, "", qty)
	})
}

// ReleaseTx decrementa quantity_reserved con piso en 0. Con placementID se libera
// esa ubicación; sin él, se reparte entre las ubicaciones con reserva en su orden.
// No falla por cantidades: sólo por infraestructura o lote inexistente.
func (l *Ledger) ReleaseTx(ctx context.Context, r repository.Repos, lotID, placementID string, qty int64) error {
	if qty <= 0 {
		return nil
	}
	lot, err := r.Lots.GetForUpdate(ctx, lotID)
	if err != nil {
		return err
	}
	if lot == nil {
		return fmt.Errorf("lote %s: %w", lotID, domain.ErrNotFound)
	}
	now := l.now()
	lot.QuantityReserved = clampSub(lot.QuantityReserved, qty)
	lot.UpdatedAt = now
	if err := r.Lots.Update(ctx, lot); err != nil {
		return err
	}

	if placementID != "" {
		p, err := r.Placements.GetForUpdate(ctx, placementID)
		if err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		p.QuantityReserved = clampSub(p.QuantityReserved, qty)
		p.UpdatedAt = now
		return r.Placements.Update(ctx, p)
	}

	placements, err := r.Placements.ListByLotForUpdate(ctx, lotID)
	if err != nil {
		return err
	}
	remaining := qty
	for _, p := range placements {
		if remaining == 0 {
			break
		}
		if p.QuantityReserved == 0 {
			continue
		}
		n := min(p.QuantityReserved, remaining)
		p.QuantityReserved -= n
		p.UpdatedAt = now
		remaining -= n
		if err := r.Placements.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// CommitDispatchTx confirma la salida de las asignaciones de un lote: decrementa
// disponible y reservado (lote y ubicaciones), escribe una salida (EXIT) por el total
// y marca las asignaciones como despachadas. Las ya despachadas se ignoran, por lo
// que repetir la llamada no duplica efectos. Devuelve nil si no había pendientes.
func (l *Ledger) CommitDispatchTx(
	ctx context.Context,
	r repository.Repos,
	lotID string,
	assignments []*entity.LotAssignment,
	ref DispatchRef,
) (*entity.Movement, error) {
	var pending []*entity.LotAssignment
	var total int64
	for _, a := range assignments {
		if a.LotID != lotID {
			return nil, fmt.Errorf("asignación %s no pertenece al lote %s: %w", a.ID, lotID, domain.ErrInvalidInput)
		}
		if a.Dispatched {
			continue
		}
		pending = append(pending, a)
		total += a.Quantity
	}
	if len(pending) == 0 {
		return nil, nil
	}

	lot, err := r.Lots.GetForUpdate(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("lote %s: %w", lotID, domain.ErrNotFound)
	}
	if lot.QuantityAvailable < total {
		return nil, fmt.Errorf("lote %s: disponible %d, salida %d: %w",
			lot.LotNumber, lot.QuantityAvailable, total, domain.ErrNegativeStock)
	}

	now := l.now()
	for _, a := range pending {
		p, err := r.Placements.GetForUpdate(ctx, a.PlacementID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("ubicación %s de la asignación %s: %w", a.PlacementID, a.ID, domain.ErrNotFound)
		}
		if p.Quantity < a.Quantity {
			return nil, fmt.Errorf("ubicación %s: existencia %d, salida %d: %w",
				p.ID, p.Quantity, a.Quantity, domain.ErrNegativeStock)
		}
		p.Quantity -= a.Quantity
		p.QuantityReserved = clampSub(p.QuantityReserved, a.Quantity)
		p.UpdatedAt = now
		if err := r.Placements.Update(ctx, p); err != nil {
			return nil, err
		}
	}

	before := lot.QuantityAvailable
	lot.QuantityAvailable -= total
	lot.QuantityReserved = clampSub(lot.QuantityReserved, total)
	lot.UpdatedAt = now
	if err := r.Lots.Update(ctx, lot); err != nil {
		return nil, err
	}

	mov := &entity.Movement{
		ID:                       uuid.New().String(),
		LotID:                    lot.ID,
		Kind:                     entity.MovementExit,
		Quantity:                 total,
		QuantityBefore:           before,
		QuantityAfter:            lot.QuantityAvailable,
		Reason:                   "Salida por surtimiento de pedido",
		Reference:                ref.Folio,
		Folio:                    ref.Folio,
		RequisitionID:            ref.RequisitionID,
		ProposalID:               ref.ProposalID,
		DestinationInstitutionID: ref.DestinationInstitutionID,
		CreatedBy:                ref.Actor,
		CreatedAt:                now,
	}
	if err := r.Movements.Create(ctx, mov); err != nil {
		return nil, err
	}

	for _, a := range pending {
		a.Dispatched = true
		a.DispatchedAt = &now
		if err := r.Proposals.UpdateAssignment(ctx, a); err != nil {
			return nil, err
		}
	}
	return mov, nil
}

// LotAvailability renglón del desglose por lote, en orden FEFO.
type LotAvailability struct {
	LotID         string    `json:"lot_id"`
	LotNumber     string    `json:"lot_number"`
	InstitutionID string    `json:"institution_id"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Available     int64     `json:"available"`
	Reserved      int64     `json:"reserved"`
	Effective     int64     `json:"effective"`
	WouldTake     int64     `json:"would_take"`
}

// Availability resultado de availability_check.
type Availability struct {
	ProductID      string            `json:"product_id"`
	Requested      int64             `json:"requested"`
	OK             bool              `json:"ok"`
	EffectiveTotal int64             `json:"effective_total"`
	Lots           []LotAvailability `json:"lots"`
}

// AvailabilityCheck suma el disponible efectivo de los lotes elegibles del producto
// (opcionalmente de una institución) y devuelve los lotes que el generador elegiría.
func (l *Ledger) AvailabilityCheck(ctx context.Context, productID string, qty int64, institutionID string) (*Availability, error) {
	return l.AvailabilityCheckTx(ctx, l.repos, productID, qty, institutionID)
}

// AvailabilityCheckTx igual que AvailabilityCheck con los repositorios dados (sin bloqueos).
func (l *Ledger) AvailabilityCheckTx(
	ctx context.Context,
	r repository.Repos,
	productID string,
	qty int64,
	institutionID string,
) (*Availability, error) {
	if productID == "" || qty < 0 {
		return nil, domain.ErrInvalidInput
	}
	minExpiry := rules.MinExpiry(l.now(), l.minExpiryDays)
	lots, err := r.Lots.ListEligible(ctx, repository.EligibleLotQuery{
		ProductID:     productID,
		InstitutionID: institutionID,
		MinExpiry:     minExpiry,
	})
	if err != nil {
		return nil, err
	}
	lots = rules.FilterEligible(lots, minExpiry)
	rules.SortFEFO(lots)

	plan, _ := rules.PlanLots(lots, qty)
	take := make(map[string]int64, len(plan))
	for _, p := range plan {
		take[p.Lot.ID] = p.Quantity
	}

	out := &Availability{ProductID: productID, Requested: qty, Lots: make([]LotAvailability, 0, len(lots))}
	for _, lot := range lots {
		eff := lot.EffectiveAvailable()
		out.EffectiveTotal += eff
		out.Lots = append(out.Lots, LotAvailability{
			LotID:         lot.ID,
			LotNumber:     lot.LotNumber,
			InstitutionID: lot.InstitutionID,
			ExpiryDate:    lot.ExpiryDate,
			Available:     lot.QuantityAvailable,
			Reserved:      lot.QuantityReserved,
			Effective:     eff,
			WouldTake:     take[lot.ID],
		})
	}
	out.OK = out.EffectiveTotal >= qty
	return out, nil
}

func clampSub(v, d int64) int64 {
	if d >= v {
		return 0
	}
	return v - d
}

func indexPlacements(ps []*entity.BinPlacement) map[string]*entity.BinPlacement {
	m := make(map[string]*entity.BinPlacement, len(ps))
	for _, p := range ps {
		m[p.ID] = p
	}
	return m
}
