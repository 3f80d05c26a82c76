// Package audit verifica la consistencia entre lotes, ubicaciones, reservas y
// movimientos, y genera los reportes de consulta del almacén.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// Finding hallazgo de una corrida de conciliación.
type Finding struct {
	Kind       string `json:"kind"`
	LotID      string `json:"lot_id,omitempty"`
	ProposalID string `json:"proposal_id,omitempty"`
	Expected   int64  `json:"expected"`
	Actual     int64  `json:"actual"`
	Delta      int64  `json:"delta"`
	Fixed      bool   `json:"fixed"`
	Details    string `json:"details,omitempty"`

	ids   []string // filas duplicadas, la primera se conserva
	stale bool     // desapareció al revisarse con bloqueo
}

// Report resultado de Reconciler.Run.
type Report struct {
	RunID      string    `json:"run_id"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Findings   []Finding `json:"findings"`
}

// Fixed número de hallazgos corregidos.
func (r *Report) Fixed() int {
	n := 0
	for _, f := range r.Findings {
		if f.Fixed {
			n++
		}
	}
	return n
}

// Clean indica que no hubo hallazgos.
func (r *Report) Clean() bool { return len(r.Findings) == 0 }

// RunOptions DryRun sólo reporta, sin escribir.
type RunOptions struct {
	DryRun bool
	Actor  string
}

// Reconciler ejecuta las verificaciones de integridad.
//
// Sólo dos hallazgos se corrigen solos: la deriva entre el lote y sus ubicaciones
// (SyncLotTotals) y las filas duplicadas. El resto se registra en la bitácora y se
// publica como alerta: indica un defecto que alguien debe revisar.
type Reconciler struct {
	txRunner  inventory.TxRunner
	repos     repository.Repos
	lots      *inventory.LotStore
	publisher ports.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewReconciler construye el conciliador.
func NewReconciler(
	txRunner inventory.TxRunner,
	repos repository.Repos,
	lots *inventory.LotStore,
	publisher ports.EventPublisher,
	log *logger.Logger,
) *Reconciler {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	return &Reconciler{
		txRunner:  txRunner,
		repos:     repos,
		lots:      lots,
		publisher: publisher,
		log:       log.WithComponent("reconciler"),
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj.
func (rc *Reconciler) SetClock(now func() time.Time) { rc.now = now }

// Run ejecuta las verificaciones en paralelo, cada una dentro de su propia
// transacción de sólo lectura para que compare filas de la misma instantánea. Fuera
// del simulacro cada hallazgo de lote se vuelve a revisar con el lote bloqueado
// antes de corregirlo o registrarlo.
func (rc *Reconciler) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	rep := &Report{RunID: uuid.New().String(), DryRun: opts.DryRun, StartedAt: rc.now()}

	checks := []func(context.Context, repository.Repos) ([]Finding, error){
		rc.checkLotTotals,
		rc.checkReserved,
		rc.checkTerminalReservations,
		rc.checkDispatchExits,
		rc.checkDuplicateAssignments,
		rc.checkDuplicatePlacements,
	}
	results := make([][]Finding, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			return rc.txRunner.RunReadOnly(gctx, func(r repository.Repos) error {
				found, err := check(gctx, r)
				if err != nil {
					return err
				}
				results[i] = found
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("conciliación: %w", err)
	}
	for _, found := range results {
		rep.Findings = append(rep.Findings, found...)
	}

	if !opts.DryRun {
		if err := rc.apply(ctx, rep); err != nil {
			return rep, err
		}
		rc.alert(ctx, rep)
	}
	rep.FinishedAt = rc.now()
	rc.log.Info().
		Str("run_id", rep.RunID).
		Int("hallazgos", len(rep.Findings)).
		Int("corregidos", rep.Fixed()).
		Bool("dry_run", opts.DryRun).
		Msg("conciliación terminada")
	return rep, nil
}

// ── verificaciones ────────────────────────────────────────────────────────────

func (rc *Reconciler) checkLotTotals(ctx context.Context, r repository.Repos) ([]Finding, error) {
	lots, err := r.Lots.List(ctx, repository.LotFilter{})
	if err != nil {
		return nil, err
	}
	sums, err := r.PlacementAudit.PlacementSums(ctx)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, lot := range lots {
		sum := sums[lot.ID]
		if sum == lot.QuantityAvailable {
			continue
		}
		out = append(out, Finding{
			Kind:     entity.FindingLotTotalsDrift,
			LotID:    lot.ID,
			Expected: sum,
			Actual:   lot.QuantityAvailable,
			Delta:    sum - lot.QuantityAvailable,
			Details:  fmt.Sprintf("lote %s: disponible %d, Σ ubicaciones %d", lot.LotNumber, lot.QuantityAvailable, sum),
		})
	}
	return out, nil
}

func (rc *Reconciler) checkReserved(ctx context.Context, r repository.Repos) ([]Finding, error) {
	lots, err := r.Lots.List(ctx, repository.LotFilter{})
	if err != nil {
		return nil, err
	}
	pending, err := r.Proposals.PendingReservedByLot(ctx)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, lot := range lots {
		want := pending[lot.ID]
		if want == lot.QuantityReserved {
			continue
		}
		rc.log.Error().Str("lot_id", lot.ID).Int64("reservado", lot.QuantityReserved).Int64("asignado", want).
			Msg("reservado del lote no coincide con las asignaciones pendientes")
		out = append(out, Finding{
			Kind:     entity.FindingReservedDrift,
			LotID:    lot.ID,
			Expected: want,
			Actual:   lot.QuantityReserved,
			Delta:    want - lot.QuantityReserved,
			Details:  fmt.Sprintf("lote %s: reservado %d, asignaciones pendientes %d", lot.LotNumber, lot.QuantityReserved, want),
		})
	}
	return out, nil
}

func (rc *Reconciler) checkTerminalReservations(ctx context.Context, r repository.Repos) ([]Finding, error) {
	residual, err := r.Proposals.ReservedByTerminalProposals(ctx)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for proposalID, qty := range residual {
		if qty == 0 {
			continue
		}
		rc.log.Error().Str("proposal_id", proposalID).Int64("cantidad", qty).Msg("propuesta terminal con reservas")
		out = append(out, Finding{
			Kind:       entity.FindingTerminalReservation,
			ProposalID: proposalID,
			Actual:     qty,
			Delta:      -qty,
			Details:    fmt.Sprintf("%d unidades asignadas sin despachar en propuesta terminal", qty),
		})
	}
	sortFindings(out)
	return out, nil
}

func (rc *Reconciler) checkDispatchExits(ctx context.Context, r repository.Repos) ([]Finding, error) {
	proposals, err := r.Proposals.List(ctx, repository.ProposalFilter{States: []string{entity.ProposalDispatched}})
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, p := range proposals {
		exits, err := r.Movements.SumExitsByFolio(ctx, p.Folio)
		if err != nil {
			return nil, err
		}
		if len(exits) > 0 {
			continue
		}
		rc.log.Error().Str("folio", p.Folio).Str("proposal_id", p.ID).Msg("propuesta despachada sin salida")
		out = append(out, Finding{
			Kind:       entity.FindingMissingExit,
			ProposalID: p.ID,
			Expected:   p.TotalDispatched,
			Details:    fmt.Sprintf("folio %s sin movimientos EXIT", p.Folio),
		})
	}
	return out, nil
}

func (rc *Reconciler) checkDuplicateAssignments(ctx context.Context, r repository.Repos) ([]Finding, error) {
	dups, err := r.Proposals.FindDuplicateAssignments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Finding, 0, len(dups))
	for _, d := range dups {
		out = append(out, Finding{
			Kind:       entity.FindingDuplicateAssignment,
			ProposalID: d.ProposalID,
			Expected:   1,
			Actual:     int64(len(d.AssignmentIDs)),
			Details:    fmt.Sprintf("renglón %s, ubicación %s", d.ProposalItemID, d.PlacementID),
			ids:        d.AssignmentIDs,
		})
	}
	return out, nil
}

func (rc *Reconciler) checkDuplicatePlacements(ctx context.Context, r repository.Repos) ([]Finding, error) {
	dups, err := r.PlacementAudit.FindDuplicatePlacements(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Finding, 0, len(dups))
	for _, d := range dups {
		out = append(out, Finding{
			Kind:     entity.FindingDuplicatePlacement,
			LotID:    d.LotID,
			Expected: 1,
			Actual:   int64(len(d.PlacementIDs)),
			Details:  fmt.Sprintf("ubicación %s", d.BinID),
			ids:      d.PlacementIDs,
		})
	}
	return out, nil
}

// ── correcciones ──────────────────────────────────────────────────────────────

func (rc *Reconciler) apply(ctx context.Context, rep *Report) error {
	// Las ubicaciones duplicadas se fusionan antes de resincronizar: no cambian Σ.
	for i := range rep.Findings {
		f := &rep.Findings[i]
		var err error
		switch f.Kind {
		case entity.FindingDuplicatePlacement:
			err = rc.mergePlacements(ctx, rep.RunID, f)
		case entity.FindingDuplicateAssignment:
			err = rc.dropAssignments(ctx, rep.RunID, f)
		}
		if err != nil {
			return err
		}
	}
	for i := range rep.Findings {
		f := &rep.Findings[i]
		if f.Kind != entity.FindingLotTotalsDrift {
			continue
		}
		var res inventory.SyncResult
		err := rc.txRunner.Run(ctx, func(r repository.Repos) error {
			var err error
			res, err = rc.lots.SyncLotTotalsTx(ctx, r, f.LotID, rep.RunID)
			return err
		})
		switch {
		case err == nil && !res.Changed():
			f.stale = true
		case err == nil:
			f.Fixed = true
			f.Delta = res.Delta
		case errors.Is(err, domain.ErrReservationIntegrity):
			f.Details += "; no se corrige: el reservado excede la suma de ubicaciones"
		default:
			return err
		}
	}

	for i := range rep.Findings {
		f := &rep.Findings[i]
		if f.Kind != entity.FindingReservedDrift {
			continue
		}
		if err := rc.recheckReserved(ctx, f); err != nil {
			return err
		}
	}
	rep.Findings = dropStale(rep.Findings)

	// Lo no corregido queda en la bitácora. Las correcciones ya escribieron la suya.
	return rc.txRunner.Run(ctx, func(r repository.Repos) error {
		now := rc.now()
		for _, f := range rep.Findings {
			if f.Fixed {
				continue
			}
			if err := r.Reconciliation.Create(ctx, entry(rep.RunID, f, now)); err != nil {
				return err
			}
		}
		return nil
	})
}

// recheckReserved compara de nuevo el reservado del lote con sus asignaciones
// pendientes, con el lote bloqueado. Un hallazgo que ya no se reproduce se descarta.
func (rc *Reconciler) recheckReserved(ctx context.Context, f *Finding) error {
	return rc.txRunner.Run(ctx, func(r repository.Repos) error {
		lot, err := r.Lots.GetForUpdate(ctx, f.LotID)
		if err != nil {
			return err
		}
		if lot == nil {
			f.stale = true
			return nil
		}
		pending, err := r.Proposals.PendingReservedByLot(ctx)
		if err != nil {
			return err
		}
		want := pending[lot.ID]
		if want == lot.QuantityReserved {
			f.stale = true
			rc.log.Debug().Str("lot_id", lot.ID).Msg("descuadre de reservado no se reproduce con el lote bloqueado")
			return nil
		}
		f.Expected, f.Actual, f.Delta = want, lot.QuantityReserved, want-lot.QuantityReserved
		return nil
	})
}

func dropStale(fs []Finding) []Finding {
	out := fs[:0]
	for _, f := range fs {
		if !f.stale {
			out = append(out, f)
		}
	}
	return out
}

// mergePlacements conserva la ubicación más antigua y le suma las demás. Si alguna
// duplicada tiene reservas se deja sin tocar: hay asignaciones que la referencian.
// En PostgreSQL uq_bin_placements_lot_bin impide crear duplicados, así que sólo los
// hay en bases cargadas antes del índice o en el almacén en memoria
// (InsertPlacementUnchecked).
func (rc *Reconciler) mergePlacements(ctx context.Context, runID string, f *Finding) error {
	err := rc.txRunner.Run(ctx, func(r repository.Repos) error {
		keep, err := r.Placements.GetForUpdate(ctx, f.ids[0])
		if err != nil {
			return err
		}
		if keep == nil {
			return nil
		}
		var others []*entity.BinPlacement
		for _, id := range f.ids[1:] {
			p, err := r.Placements.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if p == nil {
				continue
			}
			if p.QuantityReserved > 0 {
				f.Details += fmt.Sprintf("; %s tiene %d reservadas, se deja", p.ID, p.QuantityReserved)
				return nil
			}
			others = append(others, p)
		}
		now := rc.now()
		for _, p := range others {
			keep.Quantity += p.Quantity
			if err := r.Placements.Delete(ctx, p.ID); err != nil {
				return err
			}
		}
		keep.UpdatedAt = now
		if err := r.Placements.Update(ctx, keep); err != nil {
			return err
		}
		f.Fixed = true
		return r.Reconciliation.Create(ctx, entry(runID, *f, now))
	})
	if err == nil && f.Fixed {
		rc.log.Info().Str("lot_id", f.LotID).Int("filas", len(f.ids)).Msg("ubicaciones duplicadas fusionadas")
	}
	return err
}

// dropAssignments borra las asignaciones duplicadas conservando la más antigua.
func (rc *Reconciler) dropAssignments(ctx context.Context, runID string, f *Finding) error {
	err := rc.txRunner.Run(ctx, func(r repository.Repos) error {
		for _, id := range f.ids[1:] {
			if err := r.Proposals.DeleteAssignment(ctx, id); err != nil {
				return err
			}
		}
		f.Fixed = true
		return r.Reconciliation.Create(ctx, entry(runID, *f, rc.now()))
	})
	if err == nil {
		rc.log.Info().Str("proposal_id", f.ProposalID).Int("eliminadas", len(f.ids)-1).Msg("asignaciones duplicadas eliminadas")
	}
	return err
}

func (rc *Reconciler) alert(ctx context.Context, rep *Report) {
	var events []ports.Event
	for _, f := range rep.Findings {
		if f.Fixed {
			continue
		}
		key := f.LotID
		if key == "" {
			key = f.ProposalID
		}
		events = append(events, ports.Event{
			Type:       ports.EventReconciliation,
			Key:        key,
			OccurredAt: rc.now(),
			Payload: map[string]any{
				"run_id":      rep.RunID,
				"finding":     f.Kind,
				"lot_id":      f.LotID,
				"proposal_id": f.ProposalID,
				"expected":    f.Expected,
				"actual":      f.Actual,
				"details":     f.Details,
			},
		})
	}
	if len(events) == 0 {
		return
	}
	if err := rc.publisher.Publish(ctx, events...); err != nil {
		rc.log.Warn().Err(err).Str("run_id", rep.RunID).Msg("alertas de conciliación no publicadas")
	}
}

// Entries bitácora de conciliación; runID vacío lista todas las corridas.
func (rc *Reconciler) Entries(ctx context.Context, runID string, limit, offset int) ([]*entity.ReconciliationEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return rc.repos.Reconciliation.List(ctx, runID, limit, offset)
}

func sortFindings(fs []Finding) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].ProposalID != fs[j].ProposalID {
			return fs[i].ProposalID < fs[j].ProposalID
		}
		return fs[i].LotID < fs[j].LotID
	})
}

func entry(runID string, f Finding, at time.Time) *entity.ReconciliationEntry {
	return &entity.ReconciliationEntry{
		ID:         uuid.New().String(),
		RunID:      runID,
		Finding:    f.Kind,
		LotID:      f.LotID,
		ProposalID: f.ProposalID,
		Expected:   f.Expected,
		Actual:     f.Actual,
		Delta:      f.Delta,
		Fixed:      f.Fixed,
		Details:    f.Details,
		CreatedAt:  at,
	}
}
