package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/audit"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/application/proposal"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// ── sin hallazgos ─────────────────────────────────────────────────────────────

func TestReconciler_FlujoNormalSinHallazgos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.lot(t, "L1", date(2026, 1, 31), 6, 4)
	d := f.proposalFor(t, 7)
	_, err := f.lifecycle.Review(ctx, d.Proposal.ID, "supervisor")
	require.NoError(t, err)
	_, err = f.lifecycle.StartPicking(ctx, d.Proposal.ID, "almacenista")
	require.NoError(t, err)
	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	require.NoError(t, err)
	f.proposalFor(t, 2)

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	assert.True(t, rep.Clean(), "%+v", rep.Findings)
	assert.Empty(t, f.events.ofType(ports.EventReconciliation))
}

// ── deriva de existencias ─────────────────────────────────────────────────────

func TestReconciler_DerivaSeCorrige(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 100)

	// Mutación externa: la ubicación quedó en 97.
	ps, err := f.repos.Placements.ListByLot(ctx, lot.ID)
	require.NoError(t, err)
	ps[0].Quantity = 97
	require.NoError(t, f.repos.Placements.Update(ctx, ps[0]))

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	drift := byKind(rep, entity.FindingLotTotalsDrift)
	require.Len(t, drift, 1)
	assert.True(t, drift[0].Fixed)
	assert.Equal(t, int64(-3), drift[0].Delta)
	assert.Equal(t, int64(97), f.reload(t, lot.ID).QuantityAvailable)

	entries, err := f.reconciler.Entries(ctx, rep.RunID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.FindingLotTotalsDrift, entries[0].Finding)
	assert.Equal(t, int64(-3), entries[0].Delta)
	assert.True(t, entries[0].Fixed)

	again, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	assert.True(t, again.Clean())
}

func TestReconciler_SimulacroNoEscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 10)
	ps, err := f.repos.Placements.ListByLot(ctx, lot.ID)
	require.NoError(t, err)
	ps[0].Quantity = 8
	require.NoError(t, f.repos.Placements.Update(ctx, ps[0]))

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, byKind(rep, entity.FindingLotTotalsDrift), 1)
	assert.Equal(t, 0, rep.Fixed())
	assert.Equal(t, int64(10), f.reload(t, lot.ID).QuantityAvailable)

	entries, err := f.reconciler.Entries(ctx, rep.RunID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.events.ofType(ports.EventReconciliation))
}

// ── reservas ──────────────────────────────────────────────────────────────────

func TestReconciler_ReservadoDescuadradoNoSeCorrige(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 10)
	lot.QuantityReserved = 4
	require.NoError(t, f.repos.Lots.Update(ctx, lot))

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	found := byKind(rep, entity.FindingReservedDrift)
	require.Len(t, found, 1)
	assert.False(t, found[0].Fixed)
	assert.Equal(t, int64(0), found[0].Expected)
	assert.Equal(t, int64(4), found[0].Actual)
	assert.Equal(t, int64(4), f.reload(t, lot.ID).QuantityReserved)

	entries, err := f.reconciler.Entries(ctx, rep.RunID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Fixed)
	alerts := f.events.ofType(ports.EventReconciliation)
	require.Len(t, alerts, 1)
	assert.Equal(t, lot.ID, alerts[0].Key)
}

func TestReconciler_PropuestaTerminalConReservas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.lot(t, "L1", date(2026, 1, 31), 10)
	d := f.proposalFor(t, 4)

	// Cancelación defectuosa: el estado cambió pero las asignaciones siguen.
	p := d.Proposal
	p.State = entity.ProposalCancelled
	require.NoError(t, f.repos.Proposals.Update(ctx, p))

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	residual := byKind(rep, entity.FindingTerminalReservation)
	require.Len(t, residual, 1)
	assert.Equal(t, p.ID, residual[0].ProposalID)
	assert.Equal(t, int64(4), residual[0].Actual)
	assert.False(t, residual[0].Fixed)
	assert.Len(t, byKind(rep, entity.FindingReservedDrift), 1)
}

func TestReconciler_DespachoSinSalida(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.lot(t, "L1", date(2026, 1, 31), 10)
	d := f.proposalFor(t, 4)
	p := d.Proposal
	p.State = entity.ProposalDispatched
	require.NoError(t, f.repos.Proposals.Update(ctx, p))

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	missing := byKind(rep, entity.FindingMissingExit)
	require.Len(t, missing, 1)
	assert.Equal(t, p.ID, missing[0].ProposalID)
	assert.Contains(t, missing[0].Details, p.Folio)
}

// ── duplicados ────────────────────────────────────────────────────────────────

func TestReconciler_AsignacionDuplicadaConservaLaPrimera(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.lot(t, "L1", date(2026, 1, 31), 10)
	d := f.proposalFor(t, 4)
	require.Len(t, d.Assignments, 1)
	original := d.Assignments[0]
	dup := *original
	dup.ID = uuid.New().String()
	dup.AssignedAt = original.AssignedAt.Add(time.Minute)
	f.store.InsertAssignmentUnchecked(dup)

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	found := byKind(rep, entity.FindingDuplicateAssignment)
	require.Len(t, found, 1)
	assert.True(t, found[0].Fixed)
	assert.Equal(t, int64(2), found[0].Actual)

	left, err := f.repos.Proposals.ListAssignments(ctx, d.Proposal.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, original.ID, left[0].ID)

	again, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	assert.True(t, again.Clean(), "%+v", again.Findings)
}

func TestReconciler_UbicacionDuplicadaSeFusiona(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 10)
	f.store.InsertPlacementUnchecked(entity.BinPlacement{
		ID:        uuid.New().String(),
		LotID:     lot.ID,
		BinID:     f.binA.ID,
		Quantity:  5,
		CreatedAt: hoy.Add(time.Hour),
		UpdatedAt: hoy.Add(time.Hour),
	})

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	dup := byKind(rep, entity.FindingDuplicatePlacement)
	require.Len(t, dup, 1)
	assert.True(t, dup[0].Fixed)
	drift := byKind(rep, entity.FindingLotTotalsDrift)
	require.Len(t, drift, 1)
	assert.True(t, drift[0].Fixed)
	assert.Equal(t, int64(5), drift[0].Delta)

	ps, err := f.repos.Placements.ListByLot(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, int64(15), ps[0].Quantity)
	assert.Equal(t, int64(15), f.reload(t, lot.ID).QuantityAvailable)
}

func TestReconciler_UbicacionDuplicadaConReservasNoSeToca(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 10)
	f.store.InsertPlacementUnchecked(entity.BinPlacement{
		ID:               uuid.New().String(),
		LotID:            lot.ID,
		BinID:            f.binA.ID,
		Quantity:         5,
		QuantityReserved: 2,
		CreatedAt:        hoy.Add(time.Hour),
	})

	rep, err := f.reconciler.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	dup := byKind(rep, entity.FindingDuplicatePlacement)
	require.Len(t, dup, 1)
	assert.False(t, dup[0].Fixed)

	ps, err := f.repos.Placements.ListByLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}

// ── instantánea y revisión con bloqueo ────────────────────────────────────────

func TestReconciler_VerificacionesLeenDeLaInstantanea(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 10)
	lot.QuantityReserved = 3
	require.NoError(t, f.repos.Lots.Update(ctx, lot))

	// Sin repositorios de autocommit: cualquier lectura fuera de la transacción falla.
	rc := audit.NewReconciler(f.store, repository.Repos{}, f.lots, f.events, logger.Nop())
	rep, err := rc.Run(ctx, audit.RunOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, byKind(rep, entity.FindingReservedDrift), 1)
}

func TestReconciler_GeneracionConcurrenteSinFalsosDescuadres(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 200, 200)

	reqIDs := make([]string, 20)
	for i := range reqIDs {
		req, err := f.reqs.Create(ctx, requisition.CreateInput{
			InstitutionID: f.inst.ID,
			WarehouseID:   f.wh.ID,
			RequestedBy:   "u-1",
			Items:         []requisition.ItemInput{{ProductID: f.product.ID, Quantity: 3}},
		})
		require.NoError(t, err)
		_, err = f.reqs.Validate(ctx, req.ID, requisition.ValidateInput{Actor: "validador"})
		require.NoError(t, err)
		reqIDs[i] = req.ID
	}

	var wg sync.WaitGroup
	genErrs := make(chan error, len(reqIDs))
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, id := range reqIDs {
			if _, err := f.gen.Generate(ctx, id, "almacenista"); err != nil {
				genErrs <- err
			}
		}
	}()
	for i := 0; i < 20; i++ {
		rep, err := f.reconciler.Run(ctx, audit.RunOptions{DryRun: true})
		require.NoError(t, err)
		assert.Empty(t, byKind(rep, entity.FindingReservedDrift))
		assert.Empty(t, byKind(rep, entity.FindingLotTotalsDrift))
	}
	wg.Wait()
	close(genErrs)
	for err := range genErrs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(60), f.reload(t, lot.ID).QuantityReserved)
}

// fixBeforeApply corre fix antes de la primera transacción de escritura.
type fixBeforeApply struct {
	*memory.Store
	once sync.Once
	fix  func()
}

func (r *fixBeforeApply) Run(ctx context.Context, fn func(repository.Repos) error) error {
	r.once.Do(r.fix)
	return r.Store.Run(ctx, fn)
}

func TestReconciler_DescuadreQueDesapareceNoSeRegistra(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 10)
	lot.QuantityReserved = 4
	require.NoError(t, f.repos.Lots.Update(ctx, lot))

	runner := &fixBeforeApply{Store: f.store, fix: func() {
		l := f.reload(t, lot.ID)
		l.QuantityReserved = 0
		require.NoError(t, f.repos.Lots.Update(ctx, l))
	}}
	rc := audit.NewReconciler(runner, f.repos, f.lots, f.events, logger.Nop())
	rep, err := rc.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	assert.True(t, rep.Clean(), "%+v", rep.Findings)

	entries, err := rc.Entries(ctx, rep.RunID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.events.ofType(ports.EventReconciliation))
}

func TestReconciler_DerivaQueDesapareceNoSeCorrige(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, "L1", date(2026, 1, 31), 10)
	ps, err := f.repos.Placements.ListByLot(ctx, lot.ID)
	require.NoError(t, err)
	ps[0].Quantity = 8
	require.NoError(t, f.repos.Placements.Update(ctx, ps[0]))

	runner := &fixBeforeApply{Store: f.store, fix: func() {
		ps[0].Quantity = 10
		require.NoError(t, f.repos.Placements.Update(ctx, ps[0]))
	}}
	rc := audit.NewReconciler(runner, f.repos, f.lots, f.events, logger.Nop())
	rep, err := rc.Run(ctx, audit.RunOptions{Actor: "sistema"})
	require.NoError(t, err)
	assert.True(t, rep.Clean(), "%+v", rep.Findings)
	assert.Equal(t, int64(10), f.reload(t, lot.ID).QuantityAvailable)
}
