package proposal_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/application/proposal"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/config"
)

// ── cancel ────────────────────────────────────────────────────────────────────

func TestCancel_LiberaReservas(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	l1 := f.lot(t, f.inst.ID, "L1", date(2025, 12, 31), 7)
	l2 := f.lot(t, f.inst.ID, "L2", date(2026, 6, 30), 10)
	req := f.validated(t, 12)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	require.Equal(t, map[string]int64{l1.ID: 7, l2.ID: 5}, takenByLot(d.Assignments))

	p, err := f.lifecycle.Cancel(ctx, d.Proposal.ID, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalCancelled, p.State)
	assert.Equal(t, "supervisor", p.CancelledBy)

	assert.Equal(t, int64(0), f.reload(t, l1.ID).QuantityReserved)
	assert.Equal(t, int64(0), f.reload(t, l2.ID).QuantityReserved)
	assert.Equal(t, entity.RequisitionValidated, f.requisitionState(t, req.ID))

	detail, err := f.lifecycle.Get(ctx, d.Proposal.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Items)
	assert.Empty(t, detail.Assignments)
	var cancels int
	for _, l := range detail.Log {
		if l.Action == entity.ProposalActionCancelled {
			cancels++
		}
	}
	assert.Equal(t, 1, cancels)

	ps, err := f.repos.Placements.ListByLot(ctx, l2.ID)
	require.NoError(t, err)
	for _, pl := range ps {
		assert.Equal(t, int64(0), pl.QuantityReserved)
	}
}

func TestCancel_DosVecesEsNoOp(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	l1 := f.lot(t, f.inst.ID, "L1", date(2025, 12, 31), 10)
	req := f.validated(t, 4)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)

	_, err = f.lifecycle.Cancel(ctx, d.Proposal.ID, "supervisor")
	require.NoError(t, err)
	// Otra reserva sobre el mismo lote no debe verse afectada por la segunda cancelación.
	other := f.validated(t, 3)
	_, err = f.gen.Generate(ctx, other.ID, "almacenista")
	require.NoError(t, err)

	p, err := f.lifecycle.Cancel(ctx, d.Proposal.ID, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalCancelled, p.State)
	assert.Equal(t, int64(3), f.reload(t, l1.ID).QuantityReserved)
	assert.Len(t, f.events.ofType(ports.EventProposalCancelled), 1)
}

func TestCancel_PropuestaDespachadaNoSeCancela(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	f.lot(t, f.inst.ID, "L1", date(2025, 12, 31), 10)
	req := f.validated(t, 4)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	f.toPicking(t, d.Proposal.ID)
	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	require.NoError(t, err)

	_, err = f.lifecycle.Cancel(ctx, d.Proposal.ID, "supervisor")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ── dispatch ──────────────────────────────────────────────────────────────────

func TestDispatch_ConfirmaSalida(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	lot := f.lot(t, f.inst.ID, "L1", date(2026, 6, 30), 10)
	req := f.validated(t, 7)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)

	lot = f.reload(t, lot.ID)
	require.Equal(t, int64(10), lot.QuantityAvailable)
	require.Equal(t, int64(7), lot.QuantityReserved)

	_, err = f.lifecycle.Review(ctx, d.Proposal.ID, "supervisor")
	require.NoError(t, err)
	p, err := f.lifecycle.StartPicking(ctx, d.Proposal.ID, "almacenista")
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalInPicking, p.State)
	assert.Equal(t, entity.RequisitionPrepared, f.requisitionState(t, req.ID))

	res, err := f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, entity.ProposalDispatched, res.Proposal.State)
	assert.Equal(t, int64(7), res.Proposal.TotalDispatched)

	lot = f.reload(t, lot.ID)
	assert.Equal(t, int64(3), lot.QuantityAvailable)
	assert.Equal(t, int64(0), lot.QuantityReserved)

	exits, err := f.repos.Movements.List(ctx, repository.MovementFilter{Folio: req.Folio, Kinds: []entity.MovementKind{entity.MovementExit}})
	require.NoError(t, err)
	require.Len(t, exits, 1)
	assert.Equal(t, int64(7), exits[0].Quantity)
	assert.Equal(t, int64(10), exits[0].QuantityBefore)
	assert.Equal(t, int64(3), exits[0].QuantityAfter)
	assert.Equal(t, f.inst.ID, exits[0].DestinationInstitutionID)

	assert.Equal(t, entity.RequisitionDispatched, f.requisitionState(t, req.ID))
	detail, err := f.lifecycle.Get(ctx, d.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalItemDispatched, detail.Items[0].State)
	assert.Equal(t, int64(7), detail.Items[0].QuantityDispatched)
	for _, a := range detail.Assignments {
		assert.True(t, a.Dispatched)
		assert.True(t, a.ReadyForPick)
	}
	assert.Len(t, f.events.ofType(ports.EventProposalDispatched), 1)
}

func TestDispatch_UnaSalidaPorLote(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	a := f.lot(t, f.inst.ID, "A", date(2025, 12, 31), 3, 4)
	b := f.lot(t, f.inst.ID, "B", date(2026, 6, 30), 10)
	req := f.validated(t, 9)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	require.Len(t, d.Assignments, 3)
	f.toPicking(t, d.Proposal.ID)

	res, err := f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	require.NoError(t, err)
	require.Len(t, res.Movements, 2)

	exits, err := f.repos.Movements.SumExitsByFolio(ctx, req.Folio)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{a.ID: 7, b.ID: 2}, exits)
	assert.Equal(t, int64(0), f.reload(t, a.ID).QuantityAvailable)
	assert.Equal(t, int64(8), f.reload(t, b.ID).QuantityAvailable)
}

func TestDispatch_EstadoInvalido(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	f.lot(t, f.inst.ID, "L1", date(2026, 6, 30), 10)
	req := f.validated(t, 2)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)

	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, entity.ProposalGenerated, te.From)

	_, err = f.lifecycle.StartPicking(ctx, d.Proposal.ID, "almacenista")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDispatch_SinAsignacionesEsConflicto(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	req := f.validated(t, 2)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	f.toPicking(t, d.Proposal.ID)

	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDispatch_AsignacionDuplicadaEsConflicto(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	lot := f.lot(t, f.inst.ID, "L1", date(2026, 6, 30), 10)
	req := f.validated(t, 2)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	dup := *d.Assignments[0]
	dup.ID = "dup-1"
	require.ErrorIs(t, f.repos.Proposals.CreateAssignment(ctx, &dup), domain.ErrDuplicate)
	f.store.InsertAssignmentUnchecked(dup)
	f.toPicking(t, d.Proposal.ID)

	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(10), f.reload(t, lot.ID).QuantityAvailable)
}

func TestDispatch_FallaRevierteTodo(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	a := f.lot(t, f.inst.ID, "A", date(2025, 12, 31), 5)
	b := f.lot(t, f.inst.ID, "B", date(2026, 6, 30), 10)
	req := f.validated(t, 8)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	f.toPicking(t, d.Proposal.ID)

	// Merma externa en B: la ubicación ya no respalda lo asignado.
	ps, err := f.repos.Placements.ListByLot(ctx, b.ID)
	require.NoError(t, err)
	ps[0].Quantity = 1
	ps[0].QuantityReserved = 1
	require.NoError(t, f.repos.Placements.Update(ctx, ps[0]))

	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	assert.ErrorIs(t, err, domain.ErrNegativeStock)

	assert.Equal(t, int64(5), f.reload(t, a.ID).QuantityAvailable)
	assert.Equal(t, int64(5), f.reload(t, a.ID).QuantityReserved)
	exits, err := f.repos.Movements.SumExitsByFolio(ctx, req.Folio)
	require.NoError(t, err)
	assert.Empty(t, exits)
	detail, err := f.lifecycle.Get(ctx, d.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalInPicking, detail.Proposal.State)
}

func TestDispatch_IncrementalCompletaEnDosPasos(t *testing.T) {
	cfg := testCfg()
	cfg.DispatchMode = config.DispatchIncremental
	f := newFixture(t, cfg)
	ctx := context.Background()
	lot := f.lot(t, f.inst.ID, "L1", date(2026, 6, 30), 4, 6)
	req := f.validated(t, 8)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	require.Len(t, d.Assignments, 2)
	f.toPicking(t, d.Proposal.ID)

	res, err := f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{
		Actor: "almacenista", AssignmentIDs: []string{d.Assignments[0].ID},
	})
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, entity.ProposalInPicking, res.Proposal.State)
	assert.Equal(t, entity.RequisitionPrepared, f.requisitionState(t, req.ID))
	got := f.reload(t, lot.ID)
	assert.Equal(t, int64(6), got.QuantityAvailable)
	assert.Equal(t, int64(4), got.QuantityReserved)

	// Con salidas confirmadas ya no se puede cancelar.
	_, err = f.lifecycle.Cancel(ctx, d.Proposal.ID, "supervisor")
	assert.ErrorIs(t, err, domain.ErrConflict)

	res, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, int64(8), res.Proposal.TotalDispatched)
	got = f.reload(t, lot.ID)
	assert.Equal(t, int64(2), got.QuantityAvailable)
	assert.Equal(t, int64(0), got.QuantityReserved)
}

func TestDispatch_IncrementalUnaSalidaPorLoteEnCadaPaso(t *testing.T) {
	cfg := testCfg()
	cfg.DispatchMode = config.DispatchIncremental
	f := newFixture(t, cfg)
	ctx := context.Background()
	lot := f.lot(t, f.inst.ID, "L1", date(2026, 6, 30), 4, 6)
	req := f.validated(t, 8)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	require.Len(t, d.Assignments, 2)
	f.toPicking(t, d.Proposal.ID)

	first, err := f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{
		Actor: "almacenista", AssignmentIDs: []string{d.Assignments[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, first.Movements, 1)
	second, err := f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	require.NoError(t, err)
	require.Len(t, second.Movements, 1)

	exits, err := f.repos.Movements.List(ctx, repository.MovementFilter{
		Folio: req.Folio, Kinds: []entity.MovementKind{entity.MovementExit},
	})
	require.NoError(t, err)
	require.Len(t, exits, 2)
	for _, m := range exits {
		assert.Equal(t, lot.ID, m.LotID)
		assert.Equal(t, req.Folio, m.Folio)
	}
	assert.Equal(t, int64(8), exits[0].Quantity+exits[1].Quantity)

	sums, err := f.repos.Movements.SumExitsByFolio(ctx, req.Folio)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{lot.ID: 8}, sums)

	ack, err := f.lifecycle.Acknowledgment(ctx, d.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), ack.TotalQuantity)

	_, err = f.lifecycle.Cancel(ctx, d.Proposal.ID, "supervisor")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDispatch_TodoONadaRechazaSubconjunto(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	f.lot(t, f.inst.ID, "L1", date(2026, 6, 30), 4, 6)
	req := f.validated(t, 8)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)
	f.toPicking(t, d.Proposal.ID)

	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{
		Actor: "almacenista", AssignmentIDs: []string{d.Assignments[0].ID},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, config.DispatchAllOrNothing, f.lifecycle.DispatchMode())
}

// ── acknowledgment ────────────────────────────────────────────────────────────

func TestAcknowledgment_DesgloseConImportes(t *testing.T) {
	f := newFixture(t, testCfg())
	ctx := context.Background()
	f.lot(t, f.inst.ID, "L1", date(2026, 6, 30), 2, 6)
	req := f.validated(t, 5)
	d, err := f.gen.Generate(ctx, req.ID, "almacenista")
	require.NoError(t, err)

	_, err = f.lifecycle.Acknowledgment(ctx, d.Proposal.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	f.toPicking(t, d.Proposal.ID)
	_, err = f.lifecycle.Dispatch(ctx, d.Proposal.ID, proposal.DispatchInput{Actor: "almacenista"})
	require.NoError(t, err)

	ack, err := f.lifecycle.Acknowledgment(ctx, d.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Folio, ack.Folio)
	assert.Equal(t, f.inst.Clue, ack.InstitutionClue)
	assert.Equal(t, "ALM-01", ack.WarehouseCode)
	require.Len(t, ack.Lines, 2)
	assert.Equal(t, "A-01", ack.Lines[0].BinCode)
	assert.Equal(t, int64(2), ack.Lines[0].Quantity)
	assert.Equal(t, "A-02", ack.Lines[1].BinCode)
	assert.Equal(t, int64(3), ack.Lines[1].Quantity)
	assert.Equal(t, int64(5), ack.TotalQuantity)
	assert.True(t, decimal.RequireFromString("62.50").Equal(ack.Total), ack.Total.String())
}
