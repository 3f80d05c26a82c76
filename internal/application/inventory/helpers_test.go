package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

var hoy = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	repos   repository.Repos
	lots    *inventory.LotStore
	ledger  *inventory.Ledger
	inst    *entity.Institution
	wh      *entity.Warehouse
	product *entity.Product
	binA    *entity.Bin
	binB    *entity.Bin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	log := logger.Nop()

	f := &fixture{
		store:  store,
		repos:  repos,
		lots:   inventory.NewLotStore(store, repos, nil, log),
		ledger: inventory.NewLedger(store, repos, log, 60),
		inst:   &entity.Institution{ID: uuid.New().String(), Clue: "DFSSA000001", Name: "Hospital General", Active: true},
		product: &entity.Product{
			ID: uuid.New().String(), Key: "010.000.0104.00", Description: "Paracetamol 500 mg",
			UnitMeasure: entity.UnitMeasureDefault, TaxRate: decimal.Zero, Active: true,
		},
	}
	clock := func() time.Time { return hoy }
	f.lots.SetClock(clock)
	f.ledger.SetClock(clock)

	require.NoError(t, repos.Institutions.Create(ctx, f.inst))
	require.NoError(t, repos.Products.Create(ctx, f.product))
	f.wh = &entity.Warehouse{ID: uuid.New().String(), InstitutionID: f.inst.ID, Code: "ALM-01", Name: "Almacén general", Active: true}
	require.NoError(t, repos.Warehouses.Create(ctx, f.wh))
	f.binA = &entity.Bin{ID: uuid.New().String(), WarehouseID: f.wh.ID, Code: "A-01", State: entity.BinStateAvailable}
	f.binB = &entity.Bin{ID: uuid.New().String(), WarehouseID: f.wh.ID, Code: "A-02", State: entity.BinStateAvailable}
	require.NoError(t, repos.Bins.Create(ctx, f.binA))
	require.NoError(t, repos.Bins.Create(ctx, f.binB))
	return f
}

// newLot da de alta un lote y lo coloca en binA (y binB si se indica segunda cantidad).
func (f *fixture) newLot(t *testing.T, number string, expiry time.Time, qty ...int64) *entity.Lot {
	t.Helper()
	ctx := context.Background()
	var total int64
	for _, q := range qty {
		total += q
	}
	lot, created, err := f.lots.UpsertLot(ctx, inventory.LotInput{
		ProductID:       f.product.ID,
		InstitutionID:   f.inst.ID,
		LotNumber:       number,
		QuantityInitial: total,
		UnitPrice:       decimal.RequireFromString("2.50"),
		ExpiryDate:      expiry,
		ReceptionDate:   hoy.AddDate(0, -1, 0),
		WarehouseID:     f.wh.ID,
		Actor:           "almacenista",
	})
	require.NoError(t, err)
	require.True(t, created)
	bins := []*entity.Bin{f.binA, f.binB}
	for i, q := range qty {
		_, err := f.lots.PlaceLot(ctx, lot.ID, bins[i].ID, q, "almacenista")
		require.NoError(t, err)
	}
	return f.reload(t, lot.ID)
}

func (f *fixture) reload(t *testing.T, lotID string) *entity.Lot {
	t.Helper()
	lot, err := f.repos.Lots.GetByID(context.Background(), lotID)
	require.NoError(t, err)
	require.NotNil(t, lot)
	return lot
}

func (f *fixture) placementSum(t *testing.T, lotID string) int64 {
	t.Helper()
	sum, err := f.repos.Placements.SumByLot(context.Background(), lotID)
	require.NoError(t, err)
	return sum
}

// assign crea una propuesta mínima con una asignación por toma de la reserva.
func (f *fixture) assign(t *testing.T, res inventory.Reservation) []*entity.LotAssignment {
	t.Helper()
	ctx := context.Background()
	p := &entity.Proposal{ID: uuid.New().String(), RequisitionID: uuid.New().String(), Folio: "IB-2025-000001", State: entity.ProposalInPicking, CreatedAt: hoy}
	require.NoError(t, f.repos.Proposals.Create(ctx, p))
	it := &entity.ProposalItem{ID: uuid.New().String(), ProposalID: p.ID, ProductID: f.product.ID, QuantitySolicited: res.Quantity, QuantityProposed: res.Quantity}
	require.NoError(t, f.repos.Proposals.CreateItem(ctx, it))
	var out []*entity.LotAssignment
	for _, tk := range res.Takes {
		a := &entity.LotAssignment{
			ID: uuid.New().String(), ProposalID: p.ID, ProposalItemID: it.ID,
			PlacementID: tk.PlacementID, LotID: res.LotID, BinID: tk.BinID, Quantity: tk.Quantity, AssignedAt: hoy,
		}
		require.NoError(t, f.repos.Proposals.CreateAssignment(ctx, a))
		out = append(out, a)
	}
	return out
}

type repoLookup struct{ r repository.Repos }

func (l repoLookup) GetProductByKey(ctx context.Context, key string) (*entity.Product, error) {
	p, err := l.r.Products.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrUnknownKey
	}
	return p, nil
}
