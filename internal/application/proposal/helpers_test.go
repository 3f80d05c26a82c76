package proposal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/application/proposal"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

var hoy = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type recorder struct {
	mu     sync.Mutex
	events []ports.Event
}

func (r *recorder) Publish(_ context.Context, events ...ports.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) ofType(kind string) []ports.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.Event
	for _, e := range r.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

type lookup struct{ r repository.Repos }

func (l lookup) GetProductByKey(ctx context.Context, key string) (*entity.Product, error) {
	p, err := l.r.Products.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrUnknownKey
	}
	return p, nil
}

type fixture struct {
	store     *memory.Store
	repos     repository.Repos
	lots      *inventory.LotStore
	reqs      *requisition.UseCase
	gen       *proposal.Generator
	lifecycle *proposal.Lifecycle
	events    *recorder
	inst      *entity.Institution
	wh        *entity.Warehouse
	binA      *entity.Bin
	binB      *entity.Bin
	product   *entity.Product
}

func testCfg() config.AllocationConfig {
	return config.AllocationConfig{
		MinExpiryDays:          60,
		DispatchMode:           config.DispatchAllOrNothing,
		FolioPrefix:            "IB",
		ExternalFolioLookBack:  24 * time.Hour,
		ExternalFolioLookAhead: time.Hour,
	}
}

// loadedCfg valores de asignación que entrega config.Load sin variables de entorno.
func loadedCfg(t *testing.T) config.AllocationConfig {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg.Allocation
}

func newFixture(t *testing.T, cfg config.AllocationConfig) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	log := logger.Nop()
	clock := func() time.Time { return hoy }

	f := &fixture{store: store, repos: repos, events: &recorder{}}
	ledger := inventory.NewLedger(store, repos, log, cfg.MinExpiryDays)
	ledger.SetClock(clock)
	f.lots = inventory.NewLotStore(store, repos, f.events, log)
	f.lots.SetClock(clock)
	f.reqs = requisition.NewUseCase(store, repos, requisition.NewFolioService(cfg.FolioPrefix), ledger, lookup{repos}, f.events, log, cfg)
	f.reqs.SetClock(clock)
	f.gen = proposal.NewGenerator(store, repos, ledger, f.events, log, cfg)
	f.gen.SetClock(clock)
	f.lifecycle = proposal.NewLifecycle(store, repos, ledger, f.events, log, cfg)
	f.lifecycle.SetClock(clock)

	f.inst = &entity.Institution{ID: uuid.New().String(), Clue: "DFSSA000001", Name: "Hospital General", Active: true}
	require.NoError(t, repos.Institutions.Create(ctx, f.inst))
	f.wh = &entity.Warehouse{ID: uuid.New().String(), InstitutionID: f.inst.ID, Code: "ALM-01", Name: "Almacén general", Active: true}
	require.NoError(t, repos.Warehouses.Create(ctx, f.wh))
	f.binA = &entity.Bin{ID: uuid.New().String(), WarehouseID: f.wh.ID, Code: "A-01", State: entity.BinStateAvailable}
	f.binB = &entity.Bin{ID: uuid.New().String(), WarehouseID: f.wh.ID, Code: "A-02", State: entity.BinStateAvailable}
	require.NoError(t, repos.Bins.Create(ctx, f.binA))
	require.NoError(t, repos.Bins.Create(ctx, f.binB))
	f.product = &entity.Product{
		ID: uuid.New().String(), Key: "010.000.0104.00", Description: "Paracetamol 500 mg",
		UnitMeasure: entity.UnitMeasureDefault, TaxRate: decimal.Zero, Active: true,
	}
	require.NoError(t, repos.Products.Create(ctx, f.product))
	return f
}

// lot da de alta un lote de f.product en institutionID y lo reparte en binA y binB.
func (f *fixture) lot(t *testing.T, institutionID, number string, expiry time.Time, qty ...int64) *entity.Lot {
	t.Helper()
	ctx := context.Background()
	var total int64
	for _, q := range qty {
		total += q
	}
	lot, _, err := f.lots.UpsertLot(ctx, inventory.LotInput{
		ProductID:       f.product.ID,
		InstitutionID:   institutionID,
		LotNumber:       number,
		QuantityInitial: total,
		UnitPrice:       decimal.RequireFromString("12.50"),
		ExpiryDate:      expiry,
		ReceptionDate:   hoy.AddDate(0, -2, 0),
		Actor:           "almacenista",
	})
	require.NoError(t, err)
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

// validated crea y valida una solicitud de f.product por qty.
func (f *fixture) validated(t *testing.T, qty int64) *entity.Requisition {
	t.Helper()
	ctx := context.Background()
	req, err := f.reqs.Create(ctx, requisition.CreateInput{
		InstitutionID: f.inst.ID,
		WarehouseID:   f.wh.ID,
		RequestedBy:   "u-1",
		Items:         []requisition.ItemInput{{ProductID: f.product.ID, Quantity: qty}},
	})
	require.NoError(t, err)
	req, err = f.reqs.Validate(ctx, req.ID, requisition.ValidateInput{Actor: "validador"})
	require.NoError(t, err)
	return req
}

func (f *fixture) requisitionState(t *testing.T, id string) string {
	t.Helper()
	req, err := f.repos.Requisitions.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, req)
	return req.State
}

func (f *fixture) toPicking(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.lifecycle.Review(ctx, id, "supervisor")
	require.NoError(t, err)
	_, err = f.lifecycle.StartPicking(ctx, id, "almacenista")
	require.NoError(t, err)
}

func takenByLot(assignments []*entity.LotAssignment) map[string]int64 {
	out := map[string]int64{}
	for _, a := range assignments {
		out[a.LotID] += a.Quantity
	}
	return out
}

func isBusinessRefusal(err error) bool {
	return errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition)
}
