package requisition_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

var hoy = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []ports.Event
	fail   bool
}

func (r *recorder) Publish(_ context.Context, events ...ports.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broker caído")
	}
	r.events = append(r.events, events...)
	return nil
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
	store    *memory.Store
	repos    repository.Repos
	lots     *inventory.LotStore
	uc       *requisition.UseCase
	events   *recorder
	inst     *entity.Institution
	wh       *entity.Warehouse
	bin      *entity.Bin
	product  *entity.Product
	product2 *entity.Product
}

func defaultCfg() config.AllocationConfig {
	return config.AllocationConfig{
		MinExpiryDays:           60,
		DispatchMode:            config.DispatchAllOrNothing,
		FolioPrefix:             "IB",
		ExternalFolioLookBack:   24 * time.Hour,
		ExternalFolioLookAhead:  time.Hour,
		ValidationRequiresStock: true,
	}
}

func newFixture(t *testing.T, cfg config.AllocationConfig) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	log := logger.Nop()
	clock := func() time.Time { return hoy }

	f := &fixture{store: store, repos: repos, events: &recorder{}}
	f.lots = inventory.NewLotStore(store, repos, nil, log)
	f.lots.SetClock(clock)
	ledger := inventory.NewLedger(store, repos, log, cfg.MinExpiryDays)
	ledger.SetClock(clock)
	f.uc = requisition.NewUseCase(store, repos, requisition.NewFolioService(cfg.FolioPrefix), ledger, lookup{repos}, f.events, log, cfg)
	f.uc.SetClock(clock)

	f.inst = &entity.Institution{ID: uuid.New().String(), Clue: "DFSSA000001", Name: "Hospital General", Active: true}
	require.NoError(t, repos.Institutions.Create(ctx, f.inst))
	f.wh = &entity.Warehouse{ID: uuid.New().String(), InstitutionID: f.inst.ID, Code: "ALM-01", Name: "Almacén general", Active: true}
	require.NoError(t, repos.Warehouses.Create(ctx, f.wh))
	f.bin = &entity.Bin{ID: uuid.New().String(), WarehouseID: f.wh.ID, Code: "A-01", State: entity.BinStateAvailable}
	require.NoError(t, repos.Bins.Create(ctx, f.bin))
	f.product = &entity.Product{ID: uuid.New().String(), Key: "010.000.0104.00", Description: "Paracetamol 500 mg", TaxRate: decimal.Zero, Active: true}
	f.product2 = &entity.Product{ID: uuid.New().String(), Key: "010.000.0101.00", Description: "Ácido acetilsalicílico", TaxRate: decimal.Zero, Active: true}
	require.NoError(t, repos.Products.Create(ctx, f.product))
	require.NoError(t, repos.Products.Create(ctx, f.product2))
	return f
}

func (f *fixture) stock(t *testing.T, product *entity.Product, number string, expiry time.Time, qty int64) {
	t.Helper()
	ctx := context.Background()
	lot, _, err := f.lots.UpsertLot(ctx, inventory.LotInput{
		ProductID: product.ID, InstitutionID: f.inst.ID, LotNumber: number,
		QuantityInitial: qty, UnitPrice: decimal.NewFromInt(1), ExpiryDate: expiry, ReceptionDate: hoy,
	})
	require.NoError(t, err)
	_, err = f.lots.PlaceLot(ctx, lot.ID, f.bin.ID, qty, "almacenista")
	require.NoError(t, err)
}

func (f *fixture) create(t *testing.T, items ...requisition.ItemInput) *entity.Requisition {
	t.Helper()
	req, err := f.uc.Create(context.Background(), requisition.CreateInput{
		InstitutionID: f.inst.ID,
		WarehouseID:   f.wh.ID,
		RequestedBy:   "u-1",
		Items:         items,
	})
	require.NoError(t, err)
	return req
}

// ── create ────────────────────────────────────────────────────────────────────

func TestCreate_FolioConsecutivoYRenglonesFusionados(t *testing.T) {
	f := newFixture(t, defaultCfg())

	a := f.create(t,
		requisition.ItemInput{ProductID: f.product.ID, Quantity: 5},
		requisition.ItemInput{ProductID: f.product2.ID, Quantity: 2},
		requisition.ItemInput{ProductID: f.product.ID, Quantity: 3},
	)
	b := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 1})

	assert.Equal(t, "IB-2025-000001", a.Folio)
	assert.Equal(t, "IB-2025-000002", b.Folio)
	assert.Equal(t, entity.RequisitionPending, a.State)
	assert.Equal(t, entity.RequisitionOriginManual, a.Origin)
	require.Len(t, a.Items, 2)
	assert.Equal(t, int64(8), a.Items[0].QuantityRequested)
	assert.Equal(t, 1, a.Items[0].Position)

	got, err := f.uc.GetByFolio(context.Background(), "IB-2025-000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
}

func TestCreate_Validaciones(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	_, err := f.uc.Create(ctx, requisition.CreateInput{InstitutionID: f.inst.ID, WarehouseID: f.wh.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.Create(ctx, requisition.CreateInput{
		InstitutionID: f.inst.ID, WarehouseID: f.wh.ID,
		Items: []requisition.ItemInput{{ProductID: f.product.ID, Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.uc.Create(ctx, requisition.CreateInput{
		InstitutionID: f.inst.ID, WarehouseID: f.wh.ID,
		Items: []requisition.ItemInput{{ProductID: "no-existe", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownKey)

	otra := &entity.Institution{ID: uuid.New().String(), Clue: "DFSSA000002", Active: true}
	require.NoError(t, f.repos.Institutions.Create(ctx, otra))
	_, err = f.uc.Create(ctx, requisition.CreateInput{
		InstitutionID: otra.ID, WarehouseID: f.wh.ID,
		Items: []requisition.ItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// El folio no se consume cuando la transacción falla.
	req := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 1})
	assert.Equal(t, "IB-2025-000001", req.Folio)
}

func TestGetByFolio_Malformado(t *testing.T) {
	f := newFixture(t, defaultCfg())
	_, err := f.uc.GetByFolio(context.Background(), "IB-25-1")
	assert.ErrorIs(t, err, domain.ErrInvalidFolio)
}

// ── validate ──────────────────────────────────────────────────────────────────

func TestValidate_AprobacionesParciales(t *testing.T) {
	f := newFixture(t, defaultCfg())
	f.stock(t, f.product, "L-1", hoy.AddDate(1, 0, 0), 50)
	req := f.create(t,
		requisition.ItemInput{ProductID: f.product.ID, Quantity: 10},
		requisition.ItemInput{ProductID: f.product2.ID, Quantity: 4},
	)

	got, err := f.uc.Validate(context.Background(), req.ID, requisition.ValidateInput{
		Approvals: map[string]int64{req.Items[0].ID: 6, req.Items[1].ID: 0},
		Notes:     "ajuste por consumo histórico",
		Actor:     "validador",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RequisitionValidated, got.State)
	assert.Equal(t, "validador", got.ValidatedBy)
	require.NotNil(t, got.ValidatedAt)

	stored, err := f.uc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stored.Items[0].QuantityApproved)
	assert.Equal(t, entity.RequisitionItemPartial, stored.Items[0].State)
	assert.Equal(t, entity.RequisitionItemRejected, stored.Items[1].State)
}

func TestValidate_AprobadaMayorQueSolicitada(t *testing.T) {
	f := newFixture(t, defaultCfg())
	f.stock(t, f.product, "L-1", hoy.AddDate(1, 0, 0), 50)
	req := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 10})

	_, err := f.uc.Validate(context.Background(), req.ID, requisition.ValidateInput{
		Approvals: map[string]int64{req.Items[0].ID: 11},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	stored, err := f.uc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequisitionPending, stored.State)
}

func TestValidate_SinDisponibilidad(t *testing.T) {
	f := newFixture(t, defaultCfg())
	// Sólo existe un lote que caduca dentro de los 60 días.
	f.stock(t, f.product, "L-1", hoy.AddDate(0, 0, 30), 50)
	req := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 10})

	_, err := f.uc.Validate(context.Background(), req.ID, requisition.ValidateInput{Actor: "validador"})
	assert.ErrorIs(t, err, domain.ErrNoAvailability)
}

func TestValidate_SinRequerirExistencia(t *testing.T) {
	cfg := defaultCfg()
	cfg.ValidationRequiresStock = false
	f := newFixture(t, cfg)
	req := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 10})

	got, err := f.uc.Validate(context.Background(), req.ID, requisition.ValidateInput{Actor: "validador"})
	require.NoError(t, err)
	assert.Equal(t, entity.RequisitionValidated, got.State)
}

func TestValidate_SoloDesdePendiente(t *testing.T) {
	f := newFixture(t, defaultCfg())
	f.stock(t, f.product, "L-1", hoy.AddDate(1, 0, 0), 50)
	req := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 10})
	_, err := f.uc.Validate(context.Background(), req.ID, requisition.ValidateInput{})
	require.NoError(t, err)

	_, err = f.uc.Validate(context.Background(), req.ID, requisition.ValidateInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, entity.RequisitionValidated, te.From)
}

// ── reject / cancel ───────────────────────────────────────────────────────────

func TestReject_DesdeValidada(t *testing.T) {
	f := newFixture(t, defaultCfg())
	f.stock(t, f.product, "L-1", hoy.AddDate(1, 0, 0), 50)
	req := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 10})
	_, err := f.uc.Validate(context.Background(), req.ID, requisition.ValidateInput{})
	require.NoError(t, err)

	got, err := f.uc.Reject(context.Background(), req.ID, "presupuesto agotado", "validador")
	require.NoError(t, err)
	assert.Equal(t, entity.RequisitionRejected, got.State)
	assert.Equal(t, "presupuesto agotado", got.ValidationNotes)
}

func TestCancel_SoloPendiente(t *testing.T) {
	f := newFixture(t, defaultCfg())
	f.stock(t, f.product, "L-1", hoy.AddDate(1, 0, 0), 50)
	a := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 1})
	b := f.create(t, requisition.ItemInput{ProductID: f.product.ID, Quantity: 1})
	ctx := context.Background()

	got, err := f.uc.Cancel(ctx, a.ID, "u-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RequisitionCancelled, got.State)

	_, err = f.uc.Validate(ctx, b.ID, requisition.ValidateInput{})
	require.NoError(t, err)
	_, err = f.uc.Cancel(ctx, b.ID, "u-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.uc.Cancel(ctx, "no-existe", "u-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ── import_bulk ───────────────────────────────────────────────────────────────

func TestImportBulk_RenglonesIndependientesYBitacora(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	res, err := f.uc.ImportBulk(ctx, requisition.BulkInput{
		InstitutionID: f.inst.ID,
		WarehouseID:   f.wh.ID,
		Actor:         "u-1",
		Rows: []requisition.BulkRow{
			{Row: 2, Key: " 010.000.0104.00 ", Quantity: 10},
			{Row: 3, Key: "S/CLAVE", Quantity: 3},
			{Row: 4, Key: "999.999.9999.99", Quantity: 5},
			{Row: 5, Key: "010.000.0101.00", Quantity: 0},
			{Row: 6, Key: "010.000.0104.00", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Requisition)
	assert.Equal(t, entity.RequisitionOriginBulk, res.Requisition.Origin)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, entity.ErrorKindUnknownKey, res.Errors[0].Kind)
	assert.Equal(t, entity.ErrorKindInvalidQuantity, res.Errors[1].Kind)
	require.Len(t, res.Requisition.Items, 1)
	assert.Equal(t, int64(12), res.Requisition.Items[0].QuantityRequested)

	logs, err := f.repos.ErrorLogs.List(ctx, repository.ErrorLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, res.Requisition.ID, l.RequisitionID)
		assert.Equal(t, "u-1", l.UserID)
	}

	// Sólo UNKNOWN_KEY viaja como alerta y queda marcada.
	require.Len(t, f.events.events, 1)
	assert.Equal(t, ports.EventStockAlert, f.events.events[0].Type)
	pending, err := f.repos.ErrorLogs.List(ctx, repository.ErrorLogFilter{PendingAlert: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, entity.ErrorKindInvalidQuantity, pending[0].Kind)
}

func TestImportBulk_SinRenglonesValidosSoloBitacora(t *testing.T) {
	f := newFixture(t, defaultCfg())
	f.events.fail = true
	ctx := context.Background()

	res, err := f.uc.ImportBulk(ctx, requisition.BulkInput{
		InstitutionID: f.inst.ID,
		WarehouseID:   f.wh.ID,
		Actor:         "u-1",
		Rows:          []requisition.BulkRow{{Row: 2, Key: "999.999.9999.99", Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Requisition)

	// La alerta no salió: queda pendiente.
	pending, err := f.repos.ErrorLogs.List(ctx, repository.ErrorLogFilter{PendingAlert: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].RequisitionID)
}

func TestImportBulk_FolioExternoDuplicadoEnVentana(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()
	in := requisition.BulkInput{
		InstitutionID: f.inst.ID,
		WarehouseID:   f.wh.ID,
		ExternalFolio: "OF-123",
		Actor:         "u-1",
		Rows:          []requisition.BulkRow{{Row: 2, Key: f.product.Key, Quantity: 5}},
	}
	res, err := f.uc.ImportBulk(ctx, in)
	require.NoError(t, err)
	assert.Contains(t, res.Requisition.Observations, requisition.ExternalFolioMarker+"OF-123")

	_, err = f.uc.ImportBulk(ctx, in)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	// Otro usuario puede cargar el mismo folio externo.
	in.Actor = "u-2"
	_, err = f.uc.ImportBulk(ctx, in)
	require.NoError(t, err)

	// Fuera de la ventana ya no se considera duplicado.
	f.uc.SetClock(func() time.Time { return hoy.Add(25 * time.Hour) })
	in.Actor = "u-1"
	_, err = f.uc.ImportBulk(ctx, in)
	require.NoError(t, err)
}

func TestImportBulk_FolioExternoRegistradoEnLaTransaccion(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()
	other := f.create(t, requisition.ItemInput{ProductID: f.product2.ID, Quantity: 1})
	ok, err := f.repos.Requisitions.ClaimExternalFolio(ctx, "u-1", "OF-777", other.ID, hoy, hoy.Add(-24*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	// Las observaciones no delatan el duplicado: lo detecta el registro.
	_, err = f.uc.ImportBulk(ctx, requisition.BulkInput{
		InstitutionID: f.inst.ID,
		WarehouseID:   f.wh.ID,
		ExternalFolio: " OF-777 ",
		Actor:         "u-1",
		Rows:          []requisition.BulkRow{{Row: 2, Key: f.product.Key, Quantity: 5}},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	list, err := f.repos.Requisitions.List(ctx, repository.RequisitionFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestImportBulk_FolioExternoConcurrenteSoloUnaVez(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()
	in := requisition.BulkInput{
		InstitutionID: f.inst.ID,
		WarehouseID:   f.wh.ID,
		ExternalFolio: "OF-900",
		Actor:         "u-1",
		Rows:          []requisition.BulkRow{{Row: 2, Key: f.product.Key, Quantity: 5}},
	}

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.ImportBulk(ctx, in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicate):
			dup++
		default:
			t.Errorf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}
