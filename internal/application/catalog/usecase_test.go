package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/catalog"
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

var hoy = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// mapCache caché en memoria que cuenta aciertos.
type mapCache struct {
	mu       sync.Mutex
	products map[string]entity.Product
	insts    map[string]entity.Institution
	hits     int
}

func newMapCache() *mapCache {
	return &mapCache{products: map[string]entity.Product{}, insts: map[string]entity.Institution{}}
}

func (c *mapCache) GetProduct(_ context.Context, key string) (*entity.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[key]
	if !ok {
		return nil, false
	}
	c.hits++
	return &p, true
}

func (c *mapCache) SetProduct(_ context.Context, p *entity.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.Key] = *p
}

func (c *mapCache) DeleteProduct(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, key)
}

func (c *mapCache) GetInstitution(_ context.Context, clue string) (*entity.Institution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.insts[clue]
	if !ok {
		return nil, false
	}
	c.hits++
	return &inst, true
}

func (c *mapCache) SetInstitution(_ context.Context, inst *entity.Institution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insts[inst.Clue] = *inst
}

func newUseCase(t *testing.T) (*catalog.UseCase, *mapCache) {
	t.Helper()
	cache := newMapCache()
	uc := catalog.NewUseCase(memory.NewStore().Repos(), cache, logger.Nop())
	uc.SetClock(func() time.Time { return hoy })
	return uc, cache
}

// ── productos ─────────────────────────────────────────────────────────────────

func TestCreateProduct_NormalizaClave(t *testing.T) {
	uc, _ := newUseCase(t)
	p, err := uc.CreateProduct(context.Background(), dto.CreateProductRequest{
		Key:         " 010.000.0104.00 ",
		Description: "Paracetamol 500 mg",
	})
	require.NoError(t, err)
	assert.Equal(t, "010.000.0104.00", p.Key)
	assert.Equal(t, entity.UnitMeasureDefault, p.UnitMeasure)
	assert.True(t, p.Active)
	assert.Equal(t, hoy, p.CreatedAt)
}

func TestCreateProduct_ClaveDuplicada(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	_, err := uc.CreateProduct(ctx, dto.CreateProductRequest{Key: "010.000.0104.00", Description: "Paracetamol"})
	require.NoError(t, err)
	_, err = uc.CreateProduct(ctx, dto.CreateProductRequest{Key: "010.000.0104.00 ", Description: "Otro"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestCreateProduct_TasaInvalida(t *testing.T) {
	uc, _ := newUseCase(t)
	_, err := uc.CreateProduct(context.Background(), dto.CreateProductRequest{
		Key:         "060.000.0001.00",
		Description: "Gasas",
		TaxRate:     decimal.RequireFromString("0.08"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	p, err := uc.CreateProduct(context.Background(), dto.CreateProductRequest{
		Key:         "060.000.0001.00",
		Description: "Gasas",
		TaxRate:     decimal.RequireFromString("0.16"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.16").Equal(p.TaxRate))
}

func TestCreateProduct_CamposObligatorios(t *testing.T) {
	uc, _ := newUseCase(t)
	_, err := uc.CreateProduct(context.Background(), dto.CreateProductRequest{Key: "  ", Description: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.CreateProduct(context.Background(), dto.CreateProductRequest{Key: "010", Description: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetProductByKey_UsaCache(t *testing.T) {
	uc, cache := newUseCase(t)
	ctx := context.Background()
	_, err := uc.CreateProduct(ctx, dto.CreateProductRequest{Key: "010.000.0104.00", Description: "Paracetamol"})
	require.NoError(t, err)

	p, err := uc.GetProductByKey(ctx, "010.000.0104.00")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol", p.Description)
	assert.Equal(t, 0, cache.hits)

	_, err = uc.GetProductByKey(ctx, " 010.000.0104.00")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}

func TestGetProductByKey_ClaveDesconocida(t *testing.T) {
	uc, _ := newUseCase(t)
	_, err := uc.GetProductByKey(context.Background(), "999.999.9999.99")
	assert.ErrorIs(t, err, domain.ErrUnknownKey)
	_, err = uc.GetProductByKey(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnknownKey)
}

func TestGetProductByKey_CoincidenciaExacta(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	_, err := uc.CreateProduct(ctx, dto.CreateProductRequest{Key: "010.000.0104.00", Description: "Paracetamol"})
	require.NoError(t, err)
	_, err = uc.GetProductByKey(ctx, "010.000.0104")
	assert.ErrorIs(t, err, domain.ErrUnknownKey)
}

func TestUpdateProduct_InvalidaCache(t *testing.T) {
	uc, cache := newUseCase(t)
	ctx := context.Background()
	created, err := uc.CreateProduct(ctx, dto.CreateProductRequest{Key: "010.000.0104.00", Description: "Paracetamol"})
	require.NoError(t, err)
	_, err = uc.GetProductByKey(ctx, created.Key)
	require.NoError(t, err)

	desc := "Paracetamol 500 mg tabletas"
	inactive := false
	updated, err := uc.UpdateProduct(ctx, created.ID, dto.UpdateProductRequest{Description: &desc, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
	assert.False(t, updated.Active)

	p, err := uc.GetProductByKey(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, desc, p.Description)
	assert.Equal(t, 0, cache.hits)
}

func TestUpdateProduct_NoExiste(t *testing.T) {
	uc, _ := newUseCase(t)
	_, err := uc.UpdateProduct(context.Background(), "nada", dto.UpdateProductRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListProducts_BusquedaPorSubcadena(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	for _, in := range []dto.CreateProductRequest{
		{Key: "010.000.0104.00", Description: "Paracetamol 500 mg"},
		{Key: "010.000.0105.00", Description: "Paracetamol solución"},
		{Key: "060.000.0001.00", Description: "Gasa estéril"},
	} {
		_, err := uc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	res, err := uc.ListProducts(ctx, "paracetamol", dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "010.000.0104.00", res.Items[0].Key)
	assert.Equal(t, 20, res.Page.Limit)

	res, err = uc.ListProducts(ctx, "", dto.PageRequest{Limit: 1, Offset: 2})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "060.000.0001.00", res.Items[0].Key)
}

// ── instituciones, almacenes y ubicaciones ────────────────────────────────────

func TestInstitution_AltaYBusquedaPorCLUES(t *testing.T) {
	uc, cache := newUseCase(t)
	ctx := context.Background()
	inst, err := uc.CreateInstitution(ctx, dto.CreateInstitutionRequest{Clue: "DFSSA000001", Name: "Hospital General"})
	require.NoError(t, err)
	assert.Equal(t, entity.InstitutionTypeHospital, inst.Type)

	_, err = uc.CreateInstitution(ctx, dto.CreateInstitutionRequest{Clue: "DFSSA000001", Name: "Repetida"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	got, err := uc.GetInstitutionByClue(ctx, "DFSSA000001")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)
	_, err = uc.GetInstitutionByClue(ctx, "DFSSA000001")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	_, err = uc.GetInstitutionByClue(ctx, "XXSSA999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWarehouse_RequiereInstitucion(t *testing.T) {
	uc, _ := newUseCase(t)
	_, err := uc.CreateWarehouse(context.Background(), dto.CreateWarehouseRequest{
		InstitutionID: "no-existe", Code: "ALM-01", Name: "General",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBins_OrdenYCambioDeEstado(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	inst, err := uc.CreateInstitution(ctx, dto.CreateInstitutionRequest{Clue: "DFSSA000001", Name: "Hospital General"})
	require.NoError(t, err)
	wh, err := uc.CreateWarehouse(ctx, dto.CreateWarehouseRequest{InstitutionID: inst.ID, Code: "ALM-01", Name: "General"})
	require.NoError(t, err)

	for _, code := range []string{"B-01", "A-02", "A-01"} {
		_, err := uc.CreateBin(ctx, dto.CreateBinRequest{WarehouseID: wh.ID, Code: code})
		require.NoError(t, err)
	}
	_, err = uc.CreateBin(ctx, dto.CreateBinRequest{WarehouseID: wh.ID, Code: "A-01"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	bins, err := uc.ListBins(ctx, wh.ID)
	require.NoError(t, err)
	require.Len(t, bins, 3)
	assert.Equal(t, []string{"A-01", "A-02", "B-01"}, []string{bins[0].Code, bins[1].Code, bins[2].Code})
	assert.Equal(t, entity.BinStateAvailable, bins[0].State)

	b, err := uc.ChangeBinState(ctx, bins[0].ID, "blocked")
	require.NoError(t, err)
	assert.Equal(t, entity.BinStateBlocked, b.State)

	_, err = uc.ChangeBinState(ctx, bins[0].ID, "ROTA")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.ChangeBinState(ctx, "no-existe", entity.BinStateAvailable)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ── proveedores ───────────────────────────────────────────────────────────────

func TestSupplier_RFCEnMayusculasYOrden(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	s, err := uc.CreateSupplier(ctx, dto.CreateSupplierRequest{RFC: "abc010101xyz", Name: "Distribuidora Norte"})
	require.NoError(t, err)
	assert.Equal(t, "ABC010101XYZ", s.RFC)
	_, err = uc.CreateSupplier(ctx, dto.CreateSupplierRequest{RFC: "ABC010101XYZ", Name: "Otra"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	order, err := uc.CreateSupplyOrder(ctx, dto.CreateSupplyOrderRequest{
		OrderNumber: "OS-2025-001", SupplierID: s.ID, FundingSource: "FONSABI",
	})
	require.NoError(t, err)
	assert.Equal(t, s.ID, order.SupplierID)

	_, err = uc.CreateSupplyOrder(ctx, dto.CreateSupplyOrderRequest{OrderNumber: "OS-2025-002", SupplierID: "nadie"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
