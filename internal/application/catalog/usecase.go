// Package catalog administra el catálogo maestro: insumos CNIS, instituciones,
// almacenes, ubicaciones y proveedores. Las búsquedas por clave pasan por caché.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
	"github.com/jhoicas/Farmacia-api/pkg/textnorm"
)

// Tasas de IVA admitidas para insumos.
var (
	taxExempt  = decimal.Zero
	taxGeneral = decimal.RequireFromString("0.16")
)

// UseCase casos de uso del catálogo.
type UseCase struct {
	repos repository.Repos
	cache ports.CatalogCache
	log   *logger.Logger
	now   func() time.Time
}

// NewUseCase construye el caso de uso; cache nil deshabilita la caché.
func NewUseCase(repos repository.Repos, cache ports.CatalogCache, log *logger.Logger) *UseCase {
	if cache == nil {
		cache = ports.NopCache{}
	}
	return &UseCase{repos: repos, cache: cache, log: log.WithComponent("catalog"), now: time.Now}
}

// SetClock reemplaza el reloj.
func (uc *UseCase) SetClock(now func() time.Time) { uc.now = now }

// ── productos ─────────────────────────────────────────────────────────────────

// CreateProduct da de alta un insumo. La clave se normaliza y debe ser única.
func (uc *UseCase) CreateProduct(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	key := textnorm.Code(in.Key)
	desc := strings.TrimSpace(in.Description)
	if key == "" || desc == "" {
		return nil, domain.ErrInvalidInput
	}
	if !validTaxRate(in.TaxRate) {
		return nil, fmt.Errorf("tasa de IVA %s: %w", in.TaxRate, domain.ErrInvalidInput)
	}
	if in.ReferencePrice != nil && in.ReferencePrice.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if existing, err := uc.repos.Products.GetByKey(ctx, key); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("clave %s: %w", key, domain.ErrDuplicate)
	}
	unit := textnorm.Code(in.UnitMeasure)
	if unit == "" {
		unit = entity.UnitMeasureDefault
	}
	now := uc.now()
	p := &entity.Product{
		ID:             uuid.New().String(),
		Key:            key,
		Description:    desc,
		UnitMeasure:    unit,
		Category:       strings.TrimSpace(in.Category),
		TaxRate:        in.TaxRate,
		ReferencePrice: in.ReferencePrice,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repos.Products.Create(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// UpdateProduct modifica atributos descriptivos; la clave es inmutable.
func (uc *UseCase) UpdateProduct(ctx context.Context, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := uc.repos.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return nil, domain.ErrInvalidInput
		}
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.UnitMeasure != nil {
		p.UnitMeasure = textnorm.Code(*in.UnitMeasure)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.TaxRate != nil {
		if !validTaxRate(*in.TaxRate) {
			return nil, fmt.Errorf("tasa de IVA %s: %w", in.TaxRate, domain.ErrInvalidInput)
		}
		p.TaxRate = *in.TaxRate
	}
	if in.ReferencePrice != nil {
		p.ReferencePrice = in.ReferencePrice
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.UpdatedAt = uc.now()
	if err := uc.repos.Products.Update(ctx, p); err != nil {
		return nil, err
	}
	uc.cache.DeleteProduct(ctx, p.Key)
	return toProductResponse(p), nil
}

// GetProduct obtiene un producto por ID; nil si no existe.
func (uc *UseCase) GetProduct(ctx context.Context, id string) (*dto.ProductResponse, error) {
	p, err := uc.repos.Products.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// GetProductByKey coincidencia exacta sobre la clave CNIS normalizada.
// Devuelve ErrUnknownKey si no existe.
func (uc *UseCase) GetProductByKey(ctx context.Context, key string) (*entity.Product, error) {
	key = textnorm.Code(key)
	if key == "" {
		return nil, domain.ErrUnknownKey
	}
	if p, ok := uc.cache.GetProduct(ctx, key); ok {
		return p, nil
	}
	p, err := uc.repos.Products.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("clave %q: %w", key, domain.ErrUnknownKey)
	}
	uc.cache.SetProduct(ctx, p)
	return p, nil
}

// ProductByKey versión de salida de GetProductByKey.
func (uc *UseCase) ProductByKey(ctx context.Context, key string) (*dto.ProductResponse, error) {
	p, err := uc.GetProductByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// ListProducts búsqueda por subcadena en clave o descripción.
func (uc *UseCase) ListProducts(ctx context.Context, search string, page dto.PageRequest) (*dto.ProductListResponse, error) {
	page.Normalize()
	list, err := uc.repos.Products.List(ctx, strings.TrimSpace(search), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, *toProductResponse(p))
	}
	return &dto.ProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

// ── instituciones ─────────────────────────────────────────────────────────────

// CreateInstitution da de alta una institución; la CLUES es única.
func (uc *UseCase) CreateInstitution(ctx context.Context, in dto.CreateInstitutionRequest) (*dto.InstitutionResponse, error) {
	clue := textnorm.Code(in.Clue)
	name := strings.TrimSpace(in.Name)
	if clue == "" || name == "" {
		return nil, domain.ErrInvalidInput
	}
	kind := in.Type
	if kind == "" {
		kind = entity.InstitutionTypeHospital
	}
	inst := &entity.Institution{
		ID:        uuid.New().String(),
		Clue:      clue,
		IBClue:    textnorm.Code(in.IBClue),
		Name:      name,
		Type:      kind,
		Locality:  strings.TrimSpace(in.Locality),
		Active:    true,
		CreatedAt: uc.now(),
	}
	if err := uc.repos.Institutions.Create(ctx, inst); err != nil {
		return nil, err
	}
	return toInstitutionResponse(inst), nil
}

// GetInstitutionByClue devuelve ErrNotFound si la CLUES no existe.
func (uc *UseCase) GetInstitutionByClue(ctx context.Context, clue string) (*entity.Institution, error) {
	clue = textnorm.Code(clue)
	if inst, ok := uc.cache.GetInstitution(ctx, clue); ok {
		return inst, nil
	}
	inst, err := uc.repos.Institutions.GetByClue(ctx, clue)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("CLUES %q: %w", clue, domain.ErrNotFound)
	}
	uc.cache.SetInstitution(ctx, inst)
	return inst, nil
}

// InstitutionByClue versión de salida de GetInstitutionByClue.
func (uc *UseCase) InstitutionByClue(ctx context.Context, clue string) (*dto.InstitutionResponse, error) {
	inst, err := uc.GetInstitutionByClue(ctx, clue)
	if err != nil {
		return nil, err
	}
	return toInstitutionResponse(inst), nil
}

// ListInstitutions ordenadas por CLUES.
func (uc *UseCase) ListInstitutions(ctx context.Context, page dto.PageRequest) ([]dto.InstitutionResponse, error) {
	page.Normalize()
	list, err := uc.repos.Institutions.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.InstitutionResponse, 0, len(list))
	for _, inst := range list {
		out = append(out, *toInstitutionResponse(inst))
	}
	return out, nil
}

// ── almacenes y ubicaciones ───────────────────────────────────────────────────

// CreateWarehouse crea un almacén de una institución existente.
func (uc *UseCase) CreateWarehouse(ctx context.Context, in dto.CreateWarehouseRequest) (*dto.WarehouseResponse, error) {
	code := textnorm.Code(in.Code)
	if code == "" || strings.TrimSpace(in.Name) == "" {
		return nil, domain.ErrInvalidInput
	}
	inst, err := uc.repos.Institutions.GetByID(ctx, in.InstitutionID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("institución %s: %w", in.InstitutionID, domain.ErrNotFound)
	}
	now := uc.now()
	w := &entity.Warehouse{
		ID:            uuid.New().String(),
		InstitutionID: inst.ID,
		Code:          code,
		Name:          strings.TrimSpace(in.Name),
		Address:       in.Address,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.repos.Warehouses.Create(ctx, w); err != nil {
		return nil, err
	}
	return toWarehouseResponse(w), nil
}

// ListWarehouses almacenes de una institución ordenados por código.
func (uc *UseCase) ListWarehouses(ctx context.Context, institutionID string) ([]dto.WarehouseResponse, error) {
	list, err := uc.repos.Warehouses.ListByInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.WarehouseResponse, 0, len(list))
	for _, w := range list {
		out = append(out, *toWarehouseResponse(w))
	}
	return out, nil
}

// CreateBin crea una ubicación; el código es único dentro del almacén.
func (uc *UseCase) CreateBin(ctx context.Context, in dto.CreateBinRequest) (*dto.BinResponse, error) {
	code := textnorm.Code(in.Code)
	if code == "" {
		return nil, domain.ErrInvalidInput
	}
	w, err := uc.repos.Warehouses.GetByID(ctx, in.WarehouseID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("almacén %s: %w", in.WarehouseID, domain.ErrNotFound)
	}
	b := &entity.Bin{
		ID:          uuid.New().String(),
		WarehouseID: w.ID,
		Code:        code,
		Description: in.Description,
		Level:       in.Level,
		Aisle:       in.Aisle,
		Rack:        in.Rack,
		Section:     in.Section,
		State:       entity.BinStateAvailable,
		CreatedAt:   uc.now(),
	}
	if err := uc.repos.Bins.Create(ctx, b); err != nil {
		return nil, err
	}
	return toBinResponse(b), nil
}

// ListBins ubicaciones del almacén ordenadas por código.
func (uc *UseCase) ListBins(ctx context.Context, warehouseID string) ([]dto.BinResponse, error) {
	w, err := uc.repos.Warehouses.GetByID(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("almacén %s: %w", warehouseID, domain.ErrNotFound)
	}
	list, err := uc.repos.Bins.ListByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BinResponse, 0, len(list))
	for _, b := range list {
		out = append(out, *toBinResponse(b))
	}
	return out, nil
}

// ChangeBinState cambia el estado de la ubicación. Una ubicación BLOCKED no recibe
// nuevas entradas.
func (uc *UseCase) ChangeBinState(ctx context.Context, id, state string) (*dto.BinResponse, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if !entity.ValidBinState(state) {
		return nil, fmt.Errorf("estado de ubicación %q: %w", state, domain.ErrInvalidInput)
	}
	b, err := uc.repos.Bins.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("ubicación %s: %w", id, domain.ErrNotFound)
	}
	if err := uc.repos.Bins.UpdateState(ctx, id, state); err != nil {
		return nil, err
	}
	uc.log.Info().Str("bin_id", id).Str("de", b.State).Str("a", state).Msg("estado de ubicación actualizado")
	b.State = state
	return toBinResponse(b), nil
}

// ── proveedores ───────────────────────────────────────────────────────────────

// CreateSupplier da de alta un proveedor; el RFC se guarda en mayúsculas.
func (uc *UseCase) CreateSupplier(ctx context.Context, in dto.CreateSupplierRequest) (*dto.SupplierResponse, error) {
	rfc := strings.ToUpper(textnorm.Code(in.RFC))
	if rfc == "" || strings.TrimSpace(in.Name) == "" {
		return nil, domain.ErrInvalidInput
	}
	s := &entity.Supplier{
		ID:        uuid.New().String(),
		RFC:       rfc,
		Name:      strings.TrimSpace(in.Name),
		Contact:   in.Contact,
		Active:    true,
		CreatedAt: uc.now(),
	}
	if err := uc.repos.Suppliers.Create(ctx, s); err != nil {
		return nil, err
	}
	return toSupplierResponse(s), nil
}

// ListSuppliers ordenados por nombre.
func (uc *UseCase) ListSuppliers(ctx context.Context, page dto.PageRequest) ([]dto.SupplierResponse, error) {
	page.Normalize()
	list, err := uc.repos.Suppliers.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SupplierResponse, 0, len(list))
	for _, s := range list {
		out = append(out, *toSupplierResponse(s))
	}
	return out, nil
}

// CreateSupplyOrder registra una orden de suministro de un proveedor existente.
func (uc *UseCase) CreateSupplyOrder(ctx context.Context, in dto.CreateSupplyOrderRequest) (*dto.SupplyOrderResponse, error) {
	number := textnorm.Code(in.OrderNumber)
	if number == "" {
		return nil, domain.ErrInvalidInput
	}
	s, err := uc.repos.Suppliers.GetByID(ctx, in.SupplierID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("proveedor %s: %w", in.SupplierID, domain.ErrNotFound)
	}
	o := &entity.SupplyOrder{
		ID:            uuid.New().String(),
		OrderNumber:   number,
		SupplierID:    s.ID,
		FundingSource: strings.TrimSpace(in.FundingSource),
		Budget:        strings.TrimSpace(in.Budget),
		OrderDate:     in.OrderDate,
		CreatedAt:     uc.now(),
	}
	if err := uc.repos.Suppliers.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return toSupplyOrderResponse(o), nil
}

func validTaxRate(r decimal.Decimal) bool {
	return r.Equal(taxExempt) || r.Equal(taxGeneral)
}
