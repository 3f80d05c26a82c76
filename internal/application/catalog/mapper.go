package catalog

import (
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:             p.ID,
		Key:            p.Key,
		Description:    p.Description,
		UnitMeasure:    p.UnitMeasure,
		Category:       p.Category,
		TaxRate:        p.TaxRate,
		ReferencePrice: p.ReferencePrice,
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toInstitutionResponse(inst *entity.Institution) *dto.InstitutionResponse {
	return &dto.InstitutionResponse{
		ID:        inst.ID,
		Clue:      inst.Clue,
		IBClue:    inst.IBClue,
		Name:      inst.Name,
		Type:      inst.Type,
		Locality:  inst.Locality,
		Active:    inst.Active,
		CreatedAt: inst.CreatedAt,
	}
}

func toWarehouseResponse(w *entity.Warehouse) *dto.WarehouseResponse {
	return &dto.WarehouseResponse{
		ID:            w.ID,
		InstitutionID: w.InstitutionID,
		Code:          w.Code,
		Name:          w.Name,
		Address:       w.Address,
		Active:        w.Active,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

func toBinResponse(b *entity.Bin) *dto.BinResponse {
	return &dto.BinResponse{
		ID:          b.ID,
		WarehouseID: b.WarehouseID,
		Code:        b.Code,
		Description: b.Description,
		Level:       b.Level,
		Aisle:       b.Aisle,
		Rack:        b.Rack,
		Section:     b.Section,
		State:       b.State,
		CreatedAt:   b.CreatedAt,
	}
}

func toSupplierResponse(s *entity.Supplier) *dto.SupplierResponse {
	return &dto.SupplierResponse{
		ID:        s.ID,
		RFC:       s.RFC,
		Name:      s.Name,
		Contact:   s.Contact,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}

func toSupplyOrderResponse(o *entity.SupplyOrder) *dto.SupplyOrderResponse {
	return &dto.SupplyOrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		SupplierID:    o.SupplierID,
		FundingSource: o.FundingSource,
		Budget:        o.Budget,
		OrderDate:     o.OrderDate,
		CreatedAt:     o.CreatedAt,
	}
}
