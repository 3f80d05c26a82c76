package proposal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	rules "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
)

// AcknowledgmentLine una línea por (producto, lote, ubicación) despachada.
type AcknowledgmentLine struct {
	ProductKey  string          `json:"product_key"`
	Description string          `json:"description"`
	UnitMeasure string          `json:"unit_measure"`
	LotNumber   string          `json:"lot_number"`
	ExpiryDate  time.Time       `json:"expiry_date"`
	BinCode     string          `json:"bin_code"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// Acknowledgment datos del acuse de recibo de un despacho; el formato de impresión
// lo decide quien lo presenta.
type Acknowledgment struct {
	Folio           string               `json:"folio"`
	ProposalID      string               `json:"proposal_id"`
	RequisitionID   string               `json:"requisition_id"`
	InstitutionClue string               `json:"institution_clue"`
	InstitutionName string               `json:"institution_name"`
	WarehouseCode   string               `json:"warehouse_code"`
	WarehouseName   string               `json:"warehouse_name"`
	DispatchedBy    string               `json:"dispatched_by"`
	DispatchedAt    *time.Time           `json:"dispatched_at"`
	Lines           []AcknowledgmentLine `json:"lines"`
	TotalQuantity   int64                `json:"total_quantity"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	Tax             decimal.Decimal      `json:"tax"`
	Total           decimal.Decimal      `json:"total"`
}

// Acknowledgment desglose lote por lote de una propuesta DISPATCHED, ordenado por
// clave, caducidad y ubicación.
func (lc *Lifecycle) Acknowledgment(ctx context.Context, id string) (*Acknowledgment, error) {
	r := lc.repos
	p, err := r.Proposals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("propuesta %s: %w", id, domain.ErrNotFound)
	}
	if p.State != entity.ProposalDispatched {
		return nil, fmt.Errorf("la propuesta %s está en %s: %w", p.Folio, p.State, domain.ErrConflict)
	}
	req, err := r.Requisitions.GetByID(ctx, p.RequisitionID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("solicitud %s: %w", p.RequisitionID, domain.ErrNotFound)
	}

	ack := &Acknowledgment{
		Folio:         p.Folio,
		ProposalID:    p.ID,
		RequisitionID: req.ID,
		DispatchedBy:  p.DispatchedBy,
		DispatchedAt:  p.DispatchedAt,
		Lines:         []AcknowledgmentLine{},
		Subtotal:      decimal.Zero,
		Tax:           decimal.Zero,
		Total:         decimal.Zero,
	}
	if inst, err := r.Institutions.GetByID(ctx, req.InstitutionID); err != nil {
		return nil, err
	} else if inst != nil {
		ack.InstitutionClue, ack.InstitutionName = inst.Clue, inst.Name
	}
	if wh, err := r.Warehouses.GetByID(ctx, req.WarehouseID); err != nil {
		return nil, err
	} else if wh != nil {
		ack.WarehouseCode, ack.WarehouseName = wh.Code, wh.Name
	}

	assignments, err := r.Proposals.ListAssignments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	products := map[string]*entity.Product{}
	lots := map[string]*entity.Lot{}
	bins := map[string]*entity.Bin{}
	for _, a := range assignments {
		if !a.Dispatched {
			continue
		}
		lot, ok := lots[a.LotID]
		if !ok {
			if lot, err = r.Lots.GetByID(ctx, a.LotID); err != nil {
				return nil, err
			}
			if lot == nil {
				return nil, fmt.Errorf("lote %s: %w", a.LotID, domain.ErrNotFound)
			}
			lots[a.LotID] = lot
		}
		product, ok := products[lot.ProductID]
		if !ok {
			if product, err = r.Products.GetByID(ctx, lot.ProductID); err != nil {
				return nil, err
			}
			if product == nil {
				return nil, fmt.Errorf("producto %s: %w", lot.ProductID, domain.ErrNotFound)
			}
			products[lot.ProductID] = product
		}
		bin, ok := bins[a.BinID]
		if !ok {
			if bin, err = r.Bins.GetByID(ctx, a.BinID); err != nil {
				return nil, err
			}
			bins[a.BinID] = bin
		}

		amounts := rules.LineAmounts(a.Quantity, lot.UnitPrice, product.TaxRate)
		line := AcknowledgmentLine{
			ProductKey:  product.Key,
			Description: product.Description,
			UnitMeasure: product.UnitMeasure,
			LotNumber:   lot.LotNumber,
			ExpiryDate:  lot.ExpiryDate,
			Quantity:    a.Quantity,
			UnitPrice:   lot.UnitPrice,
			Subtotal:    amounts.Subtotal,
			Tax:         amounts.Tax,
			Total:       amounts.Total,
		}
		if bin != nil {
			line.BinCode = bin.Code
		}
		ack.Lines = append(ack.Lines, line)
		ack.TotalQuantity += a.Quantity
		ack.Subtotal = ack.Subtotal.Add(amounts.Subtotal)
		ack.Tax = ack.Tax.Add(amounts.Tax)
		ack.Total = ack.Total.Add(amounts.Total)
	}

	sort.SliceStable(ack.Lines, func(i, j int) bool {
		a, b := ack.Lines[i], ack.Lines[j]
		if a.ProductKey != b.ProductKey {
			return a.ProductKey < b.ProductKey
		}
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		return a.BinCode < b.BinCode
	})
	return ack, nil
}
