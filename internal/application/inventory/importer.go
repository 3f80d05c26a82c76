package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
	"github.com/jhoicas/Farmacia-api/pkg/textnorm"
)

// LotRow renglón ya interpretado de la carga masiva de lotes.
type LotRow struct {
	Row             int
	Key             string // CLAVE
	LotNumber       string // LOTE
	BinCode         string // UBICACIÓN
	Quantity        int64  // CANTIDAD
	ExpiryDate      time.Time
	ManufactureDate *time.Time
	UnitPrice       decimal.Decimal
	Procurement     entity.Procurement
}

// LotImportRequest carga de lotes de una institución en un almacén.
type LotImportRequest struct {
	InstitutionID string
	WarehouseID   string
	Actor         string
	Rows          []LotRow
}

// LotImportResult resumen de la carga. Los renglones son independientes.
type LotImportResult struct {
	Processed   int               `json:"processed"`
	Created     int               `json:"created"`
	Updated     int               `json:"updated"`
	Skipped     int               `json:"skipped"`
	BinsCreated int               `json:"bins_created"`
	Errors      []domain.RowError `json:"errors"`
}

// LotImporter carga masiva de lotes: upsert por (producto, institución, lote),
// ubicación por código (se crea si no existe) y resincronización del lote.
type LotImporter struct {
	store    *LotStore
	products ProductLookup
	log      *logger.Logger
}

// NewLotImporter construye el importador.
func NewLotImporter(store *LotStore, products ProductLookup, log *logger.Logger) *LotImporter {
	return &LotImporter{store: store, products: products, log: log.WithComponent("lot_import")}
}

// Import procesa cada renglón en su propia transacción.
func (im *LotImporter) Import(ctx context.Context, req LotImportRequest) (*LotImportResult, error) {
	if req.InstitutionID == "" || req.WarehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	wh, err := im.store.repos.Warehouses.GetByID(ctx, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	if wh == nil {
		return nil, fmt.Errorf("almacén %s: %w", req.WarehouseID, domain.ErrNotFound)
	}
	if wh.InstitutionID != req.InstitutionID {
		return nil, fmt.Errorf("el almacén %s no pertenece a la institución: %w", wh.Code, domain.ErrForbidden)
	}

	res := &LotImportResult{Errors: []domain.RowError{}}
	for _, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if textnorm.Placeholder(row.Key) {
			res.Skipped++
			continue
		}
		created, binCreated, rowErr := im.importRow(ctx, req, row)
		if rowErr != nil {
			res.Errors = append(res.Errors, *rowErr)
			im.log.Warn().Int("renglon", row.Row).Str("clave", row.Key).Str("motivo", rowErr.Reason).Msg("renglón de lotes rechazado")
			continue
		}
		res.Processed++
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		if binCreated {
			res.BinsCreated++
		}
	}
	im.log.Info().
		Int("procesados", res.Processed).
		Int("creados", res.Created).
		Int("omitidos", res.Skipped).
		Int("errores", len(res.Errors)).
		Msg("carga de lotes terminada")
	return res, nil
}

func (im *LotImporter) importRow(ctx context.Context, req LotImportRequest, row LotRow) (bool, bool, *domain.RowError) {
	key := textnorm.Code(row.Key)
	fail := func(kind, reason string) *domain.RowError {
		return &domain.RowError{Row: row.Row, Kind: kind, Key: key, Reason: reason}
	}
	if row.Quantity < 0 {
		return false, false, fail(entity.ErrorKindInvalidQuantity, "cantidad negativa")
	}
	if textnorm.Code(row.LotNumber) == "" || textnorm.Code(row.BinCode) == "" {
		return false, false, fail(entity.ErrorKindOther, "lote y ubicación son obligatorios")
	}
	if row.ExpiryDate.IsZero() {
		return false, false, fail(entity.ErrorKindOther, "caducidad inválida")
	}
	product, err := im.products.GetProductByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownKey) {
			return false, false, fail(entity.ErrorKindUnknownKey, "clave CNIS no existe en el catálogo")
		}
		return false, false, fail(entity.ErrorKindOther, err.Error())
	}

	var created, binCreated bool
	err = im.store.txRunner.Run(ctx, func(r repository.Repos) error {
		binCode := textnorm.Code(row.BinCode)
		bin, err := r.Bins.GetByCode(ctx, req.WarehouseID, binCode)
		if err != nil {
			return err
		}
		if bin == nil {
			bin = &entity.Bin{
				ID:          uuid.New().String(),
				WarehouseID: req.WarehouseID,
				Code:        binCode,
				State:       entity.BinStateAvailable,
				CreatedAt:   im.store.now(),
			}
			if err := r.Bins.Create(ctx, bin); err != nil {
				return err
			}
			binCreated = true
		}
		lot, isNew, err := im.store.UpsertLotTx(ctx, r, LotInput{
			ProductID:       product.ID,
			InstitutionID:   req.InstitutionID,
			LotNumber:       row.LotNumber,
			QuantityInitial: row.Quantity,
			UnitPrice:       row.UnitPrice,
			ExpiryDate:      row.ExpiryDate,
			ManufactureDate: row.ManufactureDate,
			WarehouseID:     req.WarehouseID,
			Procurement:     row.Procurement,
			Actor:           req.Actor,
		})
		if err != nil {
			return err
		}
		created = isNew
		_, err = im.store.PlaceLotTx(ctx, r, lot.ID, bin.ID, row.Quantity, req.Actor)
		return err
	})
	if err != nil {
		kind := entity.ErrorKindOther
		if errors.Is(err, domain.ErrInvalidQuantity) {
			kind = entity.ErrorKindInvalidQuantity
		}
		return false, false, fail(kind, err.Error())
	}
	return created, binCreated, nil
}
