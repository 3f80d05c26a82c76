package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	rules "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// ReportFilter rango y filtros comunes de los reportes.
type ReportFilter struct {
	InstitutionID string
	ProductID     string
	From          *time.Time
	To            *time.Time
}

// MovementLine renglón de los reportes de entradas y salidas.
type MovementLine struct {
	MovementID    string              `json:"movement_id"`
	Date          time.Time           `json:"date"`
	Kind          entity.MovementKind `json:"kind"`
	ProductKey    string              `json:"product_key"`
	Description   string              `json:"description"`
	LotNumber     string              `json:"lot_number"`
	ExpiryDate    time.Time           `json:"expiry_date"`
	InstitutionID string              `json:"institution_id"`
	Destination   string              `json:"destination,omitempty"` // CLUES destino (salidas)
	Folio         string              `json:"folio,omitempty"`
	Quantity      int64               `json:"quantity"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	Amount        decimal.Decimal     `json:"amount"`
	Procurement   entity.Procurement  `json:"procurement"`
	CreatedBy     string              `json:"created_by"`
}

// MovementReport líneas y totales.
type MovementReport struct {
	Lines         []MovementLine  `json:"lines"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// ExpiringLine lote próximo a caducar.
type ExpiringLine struct {
	LotID         string          `json:"lot_id"`
	LotNumber     string          `json:"lot_number"`
	ProductKey    string          `json:"product_key"`
	Description   string          `json:"description"`
	InstitutionID string          `json:"institution_id"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	DaysToExpiry  int             `json:"days_to_expiry"`
	Level         string          `json:"level"`
	Available     int64           `json:"available"`
	Reserved      int64           `json:"reserved"`
	Value         decimal.Decimal `json:"value"`
}

// AvailabilityLine existencia por producto e institución.
type AvailabilityLine struct {
	ProductID      string          `json:"product_id"`
	ProductKey     string          `json:"product_key"`
	Description    string          `json:"description"`
	InstitutionID  string          `json:"institution_id"`
	Lots           int             `json:"lots"`
	Available      int64           `json:"available"`
	Reserved       int64           `json:"reserved"`
	Effective      int64           `json:"effective"`
	ReservePercent decimal.Decimal `json:"reserve_percent"`
}

// Reports consultas de sólo lectura.
type Reports struct {
	repos repository.Repos
	now   func() time.Time
}

// NewReports construye el servicio de reportes.
func NewReports(repos repository.Repos) *Reports {
	return &Reports{repos: repos, now: time.Now}
}

// SetClock reemplaza el reloj.
func (rp *Reports) SetClock(now func() time.Time) { rp.now = now }

// Entries entradas de almacén con sus datos de adquisición.
func (rp *Reports) Entries(ctx context.Context, f ReportFilter) (*MovementReport, error) {
	return rp.movements(ctx, f, entity.MovementEntry)
}

// Exits salidas por surtimiento con folio e institución destino.
func (rp *Reports) Exits(ctx context.Context, f ReportFilter) (*MovementReport, error) {
	return rp.movements(ctx, f, entity.MovementExit)
}

func (rp *Reports) movements(ctx context.Context, f ReportFilter, kind entity.MovementKind) (*MovementReport, error) {
	movs, err := rp.repos.Movements.List(ctx, repository.MovementFilter{
		Kinds:         []entity.MovementKind{kind},
		InstitutionID: f.InstitutionID,
		From:          f.From,
		To:            f.To,
	})
	if err != nil {
		return nil, fmt.Errorf("reporte %s: %w", kind, err)
	}
	lk := newLookup(rp.repos)
	rep := &MovementReport{Lines: []MovementLine{}, TotalAmount: decimal.Zero}
	for _, m := range movs {
		lot, product, err := lk.lotAndProduct(ctx, m.LotID)
		if err != nil {
			return nil, err
		}
		if f.ProductID != "" && lot.ProductID != f.ProductID {
			continue
		}
		line := MovementLine{
			MovementID:    m.ID,
			Date:          m.CreatedAt,
			Kind:          m.Kind,
			ProductKey:    product.Key,
			Description:   product.Description,
			LotNumber:     lot.LotNumber,
			ExpiryDate:    lot.ExpiryDate,
			InstitutionID: lot.InstitutionID,
			Folio:         m.Folio,
			Quantity:      m.Quantity,
			UnitPrice:     lot.UnitPrice,
			Amount:        decimal.NewFromInt(m.Quantity).Mul(lot.UnitPrice).Round(2),
			Procurement:   lot.Procurement,
			CreatedBy:     m.CreatedBy,
		}
		if m.DestinationInstitutionID != "" {
			inst, err := lk.institution(ctx, m.DestinationInstitutionID)
			if err != nil {
				return nil, err
			}
			if inst != nil {
				line.Destination = inst.Clue
			}
		}
		rep.Lines = append(rep.Lines, line)
		rep.TotalQuantity += line.Quantity
		rep.TotalAmount = rep.TotalAmount.Add(line.Amount)
	}
	return rep, nil
}

// Expiring lotes con existencia que caducan dentro de days días (o ya caducaron),
// clasificados en CADUCADO, 30, 60 y 90 días. Ordenados por caducidad.
func (rp *Reports) Expiring(ctx context.Context, institutionID string, days int) ([]ExpiringLine, error) {
	if days <= 0 {
		days = 90
	}
	today := rules.DateOnly(rp.now())
	limit := today.AddDate(0, 0, days)
	lots, err := rp.repos.Lots.List(ctx, repository.LotFilter{
		InstitutionID: institutionID,
		States:        []entity.LotState{entity.LotStateAvailable, entity.LotStateSuspended, entity.LotStateExpired},
		ExpiryTo:      &limit,
		OnlyWithStock: true,
	})
	if err != nil {
		return nil, err
	}
	lk := newLookup(rp.repos)
	out := make([]ExpiringLine, 0, len(lots))
	for _, lot := range lots {
		product, err := lk.product(ctx, lot.ProductID)
		if err != nil {
			return nil, err
		}
		d := rules.DaysToExpiry(lot, today)
		out = append(out, ExpiringLine{
			LotID:         lot.ID,
			LotNumber:     lot.LotNumber,
			ProductKey:    product.Key,
			Description:   product.Description,
			InstitutionID: lot.InstitutionID,
			ExpiryDate:    lot.ExpiryDate,
			DaysToExpiry:  d,
			Level:         rules.ExpiryAlertLevel(d),
			Available:     lot.QuantityAvailable,
			Reserved:      lot.QuantityReserved,
			Value:         decimal.NewFromInt(lot.QuantityAvailable).Mul(lot.UnitPrice).Round(2),
		})
	}
	return out, nil
}

// Availability disponible contra reservado por producto e institución, sobre lotes
// AVAILABLE.
func (rp *Reports) Availability(ctx context.Context, f ReportFilter) ([]AvailabilityLine, error) {
	lots, err := rp.repos.Lots.List(ctx, repository.LotFilter{
		ProductID:     f.ProductID,
		InstitutionID: f.InstitutionID,
		States:        []entity.LotState{entity.LotStateAvailable},
	})
	if err != nil {
		return nil, err
	}
	lk := newLookup(rp.repos)
	type key struct{ product, institution string }
	acc := map[key]*AvailabilityLine{}
	var order []key
	for _, lot := range lots {
		k := key{lot.ProductID, lot.InstitutionID}
		line, ok := acc[k]
		if !ok {
			product, err := lk.product(ctx, lot.ProductID)
			if err != nil {
				return nil, err
			}
			line = &AvailabilityLine{
				ProductID:     product.ID,
				ProductKey:    product.Key,
				Description:   product.Description,
				InstitutionID: lot.InstitutionID,
			}
			acc[k] = line
			order = append(order, k)
		}
		line.Lots++
		line.Available += lot.QuantityAvailable
		line.Reserved += lot.QuantityReserved
	}
	out := make([]AvailabilityLine, 0, len(order))
	for _, k := range order {
		line := acc[k]
		line.Effective = line.Available - line.Reserved
		line.ReservePercent = rules.ReservePercent(line.Available, line.Reserved)
		out = append(out, *line)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductKey != out[j].ProductKey {
			return out[i].ProductKey < out[j].ProductKey
		}
		return out[i].InstitutionID < out[j].InstitutionID
	})
	return out, nil
}

// ErrorSummary resumen de la bitácora de errores de carga.
func (rp *Reports) ErrorSummary(ctx context.Context, f repository.ErrorLogFilter) (*entity.ErrorSummary, error) {
	f.Limit, f.Offset = 0, 0
	logs, err := rp.repos.ErrorLogs.List(ctx, f)
	if err != nil {
		return nil, err
	}
	s := &entity.ErrorSummary{
		ByKind:        map[string]int{},
		ByInstitution: map[string]int{},
		ByUser:        map[string]int{},
	}
	for _, l := range logs {
		s.Total++
		s.ByKind[l.Kind]++
		if l.InstitutionID != "" {
			s.ByInstitution[l.InstitutionID]++
		}
		if l.UserID != "" {
			s.ByUser[l.UserID]++
		}
		if !l.AlertSent {
			s.PendingAlerts++
		}
	}
	return s, nil
}

// ErrorLogs bitácora de errores de carga, paginada.
func (rp *Reports) ErrorLogs(ctx context.Context, f repository.ErrorLogFilter) ([]*entity.ErrorLog, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return rp.repos.ErrorLogs.List(ctx, f)
}

// lookup memoriza lotes, productos e instituciones durante un reporte.
type lookup struct {
	repos        repository.Repos
	lots         map[string]*entity.Lot
	products     map[string]*entity.Product
	institutions map[string]*entity.Institution
}

func newLookup(r repository.Repos) *lookup {
	return &lookup{
		repos:        r,
		lots:         map[string]*entity.Lot{},
		products:     map[string]*entity.Product{},
		institutions: map[string]*entity.Institution{},
	}
}

func (l *lookup) lotAndProduct(ctx context.Context, lotID string) (*entity.Lot, *entity.Product, error) {
	lot, ok := l.lots[lotID]
	if !ok {
		var err error
		if lot, err = l.repos.Lots.GetByID(ctx, lotID); err != nil {
			return nil, nil, err
		}
		if lot == nil {
			return nil, nil, fmt.Errorf("lote %s: %w", lotID, domain.ErrNotFound)
		}
		l.lots[lotID] = lot
	}
	product, err := l.product(ctx, lot.ProductID)
	if err != nil {
		return nil, nil, err
	}
	return lot, product, nil
}

func (l *lookup) product(ctx context.Context, id string) (*entity.Product, error) {
	if p, ok := l.products[id]; ok {
		return p, nil
	}
	p, err := l.repos.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	l.products[id] = p
	return p, nil
}

func (l *lookup) institution(ctx context.Context, id string) (*entity.Institution, error) {
	if inst, ok := l.institutions[id]; ok {
		return inst, nil
	}
	inst, err := l.repos.Institutions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.institutions[id] = inst
	return inst, nil
}
