package inventory

import (
	"sort"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// DefaultMinExpiryDays margen mínimo de caducidad para que un lote sea surtible.
const DefaultMinExpiryDays = 60

// DateOnly trunca t a medianoche UTC; las caducidades se comparan por día.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MinExpiry fecha mínima de caducidad aceptada por el generador: hoy + days.
func MinExpiry(today time.Time, days int) time.Time {
	return DateOnly(today).AddDate(0, 0, days)
}

// Eligible: estado AVAILABLE, disponible efectivo > 0 y caducidad >= minExpiry.
func Eligible(l *entity.Lot, minExpiry time.Time) bool {
	if l.State != entity.LotStateAvailable {
		return false
	}
	if l.EffectiveAvailable() <= 0 {
		return false
	}
	return !DateOnly(l.ExpiryDate).Before(DateOnly(minExpiry))
}

// FilterEligible conserva sólo los lotes elegibles, sin alterar el orden.
func FilterEligible(lots []*entity.Lot, minExpiry time.Time) []*entity.Lot {
	out := make([]*entity.Lot, 0, len(lots))
	for _, l := range lots {
		if Eligible(l, minExpiry) {
			out = append(out, l)
		}
	}
	return out
}

// LessFEFO orden total: caducidad, recepción e id ascendentes.
func LessFEFO(a, b *entity.Lot) bool {
	ea, eb := DateOnly(a.ExpiryDate), DateOnly(b.ExpiryDate)
	if !ea.Equal(eb) {
		return ea.Before(eb)
	}
	if !a.ReceptionDate.Equal(b.ReceptionDate) {
		return a.ReceptionDate.Before(b.ReceptionDate)
	}
	return a.ID < b.ID
}

// SortFEFO ordena en sitio con desempate determinista.
func SortFEFO(lots []*entity.Lot) {
	sort.SliceStable(lots, func(i, j int) bool { return LessFEFO(lots[i], lots[j]) })
}

// Take porción tomada de una ubicación.
type Take struct {
	PlacementID string
	BinID       string
	Quantity    int64
}

// SplitAcrossPlacements reparte qty entre las ubicaciones en el orden recibido,
// usando sólo la cantidad libre de cada una. Devuelve las porciones y el total cubierto.
func SplitAcrossPlacements(placements []*entity.BinPlacement, qty int64) ([]Take, int64) {
	var takes []Take
	remaining := qty
	for _, p := range placements {
		if remaining <= 0 {
			break
		}
		free := p.Free()
		if free <= 0 {
			continue
		}
		n := min(free, remaining)
		takes = append(takes, Take{PlacementID: p.ID, BinID: p.BinID, Quantity: n})
		remaining -= n
	}
	return takes, qty - remaining
}

// ItemState estado del renglón según lo asignado contra lo solicitado.
func ItemState(requested, assigned int64) string {
	switch {
	case assigned <= 0:
		return entity.ProposalItemUnavailable
	case assigned >= requested:
		return entity.ProposalItemAvailable
	default:
		return entity.ProposalItemPartial
	}
}

// LotPlan porción que el generador tomaría de un lote.
type LotPlan struct {
	Lot      *entity.Lot
	Quantity int64
}

// PlanLots recorre lotes ya ordenados y elegibles tomando hasta qty. No muta los lotes.
func PlanLots(lots []*entity.Lot, qty int64) ([]LotPlan, int64) {
	var plan []LotPlan
	remaining := qty
	for _, l := range lots {
		if remaining <= 0 {
			break
		}
		eff := l.EffectiveAvailable()
		if eff <= 0 {
			continue
		}
		n := min(eff, remaining)
		plan = append(plan, LotPlan{Lot: l, Quantity: n})
		remaining -= n
	}
	return plan, qty - remaining
}
