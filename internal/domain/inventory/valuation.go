package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// Amounts importes de un renglón valorizado.
type Amounts struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// LineAmounts calcula Subtotal = qty × precio, IVA = Subtotal × tasa, Total = Subtotal + IVA.
// Redondeo a centavos.
func LineAmounts(qty int64, unitPrice, taxRate decimal.Decimal) Amounts {
	sub := decimal.NewFromInt(qty).Mul(unitPrice).Round(2)
	tax := sub.Mul(taxRate).Round(2)
	return Amounts{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// ReservePercent porcentaje reservado del disponible (0 si no hay disponible).
func ReservePercent(available, reserved int64) decimal.Decimal {
	if available <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(reserved).Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(available)).Round(2)
}

// Niveles de alerta de caducidad.
const (
	ExpiryAlertExpired = "CADUCADO"
	ExpiryAlert30      = "30_DIAS"
	ExpiryAlert60      = "60_DIAS"
	ExpiryAlert90      = "90_DIAS"
	ExpiryAlertNone    = ""
)

// DaysToExpiry días completos entre hoy y la caducidad (negativo si ya caducó).
func DaysToExpiry(lot *entity.Lot, today time.Time) int {
	return int(DateOnly(lot.ExpiryDate).Sub(DateOnly(today)).Hours() / 24)
}

// ExpiryAlertLevel clasifica el lote en CADUCADO, 30, 60 o 90 días.
func ExpiryAlertLevel(days int) string {
	switch {
	case days < 0:
		return ExpiryAlertExpired
	case days <= 30:
		return ExpiryAlert30
	case days <= 60:
		return ExpiryAlert60
	case days <= 90:
		return ExpiryAlert90
	}
	return ExpiryAlertNone
}
