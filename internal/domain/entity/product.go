package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitMeasureDefault unidad de medida cuando el catálogo no la informa.
const UnitMeasureDefault = "PIEZA"

// Product representa un insumo del Compendio Nacional de Insumos (CNIS).
// Key (clave_cnis) es la identidad inmutable; la coincidencia es exacta.
type Product struct {
	ID             string
	Key            string // clave_cnis, única
	Description    string
	UnitMeasure    string
	Category       string
	TaxRate        decimal.Decimal  // 0 o 0.16
	ReferencePrice *decimal.Decimal // precio unitario de referencia (opcional)
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
