package entity

import "time"

// Tipos de error en la carga masiva de solicitudes.
const (
	ErrorKindUnknownKey      = "UNKNOWN_KEY"
	ErrorKindNoStock         = "NO_STOCK"
	ErrorKindInvalidQuantity = "INVALID_QUANTITY"
	ErrorKindOther           = "OTHER"
)

// ErrorLog renglón rechazado durante una carga o generación.
type ErrorLog struct {
	ID                string
	Kind              string
	Key               string // clave solicitada tal como llegó
	QuantityRequested int64
	RequisitionID     string
	InstitutionID     string
	UserID            string
	Description       string
	AlertSent         bool
	CreatedAt         time.Time
}

// ErrorSummary resumen de errores agrupado.
type ErrorSummary struct {
	Total         int
	ByKind        map[string]int
	ByInstitution map[string]int
	ByUser        map[string]int
	PendingAlerts int
}
