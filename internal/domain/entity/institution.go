package entity

import "time"

// Tipos de institución (jerarquía de la red de salud).
const (
	InstitutionTypeHospital  = "HOSPITAL"
	InstitutionTypeClinic    = "CENTRO_SALUD"
	InstitutionTypeWarehouse = "ALMACEN_CENTRAL"
	InstitutionTypeOther     = "OTRO"
)

// Institution unidad de salud identificada por su CLUES. Es dueña de los lotes
// y destinataria legal de las entregas.
type Institution struct {
	ID        string
	Clue      string // CLUES, único
	IBClue    string // clave interna de la red (opcional)
	Name      string
	Type      string
	Locality  string // alcaldía / municipio
	Active    bool
	CreatedAt time.Time
}
