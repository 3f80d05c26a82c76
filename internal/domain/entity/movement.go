package entity

import "time"

// MovementKind tipo de movimiento del kardex.
type MovementKind string

const (
	MovementEntry              MovementKind = "ENTRY"
	MovementExit               MovementKind = "EXIT"
	MovementPositiveAdjustment MovementKind = "POSITIVE_ADJUSTMENT"
	MovementNegativeAdjustment MovementKind = "NEGATIVE_ADJUSTMENT"
	MovementTransferIn         MovementKind = "TRANSFER_IN"
	MovementTransferOut        MovementKind = "TRANSFER_OUT"
	MovementExpiryWriteOff     MovementKind = "EXPIRY_WRITEOFF"
	MovementDamageWriteOff     MovementKind = "DAMAGE_WRITEOFF"
)

// Valid indica si el tipo existe.
func (k MovementKind) Valid() bool {
	return k.Sign() != 0
}

// Sign +1 si el tipo incrementa la existencia, -1 si la reduce, 0 si no es válido.
func (k MovementKind) Sign() int64 {
	switch k {
	case MovementEntry, MovementPositiveAdjustment, MovementTransferIn:
		return 1
	case MovementExit, MovementNegativeAdjustment, MovementTransferOut,
		MovementExpiryWriteOff, MovementDamageWriteOff:
		return -1
	}
	return 0
}

// Movement evento inmutable del kardex de un lote. Sólo Voided y sus campos
// asociados cambian después de escrito; la anulación se compensa con otro movimiento.
// Orden total por lote: (CreatedAt, Seq).
type Movement struct {
	ID                       string
	Seq                      int64
	LotID                    string
	BinID                    string // vacío en salidas por despacho (agregadas por lote)
	Kind                     MovementKind
	Quantity                 int64 // siempre positiva; el signo lo da Kind
	QuantityBefore           int64
	QuantityAfter            int64
	Reason                   string
	Reference                string // documento de referencia
	Folio                    string // folio de la solicitud asociada
	RequisitionID            string
	ProposalID               string
	DestinationInstitutionID string
	CompensatesID            string // movimiento anulado que éste compensa
	CreatedBy                string
	CreatedAt                time.Time
	Voided                   bool
	VoidedAt                 *time.Time
	VoidedBy                 string
}

// Delta cantidad con signo aplicada a la existencia.
func (m *Movement) Delta() int64 {
	return m.Kind.Sign() * m.Quantity
}
