package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Validación
	ErrUnknownKey      = errors.New("clave CNIS no existe")
	ErrInvalidQuantity = errors.New("cantidad inválida")
	ErrInvalidFolio    = errors.New("folio con formato inválido")

	// Reglas de negocio
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrLotNotAvailable   = errors.New("el lote no está disponible")
	ErrNoAvailability    = errors.New("sin disponibilidad para los insumos solicitados")

	// Integridad: abortan la transacción completa
	ErrNegativeStock        = errors.New("la operación dejaría existencia negativa")
	ErrReservationIntegrity = errors.New("la cantidad reservada excedería la disponible")
)

// TransitionError detalla una transición inválida de la máquina de estados.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s → %s: %s", e.Entity, e.From, e.To, ErrInvalidTransition.Error())
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NewTransitionError construye el error tipado de transición.
func NewTransitionError(entity, from, to string) error {
	return &TransitionError{Entity: entity, From: from, To: to}
}

// RowError renglón rechazado en una carga masiva. Kind usa los tipos de ErrorLog.
type RowError struct {
	Row    int    `json:"row"`
	Kind   string `json:"kind"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("renglón %d (%s): %s", e.Row, e.Kind, e.Reason)
}
