package ports

import (
	"context"
	"time"
)

// Tipos de evento publicados por el motor.
const (
	EventProposalGenerated  = "proposal.generated"
	EventProposalCancelled  = "proposal.cancelled"
	EventProposalDispatched = "proposal.dispatched"
	EventLotExpired         = "lot.expired"
	EventReconciliation     = "reconciliation.finding"
	EventStockAlert         = "stock.alert"
)

// Event evento de dominio. Key agrupa eventos del mismo agregado (folio, id de lote).
type Event struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// IsAlert indica si el evento debe viajar por el canal de alertas.
func (e Event) IsAlert() bool {
	return e.Type == EventStockAlert || e.Type == EventReconciliation
}

// EventPublisher puerto de salida de eventos. Publicar nunca forma parte de la
// transacción: los llamadores publican después del Commit.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// NopPublisher descarta los eventos.
type NopPublisher struct{}

// Publish no hace nada.
func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
