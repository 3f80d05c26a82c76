// Package kafka publica los eventos de dominio (propuestas, caducidades, alertas).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

var (
	_ ports.EventPublisher = (*Publisher)(nil)
	_ ports.EventPublisher = (*LogPublisher)(nil)
)

// Publisher escribe cada evento en el tópico de eventos o en el de alertas.
// La clave del mensaje es Event.Key, así los eventos de un mismo folio o lote
// caen en la misma partición y conservan su orden.
type Publisher struct {
	writer      *kafkago.Writer
	eventsTopic string
	alertsTopic string
	log         *logger.Logger
}

// NewPublisher sin brokers devuelve un LogPublisher.
func NewPublisher(cfg config.KafkaConfig, log *logger.Logger) ports.EventPublisher {
	if len(cfg.Brokers) == 0 {
		return NewLogPublisher(log)
	}
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		eventsTopic: cfg.EventsTopic,
		alertsTopic: cfg.AlertsTopic,
		log:         log.WithComponent("kafka"),
	}
}

// Publish envía los eventos en un solo lote. Un fallo se devuelve al llamador, que
// ya confirmó su transacción: el evento se pierde pero el inventario queda correcto.
func (p *Publisher) Publish(ctx context.Context, events ...ports.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := toMessages(events, p.eventsTopic, p.alertsTopic)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.Error().Err(err).Int("eventos", len(events)).Msg("no se pudieron publicar eventos")
		return fmt.Errorf("publicar eventos: %w", err)
	}
	return nil
}

// Close vacía el buffer del writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toMessages(events []ports.Event, eventsTopic, alertsTopic string) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("serializar evento %s: %w", e.Type, err)
		}
		topic := eventsTopic
		if e.IsAlert() && alertsTopic != "" {
			topic = alertsTopic
		}
		msgs = append(msgs, kafkago.Message{
			Topic: topic,
			Key:   []byte(e.Key),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafkago.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	}
	return msgs, nil
}

// LogPublisher registra los eventos en el log; se usa cuando no hay brokers.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher construye el publicador de respaldo.
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log.WithComponent("events")}
}

func (p *LogPublisher) Publish(_ context.Context, events ...ports.Event) error {
	for _, e := range events {
		ev := p.log.Info()
		if e.IsAlert() {
			ev = p.log.Warn()
		}
		ev.Str("type", e.Type).Str("key", e.Key).Interface("payload", e.Payload).Msg("evento")
	}
	return nil
}
