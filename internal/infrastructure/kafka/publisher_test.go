package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

func TestToMessages_AlertasVanASuTopico(t *testing.T) {
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	events := []ports.Event{
		{Type: ports.EventProposalGenerated, Key: "IB-2025-000001", OccurredAt: at, Payload: map[string]any{"total": 7}},
		{Type: ports.EventStockAlert, Key: "010.000.0104.00", OccurredAt: at},
	}
	msgs, err := toMessages(events, "farmacia.propuestas", "farmacia.alertas")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "farmacia.propuestas", msgs[0].Topic)
	assert.Equal(t, []byte("IB-2025-000001"), msgs[0].Key)
	assert.Equal(t, at, msgs[0].Time)
	var decoded ports.Event
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, ports.EventProposalGenerated, decoded.Type)
	assert.EqualValues(t, 7, decoded.Payload["total"])

	assert.Equal(t, "farmacia.alertas", msgs[1].Topic)
	assert.Equal(t, "type", msgs[1].Headers[0].Key)
	assert.Equal(t, []byte(ports.EventStockAlert), msgs[1].Headers[0].Value)
}

func TestToMessages_SinTopicoDeAlertas(t *testing.T) {
	msgs, err := toMessages([]ports.Event{{Type: ports.EventReconciliation, Key: "lot-1"}}, "eventos", "")
	require.NoError(t, err)
	assert.Equal(t, "eventos", msgs[0].Topic)
}

func TestNewPublisher_SinBrokersSoloLog(t *testing.T) {
	pub := NewPublisher(config.KafkaConfig{}, logger.Nop())
	_, ok := pub.(*LogPublisher)
	assert.True(t, ok)
	assert.NoError(t, pub.Publish(context.Background(), ports.Event{Type: ports.EventLotExpired, Key: "lot-1"}))
}
