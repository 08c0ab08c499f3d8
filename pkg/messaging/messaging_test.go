package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/poubelles/poubelles-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsumer() *Consumer {
	return &Consumer{
		queueName: "bin-service.level-reports",
		handlers:  make(map[string]MessageHandler),
		logger:    logger.Nop(),
	}
}

func levelReportBody(t *testing.T, correlationID string, data LevelReportedData) []byte {
	t.Helper()
	event, err := NewEvent(EventLevelReported, "gateway-north", correlationID, data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestNewEvent_RoundTripsPayload(t *testing.T) {
	event, err := NewEvent(EventBinFull, "bin-service", "corr-1", BinFullData{BinID: 3, Niveau: 100})
	require.NoError(t, err)

	assert.Len(t, event.ID, 36)
	assert.Equal(t, EventBinFull, event.Type)
	assert.Equal(t, "corr-1", event.CorrelationID)

	var data BinFullData
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, int64(3), data.BinID)
	assert.Equal(t, 100, data.Niveau)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		handler MessageHandler
		body    func(t *testing.T) []byte
		retries int
		want    Disposition
	}{
		{
			name:    "handler success acks",
			handler: func(ctx context.Context, e *Event) error { return nil },
			want:    Ack,
		},
		{
			name:    "transient failure requeues",
			handler: func(ctx context.Context, e *Event) error { return fmt.Errorf("database is locked") },
			want:    Requeue,
		},
		{
			name:    "transient failure past retry budget rejects",
			handler: func(ctx context.Context, e *Event) error { return fmt.Errorf("database is locked") },
			retries: MaxRetries,
			want:    Reject,
		},
		{
			name:    "permanent failure rejects immediately",
			handler: func(ctx context.Context, e *Event) error { return Permanent(fmt.Errorf("bad payload")) },
			want:    Reject,
		},
		{
			name: "malformed body rejects",
			body: func(t *testing.T) []byte { return []byte("{not json") },
			want: Reject,
		},
		{
			name: "unhandled type acks",
			body: func(t *testing.T) []byte {
				e, err := NewEvent("bins.lid.opened", "gw", "", nil)
				require.NoError(t, err)
				b, _ := json.Marshal(e)
				return b
			},
			want: Ack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConsumer()
			if tt.handler != nil {
				c.RegisterHandler(EventLevelReported, tt.handler)
			}

			body := levelReportBody(t, "corr-9", LevelReportedData{BinID: 1, Niveau: 90})
			if tt.body != nil {
				body = tt.body(t)
			}

			assert.Equal(t, tt.want, c.dispatch(context.Background(), body, tt.retries))
		})
	}
}

func TestDispatch_PropagatesCorrelationID(t *testing.T) {
	c := testConsumer()

	var got string
	c.RegisterHandler(EventLevelReported, func(ctx context.Context, e *Event) error {
		got = CorrelationID(ctx)
		return nil
	})

	c.dispatch(context.Background(), levelReportBody(t, "corr-42", LevelReportedData{BinID: 2}), 0)
	assert.Equal(t, "corr-42", got)
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(amqp.Delivery{}))

	msg := amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{"count": int64(2), "queue": "bin-service.level-reports"}},
	}}
	assert.Equal(t, 2, retryCount(msg))
}
