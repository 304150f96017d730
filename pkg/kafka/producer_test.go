package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// --- Event ---

func TestNewEvent_Defaults(t *testing.T) {
	type payload struct {
		Items int `json:"items"`
	}

	event, err := NewEvent("checkout.abandoned", "sess-1", payload{Items: 2})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "checkout.abandoned", event.Type)
	assert.Equal(t, "sess-1", event.Key)
	assert.Equal(t, DefaultSource, event.Source)
	assert.Equal(t, 1, event.SchemaVersion)
	assert.Empty(t, event.Attributes)
	assert.WithinDuration(t, time.Now().UTC(), event.OccurredAt, 2*time.Second)

	var got payload
	require.NoError(t, event.Decode(&got))
	assert.Equal(t, 2, got.Items)
}

func TestNewEvent_Options(t *testing.T) {
	event, err := NewEvent("order.submitted", "sess-2", nil,
		WithCorrelationID("corr-2"),
		WithSource("storefront-worker"),
		WithSchemaVersion(3),
		WithAttribute("user_id", ""),
		WithAttribute("currency", "EUR"),
	)
	require.NoError(t, err)

	assert.Equal(t, "corr-2", event.CorrelationID)
	assert.Equal(t, "storefront-worker", event.Source)
	assert.Equal(t, 3, event.SchemaVersion)
	assert.Equal(t, map[string]string{"currency": "EUR"}, event.Attributes)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("order.submitted", "sess-1", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.submitted")
}

func TestDecodeEvent_Invalid(t *testing.T) {
	_, err := DecodeEvent([]byte("{"))
	require.Error(t, err)
}

// --- Producer ---

func TestProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, []string{"localhost:9092"}, testLogger())

	event, err := NewEvent("order.submitted", "sess-9", map[string]int{"n": 1},
		WithCorrelationID("corr-9"),
		WithAttribute("user_id", "u-1"),
	)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "storefront.order.submitted", event))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "storefront.order.submitted", msg.Topic)
	assert.Equal(t, "sess-9", string(msg.Key))
	assert.Equal(t, "order.submitted", header(msg, "event_type"))
	assert.Equal(t, "storefront", header(msg, "source"))
	assert.Equal(t, "1", header(msg, "schema_version"))
	assert.Equal(t, "corr-9", header(msg, "correlation_id"))
	assert.Equal(t, "u-1", header(msg, "attr.user_id"))

	decoded, err := DecodeEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "corr-9", decoded.CorrelationID)
}

func TestProducer_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, testLogger())

	event, err := NewEvent("order.submitted", "sess-9", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "storefront.order.submitted", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestProducer_Close(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, nil, testLogger())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers")
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"b1:9092"})
	assert.Equal(t, []string{"b1:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.False(t, cfg.Async)
}
