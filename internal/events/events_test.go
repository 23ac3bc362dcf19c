package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNew(t *testing.T) {
	ev, err := New(TypeOrderCreated, 7, map[string]any{"id": 42})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, TypeOrderCreated, ev.EventType)
	assert.Equal(t, int64(7), ev.StoreID)
	assert.JSONEq(t, `{"id":42}`, string(ev.Payload))
	assert.False(t, ev.Timestamp.IsZero())

	other, err := New(TypeOrderCreated, 7, nil)
	require.NoError(t, err)
	assert.NotEqual(t, ev.EventID, other.EventID)
}

func TestNew_UnencodablePayload(t *testing.T) {
	_, err := New(TypeStockAllocated, 1, make(chan int))
	assert.Error(t, err)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	ev, err := New(TypeStoreReconciled, 3, map[string]int{"ordersReconciled": 2})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "store-3", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeStoreReconciled, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.EventID, decoded.EventID)
	assert.JSONEq(t, `{"ordersReconciled":2}`, string(decoded.Payload))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &recordingWriter{err: boom}, logger: zap.NewNop()}

	ev, err := New(TypeStockRestocked, 1, nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), ev)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), TypeStockRestocked)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}

func TestNewKafkaWriter_FlushesSingleMessages(t *testing.T) {
	w := newKafkaWriter([]string{"localhost:9092"}, "ledger.events")
	defer w.Close()

	assert.Equal(t, "ledger.events", w.Topic)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 50*time.Millisecond)
	assert.False(t, w.Async, "publish errors must reach the caller")
	assert.IsType(t, &kafka.Hash{}, w.Balancer)

	p := NewKafkaPublisher([]string{"localhost:9092"}, "ledger.events", zap.NewNop())
	assert.IsType(t, &kafka.Writer{}, p.writer)
	require.NoError(t, p.Close())
}
