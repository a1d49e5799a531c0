package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory/internal/service/inventory/domain"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaEventPublisher_Publish(t *testing.T) {
	writer := &captureWriter{}
	pub := NewKafkaEventPublisher(writer)

	evt := domain.NewEvent(domain.EventCartCheckedOut)
	evt.ProductID = 42
	evt.CartID = 7
	evt.Amount = decimal.RequireFromString("15.00")
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, string(domain.EventCartCheckedOut), headerValue(msg, EventTypeHeader))
	assert.Equal(t, evt.ID, headerValue(msg, EventIDHeader))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, uint64(7), decoded.CartID)
	assert.True(t, decoded.Amount.Equal(evt.Amount))
}

func TestKafkaEventPublisher_WriteError(t *testing.T) {
	pub := NewKafkaEventPublisher(&captureWriter{err: errors.New("broker down")})
	err := pub.Publish(context.Background(), domain.NewEvent(domain.EventProductUpserted))
	assert.ErrorContains(t, err, "broker down")
}

func TestMetricsEventPublisher_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	pub, err := NewMetricsEventPublisher(reg)
	require.NoError(t, err)

	ctx := context.Background()
	for _, typ := range []domain.EventType{
		domain.EventCartCheckedOut,
		domain.EventCartCheckedOut,
		domain.EventCheckoutSkipped,
		domain.EventCheckoutFailed,
		domain.EventProductUpserted,
	} {
		require.NoError(t, pub.Publish(ctx, domain.NewEvent(typ)))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(pub.events.WithLabelValues(string(domain.EventCartCheckedOut))))
	assert.Equal(t, 1.0, testutil.ToFloat64(pub.events.WithLabelValues(string(domain.EventProductUpserted))))
	assert.Equal(t, 2.0, testutil.ToFloat64(pub.outcomes.WithLabelValues(string(domain.OutcomeDeducted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(pub.outcomes.WithLabelValues(string(domain.OutcomeSkipped))))
	assert.Equal(t, 1.0, testutil.ToFloat64(pub.outcomes.WithLabelValues(string(domain.OutcomeFailed))))

	_, err = NewMetricsEventPublisher(reg)
	assert.Error(t, err, "registering twice on the same registry fails")
}

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) Publish(context.Context, domain.Event) error {
	s.calls++
	return s.err
}

func TestMultiEventPublisher_DeliversToAll(t *testing.T) {
	failing := &stubPublisher{err: errors.New("boom")}
	ok := &stubPublisher{}
	multi := NewMultiEventPublisher(failing, ok, NewLogEventPublisher(0))

	err := multi.Publish(context.Background(), domain.NewEvent(domain.EventCartClaimed))
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
