package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"inventory/internal/pkg/logger"
	"inventory/internal/pkg/mq"
	"inventory/internal/service/inventory/domain"
)

const (
	EventTypeHeader = "event-type"
	EventIDHeader   = "event-id"
)

// KafkaEventPublisher 把库存事件写入 kafka，按商品 ID 分区，保证同一商品的事件有序
type KafkaEventPublisher struct {
	writer mq.MessageWriter
}

func NewKafkaEventPublisher(writer mq.MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal inventory event")
	}
	key := []byte(strconv.FormatUint(event.ProductID, 10))

	err = mq.ProduceMessage(ctx, p.writer, key, payload,
		kafka.Header{Key: EventTypeHeader, Value: []byte(event.Type)},
		kafka.Header{Key: EventIDHeader, Value: []byte(event.ID)},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to produce %s event", event.Type)
	}
	return nil
}

// LogEventPublisher 把事件写成结构化日志，没有配置 kafka 时作为默认出口
type LogEventPublisher struct {
	level zerolog.Level
}

func NewLogEventPublisher(level zerolog.Level) *LogEventPublisher {
	return &LogEventPublisher{level: level}
}

func (p *LogEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	logger.Ctx(ctx).WithLevel(p.level).
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Uint64("product_id", event.ProductID).
		Uint64("cart_id", event.CartID).
		Int("quantity", event.Quantity).
		Int("remaining", event.Remaining).
		Str("amount", event.Amount.String()).
		Bool("created", event.Created).
		Str("reason", event.Reason).
		Msg("Inventory event")
	return nil
}

// MetricsEventPublisher 按事件类型和结算结果计数
type MetricsEventPublisher struct {
	events   *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

func NewMetricsEventPublisher(reg prometheus.Registerer) (*MetricsEventPublisher, error) {
	p := &MetricsEventPublisher{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_events_total",
			Help: "Total number of inventory events emitted, by type.",
		}, []string{"type"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_checkout_outcomes_total",
			Help: "Total number of per-cart checkout outcomes.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{p.events, p.outcomes} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register inventory metrics")
		}
	}
	return p, nil
}

func (p *MetricsEventPublisher) Publish(_ context.Context, event domain.Event) error {
	p.events.WithLabelValues(string(event.Type)).Inc()
	switch event.Type {
	case domain.EventCartCheckedOut:
		p.outcomes.WithLabelValues(string(domain.OutcomeDeducted)).Inc()
	case domain.EventCheckoutSkipped:
		p.outcomes.WithLabelValues(string(domain.OutcomeSkipped)).Inc()
	case domain.EventCheckoutFailed:
		p.outcomes.WithLabelValues(string(domain.OutcomeFailed)).Inc()
	}
	return nil
}

// Publisher 与 application.EventPublisher 结构一致，避免基础设施层反向依赖应用层
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// MultiEventPublisher 依次投递给所有出口，某个出口失败不影响其它出口
type MultiEventPublisher struct {
	publishers []Publisher
}

func NewMultiEventPublisher(publishers ...Publisher) *MultiEventPublisher {
	return &MultiEventPublisher{publishers: publishers}
}

func (m *MultiEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
