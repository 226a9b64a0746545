// Package kafka carries the event channel over Kafka. A topic is the fan-out point
// and each queue is a consumer group, so every queue sees every message once.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type Publisher struct {
	w   *kafka.Writer
	log observability.Logger
}

var _ event.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, tel observability.Observability) *Publisher {
	tel = observability.OrNop(tel)
	return &Publisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		log: tel.Logger().With(observability.F("component", "kafka_publisher")),
	}
}

// Publish writes payload to topic, carrying the caller's trace context in the headers.
// It returns once every in-sync replica has the message.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     payload,
		Value:   payload,
		Headers: injectHeaders(ctx, nil),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		logctx.FromOr(ctx, p.log).Warn("kafka_publish_failed",
			observability.F("topic", topic),
			observability.F("error", err),
		)
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

func injectHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

func headerMap(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
