package kafka

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"github.com/segmentio/kafka-go"
)

const (
	defaultRetryDelay     = 200 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
	defaultHandlerTimeout = 30 * time.Second
)

// Subscriber runs one consumer-group reader per queue. A message is committed
// only after its handler returns nil; until then it is retried in place, so a
// queue never skips past an unacknowledged message.
type Subscriber struct {
	brokers        []string
	retryDelay     time.Duration
	handlerTimeout time.Duration
	log            observability.Logger
	redeliveries   observability.Counter

	mu       sync.Mutex
	bindings []binding
	readers  []*kafka.Reader
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type binding struct {
	topic, queue string
	h            event.Handler
}

type Option func(*Subscriber)

func WithRetryDelay(d time.Duration) Option {
	return func(s *Subscriber) { s.retryDelay = d }
}

func NewSubscriber(brokers []string, tel observability.Observability, opts ...Option) *Subscriber {
	tel = observability.OrNop(tel)
	s := &Subscriber{
		brokers:        brokers,
		retryDelay:     defaultRetryDelay,
		handlerTimeout: defaultHandlerTimeout,
		log:            tel.Logger().With(observability.F("component", "kafka_subscriber")),
		redeliveries:   tel.Metrics().Counter(observability.MEventRedeliveries),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ event.Subscriber = (*Subscriber)(nil)

// Subscribe registers h for queue. Readers are created by Start.
func (s *Subscriber) Subscribe(topic, queue string, h event.Handler) error {
	if h == nil {
		return errors.New("kafka: nil handler")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("kafka: subscribe after start")
	}
	s.bindings = append(s.bindings, binding{topic: topic, queue: queue, h: h})
	return nil
}

func (s *Subscriber) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for _, b := range s.bindings {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     s.brokers,
			Topic:       b.topic,
			GroupID:     b.queue,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.FirstOffset,
		})
		s.readers = append(s.readers, r)
		s.wg.Add(1)
		go func(b binding) {
			defer s.wg.Done()
			s.run(ctx, r, b)
		}(b)
	}
	s.log.Info("kafka_subscriber_started", observability.F("queues", len(s.bindings)))
}

// Stop cancels the consumers, waits for them or ctx, then closes the readers.
func (s *Subscriber) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel, readers := s.cancel, s.readers
	s.readers = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	for _, r := range readers {
		if err := r.Close(); err != nil {
			s.log.Warn("kafka_reader_close_failed", observability.F("error", err))
		}
	}
	s.log.Info("kafka_subscriber_stopped")
}

func (s *Subscriber) run(ctx context.Context, r *kafka.Reader, b binding) {
	log := s.log.With(observability.F("topic", b.topic), observability.F("queue", b.queue))
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("kafka_fetch_failed", observability.F("error", err))
			if !sleep(ctx, s.retryDelay) {
				return
			}
			continue
		}

		m := event.Message{
			ID:        msg.Topic + "/" + strconv.Itoa(msg.Partition) + "/" + strconv.FormatInt(msg.Offset, 10),
			Topic:     msg.Topic,
			Queue:     b.queue,
			Payload:   msg.Value,
			Headers:   headerMap(msg.Headers),
			Published: msg.Time,
		}
		if !s.handleUntilAcked(ctx, log, b, m) {
			return
		}
		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			// Uncommitted offsets are redelivered after a rebalance; handlers are idempotent.
			log.Warn("kafka_commit_failed", observability.F("message_id", m.ID), observability.F("error", err))
		}
	}
}

// handleUntilAcked returns false when ctx ends before the handler succeeds.
func (s *Subscriber) handleUntilAcked(ctx context.Context, log observability.Logger, b binding, m event.Message) bool {
	for attempt := 1; ; attempt++ {
		m.Attempt = attempt
		err := s.deliver(ctx, b.h, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		delay := retryDelay(s.retryDelay, attempt)
		log.Warn("event_handler_error",
			observability.F("message_id", m.ID),
			observability.F("attempt", attempt),
			observability.F("retry_in_ms", delay.Milliseconds()),
			observability.F("error", err),
		)
		s.redeliveries.Add(1, observability.L("queue", b.queue))
		if !sleep(ctx, delay) {
			return false
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, h event.Handler, m event.Message) (err error) {
	hctx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("event_handler_panic",
				observability.F("queue", m.Queue),
				observability.F("message_id", m.ID),
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("kafka: handler panic: %v", r)
		}
	}()
	return h(hctx, m)
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
