package memory

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"
	"github.com/google/uuid"
)

var ErrBusClosed = errors.New("event bus: closed")

const (
	componentBus          = "event_bus"
	defaultQueueBuffer    = 1024
	defaultHandlerTimeout = 30 * time.Second
	defaultRetryDelay     = 100 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

// Bus is an in-process fan-out channel. Each queue bound to a topic receives its own
// copy of every message; a handler error puts the message back on its queue after
// a back-off, so delivery is at-least-once for as long as the bus runs.
// Messages are not durable across restarts.
type Bus struct {
	mu       sync.RWMutex
	bindings map[string][]*queue // topic -> queues
	queues   map[string]*queue

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopped   bool

	retryDelay     time.Duration
	handlerTimeout time.Duration
	log            observability.Logger
	redeliveries   observability.Counter
}

type queue struct {
	name     string
	topic    string
	ch       chan event.Message
	handlers []event.Handler
}

type BusOption func(*Bus)

// WithRetryDelay sets the base redelivery back-off.
func WithRetryDelay(d time.Duration) BusOption {
	return func(b *Bus) { b.retryDelay = d }
}

func WithHandlerTimeout(d time.Duration) BusOption {
	return func(b *Bus) { b.handlerTimeout = d }
}

func NewBus(tel observability.Observability, opts ...BusOption) *Bus {
	tel = observability.OrNop(tel)
	b := &Bus{
		bindings:       make(map[string][]*queue),
		queues:         make(map[string]*queue),
		retryDelay:     defaultRetryDelay,
		handlerTimeout: defaultHandlerTimeout,
		log:            tel.Logger().With(observability.F("component", componentBus)),
		redeliveries:   tel.Metrics().Counter(observability.MEventRedeliveries),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe declares queue, binds it to topic and attaches h as a consumer.
// Messages published before the first binding of a queue are not delivered to it.
func (b *Bus) Subscribe(topic, queueName string, h event.Handler) error {
	if h == nil {
		return errors.New("event bus: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrBusClosed
	}
	q, ok := b.queues[queueName]
	if !ok {
		q = &queue{name: queueName, topic: topic, ch: make(chan event.Message, defaultQueueBuffer)}
		b.queues[queueName] = q
		b.bindings[topic] = append(b.bindings[topic], q)
	} else if q.topic != topic {
		return fmt.Errorf("event bus: queue %q already bound to topic %q", queueName, q.topic)
	}
	q.handlers = append(q.handlers, h)

	if b.started {
		b.spawn(q, h)
	}
	return nil
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
		b.started = true
		for _, q := range b.queues {
			for _, h := range q.handlers {
				b.spawn(q, h)
			}
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_started", observability.F("queues", len(b.queues)))
	})
}

// Stop cancels consumers and pending redeliveries, then waits for them or ctx.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		cancel := b.cancel
		b.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	targets := append([]*queue(nil), b.bindings[topic]...)
	b.mu.RUnlock()

	logger := logctx.FromOr(ctx, b.log).With(observability.F("topic", topic))
	if len(targets) == 0 {
		logger.Debug("event_dropped_no_binding")
		return nil
	}

	headers := map[string]string{}
	oteltrace.Inject(ctx, headers)
	now := time.Now().UTC()

	for _, q := range targets {
		m := event.Message{
			ID:        uuid.NewString(),
			Topic:     topic,
			Queue:     q.name,
			Payload:   append([]byte(nil), payload...),
			Headers:   copyHeaders(headers),
			Attempt:   1,
			Published: now,
		}
		select {
		case q.ch <- m:
			logger.Debug("event_enqueued", observability.F("queue", q.name), observability.F("message_id", m.ID))
		case <-ctx.Done():
			logger.Warn("event_enqueue_aborted", observability.F("queue", q.name), observability.F("error", ctx.Err()))
			return ctx.Err()
		}
	}
	return nil
}

// spawn must be called with b.mu held.
func (b *Bus) spawn(q *queue, h event.Handler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(q, h)
	}()
}

func (b *Bus) consume(q *queue, h event.Handler) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case m := <-q.ch:
			if err := b.deliver(h, m); err != nil {
				b.requeue(q, m, err)
			}
		}
	}
}

func (b *Bus) deliver(h event.Handler, m event.Message) (err error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event_handler_panic",
				observability.F("queue", m.Queue),
				observability.F("message_id", m.ID),
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("event bus: handler panic: %v", r)
		}
	}()
	return h(ctx, m)
}

func (b *Bus) requeue(q *queue, m event.Message, cause error) {
	if b.ctx.Err() != nil {
		return
	}
	delay := backoff(b.retryDelay, m.Attempt)
	b.log.Warn("event_handler_error",
		observability.F("queue", q.name),
		observability.F("message_id", m.ID),
		observability.F("attempt", m.Attempt),
		observability.F("retry_in_ms", delay.Milliseconds()),
		observability.F("error", cause),
	)
	b.redeliveries.Add(1, observability.L("queue", q.name))

	m.Attempt++
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-b.ctx.Done():
			return
		case <-timer.C:
		}
		select {
		case q.ch <- m:
		case <-b.ctx.Done():
		}
	}()
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
