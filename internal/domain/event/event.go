package event

import (
	"context"
	"time"
)

// Message is one delivery from the event channel.
type Message struct {
	ID        string
	Topic     string
	Queue     string
	Payload   []byte
	Headers   map[string]string
	Attempt   int // 1 on first delivery
	Published time.Time
}

// Redelivered reports whether the message was handed out before.
func (m Message) Redelivered() bool { return m.Attempt > 1 }

// Handler processes a message. Returning nil acknowledges it; an error leaves it
// unacknowledged and the channel delivers it again.
type Handler func(ctx context.Context, m Message) error

// Middleware decorates a Handler.
type Middleware func(Handler) Handler

// Publisher writes a payload to a fan-out topic. Every queue bound to the topic gets a copy.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber binds a named queue to a topic and attaches a consumer.
// Consumers sharing a queue compete for its messages.
type Subscriber interface {
	Subscribe(topic, queue string, h Handler) error
}
