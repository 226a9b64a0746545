package order

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreatedEvent announces a persisted order. Its wire form is the bare order id.
type CreatedEvent struct {
	OrderID string
}

func (CreatedEvent) EventName() string { return "order.created" }

func NewCreatedEvent(o *Order) CreatedEvent {
	return CreatedEvent{OrderID: o.ID}
}

func (e CreatedEvent) Payload() []byte { return []byte(e.OrderID) }

// ParseCreatedEvent validates a payload and returns the event it carries.
func ParseCreatedEvent(payload []byte) (CreatedEvent, error) {
	raw := strings.Trim(strings.TrimSpace(string(payload)), `"`)
	id, err := uuid.Parse(raw)
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("order: malformed created event %q: %w", raw, err)
	}
	return CreatedEvent{OrderID: id.String()}, nil
}
