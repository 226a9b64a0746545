package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/fulfillment"
)

type FulfillmentStore struct {
	mu      sync.Mutex
	records map[string]fulfillment.Record
}

func NewFulfillmentStore() *FulfillmentStore {
	return &FulfillmentStore{records: make(map[string]fulfillment.Record)}
}

func (s *FulfillmentStore) Create(ctx context.Context, r fulfillment.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.OrderID]; ok {
		return false, nil
	}
	s.records[r.OrderID] = r
	return true, nil
}

// Len returns the number of stored records.
func (s *FulfillmentStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
