package memstore

import (
	"context"
	"sync"
)

// Orders is an in-memory order book exposing the customer-notified flag.
type Orders struct {
	mu       sync.Mutex
	notified map[string]bool
	calls    map[string]int
}

// NewOrders returns an empty order book.
func NewOrders() *Orders {
	return &Orders{notified: make(map[string]bool), calls: make(map[string]int)}
}

// MarkOrderNotified implements notifybox.OrderHook.
func (o *Orders) MarkOrderNotified(_ context.Context, orderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls[orderID]++
	if !o.notified[orderID] {
		o.notified[orderID] = true
	}

	return nil
}

// Notified reports whether the order was flagged.
func (o *Orders) Notified(orderID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.notified[orderID]
}

// Calls returns how many times the hook ran for the order.
func (o *Orders) Calls(orderID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.calls[orderID]
}
