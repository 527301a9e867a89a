package notifybox

import "context"

// OrderHook records that the customer of an order has been notified.
// Implementations must be idempotent: the flag is only ever set, never cleared.
type OrderHook interface {
	MarkOrderNotified(ctx context.Context, orderID string) error
}

// OrderHookFunc adapts a function to OrderHook.
type OrderHookFunc func(ctx context.Context, orderID string) error

// MarkOrderNotified implements OrderHook.
func (fn OrderHookFunc) MarkOrderNotified(ctx context.Context, orderID string) error {
	return fn(ctx, orderID)
}

// DefaultFulfillmentTypes lists the types whose successful delivery flags the order.
func DefaultFulfillmentTypes() []Type {
	return []Type{TypeOrderPaid, TypeOrderCompleted}
}
