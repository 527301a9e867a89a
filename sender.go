package notifybox

import (
	"context"
	"fmt"
)

// Delivery is a single attempt to deliver one record over its channel.
type Delivery struct {
	Channel Channel
	Payload Payload
	Record  Record
}

// Sender transmits a delivery over one channel. A returned error is a failed attempt;
// wrap it with Permanent to skip the remaining retries.
type Sender interface {
	Send(ctx context.Context, delivery Delivery) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, delivery Delivery) error

// Send implements Sender.
func (fn SenderFunc) Send(ctx context.Context, delivery Delivery) error {
	return fn(ctx, delivery)
}

// Router dispatches deliveries to per-channel senders.
type Router struct {
	senders map[Channel]Sender
}

// NewRouter builds a router from a channel to sender mapping.
func NewRouter(senders map[Channel]Sender) *Router {
	copied := make(map[Channel]Sender, len(senders))
	for channel, sender := range senders {
		copied[channel] = sender
	}

	return &Router{senders: copied}
}

// Send implements Sender. Channels without a sender fail permanently.
func (r *Router) Send(ctx context.Context, delivery Delivery) error {
	sender, ok := r.senders[delivery.Channel]
	if !ok {
		return Permanent(fmt.Errorf("%w: %s", ErrUnknownChannel, delivery.Channel))
	}

	return sender.Send(ctx, delivery)
}
