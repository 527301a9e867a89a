package notifybox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Channel names a single delivery channel.
type Channel string

const (
	// ChannelTelegram delivers through the chat bot.
	ChannelTelegram Channel = "telegram"
	// ChannelEmail delivers by email.
	ChannelEmail Channel = "email"
	// ChannelWebhook delivers to a tenant-configured HTTP endpoint.
	ChannelWebhook Channel = "webhook"
	// ChannelInApp writes to the in-app notification feed.
	ChannelInApp Channel = "in_app"
)

// Type is the notification category.
type Type string

const (
	TypeOrderPaid      Type = "order_paid"
	TypeOrderCompleted Type = "order_completed"
	TypeOrderCancelled Type = "order_cancelled"
	TypeOrderMessage   Type = "order_message"
	TypeTicketReply    Type = "ticket_reply"
)

// Payload is the typed content of a notification.
// Each concrete payload declares which notification types it can carry, so a
// producer cannot enqueue a shape the consumer would not understand.
type Payload interface {
	// Accepts reports whether the payload shape is valid for the notification type.
	Accepts(t Type) bool
	// Validate checks required fields.
	Validate() error
}

// Recipient carries the identifiers a channel needs to reach the audience.
// Empty fields mean the channel resolves the audience itself (for example, tenant admins).
type Recipient struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	ChatID string `json:"chat_id,omitempty"`
	URL    string `json:"url,omitempty"`
}

// OrderNotice announces a change of order state.
type OrderNotice struct {
	Recipient   Recipient         `json:"recipient"`
	OrderNumber string            `json:"order_number,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Message     string            `json:"message"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// Accepts implements Payload.
func (OrderNotice) Accepts(t Type) bool {
	switch t {
	case TypeOrderPaid, TypeOrderCompleted, TypeOrderCancelled:
		return true
	default:
		return false
	}
}

// Validate implements Payload.
func (p OrderNotice) Validate() error {
	if strings.TrimSpace(p.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidPayload)
	}

	return nil
}

// ThreadMessage relays a message posted to an order conversation or support ticket.
type ThreadMessage struct {
	Recipient Recipient         `json:"recipient"`
	ThreadID  string            `json:"thread_id"`
	Author    string            `json:"author,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Message   string            `json:"message"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Accepts implements Payload.
func (ThreadMessage) Accepts(t Type) bool {
	return t == TypeOrderMessage || t == TypeTicketReply
}

// Validate implements Payload.
func (p ThreadMessage) Validate() error {
	if strings.TrimSpace(p.ThreadID) == "" {
		return fmt.Errorf("%w: thread id is required", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidPayload)
	}

	return nil
}

// PayloadFactory returns a pointer to an empty payload for decoding.
type PayloadFactory func() Payload

// Registry maps notification types to payload shapes.
type Registry struct {
	factories map[Type]PayloadFactory
}

// NewRegistry returns a registry with the built-in notification types.
func NewRegistry() *Registry {
	notice := func() Payload { return &OrderNotice{} }
	thread := func() Payload { return &ThreadMessage{} }

	return &Registry{factories: map[Type]PayloadFactory{
		TypeOrderPaid:      notice,
		TypeOrderCompleted: notice,
		TypeOrderCancelled: notice,
		TypeOrderMessage:   thread,
		TypeTicketReply:    thread,
	}}
}

// Register adds or replaces the payload shape for a notification type.
func (r *Registry) Register(t Type, factory PayloadFactory) {
	r.factories[t] = factory
}

// Known reports whether the type is registered.
func (r *Registry) Known(t Type) bool {
	_, ok := r.factories[t]

	return ok
}

// Check validates a payload against the notification type before it is stored.
func (r *Registry) Check(t Type, payload Payload) error {
	if !r.Known(t) {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if payload == nil {
		return ErrPayloadRequired
	}
	if !payload.Accepts(t) {
		return fmt.Errorf("%w: %T cannot carry %q", ErrPayloadMismatch, payload, t)
	}

	return payload.Validate()
}

// Decode parses a stored payload into the shape registered for the type.
// Unknown fields are rejected so producer/consumer drift surfaces as an error.
func (r *Registry) Decode(t Type, raw json.RawMessage) (Payload, error) {
	factory, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	payload := factory()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return payload, nil
}
