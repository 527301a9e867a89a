// Package amqpsender hands notifybox deliveries to channel workers over RabbitMQ.
//
// Each delivery is published as a persistent JSON message to a topic exchange with
// routing key "<prefix>.<channel>". The dedupe key is used as the message ID so
// consumers can drop redeliveries caused by a retry after an unconfirmed publish.
package amqpsender

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/velmie/notifybox"
)

const (
	defaultPrefix = "notifybox"
	contentType   = "application/json"
)

// Publisher is the subset of *amqp.Channel used by Sender.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the body published for a delivery.
type Message struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	OrderID        string            `json:"order_id,omitempty"`
	Type           notifybox.Type    `json:"type"`
	Trigger        string            `json:"trigger,omitempty"`
	Channel        notifybox.Channel `json:"channel"`
	Attempt        int               `json:"attempt"`
	Payload        notifybox.Payload `json:"payload"`
}

// Option configures a Sender.
type Option func(*Sender)

// WithRoutingPrefix sets the routing key prefix. The default is "notifybox".
func WithRoutingPrefix(prefix string) Option {
	return func(s *Sender) {
		s.prefix = prefix
	}
}

// WithMandatory makes unroutable messages return to the publisher instead of being dropped.
func WithMandatory(mandatory bool) Option {
	return func(s *Sender) {
		s.mandatory = mandatory
	}
}

// WithClock sets the time source for message timestamps.
func WithClock(clock notifybox.Clock) Option {
	return func(s *Sender) {
		s.clock = clock
	}
}

// Sender implements notifybox.Sender by publishing to an exchange.
type Sender struct {
	pub       Publisher
	exchange  string
	prefix    string
	mandatory bool
	clock     notifybox.Clock
}

var _ notifybox.Sender = (*Sender)(nil)

// New constructs a Sender publishing to exchange.
func New(pub Publisher, exchange string, opts ...Option) *Sender {
	if pub == nil {
		panic("notifybox amqpsender: nil Publisher")
	}

	s := &Sender{pub: pub, exchange: exchange, prefix: defaultPrefix, clock: notifybox.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RoutingKey returns the routing key used for a channel.
func (s *Sender) RoutingKey(channel notifybox.Channel) string {
	if s.prefix == "" {
		return string(channel)
	}

	return s.prefix + "." + string(channel)
}

// Send implements notifybox.Sender. Encoding failures are permanent; publish failures are retried.
func (s *Sender) Send(ctx context.Context, delivery notifybox.Delivery) error {
	record := delivery.Record
	body, err := json.Marshal(Message{
		ID:             record.ID.String(),
		OrganizationID: record.OrganizationID,
		OrderID:        record.OrderID,
		Type:           record.Type,
		Trigger:        record.Trigger,
		Channel:        delivery.Channel,
		Attempt:        record.Attempts + 1,
		Payload:        delivery.Payload,
	})
	if err != nil {
		return notifybox.Permanent(fmt.Errorf("notifybox amqpsender: encode message: %w", err))
	}

	msg := amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    record.DedupeKey,
		Timestamp:    s.clock.Now().Truncate(time.Second),
		Type:         string(record.Type),
		Headers: amqp.Table{
			"x-organization-id": record.OrganizationID,
			"x-attempt":          int32(record.Attempts + 1),
		},
		Body: body,
	}
	if err := s.pub.PublishWithContext(ctx, s.exchange, s.RoutingKey(delivery.Channel), s.mandatory, false, msg); err != nil {
		return fmt.Errorf("notifybox amqpsender: publish %s: %w", delivery.Channel, err)
	}

	return nil
}
