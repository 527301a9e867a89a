package amqpsender

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrNacked is returned when the broker refuses a published message.
	ErrNacked = errors.New("notifybox amqpsender: message nacked by broker")
	// ErrConfirmUnavailable is returned when the channel is not in confirm mode.
	ErrConfirmUnavailable = errors.New("notifybox amqpsender: publisher confirms unavailable")
)

// ConfirmChannel is the subset of *amqp.Channel used by ConfirmingPublisher.
type ConfirmChannel interface {
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) (*amqp.DeferredConfirmation, error)
}

// ConfirmingPublisher waits for the broker to confirm each message before
// reporting success, so a record is only marked sent once RabbitMQ owns it.
type ConfirmingPublisher struct {
	ch ConfirmChannel
}

var _ Publisher = (*ConfirmingPublisher)(nil)

// NewConfirmingPublisher puts the channel into confirm mode.
func NewConfirmingPublisher(ch ConfirmChannel) (*ConfirmingPublisher, error) {
	if ch == nil {
		return nil, ErrConfirmUnavailable
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfirmUnavailable, err)
	}

	return &ConfirmingPublisher{ch: ch}, nil
}

// PublishWithContext publishes msg and blocks until it is acked, nacked, or ctx ends.
func (p *ConfirmingPublisher) PublishWithContext(
	ctx context.Context,
	exchange, key string,
	mandatory, immediate bool,
	msg amqp.Publishing,
) error {
	confirmation, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, mandatory, immediate, msg)
	if err != nil {
		return err
	}
	if confirmation == nil {
		return ErrConfirmUnavailable
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return ErrNacked
	}

	return nil
}

// ExchangeDeclarer is the subset of *amqp.Channel used by DeclareExchange.
type ExchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

// DeclareExchange declares the durable topic exchange deliveries are published to.
func DeclareExchange(ch ExchangeDeclarer, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}

	return nil
}
