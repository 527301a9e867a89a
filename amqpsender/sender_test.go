package amqpsender

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/velmie/notifybox"
)

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	calls    int
	err      error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.calls++
	p.exchange = exchange
	p.key = key
	p.msg = msg

	return p.err
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testDelivery() notifybox.Delivery {
	return notifybox.Delivery{
		Channel: notifybox.ChannelTelegram,
		Payload: &notifybox.OrderNotice{Recipient: notifybox.Recipient{ChatID: "42"}, Message: "Paid!"},
		Record: notifybox.Record{
			ID:             notifybox.ID{0x01},
			OrganizationID: "org1",
			OrderID:        "ord1",
			Type:           notifybox.TypeOrderPaid,
			Trigger:        "order_paid",
			Channel:        notifybox.ChannelTelegram,
			DedupeKey:      "abc123",
			Attempts:       2,
		},
	}
}

func TestSendPublishesMessage(t *testing.T) {
	pub := &fakePublisher{}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sender := New(pub, "notifications", WithClock(fixedClock{now: now}))

	require.NoError(t, sender.Send(context.Background(), testDelivery()))
	require.Equal(t, "notifications", pub.exchange)
	require.Equal(t, "notifybox.telegram", pub.key)
	require.Equal(t, "abc123", pub.msg.MessageId)
	require.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	require.Equal(t, "application/json", pub.msg.ContentType)
	require.Equal(t, now, pub.msg.Timestamp)
	require.Equal(t, int32(3), pub.msg.Headers["x-attempt"])

	var body struct {
		OrderID string `json:"order_id"`
		Attempt int    `json:"attempt"`
		Payload struct {
			Message   string `json:"message"`
			Recipient struct {
				ChatID string `json:"chat_id"`
			} `json:"recipient"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.msg.Body, &body))
	require.Equal(t, "ord1", body.OrderID)
	require.Equal(t, 3, body.Attempt)
	require.Equal(t, "Paid!", body.Payload.Message)
	require.Equal(t, "42", body.Payload.Recipient.ChatID)
}

func TestSendPublishErrorIsRetryable(t *testing.T) {
	pub := &fakePublisher{err: amqp.ErrClosed}
	sender := New(pub, "notifications")

	err := sender.Send(context.Background(), testDelivery())
	require.ErrorIs(t, err, amqp.ErrClosed)
	require.False(t, notifybox.IsPermanent(err))
}

type brokenPayload struct {
	C chan int `json:"c"`
}

func (brokenPayload) Accepts(notifybox.Type) bool { return true }
func (brokenPayload) Validate() error             { return nil }

func TestSendEncodeErrorIsPermanent(t *testing.T) {
	pub := &fakePublisher{}
	sender := New(pub, "notifications")
	delivery := testDelivery()
	delivery.Payload = brokenPayload{C: make(chan int)}

	err := sender.Send(context.Background(), delivery)
	require.Error(t, err)
	require.True(t, notifybox.IsPermanent(err))
	require.Zero(t, pub.calls)
}

func TestRoutingKey(t *testing.T) {
	pub := &fakePublisher{}
	require.Equal(t, "shop.email", New(pub, "x", WithRoutingPrefix("shop")).RoutingKey(notifybox.ChannelEmail))
	require.Equal(t, "email", New(pub, "x", WithRoutingPrefix("")).RoutingKey(notifybox.ChannelEmail))
}

func TestNewPanicsOnNilPublisher(t *testing.T) {
	require.Panics(t, func() { New(nil, "x") })
}
