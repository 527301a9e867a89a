package main

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"

	"github.com/velmie/notifybox"
)

func TestReportDeadLetter(t *testing.T) {
	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		SampleRate: 1,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			events = append(events, event)

			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())

	record := notifybox.Record{
		ID:             notifybox.ID{0x02},
		OrganizationID: "org1",
		OrderID:        "ord1",
		Type:           notifybox.TypeOrderPaid,
		Channel:        notifybox.ChannelWebhook,
		Attempts:       8,
		LastError:      "502 bad gateway",
	}
	reportDeadLetter(hub)(context.Background(), record, errors.New("502 bad gateway"))

	require.Len(t, events, 1)
	event := events[0]
	require.Equal(t, sentry.LevelWarning, event.Level)
	require.Equal(t, "webhook", event.Tags["channel"])
	require.Equal(t, "order_paid", event.Tags["notification_type"])
	require.Equal(t, "org1", event.Tags["organization_id"])
	require.Equal(t, "ord1", event.Contexts["outbox_record"]["order_id"])
	require.Equal(t, 8, event.Contexts["outbox_record"]["attempts"])
}
