package main

import (
	"context"

	"github.com/getsentry/sentry-go"

	"github.com/velmie/notifybox"
)

// reportDeadLetter sends every dead-lettered record to Sentry so operators can replay it.
func reportDeadLetter(hub *sentry.Hub) notifybox.FailureHandler {
	return func(_ context.Context, record notifybox.Record, err error) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetLevel(sentry.LevelWarning)
			scope.SetTag("channel", string(record.Channel))
			scope.SetTag("notification_type", string(record.Type))
			scope.SetTag("organization_id", record.OrganizationID)
			scope.SetContext("outbox_record", sentry.Context{
				"id":         record.ID.String(),
				"order_id":   record.OrderID,
				"trigger":    record.Trigger,
				"attempts":   record.Attempts,
				"last_error": record.LastError,
				"dedupe_key": record.DedupeKey,
			})
			scope.SetFingerprint([]string{"notifybox-dead-letter", string(record.Channel), string(record.Type)})
			hub.CaptureException(err)
		})
	}
}
