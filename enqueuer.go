package notifybox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event is one logical notification fanned out to several channels.
type Event struct {
	OrganizationID string
	// OrderID is optional; set it for notifications about an order.
	OrderID    string
	Type       Type
	Trigger    string
	Channels   []Channel
	Payload    Payload
	DedupeSalt string
}

// EnqueueResult reports the outcome per channel.
type EnqueueResult struct {
	// Inserted holds the IDs of newly written records.
	Inserted []ID
	// Duplicates lists channels whose record already existed.
	Duplicates []Channel
	// Failed lists channels whose record could not be written.
	Failed []Channel
}

// Enqueuer writes one independent record per channel of an event.
type Enqueuer struct {
	inserter Inserter
	cfg      Config
}

// NewEnqueuer constructs an Enqueuer writing through the given inserter.
// Pass a transaction-bound inserter to commit records together with the business change.
func NewEnqueuer(inserter Inserter, opts ...Option) *Enqueuer {
	if inserter == nil {
		panic("notifybox: nil Inserter")
	}

	return &Enqueuer{inserter: inserter, cfg: buildConfig(opts)}
}

// Enqueue stores a pending record for every channel of the event.
//
// Calling it again for the same logical event is a no-op per channel. A failure on one
// channel does not prevent the others from being written; all channel errors are joined
// into the returned error.
func (e *Enqueuer) Enqueue(ctx context.Context, event Event) (EnqueueResult, error) {
	if err := e.validate(event); err != nil {
		return EnqueueResult{}, err
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var (
		result EnqueueResult
		errs   []error
		now    = e.cfg.Clock.Now()
	)
	for _, channel := range uniqueChannels(event.Channels) {
		id, inserted, err := e.enqueueChannel(ctx, event, channel, payload, now)
		switch {
		case err != nil:
			e.cfg.Logger.Warn("notifybox enqueue failed",
				"organization_id", event.OrganizationID,
				"type", event.Type,
				"channel", channel,
				"err", err,
			)
			result.Failed = append(result.Failed, channel)
			errs = append(errs, fmt.Errorf("notifybox: enqueue %s: %w", channel, err))
		case inserted:
			result.Inserted = append(result.Inserted, id)
		default:
			e.cfg.Logger.Debug("notifybox enqueue duplicate",
				"organization_id", event.OrganizationID,
				"type", event.Type,
				"channel", channel,
			)
			result.Duplicates = append(result.Duplicates, channel)
		}
	}

	return result, errors.Join(errs...)
}

func (e *Enqueuer) validate(event Event) error {
	if strings.TrimSpace(event.OrganizationID) == "" {
		return ErrOrganizationRequired
	}
	if event.Type == "" {
		return ErrTypeRequired
	}
	if len(event.Channels) == 0 {
		return ErrChannelsRequired
	}

	return e.cfg.Registry.Check(event.Type, event.Payload)
}

func (e *Enqueuer) enqueueChannel(
	ctx context.Context,
	event Event,
	channel Channel,
	payload json.RawMessage,
	now time.Time,
) (ID, bool, error) {
	if strings.TrimSpace(string(channel)) == "" {
		return ID{}, false, ErrChannelRequired
	}

	key, err := DedupeKey(Identity{
		OrganizationID: event.OrganizationID,
		OrderID:        event.OrderID,
		Type:           event.Type,
		Trigger:        event.Trigger,
		Channel:        channel,
		Salt:           event.DedupeSalt,
		Payload:        payload,
	})
	if err != nil {
		return ID{}, false, err
	}

	id, err := e.cfg.Generator.New()
	if err != nil {
		return ID{}, false, fmt.Errorf("generate id: %w", err)
	}

	record := Record{
		ID:             id,
		OrganizationID: event.OrganizationID,
		OrderID:        event.OrderID,
		Type:           event.Type,
		Trigger:        event.Trigger,
		Channel:        channel,
		Payload:        payload,
		DedupeKey:      key,
		MaxAttempts:    e.cfg.MaxAttempts,
		NextAttemptAt:  now,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	inserted, err := e.inserter.Insert(ctx, record)
	if err != nil {
		return ID{}, false, err
	}

	return id, inserted, nil
}

func uniqueChannels(channels []Channel) []Channel {
	seen := make(map[Channel]struct{}, len(channels))
	out := make([]Channel, 0, len(channels))
	for _, channel := range channels {
		if _, ok := seen[channel]; ok {
			continue
		}
		seen[channel] = struct{}{}
		out = append(out, channel)
	}

	return out
}
