package notifybox

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxErrorLen = 1024
	// storeWriteTimeout bounds result writes; they outlive the caller's cancellation.
	storeWriteTimeout = 10 * time.Second
)

// DrainResult summarizes one Drain call.
type DrainResult struct {
	// Done is the number of claimed records handled, including those skipped as Lost.
	Done int
	// Sent is the number of records delivered.
	Sent int
	// Retried is the number of records re-armed for a later attempt.
	Retried int
	// Dead is the number of records dead-lettered.
	Dead int
	// Lost is the number of records whose claim expired before they were sent or
	// before the result was written.
	Lost int
	// StoreErrors is the number of records whose result could not be written.
	// Such records stay pending and become eligible again when their lease expires.
	StoreErrors int
}

// Dispatcher delivers due records through a Sender.
// It keeps no state between Drain calls and is safe for concurrent use.
type Dispatcher struct {
	store  Store
	sender Sender
	cfg    Config
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeRetried
	outcomeDead
	outcomeLost
	outcomeStoreError
)

// NewDispatcher constructs a Dispatcher with defaults and optional settings.
func NewDispatcher(store Store, sender Sender, opts ...Option) *Dispatcher {
	if store == nil {
		panic("notifybox: nil Store")
	}
	if sender == nil {
		panic("notifybox: nil Sender")
	}

	return &Dispatcher{store: store, sender: sender, cfg: buildConfig(opts)}
}

// Drain claims up to limit due records and attempts each once, sequentially.
// A zero limit uses the configured maximum; larger limits are capped to it.
//
// Only claim failures and context cancellation are returned as errors. Records
// left unprocessed by a cancellation keep their lease and become eligible again
// once it expires.
func (d *Dispatcher) Drain(ctx context.Context, limit int) (DrainResult, error) {
	if limit < 0 {
		return DrainResult{}, ErrInvalidLimit
	}
	if limit == 0 || limit > d.cfg.MaxDrainLimit {
		limit = d.cfg.MaxDrainLimit
	}

	start := time.Now()
	defer func() {
		d.cfg.Metrics.ObserveBatchDuration(time.Since(start))
	}()

	now := d.cfg.Clock.Now()
	records, err := d.store.Claim(ctx, ClaimOptions{
		Limit:      limit,
		Now:        now,
		LeaseUntil: now.Add(d.cfg.Lease),
		Token:      uuid.NewString(),
	})
	if err != nil {
		return DrainResult{}, fmt.Errorf("notifybox: claim failed: %w", err)
	}

	var result DrainResult
	defer func() {
		d.cfg.Metrics.AddSent(result.Sent)
		d.cfg.Metrics.AddErrors(result.Retried + result.Dead)
		d.cfg.Metrics.AddRetries(result.Retried)
		d.cfg.Metrics.AddDead(result.Dead)
	}()

	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		out, err := d.process(ctx, records[i])
		if err != nil {
			return result, err
		}
		result.Done++
		switch out {
		case outcomeSent:
			result.Sent++
		case outcomeRetried:
			result.Retried++
		case outcomeDead:
			result.Dead++
		case outcomeLost:
			result.Lost++
		case outcomeStoreError:
			result.StoreErrors++
		}
	}

	return result, nil
}

func (d *Dispatcher) process(ctx context.Context, record Record) (outcome, error) {
	if d.leaseExpired(record) {
		d.cfg.Logger.Warn("notifybox lease expired before send, skipping",
			"id", record.ID,
			"channel", record.Channel,
			"lease_until", record.LeaseUntil,
		)

		return outcomeLost, nil
	}

	var sendErr error
	payload, err := d.cfg.Registry.Decode(record.Type, record.Payload)
	if err != nil {
		sendErr = Permanent(err)
	} else {
		sendErr = d.send(ctx, Delivery{Channel: record.Channel, Payload: payload, Record: record})
	}

	if sendErr != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		return d.recordFailure(ctx, record, sendErr), nil
	}

	return d.recordSuccess(ctx, record), nil
}

// leaseExpired reports whether another drain may already have reclaimed the record.
func (d *Dispatcher) leaseExpired(record Record) bool {
	if record.LeaseUntil.IsZero() {
		return false
	}

	return !d.cfg.Clock.Now().Before(record.LeaseUntil)
}

func storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
}

func (d *Dispatcher) send(ctx context.Context, delivery Delivery) error {
	sendCtx := ctx
	cancel := func() {}
	if d.cfg.SendTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
	}
	defer cancel()

	return d.sender.Send(sendCtx, delivery)
}

func (d *Dispatcher) recordSuccess(ctx context.Context, record Record) outcome {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	if err := d.store.MarkSent(ctx, record.Lease(), d.cfg.Clock.Now()); err != nil {
		return d.storeFailure(record, "mark sent", err)
	}

	if d.triggersOrderHook(record) {
		if err := d.cfg.OrderHook.MarkOrderNotified(ctx, record.OrderID); err != nil {
			d.cfg.Metrics.AddHookErrors(1)
			d.cfg.Logger.Error("notifybox order hook failed",
				"id", record.ID,
				"order_id", record.OrderID,
				"type", record.Type,
				"err", err,
			)
		}
	}

	return outcomeSent
}

func (d *Dispatcher) recordFailure(ctx context.Context, record Record, sendErr error) outcome {
	if d.cfg.ErrorHandler != nil {
		d.cfg.ErrorHandler(ctx, record, sendErr)
	}

	ctx, cancel := storeContext(ctx)
	defer cancel()

	now := d.cfg.Clock.Now()
	maxAttempts := record.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.cfg.MaxAttempts
	}

	update := FailureUpdate{
		Attempts:  record.Attempts + 1,
		LastError: truncateError(sendErr),
		Status:    StatusPending,
		At:        now,
	}
	update.NextAttemptAt = now.Add(d.cfg.Backoff.Delay(update.Attempts))
	if update.Attempts >= maxAttempts || d.cfg.FailureClassifier(ctx, record, sendErr) == FailureDead {
		update.Status = StatusDead
	}

	if err := d.store.MarkFailed(ctx, record.Lease(), update); err != nil {
		return d.storeFailure(record, "mark failed", err)
	}

	if update.Status == StatusDead {
		d.cfg.Logger.Warn("notifybox record dead-lettered",
			"id", record.ID,
			"channel", record.Channel,
			"type", record.Type,
			"attempts", update.Attempts,
			"err", sendErr,
		)
		if d.cfg.DeadLetterHandler != nil {
			record.Attempts = update.Attempts
			record.LastError = update.LastError
			record.Status = StatusDead
			d.cfg.DeadLetterHandler(ctx, record, sendErr)
		}

		return outcomeDead
	}

	d.cfg.Logger.Debug("notifybox delivery failed, retry scheduled",
		"id", record.ID,
		"channel", record.Channel,
		"attempts", update.Attempts,
		"next_attempt_at", update.NextAttemptAt,
		"err", sendErr,
	)

	return outcomeRetried
}

func (d *Dispatcher) storeFailure(record Record, op string, err error) outcome {
	if errors.Is(err, ErrClaimLost) {
		d.cfg.Logger.Warn("notifybox claim lost before "+op, "id", record.ID, "channel", record.Channel)

		return outcomeLost
	}

	d.cfg.Logger.Error("notifybox "+op+" failed", "id", record.ID, "channel", record.Channel, "err", err)

	return outcomeStoreError
}

func (d *Dispatcher) triggersOrderHook(record Record) bool {
	if d.cfg.OrderHook == nil || record.OrderID == "" {
		return false
	}
	for _, t := range d.cfg.FulfillmentTypes {
		if t == record.Type {
			return true
		}
	}

	return false
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	if utf8.RuneCountInString(msg) <= maxErrorLen {
		return msg
	}

	return string([]rune(msg)[:maxErrorLen])
}
