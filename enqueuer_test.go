package notifybox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeInserter struct {
	mu      sync.Mutex
	records []Record
	keys    map[string]struct{}
	failOn  map[Channel]error
}

func (f *fakeInserter) Insert(_ context.Context, record Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failOn[record.Channel]; err != nil {
		return false, err
	}
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	if _, ok := f.keys[record.DedupeKey]; ok {
		return false, nil
	}
	f.keys[record.DedupeKey] = struct{}{}
	f.records = append(f.records, record)

	return true, nil
}

func paidEvent(channels ...Channel) Event {
	return Event{
		OrganizationID: "org1",
		OrderID:        "ord1",
		Type:           TypeOrderPaid,
		Trigger:        "order_paid",
		Channels:       channels,
		Payload:        OrderNotice{OrderNumber: "A-100", Message: "Paid!"},
	}
}

func TestEnqueueWritesOneRecordPerChannel(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	inserter := &fakeInserter{}
	e := NewEnqueuer(inserter, WithClock(fixedClock{now: now}), WithMaxAttempts(5))

	result, err := e.Enqueue(context.Background(), paidEvent(ChannelTelegram, ChannelEmail, ChannelTelegram))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(result.Inserted) != 2 || len(inserter.records) != 2 {
		t.Fatalf("expected 2 records, got %+v", result)
	}
	for _, record := range inserter.records {
		if record.Status != StatusPending || record.Attempts != 0 || record.MaxAttempts != 5 {
			t.Fatalf("unexpected record state %+v", record)
		}
		if !record.NextAttemptAt.Equal(now) || !record.CreatedAt.Equal(now) {
			t.Fatalf("expected record due immediately, got %v", record.NextAttemptAt)
		}
		if record.OrderID != "ord1" || record.OrganizationID != "org1" || record.DedupeKey == "" {
			t.Fatalf("unexpected record identity %+v", record)
		}
	}
	if inserter.records[0].DedupeKey == inserter.records[1].DedupeKey {
		t.Fatalf("expected distinct dedupe keys per channel")
	}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	inserter := &fakeInserter{}
	e := NewEnqueuer(inserter)
	event := paidEvent(ChannelTelegram, ChannelEmail)

	if _, err := e.Enqueue(context.Background(), event); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	result, err := e.Enqueue(context.Background(), event)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if len(result.Inserted) != 0 || len(result.Duplicates) != 2 {
		t.Fatalf("expected duplicates only, got %+v", result)
	}
	if len(inserter.records) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(inserter.records))
	}
}

func TestEnqueueSaltSeparatesAudiences(t *testing.T) {
	inserter := &fakeInserter{}
	e := NewEnqueuer(inserter)
	buyer := paidEvent(ChannelEmail)
	buyer.DedupeSalt = "buyer"
	admin := paidEvent(ChannelEmail)
	admin.DedupeSalt = "admin"

	for _, event := range []Event{buyer, admin} {
		if _, err := e.Enqueue(context.Background(), event); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if len(inserter.records) != 2 {
		t.Fatalf("expected separate records per salt, got %d", len(inserter.records))
	}
}

func TestEnqueueChannelFailuresAreIndependent(t *testing.T) {
	insertErr := errors.New("connection reset")
	inserter := &fakeInserter{failOn: map[Channel]error{ChannelEmail: insertErr}}
	e := NewEnqueuer(inserter)

	result, err := e.Enqueue(context.Background(), paidEvent(ChannelTelegram, ChannelEmail, ChannelInApp))
	if !errors.Is(err, insertErr) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if len(result.Inserted) != 2 {
		t.Fatalf("expected other channels inserted, got %+v", result)
	}
	if len(result.Failed) != 1 || result.Failed[0] != ChannelEmail {
		t.Fatalf("expected email failure, got %+v", result.Failed)
	}
}

func TestEnqueueEmptyChannelName(t *testing.T) {
	inserter := &fakeInserter{}
	e := NewEnqueuer(inserter)

	result, err := e.Enqueue(context.Background(), paidEvent(ChannelEmail, ""))
	if !errors.Is(err, ErrChannelRequired) {
		t.Fatalf("expected ErrChannelRequired, got %v", err)
	}
	if len(result.Inserted) != 1 {
		t.Fatalf("expected valid channel inserted, got %+v", result)
	}
}

func TestEnqueueValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Event)
		want   error
	}{
		{"organization", func(e *Event) { e.OrganizationID = " " }, ErrOrganizationRequired},
		{"type", func(e *Event) { e.Type = "" }, ErrTypeRequired},
		{"channels", func(e *Event) { e.Channels = nil }, ErrChannelsRequired},
		{"unknown type", func(e *Event) { e.Type = "order_refunded" }, ErrUnknownType},
		{"payload", func(e *Event) { e.Payload = nil }, ErrPayloadRequired},
		{"mismatch", func(e *Event) { e.Payload = ThreadMessage{ThreadID: "t1", Message: "hi"} }, ErrPayloadMismatch},
		{"invalid", func(e *Event) { e.Payload = OrderNotice{} }, ErrInvalidPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inserter := &fakeInserter{}
			e := NewEnqueuer(inserter)
			event := paidEvent(ChannelEmail)
			tc.mutate(&event)

			if _, err := e.Enqueue(context.Background(), event); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(inserter.records) != 0 {
				t.Fatalf("expected nothing stored")
			}
		})
	}
}

type failingGenerator struct{}

func (failingGenerator) New() (ID, error) {
	return ID{}, errors.New("entropy exhausted")
}

func TestEnqueueGeneratorError(t *testing.T) {
	e := NewEnqueuer(&fakeInserter{}, WithGenerator(failingGenerator{}))

	result, err := e.Enqueue(context.Background(), paidEvent(ChannelEmail))
	if err == nil || len(result.Failed) != 1 {
		t.Fatalf("expected generator failure, got %v %+v", err, result)
	}
}

func TestNewEnqueuerPanicsOnNilInserter(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewEnqueuer(nil)
}
