package notifybox

import (
	"context"
	"sync"
	"time"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type fakeStore struct {
	mu        sync.Mutex
	records   []Record
	claimErr  error
	claimOpts []ClaimOptions
	sent      []Lease
	failed    map[ID]FailureUpdate
	sentErr   error
	failErr   error
	counts    Counts
	countErr  error
	countCall int
	// rejectDone makes result writes fail on a canceled context, as database/sql does.
	rejectDone bool
	writeCtxs  []context.Context
}

func (s *fakeStore) checkWrite(ctx context.Context) error {
	s.writeCtxs = append(s.writeCtxs, ctx)
	if s.rejectDone {
		return ctx.Err()
	}

	return nil
}

func (s *fakeStore) Insert(context.Context, Record) (bool, error) {
	return true, nil
}

func (s *fakeStore) Claim(_ context.Context, opts ClaimOptions) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claimOpts = append(s.claimOpts, opts)
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	n := opts.Limit
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]Record, n)
	copy(out, s.records[:n])
	for i := range out {
		out[i].ClaimToken = opts.Token
		out[i].LeaseUntil = opts.LeaseUntil
	}
	s.records = s.records[n:]

	return out, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, lease Lease, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWrite(ctx); err != nil {
		return err
	}
	if s.sentErr != nil {
		return s.sentErr
	}
	s.sent = append(s.sent, lease)

	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, lease Lease, update FailureUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWrite(ctx); err != nil {
		return err
	}
	if s.failErr != nil {
		return s.failErr
	}
	if s.failed == nil {
		s.failed = make(map[ID]FailureUpdate)
	}
	s.failed[lease.ID] = update

	return nil
}

func (s *fakeStore) Counts(context.Context) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.countCall++

	return s.counts, s.countErr
}

type captureMetrics struct {
	sent       int
	errors     int
	retries    int
	dead       int
	hookErrors int
	pending    int
	deadGauge  int
	countCalls int
}

func (*captureMetrics) ObserveBatchDuration(time.Duration) {}
func (m *captureMetrics) AddSent(count int)                { m.sent += count }
func (m *captureMetrics) AddErrors(count int)              { m.errors += count }
func (m *captureMetrics) AddRetries(count int)             { m.retries += count }
func (m *captureMetrics) AddDead(count int)                { m.dead += count }
func (m *captureMetrics) AddHookErrors(count int)          { m.hookErrors += count }
func (m *captureMetrics) SetPending(count int) {
	m.pending = count
	m.countCalls++
}
func (m *captureMetrics) SetDead(count int) { m.deadGauge = count }

func noticeRecord(id byte, typ Type) Record {
	return Record{
		ID:          ID{id},
		Type:        typ,
		Channel:     ChannelEmail,
		OrderID:     "ord1",
		Payload:     []byte(`{"recipient":{},"message":"Paid!"}`),
		MaxAttempts: DefaultMaxAttempts,
		Status:      StatusPending,
	}
}

// jumpClock returns start until Advance moves it forward.
type jumpClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *jumpClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *jumpClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
