//go:build integration

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/velmie/notifybox"
	"github.com/velmie/notifybox/mysql"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Now().UTC().Truncate(time.Second)}
}

func paidEvent(orderID string, channels ...notifybox.Channel) notifybox.Event {
	return notifybox.Event{
		OrganizationID: "org1",
		OrderID:        orderID,
		Type:           notifybox.TypeOrderPaid,
		Trigger:        "order_paid",
		Channels:       channels,
		Payload:        notifybox.OrderNotice{OrderNumber: orderID, Message: "Paid!"},
	}
}

func TestStoreEnqueueDrainIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)
	store, err := mysql.NewStore(db)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	enqueuer := notifybox.NewEnqueuer(store.Tx(tx))
	result, err := enqueuer.Enqueue(ctx, paidEvent("ord1", notifybox.ChannelTelegram, notifybox.ChannelEmail))
	require.NoError(t, err)
	require.Len(t, result.Inserted, 2)
	require.NoError(t, tx.Commit())

	again, err := notifybox.NewEnqueuer(store).Enqueue(ctx, paidEvent("ord1", notifybox.ChannelTelegram, notifybox.ChannelEmail))
	require.NoError(t, err)
	require.Len(t, again.Duplicates, 2)

	orders := setupOrders(t, ctx, db, "ord1")
	dispatcher := notifybox.NewDispatcher(store, notifybox.SenderFunc(func(context.Context, notifybox.Delivery) error {
		return nil
	}), notifybox.WithOrderHook(orders))

	drained, err := dispatcher.Drain(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, drained.Sent)
	require.Equal(t, 2, countByStatus(t, ctx, db, notifybox.StatusSent))
	require.True(t, orderNotified(t, ctx, db, "ord1"))

	drained, err = dispatcher.Drain(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, drained.Done)
}

func TestStoreRolledBackEnqueueIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)
	store, err := mysql.NewStore(db)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = notifybox.NewEnqueuer(store.Tx(tx)).Enqueue(ctx, paidEvent("ord1", notifybox.ChannelEmail))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	require.Zero(t, countByStatus(t, ctx, db, notifybox.StatusPending))
}

func TestStoreSkipLockedIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)
	store, err := mysql.NewStore(db)
	require.NoError(t, err)

	enqueuer := notifybox.NewEnqueuer(store)
	for i := 0; i < 2; i++ {
		_, err := enqueuer.Enqueue(ctx, paidEvent(fmt.Sprintf("ord%d", i), notifybox.ChannelEmail))
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	claim := func(token string) []notifybox.Record {
		records, err := store.Claim(ctx, notifybox.ClaimOptions{
			Limit:      1,
			Now:        now,
			LeaseUntil: now.Add(time.Minute),
			Token:      token,
		})
		require.NoError(t, err)

		return records
	}

	first := claim("a")
	second := claim("b")
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.NotEqual(t, first[0].ID, second[0].ID)
	require.Empty(t, claim("c"))

	require.ErrorIs(t, store.MarkSent(ctx, notifybox.Lease{ID: first[0].ID, Token: "b"}, now), notifybox.ErrClaimLost)
	require.NoError(t, store.MarkSent(ctx, first[0].Lease(), now))
	require.ErrorIs(t, store.MarkSent(ctx, first[0].Lease(), now), notifybox.ErrClaimLost)
}

func TestStoreRetryUntilDeadIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)
	store, err := mysql.NewStore(db)
	require.NoError(t, err)

	clock := newStepClock()
	_, err = notifybox.NewEnqueuer(store, notifybox.WithClock(clock), notifybox.WithMaxAttempts(3)).
		Enqueue(ctx, paidEvent("ord1", notifybox.ChannelTelegram))
	require.NoError(t, err)

	dispatcher := notifybox.NewDispatcher(store, notifybox.SenderFunc(func(context.Context, notifybox.Delivery) error {
		return errors.New("network down")
	}), notifybox.WithClock(clock))

	for i := 0; i < 3; i++ {
		drained, err := dispatcher.Drain(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, drained.Done)
		clock.Advance(time.Hour)
	}

	status, attempts, lastErr := fetchState(t, ctx, db)
	require.Equal(t, notifybox.StatusDead, status)
	require.Equal(t, 3, attempts)
	require.Equal(t, "network down", lastErr.String)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, notifybox.Counts{Dead: 1}, counts)

	drained, err := dispatcher.Drain(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, drained.Done)
}

func TestStoreExpiredLeaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)
	store, err := mysql.NewStore(db)
	require.NoError(t, err)

	_, err = notifybox.NewEnqueuer(store).Enqueue(ctx, paidEvent("ord1", notifybox.ChannelEmail))
	require.NoError(t, err)

	now := time.Now().UTC()
	stale, err := store.Claim(ctx, notifybox.ClaimOptions{Limit: 1, Now: now, LeaseUntil: now.Add(time.Second), Token: "stale"})
	require.NoError(t, err)
	require.Len(t, stale, 1)

	later := now.Add(time.Minute)
	fresh, err := store.Claim(ctx, notifybox.ClaimOptions{Limit: 1, Now: later, LeaseUntil: later.Add(time.Minute), Token: "fresh"})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, stale[0].ID, fresh[0].ID)

	err = store.MarkFailed(ctx, stale[0].Lease(), notifybox.FailureUpdate{Attempts: 1, NextAttemptAt: later, Status: notifybox.StatusPending, At: later})
	require.ErrorIs(t, err, notifybox.ErrClaimLost)
	require.NoError(t, store.MarkSent(ctx, fresh[0].Lease(), later))
}

func startMySQLContainer(t *testing.T, ctx context.Context) (testcontainers.Container, *sql.DB) {
	t.Helper()
	port := nat.Port("3306/tcp")
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0.36",
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_DATABASE":      "shop",
		},
		WaitingFor: wait.ForSQL(port, "mysql", func(host string, port nat.Port) string {
			return fmt.Sprintf("root:secret@tcp(%s:%s)/shop?parseTime=true", host, port.Port())
		}).WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("start mysql container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("resolve host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("resolve port: %v", err)
	}

	dsn := fmt.Sprintf("root:secret@tcp(%s:%s)/shop?parseTime=true", host, mappedPort.Port())
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("open db: %v", err)
	}

	return container, db
}

func setupSchema(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	schema, err := mysql.Schema("notification_outbox")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, schema)
	require.NoError(t, err)
}

func setupOrders(t *testing.T, ctx context.Context, db *sql.DB, ids ...string) *mysql.OrderFlagger {
	t.Helper()
	_, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS orders (id VARCHAR(64) PRIMARY KEY, customer_notified TINYINT(1) NOT NULL DEFAULT 0)")
	require.NoError(t, err)
	for _, id := range ids {
		_, err := db.ExecContext(ctx, "INSERT INTO orders (id) VALUES (?)", id)
		require.NoError(t, err)
	}

	flagger, err := mysql.NewOrderFlagger(db, mysql.OrderFlaggerConfig{})
	require.NoError(t, err)

	return flagger
}

func orderNotified(t *testing.T, ctx context.Context, db *sql.DB, id string) bool {
	t.Helper()
	var notified bool
	require.NoError(t, db.QueryRowContext(ctx, "SELECT customer_notified FROM orders WHERE id = ?", id).Scan(&notified))

	return notified
}

func countByStatus(t *testing.T, ctx context.Context, db *sql.DB, status notifybox.Status) int {
	t.Helper()
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notification_outbox WHERE status = ?", status).Scan(&count)
	require.NoError(t, err)

	return count
}

func fetchState(t *testing.T, ctx context.Context, db *sql.DB) (notifybox.Status, int, sql.NullString) {
	t.Helper()
	var (
		status    notifybox.Status
		attempts  int
		lastError sql.NullString
	)
	err := db.QueryRowContext(ctx, "SELECT status, attempts, last_error FROM notification_outbox LIMIT 1").
		Scan(&status, &attempts, &lastError)
	require.NoError(t, err)

	return status, attempts, lastError
}
