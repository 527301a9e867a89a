//go:build integration

// Package testutil starts the containers the command integration tests run against.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/velmie/notifybox/mysql"
)

const (
	mysqlImage     = "mysql:8.0.36"
	mysqlAlias     = "mysql"
	mysqlDatabase  = "shop"
	mysqlPassword  = "secret"
	rabbitImage    = "rabbitmq:3.13-alpine"
	rabbitAlias    = "rabbitmq"
	startupTimeout = 2 * time.Minute
)

// Env is a private docker network with the outbox database attached.
type Env struct {
	Network *testcontainers.DockerNetwork
	// DB is reachable from the test process.
	DB *sql.DB
	// DSN is reachable from containers on Network.
	DSN string
}

// Broker is a RabbitMQ container attached to an Env network.
type Broker struct {
	// URL is reachable from the test process.
	URL string
	// NetworkURL is reachable from containers on the network.
	NetworkURL string
}

// StartEnv starts MySQL on a fresh network and creates the outbox and orders tables.
// The test is skipped when docker is unavailable.
func StartEnv(t *testing.T, ctx context.Context, table string) Env {
	t.Helper()

	net, err := network.New(ctx)
	if err != nil {
		t.Skipf("create network: %v", err)
	}
	t.Cleanup(func() { _ = net.Remove(ctx) })

	port := nat.Port("3306/tcp")
	dsn := func(host, port string) string {
		return fmt.Sprintf("root:%s@tcp(%s:%s)/%s?parseTime=true", mysqlPassword, host, port, mysqlDatabase)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        mysqlImage,
			ExposedPorts: []string{string(port)},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": mysqlPassword,
				"MYSQL_DATABASE":      mysqlDatabase,
			},
			Networks:       []string{net.Name},
			NetworkAliases: map[string][]string{net.Name: {mysqlAlias}},
			WaitingFor: wait.ForSQL(port, "mysql", func(host string, port nat.Port) string {
				return dsn(host, port.Port())
			}).WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("resolve port: %v", err)
	}

	db, err := sql.Open("mysql", dsn(host, mapped.Port()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	schema, err := mysql.Schema(table)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("create outbox table: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"CREATE TABLE orders (id VARCHAR(64) PRIMARY KEY, customer_notified TINYINT(1) NOT NULL DEFAULT 0)"); err != nil {
		t.Fatalf("create orders table: %v", err)
	}

	return Env{Network: net, DB: db, DSN: dsn(mysqlAlias, "3306")}
}

// StartBroker starts RabbitMQ on the Env network.
func StartBroker(t *testing.T, ctx context.Context, env Env) Broker {
	t.Helper()

	port := nat.Port("5672/tcp")
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          rabbitImage,
			ExposedPorts:   []string{string(port)},
			Networks:       []string{env.Network.Name},
			NetworkAliases: map[string][]string{env.Network.Name: {rabbitAlias}},
			WaitingFor: wait.ForLog("Server startup complete").
				WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("start rabbitmq container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("resolve port: %v", err)
	}

	return Broker{
		URL:        fmt.Sprintf("amqp://guest:guest@%s:%s/", host, mapped.Port()),
		NetworkURL: fmt.Sprintf("amqp://guest:guest@%s:5672/", rabbitAlias),
	}
}
