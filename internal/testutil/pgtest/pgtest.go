//go:build integration

// Package pgtest provides a migrated Postgres database per test, backed by
// one container per test process.
package pgtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kirinyoku/tixpay/internal/migrations"
	"github.com/kirinyoku/tixpay/internal/postgres"
)

const (
	user     = "test"
	password = "testpass"
)

var (
	once      sync.Once
	container testcontainers.Container
	adminDSN  string
	startErr  error
)

func start() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, startErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     user,
				"POSTGRES_PASSWORD": password,
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if startErr != nil {
		return
	}

	host, err := container.Host(ctx)
	if err != nil {
		startErr = err
		return
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		startErr = err
		return
	}

	adminDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable", user, password, host, port.Port())
}

// New creates a fresh database, applies the migrations and returns a pool
// on it. The database is dropped when the test ends. The container itself is
// reaped by testcontainers when the process exits.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()

	once.Do(start)
	require.NoError(t, startErr, "postgres container")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, adminDSN)
	require.NoError(t, err)
	defer admin.Close()

	name := "testdb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err)

	pool, err := postgres.New(ctx, postgres.Config{
		DSN:      strings.Replace(adminDSN, "/postgres?", "/"+name+"?", 1),
		MaxConns: 16,
	})
	require.NoError(t, err)

	require.NoError(t, migrations.Apply(ctx, pool))

	t.Cleanup(func() {
		pool.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		admin, err := pgxpool.New(ctx, adminDSN)
		if err != nil {
			t.Logf("drop %s: %v", name, err)
			return
		}
		defer admin.Close()

		if _, err := admin.Exec(ctx, "DROP DATABASE IF EXISTS "+name+" WITH (FORCE)"); err != nil {
			t.Logf("drop %s: %v", name, err)
		}
	})

	return pool
}
