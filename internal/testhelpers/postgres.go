// Package testhelpers starts a shared PostgreSQL container with migrations applied for
// integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
	"github.com/cilogon/ItrsscilogonAssigner/internal/db/migrate"
)

const postgresImage = "postgres:16-alpine"

// TestDB holds the shared container and a migrated connection.
type TestDB struct {
	Container testcontainers.Container
	DB        *sql.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests. The container is
// created once per test binary and migrated up.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})
	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}
	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "registry",
			"POSTGRES_USER":     "registry",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://registry:test_password@%s:%s/registry?sslmode=disable", host, port.Port())

	if err := migrate.Run(connStr, "up"); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := db.Open(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &TestDB{Container: container, DB: conn, ConnStr: connStr}, nil
}

// Reset truncates every table so each test starts empty.
func (d *TestDB) Reset(t *testing.T) {
	t.Helper()
	_, err := d.DB.ExecContext(context.Background(),
		`TRUNCATE provisioning_outbox, audit_logs, identifiers, email_addresses, names, co_people RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("reset database: %v", err)
	}
}
