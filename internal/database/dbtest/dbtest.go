// Package dbtest runs repository tests against a throwaway Postgres container.
package dbtest

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"studysphere/internal/database"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var dsn string

func start() (teardown func(), err error) {
	// testcontainers panics on some hosts without a docker socket
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start postgres container: %v", r)
		}
	}()

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("studysphere"),
		postgres.WithUsername("studysphere"),
		postgres.WithPassword("studysphere"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dsn, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}

	return func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("could not teardown postgres container: %v", err)
		}
	}, nil
}

// Main is meant to be called from TestMain. Without docker the tests still run
// and New skips the ones that need a database.
func Main(m *testing.M) {
	teardown, err := start()
	if err != nil {
		log.Printf("postgres container unavailable, integration tests will be skipped: %v", err)
		os.Exit(m.Run())
	}

	code := m.Run()
	teardown()
	os.Exit(code)
}

// New returns a migrated database with every table emptied.
func New(t *testing.T) database.Service {
	t.Helper()
	if dsn == "" {
		t.Skip("docker not available")
	}

	db, err := database.New(dsn)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := db.Exec(ctx, `
		TRUNCATE xp_awards, session_resources, session_messages, session_rsvps,
		         study_sessions, group_memberships, study_groups, users
		RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

// CreateUser inserts a user row and returns its id.
func CreateUser(t *testing.T, db database.Service, id, username string) string {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, 'x')`,
		id, username, username+"@example.com")
	if err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	return id
}

// UserXP reads the stored xp and level of a user.
func UserXP(t *testing.T, db database.Service, id string) (xp, level int) {
	t.Helper()
	if err := db.QueryRow(context.Background(), `SELECT xp, level FROM users WHERE id = $1`, id).Scan(&xp, &level); err != nil {
		t.Fatalf("read xp: %v", err)
	}
	return xp, level
}

// CountAwards counts ledger rows for a user and reason.
func CountAwards(t *testing.T, db database.Service, userID, reason string) int {
	t.Helper()
	var n int
	err := db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM xp_awards WHERE user_id = $1 AND reason = $2`, userID, reason).Scan(&n)
	if err != nil {
		t.Fatalf("count awards: %v", err)
	}
	return n
}
