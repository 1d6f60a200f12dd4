package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/palisadehq/palisade/internal/database"
	"github.com/palisadehq/palisade/internal/models"
	"github.com/palisadehq/palisade/internal/repositories"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("palisade"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a database/sql connection; use the pgx stdlib adapter
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"login_attempts",
		"lockout_records",
		"security_policies",
		"request_log",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.AttemptRepository,
	*repositories.LockoutRepository,
	*repositories.PolicyRepository,
	*repositories.RequestLogRepository,
) {
	return repositories.NewAttemptRepository(db),
		repositories.NewLockoutRepository(db),
		repositories.NewPolicyRepository(db),
		repositories.NewRequestLogRepository(db)
}

// SeedLockout inserts a lockout record directly, bypassing the engine
func SeedLockout(ctx context.Context, pool *pgxpool.Pool, subjectKey string, lockedUntil *time.Time, automaticUnlock bool) error {
	query := `
		INSERT INTO lockout_records (subject_key, locked_until, failed_attempts, reason, automatic_unlock, updated_at)
		VALUES ($1, $2, 0, 'seeded for test', $3, NOW())
	`
	_, err := pool.Exec(ctx, query, subjectKey, lockedUntil, automaticUnlock)
	if err != nil {
		return fmt.Errorf("failed to insert lockout record: %w", err)
	}
	return nil
}

// SeedPolicy inserts a per-subject security policy
func SeedPolicy(ctx context.Context, pool *pgxpool.Pool, policy *models.SecurityPolicy) error {
	query := `
		INSERT INTO security_policies (subject_key, max_failed_attempts, lockout_duration_minutes, window_minutes, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := pool.Exec(ctx, query,
		policy.SubjectKey,
		policy.MaxFailedAttempts,
		policy.LockoutDurationMinutes,
		policy.WindowMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security policy: %w", err)
	}
	return nil
}

// CountLockoutRecords returns the number of lockout rows for a subject
func CountLockoutRecords(ctx context.Context, pool *pgxpool.Pool, subjectKey string) (int, error) {
	var count int
	err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM lockout_records WHERE subject_key = $1", subjectKey).Scan(&count)
	return count, err
}

// CountLedgerRows returns the number of attempt rows for a subject
func CountLedgerRows(ctx context.Context, pool *pgxpool.Pool, subjectKey string) (int, error) {
	var count int
	err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM login_attempts WHERE subject_key = $1", subjectKey).Scan(&count)
	return count, err
}
