package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection. File databases run in WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path
	if dsn != MemoryPath {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const fleetColumns = `id, state, total_target_capacity, total_fulfilled_capacity, allocation_strategy,
		instance_match_criteria, tenancy, end_date, instance_types, tags, client_token, observations,
		created_at, updated_at`

func scanFleet(row rowScanner) (*Fleet, error) {
	f := &Fleet{}
	err := row.Scan(
		&f.ID,
		&f.State,
		&f.TotalTargetCapacity,
		&f.TotalFulfilledCapacity,
		&f.AllocationStrategy,
		&f.InstanceMatchCriteria,
		&f.Tenancy,
		&f.EndDate,
		&f.InstanceTypes,
		&f.Tags,
		&f.ClientToken,
		&f.Observations,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}

// CreateFleet creates a new fleet record
func (s *SQLiteStore) CreateFleet(ctx context.Context, fleet *Fleet) error {
	now := time.Now().UTC()
	if fleet.CreatedAt.IsZero() {
		fleet.CreatedAt = now
	}
	fleet.UpdatedAt = now

	query := `INSERT INTO fleets (` + fleetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		fleet.ID,
		fleet.State,
		fleet.TotalTargetCapacity,
		fleet.TotalFulfilledCapacity,
		fleet.AllocationStrategy,
		fleet.InstanceMatchCriteria,
		fleet.Tenancy,
		fleet.EndDate,
		fleet.InstanceTypes,
		fleet.Tags,
		fleet.ClientToken,
		fleet.Observations,
		fleet.CreatedAt,
		fleet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fleet: %w", err)
	}

	return nil
}

// GetFleet retrieves a fleet by ID
func (s *SQLiteStore) GetFleet(ctx context.Context, id string) (*Fleet, error) {
	query := `SELECT ` + fleetColumns + ` FROM fleets WHERE id = ?`

	fleet, err := scanFleet(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fleet %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fleet: %w", err)
	}

	return fleet, nil
}

// GetFleetByClientToken retrieves the fleet created with the given idempotency token
func (s *SQLiteStore) GetFleetByClientToken(ctx context.Context, token string) (*Fleet, error) {
	query := `SELECT ` + fleetColumns + ` FROM fleets WHERE client_token = ?`

	fleet, err := scanFleet(s.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fleet with client token %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fleet by client token: %w", err)
	}

	return fleet, nil
}

// UpdateFleet overwrites the mutable fields of a fleet
func (s *SQLiteStore) UpdateFleet(ctx context.Context, fleet *Fleet) error {
	query := `
		UPDATE fleets
		SET state = ?, total_target_capacity = ?, total_fulfilled_capacity = ?, end_date = ?,
			tags = ?, observations = ?, updated_at = ?
		WHERE id = ?
	`

	fleet.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		fleet.State,
		fleet.TotalTargetCapacity,
		fleet.TotalFulfilledCapacity,
		fleet.EndDate,
		fleet.Tags,
		fleet.Observations,
		fleet.UpdatedAt,
		fleet.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fleet: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("fleet %s: %w", fleet.ID, ErrNotFound)
	}

	return nil
}

// ListFleets lists fleets in creation order with pagination
func (s *SQLiteStore) ListFleets(ctx context.Context, limit, offset int) ([]*Fleet, error) {
	query := `SELECT ` + fleetColumns + ` FROM fleets ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list fleets: %w", err)
	}
	defer rows.Close()

	fleets := []*Fleet{}
	for rows.Next() {
		fleet, err := scanFleet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fleet: %w", err)
		}
		fleets = append(fleets, fleet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fleets: %w", err)
	}

	return fleets, nil
}

// CountFleetsByState returns the number of fleets in each state
func (s *SQLiteStore) CountFleetsByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM fleets GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count fleets: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan fleet count: %w", err)
		}
		counts[state] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fleet counts: %w", err)
	}

	return counts, nil
}

const invocationColumns = `id, operation, fleet_id, status, request, callback_context, model, ticks, attempts,
		error_kind, error, started_at, completed_at, created_at, updated_at`

func scanInvocation(row rowScanner) (*Invocation, error) {
	inv := &Invocation{}
	err := row.Scan(
		&inv.ID,
		&inv.Operation,
		&inv.FleetID,
		&inv.Status,
		&inv.Request,
		&inv.CallbackContext,
		&inv.Model,
		&inv.Ticks,
		&inv.Attempts,
		&inv.ErrorKind,
		&inv.Error,
		&inv.StartedAt,
		&inv.CompletedAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	return inv, err
}

// CreateInvocation creates a new invocation record
func (s *SQLiteStore) CreateInvocation(ctx context.Context, inv *Invocation) error {
	now := time.Now().UTC()
	if inv.StartedAt.IsZero() {
		inv.StartedAt = now
	}
	if inv.Status == "" {
		inv.Status = InvocationStatusRunning
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now

	query := `INSERT INTO invocations (` + invocationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.Operation,
		inv.FleetID,
		inv.Status,
		inv.Request,
		inv.CallbackContext,
		inv.Model,
		inv.Ticks,
		inv.Attempts,
		inv.ErrorKind,
		inv.Error,
		inv.StartedAt,
		inv.CompletedAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invocation: %w", err)
	}

	return nil
}

// GetInvocation retrieves an invocation by ID
func (s *SQLiteStore) GetInvocation(ctx context.Context, id string) (*Invocation, error) {
	query := `SELECT ` + invocationColumns + ` FROM invocations WHERE id = ?`

	inv, err := scanInvocation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invocation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}

	return inv, nil
}

// ListInvocations lists invocations, newest first, optionally filtered by status
func (s *SQLiteStore) ListInvocations(ctx context.Context, status *InvocationStatus, limit, offset int) ([]*Invocation, error) {
	query := `SELECT ` + invocationColumns + ` FROM invocations WHERE 1=1`
	args := []any{}

	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}

	query += " ORDER BY started_at DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer rows.Close()

	invocations := []*Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		invocations = append(invocations, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invocations: %w", err)
	}

	return invocations, nil
}

// CompleteInvocation records the terminal status of an invocation
func (s *SQLiteStore) CompleteInvocation(ctx context.Context, id string, status InvocationStatus, errorKind, errMsg *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("invocation status %q is not terminal", status)
	}

	query := `
		UPDATE invocations
		SET status = ?, error_kind = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, status, errorKind, errMsg, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete invocation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("invocation %s: %w", id, ErrNotFound)
	}

	return nil
}

// AppendTick journals a tick and advances its invocation in one transaction.
func (s *SQLiteStore) AppendTick(ctx context.Context, tick *Tick, progress TickProgress) error {
	if tick.CreatedAt.IsZero() {
		tick.CreatedAt = time.Now().UTC()
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	update := `
		UPDATE invocations
		SET ticks = ticks + 1,
			fleet_id = CASE WHEN ? = '' THEN fleet_id ELSE ? END,
			callback_context = ?,
			model = COALESCE(?, model),
			attempts = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, update,
		progress.FleetID,
		progress.FleetID,
		progress.CallbackContext,
		progress.Model,
		progress.Attempts,
		tick.CreatedAt,
		tick.InvocationID,
	)
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to advance invocation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("invocation %s: %w", tick.InvocationID, ErrNotFound)
	}

	insert := `
		INSERT INTO ticks (invocation_id, seq, status, error_kind, message, callback_context, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := tx.ExecContext(ctx, insert,
		tick.InvocationID,
		tick.Seq,
		tick.Status,
		tick.ErrorKind,
		tick.Message,
		tick.CallbackContext,
		tick.DurationMs,
		tick.CreatedAt,
	)
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to append tick: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to get tick ID: %w", err)
	}

	if err := s.CommitTx(tx); err != nil {
		return fmt.Errorf("failed to commit tick: %w", err)
	}

	tick.ID = id
	return nil
}

// ListTicks returns the ticks of an invocation in order
func (s *SQLiteStore) ListTicks(ctx context.Context, invocationID string) ([]*Tick, error) {
	query := `
		SELECT id, invocation_id, seq, status, error_kind, message, callback_context, duration_ms, created_at
		FROM ticks
		WHERE invocation_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, invocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticks: %w", err)
	}
	defer rows.Close()

	ticks := []*Tick{}
	for rows.Next() {
		tick := &Tick{}
		err := rows.Scan(
			&tick.ID,
			&tick.InvocationID,
			&tick.Seq,
			&tick.Status,
			&tick.ErrorKind,
			&tick.Message,
			&tick.CallbackContext,
			&tick.DurationMs,
			&tick.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ticks = append(ticks, tick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticks: %w", err)
	}

	return ticks, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
