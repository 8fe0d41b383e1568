/*
Package sqlite provides a SQLite-backed implementation of engine.ScenarioStore.

PURPOSE:
  Persists named scenarios (a model document plus metadata) and the
  history of projections run against them, so a what-if session survives
  a restart and past runs stay comparable after a scenario is edited.

KEY TABLES:
  scenarios: One row per scenario, versioned on every update
  runs:      Append-only projection history, cascades on scenario delete

MONEY COLUMNS:
  Decimal values are stored as TEXT so they round-trip exactly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is pinned to
  a single connection since every new connection would open an empty one.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/proforma.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - engine/store.go: Interface definition
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/proforma-engine/engine"
)

// Store implements engine.ScenarioStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.ScenarioStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		variant TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		model_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scenarios_name ON scenarios(name);

	-- Projection history (append-only)
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		scenario_version INTEGER NOT NULL,
		total_revenue TEXT NOT NULL,
		net_profit TEXT NOT NULL,
		payout TEXT NOT NULL,
		payout_rule TEXT NOT NULL,
		result_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scenario_created
		ON runs(scenario_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCENARIO STORE
// =============================================================================

// SaveScenario inserts or updates a scenario. Updates bump the version and
// keep created_at.
func (s *Store) SaveScenario(ctx context.Context, rec engine.ScenarioRecord) (engine.ScenarioRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
		INSERT INTO scenarios (id, name, variant, version, model_json, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			variant = excluded.variant,
			model_json = excluded.model_json,
			version = scenarios.version + 1,
			updated_at = excluded.updated_at
	`

	now := formatTime(time.Now())
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Name, rec.Variant, rec.ModelJSON, now, now); err != nil {
		return engine.ScenarioRecord{}, fmt.Errorf("save scenario: %w", err)
	}
	return s.getScenario(ctx, rec.ID)
}

// GetScenario retrieves a scenario by ID.
func (s *Store) GetScenario(ctx context.Context, id string) (engine.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getScenario(ctx, id)
}

func (s *Store) getScenario(ctx context.Context, id string) (engine.ScenarioRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, variant, version, model_json, created_at, updated_at FROM scenarios WHERE id = ?",
		id,
	)
	rec, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ScenarioRecord{}, engine.ErrScenarioNotFound
	}
	return rec, err
}

// ListScenarios returns all scenarios ordered by name.
func (s *Store) ListScenarios(ctx context.Context) ([]engine.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, variant, version, model_json, created_at, updated_at FROM scenarios ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []engine.ScenarioRecord
	for rows.Next() {
		rec, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, rec)
	}
	return scenarios, rows.Err()
}

// DeleteScenario removes a scenario; its runs go with it.
func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM scenarios WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrScenarioNotFound
	}
	return nil
}

// =============================================================================
// RUN HISTORY
// =============================================================================

// AppendRun records a projection run. Append-only.
func (s *Store) AppendRun(ctx context.Context, run engine.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getScenario(ctx, run.ScenarioID); err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO runs (id, scenario_id, scenario_version, total_revenue, net_profit, payout, payout_rule, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.ScenarioID, run.ScenarioVersion,
		run.TotalRevenue.String(), run.NetProfit.String(), run.Payout.String(),
		string(run.PayoutRule), nullString(run.ResultJSON), formatTime(run.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("run %s already recorded: %w", run.ID, err)
	}
	return err
}

// ListRuns returns a scenario's runs, newest first.
func (s *Store) ListRuns(ctx context.Context, scenarioID string) ([]engine.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getScenario(ctx, scenarioID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario_id, scenario_version, total_revenue, net_profit, payout, payout_rule, result_json, created_at
		FROM runs WHERE scenario_id = ?
		ORDER BY created_at DESC, rowid DESC`,
		scenarioID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []engine.RunRecord
	for rows.Next() {
		var r engine.RunRecord
		var total, net, payout, rule, createdAt string
		var result sql.NullString
		if err := rows.Scan(&r.ID, &r.ScenarioID, &r.ScenarioVersion, &total, &net, &payout, &rule, &result, &createdAt); err != nil {
			return nil, err
		}
		r.TotalRevenue = parseDecimal(total)
		r.NetProfit = parseDecimal(net)
		r.Payout = parseDecimal(payout)
		r.PayoutRule = engine.PayoutRule(rule)
		r.ResultJSON = result.String
		r.CreatedAt = parseTime(createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"runs", "scenarios"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScenario(row scanner) (engine.ScenarioRecord, error) {
	var rec engine.ScenarioRecord
	var createdAt, updatedAt string
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Variant, &rec.Version, &rec.ModelJSON, &createdAt, &updatedAt); err != nil {
		return engine.ScenarioRecord{}, err
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

// Helper functions

// timeLayout keeps nanoseconds at full width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also reads rows written with trimmed fractional seconds.
func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
