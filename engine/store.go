/*
store.go - Persistence interface for scenarios and projection runs

PURPOSE:
  The engine is pure; the Parameter Store is the one stateful part of the
  system. It keeps named scenarios (a model document plus metadata) and
  an append-only history of projections run against them.

KEY INTERFACES:
  ScenarioStore: Save, load, list, delete scenarios; append and list runs

VERSIONING:
  Every SaveScenario of an existing ID bumps Version. Runs record the
  version they were computed from so history survives later edits.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - factory/model.go: Encodes Model as the stored document
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ScenarioRecord is a stored, named model.
type ScenarioRecord struct {
	ID        string
	Name      string
	Variant   string
	Version   int
	ModelJSON string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunRecord is one projection computed from a scenario.
type RunRecord struct {
	ID              string
	ScenarioID      string
	ScenarioVersion int
	TotalRevenue    decimal.Decimal
	NetProfit       decimal.Decimal
	Payout          decimal.Decimal
	PayoutRule      PayoutRule
	ResultJSON      string
	CreatedAt       time.Time
}

// ScenarioStore persists scenarios and their run history.
type ScenarioStore interface {
	// SaveScenario inserts rec, or replaces it and increments its version
	// when the ID already exists. The stored record is returned.
	SaveScenario(ctx context.Context, rec ScenarioRecord) (ScenarioRecord, error)

	// GetScenario returns ErrScenarioNotFound for unknown IDs.
	GetScenario(ctx context.Context, id string) (ScenarioRecord, error)

	// ListScenarios returns every scenario ordered by name.
	ListScenarios(ctx context.Context) ([]ScenarioRecord, error)

	// DeleteScenario removes the scenario and its runs.
	DeleteScenario(ctx context.Context, id string) error

	AppendRun(ctx context.Context, run RunRecord) error

	// ListRuns returns a scenario's runs, newest first.
	ListRuns(ctx context.Context, scenarioID string) ([]RunRecord, error)

	// Reset drops all scenarios and runs.
	Reset(ctx context.Context) error
}
