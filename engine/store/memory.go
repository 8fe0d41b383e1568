// Package store provides ScenarioStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/proforma-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	scenarios map[string]engine.ScenarioRecord
	runs      map[string][]engine.RunRecord
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		scenarios: make(map[string]engine.ScenarioRecord),
		runs:      make(map[string][]engine.RunRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SaveScenario inserts or replaces a scenario. Replacing bumps the version
// and keeps the original creation time.
func (m *Memory) SaveScenario(_ context.Context, rec engine.ScenarioRecord) (engine.ScenarioRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if existing, ok := m.scenarios[rec.ID]; ok {
		rec.Version = existing.Version + 1
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.Version = 1
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.scenarios[rec.ID] = rec
	return rec, nil
}

func (m *Memory) GetScenario(_ context.Context, id string) (engine.ScenarioRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.scenarios[id]
	if !ok {
		return engine.ScenarioRecord{}, engine.ErrScenarioNotFound
	}
	return rec, nil
}

func (m *Memory) ListScenarios(_ context.Context) ([]engine.ScenarioRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.ScenarioRecord, 0, len(m.scenarios))
	for _, rec := range m.scenarios {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) DeleteScenario(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scenarios[id]; !ok {
		return engine.ErrScenarioNotFound
	}
	delete(m.scenarios, id)
	delete(m.runs, id)
	return nil
}

// AppendRun records a run. Runs are append-only.
func (m *Memory) AppendRun(_ context.Context, run engine.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scenarios[run.ScenarioID]; !ok {
		return engine.ErrScenarioNotFound
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = m.now()
	}
	m.runs[run.ScenarioID] = append(m.runs[run.ScenarioID], run)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, scenarioID string) ([]engine.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.scenarios[scenarioID]; !ok {
		return nil, engine.ErrScenarioNotFound
	}
	runs := m.runs[scenarioID]
	result := make([]engine.RunRecord, len(runs))
	for i, r := range runs {
		result[len(runs)-1-i] = r
	}
	// newest first; runs recorded at the same instant keep reverse insertion order
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scenarios = make(map[string]engine.ScenarioRecord)
	m.runs = make(map[string][]engine.RunRecord)
	return nil
}
