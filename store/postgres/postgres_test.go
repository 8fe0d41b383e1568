package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/store/postgres"
)

// Requires a scratch database; every test resets it.
const urlEnv = "PROFORMA_TEST_DATABASE_URL"

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv(urlEnv)
	if url == "" {
		t.Skipf("%s not set", urlEnv)
	}

	ctx := context.Background()
	s, err := postgres.New(ctx, url)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIsURL(t *testing.T) {
	assert.True(t, postgres.IsURL("postgres://localhost/proforma"))
	assert.True(t, postgres.IsURL("postgresql://u:p@db:5432/x"))
	assert.False(t, postgres.IsURL("proforma.db"))
	assert.False(t, postgres.IsURL(":memory:"))
}

func TestStore_SaveVersionAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.SaveScenario(ctx, engine.ScenarioRecord{Name: "zeta", Variant: "advanced-market", ModelJSON: "{}"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)

	rec.ModelJSON = `{"strict":true}`
	updated, err := s.SaveScenario(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.True(t, rec.CreatedAt.Equal(updated.CreatedAt))

	_, err = s.SaveScenario(ctx, engine.ScenarioRecord{Name: "alpha", Variant: "v", ModelJSON: "{}"})
	require.NoError(t, err)

	list, err := s.ListScenarios(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
}

func TestStore_RunsAndCascade(t *testing.T) {
	// GIVEN: A scenario with two runs an hour apart
	// WHEN: Listing runs and then deleting the scenario
	// THEN: Newest first with exact decimals; deletion takes the runs along

	s := newTestStore(t)
	ctx := context.Background()
	rec, err := s.SaveScenario(ctx, engine.ScenarioRecord{Name: "s", Variant: "v", ModelJSON: "{}"})
	require.NoError(t, err)

	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, total := range []string{"100.5", "1841742.5"} {
		require.NoError(t, s.AppendRun(ctx, engine.RunRecord{
			ScenarioID:   rec.ID,
			TotalRevenue: decimal.RequireFromString(total),
			NetProfit:    decimal.RequireFromString("-48257.5"),
			Payout:       decimal.NewFromInt(600000),
			PayoutRule:   engine.PayoutMinimumGuarantee,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := s.ListRuns(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "1841742.5", runs[0].TotalRevenue.String())
	assert.Empty(t, runs[0].ResultJSON)

	require.NoError(t, s.DeleteScenario(ctx, rec.ID))
	_, err = s.ListRuns(ctx, rec.ID)
	assert.ErrorIs(t, err, engine.ErrScenarioNotFound)
}

func TestStore_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetScenario(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrScenarioNotFound)
	assert.ErrorIs(t, s.DeleteScenario(ctx, "missing"), engine.ErrScenarioNotFound)
	assert.ErrorIs(t, s.AppendRun(ctx, engine.RunRecord{ScenarioID: "missing"}), engine.ErrScenarioNotFound)
}
