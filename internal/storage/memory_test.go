package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/models"
)

func TestSessionCommitMakesRecordsVisible(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Add(models.NamedMetric{Type: "catalog", Name: "Total Products", Value: 3}))
	require.NoError(t, session.Add(models.KeyedMetric{Category: "traffic", SubCategory: "Sessions", Value: "100"}))

	// Nothing visible before commit.
	assert.Empty(t, store.Records())

	require.NoError(t, session.Commit())
	assert.Len(t, store.Records(), 2)
	assert.False(t, store.LastIngest().IsZero())
}

func TestSessionRollbackDiscardsBatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Add(models.NamedMetric{Name: "X", Value: 1}))
	require.NoError(t, session.Rollback())

	assert.Empty(t, store.Records())
}

func TestFailAfterForcesNthAddFailure(t *testing.T) {
	store := NewMemoryStore()
	store.FailAfter(1)
	ctx := context.Background()

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Add(models.NamedMetric{Name: "first", Value: 1}))
	assert.Error(t, session.Add(models.NamedMetric{Name: "second", Value: 2}))
}

func TestQueryFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Add(models.KeyedMetric{Category: "traffic", SubCategory: "Sessions", Value: "10"}))
	require.NoError(t, session.Add(models.KeyedMetric{Category: "devices", SubCategory: "mobile", Value: "5"}))
	require.NoError(t, session.Add(models.NamedMetric{Type: "catalog", Name: "Total Products", Value: 2}))
	require.NoError(t, session.Add(models.TimestampedMetric{Type: "main_metric", Name: "Total Revenue", Value: 100}))
	require.NoError(t, session.Commit())

	keyed, err := store.KeyedMetrics(ctx, "traffic")
	require.NoError(t, err)
	require.Len(t, keyed, 1)
	assert.Equal(t, "Sessions", keyed[0].SubCategory)

	allKeyed, err := store.KeyedMetrics(ctx, "")
	require.NoError(t, err)
	assert.Len(t, allKeyed, 2)

	named, err := store.NamedMetrics(ctx, "catalog")
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "Total Products", named[0].Name)

	series, err := store.SeriesMetrics(ctx, "main_metric")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Total Revenue", series[0].Name)
}

func TestRerunAppendsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		session, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, session.Add(models.NamedMetric{Type: "catalog", Name: "Total Products", Value: 3}))
		require.NoError(t, session.Commit())
	}

	// The store is append-only; reruns stack rather than upsert.
	assert.Len(t, store.Records(), 2)
}
