package recordstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySortLimitDelete(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.Seed("T", "rec1", map[string]any{"Timestamp": "2024-06-01T09:00:00Z"})
	mem.Seed("T", "rec2", map[string]any{"Timestamp": "2024-06-01T11:00:00Z"})
	mem.Seed("T", "rec3", map[string]any{"Timestamp": "2024-06-01T10:00:00Z"})

	records, err := mem.Query(ctx, "T", QueryOptions{SortField: "Timestamp", SortDesc: true, MaxRecords: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec2", records[0].ID)
	assert.Equal(t, "rec3", records[1].ID)

	require.NoError(t, mem.DeleteRecords(ctx, "T", []string{"rec2", "rec3"}))
	records, err = mem.Query(ctx, "T", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec1", records[0].ID)
}

func TestMemoryCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	guard := Eq("SubjectID", "REF-100")

	first, fresh, err := mem.CreateIfAbsent(ctx, "T", map[string]any{"SubjectID": "REF-100"}, guard)
	require.NoError(t, err)
	assert.True(t, fresh)

	second, fresh, err := mem.CreateIfAbsent(ctx, "T", map[string]any{"SubjectID": "REF-100"}, guard)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, first.ID, second.ID)

	records, err := mem.Query(ctx, "T", QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryGet(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.Seed("T", "rec1", map[string]any{"k": "v"})

	rec, found, err := mem.Get(ctx, "T", "rec1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", rec.String("k"))

	_, found, err = mem.Get(ctx, "T", "rec2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryTablesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_, err := mem.Create(ctx, "A", map[string]any{"k": "v"})
	require.NoError(t, err)

	records, err := mem.Query(ctx, "B", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}
