package record

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haneul-ai/recall/internal/model"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := model.Memory{
		ID:      "mem-1",
		Title:   "벡터테스트",
		Content: "광안리 해변 산책 일정",
		Type:    model.TypeObservation,
		Priority: model.PriorityHigh,
		Tags:    []string{"travel", "korea"},
	}

	saved, err := s.Put(ctx, m)
	require.NoError(t, err)
	require.Equal(t, m.ID, saved.ID)
	require.False(t, saved.CreatedAt.IsZero())

	got, err := s.Get(ctx, m.ID, false)
	require.NoError(t, err)
	require.Equal(t, m.Title, got.Title)
	require.Equal(t, saved.CreatedAt, got.CreatedAt)
}

func TestGetAdvancesAccessTime(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	saved, err := s.Put(ctx, model.Memory{ID: "mem-2", Title: "t", Type: model.TypeFact, Priority: model.PriorityLow})
	require.NoError(t, err)

	before := saved.LastAccessedAt
	time.Sleep(5 * time.Millisecond)

	got, err := s.Get(ctx, "mem-2", true)
	require.NoError(t, err)
	require.True(t, got.LastAccessedAt.After(before))
	require.Equal(t, uint64(1), got.AccessCount)

	notAdvanced, err := s.Get(ctx, "mem-2", false)
	require.NoError(t, err)
	require.Equal(t, got.LastAccessedAt, notAdvanced.LastAccessedAt)
}

func TestPutPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	saved, err := s.Put(ctx, model.Memory{ID: "mem-3", Title: "v1", Type: model.TypeFact, Priority: model.PriorityLow})
	require.NoError(t, err)
	originalCreated := saved.CreatedAt

	updated := saved
	updated.Title = "v2"
	updated.CreatedAt = time.Now().Add(48 * time.Hour) // caller override attempt, must be ignored

	result, err := s.Put(ctx, updated)
	require.NoError(t, err)
	require.Equal(t, originalCreated, result.CreatedAt)
	require.Equal(t, "v2", result.Title)
}

func TestPutConflictOnStaleUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	saved, err := s.Put(ctx, model.Memory{ID: "mem-4", Title: "v1", Type: model.TypeFact, Priority: model.PriorityLow})
	require.NoError(t, err)

	// Someone else updates first.
	_, err = s.Put(ctx, saved)
	require.NoError(t, err)

	// Now try to write using the stale UpdatedAt we captured before that write.
	stale := saved
	stale.Title = "stale-write"
	_, err = s.Put(ctx, stale)
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	require.Equal(t, model.KindConflict, kind)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Put(ctx, model.Memory{ID: "mem-5", Title: "t", Type: model.TypeFact, Priority: model.PriorityLow})
	require.NoError(t, err)

	removed, err := s.Delete(ctx, "mem-5")
	require.NoError(t, err)
	require.True(t, removed)

	removedAgain, err := s.Delete(ctx, "mem-5")
	require.NoError(t, err)
	require.False(t, removedAgain)

	_, err = s.Get(ctx, "mem-5", false)
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	require.Equal(t, model.KindNotFound, kind)
}

func TestScanNewestFirstAndFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, tt := range []struct {
		id   string
		typ  model.MemoryType
		tags []string
		age  time.Duration
	}{
		{"a", model.TypeFact, []string{"x"}, 3 * time.Minute},
		{"b", model.TypeTask, []string{"y"}, 2 * time.Minute},
		{"c", model.TypeFact, []string{"x", "y"}, 1 * time.Minute},
	} {
		m := model.Memory{
			ID:        tt.id,
			Title:     tt.id,
			Type:      tt.typ,
			Priority:  model.PriorityMedium,
			Tags:      tt.tags,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		_, err := s.Put(ctx, m)
		require.NoError(t, err)
	}

	results, err := s.Scan(ctx, model.Filter{Types: []model.MemoryType{model.TypeFact}}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "c", results[0].ID) // newest first
	require.Equal(t, "a", results[1].ID)

	tagged, err := s.Scan(ctx, model.Filter{Tags: []string{"y"}}, 10, 0)
	require.NoError(t, err)
	require.Len(t, tagged, 2)
}

func TestStatsCounts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := s.Put(ctx, model.Memory{ID: id, Title: id, Type: model.TypeFact, Priority: model.PriorityHigh})
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalMemories)
	require.Equal(t, 3, stats.ByType[model.TypeFact])
	require.Equal(t, 3, stats.ByPriority[model.PriorityHigh])
}
