package lexical

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKoreanInflectionMatchesStem(t *testing.T) {
	ix := New()
	ix.Add("mem-1", "벡터테스트", "광안리 해변 산책 일정", []string{"observation"})

	results := ix.Search("해변 산책 일정", 3, nil)
	require.NotEmpty(t, results)
	require.Equal(t, "mem-1", results[0].ID)
	require.Greater(t, results[0].Score, float32(0))
}

func TestAddReplacesExistingPostings(t *testing.T) {
	ix := New()
	ix.Add("mem-1", "first title", "first content", nil)
	ix.Add("mem-1", "second title", "second content", nil)

	require.Equal(t, 1, ix.Len())
	results := ix.Search("first", 5, nil)
	require.Empty(t, results)

	results = ix.Search("second", 5, nil)
	require.NotEmpty(t, results)
}

func TestRemoveDropsPostings(t *testing.T) {
	ix := New()
	ix.Add("mem-1", "title", "some content here", nil)
	ix.Remove("mem-1")

	require.Equal(t, 0, ix.Len())
	require.Empty(t, ix.Search("content", 5, nil))
}

func TestSearchNormalizesToUnitRange(t *testing.T) {
	ix := New()
	ix.Add("mem-1", "apples and oranges", "fruit basket", nil)
	ix.Add("mem-2", "apples", "apples apples apples fruit fruit", nil)

	results := ix.Search("apples fruit", 5, nil)
	require.NotEmpty(t, results)
	require.Equal(t, float32(1), results[0].Score)
	for _, r := range results {
		require.GreaterOrEqual(t, r.Score, float32(0))
		require.LessOrEqual(t, r.Score, float32(1))
	}
}

func TestFieldWeighting(t *testing.T) {
	ix := New()
	// "urgent" only in title of mem-1 (weight 2), only in content of mem-2 (weight 1).
	ix.Add("mem-1", "urgent task", "nothing special here at all", nil)
	ix.Add("mem-2", "ordinary task", "urgent follow up needed here", nil)

	results := ix.Search("urgent", 5, nil)
	require.Len(t, results, 2)
	require.Equal(t, "mem-1", results[0].ID)
}

func TestSearchOverIDsFilters(t *testing.T) {
	ix := New()
	ix.Add("mem-1", "shared term", "content", nil)
	ix.Add("mem-2", "shared term", "content", nil)

	results := ix.Search("shared", 5, map[string]struct{}{"mem-2": {}})
	require.Len(t, results, 1)
	require.Equal(t, "mem-2", results[0].ID)
}

func TestCommitLoadRoundTrip(t *testing.T) {
	ix := New()
	ix.Add("mem-1", "title", "some searchable content", []string{"tag1"})

	path := filepath.Join(t.TempDir(), "lexical.idx")
	require.NoError(t, ix.Commit(path))

	loaded, err := LoadIndex(path)
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())

	results := loaded.Search("searchable", 5, nil)
	require.NotEmpty(t, results)
	require.Equal(t, "mem-1", results[0].ID)
}
