package hybrid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haneul-ai/recall/internal/embedder"
	"github.com/haneul-ai/recall/internal/lexical"
	"github.com/haneul-ai/recall/internal/model"
	"github.com/haneul-ai/recall/internal/record"
	"github.com/haneul-ai/recall/internal/vecindex"
)

func newTestStore(t *testing.T) record.Store {
	t.Helper()
	s, err := record.Open(record.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKoreanInflectionTopHit(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newTestStore(t)

	mem, err := store.Put(ctx, model.Memory{
		ID:             "mem-1",
		Title:          "벡터테스트",
		Content:        "광안리 해변 산책 일정",
		Type:           model.TypeObservation,
		Priority:       model.PriorityHigh,
		LastAccessedAt: now,
	})
	require.NoError(t, err)

	lex := lexical.New()
	lex.Add(mem.ID, mem.Title, mem.Content, mem.Tags)

	mock := embedder.NewMock(8)
	vec := vecindex.New(8, vecindex.DefaultParams())
	v, _ := mock.Encode(ctx, []string{mem.Title + " " + mem.Content})
	vec.Add(mem.ID, v[0])

	s := &Searcher{Vector: vec, Lexical: lex, Embedder: mock, Store: store}

	resp, err := s.Search(ctx, model.Query{Text: "해변 산책 일정", Limit: 3, IndexOnly: true}, now)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)
	require.Equal(t, "mem-1", resp.Hits[0].Memory.ID)
	require.Greater(t, resp.Hits[0].ScoreBreakdown.Keyword, float32(0))
	require.Empty(t, resp.Hits[0].Memory.Content)
	require.Equal(t, model.ModeHybrid, resp.SearchMode)
}

func TestRecencyTieBreak(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newTestStore(t)

	recent, err := store.Put(ctx, model.Memory{
		ID: "recent", Title: "shared title text", Content: "shared content body",
		Type: model.TypeFact, Priority: model.PriorityMedium,
		LastAccessedAt: now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	old, err := store.Put(ctx, model.Memory{
		ID: "old", Title: "shared title text", Content: "shared content body",
		Type: model.TypeFact, Priority: model.PriorityMedium,
		LastAccessedAt: now.Add(-45 * 24 * time.Hour),
	})
	require.NoError(t, err)

	lex := lexical.New()
	lex.Add(recent.ID, recent.Title, recent.Content, nil)
	lex.Add(old.ID, old.Title, old.Content, nil)

	s := &Searcher{Lexical: lex, Store: store}

	resp, err := s.Search(ctx, model.Query{Text: "shared title text", Limit: 2, IndexOnly: true}, now)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	require.Equal(t, "recent", resp.Hits[0].Memory.ID)
	require.InDelta(t, 0.977, resp.Hits[0].ScoreBreakdown.Recency, 0.01)
	require.InDelta(t, 0.354, resp.Hits[1].ScoreBreakdown.Recency, 0.01)
	require.Equal(t, model.ModeLexical, resp.SearchMode)
}

func TestDegradedLexicalOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newTestStore(t)

	mem, err := store.Put(ctx, model.Memory{
		ID: "mem-1", Title: "no embedder here", Content: "plain text body",
		Type: model.TypeFact, Priority: model.PriorityLow, LastAccessedAt: now,
	})
	require.NoError(t, err)

	lex := lexical.New()
	lex.Add(mem.ID, mem.Title, mem.Content, nil)

	mock := embedder.NewMock(8)
	mock.SetReady(false)

	s := &Searcher{Lexical: lex, Embedder: mock, Store: store}

	resp, err := s.Search(ctx, model.Query{Text: "plain text", Limit: 5, IndexOnly: true}, now)
	require.NoError(t, err)
	require.Equal(t, model.ModeLexical, resp.SearchMode)
	require.NotEmpty(t, resp.Hits)
	require.Equal(t, float32(0), resp.Hits[0].ScoreBreakdown.Semantic)
}

func TestScoreBreakdownMatchesCombinedFormula(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newTestStore(t)

	mem, err := store.Put(ctx, model.Memory{
		ID: "mem-1", Title: "formula check", Content: "weighted sum test",
		Type: model.TypeFact, Priority: model.PriorityHigh, LastAccessedAt: now,
	})
	require.NoError(t, err)

	lex := lexical.New()
	lex.Add(mem.ID, mem.Title, mem.Content, nil)

	s := &Searcher{Lexical: lex, Store: store}
	resp, err := s.Search(ctx, model.Query{Text: "formula check", Limit: 1, IndexOnly: true}, now)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)

	hit := resp.Hits[0]
	expected := 0.60*hit.ScoreBreakdown.Semantic + 0.15*hit.ScoreBreakdown.Keyword +
		0.15*hit.ScoreBreakdown.Recency + 0.10*hit.ScoreBreakdown.Importance
	require.InDelta(t, expected, hit.Score, 1e-6)
}

func TestCustomWeightsRetuneScore(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newTestStore(t)

	mem, err := store.Put(ctx, model.Memory{
		ID: "mem-1", Title: "keyword only weighting", Content: "body text",
		Type: model.TypeFact, Priority: model.PriorityHigh, LastAccessedAt: now,
	})
	require.NoError(t, err)

	lex := lexical.New()
	lex.Add(mem.ID, mem.Title, mem.Content, nil)

	s := &Searcher{Lexical: lex, Store: store, Weights: model.Weights{Keyword: 1}}
	resp, err := s.Search(ctx, model.Query{Text: "keyword only weighting", Limit: 1, IndexOnly: true}, now)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)

	hit := resp.Hits[0]
	require.InDelta(t, float64(hit.ScoreBreakdown.Keyword), float64(hit.Score), 1e-6)
}

func TestTombstonedCandidateExcludedFromResults(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newTestStore(t)

	mem, err := store.Put(ctx, model.Memory{
		ID: "mem-1", Title: "deleted mid search", Content: "body text",
		Type: model.TypeFact, Priority: model.PriorityHigh, LastAccessedAt: now,
	})
	require.NoError(t, err)

	lex := lexical.New()
	lex.Add(mem.ID, mem.Title, mem.Content, nil)

	s := &Searcher{
		Lexical: lex, Store: store,
		IsTombstoned: func(id string) bool { return id == mem.ID },
	}
	resp, err := s.Search(ctx, model.Query{Text: "deleted mid search", Limit: 1, IndexOnly: true}, now)
	require.NoError(t, err)
	require.Empty(t, resp.Hits)
}
