// Package hybrid implements the Hybrid Searcher: it composes the Vector
// Index and Lexical Index, fuses their scores with recency and
// importance, and returns a deterministic, auditable ranking.
package hybrid

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/haneul-ai/recall/internal/embedder"
	"github.com/haneul-ai/recall/internal/lexical"
	"github.com/haneul-ai/recall/internal/model"
	"github.com/haneul-ai/recall/internal/record"
	"github.com/haneul-ai/recall/internal/vecindex"
)

const defaultHalfLifeDays = 30.0

// Searcher composes the two indexes and the record store into the fusion
// algorithm of spec.md §4.4.
//
// Grounded structurally on the teacher's pkg/memory/hybrid.go (parallel
// dense+lexical fan-out via sync.WaitGroup, graceful single-branch
// degradation); the fusion formula itself follows
// original_source/crates/search/src/{hybrid,scoring}.rs's weighted-sum
// contract, not the teacher's RRF (see DESIGN.md).
type Searcher struct {
	Vector   *vecindex.Index // nil if the vector branch is unavailable
	Lexical  *lexical.Index  // nil if the lexical branch is unavailable
	Embedder embedder.Embedder
	Store    record.Store

	// Weights and HalfLifeDays retune the fusion formula. Zero value
	// (the Searcher's default) falls back to model.DefaultWeights and
	// defaultHalfLifeDays respectively.
	Weights      model.Weights
	HalfLifeDays float64

	// IsTombstoned reports whether id was deleted within the current
	// tombstone drain window. A candidate still surfaced by the Vector or
	// Lexical Index because its Remove call hadn't landed yet is excluded
	// here instead of riding through to the Record Store lookup. Nil
	// disables the check.
	IsTombstoned func(id string) bool
}

func (s *Searcher) weights() model.Weights {
	if s.Weights == (model.Weights{}) {
		return model.DefaultWeights()
	}
	return s.Weights
}

func (s *Searcher) halfLifeDays() float64 {
	if s.HalfLifeDays <= 0 {
		return defaultHalfLifeDays
	}
	return s.HalfLifeDays
}

func clip01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func recencyScore(lastAccessed time.Time, now time.Time, halfLifeDays float64) float32 {
	days := now.Sub(lastAccessed).Hours() / 24.0
	if days < 0 {
		days = 0
	}
	return float32(math.Exp(-math.Ln2 / halfLifeDays * days))
}

type candidateScore struct {
	id       string
	semantic float32
	keyword  float32
	haveSem  bool
	haveKw   bool
}

// Search runs the full hybrid retrieval algorithm for q against now
// (injected for deterministic recency scoring in tests).
func (s *Searcher) Search(ctx context.Context, q model.Query, now time.Time) (model.SearchResponse, error) {
	if q.Limit <= 0 {
		return model.SearchResponse{}, model.NewError("hybrid.Search", model.KindInvalidInput, nil)
	}
	if q.Text == "" {
		return model.SearchResponse{}, model.NewError("hybrid.Search", model.KindInvalidInput, nil)
	}

	k := q.Limit
	fetchK := 4 * k
	if fetchK < 20 {
		fetchK = 20
	}

	var (
		vectorResults  []vecindex.Result
		lexicalResults []lexical.Result
		wg             sync.WaitGroup
	)

	semanticAvailable := s.Embedder != nil && s.Embedder.IsReady() && s.Vector != nil
	lexicalAvailable := s.Lexical != nil

	if semanticAvailable {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vecs, err := s.Embedder.Encode(ctx, []string{q.Text})
			if err != nil || len(vecs) == 0 {
				return
			}
			vectorResults = s.Vector.Search(vecs[0], fetchK, nil)
		}()
	}

	if lexicalAvailable {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lexicalResults = s.Lexical.Search(q.Text, fetchK, nil)
		}()
	}

	wg.Wait()

	searchMode := model.ModeHybrid
	switch {
	case semanticAvailable && !lexicalAvailable:
		searchMode = model.ModeVector
	case !semanticAvailable && lexicalAvailable:
		searchMode = model.ModeLexical
	case !semanticAvailable && !lexicalAvailable:
		searchMode = model.ModeLexical
	}

	merged := make(map[string]*candidateScore)
	for _, r := range vectorResults {
		merged[r.ID] = &candidateScore{id: r.ID, semantic: clip01(r.Similarity), haveSem: true}
	}
	for _, r := range lexicalResults {
		c, ok := merged[r.ID]
		if !ok {
			c = &candidateScore{id: r.ID}
			merged[r.ID] = c
		}
		c.keyword = clip01(r.Score)
		c.haveKw = true
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		if s.IsTombstoned != nil && s.IsTombstoned(id) {
			continue
		}
		ids = append(ids, id)
	}

	memories, err := s.Store.GetMany(ctx, ids)
	if err != nil {
		return model.SearchResponse{}, err
	}

	hits := make([]model.SearchHit, 0, len(merged))
	partial := false

	for _, id := range ids {
		select {
		case <-ctx.Done():
			partial = true
		default:
		}
		if partial {
			break
		}

		mem, ok := memories[id]
		if !ok {
			continue
		}
		if !q.Filter.Matches(mem) {
			continue
		}

		c := merged[id]
		breakdown := model.ScoreBreakdown{
			Semantic:   c.semantic,
			Keyword:    c.keyword,
			Recency:    recencyScore(mem.LastAccessedAt, now, s.halfLifeDays()),
			Importance: mem.Priority.Weight(),
		}
		hits = append(hits, model.SearchHit{
			Memory:         mem,
			Score:          breakdown.CombineWeighted(s.weights()),
			ScoreBreakdown: breakdown,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Memory.LastAccessedAt.Equal(hits[j].Memory.LastAccessedAt) {
			return hits[i].Memory.LastAccessedAt.After(hits[j].Memory.LastAccessedAt)
		}
		return hits[i].Memory.ID < hits[j].Memory.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	if q.IndexOnly {
		for i := range hits {
			hits[i].Memory.Content = ""
		}
	} else {
		for i := range hits {
			hydrated, err := s.Store.Get(ctx, hits[i].Memory.ID, true)
			if err == nil {
				hits[i].Memory = hydrated
			}
		}
	}

	return model.SearchResponse{Hits: hits, SearchMode: searchMode, Partial: partial}, nil
}
