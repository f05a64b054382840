// Package lexical implements the inverted BM25 index with Korean-aware
// morphological tokenization described in spec.md §4.3.
package lexical

import (
	"encoding/json"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/haneul-ai/recall/internal/model"
)

const (
	weightTitle   = 2.0
	weightContent = 1.0
	weightTags    = 1.5

	// DefaultK1 and DefaultB are the contract-level BM25 constants.
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Result is a single lexical match.
type Result struct {
	ID    string
	Score float32 // normalized to [0, 1] within the batch
}

type document struct {
	WeightedFreqs  map[string]float64 `json:"f"`
	WeightedLength float64            `json:"l"`
}

// Index is a BM25 inverted index over per-field-weighted term frequencies.
type Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	docs     map[string]*document
	inverted map[string]map[string]struct{} // term -> set of ids

	totalWeightedLen float64
}

// New creates an empty Index with the contract-level BM25 parameters.
func New() *Index {
	return NewWithParams(DefaultK1, DefaultB)
}

// NewWithParams creates an empty Index with caller-supplied k1/b, for
// configuration-driven overrides of the contract-level defaults.
func NewWithParams(k1, b float64) *Index {
	return &Index{
		k1:       k1,
		b:        b,
		docs:     make(map[string]*document),
		inverted: make(map[string]map[string]struct{}),
	}
}

func addWeighted(freqs map[string]float64, tokens []string, weight float64) {
	for _, t := range tokens {
		freqs[t] += weight
	}
}

// Add tokenizes title/content/tags and installs postings for id,
// atomically replacing any existing postings for that id.
func (ix *Index) Add(id, title, content string, tags []string) {
	titleTokens := tokenize(title)
	contentTokens := tokenize(content)
	tagTokens := tokenize(strings.Join(tags, " "))

	freqs := make(map[string]float64)
	addWeighted(freqs, titleTokens, weightTitle)
	addWeighted(freqs, contentTokens, weightContent)
	addWeighted(freqs, tagTokens, weightTags)

	var weightedLen float64
	for _, w := range freqs {
		weightedLen += w
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(id)

	doc := &document{WeightedFreqs: freqs, WeightedLength: weightedLen}
	ix.docs[id] = doc
	ix.totalWeightedLen += weightedLen

	for term := range freqs {
		if ix.inverted[term] == nil {
			ix.inverted[term] = make(map[string]struct{})
		}
		ix.inverted[term][id] = struct{}{}
	}
}

// Remove deletes all postings and document metadata for id.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id string) {
	doc, exists := ix.docs[id]
	if !exists {
		return
	}
	for term := range doc.WeightedFreqs {
		if ids, ok := ix.inverted[term]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(ix.inverted, term)
			}
		}
	}
	ix.totalWeightedLen -= doc.WeightedLength
	delete(ix.docs, id)
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// IDs returns every id currently indexed, used by the janitor's
// cross-store reconciliation sweep.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.docs))
	for id := range ix.docs {
		out = append(out, id)
	}
	return out
}

// Search tokenizes query identically to documents, scores candidates with
// BM25, and normalizes scores to [0, 1] by dividing by the batch's max
// score, optionally post-filtering to overIDs.
func (ix *Index) Search(query string, k int, overIDs map[string]struct{}) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.docs) == 0 {
		return nil
	}
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	avgDL := ix.totalWeightedLen / float64(len(ix.docs))

	candidates := make(map[string]struct{})
	for _, term := range queryTokens {
		for id := range ix.inverted[term] {
			if overIDs != nil {
				if _, allowed := overIDs[id]; !allowed {
					continue
				}
			}
			candidates[id] = struct{}{}
		}
	}

	type scored struct {
		id    string
		score float64
		doc   *document
	}
	results := make([]scored, 0, len(candidates))
	var maxScore float64
	for id := range candidates {
		doc := ix.docs[id]
		score := ix.scoreLocked(doc, queryTokens, avgDL)
		if score <= 0 {
			continue
		}
		results = append(results, scored{id: id, score: score, doc: doc})
		if score > maxScore {
			maxScore = score
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].doc.WeightedLength != results[j].doc.WeightedLength {
			return results[i].doc.WeightedLength < results[j].doc.WeightedLength
		}
		return results[i].id < results[j].id
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}

	out := make([]Result, len(results))
	for i, r := range results {
		norm := float32(0)
		if maxScore > 0 {
			norm = float32(r.score / maxScore)
		}
		out[i] = Result{ID: r.id, Score: norm}
	}
	return out
}

func (ix *Index) scoreLocked(doc *document, queryTokens []string, avgDL float64) float64 {
	score := 0.0
	n := float64(len(ix.docs))
	for _, term := range queryTokens {
		tf := doc.WeightedFreqs[term]
		if tf == 0 {
			continue
		}
		df := float64(len(ix.inverted[term]))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)
		numerator := tf * (ix.k1 + 1)
		denominator := tf + ix.k1*(1-ix.b+ix.b*doc.WeightedLength/avgDL)
		score += idf * numerator / denominator
	}
	return score
}

// Commit flushes the current in-memory index to path atomically
// (write-then-rename), satisfying the durable-segment persistence named
// in spec.md §6.
func (ix *Index) Commit(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	snapshot := struct {
		K1   float64              `json:"k1"`
		B    float64              `json:"b"`
		Docs map[string]*document `json:"docs"`
	}{K1: ix.k1, B: ix.b, Docs: ix.docs}

	enc, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, enc, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadIndex restores a previously committed snapshot.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snapshot struct {
		K1   float64              `json:"k1"`
		B    float64              `json:"b"`
		Docs map[string]*document `json:"docs"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, model.NewError("lexical.LoadIndex", model.KindIndexCorrupt, err)
	}

	k1, b := snapshot.K1, snapshot.B
	if k1 == 0 && b == 0 {
		k1, b = DefaultK1, DefaultB
	}
	ix := NewWithParams(k1, b)
	for id, doc := range snapshot.Docs {
		ix.docs[id] = doc
		ix.totalWeightedLen += doc.WeightedLength
		for term := range doc.WeightedFreqs {
			if ix.inverted[term] == nil {
				ix.inverted[term] = make(map[string]struct{})
			}
			ix.inverted[term][id] = struct{}{}
		}
	}
	return ix, nil
}
