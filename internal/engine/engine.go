// Package engine implements the Engine Facade: the single point of entry
// that owns the Record Store, Vector Index, and Lexical Index, and
// enforces consistency across them.
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haneul-ai/recall/internal/embedder"
	"github.com/haneul-ai/recall/internal/hybrid"
	"github.com/haneul-ai/recall/internal/lexical"
	"github.com/haneul-ai/recall/internal/logger"
	"github.com/haneul-ai/recall/internal/metrics"
	"github.com/haneul-ai/recall/internal/model"
	"github.com/haneul-ai/recall/internal/record"
	"github.com/haneul-ai/recall/internal/vecindex"
)

// Config configures the facade and everything it owns.
type Config struct {
	DataDir string

	VectorDimension int
	HNSW            vecindex.Params
	BM25K1          float64
	BM25B           float64

	Weights      model.Weights
	HalfLifeDays float64

	JanitorInterval time.Duration
	TombstoneTTL    time.Duration
	BusyQueueDepth  int
}

// DefaultConfig returns the contract-level defaults named in SPEC_FULL.md.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:         dataDir,
		VectorDimension: 1024,
		HNSW:            vecindex.DefaultParams(),
		BM25K1:          lexical.DefaultK1,
		BM25B:           lexical.DefaultB,
		Weights:         model.DefaultWeights(),
		HalfLifeDays:    30,
		JanitorInterval: 60 * time.Second,
		TombstoneTTL:    5 * time.Minute,
		BusyQueueDepth:  1024,
	}
}

func (c Config) vectorPath() string  { return filepath.Join(c.DataDir, "vector.idx") }
func (c Config) lexicalPath() string { return filepath.Join(c.DataDir, "lexical.idx") }
func (c Config) recordPath() string  { return filepath.Join(c.DataDir, "memories.db") }

// Facade is the Engine Facade: the only thing callers (transports) talk
// to. It owns all three stores; none is visible outside this package.
type Facade struct {
	cfg Config
	log logger.Logger
	met *metrics.Manager

	store    record.Store
	vector   *vecindex.Index
	lexical  *lexical.Index
	embedder embedder.Embedder
	searcher *hybrid.Searcher

	writeSem chan struct{}

	tombMu     sync.Mutex
	tombstones map[string]time.Time

	recovering atomic32

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

// atomic32 is a minimal atomic bool without importing sync/atomic's typed
// helpers at every call site.
type atomic32 struct {
	mu sync.RWMutex
	v  bool
}

func (a *atomic32) set(v bool) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomic32) get() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.v
}

// New wires a Facade over a store/vector/lexical/embedder that the caller
// has already constructed (used directly by tests; Open is the
// production entry point that also performs crash recovery).
func New(cfg Config, store record.Store, vector *vecindex.Index, lex *lexical.Index, emb embedder.Embedder, log logger.Logger, met *metrics.Manager) *Facade {
	if log == nil {
		log = logger.Global()
	}
	if met == nil {
		met = metrics.NoOpManager()
	}
	f := &Facade{
		cfg:         cfg,
		log:         log,
		met:         met,
		store:       store,
		vector:      vector,
		lexical:     lex,
		embedder:    emb,
		tombstones:  make(map[string]time.Time),
		writeSem:    make(chan struct{}, cfg.BusyQueueDepth),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	f.searcher = &hybrid.Searcher{
		Vector: vector, Lexical: lex, Embedder: emb, Store: store,
		Weights: cfg.Weights, HalfLifeDays: cfg.HalfLifeDays,
		IsTombstoned: f.isTombstoned,
	}
	return f
}

// Start begins the janitor reconciliation loop.
func (f *Facade) Start() {
	go f.runJanitor()
}

// Stop halts the janitor and persists both in-memory indexes.
func (f *Facade) Stop() error {
	close(f.stopJanitor)
	<-f.janitorDone

	if f.vector != nil {
		if err := f.vector.Save(f.cfg.vectorPath()); err != nil {
			f.log.Error("vector index save failed on shutdown", "error", err)
		}
	}
	if f.lexical != nil {
		if err := f.lexical.Commit(f.cfg.lexicalPath()); err != nil {
			f.log.Error("lexical index commit failed on shutdown", "error", err)
		}
	}
	return f.store.Close()
}

// StoreInput is the validated input to Store.
type StoreInput struct {
	Title    string
	Content  string
	Type     model.MemoryType
	Priority model.Priority
	Tags     []string
}

func (in StoreInput) validate() error {
	if len(in.Title) > 256 {
		return model.NewError("engine.Store", model.KindInvalidInput, nil)
	}
	if !in.Type.Valid() {
		return model.NewError("engine.Store", model.KindInvalidInput, nil)
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return model.NewError("engine.Store", model.KindInvalidInput, nil)
	}
	return nil
}

// Store assigns an id, writes to the Record Store first, then attempts to
// populate the Vector Index and Lexical Index. Embedder failure degrades
// to has_embedding=false without failing the write; total index failure
// surfaces as DegradedWrite while the record still persists.
func (f *Facade) Store(ctx context.Context, in StoreInput) (id string, hasEmbedding bool, err error) {
	if f.recovering.get() {
		return "", false, model.NewError("engine.Store", model.KindBusy, nil)
	}
	if err := in.validate(); err != nil {
		return "", false, err
	}

	select {
	case f.writeSem <- struct{}{}:
		defer func() { <-f.writeSem }()
	default:
		return "", false, model.NewError("engine.Store", model.KindBusy, nil)
	}

	now := time.Now().UTC()
	mem := model.Memory{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Content:        in.Content,
		Type:           in.Type,
		Priority:       in.Priority,
		Tags:           model.NormalizeTags(in.Tags),
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
	if mem.Priority == "" {
		mem.Priority = model.PriorityMedium
	}

	saved, err := f.store.Put(ctx, mem)
	if err != nil {
		f.met.ObserveStore("error")
		return "", false, err
	}

	indexedVector := f.indexVector(ctx, saved)
	indexedLexical := f.indexLexical(saved)

	if !indexedVector && !indexedLexical {
		f.log.Warn("memory persisted but no index accepted it", "id", saved.ID)
		f.met.IncDegradedWrites()
		f.met.ObserveStore("degraded")
		return saved.ID, false, model.NewError("engine.Store", model.KindDegradedWrite, nil)
	}

	if indexedVector {
		saved.HasEmbedding = true
		if _, err := f.store.Put(ctx, saved); err != nil {
			f.log.Error("failed to persist has_embedding flag", "id", saved.ID, "error", err)
		}
	}

	f.met.ObserveStore("ok")
	return saved.ID, indexedVector, nil
}

func (f *Facade) indexVector(ctx context.Context, m model.Memory) bool {
	if f.vector == nil || f.embedder == nil || !f.embedder.IsReady() {
		return false
	}
	vecs, err := f.embedder.Encode(ctx, []string{m.Title + " " + m.Content})
	if err != nil || len(vecs) == 0 {
		f.log.Warn("embedder encode failed, falling back to lexical-only", "id", m.ID, "error", err)
		return false
	}
	f.vector.Add(m.ID, vecs[0])
	return true
}

func (f *Facade) indexLexical(m model.Memory) bool {
	if f.lexical == nil {
		return false
	}
	f.lexical.Add(m.ID, m.Title, m.Content, m.Tags)
	return true
}

// Get reads a memory, advancing LastAccessedAt, and returns a defensive
// copy.
func (f *Facade) Get(ctx context.Context, id string) (model.Memory, error) {
	return f.store.Get(ctx, id, true)
}

// Delete removes id from the Record Store, Vector Index, and Lexical
// Index, in that order, returning whether a row was actually present.
func (f *Facade) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := f.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if f.vector != nil {
		f.vector.Remove(id)
	}
	if f.lexical != nil {
		f.lexical.Remove(id)
	}

	f.tombMu.Lock()
	f.tombstones[id] = time.Now().UTC()
	f.tombMu.Unlock()

	return true, nil
}

// Search delegates to the Hybrid Searcher.
func (f *Facade) Search(ctx context.Context, q model.Query) (model.SearchResponse, error) {
	start := time.Now()
	resp, err := f.searcher.Search(ctx, q, time.Now().UTC())
	f.met.ObserveSearch(string(resp.SearchMode), time.Since(start))
	return resp, err
}

// Stats summarizes the engine's current state.
func (f *Facade) Stats(ctx context.Context) (model.Stats, error) {
	stats, err := f.store.Stats(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	stats.HasEmbedder = f.embedder != nil && f.embedder.IsReady()

	switch {
	case stats.HasEmbedder && f.lexical != nil:
		stats.SearchMode = model.ModeHybrid
	case stats.HasEmbedder:
		stats.SearchMode = model.ModeVector
	default:
		stats.SearchMode = model.ModeLexical
	}

	if f.lexical != nil {
		stats.IndexedCount = f.lexical.Len()
		f.met.SetIndexSize("lexical", f.lexical.Len())
	}
	if f.vector != nil {
		f.met.SetIndexSize("vector", f.vector.Len())
	}
	return stats, nil
}
