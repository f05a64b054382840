package engine

import (
	"context"
	"errors"
	"os"

	"github.com/haneul-ai/recall/internal/embedder"
	"github.com/haneul-ai/recall/internal/lexical"
	"github.com/haneul-ai/recall/internal/logger"
	"github.com/haneul-ai/recall/internal/metrics"
	"github.com/haneul-ai/recall/internal/model"
	"github.com/haneul-ai/recall/internal/record"
	"github.com/haneul-ai/recall/internal/vecindex"
)

// Open opens (or creates) the Record Store and attempts to load both
// indices from their last committed snapshots. A corrupt or
// dimension-mismatched snapshot triggers a full rebuild from the Record
// Store rather than a failed startup: writes are held behind the busy
// semaphore (via f.recovering) until the rebuild finishes, while Get and
// degraded Search remain available throughout.
func Open(ctx context.Context, cfg Config, emb embedder.Embedder, log logger.Logger, met *metrics.Manager) (*Facade, error) {
	if log == nil {
		log = logger.Global()
	}
	if met == nil {
		met = metrics.NoOpManager()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	store, err := record.Open(record.DefaultConfig(cfg.recordPath()))
	if err != nil {
		return nil, err
	}

	vector, vectorClean := loadOrEmptyVector(cfg, log)
	lex, lexicalClean := loadOrEmptyLexical(cfg, log)

	f := New(cfg, store, vector, lex, emb, log, met)

	if !vectorClean || !lexicalClean {
		f.recovering.set(true)
		go f.rebuild(vectorClean, lexicalClean)
	}

	return f, nil
}

func loadOrEmptyVector(cfg Config, log logger.Logger) (*vecindex.Index, bool) {
	idx, err := vecindex.Load(cfg.vectorPath())
	if err == nil {
		if idx.Dim() != cfg.VectorDimension {
			log.Warn("vector index dimension mismatch, rebuilding", "want", cfg.VectorDimension, "got", idx.Dim())
			return vecindex.New(cfg.VectorDimension, cfg.HNSW), false
		}
		return idx, true
	}
	if !errors.Is(err, os.ErrNotExist) {
		var kind model.Kind
		if k, ok := model.KindOf(err); ok {
			kind = k
		}
		log.Warn("vector index load failed, rebuilding", "error", err, "kind", kind)
	}
	return vecindex.New(cfg.VectorDimension, cfg.HNSW), false
}

func loadOrEmptyLexical(cfg Config, log logger.Logger) (*lexical.Index, bool) {
	idx, err := lexical.LoadIndex(cfg.lexicalPath())
	if err == nil {
		return idx, true
	}
	if !errors.Is(err, os.ErrNotExist) {
		log.Warn("lexical index load failed, rebuilding", "error", err)
	}
	return lexical.NewWithParams(cfg.BM25K1, cfg.BM25B), false
}

// rebuild replays every record in the Record Store into whichever
// indices were not cleanly restored from disk, then releases the busy
// gate. When the vector branch needs rebuilding and the embedder is
// ready, records are re-embedded so search degrades only for the
// duration of the rebuild rather than permanently falling back to
// lexical-only after a vector-snapshot corruption.
func (f *Facade) rebuild(vectorClean, lexicalClean bool) {
	defer f.recovering.set(false)

	ctx := context.Background()
	all, err := f.store.All(ctx)
	if err != nil {
		f.log.Error("rebuild failed to scan record store", "error", err)
		return
	}

	reembed := !vectorClean && f.vector != nil && f.embedder != nil && f.embedder.IsReady()
	reembedded := 0
	for _, m := range all {
		if !lexicalClean && f.lexical != nil {
			f.lexical.Add(m.ID, m.Title, m.Content, m.Tags)
		}
		if reembed {
			if f.indexVector(ctx, m) {
				reembedded++
				if !m.HasEmbedding {
					m.HasEmbedding = true
					if _, err := f.store.Put(ctx, m); err != nil {
						f.log.Error("failed to persist has_embedding after rebuild", "id", m.ID, "error", err)
					}
				}
			}
		}
	}
	if !vectorClean && !reembed {
		f.log.Info("vector index rebuilt empty; embedder unavailable for re-embedding", "records", len(all))
	} else if reembed {
		f.log.Info("vector index rebuilt via re-embedding", "records", len(all), "reembedded", reembedded)
	}

	f.log.Info("index rebuild complete", "records", len(all))
}
