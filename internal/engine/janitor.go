package engine

import (
	"context"
	"time"
)

// runJanitor sweeps every JanitorInterval, reconciling the Vector Index
// and Lexical Index against the Record Store's id set, and purges
// tombstones older than TombstoneTTL.
func (f *Facade) runJanitor() {
	defer close(f.janitorDone)

	interval := f.cfg.JanitorInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopJanitor:
			return
		case <-ticker.C:
			f.sweep()
		}
	}
}

// sweep performs one reconciliation pass. It is a separate unexported
// method so tests in this package can drive it synchronously instead of
// waiting on the ticker.
func (f *Facade) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repairs := f.reconcileIndices(ctx)
	repairs += f.purgeTombstones()

	if repairs > 0 {
		f.met.IncJanitorRepairs(repairs)
		f.log.Info("janitor sweep repaired inconsistencies", "count", repairs)
	}
}

// reconcileIndices reconciles both indexes against the Record Store in
// both directions: an index entry whose backing record is gone is an
// orphan (a tombstoned delete, or a partial-delete failure, that never
// finished clearing the index) and is dropped; a record present in the
// store but missing from an index (a degraded write, or a partial-index
// failure on an update) is re-added.
func (f *Facade) reconcileIndices(ctx context.Context) int {
	repairs := f.dropOrphans(ctx)
	repairs += f.reindexMissing(ctx)
	return repairs
}

// dropOrphans removes index entries whose backing record no longer
// exists in the Record Store.
func (f *Facade) dropOrphans(ctx context.Context) int {
	repairs := 0

	if f.vector != nil {
		for _, id := range f.vector.IDs() {
			if _, err := f.store.Get(ctx, id, false); err != nil {
				f.vector.Remove(id)
				repairs++
			}
		}
	}
	if f.lexical != nil {
		for _, id := range f.lexical.IDs() {
			if _, err := f.store.Get(ctx, id, false); err != nil {
				f.lexical.Remove(id)
				repairs++
			}
		}
	}
	return repairs
}

// reindexMissing scans every record in the Record Store and re-adds it to
// whichever index is missing it, re-embedding through f.embedder when the
// vector branch needs repair and the embedder is ready. Records that
// still can't be vector-indexed (embedder unavailable) are left for the
// next sweep.
func (f *Facade) reindexMissing(ctx context.Context) int {
	if f.vector == nil && f.lexical == nil {
		return 0
	}

	all, err := f.store.All(ctx)
	if err != nil {
		f.log.Error("janitor failed to scan record store", "error", err)
		return 0
	}

	var vectorHave, lexicalHave map[string]struct{}
	if f.vector != nil {
		vectorHave = toSet(f.vector.IDs())
	}
	if f.lexical != nil {
		lexicalHave = toSet(f.lexical.IDs())
	}

	repairs := 0
	for _, m := range all {
		if _, haveVec := vectorHave[m.ID]; f.vector != nil && !haveVec {
			if f.indexVector(ctx, m) {
				m.HasEmbedding = true
				if _, err := f.store.Put(ctx, m); err != nil {
					f.log.Error("failed to persist has_embedding after reindex", "id", m.ID, "error", err)
				}
				repairs++
			}
		}
		if _, haveLex := lexicalHave[m.ID]; f.lexical != nil && !haveLex {
			f.indexLexical(m)
			repairs++
		}
	}
	return repairs
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// purgeTombstones forgets delete markers older than TombstoneTTL. The
// marker only exists to let a racing in-flight search exclude an id that
// was deleted mid-search; once the TTL elapses no such race can still be
// in flight.
func (f *Facade) purgeTombstones() int {
	ttl := f.cfg.TombstoneTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-ttl)

	f.tombMu.Lock()
	defer f.tombMu.Unlock()

	purged := 0
	for id, at := range f.tombstones {
		if at.Before(cutoff) {
			delete(f.tombstones, id)
			purged++
		}
	}
	return purged
}

// isTombstoned reports whether id was deleted within the last
// TombstoneTTL window.
func (f *Facade) isTombstoned(id string) bool {
	f.tombMu.Lock()
	defer f.tombMu.Unlock()
	_, ok := f.tombstones[id]
	return ok
}
