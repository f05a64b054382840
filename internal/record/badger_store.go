package record

import (
	"context"
	"encoding/json"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/haneul-ai/recall/internal/model"
)

// Config configures the BadgerStore.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	CacheSize         int
}

// DefaultConfig returns sane defaults for an embedded deployment.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		SyncWrites:       true,
		ValueLogFileSize: 1 << 28, // 256 MiB
		CacheSize:        1000,
	}
}

// BadgerStore is the Store implementation backed by an embedded ordered
// key-value engine, satisfying spec.md §4.1's "any equivalent ordered KV"
// allowance for the record-of-truth substrate.
type BadgerStore struct {
	db    *badger.DB
	cache *lruCache
}

// Open opens (creating if absent) a BadgerStore at cfg.Path.
func Open(cfg Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, model.NewError("record.Open", model.KindIndexCorrupt, err)
	}
	return &BadgerStore{db: db, cache: newLRUCache(cfg.CacheSize)}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func encodeMemory(m model.Memory) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMemory(b []byte) (model.Memory, error) {
	var m model.Memory
	if err := json.Unmarshal(b, &m); err != nil {
		return model.Memory{}, err
	}
	return m, nil
}

func (s *BadgerStore) readLocked(txn *badger.Txn, id string) (model.Memory, bool, error) {
	item, err := txn.Get(recKey(id))
	if err == badger.ErrKeyNotFound {
		return model.Memory{}, false, nil
	}
	if err != nil {
		return model.Memory{}, false, err
	}
	var m model.Memory
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeMemory(val)
		if derr != nil {
			return derr
		}
		m = decoded
		return nil
	})
	if err != nil {
		return model.Memory{}, false, err
	}
	return m, true, nil
}

func removeSecondaryIndices(txn *badger.Txn, old model.Memory) error {
	if err := txn.Delete(typeIdxKey(string(old.Type), old.ID)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	for _, tag := range old.Tags {
		if err := txn.Delete(tagIdxKey(tag, old.ID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
	}
	if err := txn.Delete(tsIdxKey(old.CreatedAt, old.ID)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return nil
}

func writeSecondaryIndices(txn *badger.Txn, m model.Memory) error {
	if err := txn.Set(typeIdxKey(string(m.Type), m.ID), []byte{}); err != nil {
		return err
	}
	for _, tag := range m.Tags {
		if err := txn.Set(tagIdxKey(tag, m.ID), []byte{}); err != nil {
			return err
		}
	}
	if err := txn.Set(tsIdxKey(m.CreatedAt, m.ID), []byte{}); err != nil {
		return err
	}
	return nil
}

// Put upserts m. CreatedAt is preserved unconditionally from any existing
// row (see DESIGN.md Open Question decision #2); UpdatedAt is stamped at
// write time. A caller-visible Conflict is raised only when the persisted
// row's UpdatedAt is strictly newer than the UpdatedAt the caller last
// observed, signaling a lost update.
func (s *BadgerStore) Put(ctx context.Context, m model.Memory) (model.Memory, error) {
	now := time.Now().UTC()
	var result model.Memory

	err := s.db.Update(func(txn *badger.Txn) error {
		old, exists, err := s.readLocked(txn, m.ID)
		if err != nil {
			return err
		}
		if exists {
			if old.UpdatedAt.After(m.UpdatedAt) {
				return model.NewError("record.Put", model.KindConflict, nil)
			}
			m.CreatedAt = old.CreatedAt
			if err := removeSecondaryIndices(txn, old); err != nil {
				return err
			}
		} else {
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
		}
		m.UpdatedAt = now
		if m.LastAccessedAt.IsZero() {
			m.LastAccessedAt = m.CreatedAt
		}

		enc, err := encodeMemory(m)
		if err != nil {
			return err
		}
		if err := txn.Set(recKey(m.ID), enc); err != nil {
			return err
		}
		if err := writeSecondaryIndices(txn, m); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return model.Memory{}, err
	}
	s.cache.Put(result)
	return result.Clone(), nil
}

// Get reads a memory by id, optionally advancing LastAccessedAt as a
// persisted side effect of a retrieval-path read.
func (s *BadgerStore) Get(ctx context.Context, id string, advanceAccess bool) (model.Memory, error) {
	if !advanceAccess {
		if cached, ok := s.cache.Get(id); ok {
			return cached, nil
		}
	}

	var result model.Memory
	err := s.db.Update(func(txn *badger.Txn) error {
		m, exists, err := s.readLocked(txn, id)
		if err != nil {
			return err
		}
		if !exists {
			return model.NewError("record.Get", model.KindNotFound, nil)
		}
		if advanceAccess {
			m.LastAccessedAt = time.Now().UTC()
			m.AccessCount++
			enc, err := encodeMemory(m)
			if err != nil {
				return err
			}
			if err := txn.Set(recKey(id), enc); err != nil {
				return err
			}
		}
		result = m
		return nil
	})
	if err != nil {
		return model.Memory{}, err
	}
	s.cache.Put(result)
	return result.Clone(), nil
}

// Delete removes id, reporting whether a row was actually present.
func (s *BadgerStore) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.db.Update(func(txn *badger.Txn) error {
		old, exists, err := s.readLocked(txn, id)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := txn.Delete(recKey(id)); err != nil {
			return err
		}
		if err := removeSecondaryIndices(txn, old); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	s.cache.Delete(id)
	return removed, nil
}

// GetMany batch-fetches whichever of ids exist, without advancing access
// time — used internally by the hybrid searcher's candidate hydration.
func (s *BadgerStore) GetMany(ctx context.Context, ids []string) (map[string]model.Memory, error) {
	out := make(map[string]model.Memory, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			m, exists, err := s.readLocked(txn, id)
			if err != nil {
				return err
			}
			if exists {
				out[id] = m
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Scan returns memories matching filter, newest-created first.
func (s *BadgerStore) Scan(ctx context.Context, filter model.Filter, limit, offset int) ([]model.Memory, error) {
	var out []model.Memory
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		skipped := 0
		prefix := []byte(tsIdxPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := idFromTSKey(it.Item().KeyCopy(nil))
			if id == "" {
				continue
			}
			m, exists, err := s.readLocked(txn, id)
			if err != nil {
				return err
			}
			if !exists || !filter.Matches(m) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, m.Clone())
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stats summarizes the store's current contents.
func (s *BadgerStore) Stats(ctx context.Context) (model.Stats, error) {
	stats := model.Stats{
		ByType:     make(map[model.MemoryType]int),
		ByPriority: make(map[model.Priority]int),
	}
	all, err := s.All(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	stats.TotalMemories = len(all)
	for _, m := range all {
		stats.ByType[m.Type]++
		stats.ByPriority[m.Priority]++
		if stats.Oldest.IsZero() || m.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = m.CreatedAt
		}
		if stats.Newest.IsZero() || m.CreatedAt.After(stats.Newest) {
			stats.Newest = m.CreatedAt
		}
	}
	return stats, nil
}

// All iterates every memory in the store; used for index rebuilds and
// Stats.
func (s *BadgerStore) All(ctx context.Context) ([]model.Memory, error) {
	var out []model.Memory
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				m, derr := decodeMemory(val)
				if derr != nil {
					return derr
				}
				out = append(out, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
