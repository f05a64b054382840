// Package record implements the durable record-of-truth for memory
// entries: a persistent key-value store over id -> Memory with secondary
// access by type, tag, and newest-first scan order.
package record

import (
	"context"

	"github.com/haneul-ai/recall/internal/model"
)

// Store is the durable record-of-truth contract. Implementations must
// provide read-after-write consistency for a single writer and snapshot
// isolation for concurrent readers.
type Store interface {
	// Put upserts a memory. It keeps the caller's LastAccessedAt, filling
	// it from CreatedAt only when it is zero. It fails with model.ErrConflict if a row with
	// this id already exists with a strictly newer UpdatedAt than the
	// caller's view (stale write).
	Put(ctx context.Context, m model.Memory) (model.Memory, error)

	// Get reads a memory by id. When advanceAccess is true (a retrieval
	// path, not internal maintenance), LastAccessedAt is bumped and
	// persisted before the value is returned.
	Get(ctx context.Context, id string, advanceAccess bool) (model.Memory, error)

	// Delete removes a memory, returning whether a row was actually
	// present. Idempotent.
	Delete(ctx context.Context, id string) (bool, error)

	// GetMany batch-fetches ids that exist, silently skipping ids that
	// don't. Never advances access time — used for internal hydration
	// inside the hybrid searcher's candidate resolution step.
	GetMany(ctx context.Context, ids []string) (map[string]model.Memory, error)

	// Scan returns memories matching filter, newest first, bounded by
	// limit/offset.
	Scan(ctx context.Context, filter model.Filter, limit, offset int) ([]model.Memory, error)

	// Stats summarizes the store's current contents.
	Stats(ctx context.Context) (model.Stats, error)

	// All iterates every memory in the store, used for index rebuilds.
	All(ctx context.Context) ([]model.Memory, error)

	Close() error
}
