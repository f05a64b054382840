package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haneul-ai/recall/internal/engine"
	"github.com/haneul-ai/recall/internal/model"
)

type fakeStorer struct {
	mu      sync.Mutex
	inputs  []engine.StoreInput
	storeCh chan struct{}
}

func newFakeStorer() *fakeStorer {
	return &fakeStorer{storeCh: make(chan struct{}, 16)}
}

func (f *fakeStorer) Store(_ context.Context, in engine.StoreInput) (string, bool, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	f.storeCh <- struct{}{}
	return "fake-id", false, nil
}

func (f *fakeStorer) snapshot() []engine.StoreInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.StoreInput, len(f.inputs))
	copy(out, f.inputs)
	return out
}

func TestReadMemoryFileSplitsTitleAndContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# My Title\n\nbody line one\nbody line two\n"), 0o644))

	title, content, err := readMemoryFile(path)
	require.NoError(t, err)
	require.Equal(t, "My Title", title)
	require.Contains(t, content, "body line one")
}

func TestReadMemoryFileFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "untitled.md")
	require.NoError(t, os.WriteFile(path, []byte("\njust body text\n"), 0o644))

	title, _, err := readMemoryFile(path)
	require.NoError(t, err)
	require.Equal(t, "untitled.md", title)
}

func TestWatcherIngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	sto := newFakeStorer()

	cfg := DefaultConfig([]string{dir})
	cfg.Debounce = 10 * time.Millisecond

	w, err := New(cfg, sto, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	path := filepath.Join(dir, "new-note.md")
	require.NoError(t, os.WriteFile(path, []byte("# Hello\n\nworld\n"), 0o644))

	select {
	case <-sto.storeCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ingest")
	}

	inputs := sto.snapshot()
	require.Len(t, inputs, 1)
	require.Equal(t, "Hello", inputs[0].Title)
	require.Equal(t, model.TypeObservation, inputs[0].Type)
}

func TestWatcherIgnoresNonMatchingExtensions(t *testing.T) {
	dir := t.TempDir()
	sto := newFakeStorer()

	cfg := DefaultConfig([]string{dir})
	cfg.Debounce = 10 * time.Millisecond

	w, err := New(cfg, sto, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	path := filepath.Join(dir, "ignored.txt")
	require.NoError(t, os.WriteFile(path, []byte("not markdown"), 0o644))

	select {
	case <-sto.storeCh:
		t.Fatal("unexpected ingest of non-markdown file")
	case <-time.After(200 * time.Millisecond):
	}
}
