package markovchain

import (
	"context"
	"testing"

	"github.com/launix-de/markovchain/config"
	"github.com/launix-de/markovchain/ingest"
	"github.com/launix-de/markovchain/lockfile"
)

type testSource struct {
	texts []string
	idx   int
}

func (s *testSource) Next() (ingest.Message, bool, error) {
	if s.idx >= len(s.texts) {
		return ingest.Message{}, true, nil
	}
	msg := ingest.Message{Text: s.texts[s.idx]}
	s.idx++
	return msg, false, nil
}

func (s *testSource) Close() error { return nil }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.ConfigDir = dir
	cfg.WorkerPoolSize = 2
	e := New(cfg, nil)
	t.Cleanup(e.Shutdown)
	return e
}

func TestEngineTrainFromSourceAndSample(t *testing.T) {
	e := newTestEngine(t)
	src := &testSource{texts: []string{"a b c", "a b d", "a b d"}}

	result, err := e.TrainFromSource(context.Background(), "tenant-1", src)
	if err != nil {
		t.Fatalf("TrainFromSource: %v", err)
	}
	if result.RecordsInserted == 0 {
		t.Fatalf("expected records inserted, got 0")
	}

	store := e.Tenant("tenant-1")
	if got := store.Stats().PrefixCount; got == 0 {
		t.Fatalf("PrefixCount = %d, want > 0", got)
	}
}

func TestEngineConcurrentTrainLockContention(t *testing.T) {
	e := newTestEngine(t)
	lock, err := lockfile.Acquire(e.Config().ConfigDir, "tenant-2")
	if err != nil {
		t.Fatalf("lockfile.Acquire: %v", err)
	}
	defer lock.Release()

	src := &testSource{texts: []string{"a b c"}}
	_, err = e.TrainFromSource(context.Background(), "tenant-2", src)
	if err == nil {
		t.Fatal("TrainFromSource succeeded while lock held, want Contention")
	}
}

func TestEngineTenantIsLazilyCreated(t *testing.T) {
	e := newTestEngine(t)
	store := e.Tenant("fresh-tenant")
	if store.Stats().PrefixCount != 0 {
		t.Fatalf("fresh tenant should start empty")
	}
}
