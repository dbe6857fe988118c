package chainstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/launix-de/markovchain/schedule"
)

func newTestStore(t *testing.T, dir string, debounce time.Duration) (*ChainStore, *schedule.Scheduler) {
	t.Helper()
	sched := &schedule.Scheduler{}
	store := NewChainStore("t1", 2, &FileSnapshotStore{Dir: dir}, sched, debounce, false, "")
	return store, sched
}

func TestAddRecordAndSample(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()

	if err := store.AddRecord("a b", "c", 1); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if err := store.AddRecord("a b", "d", 3); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		tok, ok := store.GetNext("a b")
		if !ok {
			t.Fatalf("GetNext returned false")
		}
		counts[tok]++
	}
	freq := float64(counts["d"]) / 10000.0
	if freq < 0.72 || freq > 0.78 {
		t.Fatalf("frequency of d = %v, want in [0.72, 0.78]", freq)
	}
}

func TestAddRecordInvalidInput(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()

	if err := store.AddRecord("", "c", 1); err == nil {
		t.Fatalf("expected error for empty prefix")
	}
	if err := store.AddRecord("a b", "c", 0); err == nil {
		t.Fatalf("expected error for zero weight")
	}
}

func TestAddBatchPartialFailure(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()

	records := []TrainingRecord{
		{Prefix: "a b", Suffix: "c", Weight: 1},
		{Prefix: "", Suffix: "bad", Weight: 1},
		{Prefix: "a b", Suffix: "d", Weight: 2},
	}
	inserted, failures := store.AddBatch(records)
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}
	if len(failures) != 1 || failures[0].Index != 1 {
		t.Fatalf("failures = %+v, want one failure at index 1", failures)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	store.AddRecord("a b", "c", 1)
	store.AddRecord("a b", "d", 3)
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	sched.Stop()

	reloaded, sched2 := newTestStore(t, dir, time.Hour)
	defer sched2.Stop()
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	stats := reloaded.Stats()
	if stats.PrefixCount != 1 || stats.TotalSuffixes != 2 {
		t.Fatalf("stats after reload = %+v", stats)
	}
}

func TestClearThenSaveThenReloadIsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	store.AddRecord("a b", "c", 1)
	store.Clear()
	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	sched.Stop()

	reloaded, sched2 := newTestStore(t, dir, time.Hour)
	defer sched2.Stop()
	reloaded.Load()
	if stats := reloaded.Stats(); stats.PrefixCount != 0 {
		t.Fatalf("expected zero prefixes after clear+save+reload, got %+v", stats)
	}
}

func TestRemovePrefix(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()
	store.AddRecord("a b", "c", 1)

	if !store.RemovePrefix("a b") {
		t.Fatalf("expected RemovePrefix to report present")
	}
	if store.RemovePrefix("a b") {
		t.Fatalf("expected second RemovePrefix to report absent")
	}
	if _, ok := store.GetNext("a b"); ok {
		t.Fatalf("expected no suffix after RemovePrefix")
	}
}

func TestCorruptSnapshotRecovery(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "markov_t1.json"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()

	if err := store.Load(); err != nil {
		t.Fatalf("Load should swallow corruption, got: %v", err)
	}
	if stats := store.Stats(); stats.PrefixCount != 0 {
		t.Fatalf("expected empty store after corrupt load, got %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(dir, "markov_t1.json")); err != nil {
		t.Fatalf("corrupt file should remain on disk: %v", err)
	}
}

func TestDebounceFiresOnceAfterBurst(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, 200*time.Millisecond)
	defer sched.Stop()

	for i := 0; i < 10; i++ {
		store.AddRecord("a b", "c", 1)
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	data, err := os.ReadFile(filepath.Join(dir, "markov_t1.json"))
	if err != nil {
		t.Fatalf("expected snapshot file after debounce fired: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty snapshot")
	}
	if store.Dirty() {
		t.Fatalf("expected store clean after debounced save")
	}
}

func TestGenerateZeroPrefixStoreReturnsSeed(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()

	seed := []string{"x", "y"}
	out := store.Generate(seed, 10)
	if len(out) != len(seed) {
		t.Fatalf("Generate on empty store = %v, want exactly seed %v", out, seed)
	}
}

func TestGenerateWalksChain(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()

	store.AddRecord("a b", "c", 1)
	store.AddRecord("b c", "d", 1)
	store.AddRecord("c d", "e", 1)

	out := store.Generate([]string{"a", "b"}, 5)
	want := []string{"a", "b", "c", "d", "e"}
	if len(out) != len(want) {
		t.Fatalf("Generate = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Generate = %v, want %v", out, want)
		}
	}
}

func TestGenerateStopsAtEndOfLineToken(t *testing.T) {
	dir := t.TempDir()
	sched := &schedule.Scheduler{}
	defer sched.Stop()
	store := NewChainStore("t1", 2, &FileSnapshotStore{Dir: dir}, sched, time.Hour, false, "<eol>")
	store.AddRecord("a b", "<eol>", 1)

	out := store.Generate([]string{"a", "b"}, 10)
	if len(out) != 2 {
		t.Fatalf("Generate should stop before emitting the eol sentinel, got %v", out)
	}
}

func TestConcurrentTrainAndReadNoPanic(t *testing.T) {
	dir := t.TempDir()
	store, sched := newTestStore(t, dir, time.Hour)
	defer sched.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			store.AddRecord("train prefix", "tok", 1)
		}
	}()
	go func() {
		defer wg.Done()
		store.AddRecord("read prefix", "seed", 1)
		prevCount := 0
		for i := 0; i < 10000; i++ {
			store.GetNext("read prefix")
			if c := store.Stats().PrefixCount; c < prevCount {
				t.Errorf("prefixCount went backwards: %d -> %d", prevCount, c)
			} else {
				prevCount = c
			}
		}
	}()
	wg.Wait()
}
