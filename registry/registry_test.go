package registry

import (
	"testing"
	"time"

	"github.com/launix-de/markovchain/chainstore"
	"github.com/launix-de/markovchain/config"
	"github.com/launix-de/markovchain/schedule"
)

func testRegistry(t *testing.T, memoryLimit int64) (*StoreRegistry, *schedule.Scheduler) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ChainCacheMemoryLimitBytes = memoryLimit
	sched := &schedule.Scheduler{}
	reg := New(cfg, sched, func(tenantID string) chainstore.PersistenceEngine {
		return &chainstore.FileSnapshotStore{Dir: dir}
	})
	return reg, sched
}

func TestGetLazilyLoadsAndCaches(t *testing.T) {
	reg, sched := testRegistry(t, 0)
	defer sched.Stop()

	s1 := reg.Get("tenantA")
	s2 := reg.Get("tenantA")
	if s1 != s2 {
		t.Fatalf("expected same ChainStore instance on repeated Get")
	}
	if reg.Peek("tenantB") != nil {
		t.Fatalf("expected Peek on unaccessed tenant to return nil")
	}
}

func TestEvictForcesFlushAndRemovesFromCache(t *testing.T) {
	reg, sched := testRegistry(t, 0)
	defer sched.Stop()

	store := reg.Get("tenantA")
	store.AddRecord("a b", "c", 1)
	if !store.Dirty() {
		t.Fatalf("expected store dirty after AddRecord")
	}

	if err := reg.Evict("tenantA"); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if reg.Peek("tenantA") != nil {
		t.Fatalf("expected tenant removed from cache after Evict")
	}

	reloaded := reg.Get("tenantA")
	if stats := reloaded.Stats(); stats.PrefixCount != 1 {
		t.Fatalf("expected evicted store's flush to have persisted its data, got %+v", stats)
	}
}

func TestEvictionUnderMemoryPressureSkipsDirtyStores(t *testing.T) {
	reg, sched := testRegistry(t, 1) // ceiling far below any real store's footprint
	defer sched.Stop()

	a := reg.Get("tenantA")
	a.AddRecord("a b", "c", 1) // dirty: must not be evicted

	time.Sleep(5 * time.Millisecond) // ensure distinct lastUsed ordering
	reg.Get("tenantB")               // clean; triggers an eviction scan over the limit

	if reg.Peek("tenantA") == nil {
		t.Fatalf("dirty tenant should not have been evicted under pressure")
	}
}

func TestFlushAllFlushesOnlyDirtyStores(t *testing.T) {
	reg, sched := testRegistry(t, 0)
	defer sched.Stop()

	a := reg.Get("tenantA")
	a.AddRecord("a b", "c", 1)
	reg.Get("tenantB")

	reg.FlushAll()

	if a.Dirty() {
		t.Fatalf("expected tenantA clean after FlushAll")
	}
}

func TestTenantIDsListsCachedTenants(t *testing.T) {
	reg, sched := testRegistry(t, 0)
	defer sched.Stop()

	reg.Get("tenantA")
	reg.Get("tenantB")

	ids := reg.TenantIDs()
	if len(ids) != 2 {
		t.Fatalf("TenantIDs = %v, want 2 entries", ids)
	}
}
