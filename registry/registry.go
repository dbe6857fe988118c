/*
Copyright (C) 2026  Markovchain Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
// Package registry is the process-wide cache of ChainStores keyed by
// tenant id (spec §4.4). It is the sole owner of ChainStores; every
// other component borrows a reference through Get.
//
// Grounded on the teacher's storage/cache.go CacheManager and
// storage/database.go global table map: the single-goroutine
// op-channel shape of CacheManager is replaced here by a read-mostly
// lock-free index (github.com/launix-de/NonLockingReadMap, the one
// dependency the pack's companion module contributes) since tenant
// lookups vastly outnumber tenant creations, with a plain mutex
// retained only around the rare "create or evict" structural change.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	nlrm "github.com/launix-de/NonLockingReadMap"

	"github.com/launix-de/markovchain/chainstore"
	"github.com/launix-de/markovchain/config"
	"github.com/launix-de/markovchain/logging"
	"github.com/launix-de/markovchain/schedule"
)

// tenantEntry is the unit stored in the lock-free index. lastUsed is
// updated on every Get and read by the LRU eviction scan; both happen
// through the entry pointer, never through a copy, so plain atomic
// access is sufficient.
type tenantEntry struct {
	tenantID string
	store    *chainstore.ChainStore
	lastUsed int64 // unix nanoseconds, atomic
}

// GetKey and ComputeSize take value receivers, not pointer receivers:
// nlrm.NonLockingReadMap[tenantEntry, string] instantiates its
// KeyGetter[string] constraint against the value type tenantEntry, and
// a pointer-receiver method is excluded from a value type's method
// set. The map itself always stores and hands back *tenantEntry, so
// every other method (touch, touchedAt, and the struct fields) stays
// pointer-based; Go calls a value-receiver method through a pointer by
// dereferencing automatically, so entries.Get/GetAll/Set still work
// unchanged.
func (e tenantEntry) GetKey() string { return e.tenantID }

// ComputeSize approximates the entry's resident footprint the way the
// teacher's CacheManager sizes cached tables: the chain's own
// approximate footprint plus a fixed overhead for the entry and its
// persistence handle.
func (e tenantEntry) ComputeSize() uint {
	return uint(e.store.Stats().ApproxMemoryBytes) + 128
}

func (e *tenantEntry) touch() {
	atomic.StoreInt64(&e.lastUsed, time.Now().UnixNano())
}

func (e *tenantEntry) touchedAt() int64 {
	return atomic.LoadInt64(&e.lastUsed)
}

// PersistenceFactory builds the persistence backend a newly created
// tenant's ChainStore should snapshot through. Injected rather than
// hardcoded so the registry is agnostic to filesystem/S3/Ceph choice
// (spec §9 "avoid hidden globals").
type PersistenceFactory func(tenantID string) chainstore.PersistenceEngine

// StoreRegistry is the process-wide tenant -> ChainStore cache (spec
// §4.4).
type StoreRegistry struct {
	// mu guards the rare structural path: creating a new tenant's
	// store, or evicting one. Lookups of an already-cached tenant
	// never take it.
	mu      sync.Mutex
	entries nlrm.NonLockingReadMap[tenantEntry, string]

	memoryLimitBytes int64
	newPersistence   PersistenceFactory
	scheduler        *schedule.Scheduler
	stateSize        int
	saveDebounce     time.Duration
	compress         bool
	endOfLine        string
}

// New constructs a registry. cfg supplies stateSize, save debounce,
// the memory ceiling, and codec/sentinel choices for every tenant
// store it creates; newPersistence selects the backend (filesystem,
// S3, Ceph) per tenant.
func New(cfg config.Config, scheduler *schedule.Scheduler, newPersistence PersistenceFactory) *StoreRegistry {
	return &StoreRegistry{
		entries:          nlrm.New[tenantEntry, string](),
		memoryLimitBytes: cfg.ChainCacheMemoryLimitBytes,
		newPersistence:   newPersistence,
		scheduler:        scheduler,
		stateSize:        cfg.StateSize,
		saveDebounce:     cfg.ChainSaveDebounce,
		compress:         cfg.CompressSnapshots,
		endOfLine:        cfg.EndOfLineToken,
	}
}

// Get returns the ChainStore for tenantID, lazily loading it on first
// access (spec §4.4 "first access triggers load()"). Concurrent
// first-accesses for the same unseen tenant are serialized so exactly
// one Load runs.
func (r *StoreRegistry) Get(tenantID string) *chainstore.ChainStore {
	if e := r.entries.Get(tenantID); e != nil {
		e.touch()
		return e.store
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.entries.Get(tenantID); e != nil {
		e.touch()
		return e.store
	}

	store := chainstore.NewChainStore(tenantID, r.stateSize, r.newPersistence(tenantID), r.scheduler, r.saveDebounce, r.compress, r.endOfLine)
	store.Load()

	entry := &tenantEntry{tenantID: tenantID, store: store}
	entry.touch()
	r.entries.Set(entry)

	r.evictIfOverLimitLocked(tenantID)
	return store
}

// Peek returns the cached ChainStore for tenantID without triggering
// a load, or nil if the tenant has never been accessed. Useful for
// diagnostics that must not pull cold tenants into memory.
func (r *StoreRegistry) Peek(tenantID string) *chainstore.ChainStore {
	if e := r.entries.Get(tenantID); e != nil {
		return e.store
	}
	return nil
}

// TenantIDs lists every tenant currently cached.
func (r *StoreRegistry) TenantIDs() []string {
	all := r.entries.GetAll()
	ids := make([]string, len(all))
	for i, e := range all {
		ids[i] = e.tenantID
	}
	return ids
}

// Evict forces a synchronous flush of tenantID's store (waiting out
// any save already in flight, since Flush and a debounce fire share
// ChainStore's saveMu) and removes it from the cache regardless of
// dirty state (spec §4.4 "a forced eviction waits on an in-flight
// save"). A no-op if the tenant is not cached.
func (r *StoreRegistry) Evict(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries.Get(tenantID)
	if e == nil {
		return nil
	}
	if err := e.store.Flush(); err != nil {
		return err
	}
	r.entries.Remove(tenantID)
	return nil
}

// FlushAll forces a synchronous save of every cached, dirty store.
// Grounded on the teacher's process-exit flush hook, wired to
// github.com/dc0d/onexit by cmd/markovd.
func (r *StoreRegistry) FlushAll() {
	for _, e := range r.entries.GetAll() {
		if !e.store.Dirty() {
			continue
		}
		if err := e.store.Flush(); err != nil {
			logging.Printf("registry: flush on exit failed for tenant %s: %v", e.tenantID, err)
		}
	}
}

// evictIfOverLimitLocked repeatedly evicts the least-recently-used
// dirty-free store until the cache is back under the memory ceiling,
// or until every remaining candidate is dirty, in which case eviction is
// deferred to a later call (spec §4.4: "eviction is deferred until
// the store is dirty-free"). The store for keep, which Get is about to
// return, is never chosen. Caller must hold mu.
func (r *StoreRegistry) evictIfOverLimitLocked(keep string) {
	if r.memoryLimitBytes <= 0 {
		return
	}
	for {
		all := r.entries.GetAll()
		var total int64
		for _, e := range all {
			total += int64(e.ComputeSize())
		}
		if total <= r.memoryLimitBytes {
			return
		}

		var oldest *tenantEntry
		for _, e := range all {
			if e.tenantID == keep || e.store.Dirty() {
				continue
			}
			if oldest == nil || e.touchedAt() < oldest.touchedAt() {
				oldest = e
			}
		}
		if oldest == nil {
			logging.Printf("registry: over memory ceiling (%d bytes) but every other cached store is dirty, deferring eviction", r.memoryLimitBytes)
			return
		}
		r.entries.Remove(oldest.tenantID)
		logging.Printf("registry: evicted tenant %s under memory pressure", oldest.tenantID)
	}
}
