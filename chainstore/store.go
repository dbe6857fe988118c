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
package chainstore

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/launix-de/markovchain/errs"
	"github.com/launix-de/markovchain/logging"
	"github.com/launix-de/markovchain/schedule"
)

// JoinPrefix renders an ordered token tuple into the canonical
// space-joined map key used for both PrefixEntry lookup and snapshot
// serialization (spec §3).
func JoinPrefix(tokens []string) string {
	return strings.Join(tokens, " ")
}

// TrainingRecord is a normalized (prefix, suffix, weight) observation,
// produced by the ingest batcher from either live traffic or an
// external import (spec §3).
type TrainingRecord struct {
	Prefix string
	Suffix string
	Weight uint64
}

// Stats is the result of ChainStore.Stats (spec §4.3).
type Stats struct {
	PrefixCount       int
	TotalSuffixes     int
	ApproxMemoryBytes int64
}

// ChainStore is a per-tenant map of prefix -> PrefixEntry with
// load/save/snapshot (spec §2 component 3, §4.3). It is created on
// first registry access for a tenant and lives until an explicit
// clear or process exit.
//
// Grounded on the teacher's table/shard/database trio: Shard's
// delta/main split here collapses to a single in-memory map because
// chain snapshots have no column storage to shard across, Database's
// global name->table map is generalized in the registry package
// instead of here, and Table's dirty-flag-plus-debounced-persist
// lifecycle is carried over almost verbatim as the save/schedule loop
// below.
type ChainStore struct {
	tenantID    string
	stateSize   int
	endOfLine   string
	persistence PersistenceEngine
	compress    bool
	scheduler   *schedule.Scheduler
	saveDebounce time.Duration

	// mu guards structural changes to the prefix map (new keys,
	// clear, removePrefix) and is held briefly; per-prefix suffix
	// mutation is delegated to PrefixEntry's own lock so readers and
	// writers on distinct prefixes never contend here (spec §5).
	mu       sync.RWMutex
	prefixes map[string]*PrefixEntry
	dirty    bool

	// saveMu serializes actual snapshot writes: a debounce fire and a
	// forced flush (registry eviction, process exit) must never race
	// on the same file.
	saveMu sync.Mutex
}

// NewChainStore constructs an empty store. Call Load to populate it
// from persistence before serving traffic.
func NewChainStore(tenantID string, stateSize int, persistence PersistenceEngine, scheduler *schedule.Scheduler, saveDebounce time.Duration, compress bool, endOfLine string) *ChainStore {
	return &ChainStore{
		tenantID:     tenantID,
		stateSize:    stateSize,
		endOfLine:    endOfLine,
		persistence:  persistence,
		scheduler:    scheduler,
		saveDebounce: saveDebounce,
		compress:     compress,
		prefixes:     make(map[string]*PrefixEntry),
	}
}

func (c *ChainStore) TenantID() string { return c.tenantID }
func (c *ChainStore) StateSize() int   { return c.stateSize }

// Load populates the store from its persistence backend. Per spec
// §4.3's corruption policy, an unreadable, truncated, or
// schema-mismatched snapshot never fails the call: the store starts
// empty, a warning is logged, and the bad file is left on disk for an
// operator to inspect.
func (c *ChainStore) Load() error {
	raw, err := c.persistence.ReadSnapshot(c.tenantID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			logging.Printf("tenant %s: snapshot unreadable, starting empty: %v", c.tenantID, err)
		}
		return nil
	}

	data, err := decodeSnapshot(raw)
	if err != nil {
		logging.Printf("tenant %s: snapshot corrupt, starting empty (file left on disk): %v", c.tenantID, err)
		return nil
	}

	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		logging.Printf("tenant %s: snapshot body malformed, starting empty (file left on disk): %v", c.tenantID, err)
		return nil
	}
	if sf.Magic != snapshotMagic || sf.SchemaVersion != schemaVersion {
		logging.Printf("tenant %s: snapshot header mismatch (magic=%q version=%d), starting empty (file left on disk)", c.tenantID, sf.Magic, sf.SchemaVersion)
		return nil
	}
	if sf.StateSize != c.stateSize {
		logging.Printf("tenant %s: snapshot stateSize %d does not match configured stateSize %d, starting empty (file left on disk)", c.tenantID, sf.StateSize, c.stateSize)
		return nil
	}

	prefixes := make(map[string]*PrefixEntry, len(sf.Prefixes))
	for key, sp := range sf.Prefixes {
		prefixes[key] = prefixEntryFromSnapshot(sp)
	}

	c.mu.Lock()
	c.prefixes = prefixes
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// entryForWrite returns the PrefixEntry for prefix, creating it under
// the store's write lock on first observation (spec §3 lifecycle:
// "PrefixEntries are created on first observation").
func (c *ChainStore) entryForWrite(prefix string) *PrefixEntry {
	c.mu.RLock()
	if e, ok := c.prefixes[prefix]; ok {
		c.mu.RUnlock()
		return e
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.prefixes[prefix]; ok {
		return e
	}
	e := NewPrefixEntry(prefix)
	c.prefixes[prefix] = e
	return e
}

// AddRecord inserts one (prefix, suffix, weight) observation. Marks
// the store dirty and (re)arms the debounced save on success (spec
// §4.3).
func (c *ChainStore) AddRecord(prefix, suffix string, weight uint64) error {
	if prefix == "" {
		return errs.New(errs.InvalidInput, "prefix must not be empty")
	}
	entry := c.entryForWrite(prefix)
	if err := entry.Insert(suffix, weight); err != nil {
		return err
	}
	c.markDirty()
	return nil
}

// AddBatch inserts many records, never aborting on a per-record
// failure: each failure is accumulated into the returned slice, and
// inserted reports how many records succeeded. One debounce schedule
// covers the whole batch, since repeated ScheduleAfter calls for the
// same tenant key simply re-arm the same timer (spec §4.3).
func (c *ChainStore) AddBatch(records []TrainingRecord) (inserted int, failures []errs.RecordError) {
	for i, r := range records {
		if err := c.AddRecord(r.Prefix, r.Suffix, r.Weight); err != nil {
			failures = append(failures, errs.RecordError{Index: i, Err: err})
			continue
		}
		inserted++
	}
	return inserted, failures
}

// GetNext samples one suffix for prefix, or reports false if the
// prefix is unknown or has no suffixes.
func (c *ChainStore) GetNext(prefix string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.prefixes[prefix]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	return entry.Sample()
}

// Generate walks forward from seed, repeatedly sampling a suffix for
// the trailing stateSize-token window and appending it, until a
// sample dead-ends, the end-of-line sentinel is produced, or maxLen
// is reached. The returned sequence is exactly the tokens appended,
// including the seed (spec §4.3). An unknown seed or a store with no
// matching prefix returns just the seed, per spec §8's boundary
// behaviors.
func (c *ChainStore) Generate(seed []string, maxLen int) []string {
	out := make([]string, len(seed))
	copy(out, seed)

	window := make([]string, len(seed))
	copy(window, seed)
	if len(window) > c.stateSize {
		window = window[len(window)-c.stateSize:]
	}

	for len(out) < maxLen {
		next, ok := c.GetNext(JoinPrefix(window))
		if !ok {
			break
		}
		if c.endOfLine != "" && next == c.endOfLine {
			break
		}
		out = append(out, next)
		window = append(window, next)
		if len(window) > c.stateSize {
			window = window[len(window)-c.stateSize:]
		}
	}
	return out
}

// Clear empties the store. Marks dirty and schedules a save so the
// emptiness survives a reload (spec §8 invariant 4).
func (c *ChainStore) Clear() {
	c.mu.Lock()
	c.prefixes = make(map[string]*PrefixEntry)
	c.mu.Unlock()
	c.markDirty()
}

// RemovePrefix deletes one prefix entirely, reporting whether it was
// present. Marks dirty and schedules a save on success.
func (c *ChainStore) RemovePrefix(prefix string) bool {
	c.mu.Lock()
	_, ok := c.prefixes[prefix]
	if ok {
		delete(c.prefixes, prefix)
	}
	c.mu.Unlock()
	if ok {
		c.markDirty()
	}
	return ok
}

// Stats reports prefix and suffix counts plus an approximate
// in-memory footprint, the way the teacher's storage layer sizes
// in-memory tables: a recursive sum of string and slice header costs
// rather than a precise allocator accounting (spec §2 "SUPPLEMENTED
// FEATURES").
func (c *ChainStore) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalSuffixes int
	var approx int64
	for prefix, entry := range c.prefixes {
		approx += int64(len(prefix)) + 16
		suf := entry.Enumerate()
		totalSuffixes += len(suf)
		for _, s := range suf {
			approx += int64(len(s.Token)) + 24 // token bytes + weight + slice overhead
		}
	}
	return Stats{
		PrefixCount:       len(c.prefixes),
		TotalSuffixes:     totalSuffixes,
		ApproxMemoryBytes: approx,
	}
}

// Dirty reports whether the store has mutations not yet reflected in
// its last successful save. Used by the registry to defer eviction
// until a store's debounce has fired (spec §4.4).
func (c *ChainStore) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// markDirty flags the store and (re)arms its debounced save. Grounded
// on the teacher's scheduler-driven flush: a single timer per store,
// cancelled and re-armed on each mutation (spec §9).
func (c *ChainStore) markDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
	if c.scheduler != nil {
		c.scheduler.ScheduleAfter(c.tenantID, c.saveDebounce, func() {
			if err := c.Save(); err != nil {
				logging.Printf("tenant %s: debounced save failed: %v", c.tenantID, err)
			}
		})
	}
}

// Save serializes the store under a read lock and writes it through
// the persistence backend, which is responsible for atomic
// replacement (temp file + fsync + rename, or the backend's
// equivalent). Safe to call concurrently with a debounce fire: saveMu
// serializes actual writes so a forced flush never races the timer.
func (c *ChainStore) Save() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	sf := snapshotFile{
		Magic:         snapshotMagic,
		SchemaVersion: schemaVersion,
		StateSize:     c.stateSize,
		TenantID:      c.tenantID,
		Prefixes:      make(map[string]snapshotPrefix, len(c.prefixes)),
	}
	for key, entry := range c.prefixes {
		sf.Prefixes[key] = entry.toSnapshot()
	}
	c.mu.RUnlock()

	body, err := json.Marshal(sf)
	if err != nil {
		return errs.Wrap(errs.Io, "marshaling snapshot", err)
	}
	encoded, err := encodeSnapshot(body, c.compress)
	if err != nil {
		return err
	}
	if err := c.persistence.WriteSnapshot(c.tenantID, encoded); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// Flush forces a synchronous save regardless of the debounce timer
// and cancels any pending one, for process-exit handlers (spec §4.3
// "on process exit handlers, a forced synchronous flush is
// required").
func (c *ChainStore) Flush() error {
	if c.scheduler != nil {
		c.scheduler.Cancel(c.tenantID)
	}
	return c.Save()
}
