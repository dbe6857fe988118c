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

// Package markovchain wires the engine's collaborating components
// (chainstore, registry, workerpool, ingest, lockfile, schedule) into
// a single injectable handle (spec §9 "avoid hidden globals"). Host
// programs (the chat-platform adapter, the CLIs) construct one Engine
// at startup and share it among their own goroutines.
package markovchain

import (
	"context"

	"github.com/launix-de/markovchain/chainstore"
	"github.com/launix-de/markovchain/config"
	"github.com/launix-de/markovchain/ingest"
	"github.com/launix-de/markovchain/lockfile"
	"github.com/launix-de/markovchain/registry"
	"github.com/launix-de/markovchain/schedule"
	"github.com/launix-de/markovchain/workerpool"
)

// Engine is the in-process entry point described by spec §6: an
// opaque tenant handle is obtained via Tenant, and the handful of
// pool-dispatched async operations go through Pool directly.
type Engine struct {
	cfg       config.Config
	scheduler *schedule.Scheduler
	registry  *registry.StoreRegistry
	pool      *workerpool.WorkerPool
}

// New constructs an Engine from a resolved configuration. persistence
// selects the snapshot backend (local filesystem, S3, Ceph); pass nil
// to use the default FileSnapshotStore rooted at cfg.DataDir.
func New(cfg config.Config, persistence func(tenantID string) chainstore.PersistenceEngine) *Engine {
	if persistence == nil {
		persistence = func(tenantID string) chainstore.PersistenceEngine {
			return &chainstore.FileSnapshotStore{Dir: cfg.DataDir}
		}
	}
	sched := &schedule.Scheduler{}
	reg := registry.New(cfg, sched, persistence)
	pool := workerpool.New(cfg.WorkerPoolSize, cfg.GracefulShutdown, reg)
	return &Engine{cfg: cfg, scheduler: sched, registry: reg, pool: pool}
}

// Config returns the configuration the engine was constructed with.
func (e *Engine) Config() config.Config { return e.cfg }

// Pool exposes the worker pool for submitting async build-chains,
// generate-response, batch-update, or stats tasks directly (spec
// §4.5). TrainBatcher.Run and the synchronous Tenant methods cover
// the common cases; Pool is for hosts that need custom priorities or
// payload shapes.
func (e *Engine) Pool() *workerpool.WorkerPool { return e.pool }

// Tenant returns the (lazily loaded) ChainStore handle for tenantID,
// creating an empty one on first access (spec §4.4).
func (e *Engine) Tenant(tenantID string) *chainstore.ChainStore {
	return e.registry.Get(tenantID)
}

// PeekTenant returns the ChainStore for tenantID only if it is already
// cached in the registry, without triggering a lazy load. Returns nil
// if tenantID has no cached store.
func (e *Engine) PeekTenant(tenantID string) *chainstore.ChainStore {
	return e.registry.Peek(tenantID)
}

// NewTrainBatcher constructs a TrainBatcher bound to this engine's
// pool, using opts (see ingest.DefaultOptions for spec §6 defaults).
func (e *Engine) NewTrainBatcher(opts ingest.Options) *ingest.TrainBatcher {
	return ingest.New(e.pool, opts)
}

// TrainFromSource is a convenience wrapper that acquires the
// per-tenant advisory training lock (spec §5 "per-tenant single-writer
// lock"), drains src through a TrainBatcher, and releases the lock
// regardless of outcome. Callers running concurrent bulk-training
// attempts for the same tenant will see one of them fail fast with an
// errs.Contention error rather than interleaving.
func (e *Engine) TrainFromSource(ctx context.Context, tenantID string, src ingest.RecordSource) (ingest.Result, error) {
	lock, err := lockfile.Acquire(e.cfg.ConfigDir, tenantID)
	if err != nil {
		return ingest.Result{}, err
	}
	defer lock.Release()

	batcher := e.NewTrainBatcher(ingest.DefaultOptions(e.cfg.StateSize))
	return batcher.Run(ctx, tenantID, src)
}

// Shutdown flushes every dirty ChainStore and gracefully drains the
// worker pool. Intended for process-exit hooks (spec §4.3 "forced
// synchronous flush is required").
func (e *Engine) Shutdown() {
	e.pool.Shutdown()
	e.registry.FlushAll()
	e.scheduler.Stop()
}
