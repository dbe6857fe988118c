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

// Package ingest streams training records from a source, normalizes
// them into (prefix, suffix, weight) triples, and submits
// priority-ordered batches to the worker pool (spec §2 component 6,
// §4.6).
package ingest

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/launix-de/markovchain/chainstore"
	"github.com/launix-de/markovchain/logging"
	"github.com/launix-de/markovchain/workerpool"
)

// Tokenize splits a message into tokens on whitespace, per spec §3's
// Token definition ("a non-empty sequence of non-whitespace code
// points... no further normalization is required").
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Options configures a TrainBatcher's batching and backoff policy.
type Options struct {
	StateSize         int
	BatchSize         int
	MemoryCeilingBytes int64
	LogEveryNBatches  int
	Priority          int
}

// DefaultOptions mirrors spec §6's TrainBatcher-relevant defaults.
func DefaultOptions(stateSize int) Options {
	return Options{
		StateSize:          stateSize,
		BatchSize:          2000,
		MemoryCeilingBytes: 1024 * 1024 * 1024,
		LogEveryNBatches:   10,
		Priority:           workerpool.PriorityNormal,
	}
}

// TrainBatcher drains a RecordSource, slides a window of size
// stateSize+1 over each message's tokens to emit TrainingRecords, and
// submits them to the pool in batches (spec §4.6).
type TrainBatcher struct {
	pool *workerpool.WorkerPool
	opts Options
}

// New constructs a batcher dispatching build-chains tasks onto pool.
func New(pool *workerpool.WorkerPool, opts Options) *TrainBatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 2000
	}
	if opts.StateSize <= 0 {
		opts.StateSize = 2
	}
	return &TrainBatcher{pool: pool, opts: opts}
}

// Result summarizes one Run.
type Result struct {
	MessagesConsumed int
	RecordsEmitted   int
	RecordsInserted  int
	BatchesSubmitted int
}

// Run drains src to exhaustion, windowing each message's tokens into
// TrainingRecords for tenantID and submitting them in batches. Memory
// discipline: between batches the batcher samples heap usage and, if
// it exceeds opts.MemoryCeilingBytes, sleeps one poll interval before
// continuing (spec §4.6 "memory discipline").
//
// Grounded on the teacher's mysql_import.go bulk-copy loop: a single
// consumer goroutine feeding fixed-size units of work to the pool,
// logging progress every N units, but windowing into Markov records
// instead of copying relational rows.
func (b *TrainBatcher) Run(ctx context.Context, tenantID string, src RecordSource) (Result, error) {
	var result Result
	batch := make([]chainstore.TrainingRecord, 0, b.opts.BatchSize)
	window := b.opts.StateSize + 1

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		task, err := b.pool.Submit(workerpool.KindBuildChains, b.opts.Priority, workerpool.BuildChainsPayload{
			TenantID: tenantID,
			Records:  append([]chainstore.TrainingRecord(nil), batch...),
		})
		if err != nil {
			return err
		}
		res, err := task.Await(ctx)
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
		result.RecordsInserted += res.Value.(workerpool.BuildChainsResult).ProcessedCount
		result.BatchesSubmitted++
		batch = batch[:0]

		if b.opts.LogEveryNBatches > 0 && result.BatchesSubmitted%b.opts.LogEveryNBatches == 0 {
			logging.Printf("ingest: tenant %s: %d batches submitted, %d records inserted so far", tenantID, result.BatchesSubmitted, result.RecordsInserted)
		}

		b.backoffIfOverCeiling()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		msg, done, err := src.Next()
		if err != nil {
			return result, err
		}
		if done {
			break
		}
		result.MessagesConsumed++

		tokens := Tokenize(msg.Text)
		for i := 0; i+window <= len(tokens); i++ {
			prefix := chainstore.JoinPrefix(tokens[i : i+b.opts.StateSize])
			suffix := tokens[i+b.opts.StateSize]
			batch = append(batch, chainstore.TrainingRecord{Prefix: prefix, Suffix: suffix, Weight: 1})
			result.RecordsEmitted++

			if len(batch) >= b.opts.BatchSize {
				if err := flush(); err != nil {
					return result, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}
	return result, nil
}

// backoffIfOverCeiling sleeps one poll interval if resident memory
// currently exceeds the configured ceiling (spec §4.6, §5 "Exceeding
// either triggers eviction or back-off respectively; neither is a
// hard failure"). Grounded on runtime.MemStats since no example repo
// wraps process memory sampling in a third-party library (the
// teacher's own /proc/stat sampler in scm/metrics.go measures CPU,
// not memory).
func (b *TrainBatcher) backoffIfOverCeiling() {
	if b.opts.MemoryCeilingBytes <= 0 {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if int64(ms.HeapAlloc) > b.opts.MemoryCeilingBytes {
		time.Sleep(200 * time.Millisecond)
	}
}
