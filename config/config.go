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
// Package config carries the engine's tunable knobs (spec §6). It
// mirrors the teacher's package-level settings struct with defaults,
// but is constructed explicitly by the host and passed through the
// engine rather than mutated through a hidden global (the source's own
// global-singleton pattern is a redesign target per spec §9).
package config

import (
	"time"

	"github.com/docker/go-units"

	"github.com/launix-de/markovchain/errs"
)

// Config holds the resolved engine configuration. Byte-size and
// duration fields accept human strings at load time ("128MiB", "5s")
// and are resolved into the numeric fields below by Resolve.
type Config struct {
	// StateSize is the prefix order (number of tokens per Markov
	// state). Immutable per tenant once a snapshot exists.
	StateSize int
	// BatchSize is the training batch granularity.
	BatchSize int
	// WorkerPoolSize is the fixed worker count.
	WorkerPoolSize int
	// ChainCacheMemoryLimitBytes is the registry LRU ceiling in bytes.
	ChainCacheMemoryLimitBytes int64
	// ChainSaveDebounce is the snapshot debounce interval.
	ChainSaveDebounce time.Duration
	// MemoryCeilingBytes is the batcher's soft memory ceiling.
	MemoryCeilingBytes int64
	// GracefulShutdown bounds how long pool shutdown waits for
	// workers to drain before force-terminating stragglers.
	GracefulShutdown time.Duration

	// DataDir holds one snapshot file per tenant.
	DataDir string
	// ConfigDir holds advisory lock files.
	ConfigDir string

	// EndOfLineToken, if non-empty, is a sentinel suffix that stops
	// generation early without being appended to the output (spec
	// §4.3 "a sentinel end-of-line token (configurable)").
	EndOfLineToken string
	// CompressSnapshots selects the xz-compressed snapshot codec
	// instead of the plain-JSON one for newly written snapshots;
	// either codec reads back transparently regardless of this flag.
	CompressSnapshots bool

	// Raw human-readable overrides, applied by Resolve. Leave empty
	// to keep the numeric defaults above.
	ChainCacheMemoryLimitHuman string
	MemoryCeilingBytesHuman    string
	ChainSaveDebounceHuman     string
	GracefulShutdownHuman      string
}

// Default returns the engine defaults from spec §6.
func Default() Config {
	return Config{
		StateSize:                  2,
		BatchSize:                  2000,
		WorkerPoolSize:             4,
		ChainCacheMemoryLimitBytes: 128 * 1024 * 1024,
		ChainSaveDebounce:          5000 * time.Millisecond,
		MemoryCeilingBytes:         1024 * 1024 * 1024,
		GracefulShutdown:           5000 * time.Millisecond,
		DataDir:                    "data",
		ConfigDir:                  "data",
	}
}

// Resolve parses any human-readable overrides (e.g. "128MiB", "5s")
// into the numeric fields, and validates the invariants spec §6
// requires (StateSize>=1, BatchSize>=100, WorkerPoolSize>=1,
// ChainSaveDebounce>=1s). It mutates c in place and returns an error
// for a malformed human string or an out-of-range value.
func (c *Config) Resolve() error {
	if c.ChainCacheMemoryLimitHuman != "" {
		v, err := units.RAMInBytes(c.ChainCacheMemoryLimitHuman)
		if err != nil {
			return errs.Wrap(errs.InvalidInput, "parsing chainCacheMemoryLimit", err)
		}
		c.ChainCacheMemoryLimitBytes = v
	}
	if c.MemoryCeilingBytesHuman != "" {
		v, err := units.RAMInBytes(c.MemoryCeilingBytesHuman)
		if err != nil {
			return errs.Wrap(errs.InvalidInput, "parsing memoryCeilingBytes", err)
		}
		c.MemoryCeilingBytes = v
	}
	if c.ChainSaveDebounceHuman != "" {
		d, err := time.ParseDuration(c.ChainSaveDebounceHuman)
		if err != nil {
			return errs.Wrap(errs.InvalidInput, "parsing chainSaveDebounce", err)
		}
		c.ChainSaveDebounce = d
	}
	if c.GracefulShutdownHuman != "" {
		d, err := time.ParseDuration(c.GracefulShutdownHuman)
		if err != nil {
			return errs.Wrap(errs.InvalidInput, "parsing gracefulShutdown", err)
		}
		c.GracefulShutdown = d
	}

	if c.StateSize < 1 {
		return errs.New(errs.InvalidInput, "stateSize must be >= 1")
	}
	if c.BatchSize < 100 {
		return errs.New(errs.InvalidInput, "batchSize must be >= 100")
	}
	if c.WorkerPoolSize < 1 {
		return errs.New(errs.InvalidInput, "workerPoolSize must be >= 1")
	}
	if c.ChainSaveDebounce < time.Second {
		return errs.New(errs.InvalidInput, "chainSaveDebounceMs must be >= 1000")
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.ConfigDir == "" {
		c.ConfigDir = c.DataDir
	}
	return nil
}
