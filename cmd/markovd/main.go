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

// Command markovd hosts the generation engine as a long-running
// process: it owns the StoreRegistry and WorkerPool for every tenant,
// exposes the operator control socket, and flushes dirty chain stores
// on exit.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dc0d/onexit"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"

	markovchain "github.com/launix-de/markovchain"
	"github.com/launix-de/markovchain/chainstore"
	"github.com/launix-de/markovchain/config"
	"github.com/launix-de/markovchain/logging"
)

func main() {
	fmt.Print(`markovd Copyright (C) 2026  Markovchain Contributors
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	app := &cli.App{
		Name:  "markovd",
		Usage: "hosts per-tenant Markov chain stores and serves generation/training requests",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-dir", Value: "data", Usage: "directory holding one snapshot file per tenant"},
			&cli.StringFlag{Name: "config-dir", Value: "", Usage: "directory holding advisory training lock files (defaults to data-dir)"},
			&cli.IntFlag{Name: "state-size", Value: 2, Usage: "Markov prefix order"},
			&cli.IntFlag{Name: "worker-pool-size", Value: 4, Usage: "fixed worker count"},
			&cli.StringFlag{Name: "chain-cache-memory-limit", Value: "128MiB", Usage: "registry LRU ceiling"},
			&cli.StringFlag{Name: "memory-ceiling", Value: "1GiB", Usage: "train batcher soft memory ceiling"},
			&cli.StringFlag{Name: "save-debounce", Value: "5s", Usage: "snapshot debounce interval"},
			&cli.StringFlag{Name: "graceful-shutdown", Value: "5s", Usage: "pool shutdown grace period"},
			&cli.BoolFlag{Name: "compress-snapshots", Value: false, Usage: "write xz-compressed snapshots instead of plain JSON"},
			&cli.StringFlag{Name: "socket", Value: "markovd.sock", Usage: "path of the operator control Unix-domain socket"},
			&cli.BoolFlag{Name: "watch-snapshots", Value: true, Usage: "watch data-dir and reload a tenant if its snapshot changes externally"},

			&cli.StringFlag{Name: "persistence", Value: "fs", Usage: "snapshot backend: fs, s3, or ceph"},
			&cli.StringFlag{Name: "s3-bucket", Usage: "bucket holding snapshot objects (persistence=s3)"},
			&cli.StringFlag{Name: "s3-prefix", Usage: "key prefix under the bucket (persistence=s3)"},
			&cli.StringFlag{Name: "s3-region", Usage: "bucket region (persistence=s3)"},
			&cli.StringFlag{Name: "s3-endpoint", Usage: "S3-compatible endpoint override, e.g. a MinIO URL (persistence=s3)"},
			&cli.StringFlag{Name: "s3-access-key-id", Usage: "static credentials (persistence=s3); omit to use the default AWS credential chain"},
			&cli.StringFlag{Name: "s3-secret-access-key", Usage: "static credentials (persistence=s3)"},
			&cli.BoolFlag{Name: "s3-force-path-style", Usage: "use path-style addressing, required by most non-AWS S3-compatible servers (persistence=s3)"},
			&cli.StringFlag{Name: "ceph-user", Value: "client.admin", Usage: "RADOS user (persistence=ceph)"},
			&cli.StringFlag{Name: "ceph-cluster", Value: "ceph", Usage: "RADOS cluster name (persistence=ceph)"},
			&cli.StringFlag{Name: "ceph-conf-file", Usage: "ceph.conf path; empty uses the default search path (persistence=ceph)"},
			&cli.StringFlag{Name: "ceph-pool", Usage: "RADOS pool holding snapshot objects (persistence=ceph)"},
			&cli.StringFlag{Name: "ceph-prefix", Usage: "object name prefix under the pool (persistence=ceph)"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logging.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	cfg.DataDir = c.String("data-dir")
	cfg.ConfigDir = c.String("config-dir")
	cfg.StateSize = c.Int("state-size")
	cfg.WorkerPoolSize = c.Int("worker-pool-size")
	cfg.ChainCacheMemoryLimitHuman = c.String("chain-cache-memory-limit")
	cfg.MemoryCeilingBytesHuman = c.String("memory-ceiling")
	cfg.ChainSaveDebounceHuman = c.String("save-debounce")
	cfg.GracefulShutdownHuman = c.String("graceful-shutdown")
	cfg.CompressSnapshots = c.Bool("compress-snapshots")
	if err := cfg.Resolve(); err != nil {
		return err
	}

	persistence, err := buildPersistenceFactory(c)
	if err != nil {
		return err
	}

	engine := markovchain.New(cfg, persistence)
	onexit.Register(func() {
		logging.Println("shutting down, flushing dirty chain stores")
		engine.Shutdown()
	})

	if c.Bool("watch-snapshots") {
		watcher, err := startSnapshotWatch(engine, cfg.DataDir)
		if err != nil {
			logging.Printf("snapshot watch disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	ctl, err := newControlServer(engine, c.String("socket"))
	if err != nil {
		return fmt.Errorf("starting control socket: %w", err)
	}
	defer ctl.close()
	go ctl.serve()
	logging.Printf("listening on control socket %s", c.String("socket"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logging.Println("received shutdown signal")
	engine.Shutdown()
	return nil
}

// buildPersistenceFactory selects the snapshot backend per the
// -persistence flag and returns a PersistenceFactory that hands every
// tenant its own handle into it (S3 and Ceph snapshot stores are safe
// to share across tenants since each keys its object path on tenant
// id, but the factory shape lets a future backend allocate
// per-tenant state without changing this call site).
func buildPersistenceFactory(c *cli.Context) (func(tenantID string) chainstore.PersistenceEngine, error) {
	switch c.String("persistence") {
	case "", "fs":
		dataDir := c.String("data-dir")
		return func(tenantID string) chainstore.PersistenceEngine {
			return &chainstore.FileSnapshotStore{Dir: dataDir}
		}, nil

	case "s3":
		if c.String("s3-bucket") == "" {
			return nil, fmt.Errorf("-s3-bucket is required with -persistence=s3")
		}
		store := &chainstore.S3SnapshotStore{
			AccessKeyID:     c.String("s3-access-key-id"),
			SecretAccessKey: c.String("s3-secret-access-key"),
			Region:          c.String("s3-region"),
			Endpoint:        c.String("s3-endpoint"),
			Bucket:          c.String("s3-bucket"),
			Prefix:          c.String("s3-prefix"),
			ForcePathStyle:  c.Bool("s3-force-path-style"),
		}
		return func(tenantID string) chainstore.PersistenceEngine { return store }, nil

	case "ceph":
		if c.String("ceph-pool") == "" {
			return nil, fmt.Errorf("-ceph-pool is required with -persistence=ceph")
		}
		store := &chainstore.CephSnapshotStore{
			UserName:    c.String("ceph-user"),
			ClusterName: c.String("ceph-cluster"),
			ConfFile:    c.String("ceph-conf-file"),
			Pool:        c.String("ceph-pool"),
			Prefix:      c.String("ceph-prefix"),
		}
		return func(tenantID string) chainstore.PersistenceEngine { return store }, nil

	default:
		return nil, fmt.Errorf("unknown -persistence %q: want fs, s3, or ceph", c.String("persistence"))
	}
}

// startSnapshotWatch watches dataDir for externally rewritten snapshot
// files and reloads the corresponding tenant if it is already cached,
// so an operator who hand-fixes a corrupt snapshot (spec.md §4.3's
// "operator intervention") does not need to restart the process
// (SPEC_FULL.md's corrupt-snapshot-watch expansion).
func startSnapshotWatch(engine *markovchain.Engine, dataDir string) (*fsnotify.Watcher, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dataDir); err != nil {
		watcher.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				tenantID, ok := tenantIDFromSnapshotPath(event.Name)
				if !ok {
					continue
				}
				if store := engine.PeekTenant(tenantID); store != nil {
					if err := store.Load(); err != nil {
						logging.Printf("snapshot watch: reloading tenant %s: %v", tenantID, err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Printf("snapshot watch error: %v", err)
			}
		}
	}()
	return watcher, nil
}

func tenantIDFromSnapshotPath(path string) (string, bool) {
	base := filepath.Base(path)
	const prefix, suffix = "markov_", ".json"
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) || len(base) <= len(prefix)+len(suffix) {
		return "", false
	}
	return base[len(prefix) : len(base)-len(suffix)], true
}
