package main

import (
	"flag"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/launix-de/markovchain/chainstore"
)

func testContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("persistence", "fs", "")
	set.String("data-dir", "data", "")
	set.String("s3-bucket", "", "")
	set.String("s3-prefix", "", "")
	set.String("s3-region", "", "")
	set.String("s3-endpoint", "", "")
	set.String("s3-access-key-id", "", "")
	set.String("s3-secret-access-key", "", "")
	set.Bool("s3-force-path-style", false, "")
	set.String("ceph-user", "client.admin", "")
	set.String("ceph-cluster", "ceph", "")
	set.String("ceph-conf-file", "", "")
	set.String("ceph-pool", "", "")
	set.String("ceph-prefix", "", "")
	for name, v := range args {
		if err := set.Set(name, v); err != nil {
			t.Fatalf("set flag %s=%s: %v", name, v, err)
		}
	}
	return cli.NewContext(nil, set, nil)
}

func TestBuildPersistenceFactoryDefaultsToFilesystem(t *testing.T) {
	c := testContext(t, map[string]string{"data-dir": "/tmp/markov-test"})
	factory, err := buildPersistenceFactory(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store, ok := factory("tenant-1").(*chainstore.FileSnapshotStore)
	if !ok {
		t.Fatalf("want *chainstore.FileSnapshotStore, got %T", factory("tenant-1"))
	}
	if store.Dir != "/tmp/markov-test" {
		t.Fatalf("Dir = %q", store.Dir)
	}
}

func TestBuildPersistenceFactoryS3(t *testing.T) {
	c := testContext(t, map[string]string{
		"persistence": "s3",
		"s3-bucket":   "my-bucket",
		"s3-prefix":   "chains",
		"s3-region":   "eu-central-1",
	})
	factory, err := buildPersistenceFactory(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store, ok := factory("tenant-1").(*chainstore.S3SnapshotStore)
	if !ok {
		t.Fatalf("want *chainstore.S3SnapshotStore, got %T", factory("tenant-1"))
	}
	if store.Bucket != "my-bucket" || store.Prefix != "chains" || store.Region != "eu-central-1" {
		t.Fatalf("store = %+v", store)
	}
}

func TestBuildPersistenceFactoryS3MissingBucketIsError(t *testing.T) {
	c := testContext(t, map[string]string{"persistence": "s3"})
	if _, err := buildPersistenceFactory(c); err == nil {
		t.Fatal("want error when -s3-bucket is missing")
	}
}

func TestBuildPersistenceFactoryCeph(t *testing.T) {
	c := testContext(t, map[string]string{
		"persistence": "ceph",
		"ceph-pool":   "chains-pool",
	})
	factory, err := buildPersistenceFactory(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store, ok := factory("tenant-1").(*chainstore.CephSnapshotStore)
	if !ok {
		t.Fatalf("want *chainstore.CephSnapshotStore, got %T", factory("tenant-1"))
	}
	if store.Pool != "chains-pool" {
		t.Fatalf("store = %+v", store)
	}
}

func TestBuildPersistenceFactoryCephMissingPoolIsError(t *testing.T) {
	c := testContext(t, map[string]string{"persistence": "ceph"})
	if _, err := buildPersistenceFactory(c); err == nil {
		t.Fatal("want error when -ceph-pool is missing")
	}
}

func TestBuildPersistenceFactoryUnknownBackendIsError(t *testing.T) {
	c := testContext(t, map[string]string{"persistence": "bogus"})
	if _, err := buildPersistenceFactory(c); err == nil {
		t.Fatal("want error for an unknown -persistence value")
	}
}
