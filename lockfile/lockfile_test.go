package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/launix-de/markovchain/errs"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, "tenant-a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p := path(dir, "tenant-a")
	raw, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("reading lock file: %v", err)
	}
	if string(raw) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("lock file content = %q, want current pid", raw)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("lock file still present after Release")
	}
}

func TestAcquireContentionWhileOwnerAlive(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, "tenant-b")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	_, err = Acquire(dir, "tenant-b")
	if err == nil {
		t.Fatal("second Acquire succeeded, want Contention")
	}
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.Contention {
		t.Fatalf("err = %v, want Contention", err)
	}
}

func TestAcquireReclaimsStaleLockFromDeadPID(t *testing.T) {
	dir := t.TempDir()
	p := path(dir, "tenant-c")
	// A PID vanishingly unlikely to be alive, masquerading as a
	// leftover lock from a crashed process.
	if err := os.WriteFile(p, []byte("999999"), 0600); err != nil {
		t.Fatalf("seeding stale lock: %v", err)
	}

	lock, err := Acquire(dir, "tenant-c")
	if err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
	defer lock.Release()

	raw, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("reading reclaimed lock file: %v", err)
	}
	if string(raw) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("reclaimed lock content = %q, want current pid", raw)
	}
}

func TestAcquireReclaimsMalformedLock(t *testing.T) {
	dir := t.TempDir()
	p := path(dir, "tenant-d")
	if err := os.WriteFile(p, []byte("not-a-pid"), 0600); err != nil {
		t.Fatalf("seeding malformed lock: %v", err)
	}

	lock, err := Acquire(dir, "tenant-d")
	if err != nil {
		t.Fatalf("Acquire over malformed lock: %v", err)
	}
	lock.Release()
}

func TestAcquireEmptyTenantIDIsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	_, err := Acquire(dir, "")
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.InvalidInput {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}

func TestReleaseOnNilLockIsNoop(t *testing.T) {
	var lock *Lock
	if err := lock.Release(); err != nil {
		t.Fatalf("Release on nil lock: %v", err)
	}
}

func TestLockPathEncodesTenantID(t *testing.T) {
	dir := t.TempDir()
	got := path(dir, "my-tenant")
	want := filepath.Join(dir, "my-tenant_training.lock")
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}
