package main

import (
	"strings"
	"testing"

	markovchain "github.com/launix-de/markovchain"
	"github.com/launix-de/markovchain/config"
)

func newTestEngine(t *testing.T) *markovchain.Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.ConfigDir = dir
	cfg.WorkerPoolSize = 1
	e := markovchain.New(cfg, nil)
	t.Cleanup(e.Shutdown)
	return e
}

func TestDispatchStatsOnEmptyTenant(t *testing.T) {
	s := &controlServer{engine: newTestEngine(t)}
	reply := s.dispatch("stats t1")
	if !strings.HasPrefix(reply, "ok prefixCount=0") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestDispatchGenerateUnknownSeedReturnsSeed(t *testing.T) {
	s := &controlServer{engine: newTestEngine(t)}
	reply := s.dispatch("generate t1 5 hello world")
	if reply != "ok hello world" {
		t.Fatalf("reply = %q, want %q", reply, "ok hello world")
	}
}

func TestDispatchTrainLockAvailable(t *testing.T) {
	s := &controlServer{engine: newTestEngine(t)}
	reply := s.dispatch("train-lock t1")
	if reply != "ok available" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	s := &controlServer{engine: newTestEngine(t)}
	reply := s.dispatch("bogus t1")
	if !strings.HasPrefix(reply, "error:") {
		t.Fatalf("reply = %q, want error", reply)
	}
}

func TestDispatchBadArityReturnsError(t *testing.T) {
	s := &controlServer{engine: newTestEngine(t)}
	reply := s.dispatch("stats")
	if !strings.HasPrefix(reply, "error:") {
		t.Fatalf("reply = %q, want error", reply)
	}
}
