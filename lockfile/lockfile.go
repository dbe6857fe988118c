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

// Package lockfile implements the per-tenant advisory training lock
// (spec §5/§6): a cooperative lock file under the configuration
// directory whose presence signals ownership but does not enforce
// exclusion at the OS level. Acquisition is non-blocking; a held lock
// held by a live process yields Contention, while a lock left behind
// by a dead process is silently reclaimed.
package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/launix-de/markovchain/errs"
)

// Lock is an acquired advisory training lock for one tenant. The zero
// value is not usable; obtain one via Acquire.
type Lock struct {
	path string
}

// path returns the lock file path for tenantID under dir, encoding the
// tenant id into the filename per spec.md §6
// ("<configDir>/<tenantId>_training.lock").
func path(dir, tenantID string) string {
	return filepath.Join(dir, tenantID+"_training.lock")
}

// Acquire attempts to take the training lock for tenantID under dir.
// Acquisition is non-blocking: if the lock file exists and its PID is
// still alive, Acquire fails immediately with an errs.Contention
// error. If the file exists but its owner is dead, the stale lock is
// reclaimed and acquisition proceeds.
func Acquire(dir, tenantID string) (*Lock, error) {
	if tenantID == "" {
		return nil, errs.New(errs.InvalidInput, "lockfile: empty tenant id")
	}
	p := path(dir, tenantID)

	if err := tryCreate(p); err == nil {
		return &Lock{path: p}, nil
	} else if !os.IsExist(err) {
		return nil, errs.Wrap(errs.Io, "creating training lock file", err)
	}

	// The file already exists: decide whether its owner is alive.
	alive, readErr := ownerAlive(p)
	if readErr != nil {
		// An unreadable or malformed lock file is treated as stale
		// rather than blocking forever on a file nothing can reclaim.
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return nil, errs.Wrap(errs.Io, "removing malformed training lock file", err)
		}
		if err := tryCreate(p); err != nil {
			return nil, errs.Wrap(errs.Io, "creating training lock file after reclaiming malformed lock", err)
		}
		return &Lock{path: p}, nil
	}
	if alive {
		return nil, errs.New(errs.Contention, "training already in progress for tenant "+tenantID)
	}

	// Owner is dead: reclaim the stale lock and retry once.
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.Io, "removing stale training lock file", err)
	}
	if err := tryCreate(p); err != nil {
		if os.IsExist(err) {
			// Lost a race with another reclaimer.
			return nil, errs.New(errs.Contention, "training already in progress for tenant "+tenantID)
		}
		return nil, errs.Wrap(errs.Io, "creating training lock file after reclaiming stale lock", err)
	}
	return &Lock{path: p}, nil
}

// tryCreate exclusively creates the lock file and writes the current
// PID into it, per spec.md §6 ("content = decimal PID").
func tryCreate(p string) error {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strconv.Itoa(os.Getpid()))
	return err
}

// ownerAlive reads the PID out of the lock file at p and probes it for
// liveness via a zero-signal send.
func ownerAlive(p string) (bool, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return false, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return false, err
	}
	return processAlive(pid), nil
}

// Release removes the lock file, making the tenant available for
// future training runs. Release is idempotent; releasing an
// already-released lock is a no-op.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, "removing training lock file", err)
	}
	return nil
}
