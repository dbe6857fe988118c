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

import "io"

// PersistenceEngine is the storage backend a ChainStore snapshots
// through. Shaped after the teacher's multi-backend persistence
// interface (local filesystem / S3 / Ceph all implement the same
// handful of read/write primitives); here a tenant's entire mapping
// is one blob instead of per-column files, since chain snapshots have
// no column storage to split across.
type PersistenceEngine interface {
	// ReadSnapshot returns the raw bytes last written for tenantID, or
	// an error: one satisfying errors.Is(err, errs.ErrNotFound) when no
	// snapshot exists (which Load treats as an empty store without a
	// warning), otherwise one satisfying errors.Is(err, errs.ErrIo).
	ReadSnapshot(tenantID string) ([]byte, error)
	// WriteSnapshot atomically replaces the persisted bytes for
	// tenantID (temp file + rename semantics, or the backend's
	// equivalent).
	WriteSnapshot(tenantID string, data []byte) error
	// Remove deletes the persisted snapshot for tenantID, if any.
	Remove(tenantID string) error
}

// ReadCloserEngine is an optional interface for backends that can
// stream a snapshot rather than buffering it fully. It is not part of
// PersistenceEngine; none of the backends in this package implement
// it, and ChainStore.Load always reads through ReadSnapshot.
type ReadCloserEngine interface {
	OpenSnapshot(tenantID string) (io.ReadCloser, error)
}
