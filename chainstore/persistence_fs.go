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
	"fmt"
	"os"
	"path/filepath"

	"github.com/launix-de/markovchain/errs"
)

// FileSnapshotStore persists snapshots as
// <dir>/markov_<tenantId>.json, written via temp-file + fsync +
// rename so a crash mid-write never leaves a partial file in the
// final path (spec §4.3, §6). Grounded on the teacher's FileStorage,
// which rescues a ".old" copy before overwriting schema.json; here we
// write to a sibling ".tmp" file instead since the rename itself is
// already atomic and there is only ever one generation to keep.
type FileSnapshotStore struct {
	Dir string
}

func (f *FileSnapshotStore) path(tenantID string) string {
	return filepath.Join(f.Dir, fmt.Sprintf("markov_%s.json", tenantID))
}

func (f *FileSnapshotStore) ReadSnapshot(tenantID string) ([]byte, error) {
	data, err := os.ReadFile(f.path(tenantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, "no snapshot for tenant "+tenantID, err)
		}
		return nil, errs.Wrap(errs.Io, "reading snapshot for tenant "+tenantID, err)
	}
	return data, nil
}

func (f *FileSnapshotStore) WriteSnapshot(tenantID string, data []byte) error {
	if err := os.MkdirAll(f.Dir, 0750); err != nil {
		return errs.Wrap(errs.Io, "creating data dir", err)
	}
	final := f.path(tenantID)
	tmp := final + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errs.Wrap(errs.Io, "creating temp snapshot file", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return errs.Wrap(errs.Io, "writing temp snapshot file", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return errs.Wrap(errs.Io, "fsyncing temp snapshot file", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.Io, "closing temp snapshot file", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return errs.Wrap(errs.Io, "renaming snapshot into place", err)
	}
	return nil
}

func (f *FileSnapshotStore) Remove(tenantID string) error {
	err := os.Remove(f.path(tenantID))
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, "removing snapshot for tenant "+tenantID, err)
	}
	return nil
}
