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
//go:build ceph

package chainstore

import (
	"path"
	"sync"

	"github.com/ceph/go-ceph/rados"

	"github.com/launix-de/markovchain/errs"
)

// CephSnapshotStore persists snapshots as RADOS objects under
// <prefix>/markov_<tenantId>.json, one object per tenant, overwritten
// with WriteFull on every save (RADOS objects support in-place
// overwrite, which stands in for the local backend's rename). Grounded
// on the teacher's CephStorage; this engine only needs the single-blob
// read/write/remove primitives, not the per-column/per-log-segment
// layout the teacher's table storage requires.
//
// Built only with -tags=ceph; see persistence_ceph_stub.go otherwise.
type CephSnapshotStore struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string

	mu    sync.Mutex
	conn  *rados.Conn
	ioctx *rados.IOContext
}

func (s *CephSnapshotStore) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ioctx != nil {
		return nil
	}
	conn, err := rados.NewConnWithClusterAndUser(s.ClusterName, s.UserName)
	if err != nil {
		return errs.Wrap(errs.Io, "opening rados connection", err)
	}
	if s.ConfFile != "" {
		if err := conn.ReadConfigFile(s.ConfFile); err != nil {
			return errs.Wrap(errs.Io, "reading ceph conf file", err)
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		return errs.Wrap(errs.Io, "connecting to ceph cluster", err)
	}
	ioctx, err := conn.OpenIOContext(s.Pool)
	if err != nil {
		conn.Shutdown()
		return errs.Wrap(errs.Io, "opening rados pool "+s.Pool, err)
	}
	s.conn = conn
	s.ioctx = ioctx
	return nil
}

func (s *CephSnapshotStore) obj(tenantID string) string {
	return path.Join(s.Prefix, "markov_"+tenantID+".json")
}

func (s *CephSnapshotStore) ReadSnapshot(tenantID string) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	obj := s.obj(tenantID)
	stat, err := s.ioctx.Stat(obj)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "no snapshot for tenant "+tenantID, err)
	}
	data := make([]byte, stat.Size)
	n, err := s.ioctx.Read(obj, data, 0)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "reading ceph snapshot for tenant "+tenantID, err)
	}
	return data[:n], nil
}

func (s *CephSnapshotStore) WriteSnapshot(tenantID string, data []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.ioctx.WriteFull(s.obj(tenantID), data); err != nil {
		return errs.Wrap(errs.Io, "writing ceph snapshot for tenant "+tenantID, err)
	}
	return nil
}

func (s *CephSnapshotStore) Remove(tenantID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.ioctx.Delete(s.obj(tenantID)); err != nil {
		return errs.Wrap(errs.Io, "removing ceph snapshot for tenant "+tenantID, err)
	}
	return nil
}
