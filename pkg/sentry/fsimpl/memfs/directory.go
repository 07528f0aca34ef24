// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memfs

import (
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// directory implements vfs.VnodeImpl for memfs directories. All children
// are attached to the vnode, so there is nothing to load.
type directory struct {
	vfs.VnodeNoDynamicLookup
	vfs.VnodeDirectoryNoData
	vfs.VnodeNoopOpenClose
	vfs.VnodeNoIoctl
	vfs.VnodeAlwaysReady

	fs *Filesystem
}

// Create implements vfs.VnodeImpl.Create.
func (d *directory) Create(_ *vfs.Vnode, name string, kind vfs.Kind) (*vfs.Vnode, error) {
	switch kind {
	case vfs.Directory:
		return d.fs.newDirectory(name), nil
	case vfs.Regular:
		return d.fs.newRegularFile(name, nil), nil
	default:
		return nil, linuxerr.EPERM
	}
}

// Remove implements vfs.VnodeImpl.Remove. The contents of a removed
// regular file are released once no handle refers to them.
func (d *directory) Remove(at *vfs.Vnode, name string) error {
	child := at.Lookup(name)
	if child == nil {
		return linuxerr.ENOENT
	}
	if rf, ok := child.Impl().(*regularFile); ok {
		rf.unlink()
	}
	return nil
}

// Readdir implements vfs.VnodeImpl.Readdir.
func (d *directory) Readdir(node *vfs.Vnode, pos int64, count int) ([]linux.Dirent, error) {
	return vfs.CachedReaddir(node, pos, count), nil
}

// Stat implements vfs.VnodeImpl.Stat.
func (d *directory) Stat(node *vfs.Vnode) (linux.Stat, error) {
	stat := node.CachedStat()
	stat.Blksize = blockSize
	return stat, nil
}
