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

// Package memfs provides a filesystem that keeps all of its state in memory:
// the vnode tree is the sole source of truth for the namespace, and regular
// file contents live in block vectors drawn from a shared allocator.
//
// A memfs is usually populated once from an archive (LoadTar, LoadCpio) and
// may be modified afterwards through the VFS.
//
// Lock order:
//
//	Filesystem.mu
//	  vfs.Vnode locks
//	    bvec.Bvec.mu
package memfs

import (
	"sync"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/blockalloc"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// Name is the name of this filesystem type.
const Name = "memfs"

// blockSize is reported in stat results.
const blockSize = blockalloc.BlockSize

// Filesystem implements vfs.Filesystem.
type Filesystem struct {
	// alloc is immutable.
	alloc blockalloc.Allocator

	// mu protects root and serializes archive loading.
	mu   sync.Mutex
	root *vfs.Vnode
}

var _ vfs.Filesystem = (*Filesystem)(nil)

// New returns an empty filesystem whose root is a directory with the given
// mode.
func New(alloc blockalloc.Allocator, mode linux.FileMode) *Filesystem {
	fs := &Filesystem{alloc: alloc}
	root := fs.newDirectory("")
	root.SetMode(mode)
	fs.root = root
	log.Infof("Created %s filesystem", Name)
	return fs
}

// Root implements vfs.Filesystem.Root.
func (fs *Filesystem) Root() (*vfs.Vnode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.root == nil {
		return nil, linuxerr.ENOENT
	}
	return fs.root, nil
}

// Dev implements vfs.Filesystem.Dev. memfs has no backing device.
func (fs *Filesystem) Dev() vfs.BlockDevice {
	return nil
}

// Data implements vfs.Filesystem.Data.
func (fs *Filesystem) Data() any {
	return nil
}

// Allocator returns the allocator file contents are stored in.
func (fs *Filesystem) Allocator() blockalloc.Allocator {
	return fs.alloc
}

func (fs *Filesystem) newDirectory(name string) *vfs.Vnode {
	n := vfs.NewVnode(name, vfs.Directory, vfs.Seekable|vfs.CacheReaddir)
	n.SetImpl(&directory{fs: fs})
	n.SetFS(fs)
	return n
}

func (fs *Filesystem) newRegularFile(name string, data []byte) *vfs.Vnode {
	n := vfs.NewVnode(name, vfs.Regular, vfs.Seekable)
	n.SetImpl(newRegularFile(fs.alloc, data))
	n.SetFS(fs)
	return n
}
