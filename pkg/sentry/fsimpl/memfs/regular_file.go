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
	"sync"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/blockalloc"
	"kvfs.dev/kvfs/pkg/bvec"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// regularFile implements vfs.VnodeImpl for memfs regular files.
//
// The contents of an unlinked file stay readable and writable through
// handles opened before the unlink, and are released when the last of
// them is closed.
type regularFile struct {
	vfs.VnodeNotDirectory
	vfs.VnodeNoIoctl
	vfs.VnodeAlwaysReady

	data *bvec.Bvec

	// mu protects the fields below.
	mu sync.Mutex

	// opens is the number of open handles.
	opens int

	// unlinked is set once the file has been removed from its directory.
	unlinked bool
}

// newRegularFile returns a file whose initial contents are src. src is
// referenced, not copied, until the first mutation.
func newRegularFile(alloc blockalloc.Allocator, src []byte) *regularFile {
	if len(src) == 0 {
		return &regularFile{data: bvec.New(alloc)}
	}
	return &regularFile{data: bvec.NewCow(alloc, src)}
}

// Read implements vfs.VnodeImpl.Read.
func (rf *regularFile) Read(_ *vfs.Vnode, pos int64, buf []byte) (int, error) {
	return rf.data.Read(pos, buf)
}

// Write implements vfs.VnodeImpl.Write.
func (rf *regularFile) Write(_ *vfs.Vnode, pos int64, buf []byte) (int, error) {
	return rf.data.Write(pos, buf)
}

// Truncate implements vfs.VnodeImpl.Truncate.
func (rf *regularFile) Truncate(_ *vfs.Vnode, size int64) error {
	return rf.data.Truncate(size)
}

// Size implements vfs.VnodeImpl.Size.
func (rf *regularFile) Size(*vfs.Vnode) (int64, error) {
	return rf.data.Size(), nil
}

// Stat implements vfs.VnodeImpl.Stat.
func (rf *regularFile) Stat(node *vfs.Vnode) (linux.Stat, error) {
	stat := node.CachedStat()
	stat.Size = uint64(rf.data.Size())
	stat.Blksize = blockSize
	stat.Blocks = uint64(rf.data.Capacity()) * (blockSize / 512)
	return stat, nil
}

// Open implements vfs.VnodeImpl.Open.
func (rf *regularFile) Open(*vfs.Vnode, linux.OpenFlags) (int64, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	rf.opens++
	return 0, nil
}

// Close implements vfs.VnodeImpl.Close.
func (rf *regularFile) Close(*vfs.Vnode) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.opens == 0 {
		panic("memfs: close without matching open")
	}
	rf.opens--
	if rf.opens == 0 && rf.unlinked {
		rf.data.Release()
	}
	return nil
}

// unlink marks rf as removed. Its blocks are freed now if no handle is
// open, or on the last Close otherwise.
func (rf *regularFile) unlink() {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	rf.unlinked = true
	if rf.opens == 0 {
		rf.data.Release()
	}
}
