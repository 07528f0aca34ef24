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

package fat32

import (
	"sync"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// regularFile implements vfs.VnodeImpl for FAT32 files.
type regularFile struct {
	vfs.VnodeNotDirectory
	vfs.VnodeNoIoctl
	vfs.VnodeAlwaysReady

	// fs, first and size are immutable.
	fs    *Filesystem
	first uint32
	size  int64

	// mu protects clusters, which is loaded on first read.
	mu       sync.Mutex
	clusters []uint32
}

// Open implements vfs.VnodeImpl.Open. Only read-only opens succeed.
func (f *regularFile) Open(_ *vfs.Vnode, flags linux.OpenFlags) (int64, error) {
	if flags.AccessMode() != linux.O_RDONLY || flags&linux.O_TRUNC != 0 {
		return 0, linuxerr.EROFS
	}
	return 0, nil
}

// Close implements vfs.VnodeImpl.Close.
func (f *regularFile) Close(*vfs.Vnode) error {
	return nil
}

func (f *regularFile) chain() ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clusters == nil {
		c, err := f.fs.chain(f.first)
		if err != nil {
			return nil, err
		}
		cs := f.fs.bpb.ClusterSize()
		if int64(len(c))*cs < f.size {
			warnLog.Warningf("fat32: file at cluster %d has %d clusters for %d bytes", f.first, len(c), f.size)
			return nil, linuxerr.EIO
		}
		f.clusters = c
	}
	return f.clusters, nil
}

// Read implements vfs.VnodeImpl.Read.
func (f *regularFile) Read(_ *vfs.Vnode, pos int64, buf []byte) (int, error) {
	if pos < 0 {
		return 0, linuxerr.EINVAL
	}
	if pos >= f.size || len(buf) == 0 {
		return 0, nil
	}
	if rem := f.size - pos; int64(len(buf)) > rem {
		buf = buf[:rem]
	}
	chain, err := f.chain()
	if err != nil {
		return 0, err
	}
	cs := f.fs.bpb.ClusterSize()
	var scratch []byte
	n := 0
	for n < len(buf) {
		c := chain[pos/cs]
		off := pos % cs
		dst := buf[n:]
		if off == 0 && int64(len(dst)) >= cs {
			if err := f.fs.readCluster(c, dst[:cs]); err != nil {
				return n, err
			}
			n += int(cs)
			pos += cs
			continue
		}
		if scratch == nil {
			scratch = make([]byte, cs)
		}
		if err := f.fs.readCluster(c, scratch); err != nil {
			return n, err
		}
		m := copy(dst, scratch[off:])
		n += m
		pos += int64(m)
	}
	return n, nil
}

// Write implements vfs.VnodeImpl.Write.
func (f *regularFile) Write(*vfs.Vnode, int64, []byte) (int, error) {
	return 0, linuxerr.EROFS
}

// Truncate implements vfs.VnodeImpl.Truncate.
func (f *regularFile) Truncate(*vfs.Vnode, int64) error {
	return linuxerr.EROFS
}

// Size implements vfs.VnodeImpl.Size.
func (f *regularFile) Size(*vfs.Vnode) (int64, error) {
	return f.size, nil
}

// Stat implements vfs.VnodeImpl.Stat.
func (f *regularFile) Stat(node *vfs.Vnode) (linux.Stat, error) {
	stat := node.CachedStat()
	stat.Size = uint64(f.size)
	stat.Blksize = uint32(f.fs.bpb.ClusterSize())
	stat.Blocks = (stat.Size + SectorSize - 1) / SectorSize
	return stat, nil
}
