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
	"strings"
	"sync"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// directory implements vfs.VnodeImpl for FAT32 directories.
type directory struct {
	vfs.VnodeDirectoryNoData
	vfs.VnodeNoopOpenClose
	vfs.VnodeNoIoctl
	vfs.VnodeAlwaysReady

	fs      *Filesystem
	cluster uint32

	// mu protects the fields below.
	mu       sync.Mutex
	loaded   bool
	ents     []dirent
	clusters int
}

// entries returns the decoded entries, reading them on first use.
func (d *directory) entries() ([]dirent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return d.ents, nil
	}
	chain, err := d.fs.chain(d.cluster)
	if err != nil {
		return nil, err
	}
	cs := d.fs.bpb.ClusterSize()
	data := make([]byte, int64(len(chain))*cs)
	for i, c := range chain {
		if err := d.fs.readCluster(c, data[int64(i)*cs:int64(i+1)*cs]); err != nil {
			return nil, err
		}
	}
	d.ents = parseDirents(data)
	d.clusters = len(chain)
	d.loaded = true
	return d.ents, nil
}

// Create implements vfs.VnodeImpl.Create.
func (d *directory) Create(*vfs.Vnode, string, vfs.Kind) (*vfs.Vnode, error) {
	return nil, linuxerr.EROFS
}

// Remove implements vfs.VnodeImpl.Remove.
func (d *directory) Remove(*vfs.Vnode, string) error {
	return linuxerr.EROFS
}

// Lookup implements vfs.VnodeImpl.Lookup.
func (d *directory) Lookup(_ *vfs.Vnode, name string) (*vfs.Vnode, error) {
	ents, err := d.entries()
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		if strings.EqualFold(e.name, name) {
			return d.fs.newVnode(e), nil
		}
	}
	return nil, linuxerr.ENOENT
}

// Readdir implements vfs.VnodeImpl.Readdir. Offsets 0 and 1 are "." and
// "..", offset 2+i is the i-th entry on disk.
func (d *directory) Readdir(_ *vfs.Vnode, pos int64, count int) ([]linux.Dirent, error) {
	ents, err := d.entries()
	if err != nil {
		return nil, err
	}
	var out []linux.Dirent
	for ; pos < int64(len(ents))+2; pos++ {
		if count > 0 && len(out) == count {
			break
		}
		switch pos {
		case 0:
			out = append(out, linux.Dirent{Name: ".", Type: linux.DT_DIR, NextOff: 1})
		case 1:
			out = append(out, linux.Dirent{Name: "..", Type: linux.DT_DIR, NextOff: 2})
		default:
			e := ents[pos-2]
			typ := uint8(linux.DT_REG)
			if e.dir {
				typ = linux.DT_DIR
			}
			out = append(out, linux.Dirent{Name: e.name, Type: typ, NextOff: pos + 1})
		}
	}
	return out, nil
}

// Stat implements vfs.VnodeImpl.Stat. The size of a directory is the
// length of its cluster chain.
func (d *directory) Stat(node *vfs.Vnode) (linux.Stat, error) {
	if _, err := d.entries(); err != nil {
		return linux.Stat{}, err
	}
	d.mu.Lock()
	n := d.clusters
	d.mu.Unlock()
	cs := d.fs.bpb.ClusterSize()
	stat := node.CachedStat()
	stat.Size = uint64(int64(n) * cs)
	stat.Blksize = uint32(cs)
	stat.Blocks = stat.Size / SectorSize
	return stat, nil
}
