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

package vfs

import (
	"sync"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

// testDir is a directory backend. Names in backing can be loaded by
// Lookup without having been created through the VFS.
type testDir struct {
	VnodeDirectoryNoData
	VnodeNoopOpenClose
	VnodeNoIoctl
	VnodeAlwaysReady
	VnodeCachedStat

	mu      sync.Mutex
	backing map[string]Kind
	removed []string
}

func newTestDir() *testDir {
	return &testDir{backing: make(map[string]Kind)}
}

func newTestNode(name string, kind Kind) *Vnode {
	n := NewVnode(name, kind, Seekable)
	if kind == Directory {
		n.SetImpl(newTestDir())
	} else {
		n.SetImpl(&testFile{})
	}
	return n
}

func (d *testDir) Create(_ *Vnode, name string, kind Kind) (*Vnode, error) {
	return newTestNode(name, kind), nil
}

func (d *testDir) Remove(_ *Vnode, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.backing, name)
	d.removed = append(d.removed, name)
	return nil
}

func (d *testDir) Lookup(_ *Vnode, name string) (*Vnode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind, ok := d.backing[name]
	if !ok {
		return nil, linuxerr.ENOENT
	}
	return newTestNode(name, kind), nil
}

func (d *testDir) Readdir(*Vnode, int64, int) ([]linux.Dirent, error) {
	return nil, nil
}

// testFile is a regular file backend holding its data in memory.
type testFile struct {
	VnodeNotDirectory
	VnodeNoIoctl
	VnodeAlwaysReady

	data   []byte
	opens  int
	closes int
}

func (f *testFile) Open(*Vnode, linux.OpenFlags) (int64, error) {
	f.opens++
	return 0, nil
}

func (f *testFile) Close(*Vnode) error {
	f.closes++
	return nil
}

func (f *testFile) Read(_ *Vnode, pos int64, buf []byte) (int, error) {
	if pos >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(buf, f.data[pos:]), nil
}

func (f *testFile) Write(_ *Vnode, pos int64, buf []byte) (int, error) {
	if end := pos + int64(len(buf)); end > int64(len(f.data)) {
		f.data = append(f.data, make([]byte, end-int64(len(f.data)))...)
	}
	return copy(f.data[pos:], buf), nil
}

func (f *testFile) Truncate(_ *Vnode, size int64) error {
	if size < int64(len(f.data)) {
		f.data = f.data[:size]
	} else {
		f.data = append(f.data, make([]byte, size-int64(len(f.data)))...)
	}
	return nil
}

func (f *testFile) Size(*Vnode) (int64, error) {
	return int64(len(f.data)), nil
}

func (f *testFile) Stat(node *Vnode) (linux.Stat, error) {
	stat := node.CachedStat()
	stat.Size = uint64(len(f.data))
	return stat, nil
}

// patternFile is a read-only file of patternSize bytes where byte i is i.
type patternFile struct {
	VnodeNotDirectory
	VnodeNoopOpenClose
	VnodeNoIoctl
	VnodeAlwaysReady
	VnodeCachedStat
}

const patternSize = 123

func (patternFile) Read(_ *Vnode, pos int64, buf []byte) (int, error) {
	if pos >= patternSize {
		return 0, nil
	}
	n := min(patternSize-int(pos), len(buf))
	for i := 0; i < n; i++ {
		buf[i] = byte(int(pos) + i)
	}
	return n, nil
}

func (patternFile) Write(*Vnode, int64, []byte) (int, error) {
	return 0, linuxerr.ENOSYS
}

func (patternFile) Truncate(*Vnode, int64) error {
	return linuxerr.ENOSYS
}

func (patternFile) Size(*Vnode) (int64, error) {
	return patternSize, nil
}

// tree builds a directory tree from a list of slash-separated paths.
// Paths ending in "/" are directories. It returns the root and a map from
// path to node.
func tree(paths ...string) (*Vnode, map[string]*Vnode) {
	root := NewVnode("", Directory, 0)
	nodes := map[string]*Vnode{"/": root}
	for _, p := range paths {
		parent := root
		start := 1
		for i := 1; i <= len(p); i++ {
			if i < len(p) && p[i] != '/' {
				continue
			}
			key := p[:i]
			name := p[start:i]
			start = i + 1
			if name == "" {
				continue
			}
			n, ok := nodes[key]
			if !ok {
				kind := Regular
				if i < len(p) {
					kind = Directory
				}
				n = NewVnode(name, kind, Seekable)
				if err := parent.Attach(n); err != nil {
					panic(err)
				}
				nodes[key] = n
			}
			parent = n
		}
	}
	return root, nodes
}
