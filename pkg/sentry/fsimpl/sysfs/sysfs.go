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

// Package sysfs provides a pseudo filesystem of small attribute files whose
// contents are produced and consumed by callbacks.
package sysfs

import (
	"fmt"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// Name is the name of this filesystem type.
const Name = "sysfs"

// Modes of sysfs objects.
const (
	dirMode       = linux.S_IFDIR | 0500
	readMode      = linux.S_IFREG | 0400
	readWriteMode = linux.S_IFREG | 0600
)

// ReadFunc renders an attribute into buf and returns the number of bytes
// produced.
type ReadFunc func(buf []byte) (int, error)

// WriteFunc consumes a value written to an attribute.
type WriteFunc func(buf []byte) (int, error)

// Filesystem implements vfs.Filesystem.
type Filesystem struct {
	root *vfs.Vnode
}

var _ vfs.Filesystem = (*Filesystem)(nil)

// New returns an empty sysfs.
func New() *Filesystem {
	fs := &Filesystem{}
	fs.root = fs.newDirectory("")
	fs.root.SetMode(linux.DefaultDirMode)
	log.Infof("Created %s filesystem", Name)
	return fs
}

// Root implements vfs.Filesystem.Root.
func (fs *Filesystem) Root() (*vfs.Vnode, error) {
	return fs.root, nil
}

// Dev implements vfs.Filesystem.Dev.
func (fs *Filesystem) Dev() vfs.BlockDevice {
	return nil
}

// Data implements vfs.Filesystem.Data.
func (fs *Filesystem) Data() any {
	return nil
}

func (fs *Filesystem) newDirectory(name string) *vfs.Vnode {
	n := vfs.NewVnode(name, vfs.Directory, vfs.CacheReaddir|vfs.CacheStat)
	n.SetImpl(&directory{})
	n.SetMode(dirMode)
	n.SetFS(fs)
	return n
}

// parentOrRoot returns parent, or the root if parent is nil.
func (fs *Filesystem) parentOrRoot(parent *vfs.Vnode) *vfs.Vnode {
	if parent == nil {
		return fs.root
	}
	return parent
}

func (fs *Filesystem) attach(parent, node *vfs.Vnode) error {
	parent = fs.parentOrRoot(parent)
	if parent.FS() != vfs.Filesystem(fs) {
		return fmt.Errorf("parent %q is not in this sysfs: %w", parent.Name(), linuxerr.EINVAL)
	}
	if err := parent.Attach(node); err != nil {
		return fmt.Errorf("adding %q to %q: %w", node.Name(), parent.Name(), err)
	}
	log.Debugf("sysfs: added %q", node.Path())
	return nil
}

// AddDirectory adds a directory called name under parent, or under the
// root if parent is nil.
func (fs *Filesystem) AddDirectory(parent *vfs.Vnode, name string) (*vfs.Vnode, error) {
	node := fs.newDirectory(name)
	if err := fs.attach(parent, node); err != nil {
		return nil, err
	}
	return node, nil
}

// AddReadNode adds a read-only attribute. Writes fail with EROFS.
func (fs *Filesystem) AddReadNode(parent *vfs.Vnode, name string, read ReadFunc) (*vfs.Vnode, error) {
	return fs.addNode(parent, name, readMode, read, func([]byte) (int, error) {
		return 0, linuxerr.EROFS
	})
}

// AddReadWriteNode adds a read-write attribute.
func (fs *Filesystem) AddReadWriteNode(parent *vfs.Vnode, name string, read ReadFunc, write WriteFunc) (*vfs.Vnode, error) {
	return fs.addNode(parent, name, readWriteMode, read, write)
}

func (fs *Filesystem) addNode(parent *vfs.Vnode, name string, mode linux.FileMode, read ReadFunc, write WriteFunc) (*vfs.Vnode, error) {
	node := vfs.NewVnode(name, vfs.Regular, vfs.CacheStat)
	node.SetImpl(&attribute{read: read, write: write})
	node.SetMode(mode)
	node.SetFS(fs)
	if err := fs.attach(parent, node); err != nil {
		return nil, err
	}
	return node, nil
}

// directory implements vfs.VnodeImpl for sysfs directories. The tree is
// built by AddDirectory and friends only.
type directory struct {
	vfs.VnodeNoDynamicLookup
	vfs.VnodeDirectoryNoData
	vfs.VnodeNoopOpenClose
	vfs.VnodeNoIoctl
	vfs.VnodeAlwaysReady
	vfs.VnodeCachedStat
}

// Create implements vfs.VnodeImpl.Create.
func (*directory) Create(*vfs.Vnode, string, vfs.Kind) (*vfs.Vnode, error) {
	return nil, linuxerr.EPERM
}

// Remove implements vfs.VnodeImpl.Remove.
func (*directory) Remove(*vfs.Vnode, string) error {
	return linuxerr.EPERM
}

// Readdir implements vfs.VnodeImpl.Readdir.
func (*directory) Readdir(node *vfs.Vnode, pos int64, count int) ([]linux.Dirent, error) {
	return vfs.CachedReaddir(node, pos, count), nil
}

// attribute implements vfs.VnodeImpl for sysfs files. An attribute is read
// and written in a single call at offset 0.
type attribute struct {
	vfs.VnodeNotDirectory
	vfs.VnodeNoopOpenClose
	vfs.VnodeNoIoctl
	vfs.VnodeAlwaysReady
	vfs.VnodeCachedStat

	read  ReadFunc
	write WriteFunc
}

// Read implements vfs.VnodeImpl.Read. Reads past offset 0 return nothing,
// so sequential readers see the value once and then end of file.
func (a *attribute) Read(_ *vfs.Vnode, pos int64, buf []byte) (int, error) {
	if pos != 0 {
		return 0, nil
	}
	return a.read(buf)
}

// Write implements vfs.VnodeImpl.Write.
func (a *attribute) Write(_ *vfs.Vnode, pos int64, buf []byte) (int, error) {
	if pos != 0 {
		return 0, linuxerr.EINVAL
	}
	return a.write(buf)
}

// Truncate implements vfs.VnodeImpl.Truncate. It is accepted and ignored
// so that attributes can be opened with O_TRUNC.
func (a *attribute) Truncate(*vfs.Vnode, int64) error {
	return nil
}

// Size implements vfs.VnodeImpl.Size. Attribute sizes are not known in
// advance and reported as 0.
func (a *attribute) Size(*vfs.Vnode) (int64, error) {
	return 0, nil
}
