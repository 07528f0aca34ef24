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

// Package devfs provides the device filesystem: a flat directory of
// character and block device nodes registered by drivers.
package devfs

import (
	"fmt"
	"sync/atomic"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// Name is the name of this filesystem type.
const Name = "devfs"

// Default permissions of device nodes.
const (
	charDevMode  = linux.S_IFCHR | 0620
	blockDevMode = linux.S_IFBLK | 0660
)

// CharDeviceType selects the naming scheme of a character device node.
type CharDeviceType int

const (
	// TtySerial nodes are named ttyS0 to ttyS9.
	TtySerial CharDeviceType = iota

	numCharDeviceTypes
)

// String implements fmt.Stringer.String.
func (t CharDeviceType) String() string {
	switch t {
	case TtySerial:
		return "TtySerial"
	default:
		return fmt.Sprintf("CharDeviceType(%d)", int(t))
	}
}

// BlockDeviceType selects the naming scheme of a block device node.
type BlockDeviceType int

const (
	// VirtualDisk nodes are named vda to vdz.
	VirtualDisk BlockDeviceType = iota

	numBlockDeviceTypes
)

// String implements fmt.Stringer.String.
func (t BlockDeviceType) String() string {
	switch t {
	case VirtualDisk:
		return "VirtualDisk"
	default:
		return fmt.Sprintf("BlockDeviceType(%d)", int(t))
	}
}

// Options configures a devfs instance.
type Options struct {
	// NonBlocking makes character device nodes call their devices in
	// non-blocking mode, so reads with no data fail with EAGAIN.
	NonBlocking bool
}

// Filesystem implements vfs.Filesystem.
type Filesystem struct {
	opts Options
	root *vfs.Vnode

	charCounts  [numCharDeviceTypes]atomic.Uint32
	blockCounts [numBlockDeviceTypes]atomic.Uint32
}

var _ vfs.Filesystem = (*Filesystem)(nil)

// New returns an empty device filesystem.
func New(opts Options) *Filesystem {
	fs := &Filesystem{opts: opts}
	root := vfs.NewVnode("", vfs.Directory, vfs.CacheReaddir|vfs.CacheStat)
	root.SetImpl(&directory{})
	root.SetFS(fs)
	fs.root = root
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

// AddCharDevice adds a node for dev named after the next free number of
// kind, and returns it. It panics if all ten numbers of kind are taken.
func (fs *Filesystem) AddCharDevice(dev vfs.CharDevice, kind CharDeviceType) (*vfs.Vnode, error) {
	var prefix string
	switch kind {
	case TtySerial:
		prefix = "ttyS"
	default:
		return nil, linuxerr.EINVAL
	}
	n := fs.charCounts[kind].Add(1) - 1
	if n > 9 {
		panic(fmt.Sprintf("too many character devices of type %v", kind))
	}
	return fs.AddNamedCharDevice(fmt.Sprintf("%s%d", prefix, n), dev)
}

// AddNamedCharDevice adds a node called name for dev.
func (fs *Filesystem) AddNamedCharDevice(name string, dev vfs.CharDevice) (*vfs.Vnode, error) {
	node := vfs.NewVnode(name, vfs.Char, vfs.CacheStat)
	node.SetImpl(vfs.NewCharDeviceWrapper(dev, !fs.opts.NonBlocking))
	node.SetMode(charDevMode)
	if err := fs.attach(node); err != nil {
		return nil, err
	}
	log.Infof("Added char device %q", name)
	return node, nil
}

// AddBlockDevice adds a node for dev named after the next free letter of
// kind, and returns it. It panics if all 26 letters of kind are taken.
func (fs *Filesystem) AddBlockDevice(dev vfs.BlockDevice, kind BlockDeviceType) (*vfs.Vnode, error) {
	var prefix string
	switch kind {
	case VirtualDisk:
		prefix = "vd"
	default:
		return nil, linuxerr.EINVAL
	}
	n := fs.blockCounts[kind].Add(1) - 1
	if n >= 26 {
		panic(fmt.Sprintf("too many block devices of type %v", kind))
	}
	name := fmt.Sprintf("%s%c", prefix, 'a'+rune(n))
	node := vfs.NewVnode(name, vfs.Block, vfs.Seekable)
	node.SetImpl(vfs.NewBlockDeviceWrapper(dev))
	node.SetMode(blockDevMode)
	if err := fs.attach(node); err != nil {
		return nil, err
	}
	log.Infof("Added block device %q", name)
	return node, nil
}

func (fs *Filesystem) attach(node *vfs.Vnode) error {
	node.SetFS(fs)
	if err := fs.root.Attach(node); err != nil {
		return fmt.Errorf("adding device %q: %w", node.Name(), err)
	}
	return nil
}

// directory implements vfs.VnodeImpl for the devfs root. Nodes are only
// added by drivers.
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
