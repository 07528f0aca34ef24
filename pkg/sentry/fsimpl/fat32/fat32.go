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

// Package fat32 provides a read-only FAT32 filesystem over a block device.
//
// Directories are decoded lazily: a directory's entries are read from its
// cluster chain on first lookup or readdir and kept for the lifetime of
// the vnode. Long file names are supported; names are matched without
// regard to case, as FAT does.
package fat32

import (
	"fmt"
	"time"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// Name is the name of this filesystem type.
const Name = "fat32"

// Modes reported for all objects; the filesystem cannot be written.
const (
	dirMode  = linux.S_IFDIR | 0555
	fileMode = linux.S_IFREG | 0444
)

// warnLog reports malformed on-disk structures.
var warnLog = log.BasicRateLimitedLogger(time.Second)

// Filesystem implements vfs.Filesystem.
type Filesystem struct {
	// dev and bpb are immutable.
	dev vfs.BlockDevice
	bpb BPB

	root *vfs.Vnode
}

var _ vfs.Filesystem = (*Filesystem)(nil)

// Open reads the boot sector of dev and returns the filesystem on it.
func Open(dev vfs.BlockDevice) (*Filesystem, error) {
	buf := make([]byte, SectorSize)
	if err := dev.Read(0, buf); err != nil {
		return nil, fmt.Errorf("reading boot sector: %w", err)
	}
	bpb, err := ParseBPB(buf)
	if err != nil {
		return nil, err
	}
	fs := &Filesystem{dev: dev, bpb: bpb}
	fs.root = fs.newDirectory("", bpb.RootCluster)
	log.Infof("Opened %s filesystem %q: %d byte clusters, root at cluster %d", Name, bpb.VolumeLabel, bpb.ClusterSize(), bpb.RootCluster)
	return fs, nil
}

// Root implements vfs.Filesystem.Root.
func (fs *Filesystem) Root() (*vfs.Vnode, error) {
	return fs.root, nil
}

// Dev implements vfs.Filesystem.Dev.
func (fs *Filesystem) Dev() vfs.BlockDevice {
	return fs.dev
}

// Data implements vfs.Filesystem.Data. It returns the BPB.
func (fs *Filesystem) Data() any {
	return fs.bpb
}

func (fs *Filesystem) newDirectory(name string, cluster uint32) *vfs.Vnode {
	n := vfs.NewVnode(name, vfs.Directory, vfs.Seekable)
	n.SetImpl(&directory{fs: fs, cluster: cluster})
	n.SetMode(dirMode)
	n.SetFS(fs)
	return n
}

func (fs *Filesystem) newRegularFile(name string, cluster, size uint32) *vfs.Vnode {
	n := vfs.NewVnode(name, vfs.Regular, vfs.Seekable)
	n.SetImpl(&regularFile{fs: fs, first: cluster, size: int64(size)})
	n.SetMode(fileMode)
	n.SetFS(fs)
	return n
}

func (fs *Filesystem) newVnode(d dirent) *vfs.Vnode {
	if d.dir {
		return fs.newDirectory(d.name, d.cluster)
	}
	return fs.newRegularFile(d.name, d.cluster, d.size)
}
