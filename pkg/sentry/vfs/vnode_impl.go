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
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

// VnodeImpl contains the backend-specific operations of a Vnode. Every
// method receives the Vnode it is attached to.
//
// The Vnode checks kinds and flags before calling into its VnodeImpl, so
// for example Read is never called for a directory. Implementations
// usually embed some of the Vnode* helper types below for the operations
// that do not apply to them.
type VnodeImpl interface {
	// Create makes a new object called name under the directory at. The
	// returned Vnode is not yet attached. The caller sets its mode and
	// attaches it.
	Create(at *Vnode, name string, kind Kind) (*Vnode, error)

	// Remove removes the object called name from the directory at. The
	// cached child, if any, is detached by the caller afterwards.
	Remove(at *Vnode, name string) error

	// Lookup loads the object called name from at's backing store. It
	// returns ENOENT if there is no such object.
	Lookup(at *Vnode, name string) (*Vnode, error)

	// Open prepares node for I/O and returns the initial file position.
	Open(node *Vnode, flags linux.OpenFlags) (int64, error)

	// Close releases per-open state.
	Close(node *Vnode) error

	// Read reads into buf at pos, returning the number of bytes read. A
	// short count at end of file is not an error.
	Read(node *Vnode, pos int64, buf []byte) (int, error)

	// Write writes buf at pos, returning the number of bytes written.
	Write(node *Vnode, pos int64, buf []byte) (int, error)

	// Truncate sets the size of node in bytes.
	Truncate(node *Vnode, size int64) error

	// Size returns the size of node in bytes.
	Size(node *Vnode) (int64, error)

	// Stat returns node's file status.
	Stat(node *Vnode) (linux.Stat, error)

	// Readdir returns up to count entries starting at pos. count <= 0
	// requests all remaining entries.
	Readdir(node *Vnode, pos int64, count int) ([]linux.Dirent, error)

	// Ioctl performs a kind-specific request.
	Ioctl(node *Vnode, cmd uint64, arg uintptr, size int) (int, error)

	// IsReady returns true if a read (or, if write is set, a write) would
	// not block.
	IsReady(node *Vnode, write bool) (bool, error)
}

// VnodeNotDirectory partially implements VnodeImpl for non-directories.
type VnodeNotDirectory struct{}

// Create implements VnodeImpl.Create.
func (VnodeNotDirectory) Create(*Vnode, string, Kind) (*Vnode, error) {
	return nil, linuxerr.ENOTDIR
}

// Remove implements VnodeImpl.Remove.
func (VnodeNotDirectory) Remove(*Vnode, string) error {
	return linuxerr.ENOTDIR
}

// Lookup implements VnodeImpl.Lookup.
func (VnodeNotDirectory) Lookup(*Vnode, string) (*Vnode, error) {
	return nil, linuxerr.ENOTDIR
}

// Readdir implements VnodeImpl.Readdir.
func (VnodeNotDirectory) Readdir(*Vnode, int64, int) ([]linux.Dirent, error) {
	return nil, linuxerr.ENOTDIR
}

// VnodeNoDynamicLookup partially implements VnodeImpl for directories whose
// children are all attached up front.
type VnodeNoDynamicLookup struct{}

// Lookup implements VnodeImpl.Lookup.
func (VnodeNoDynamicLookup) Lookup(*Vnode, string) (*Vnode, error) {
	return nil, linuxerr.ENOENT
}

// VnodeDirectoryNoData partially implements VnodeImpl for directories.
type VnodeDirectoryNoData struct{}

// Read implements VnodeImpl.Read.
func (VnodeDirectoryNoData) Read(*Vnode, int64, []byte) (int, error) {
	return 0, linuxerr.EISDIR
}

// Write implements VnodeImpl.Write.
func (VnodeDirectoryNoData) Write(*Vnode, int64, []byte) (int, error) {
	return 0, linuxerr.EISDIR
}

// Truncate implements VnodeImpl.Truncate.
func (VnodeDirectoryNoData) Truncate(*Vnode, int64) error {
	return linuxerr.EISDIR
}

// Size implements VnodeImpl.Size.
func (VnodeDirectoryNoData) Size(*Vnode) (int64, error) {
	return 0, linuxerr.EISDIR
}

// VnodeNoIoctl partially implements VnodeImpl.
type VnodeNoIoctl struct{}

// Ioctl implements VnodeImpl.Ioctl.
func (VnodeNoIoctl) Ioctl(*Vnode, uint64, uintptr, int) (int, error) {
	return 0, linuxerr.ENOTTY
}

// VnodeAlwaysReady partially implements VnodeImpl.
type VnodeAlwaysReady struct{}

// IsReady implements VnodeImpl.IsReady.
func (VnodeAlwaysReady) IsReady(*Vnode, bool) (bool, error) {
	return true, nil
}

// VnodeNoopOpenClose partially implements VnodeImpl for backends without
// per-open state.
type VnodeNoopOpenClose struct{}

// Open implements VnodeImpl.Open.
func (VnodeNoopOpenClose) Open(*Vnode, linux.OpenFlags) (int64, error) {
	return 0, nil
}

// Close implements VnodeImpl.Close.
func (VnodeNoopOpenClose) Close(*Vnode) error {
	return nil
}

// VnodeCachedStat partially implements VnodeImpl by reporting the node's
// cached mode and ownership.
type VnodeCachedStat struct{}

// Stat implements VnodeImpl.Stat.
func (VnodeCachedStat) Stat(node *Vnode) (linux.Stat, error) {
	return node.CachedStat(), nil
}
