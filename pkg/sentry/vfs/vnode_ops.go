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
	"kvfs.dev/kvfs/pkg/fspath"
	"kvfs.dev/kvfs/pkg/log"
)

// callImpl runs fn with v's backend, serialized against other calls into
// the same backend. It returns ENOSYS if v has no backend.
func (v *Vnode) callImpl(fn func(impl VnodeImpl) error) error {
	impl := v.Impl()
	if impl == nil {
		return linuxerr.ENOSYS
	}
	if v.kind == Directory || v.kind == Regular {
		v.implMu.Lock()
		defer v.implMu.Unlock()
	}
	return fn(impl)
}

// Create makes a new object called name under v, gives it mode, tags it
// with v's filesystem and attaches it.
func (v *Vnode) Create(name string, mode linux.FileMode, kind Kind) (*Vnode, error) {
	if !v.IsDirectory() {
		return nil, linuxerr.ENOTDIR
	}
	if err := fspath.ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := v.LookupOrLoad(name); err == nil {
		return nil, linuxerr.EEXIST
	} else if !linuxerr.Equals(linuxerr.ENOENT, err) {
		return nil, err
	}

	var child *Vnode
	if err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		child, err = impl.Create(v, name, kind)
		return err
	}); err != nil {
		return nil, err
	}
	child.SetMode(mode)
	if child.FS() == nil {
		child.SetFS(v.FS())
	}
	if err := v.Attach(child); err != nil {
		return nil, err
	}
	log.Debugf("Created %v %q in %q", kind, name, v.name)
	return child, nil
}

// Unlink removes the child called name from the backend and then from
// the tree. Mount points and directories with cached children are busy.
func (v *Vnode) Unlink(name string) error {
	if !v.IsDirectory() {
		return linuxerr.ENOTDIR
	}
	child, err := v.LookupOrLoad(name)
	if err != nil {
		return err
	}
	if child.Target() != nil {
		return linuxerr.EBUSY
	}
	if child.IsDirectory() && len(child.Children()) != 0 {
		return linuxerr.ENOTEMPTY
	}
	if err := v.callImpl(func(impl VnodeImpl) error {
		return impl.Remove(v, name)
	}); err != nil {
		return err
	}
	v.detachChild(name)
	log.Debugf("Unlinked %q from %q", name, v.name)
	return nil
}

// LookupOrLoad returns the cached child called name, or asks the backend
// for it and caches the result.
func (v *Vnode) LookupOrLoad(name string) (*Vnode, error) {
	if !v.IsDirectory() {
		return nil, linuxerr.ENOTDIR
	}
	if child := v.Lookup(name); child != nil {
		return child, nil
	}

	var child *Vnode
	err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		child, err = impl.Lookup(v, name)
		return err
	})
	if linuxerr.Equals(linuxerr.ENOSYS, err) {
		return nil, linuxerr.ENOENT
	}
	if err != nil {
		return nil, err
	}
	if child.FS() == nil {
		child.SetFS(v.FS())
	}
	if err := v.Attach(child); err != nil {
		// Lost a race with another loader, or the backend matched name to
		// a differently spelled child that is already cached.
		if existing := v.Lookup(child.Name()); existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return child, nil
}

// Open returns a new handle to v.
func (v *Vnode) Open(flags linux.OpenFlags) (*File, error) {
	if flags&linux.O_DIRECTORY != 0 && !v.IsDirectory() {
		return nil, linuxerr.ENOTDIR
	}
	if v.IsDirectory() {
		if flags.AccessMode() != linux.O_RDONLY {
			return nil, linuxerr.EISDIR
		}
		if v.flags&CacheReaddir != 0 {
			return newFile(v, flags, 0), nil
		}
	}

	var pos int64
	if err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		pos, err = impl.Open(v, flags)
		return err
	}); err != nil {
		return nil, err
	}
	return newFile(v, flags, pos), nil
}

// Read reads from v at pos.
func (v *Vnode) Read(pos int64, buf []byte) (int, error) {
	if v.IsDirectory() {
		return 0, linuxerr.EISDIR
	}
	var n int
	err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		n, err = impl.Read(v, pos, buf)
		return err
	})
	return n, err
}

// Write writes to v at pos.
func (v *Vnode) Write(pos int64, buf []byte) (int, error) {
	if v.IsDirectory() {
		return 0, linuxerr.EISDIR
	}
	var n int
	err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		n, err = impl.Write(v, pos, buf)
		return err
	})
	return n, err
}

// Truncate sets v's size.
func (v *Vnode) Truncate(size int64) error {
	if v.IsDirectory() {
		return linuxerr.EISDIR
	}
	return v.callImpl(func(impl VnodeImpl) error {
		return impl.Truncate(v, size)
	})
}

// Size returns v's size in bytes.
func (v *Vnode) Size() (int64, error) {
	if v.IsDirectory() {
		return 0, linuxerr.EISDIR
	}
	var size int64
	err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		size, err = impl.Size(v)
		return err
	})
	return size, err
}

// CachedStat returns the file status known to the VFS without asking the
// backend.
func (v *Vnode) CachedStat() linux.Stat {
	v.mu.Lock()
	defer v.mu.Unlock()
	return linux.Stat{
		Mode: v.mode,
		UID:  v.uid,
		GID:  v.gid,
	}
}

// Stat returns v's file status.
func (v *Vnode) Stat() (linux.Stat, error) {
	if v.flags&CacheStat != 0 {
		return v.CachedStat(), nil
	}
	var stat linux.Stat
	err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		stat, err = impl.Stat(v)
		return err
	})
	return stat, err
}

// Readdir returns up to count entries of directory v starting at pos.
// CacheReaddir directories are listed by CachedReaddir.
func (v *Vnode) Readdir(pos int64, count int) ([]linux.Dirent, error) {
	if !v.IsDirectory() {
		return nil, linuxerr.ENOTDIR
	}
	if pos < 0 {
		return nil, linuxerr.EINVAL
	}
	if v.flags&CacheReaddir == 0 {
		var ents []linux.Dirent
		err := v.callImpl(func(impl VnodeImpl) error {
			var err error
			ents, err = impl.Readdir(v, pos, count)
			return err
		})
		return ents, err
	}

	return CachedReaddir(v, pos, count), nil
}

// CachedReaddir lists the cached children of v. Position 0 is ".",
// position 1 is ".." and position 2+i is the i-th child in insertion
// order. count <= 0 requests all remaining entries.
func CachedReaddir(v *Vnode, pos int64, count int) []linux.Dirent {
	children := v.Children()
	total := int64(len(children)) + 2
	var ents []linux.Dirent
	for ; pos < total && (count <= 0 || len(ents) < count); pos++ {
		switch pos {
		case 0:
			ents = append(ents, linux.Dirent{Name: ".", Type: linux.DT_DIR, NextOff: 1})
		case 1:
			ents = append(ents, linux.Dirent{Name: "..", Type: linux.DT_DIR, NextOff: 2})
		default:
			c := children[pos-2]
			ents = append(ents, linux.Dirent{
				Name:    c.name,
				Type:    c.Mode().DirentType(),
				NextOff: pos + 1,
			})
		}
	}
	return ents
}

// Ioctl performs a kind-specific request on v.
func (v *Vnode) Ioctl(cmd uint64, arg uintptr, size int) (int, error) {
	var n int
	err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		n, err = impl.Ioctl(v, cmd, arg, size)
		return err
	})
	return n, err
}

// IsReady returns true if a read, or a write if write is set, would not
// block.
func (v *Vnode) IsReady(write bool) (bool, error) {
	var ready bool
	err := v.callImpl(func(impl VnodeImpl) error {
		var err error
		ready, err = impl.IsReady(v, write)
		return err
	})
	return ready, err
}

// close releases per-open backend state. Directories opened without the
// backend have nothing to release.
func (v *Vnode) close() error {
	if v.IsDirectory() && v.flags&CacheReaddir != 0 {
		return nil
	}
	return v.callImpl(func(impl VnodeImpl) error {
		return impl.Close(v)
	})
}
