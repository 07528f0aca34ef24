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

// Package vfs implements the kernel's virtual filesystem layer: a tree of
// vnodes joined by mount edges, pluggable per-node backends, open file
// handles, and per-actor path resolution contexts.
//
// Lock order:
//
//	mountMu
//	  Vnode.mu (parent before child)
//
// Vnode.implMu is never held together with Vnode.mu. Backend methods are
// called with implMu held and without any Vnode.mu held, so backends may
// freely call back into the tree.
package vfs

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/fspath"
	"kvfs.dev/kvfs/pkg/log"
)

// Kind is the type of filesystem object a Vnode represents.
type Kind uint8

// Vnode kinds.
const (
	Directory Kind = iota
	Regular
	Char
	Block
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Directory:
		return "Directory"
	case Regular:
		return "Regular"
	case Char:
		return "Char"
	case Block:
		return "Block"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// FileType returns the S_IF* bits for k.
func (k Kind) FileType() linux.FileMode {
	switch k {
	case Directory:
		return linux.S_IFDIR
	case Regular:
		return linux.S_IFREG
	case Char:
		return linux.S_IFCHR
	case Block:
		return linux.S_IFBLK
	default:
		panic(fmt.Sprintf("unknown vnode kind %d", uint8(k)))
	}
}

// Flags control how the VFS treats a Vnode independently of its backend.
type Flags uint32

const (
	// Seekable allows File.Seek on handles to the node.
	Seekable Flags = 1 << iota

	// CacheReaddir makes readdir list the cached children instead of
	// asking the backend. Such directories are opened without the backend.
	CacheReaddir

	// CacheStat makes stat answer from the cached mode and ownership.
	CacheStat
)

// A Vnode is the in-memory representation of one filesystem object.
//
// A Vnode without a parent is the root of its tree; its parent is itself.
// A directory Vnode with a target set is a mount point, and all traversal
// through it continues at the target.
type Vnode struct {
	// name, kind and flags are immutable.
	name  string
	kind  Kind
	flags Flags

	// implMu serializes calls into impl for directories and regular files.
	// Device backends are expected to synchronize themselves.
	implMu sync.Mutex

	// mu protects the fields below.
	mu sync.Mutex

	// parent is nil for the root of a tree.
	parent *Vnode

	// children holds attached children in insertion order; index holds the
	// same set ordered by name.
	children []*Vnode
	index    *btree.BTreeG[*Vnode]

	// target is the root of the filesystem mounted on this node.
	target *Vnode

	// mountpoint is the node this root is mounted on.
	mountpoint *Vnode

	mode linux.FileMode
	uid  uint32
	gid  uint32

	impl VnodeImpl
	fs   Filesystem
}

// mountMu serializes Mount and Unmount across all trees, so that the cycle
// check in Mount sees a stable set of mount edges.
var mountMu sync.Mutex

func vnodeLess(a, b *Vnode) bool {
	return a.name < b.name
}

// NewVnode returns a detached Vnode with no backend. Its mode is the type
// bits of kind with permissions 0755 for directories and 0644 otherwise.
func NewVnode(name string, kind Kind, flags Flags) *Vnode {
	perms := linux.FileMode(0644)
	if kind == Directory {
		perms = 0755
	}
	return &Vnode{
		name:  name,
		kind:  kind,
		flags: flags,
		mode:  kind.FileType() | perms,
	}
}

// Name returns the name v was created with.
func (v *Vnode) Name() string {
	return v.name
}

// Kind returns v's kind.
func (v *Vnode) Kind() Kind {
	return v.kind
}

// Flags returns v's flags.
func (v *Vnode) Flags() Flags {
	return v.flags
}

// IsDirectory returns true if v is a directory.
func (v *Vnode) IsDirectory() bool {
	return v.kind == Directory
}

// IsSeekable returns true if handles to v may be repositioned.
func (v *Vnode) IsSeekable() bool {
	return v.flags&Seekable != 0
}

// SetImpl attaches the backend for v.
func (v *Vnode) SetImpl(impl VnodeImpl) {
	v.mu.Lock()
	v.impl = impl
	v.mu.Unlock()
}

// Impl returns v's backend, or nil.
func (v *Vnode) Impl() VnodeImpl {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.impl
}

// SetFS records the filesystem v belongs to.
func (v *Vnode) SetFS(fs Filesystem) {
	v.mu.Lock()
	v.fs = fs
	v.mu.Unlock()
}

// FS returns the filesystem v belongs to, or nil.
func (v *Vnode) FS() Filesystem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fs
}

// Mode returns v's cached mode.
func (v *Vnode) Mode() linux.FileMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// SetMode sets the permission and extra bits of v's cached mode. The file
// type bits always follow v's kind.
func (v *Vnode) SetMode(mode linux.FileMode) {
	v.mu.Lock()
	v.mode = v.kind.FileType() | mode&^linux.FileTypeMask
	v.mu.Unlock()
}

// SetOwner sets v's cached ownership.
func (v *Vnode) SetOwner(uid, gid uint32) {
	v.mu.Lock()
	v.uid = uid
	v.gid = gid
	v.mu.Unlock()
}

// UID returns v's owner.
func (v *Vnode) UID() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.uid
}

// GID returns v's group.
func (v *Vnode) GID() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gid
}

// Parent returns v's parent. The root of a tree is its own parent.
func (v *Vnode) Parent() *Vnode {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.parent == nil {
		return v
	}
	return v.parent
}

// Lookup returns the cached child with the given name, or nil. It never
// consults the backend.
func (v *Vnode) Lookup(name string) *Vnode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lookupLocked(name)
}

// Preconditions: v.mu must be locked.
func (v *Vnode) lookupLocked(name string) *Vnode {
	if v.index == nil {
		return nil
	}
	child, _ := v.index.Get(&Vnode{name: name})
	return child
}

// Children returns a snapshot of v's cached children in insertion order.
func (v *Vnode) Children() []*Vnode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*Vnode(nil), v.children...)
}

// Attach makes child a cached child of v. It returns EEXIST if v already
// has a child with the same name.
//
// Attach panics if child is already part of a tree, since a node has at
// most one parent.
func (v *Vnode) Attach(child *Vnode) error {
	if child == v {
		panic(fmt.Sprintf("vnode %q attached to itself", v.name))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	child.mu.Lock()
	defer child.mu.Unlock()

	if child.parent != nil {
		panic(fmt.Sprintf("vnode %q is already attached to %q", child.name, child.parent.name))
	}
	if child.mountpoint != nil {
		panic(fmt.Sprintf("vnode %q is mounted on %q", child.name, child.mountpoint.name))
	}
	if v.lookupLocked(child.name) != nil {
		return linuxerr.EEXIST
	}
	if v.index == nil {
		v.index = btree.NewG(8, vnodeLess)
	}
	v.index.ReplaceOrInsert(child)
	v.children = append(v.children, child)
	child.parent = v
	return nil
}

// Detach removes v from its parent's children. It is a no-op for a root.
func (v *Vnode) Detach() {
	for {
		v.mu.Lock()
		p := v.parent
		v.mu.Unlock()
		if p == nil {
			return
		}

		p.mu.Lock()
		v.mu.Lock()
		if v.parent != p {
			// Raced with another Detach.
			v.mu.Unlock()
			p.mu.Unlock()
			continue
		}
		p.removeChildLocked(v)
		v.parent = nil
		v.mu.Unlock()
		p.mu.Unlock()
		return
	}
}

// detachChild removes the cached child called name from v and returns it.
// It returns nil if there is no such child.
func (v *Vnode) detachChild(name string) *Vnode {
	v.mu.Lock()
	defer v.mu.Unlock()
	child := v.lookupLocked(name)
	if child == nil {
		return nil
	}
	child.mu.Lock()
	v.removeChildLocked(child)
	child.parent = nil
	child.mu.Unlock()
	return child
}

// Preconditions: v.mu must be locked. child must be a child of v.
func (v *Vnode) removeChildLocked(child *Vnode) {
	v.index.Delete(child)
	for i, c := range v.children {
		if c == child {
			v.children = append(v.children[:i], v.children[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("vnode %q indexed but not listed in %q", child.name, v.name))
}

// Mount makes root the target of v, so that traversal through v continues
// at root.
//
// Both nodes must be directories. Mount returns EBUSY if v is already a
// mount point, if root is already part of a tree, or if v lies under root
// so that the mount would create a cycle.
func (v *Vnode) Mount(root *Vnode) error {
	if !v.IsDirectory() || !root.IsDirectory() {
		return linuxerr.ENOTDIR
	}

	mountMu.Lock()
	defer mountMu.Unlock()

	for n := v; n != nil; {
		if n == root {
			return linuxerr.EBUSY
		}
		n.mu.Lock()
		next := n.parent
		if next == nil {
			next = n.mountpoint
		}
		n.mu.Unlock()
		n = next
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	root.mu.Lock()
	defer root.mu.Unlock()
	if v.target != nil {
		return linuxerr.EBUSY
	}
	if root.parent != nil || root.mountpoint != nil {
		return linuxerr.EBUSY
	}
	v.target = root
	root.mountpoint = v
	log.Debugf("Mounted %q on %q", root.name, v.name)
	return nil
}

// Unmount removes the target edge of v. It returns EINVAL if v is not a
// mount point and EBUSY if something is mounted on the mounted root.
func (v *Vnode) Unmount() error {
	mountMu.Lock()
	defer mountMu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	root := v.target
	if root == nil {
		return linuxerr.EINVAL
	}

	root.mu.Lock()
	defer root.mu.Unlock()
	if root.target != nil {
		return linuxerr.EBUSY
	}
	root.mountpoint = nil
	v.target = nil
	log.Debugf("Unmounted %q from %q", root.name, v.name)
	return nil
}

// Target returns the root mounted on v, or nil.
func (v *Vnode) Target() *Vnode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.target
}

// MountPoint returns the node v is mounted on, or nil.
func (v *Vnode) MountPoint() *Vnode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mountpoint
}

// Collapse follows target edges from v until it reaches a node that is not
// a mount point.
func (v *Vnode) Collapse() *Vnode {
	n := v
	for {
		t := n.Target()
		if t == nil {
			return n
		}
		n = t
	}
}

// Path returns the absolute path of v in the namespace formed by its tree
// and the trees it is mounted under.
func (v *Vnode) Path() string {
	var b fspath.Builder
	n := v
	for {
		n.mu.Lock()
		parent, mp := n.parent, n.mountpoint
		n.mu.Unlock()
		switch {
		case parent != nil:
			b.PrependComponent(n.name)
			n = parent
		case mp != nil:
			n = mp
		default:
			b.PrependRoot()
			return b.String()
		}
	}
}
