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
	"strings"
	"sync"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/fspath"
)

// An Ioctx is the path resolution context of one actor: its root and
// working directories and its credentials.
type Ioctx struct {
	// root, uid and gid are immutable.
	root *Vnode
	uid  uint32
	gid  uint32

	// mu protects cwd.
	mu  sync.Mutex
	cwd *Vnode
}

// NewIoctx returns a context rooted at root, with root as the working
// directory.
func NewIoctx(root *Vnode, uid, gid uint32) *Ioctx {
	return &Ioctx{
		root: root,
		uid:  uid,
		gid:  gid,
		cwd:  root,
	}
}

// Fork returns a copy of ctx. The copy shares vnodes with ctx but has its
// own working directory.
func (ctx *Ioctx) Fork() *Ioctx {
	return &Ioctx{
		root: ctx.root,
		uid:  ctx.uid,
		gid:  ctx.gid,
		cwd:  ctx.Cwd(),
	}
}

// Root returns the root directory of ctx.
func (ctx *Ioctx) Root() *Vnode {
	return ctx.root
}

// Cwd returns the working directory of ctx.
func (ctx *Ioctx) Cwd() *Vnode {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.cwd
}

// UID returns the user ID of ctx.
func (ctx *Ioctx) UID() uint32 {
	return ctx.uid
}

// GID returns the group ID of ctx.
func (ctx *Ioctx) GID() uint32 {
	return ctx.gid
}

// start returns the node resolution of p begins at.
func (ctx *Ioctx) start(at *Vnode, p fspath.Path) *Vnode {
	switch {
	case p.Absolute:
		return ctx.root
	case at != nil:
		return at
	default:
		return ctx.Cwd()
	}
}

// Find resolves path. Absolute paths start at the root of ctx, relative
// paths at at, or at the working directory if at is nil. Every node on the
// way, including the result, is collapsed through its mount edges.
//
// "." and ".." never escape the root of ctx. follow is reserved for
// symbolic links, which no backend currently produces.
func (ctx *Ioctx) Find(at *Vnode, path string, follow bool) (*Vnode, error) {
	p, err := fspath.Parse(path)
	if err != nil {
		return nil, err
	}
	node := ctx.start(at, p).Collapse()
	for it := p.Begin; it.Ok(); it = it.Next() {
		if !node.IsDirectory() {
			return nil, linuxerr.ENOTDIR
		}
		switch name := it.String(); name {
		case ".":
		case "..":
			node = ctx.dotdot(node)
		default:
			child, err := node.LookupOrLoad(name)
			if err != nil {
				return nil, err
			}
			node = child
		}
		node = node.Collapse()
	}
	if p.Dir && !node.IsDirectory() {
		return nil, linuxerr.ENOTDIR
	}
	return node, nil
}

// dotdot returns the node ".." names from node. Mounted roots step to
// their mount point first.
func (ctx *Ioctx) dotdot(node *Vnode) *Vnode {
	root := ctx.root.Collapse()
	for {
		if node == ctx.root || node == root {
			return node
		}
		mp := node.MountPoint()
		if mp == nil {
			return node.Parent()
		}
		node = mp
	}
}

// Open opens path, creating a regular file with the given mode if it does
// not exist and O_CREAT is set.
func (ctx *Ioctx) Open(at *Vnode, path string, mode linux.FileMode, flags linux.OpenFlags) (*File, error) {
	node, err := ctx.Find(at, path, true)
	switch {
	case err == nil:
		if flags&(linux.O_CREAT|linux.O_EXCL) == linux.O_CREAT|linux.O_EXCL {
			return nil, linuxerr.EEXIST
		}
		if err := node.CheckPermissions(ctx, AccessTypesForOpenFlags(flags)); err != nil {
			return nil, err
		}
	case flags&linux.O_CREAT != 0 && linuxerr.Equals(linuxerr.ENOENT, err):
		if node, err = ctx.create(at, path, mode, flags); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	f, err := node.Open(flags)
	if err != nil {
		return nil, err
	}
	if flags&linux.O_TRUNC != 0 && node.Kind() == Regular {
		if err := node.Truncate(0); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (ctx *Ioctx) create(at *Vnode, path string, mode linux.FileMode, flags linux.OpenFlags) (*Vnode, error) {
	if strings.HasSuffix(path, "/") {
		return nil, linuxerr.EISDIR
	}
	dir, base := fspath.SplitLast(path)
	parent, err := ctx.Find(at, dir, true)
	if err != nil {
		return nil, err
	}
	if err := parent.CheckPermissions(ctx, MayWrite|MayExec); err != nil {
		return nil, err
	}
	node, err := parent.Create(base, mode, Regular)
	if linuxerr.Equals(linuxerr.EEXIST, err) && flags&linux.O_EXCL == 0 {
		// Created concurrently.
		return parent.LookupOrLoad(base)
	}
	if err != nil {
		return nil, err
	}
	node.SetOwner(ctx.uid, ctx.gid)
	return node, nil
}

// Mkdir creates a directory at path.
func (ctx *Ioctx) Mkdir(at *Vnode, path string, mode linux.FileMode) (*Vnode, error) {
	dir, base := fspath.SplitLast(path)
	switch base {
	case "", ".", "..":
		return nil, linuxerr.EEXIST
	}
	parent, err := ctx.Find(at, dir, true)
	if err != nil {
		return nil, err
	}
	if err := parent.CheckPermissions(ctx, MayWrite|MayExec); err != nil {
		return nil, err
	}
	node, err := parent.Create(base, mode, Directory)
	if err != nil {
		return nil, err
	}
	node.SetOwner(ctx.uid, ctx.gid)
	return node, nil
}

// Unlink removes the object at path.
func (ctx *Ioctx) Unlink(at *Vnode, path string) error {
	dir, base := fspath.SplitLast(path)
	switch base {
	case "", ".", "..":
		return linuxerr.EINVAL
	}
	parent, err := ctx.Find(at, dir, true)
	if err != nil {
		return err
	}
	if err := parent.CheckPermissions(ctx, MayWrite|MayExec); err != nil {
		return err
	}
	return parent.Unlink(base)
}

// Chdir changes the working directory of ctx.
func (ctx *Ioctx) Chdir(path string) error {
	node, err := ctx.Find(nil, path, true)
	if err != nil {
		return err
	}
	if !node.IsDirectory() {
		return linuxerr.ENOTDIR
	}
	if err := node.CheckPermissions(ctx, MayExec); err != nil {
		return err
	}
	ctx.mu.Lock()
	ctx.cwd = node
	ctx.mu.Unlock()
	return nil
}

// Stat returns the status of the object at path.
func (ctx *Ioctx) Stat(at *Vnode, path string) (linux.Stat, error) {
	node, err := ctx.Find(at, path, true)
	if err != nil {
		return linux.Stat{}, err
	}
	return node.Stat()
}

// Access implements access(2) for path.
func (ctx *Ioctx) Access(at *Vnode, path string, mode linux.AccessMode) error {
	node, err := ctx.Find(at, path, true)
	if err != nil {
		return err
	}
	return node.CheckAccess(ctx, mode)
}
