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

package memfs

import (
	"fmt"
	"path"
	"strings"
	"time"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/fspath"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// skipLog reports archive members that memfs cannot represent.
var skipLog = log.BasicRateLimitedLogger(time.Second)

// member is one archive entry, independent of the archive format.
type member struct {
	// name is relative to the archive root and clean. The root itself is "".
	name string
	kind vfs.Kind
	mode linux.FileMode
	uid  uint32
	gid  uint32

	// data is the contents of a regular file. It is referenced by the new
	// file until the file is first modified.
	data []byte
}

// cleanName converts an archive member name to the form used by member.
func cleanName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// add inserts m into the tree, creating missing parent directories with
// the default directory mode.
//
// Preconditions: fs.mu must be locked.
func (fs *Filesystem) add(m member) error {
	if m.name == "" {
		fs.root.SetMode(m.mode)
		fs.root.SetOwner(m.uid, m.gid)
		return nil
	}
	dir, base := fspath.SplitLast(m.name)
	parent, err := fs.makePath(dir)
	if err != nil {
		return fmt.Errorf("creating parent of %q: %w", m.name, err)
	}

	if existing := parent.Lookup(base); existing != nil {
		switch {
		case existing.Kind() == vfs.Directory && m.kind == vfs.Directory:
			// A directory may be named after it was created implicitly as
			// the parent of an earlier member.
			existing.SetMode(m.mode)
			existing.SetOwner(m.uid, m.gid)
			return nil
		case existing.Kind() == vfs.Regular && m.kind == vfs.Regular:
			// Appended archives repeat a file to update it; the last
			// member wins.
			if err := parent.Unlink(base); err != nil {
				return fmt.Errorf("replacing archive member %q: %w", m.name, err)
			}
		default:
			return fmt.Errorf("archive member %q changes type from %v to %v: %w", m.name, existing.Kind(), m.kind, linuxerr.EEXIST)
		}
	}

	var node *vfs.Vnode
	switch m.kind {
	case vfs.Directory:
		node = fs.newDirectory(base)
	case vfs.Regular:
		node = fs.newRegularFile(base, m.data)
	default:
		panic(fmt.Sprintf("unexpected member kind %v", m.kind))
	}
	node.SetMode(m.mode)
	node.SetOwner(m.uid, m.gid)
	return parent.Attach(node)
}

// makePath returns the directory at dir, relative to the root, creating
// any missing components.
//
// Preconditions: fs.mu must be locked.
func (fs *Filesystem) makePath(dir string) (*vfs.Vnode, error) {
	node := fs.root
	if dir == "." {
		return node, nil
	}
	p, err := fspath.Parse(dir)
	if err != nil {
		return nil, err
	}
	for it := p.Begin; it.Ok(); it = it.Next() {
		name := it.String()
		child := node.Lookup(name)
		if child == nil {
			child = fs.newDirectory(name)
			if err := node.Attach(child); err != nil {
				return nil, err
			}
		} else if !child.IsDirectory() {
			return nil, linuxerr.ENOTDIR
		}
		node = child
	}
	return node, nil
}

// load adds every member produced by next until next returns ok == false.
func (fs *Filesystem) load(format string, next func() (m member, ok bool, err error)) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	count := 0
	for {
		m, ok, err := next()
		if err != nil {
			return fmt.Errorf("reading %s archive: %w", format, err)
		}
		if !ok {
			break
		}
		if err := fs.add(m); err != nil {
			return err
		}
		count++
	}
	log.Infof("Loaded %d %s members into %s", count, format, Name)
	return nil
}

// walk calls fn for every node below the root in pre-order, passing paths
// relative to the root.
func (fs *Filesystem) walk(fn func(name string, node *vfs.Vnode) error) error {
	root, err := fs.Root()
	if err != nil {
		return err
	}
	var visit func(prefix string, dir *vfs.Vnode) error
	visit = func(prefix string, dir *vfs.Vnode) error {
		for _, child := range dir.Children() {
			name := prefix + child.Name()
			if err := fn(name, child); err != nil {
				return err
			}
			if child.IsDirectory() {
				if err := visit(name+"/", child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return visit("", root)
}

// contents returns the full contents of a regular file.
func contents(node *vfs.Vnode) ([]byte, error) {
	size, err := node.Size()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := node.Read(0, buf)
	if err != nil {
		return nil, err
	}
	if int64(n) != size {
		return nil, fmt.Errorf("short read of %q: got %d bytes, want %d", node.Name(), n, size)
	}
	return buf, nil
}
