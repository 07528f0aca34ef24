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

// Package boot assembles a namespace from a mount table: it opens every
// backend, populates the pseudo filesystems and links the mounts together.
package boot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/blockalloc"
	"kvfs.dev/kvfs/pkg/cleanup"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/devices/blockdev"
	"kvfs.dev/kvfs/pkg/sentry/fsimpl/fat32"
	"kvfs.dev/kvfs/pkg/sentry/fsimpl/memfs"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/config"
)

// Args are the arguments for New.
type Args struct {
	// Conf is the vfsctl configuration.
	Conf *config.Config

	// Mounts is the resolved mount table, parents first.
	Mounts []config.Mount

	// Stdin and Stdout back the ttyS0 serial device of devfs mounts.
	Stdin  io.Reader
	Stdout io.Writer
}

// Mounted is one filesystem of a namespace.
type Mounted struct {
	config.Mount

	// FS is the mounted filesystem.
	FS vfs.Filesystem

	// Root is the root vnode of FS.
	Root *vfs.Vnode

	// image is the block device a fat32 mount is read from.
	image *blockdev.Image
}

// Namespace is a vnode tree assembled from a mount table.
type Namespace struct {
	conf   *config.Config
	root   *vfs.Vnode
	mounts []*Mounted
	arena  *blockalloc.Arena
	start  time.Time
}

// New opens all filesystems named in args.Mounts and mounts them. Backends
// are opened concurrently; pseudo filesystems are populated once every
// image is open so that devfs can expose them.
func New(ctx context.Context, args Args) (*Namespace, error) {
	ns := &Namespace{
		conf:   args.Conf,
		mounts: make([]*Mounted, len(args.Mounts)),
		arena:  blockalloc.NewArena(uint32(args.Conf.MaxBlocks)),
		start:  time.Now(),
	}
	cu := cleanup.Make(func() { ns.Close() })
	defer cu.Clean()

	g, gctx := errgroup.WithContext(ctx)
	for i := range args.Mounts {
		m := args.Mounts[i]
		ns.mounts[i] = &Mounted{Mount: m}
		if m.Type != config.MemFS && m.Type != config.FAT32 {
			continue
		}
		mnt := ns.mounts[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return ns.openBackend(mnt)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, mnt := range ns.mounts {
		var err error
		switch mnt.Type {
		case config.DevFS:
			mnt.FS, err = ns.newDevfs(mnt, args.Stdin, args.Stdout)
		case config.SysFS:
			mnt.FS = ns.newSysfs()
		}
		if err != nil {
			return nil, fmt.Errorf("creating %v: %w", &mnt.Mount, err)
		}
		if mnt.Root, err = mnt.FS.Root(); err != nil {
			return nil, fmt.Errorf("root of %v: %w", &mnt.Mount, err)
		}
	}

	if err := ns.link(); err != nil {
		return nil, err
	}
	cu.Release()
	return ns, nil
}

func (ns *Namespace) openBackend(mnt *Mounted) error {
	log.Debugf("Opening %v", &mnt.Mount)
	switch mnt.Type {
	case config.MemFS:
		fs := memfs.New(ns.arena, mnt.RootMode())
		if mnt.Source != "" {
			if err := loadArchive(fs, mnt.Source, mnt.Format); err != nil {
				return fmt.Errorf("loading %v: %w", &mnt.Mount, err)
			}
		}
		mnt.FS = fs

	case config.FAT32:
		img, err := blockdev.OpenImage(mnt.Source, blockdev.ImageOptions{
			ReadOnly:    mnt.IsReadOnly(),
			LockTimeout: ns.conf.LockTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening %v: %w", &mnt.Mount, err)
		}
		mnt.image = img
		fs, err := fat32.Open(img)
		if err != nil {
			return fmt.Errorf("mounting %v: %w", &mnt.Mount, err)
		}
		mnt.FS = fs
	}

	var err error
	mnt.Root, err = mnt.FS.Root()
	return err
}

func loadArchive(fs *memfs.Filesystem, source, format string) error {
	f, err := os.Open(source)
	if err != nil {
		return err
	}
	defer f.Close()
	if format == config.FormatCpio {
		return fs.LoadCpio(f)
	}
	return fs.LoadTar(f)
}

// link builds the tree: the "/" entry, or an empty memfs, becomes the root
// and every other entry is mounted on a directory created on demand.
func (ns *Namespace) link() error {
	first := 0
	if len(ns.mounts) > 0 && ns.mounts[0].Path == "/" {
		ns.root = ns.mounts[0].Root
		first = 1
	} else {
		root, err := memfs.New(ns.arena, linux.DefaultDirMode).Root()
		if err != nil {
			return err
		}
		ns.root = root
	}

	setup := vfs.NewIoctx(ns.root, 0, 0)
	for _, mnt := range ns.mounts[first:] {
		log.Debugf("Mounting %v", &mnt.Mount)
		if err := makeMountPoint(setup, mnt.Path); err != nil {
			return err
		}
		mp, err := setup.Find(nil, mnt.Path, true)
		if err != nil {
			return fmt.Errorf("resolving mount point %q: %w", mnt.Path, err)
		}
		if err := mp.Mount(mnt.Root); err != nil {
			return fmt.Errorf("failed to mount %v: %w", &mnt.Mount, err)
		}
		log.Infof("Mounted %v", &mnt.Mount)
	}
	return nil
}

// makeMountPoint creates the directory p and its missing parents.
func makeMountPoint(ctx *vfs.Ioctx, p string) error {
	_, err := ctx.Stat(nil, p)
	if err == nil {
		// Mount point exists, nothing else to do.
		return nil
	}
	if !linuxerr.Equals(linuxerr.ENOENT, err) {
		return fmt.Errorf("stat failed for %q during mount point creation: %w", p, err)
	}

	// Recurse to ensure parent is created and then create the mount point.
	if err := makeMountPoint(ctx, path.Dir(p)); err != nil {
		return err
	}
	log.Debugf("Creating dir %q for mount point", p)
	if _, err := ctx.Mkdir(nil, p, linux.DefaultDirMode); err != nil {
		return fmt.Errorf("failed to create directory %q for mount: %w", p, err)
	}
	return nil
}

// Root returns the root of the namespace.
func (ns *Namespace) Root() *vfs.Vnode {
	return ns.root
}

// Mounts returns the filesystems of the namespace, parents first.
func (ns *Namespace) Mounts() []*Mounted {
	return ns.mounts
}

// Arena returns the allocator shared by memfs mounts.
func (ns *Namespace) Arena() *blockalloc.Arena {
	return ns.arena
}

// NewIoctx returns a context resolving paths from the namespace root with
// the configured credentials.
func (ns *Namespace) NewIoctx() *vfs.Ioctx {
	return vfs.NewIoctx(ns.root, uint32(ns.conf.UID), uint32(ns.conf.GID))
}

// MountOf returns the mount whose tree contains node.
func (ns *Namespace) MountOf(node *vfs.Vnode) *Mounted {
	fs := node.FS()
	for _, mnt := range ns.mounts {
		if mnt.FS == fs {
			return mnt
		}
	}
	return nil
}

// Sync writes every writable memfs mount that was loaded from an archive
// back to its source. The archive is replaced atomically.
func (ns *Namespace) Sync() error {
	for _, mnt := range ns.mounts {
		fs, ok := mnt.FS.(*memfs.Filesystem)
		if !ok || mnt.Source == "" || mnt.IsReadOnly() {
			continue
		}
		if err := saveArchive(fs, mnt.Source, mnt.Format); err != nil {
			return fmt.Errorf("saving %v: %w", &mnt.Mount, err)
		}
		log.Infof("Saved %v", &mnt.Mount)
	}
	return nil
}

func saveArchive(fs *memfs.Filesystem, dest, format string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteArchive(fs, tmp, format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// WriteArchive writes fs to w in the given archive format.
func WriteArchive(fs *memfs.Filesystem, w io.Writer, format string) error {
	switch format {
	case config.FormatCpio:
		return fs.WriteCpio(w)
	case config.FormatTar, "":
		return fs.WriteTar(w)
	default:
		return fmt.Errorf("unknown archive format %q: %w", format, linuxerr.EINVAL)
	}
}

// Close releases the images held by the namespace. It returns the first
// error encountered.
func (ns *Namespace) Close() error {
	var firstErr error
	for _, mnt := range ns.mounts {
		if mnt == nil || mnt.image == nil {
			continue
		}
		if err := mnt.image.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		mnt.image = nil
	}
	return firstErr
}
