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

// A File is an open handle to a Vnode.
type File struct {
	node *Vnode

	// readable, writable, appendMode and cloexec are immutable.
	readable   bool
	writable   bool
	appendMode bool
	cloexec    bool

	// mu protects the fields below. It serializes I/O through this handle.
	mu sync.Mutex

	// pos is the byte offset for regular files and devices, and the readdir
	// cursor for directories.
	pos    int64
	closed bool
}

func newFile(node *Vnode, flags linux.OpenFlags, pos int64) *File {
	am := flags.AccessMode()
	return &File{
		node:       node,
		readable:   am == linux.O_RDONLY || am == linux.O_RDWR,
		writable:   am == linux.O_WRONLY || am == linux.O_RDWR,
		appendMode: flags&linux.O_APPEND != 0,
		cloexec:    flags&linux.O_CLOEXEC != 0,
		pos:        pos,
	}
}

// Node returns the vnode f refers to.
func (f *File) Node() *Vnode {
	return f.node
}

// Readable returns true if f was opened for reading.
func (f *File) Readable() bool {
	return f.readable
}

// Writable returns true if f was opened for writing.
func (f *File) Writable() bool {
	return f.writable
}

// IsCloexec returns true if f was opened with O_CLOEXEC.
func (f *File) IsCloexec() bool {
	return f.cloexec
}

// Pos returns f's current offset.
func (f *File) Pos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Read reads from the current offset and advances it.
func (f *File) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || !f.readable {
		return 0, linuxerr.EBADF
	}
	n, err := f.node.Read(f.pos, buf)
	f.pos += int64(n)
	return n, err
}

// Write writes at the current offset, or at the end of the file for
// O_APPEND handles, and advances the offset.
func (f *File) Write(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || !f.writable {
		return 0, linuxerr.EBADF
	}
	if f.appendMode && f.node.Kind() == Regular {
		size, err := f.node.Size()
		if err != nil {
			return 0, err
		}
		f.pos = size
	}
	n, err := f.node.Write(f.pos, buf)
	f.pos += int64(n)
	return n, err
}

// Seek repositions f. Offsets are clamped to [0, size].
//
// Directory handles only accept SEEK_SET, which sets the readdir cursor.
func (f *File) Seek(offset int64, whence int32) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, linuxerr.EBADF
	}
	if f.node.IsDirectory() {
		if whence != linux.SEEK_SET || offset < 0 {
			return 0, linuxerr.EINVAL
		}
		f.pos = offset
		return f.pos, nil
	}
	if !f.node.IsSeekable() {
		return 0, linuxerr.EINVAL
	}
	size, err := f.node.Size()
	if err != nil {
		return 0, err
	}

	var pos int64
	switch whence {
	case linux.SEEK_SET:
		pos = offset
	case linux.SEEK_CUR:
		pos = f.pos + offset
	case linux.SEEK_END:
		pos = size + offset
	default:
		return 0, linuxerr.EINVAL
	}
	if pos < 0 {
		return 0, linuxerr.EINVAL
	}
	f.pos = min(pos, size)
	return f.pos, nil
}

// Readdir returns up to count entries from the cursor and advances it past
// the last returned entry.
func (f *File) Readdir(count int) ([]linux.Dirent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, linuxerr.EBADF
	}
	ents, err := f.node.Readdir(f.pos, count)
	if len(ents) != 0 {
		f.pos = ents[len(ents)-1].NextOff
	}
	return ents, err
}

// Stat returns the status of f's vnode.
func (f *File) Stat() (linux.Stat, error) {
	if f.isClosed() {
		return linux.Stat{}, linuxerr.EBADF
	}
	return f.node.Stat()
}

// Ioctl forwards a request to f's vnode.
func (f *File) Ioctl(cmd uint64, arg uintptr, size int) (int, error) {
	if f.isClosed() {
		return 0, linuxerr.EBADF
	}
	return f.node.Ioctl(cmd, arg, size)
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close releases f. Closing a handle twice returns EBADF.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return linuxerr.EBADF
	}
	f.closed = true
	return f.node.close()
}
