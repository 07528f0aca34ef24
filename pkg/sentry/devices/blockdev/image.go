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

package blockdev

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// DefaultLockTimeout is how long OpenImage waits for a contended image
// lock when ImageOptions.LockTimeout is zero.
const DefaultLockTimeout = time.Second

// ImageOptions controls OpenImage.
type ImageOptions struct {
	// ReadOnly opens the image read-only and takes a shared lock. Otherwise
	// the image is opened read-write under an exclusive lock.
	ReadOnly bool

	// LockTimeout bounds the time spent waiting for the lock.
	LockTimeout time.Duration
}

// Image is a block device backed by a disk image file. The file is locked
// with flock(2) for as long as the device is open, so two read-write
// users cannot share an image.
type Image struct {
	path     string
	readOnly bool

	// mu protects f and lock.
	mu   sync.Mutex
	f    *os.File
	lock *flock.Flock

	// size is immutable.
	size int64
}

var _ vfs.BlockDevice = (*Image)(nil)
var _ vfs.Sizer = (*Image)(nil)

// OpenImage opens the image at path.
func OpenImage(path string, opts ImageOptions) (*Image, error) {
	timeout := opts.LockTimeout
	if timeout == 0 {
		timeout = DefaultLockTimeout
	}
	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	// Open before locking; flock creates missing files.
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("opening image %q: %w", path, err)
	}
	l := flock.New(path)
	if err := acquire(l, opts.ReadOnly, timeout); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking image %q: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		l.Unlock()
		return nil, fmt.Errorf("stat image %q: %w", path, err)
	}
	log.Infof("Opened image %q: %d bytes, read-only: %t", path, fi.Size(), opts.ReadOnly)
	return &Image{
		path:     path,
		readOnly: opts.ReadOnly,
		f:        f,
		lock:     l,
		size:     fi.Size(),
	}, nil
}

// acquire takes a shared or exclusive lock on l, retrying while another
// process holds a conflicting lock.
func acquire(l *flock.Flock, shared bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(10*time.Millisecond), ctx)
	op := func() error {
		var (
			ok  bool
			err error
		)
		if shared {
			ok, err = l.TryRLock()
		} else {
			ok, err = l.TryLock()
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return linuxerr.EBUSY
		}
		return nil
	}
	return backoff.Retry(op, b)
}

// Path returns the image file name.
func (im *Image) Path() string {
	return im.path
}

// ReadOnly returns true if the image was opened read-only.
func (im *Image) ReadOnly() bool {
	return im.readOnly
}

// Read implements vfs.BlockDevice.Read.
func (im *Image) Read(pos int64, buf []byte) error {
	if err := checkRange(pos, len(buf), im.size); err != nil {
		return err
	}
	im.mu.Lock()
	f := im.f
	im.mu.Unlock()
	if f == nil {
		return linuxerr.EBADF
	}
	if _, err := f.ReadAt(buf, pos); err != nil && err != io.EOF {
		log.Warningf("Reading %d bytes at %d from %q: %v", len(buf), pos, im.path, err)
		return linuxerr.EIO
	}
	return nil
}

// Write implements vfs.BlockDevice.Write.
func (im *Image) Write(pos int64, buf []byte) error {
	if im.readOnly {
		return linuxerr.EROFS
	}
	if err := checkRange(pos, len(buf), im.size); err != nil {
		return err
	}
	im.mu.Lock()
	f := im.f
	im.mu.Unlock()
	if f == nil {
		return linuxerr.EBADF
	}
	if _, err := f.WriteAt(buf, pos); err != nil {
		log.Warningf("Writing %d bytes at %d to %q: %v", len(buf), pos, im.path, err)
		return linuxerr.EIO
	}
	return nil
}

// Size implements vfs.Sizer.Size.
func (im *Image) Size() int64 {
	return im.size
}

// Close releases the file and its lock. Further I/O fails with EBADF.
func (im *Image) Close() error {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.f == nil {
		return linuxerr.EBADF
	}
	err := im.f.Close()
	im.f = nil
	if uerr := im.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
