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

// BlockDevice is random-access storage addressed in bytes. Callers are
// expected to keep offsets and lengths aligned to the device's sector
// size.
type BlockDevice interface {
	// Read fills buf from the device starting at pos.
	Read(pos int64, buf []byte) error

	// Write stores buf on the device starting at pos.
	Write(pos int64, buf []byte) error
}

// Sizer is implemented by devices that know their capacity in bytes.
type Sizer interface {
	Size() int64
}

// CharDevice is a stream device. A non-blocking call that cannot make
// progress returns EAGAIN.
type CharDevice interface {
	Read(blocking bool, buf []byte) (int, error)
	Write(blocking bool, buf []byte) (int, error)
}

// Poller is implemented by character devices that can report readiness.
type Poller interface {
	IsReady(write bool) (bool, error)
}

// Ioctler is implemented by devices that accept ioctl requests.
type Ioctler interface {
	Ioctl(cmd uint64, arg uintptr, size int) (int, error)
}

// CharDeviceWrapper implements VnodeImpl for Char vnodes by forwarding to
// a CharDevice.
type CharDeviceWrapper struct {
	VnodeNotDirectory
	VnodeNoopOpenClose
	VnodeCachedStat

	dev      CharDevice
	blocking bool
}

// NewCharDeviceWrapper returns a wrapper that calls dev in blocking or
// non-blocking mode.
func NewCharDeviceWrapper(dev CharDevice, blocking bool) *CharDeviceWrapper {
	return &CharDeviceWrapper{dev: dev, blocking: blocking}
}

// Device returns the wrapped device.
func (w *CharDeviceWrapper) Device() CharDevice {
	return w.dev
}

// Read implements VnodeImpl.Read. The position is ignored.
func (w *CharDeviceWrapper) Read(_ *Vnode, _ int64, buf []byte) (int, error) {
	return w.dev.Read(w.blocking, buf)
}

// Write implements VnodeImpl.Write. The position is ignored.
func (w *CharDeviceWrapper) Write(_ *Vnode, _ int64, buf []byte) (int, error) {
	return w.dev.Write(w.blocking, buf)
}

// Truncate implements VnodeImpl.Truncate.
func (w *CharDeviceWrapper) Truncate(*Vnode, int64) error {
	return linuxerr.EINVAL
}

// Size implements VnodeImpl.Size. Streams have no size.
func (w *CharDeviceWrapper) Size(*Vnode) (int64, error) {
	return 0, nil
}

// Ioctl implements VnodeImpl.Ioctl.
func (w *CharDeviceWrapper) Ioctl(_ *Vnode, cmd uint64, arg uintptr, size int) (int, error) {
	if i, ok := w.dev.(Ioctler); ok {
		return i.Ioctl(cmd, arg, size)
	}
	return 0, linuxerr.ENOTTY
}

// IsReady implements VnodeImpl.IsReady.
func (w *CharDeviceWrapper) IsReady(_ *Vnode, write bool) (bool, error) {
	if p, ok := w.dev.(Poller); ok {
		return p.IsReady(write)
	}
	return true, nil
}

// BlockDeviceWrapper implements VnodeImpl for Block vnodes by forwarding to
// a BlockDevice.
type BlockDeviceWrapper struct {
	VnodeNotDirectory
	VnodeNoopOpenClose
	VnodeAlwaysReady

	dev BlockDevice
}

// NewBlockDeviceWrapper returns a wrapper around dev.
func NewBlockDeviceWrapper(dev BlockDevice) *BlockDeviceWrapper {
	return &BlockDeviceWrapper{dev: dev}
}

// Device returns the wrapped device.
func (w *BlockDeviceWrapper) Device() BlockDevice {
	return w.dev
}

func (w *BlockDeviceWrapper) size() int64 {
	if s, ok := w.dev.(Sizer); ok {
		return s.Size()
	}
	return -1
}

// clamp limits buf to the device capacity, if known.
func (w *BlockDeviceWrapper) clamp(pos int64, buf []byte) ([]byte, error) {
	if pos < 0 {
		return nil, linuxerr.EINVAL
	}
	size := w.size()
	if size < 0 {
		return buf, nil
	}
	if pos >= size {
		return buf[:0], nil
	}
	if rem := size - pos; int64(len(buf)) > rem {
		buf = buf[:rem]
	}
	return buf, nil
}

// Read implements VnodeImpl.Read.
func (w *BlockDeviceWrapper) Read(_ *Vnode, pos int64, buf []byte) (int, error) {
	buf, err := w.clamp(pos, buf)
	if err != nil || len(buf) == 0 {
		return 0, err
	}
	if err := w.dev.Read(pos, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Write implements VnodeImpl.Write.
func (w *BlockDeviceWrapper) Write(_ *Vnode, pos int64, buf []byte) (int, error) {
	dst, err := w.clamp(pos, buf)
	if err != nil {
		return 0, err
	}
	if len(dst) == 0 && len(buf) != 0 {
		return 0, linuxerr.ENOSPC
	}
	if err := w.dev.Write(pos, dst); err != nil {
		return 0, err
	}
	return len(dst), nil
}

// Truncate implements VnodeImpl.Truncate.
func (w *BlockDeviceWrapper) Truncate(*Vnode, int64) error {
	return linuxerr.EINVAL
}

// Size implements VnodeImpl.Size.
func (w *BlockDeviceWrapper) Size(*Vnode) (int64, error) {
	if size := w.size(); size >= 0 {
		return size, nil
	}
	return 0, nil
}

// Stat implements VnodeImpl.Stat.
func (w *BlockDeviceWrapper) Stat(node *Vnode) (linux.Stat, error) {
	stat := node.CachedStat()
	if size := w.size(); size > 0 {
		stat.Size = uint64(size)
	}
	stat.Blksize = sectorSize
	stat.Blocks = (stat.Size + 511) / 512
	return stat, nil
}

const sectorSize = 512

// Ioctl implements VnodeImpl.Ioctl.
func (w *BlockDeviceWrapper) Ioctl(_ *Vnode, cmd uint64, arg uintptr, size int) (int, error) {
	switch cmd {
	case linux.BLKSSZGET:
		return sectorSize, nil
	case linux.BLKGETSIZE64:
		if s := w.size(); s >= 0 {
			return int(s), nil
		}
	}
	if i, ok := w.dev.(Ioctler); ok {
		return i.Ioctl(cmd, arg, size)
	}
	return 0, linuxerr.ENOTTY
}
