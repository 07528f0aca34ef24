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

// Package blockdev provides vfs.BlockDevice implementations: a memory
// backed disk and a disk image file.
package blockdev

import (
	"sync"

	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// SectorSize is the unit devices are addressed in by filesystems.
const SectorSize = 512

// checkRange validates an access of n bytes at pos against a device of the
// given size.
func checkRange(pos int64, n int, size int64) error {
	if pos < 0 {
		return linuxerr.EINVAL
	}
	if pos > size || int64(n) > size-pos {
		return linuxerr.EIO
	}
	return nil
}

// Memory is a block device backed by a byte slice.
type Memory struct {
	mu       sync.RWMutex
	data     []byte
	readOnly bool
}

var _ vfs.BlockDevice = (*Memory)(nil)
var _ vfs.Sizer = (*Memory)(nil)

// NewMemory returns a zero-filled device of size bytes.
func NewMemory(size int64) *Memory {
	return &Memory{data: make([]byte, size)}
}

// NewMemoryFrom returns a device over data. The device takes ownership of
// data.
func NewMemoryFrom(data []byte, readOnly bool) *Memory {
	return &Memory{data: data, readOnly: readOnly}
}

// Read implements vfs.BlockDevice.Read.
func (m *Memory) Read(pos int64, buf []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := checkRange(pos, len(buf), int64(len(m.data))); err != nil {
		return err
	}
	copy(buf, m.data[pos:])
	return nil
}

// Write implements vfs.BlockDevice.Write.
func (m *Memory) Write(pos int64, buf []byte) error {
	if m.readOnly {
		return linuxerr.EROFS
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(pos, len(buf), int64(len(m.data))); err != nil {
		return err
	}
	copy(m.data[pos:], buf)
	return nil
}

// Size implements vfs.Sizer.Size.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// Bytes returns a copy of the device contents.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data...)
}
