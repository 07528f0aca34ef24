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

package memdev

import (
	"bytes"
	"sync"

	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// kmsgMax bounds the number of retained lines.
const kmsgMax = 256

// Kmsg implements vfs.CharDevice for /dev/kmsg. Each line written is sent
// to the log and retained; reads return retained lines, oldest first.
type Kmsg struct {
	mu      sync.Mutex
	partial []byte
	lines   [][]byte
}

var _ vfs.CharDevice = (*Kmsg)(nil)
var _ vfs.Poller = (*Kmsg)(nil)

// Write implements vfs.CharDevice.Write.
func (k *Kmsg) Write(_ bool, buf []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.partial = append(k.partial, buf...)
	for {
		i := bytes.IndexByte(k.partial, '\n')
		if i < 0 {
			break
		}
		line := append([]byte(nil), k.partial[:i+1]...)
		k.partial = k.partial[i+1:]
		log.Infof("kmsg: %s", bytes.TrimRight(line, "\n"))
		if len(k.lines) == kmsgMax {
			k.lines = k.lines[1:]
		}
		k.lines = append(k.lines, line)
	}
	return len(buf), nil
}

// Read implements vfs.CharDevice.Read. As in Linux, each read returns one
// whole line and fails with EINVAL if buf cannot hold it. With nothing
// retained, a blocking read reports end of file and a non-blocking one
// EAGAIN.
func (k *Kmsg) Read(blocking bool, buf []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.lines) == 0 {
		if blocking {
			return 0, nil
		}
		return 0, linuxerr.EAGAIN
	}
	line := k.lines[0]
	if len(buf) < len(line) {
		return 0, linuxerr.EINVAL
	}
	k.lines = k.lines[1:]
	return copy(buf, line), nil
}

// IsReady implements vfs.Poller.IsReady.
func (k *Kmsg) IsReady(write bool) (bool, error) {
	if write {
		return true, nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.lines) > 0, nil
}
