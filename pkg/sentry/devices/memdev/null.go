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

// Package memdev implements the memory character devices: null, zero and
// kmsg.
package memdev

import (
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// Null implements vfs.CharDevice for /dev/null.
type Null struct{}

var _ vfs.CharDevice = Null{}

// Read implements vfs.CharDevice.Read. It always reports end of file.
func (Null) Read(bool, []byte) (int, error) {
	return 0, nil
}

// Write implements vfs.CharDevice.Write.
func (Null) Write(_ bool, buf []byte) (int, error) {
	return len(buf), nil
}

// Zero implements vfs.CharDevice for /dev/zero.
type Zero struct{}

var _ vfs.CharDevice = Zero{}

// Read implements vfs.CharDevice.Read.
func (Zero) Read(_ bool, buf []byte) (int, error) {
	clear(buf)
	return len(buf), nil
}

// Write implements vfs.CharDevice.Write.
func (Zero) Write(_ bool, buf []byte) (int, error) {
	return len(buf), nil
}
