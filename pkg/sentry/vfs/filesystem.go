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

// Filesystem is one mounted storage instance.
type Filesystem interface {
	// Root returns the root directory of the filesystem. It returns ENOENT
	// if the filesystem has not been populated.
	Root() (*Vnode, error)

	// Dev returns the device the filesystem is stored on, or nil.
	Dev() BlockDevice

	// Data returns backend-private data, or nil.
	Data() any
}
