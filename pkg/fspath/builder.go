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

package fspath

import "strings"

// Builder produces pathnames from components supplied in reverse order, leaf
// first. This is the natural order when walking parent edges upward from a
// node to the root of a tree.
type Builder struct {
	// pcs holds components in the order they were prepended.
	pcs    []string
	n      int
	abs    bool
	suffix string
}

// Reset resets the Builder to be empty.
func (b *Builder) Reset() {
	b.pcs = b.pcs[:0]
	b.n = 0
	b.abs = false
	b.suffix = ""
}

// Len returns the length of the string String would return.
func (b *Builder) Len() int {
	n := b.n + len(b.suffix)
	if len(b.pcs) > 1 {
		n += len(b.pcs) - 1
	}
	if b.abs {
		n++
	}
	return n
}

// PrependComponent prepends the given path component. A path separator is
// inserted between components.
func (b *Builder) PrependComponent(pc string) {
	b.pcs = append(b.pcs, pc)
	b.n += len(pc)
}

// PrependRoot marks the path as absolute. It may be called at most once,
// after the last PrependComponent.
func (b *Builder) PrependRoot() {
	b.abs = true
}

// AppendString appends str after the last component, without a separator.
func (b *Builder) AppendString(str string) {
	b.suffix += str
}

// String returns the accumulated pathname. An absolute Builder without
// components yields "/".
func (b *Builder) String() string {
	var sb strings.Builder
	sb.Grow(b.Len())
	if b.abs {
		sb.WriteByte('/')
	}
	for i := len(b.pcs) - 1; i >= 0; i-- {
		sb.WriteString(b.pcs[i])
		if i != 0 {
			sb.WriteByte('/')
		}
	}
	sb.WriteString(b.suffix)
	return sb.String()
}
