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

package bvec

import (
	"kvfs.dev/kvfs/pkg/blockalloc"
)

// BlockRef is an owning reference to one block obtained from an Allocator.
// The zero BlockRef is null.
//
// A BlockRef is either a leaf (file bytes) or an indirect block (further
// references), fixed by the constructor that produced it.
type BlockRef struct {
	alloc blockalloc.Allocator
	h     blockalloc.Handle
}

// NewBlockRef allocates a zero-filled leaf block.
func NewBlockRef(a blockalloc.Allocator) (BlockRef, error) {
	h, err := a.Alloc(blockalloc.Leaf)
	if err != nil {
		return BlockRef{}, err
	}
	return BlockRef{alloc: a, h: h}, nil
}

// NewIndirectRef allocates an indirect block with every entry null.
func NewIndirectRef(a blockalloc.Allocator) (BlockRef, error) {
	h, err := a.Alloc(blockalloc.Indirect)
	if err != nil {
		return BlockRef{}, err
	}
	return BlockRef{alloc: a, h: h}, nil
}

// refOf rebuilds the reference stored in an indirect entry.
func refOf(a blockalloc.Allocator, h blockalloc.Handle) BlockRef {
	return BlockRef{alloc: a, h: h}
}

// IsNull returns true if r holds no block.
func (r BlockRef) IsNull() bool {
	return r.h == 0
}

// Handle returns the allocator handle of r.
func (r BlockRef) Handle() blockalloc.Handle {
	return r.h
}

// Bytes returns the contents of a leaf block.
//
// Preconditions: !r.IsNull() and r is a leaf.
func (r BlockRef) Bytes() []byte {
	return r.alloc.Data(r.h)[:]
}

// Refs returns the entries of an indirect block.
//
// Preconditions: !r.IsNull() and r is an indirect block.
func (r BlockRef) Refs() *[blockalloc.EntryCount]blockalloc.Handle {
	return r.alloc.Refs(r.h)
}

// Release frees the block and makes r null. Releasing a null BlockRef is a
// no-op. Entries of an indirect block are not released.
func (r *BlockRef) Release() {
	if r.h == 0 {
		return
	}
	r.alloc.Free(r.h)
	*r = BlockRef{}
}
