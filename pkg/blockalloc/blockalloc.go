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

// Package blockalloc supplies fixed-size memory blocks to the VFS storage
// engine.
//
// A block is either a leaf, holding BlockSize bytes of file data, or an
// indirect block, holding EntryCount handles of further blocks. The kind is
// chosen at allocation time and never changes, so callers never reinterpret
// one as the other.
package blockalloc

import (
	"fmt"
	"sync"

	"kvfs.dev/kvfs/pkg/bitmap"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
)

const (
	// BlockSize is the size of a leaf block in bytes.
	BlockSize = 4096

	// entrySize is the size of one block reference in an indirect block.
	entrySize = 8

	// EntryCount is the number of references an indirect block holds.
	EntryCount = BlockSize / entrySize

	// DefaultMaxBlocks bounds an Arena created with a zero limit (1 GiB of
	// leaves).
	DefaultMaxBlocks = 1 << 18
)

// Handle names a block owned by an Allocator. The zero Handle is null.
type Handle uint32

// Kind is the interpretation of a block.
type Kind uint8

// Block kinds.
const (
	Leaf Kind = iota
	Indirect
)

func (k Kind) String() string {
	switch k {
	case Leaf:
		return "leaf"
	case Indirect:
		return "indirect"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Allocator supplies and reclaims blocks. Implementations must be safe for
// concurrent use.
type Allocator interface {
	// Alloc returns a new zero-filled block of the given kind. It returns
	// ENOMEM when no block is available.
	Alloc(kind Kind) (Handle, error)

	// Free returns a block previously returned by Alloc. Freeing the null
	// handle or a handle that is not allocated panics.
	Free(h Handle)

	// Data returns the bytes of a leaf block.
	Data(h Handle) *[BlockSize]byte

	// Refs returns the entries of an indirect block.
	Refs(h Handle) *[EntryCount]Handle
}

// Stats are the counters kept by an Arena.
type Stats struct {
	// Allocs is the number of successful Alloc calls.
	Allocs uint64

	// Frees is the number of Free calls.
	Frees uint64

	// InUse is the number of blocks currently allocated.
	InUse uint32

	// Limit is the maximum number of blocks that may be allocated at once.
	Limit uint32
}

type block struct {
	kind Kind
	data *[BlockSize]byte
	refs *[EntryCount]Handle
}

// Arena is an Allocator backed by Go memory, with a fixed maximum number of
// simultaneously allocated blocks.
type Arena struct {
	mu sync.Mutex

	// used has bit h set iff handle h is allocated. Bit 0 stands for the
	// null handle and is always set.
	used bitmap.Bitmap

	// blocks is indexed by handle.
	blocks []block

	limit  uint32
	allocs uint64
	frees  uint64
}

// NewArena returns an Arena that allows at most maxBlocks blocks to be
// allocated at once. Zero selects DefaultMaxBlocks.
func NewArena(maxBlocks uint32) *Arena {
	if maxBlocks == 0 {
		maxBlocks = DefaultMaxBlocks
	}
	a := &Arena{
		used:   bitmap.New(maxBlocks + 1),
		blocks: make([]block, 1, 64),
		limit:  maxBlocks,
	}
	a.used.Add(0)
	return a
}

// Alloc implements Allocator.Alloc.
func (a *Arena) Alloc(kind Kind) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, err := a.used.FirstZero(1, a.limit+1)
	if err != nil {
		log.Debugf("block arena exhausted: %d blocks in use", a.used.Count()-1)
		return 0, linuxerr.ENOMEM
	}
	a.used.Add(i)
	if int(i) == len(a.blocks) {
		a.blocks = append(a.blocks, block{})
	}
	b := &a.blocks[i]
	b.kind = kind
	switch kind {
	case Leaf:
		b.data = new([BlockSize]byte)
	case Indirect:
		b.refs = new([EntryCount]Handle)
	default:
		panic(fmt.Sprintf("unknown block kind %v", kind))
	}
	a.allocs++
	return Handle(i), nil
}

// Free implements Allocator.Free.
func (a *Arena) Free(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h == 0 || !a.used.Contains(uint32(h)) {
		panic(fmt.Sprintf("free of unallocated block %d", h))
	}
	a.used.Remove(uint32(h))
	a.blocks[h] = block{}
	a.frees++
}

func (a *Arena) get(h Handle, kind Kind) block {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h == 0 || !a.used.Contains(uint32(h)) {
		panic(fmt.Sprintf("access to unallocated block %d", h))
	}
	b := a.blocks[h]
	if b.kind != kind {
		panic(fmt.Sprintf("block %d is a %v block, not %v", h, b.kind, kind))
	}
	return b
}

// Data implements Allocator.Data.
func (a *Arena) Data(h Handle) *[BlockSize]byte {
	return a.get(h, Leaf).data
}

// Refs implements Allocator.Refs.
func (a *Arena) Refs(h Handle) *[EntryCount]Handle {
	return a.get(h, Indirect).refs
}

// Stats returns a snapshot of the arena's counters.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Allocs: a.allocs,
		Frees:  a.frees,
		InUse:  a.used.Count() - 1,
		Limit:  a.limit,
	}
}
