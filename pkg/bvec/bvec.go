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

// Package bvec implements a growable byte vector stored in fixed-size blocks
// addressed through a classical inode block map: L0Blocks direct blocks,
// L1Blocks single-indirect blocks and one double-indirect block.
//
// Block index space is partitioned, in order, as
//
//	[0, L0Blocks)                       direct
//	[L0Blocks, l2Start)                 single-indirect, EntryCount per block
//	[l2Start, l2Start+EntryCount^2)     double-indirect
//
// Slot i is populated iff i < Capacity(). Growing populates exactly the new
// range plus any indirect blocks on the path to it; shrinking frees exactly
// the removed range plus any indirect block left empty.
package bvec

import (
	"fmt"
	"sync"

	"kvfs.dev/kvfs/pkg/blockalloc"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

const (
	// BlockSize is the number of bytes held by one data block.
	BlockSize = blockalloc.BlockSize

	// EntryCount is the number of references held by one indirect block.
	EntryCount = blockalloc.EntryCount

	// L0Blocks is the number of direct blocks (128 KiB).
	L0Blocks = 32

	// L1Blocks is the number of single-indirect blocks (16 MiB).
	L1Blocks = 8

	l2Start = L0Blocks + L1Blocks*EntryCount

	// MaxBlocks is the largest capacity a Bvec can have.
	MaxBlocks = l2Start + EntryCount*EntryCount

	// MaxSize is the largest size in bytes a Bvec can have.
	MaxSize = int64(MaxBlocks) * BlockSize
)

// Bvec is a sparse, resizable byte vector.
//
// Bvec is safe for concurrent use; every method takes the vector's lock.
type Bvec struct {
	alloc blockalloc.Allocator

	mu sync.Mutex

	// capacity is the number of populated block slots.
	capacity int

	// size is the logical length in bytes. Invariant:
	// size <= capacity*BlockSize, unless cow is set, in which case
	// size == len(cow) and capacity == 0.
	size int64

	l0 [L0Blocks]BlockRef
	l1 [L1Blocks]BlockRef
	l2 BlockRef

	// cow, if not nil, is the pending initial content. It is never written.
	cow []byte
}

// New returns an empty Bvec whose blocks come from a.
func New(a blockalloc.Allocator) *Bvec {
	return &Bvec{alloc: a}
}

// NewCow returns a Bvec whose content is src. No block is allocated until
// the first mutation; src must not be modified by the caller afterwards.
func NewCow(a blockalloc.Allocator, src []byte) *Bvec {
	return &Bvec{alloc: a, size: int64(len(src)), cow: src}
}

// Size returns the length in bytes.
func (b *Bvec) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the number of allocated data blocks.
func (b *Bvec) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// IsCow returns true if the content still lives in the copy-on-write source.
func (b *Bvec) IsCow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cow != nil
}

// Block returns the data block at index.
//
// Preconditions: index < Capacity(). Violations panic.
func (b *Bvec) Block(index int) BlockRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block(index)
}

// block returns the reference for data block index.
//
// Preconditions: b.mu is locked.
func (b *Bvec) block(index int) BlockRef {
	if index < 0 || index >= b.capacity {
		panic(fmt.Sprintf("index exceeds bvec capacity (%d >= %d)", index, b.capacity))
	}
	switch {
	case index < L0Blocks:
		return b.l0[index]
	case index < l2Start:
		i := index - L0Blocks
		return b.entry(b.l1[i/EntryCount], i%EntryCount)
	default:
		i := index - l2Start
		return b.entry(b.entry(b.l2, i/EntryCount), i%EntryCount)
	}
}

// entry returns the reference stored in entry i of the indirect block ind.
func (b *Bvec) entry(ind BlockRef, i int) BlockRef {
	if ind.IsNull() {
		panic("bvec: populated slot behind a null indirect block")
	}
	return refOf(b.alloc, ind.Refs()[i])
}

func setEntry(ind BlockRef, i int, r BlockRef) {
	ind.Refs()[i] = r.h
}

// Resize sets the capacity to exactly n blocks. If the size exceeds the new
// capacity it is cut to n*BlockSize. A pending copy-on-write source is
// materialized first.
func (b *Bvec) Resize(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cow != nil {
		if err := b.dropCow(); err != nil {
			return err
		}
	}
	return b.resize(n)
}

// resize implements Resize.
//
// Preconditions: b.mu is locked; b.cow == nil.
func (b *Bvec) resize(n int) error {
	if b.cow != nil {
		panic("bvec: resize with copy-on-write pending")
	}
	if n < 0 || n > MaxBlocks {
		return linuxerr.EFBIG
	}
	if n < b.capacity {
		b.shrink(n)
	} else {
		old := b.capacity
		for b.capacity < n {
			if err := b.growOne(); err != nil {
				b.shrink(old)
				return err
			}
		}
	}
	if limit := int64(n) * BlockSize; b.size > limit {
		b.size = limit
	}
	return nil
}

// growOne populates slot b.capacity. On failure nothing new stays allocated.
func (b *Bvec) growOne() error {
	index := b.capacity
	data, err := NewBlockRef(b.alloc)
	if err != nil {
		return err
	}
	switch {
	case index < L0Blocks:
		if !b.l0[index].IsNull() {
			panic(fmt.Sprintf("bvec: direct slot %d populated beyond capacity", index))
		}
		b.l0[index] = data
	case index < l2Start:
		i := index - L0Blocks
		l1 := &b.l1[i/EntryCount]
		if l1.IsNull() {
			r, err := NewIndirectRef(b.alloc)
			if err != nil {
				data.Release()
				return err
			}
			*l1 = r
		}
		b.install(*l1, i%EntryCount, data)
	default:
		i := index - l2Start
		freshL2 := false
		if b.l2.IsNull() {
			r, err := NewIndirectRef(b.alloc)
			if err != nil {
				data.Release()
				return err
			}
			b.l2 = r
			freshL2 = true
		}
		l1 := b.entry(b.l2, i/EntryCount)
		if l1.IsNull() {
			r, err := NewIndirectRef(b.alloc)
			if err != nil {
				data.Release()
				if freshL2 {
					b.l2.Release()
				}
				return err
			}
			l1 = r
			setEntry(b.l2, i/EntryCount, r)
		}
		b.install(l1, i%EntryCount, data)
	}
	b.capacity++
	return nil
}

func (b *Bvec) install(ind BlockRef, i int, data BlockRef) {
	if ind.Refs()[i] != 0 {
		panic(fmt.Sprintf("bvec: indirect entry %d populated beyond capacity", i))
	}
	setEntry(ind, i, data)
}

// shrink frees slots [n, b.capacity), walking downward, along with every
// indirect block whose first entry is freed.
func (b *Bvec) shrink(n int) {
	for b.capacity > n {
		b.capacity--
		index := b.capacity
		switch {
		case index < L0Blocks:
			b.l0[index].Release()
		case index < l2Start:
			i := index - L0Blocks
			l1 := &b.l1[i/EntryCount]
			b.releaseEntry(*l1, i%EntryCount)
			if i%EntryCount == 0 {
				l1.Release()
			}
		default:
			i := index - l2Start
			l1 := b.entry(b.l2, i/EntryCount)
			b.releaseEntry(l1, i%EntryCount)
			if i%EntryCount == 0 {
				l1.Release()
				setEntry(b.l2, i/EntryCount, BlockRef{})
			}
			if i == 0 {
				b.l2.Release()
			}
		}
	}
}

func (b *Bvec) releaseEntry(ind BlockRef, i int) {
	r := b.entry(ind, i)
	if r.IsNull() {
		panic(fmt.Sprintf("bvec: freeing null indirect entry %d", i))
	}
	r.Release()
	setEntry(ind, i, BlockRef{})
}

// dropCow copies the copy-on-write source into real blocks.
//
// Preconditions: b.mu is locked; b.cow != nil.
func (b *Bvec) dropCow() error {
	src := b.cow
	b.cow = nil
	if err := b.resize(blocksFor(int64(len(src)))); err != nil {
		b.cow = src
		return err
	}
	b.copyIn(0, src)
	return nil
}

func blocksFor(size int64) int {
	return int((size + BlockSize - 1) / BlockSize)
}

// copyIn copies data into the blocks starting at byte pos.
//
// Preconditions: pos+len(data) <= b.capacity*BlockSize.
func (b *Bvec) copyIn(pos int64, data []byte) int {
	done := 0
	for done < len(data) {
		off := int(pos % BlockSize)
		n := copy(b.block(int(pos/BlockSize)).Bytes()[off:], data[done:])
		done += n
		pos += int64(n)
	}
	return done
}

// Write copies data into the vector at pos, growing it if data extends past
// the current size. pos may not exceed the size.
func (b *Bvec) Write(pos int64, data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos < 0 || pos > b.size {
		return 0, linuxerr.EINVAL
	}
	if b.cow != nil {
		if err := b.dropCow(); err != nil {
			return 0, err
		}
	}
	end := pos + int64(len(data))
	if end > MaxSize {
		return 0, linuxerr.EFBIG
	}
	if end > b.size {
		if need := blocksFor(end); need > b.capacity {
			if err := b.resize(need); err != nil {
				return 0, err
			}
		}
		b.size = end
	}
	return b.copyIn(pos, data), nil
}

// Read copies bytes starting at pos into dst. It returns the number of bytes
// copied, min(Size()-pos, len(dst)); a short count at the end of the vector
// is not an error. pos may not exceed the size.
func (b *Bvec) Read(pos int64, dst []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos < 0 || pos > b.size {
		return 0, linuxerr.EINVAL
	}
	rem := b.size - pos
	if int64(len(dst)) < rem {
		rem = int64(len(dst))
	}
	dst = dst[:rem]
	if b.cow != nil {
		return copy(dst, b.cow[pos:]), nil
	}
	done := 0
	for done < len(dst) {
		off := int(pos % BlockSize)
		n := copy(dst[done:], b.block(int(pos/BlockSize)).Bytes()[off:])
		done += n
		pos += int64(n)
	}
	return done, nil
}

// Truncate sets the size to exactly size bytes. Bytes exposed by growing
// read as zero; blocks past the new end are freed when shrinking. Shrinking
// a copy-on-write vector keeps it copy-on-write.
func (b *Bvec) Truncate(size int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if size < 0 {
		return linuxerr.EINVAL
	}
	if size > MaxSize {
		return linuxerr.EFBIG
	}
	if b.cow != nil {
		if size <= b.size {
			b.cow = b.cow[:size]
			b.size = size
			return nil
		}
		if err := b.dropCow(); err != nil {
			return err
		}
	}
	if size <= b.size {
		b.size = size
		return b.resize(blocksFor(size))
	}
	old := b.size
	if need := blocksFor(size); need > b.capacity {
		if err := b.resize(need); err != nil {
			return err
		}
	}
	// The tail of the last block may hold bytes from before an earlier
	// shrink.
	if tail := int64(blocksFor(old))*BlockSize - old; tail > 0 {
		n := size - old
		if n > tail {
			n = tail
		}
		b.copyIn(old, make([]byte, n))
	}
	b.size = size
	return nil
}

// Release frees every block and empties the vector.
func (b *Bvec) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cow = nil
	b.shrink(0)
	b.size = 0
}
