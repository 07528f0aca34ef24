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

// Package bitmap provides a fixed-capacity set of small integers, used to
// track which slots of a block arena are in use.
package bitmap

import (
	"fmt"
	"math/bits"
)

// Bitmap is a set of integers in [0, Size()).
//
// Bitmap is not synchronized; callers provide their own locking.
type Bitmap struct {
	// numOnes is the number of ones in the bitmap.
	numOnes uint32

	// words holds the bits, 64 entries per word.
	words []uint64
}

// New creates an empty Bitmap able to hold at least size entries.
func New(size uint32) Bitmap {
	return Bitmap{words: make([]uint64, (size+63)/64)}
}

// IsEmpty returns true if no bit is set.
func (b *Bitmap) IsEmpty() bool {
	return b.numOnes == 0
}

// Count returns the number of set bits.
func (b *Bitmap) Count() uint32 {
	return b.numOnes
}

// Size returns the total number of bits in the bitmap.
func (b *Bitmap) Size() uint32 {
	return uint32(len(b.words)) * 64
}

// Contains returns true if i is set.
func (b *Bitmap) Contains(i uint32) bool {
	w := i / 64
	if int(w) >= len(b.words) {
		return false
	}
	return b.words[w]&(1<<(i%64)) != 0
}

// Add sets bit i.
//
// Preconditions: i < b.Size().
func (b *Bitmap) Add(i uint32) {
	w, mask := i/64, uint64(1)<<(i%64)
	if b.words[w]&mask == 0 {
		b.words[w] |= mask
		b.numOnes++
	}
}

// Remove clears bit i.
//
// Preconditions: i < b.Size().
func (b *Bitmap) Remove(i uint32) {
	w, mask := i/64, uint64(1)<<(i%64)
	if b.words[w]&mask != 0 {
		b.words[w] &^= mask
		b.numOnes--
	}
}

// FirstZero returns the first unset bit in [start, limit).
func (b *Bitmap) FirstZero(start, limit uint32) (uint32, error) {
	if limit > b.Size() {
		limit = b.Size()
	}
	for i := start; i < limit; {
		w := b.words[i/64] | (uint64(1)<<(i%64) - 1)
		if w != ^uint64(0) {
			if r := uint32(i/64*64) + uint32(bits.TrailingZeros64(^w)); r < limit {
				return r, nil
			}
			break
		}
		i = (i/64 + 1) * 64
	}
	return 0, fmt.Errorf("bitmap has no unset bits in [%d, %d)", start, limit)
}

// ToSlice returns the set bits in increasing order. For example, a bitmap of
// [0, 1, 0, 1] will return the slice [1, 3].
func (b *Bitmap) ToSlice() []uint32 {
	s := make([]uint32, 0, b.numOnes)
	for i, w := range b.words {
		for w != 0 {
			r := bits.TrailingZeros64(w)
			s = append(s, uint32(i*64+r))
			w &^= 1 << r
		}
	}
	return s
}
