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

package blockalloc

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

func TestAllocZeroed(t *testing.T) {
	a := NewArena(4)
	h, err := a.Alloc(Leaf)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	d := a.Data(h)
	d[0], d[BlockSize-1] = 1, 2
	a.Free(h)

	h2, err := a.Alloc(Leaf)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if h2 != h {
		t.Errorf("Alloc after Free returned %d, want reused handle %d", h2, h)
	}
	if d := a.Data(h2); d[0] != 0 || d[BlockSize-1] != 0 {
		t.Errorf("reallocated block is not zeroed")
	}

	ind, err := a.Alloc(Indirect)
	if err != nil {
		t.Fatalf("Alloc(Indirect): %v", err)
	}
	for i, r := range a.Refs(ind) {
		if r != 0 {
			t.Fatalf("indirect entry %d = %d, want null", i, r)
		}
	}
}

func TestLimit(t *testing.T) {
	a := NewArena(3)
	var hs []Handle
	for i := 0; i < 3; i++ {
		h, err := a.Alloc(Leaf)
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		hs = append(hs, h)
	}
	if _, err := a.Alloc(Leaf); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Errorf("Alloc past limit = %v, want ENOMEM", err)
	}
	a.Free(hs[1])
	if _, err := a.Alloc(Indirect); err != nil {
		t.Errorf("Alloc after Free: %v", err)
	}

	want := Stats{Allocs: 4, Frees: 1, InUse: 3, Limit: 3}
	if diff := cmp.Diff(want, a.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestKindMismatchPanics(t *testing.T) {
	a := NewArena(0)
	h, err := a.Alloc(Leaf)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Refs on a leaf block did not panic")
		}
	}()
	a.Refs(h)
}

func TestDoubleFreePanics(t *testing.T) {
	a := NewArena(0)
	h, err := a.Alloc(Leaf)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	a.Free(h)
	defer func() {
		if recover() == nil {
			t.Errorf("second Free did not panic")
		}
	}()
	a.Free(h)
}

func TestConcurrentAlloc(t *testing.T) {
	const goroutines, each = 8, 64
	a := NewArena(goroutines * each)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var hs []Handle
			for i := 0; i < each; i++ {
				h, err := a.Alloc(Leaf)
				if err != nil {
					t.Errorf("Alloc: %v", err)
					return
				}
				hs = append(hs, h)
			}
			for _, h := range hs {
				a.Free(h)
			}
		}()
	}
	wg.Wait()
	if s := a.Stats(); s.InUse != 0 || s.Allocs != s.Frees {
		t.Errorf("after concurrent use Stats() = %+v", s)
	}
}
