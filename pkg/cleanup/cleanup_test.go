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

package cleanup

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// run registers two cleaners appending to order and returns what Release
// handed back, if release is set.
func run(order *[]string, release bool) func() {
	cu := Make(func() {
		*order = append(*order, "first")
	})
	cu.Add(func() {
		*order = append(*order, "second")
	})
	defer cu.Clean()
	if release {
		return cu.Release()
	}
	return nil
}

func TestCleanReverseOrder(t *testing.T) {
	var order []string
	run(&order, false)
	if diff := cmp.Diff([]string{"second", "first"}, order); diff != "" {
		t.Errorf("cleanup order mismatch (-want +got):\n%s", diff)
	}
}

func TestRelease(t *testing.T) {
	var order []string
	cleaner := run(&order, true)
	if len(order) != 0 {
		t.Fatalf("cleanup functions %v called after Release", order)
	}

	cleaner()
	if diff := cmp.Diff([]string{"second", "first"}, order); diff != "" {
		t.Errorf("released cleanup order mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanTwice(t *testing.T) {
	calls := 0
	cu := Make(func() { calls++ })
	cu.Clean()
	cu.Clean()
	if calls != 1 {
		t.Errorf("cleanup function called %d times, want 1", calls)
	}
}
