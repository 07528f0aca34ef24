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

package linux

import "testing"

func TestFileModeString(t *testing.T) {
	for _, tc := range []struct {
		mode FileMode
		want string
	}{
		{S_IFDIR | 0755, "S_IFDIR|0o755"},
		{S_IFREG | 0644, "S_IFREG|0o644"},
		{S_IFCHR | ModeSetUID | 0600, "S_IFCHR|S_ISUID|0o600"},
		{0400, "0o400"},
	} {
		if got := tc.mode.String(); got != tc.want {
			t.Errorf("FileMode(%#o).String() = %q, want %q", uint32(tc.mode), got, tc.want)
		}
	}
}

func TestFileModeLsString(t *testing.T) {
	for _, tc := range []struct {
		mode FileMode
		want string
	}{
		{DefaultDirMode, "drwxr-xr-x"},
		{DefaultFileMode, "-rw-r--r--"},
		{S_IFCHR | 0620, "crw--w----"},
		{S_IFBLK | 0777, "brwxrwxrwx"},
	} {
		if got := tc.mode.LsString(); got != tc.want {
			t.Errorf("FileMode(%#o).LsString() = %q, want %q", uint32(tc.mode), got, tc.want)
		}
	}
}

func TestDirentType(t *testing.T) {
	for mode, want := range map[FileMode]uint8{
		S_IFDIR: DT_DIR,
		S_IFREG: DT_REG,
		S_IFCHR: DT_CHR,
		S_IFBLK: DT_BLK,
		0:       DT_UNKNOWN,
	} {
		if got := mode.DirentType(); got != want {
			t.Errorf("FileMode(%#o).DirentType() = %d, want %d", uint32(mode), got, want)
		}
	}
}
