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

package sysfs

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// counter is a read-write attribute holding an integer.
type counter struct {
	value int
}

func (c *counter) read(buf []byte) (int, error) {
	return copy(buf, strconv.Itoa(c.value)+"\n"), nil
}

func (c *counter) write(buf []byte) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(string(buf)))
	if err != nil {
		return 0, linuxerr.EINVAL
	}
	c.value = v
	return len(buf), nil
}

func setUp(t *testing.T) (*Filesystem, *vfs.Ioctx, *counter) {
	t.Helper()
	fs := New()
	debug, err := fs.AddDirectory(nil, "debug")
	if err != nil {
		t.Fatalf("AddDirectory failed: %v", err)
	}
	c := &counter{value: 3}
	if _, err := fs.AddReadWriteNode(debug, "level", c.read, c.write); err != nil {
		t.Fatalf("AddReadWriteNode failed: %v", err)
	}
	if _, err := fs.AddReadNode(nil, "uptime", func(buf []byte) (int, error) {
		return copy(buf, "42 0\n"), nil
	}); err != nil {
		t.Fatalf("AddReadNode failed: %v", err)
	}
	root, _ := fs.Root()
	return fs, vfs.NewIoctx(root, 0, 0), c
}

func readAll(t *testing.T, ctx *vfs.Ioctx, path string) string {
	t.Helper()
	f, err := ctx.Open(nil, path, 0, linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", path, err)
	}
	defer f.Close()
	var sb strings.Builder
	buf := make([]byte, 3)
	for {
		n, err := f.Read(buf)
		if err != nil {
			t.Fatalf("Read(%q) failed: %v", path, err)
		}
		if n == 0 {
			return sb.String()
		}
		sb.Write(buf[:n])
		// Attributes are produced in one call; later reads hit EOF.
		buf = make([]byte, 64)
	}
}

func TestReadNodes(t *testing.T) {
	_, ctx, _ := setUp(t)
	if got, want := readAll(t, ctx, "/uptime"), "42 "; got != want {
		t.Errorf("/uptime = %q, want %q", got, want)
	}
	if got, want := readAll(t, ctx, "/debug/level"), "3\n"; got != want {
		t.Errorf("/debug/level = %q, want %q", got, want)
	}
}

func TestWriteNode(t *testing.T) {
	_, ctx, c := setUp(t)
	f, err := ctx.Open(nil, "/debug/level", 0, linux.O_WRONLY|linux.O_TRUNC)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte("7\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if c.value != 7 {
		t.Errorf("value = %d, want 7", c.value)
	}
	if _, err := f.Write([]byte("8\n")); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("second Write got error %v, want EINVAL", err)
	}

	g, err := ctx.Open(nil, "/debug/level", 0, linux.O_WRONLY)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer g.Close()
	if _, err := g.Write([]byte("x")); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("bad Write got error %v, want EINVAL", err)
	}
}

func TestReadOnlyNode(t *testing.T) {
	_, ctx, _ := setUp(t)
	f, err := ctx.Open(nil, "/uptime", 0, linux.O_WRONLY)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte("1")); !linuxerr.Equals(linuxerr.EROFS, err) {
		t.Errorf("Write got error %v, want EROFS", err)
	}
}

func TestPermissions(t *testing.T) {
	fs, _, _ := setUp(t)
	root, _ := fs.Root()
	user := vfs.NewIoctx(root, 1000, 1000)
	if _, err := user.Open(nil, "/uptime", 0, linux.O_RDONLY); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("Open as user got error %v, want EACCES", err)
	}
	if err := user.Access(nil, "/debug/level", linux.W_OK); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("Access(W_OK) as user got error %v, want EACCES", err)
	}
}

func TestStatAndReaddir(t *testing.T) {
	_, ctx, _ := setUp(t)
	for _, tc := range []struct {
		path string
		mode linux.FileMode
	}{
		{"/", linux.DefaultDirMode},
		{"/debug", linux.S_IFDIR | 0500},
		{"/debug/level", linux.S_IFREG | 0600},
		{"/uptime", linux.S_IFREG | 0400},
	} {
		stat, err := ctx.Stat(nil, tc.path)
		if err != nil {
			t.Errorf("Stat(%q) failed: %v", tc.path, err)
			continue
		}
		if stat.Mode != tc.mode {
			t.Errorf("Stat(%q).Mode = %v, want %v", tc.path, stat.Mode, tc.mode)
		}
	}

	root := ctx.Root()
	ents, err := root.Readdir(0, 0)
	if err != nil {
		t.Fatalf("Readdir failed: %v", err)
	}
	want := []linux.Dirent{
		{Name: ".", Type: linux.DT_DIR, NextOff: 1},
		{Name: "..", Type: linux.DT_DIR, NextOff: 2},
		{Name: "debug", Type: linux.DT_DIR, NextOff: 3},
		{Name: "uptime", Type: linux.DT_REG, NextOff: 4},
	}
	if diff := cmp.Diff(want, ents); diff != "" {
		t.Errorf("Readdir mismatch (-want +got):\n%s", diff)
	}
}

func TestAddErrors(t *testing.T) {
	fs, _, _ := setUp(t)
	if _, err := fs.AddDirectory(nil, "debug"); !linuxerr.Equals(linuxerr.EEXIST, err) {
		t.Errorf("duplicate AddDirectory got error %v, want EEXIST", err)
	}
	other := New()
	root, _ := other.Root()
	if _, err := fs.AddDirectory(root, "x"); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("AddDirectory with foreign parent got error %v, want EINVAL", err)
	}
	ctx := vfs.NewIoctx(root, 0, 0)
	if _, err := ctx.Mkdir(nil, "/new", 0755); !linuxerr.Equals(linuxerr.EPERM, err) {
		t.Errorf("Mkdir got error %v, want EPERM", err)
	}
}
