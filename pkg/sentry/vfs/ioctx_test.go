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

import (
	"testing"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

type findCase struct {
	path string
	want *Vnode
}

func checkFind(t *testing.T, ctx *Ioctx, cases []findCase) {
	t.Helper()
	for _, tc := range cases {
		got, err := ctx.Find(nil, tc.path, false)
		if err != nil {
			t.Errorf("Find(%q) failed: %v", tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Find(%q) = %q, want %q", tc.path, got.Path(), tc.want.Path())
		}
	}
}

func TestFindExistingAbsolute(t *testing.T) {
	root, n := tree("/dir0/dir0/", "/dir0/file0", "/dir1/file0")
	ctx := NewIoctx(root, 0, 0)
	d0, d1, d0d0, d0f0 := n["/dir0"], n["/dir1"], n["/dir0/dir0"], n["/dir0/file0"]

	checkFind(t, ctx, []findCase{
		{"/", root},
		{"/.", root},
		{"/./.", root},
		{"/.///.", root},
		{"/..", root},
		{"/../", root},
		{"/../.", root},
		{"/../..", root},
		{"/dir0", d0},
		{"/dir1", d1},
		{"/dir1/../dir0", d0},
		{"/dir1/../dir0/./../../.././dir1", d1},
		{"/dir0/dir0", d0d0},
		{"/dir0/dir0/.", d0d0},
		{"/dir0/dir0/..", d0},
		{"/dir0/dir0/../", d0},
		{"/dir0/dir0/../.", d0},
		{"/dir0/file0", d0f0},
		{"/dir1/../dir0/./file0", d0f0},
	})
}

func TestFindRelative(t *testing.T) {
	root, n := tree("/a/b/c")
	ctx := NewIoctx(root, 0, 0)
	if err := ctx.Chdir("/a"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	checkFind(t, ctx, []findCase{
		{".", n["/a"]},
		{"b", n["/a/b"]},
		{"b/c", n["/a/b/c"]},
		{"..", root},
		{"../a/b/../b", n["/a/b"]},
	})

	got, err := ctx.Find(n["/a/b"], "c", false)
	if err != nil || got != n["/a/b/c"] {
		t.Errorf("Find(at=b, c) = %v, %v; want c", got, err)
	}
	got, err = ctx.Find(n["/a/b"], "/a", false)
	if err != nil || got != n["/a"] {
		t.Errorf("absolute Find ignores at: got %v, %v", got, err)
	}
}

func TestFindRejectsFileDots(t *testing.T) {
	root, _ := tree("/dir0/file0")
	ctx := NewIoctx(root, 0, 0)
	for _, path := range []string{
		"/dir0/file0/.",
		"/dir0/file0/..",
		"/dir0/file0/",
		"/dir0/file0/x",
	} {
		if _, err := ctx.Find(nil, path, false); !linuxerr.Equals(linuxerr.ENOTDIR, err) {
			t.Errorf("Find(%q) = %v, want ENOTDIR", path, err)
		}
	}
}

func TestFindErrors(t *testing.T) {
	root, _ := tree("/dir0/")
	ctx := NewIoctx(root, 0, 0)
	if _, err := ctx.Find(nil, "", false); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("Find(\"\") = %v, want ENOENT", err)
	}
	if _, err := ctx.Find(nil, "/dir0/missing", false); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("Find(missing) = %v, want ENOENT", err)
	}
}

func TestFindMount(t *testing.T) {
	rootOuter, on := tree("/dir0/")
	rootInner, in := tree("/dir1/")
	dir0, dir1 := on["/dir0"], in["/dir1"]
	ctx := NewIoctx(rootOuter, 0, 0)

	if _, err := ctx.Find(nil, "/dir0/dir1", false); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("Find before mount = %v, want ENOENT", err)
	}

	if err := dir0.Mount(rootInner); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	checkFind(t, ctx, []findCase{
		{"/dir0", rootInner},
		{"/dir0/.", rootInner},
		{"/dir0/dir1", dir1},
		{"/dir0/dir1/..", rootInner},
		{"/dir0/dir1/../..", rootOuter},
		{"/dir0/dir1/../../..", rootOuter},
		{"/dir0/../dir0/dir1", dir1},
	})
}

func TestFindMountedContextRoot(t *testing.T) {
	outer := NewVnode("", Directory, 0)
	inner, in := tree("/etc/")
	if err := outer.Mount(inner); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	ctx := NewIoctx(outer, 0, 0)
	checkFind(t, ctx, []findCase{
		{"/", inner},
		{"/..", inner},
		{"/etc", in["/etc"]},
		{"/etc/../..", inner},
	})
}

func TestMkdir(t *testing.T) {
	root := newTestNode("", Directory)
	ctx := NewIoctx(root, 0, 0)

	if _, err := ctx.Mkdir(nil, "/dir0", linux.DefaultDirMode); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := ctx.Mkdir(nil, "/dir0", linux.DefaultDirMode); !linuxerr.Equals(linuxerr.EEXIST, err) {
		t.Errorf("second Mkdir = %v, want EEXIST", err)
	}
	if _, err := ctx.Mkdir(nil, "/dir0/sub/", 0700); err != nil {
		t.Errorf("Mkdir with trailing slash: %v", err)
	}
	for _, path := range []string{"/", "/dir0/.", "/dir0/.."} {
		if _, err := ctx.Mkdir(nil, path, linux.DefaultDirMode); !linuxerr.Equals(linuxerr.EEXIST, err) {
			t.Errorf("Mkdir(%q) = %v, want EEXIST", path, err)
		}
	}
	if _, err := ctx.Mkdir(nil, "/missing/x", linux.DefaultDirMode); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("Mkdir under missing parent = %v, want ENOENT", err)
	}
}

func TestOpenCreate(t *testing.T) {
	root := newTestNode("", Directory)
	ctx := NewIoctx(root, 1000, 1000)
	root.SetOwner(1000, 1000)

	// Without O_CREAT a missing file is not created.
	if _, err := ctx.Open(nil, "/f", linux.DefaultFileMode, linux.O_RDWR); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Fatalf("Open without O_CREAT = %v, want ENOENT", err)
	}
	if root.Lookup("f") != nil {
		t.Fatalf("Open without O_CREAT created a file")
	}

	f, err := ctx.Open(nil, "/f", 0600, linux.O_RDWR|linux.O_CREAT)
	if err != nil {
		t.Fatalf("Open(O_CREAT): %v", err)
	}
	node := f.Node()
	if got, want := node.Mode(), linux.FileMode(linux.S_IFREG|0600); got != want {
		t.Errorf("created mode = %v, want %v", got, want)
	}
	if node.UID() != 1000 || node.GID() != 1000 {
		t.Errorf("created owner = %d:%d, want 1000:1000", node.UID(), node.GID())
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// O_CREAT on an existing file opens it.
	f, err = ctx.Open(nil, "/f", 0600, linux.O_RDONLY|linux.O_CREAT)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if f.Node() != node {
		t.Errorf("reopen returned a different node")
	}
	f.Close()

	if _, err := ctx.Open(nil, "/f", 0600, linux.O_RDWR|linux.O_CREAT|linux.O_EXCL); !linuxerr.Equals(linuxerr.EEXIST, err) {
		t.Errorf("O_EXCL on existing = %v, want EEXIST", err)
	}
	if _, err := ctx.Open(nil, "/g/", 0600, linux.O_RDWR|linux.O_CREAT); !linuxerr.Equals(linuxerr.EISDIR, err) {
		t.Errorf("O_CREAT with trailing slash = %v, want EISDIR", err)
	}
	if _, err := ctx.Open(nil, "/missing/g", 0600, linux.O_RDWR|linux.O_CREAT); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("O_CREAT under missing parent = %v, want ENOENT", err)
	}

	// O_TRUNC empties the file.
	f, err = ctx.Open(nil, "/f", 0, linux.O_WRONLY|linux.O_TRUNC)
	if err != nil {
		t.Fatalf("Open(O_TRUNC): %v", err)
	}
	if size, _ := node.Size(); size != 0 {
		t.Errorf("size after O_TRUNC = %d, want 0", size)
	}
	f.Close()
}

func TestOpenDirectory(t *testing.T) {
	root := newTestNode("", Directory)
	ctx := NewIoctx(root, 0, 0)
	if _, err := ctx.Mkdir(nil, "/d", linux.DefaultDirMode); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := ctx.Open(nil, "/d", 0, linux.O_WRONLY); !linuxerr.Equals(linuxerr.EISDIR, err) {
		t.Errorf("Open(dir, O_WRONLY) = %v, want EISDIR", err)
	}
	f, err := ctx.Open(nil, "/d", 0, linux.O_RDONLY|linux.O_DIRECTORY)
	if err != nil {
		t.Fatalf("Open(dir, O_DIRECTORY): %v", err)
	}
	f.Close()

	if _, err := ctx.Open(nil, "/f", 0644, linux.O_CREAT|linux.O_WRONLY); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ctx.Open(nil, "/f", 0, linux.O_RDONLY|linux.O_DIRECTORY); !linuxerr.Equals(linuxerr.ENOTDIR, err) {
		t.Errorf("Open(file, O_DIRECTORY) = %v, want ENOTDIR", err)
	}
}

func TestOpenPermissions(t *testing.T) {
	root := newTestNode("", Directory)
	admin := NewIoctx(root, 0, 0)
	user := NewIoctx(root, 1000, 1000)

	f, err := admin.Open(nil, "/secret", 0600, linux.O_CREAT|linux.O_WRONLY)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.Close()

	if _, err := user.Open(nil, "/secret", 0, linux.O_RDONLY); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("user read of 0600 root file = %v, want EACCES", err)
	}
	if _, err := user.Open(nil, "/new", 0644, linux.O_CREAT|linux.O_WRONLY); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("user create in 0755 root dir = %v, want EACCES", err)
	}
	if _, err := user.Mkdir(nil, "/d", linux.DefaultDirMode); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("user mkdir in 0755 root dir = %v, want EACCES", err)
	}
	if err := user.Access(nil, "/secret", linux.F_OK); err != nil {
		t.Errorf("Access(F_OK) = %v, want nil", err)
	}
	if err := user.Access(nil, "/secret", linux.R_OK); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("Access(R_OK) = %v, want EACCES", err)
	}
	if err := admin.Access(nil, "/secret", linux.R_OK|linux.W_OK); err != nil {
		t.Errorf("root Access(R_OK|W_OK) = %v, want nil", err)
	}
}

func TestChdir(t *testing.T) {
	root, n := tree("/a/b/", "/a/f")
	ctx := NewIoctx(root, 0, 0)
	if err := ctx.Chdir("/a/f"); !linuxerr.Equals(linuxerr.ENOTDIR, err) {
		t.Errorf("Chdir(file) = %v, want ENOTDIR", err)
	}
	if err := ctx.Chdir("/a"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if err := ctx.Chdir("b"); err != nil {
		t.Fatalf("Chdir(relative): %v", err)
	}
	if ctx.Cwd() != n["/a/b"] {
		t.Errorf("Cwd() = %q, want /a/b", ctx.Cwd().Path())
	}

	fork := ctx.Fork()
	if err := fork.Chdir("/"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if ctx.Cwd() != n["/a/b"] || fork.Cwd() != root {
		t.Errorf("Fork shares the working directory")
	}

	n["/a"].SetMode(0600)
	user := NewIoctx(root, 1000, 1000)
	if err := user.Chdir("/a"); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("Chdir without search permission = %v, want EACCES", err)
	}
}

func TestIoctxUnlink(t *testing.T) {
	root := newTestNode("", Directory)
	ctx := NewIoctx(root, 0, 0)
	if _, err := ctx.Mkdir(nil, "/d", linux.DefaultDirMode); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := ctx.Open(nil, "/d/f", 0644, linux.O_CREAT|linux.O_WRONLY); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ctx.Unlink(nil, "/d"); !linuxerr.Equals(linuxerr.ENOTEMPTY, err) {
		t.Errorf("Unlink(non-empty dir) = %v, want ENOTEMPTY", err)
	}
	if err := ctx.Unlink(nil, "/d/f"); err != nil {
		t.Fatalf("Unlink(file): %v", err)
	}
	if err := ctx.Unlink(nil, "/d"); err != nil {
		t.Fatalf("Unlink(dir): %v", err)
	}
	if _, err := ctx.Stat(nil, "/d"); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("Stat after Unlink = %v, want ENOENT", err)
	}
}

func TestIoctxStat(t *testing.T) {
	root := newTestNode("", Directory)
	root.SetOwner(7, 8)
	ctx := NewIoctx(root, 7, 8)
	f, err := ctx.Open(nil, "/f", 0640, linux.O_CREAT|linux.O_RDWR)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Write(make([]byte, 10)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	stat, err := ctx.Stat(nil, "/f")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	want := linux.Stat{Mode: linux.S_IFREG | 0640, UID: 7, GID: 8, Size: 10}
	if stat != want {
		t.Errorf("Stat() = %+v, want %+v", stat, want)
	}
}
