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

package fat32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

func setUp(t *testing.T, img *testImage) (*Filesystem, *vfs.Ioctx) {
	t.Helper()
	fs, err := Open(img.device())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	root, err := fs.Root()
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	return fs, vfs.NewIoctx(root, 0, 0)
}

func readFile(t *testing.T, ctx *vfs.Ioctx, path string) []byte {
	t.Helper()
	f, err := ctx.Open(nil, path, 0, linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", path, err)
	}
	defer f.Close()
	var out []byte
	buf := make([]byte, 100)
	for {
		n, err := f.Read(buf)
		if err != nil {
			t.Fatalf("Read(%q) failed: %v", path, err)
		}
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestParseBPB(t *testing.T) {
	img := newTestImage(t, 16)
	bpb := img.bpb
	if got, want := bpb.VolumeLabel, "KVFS TEST"; got != want {
		t.Errorf("VolumeLabel = %q, want %q", got, want)
	}
	if got, want := bpb.ClusterOffset(2), int64(testReserved+testFATs*1)*SectorSize; got != want {
		t.Errorf("ClusterOffset(2) = %d, want %d", got, want)
	}
	if got, want := bpb.ClusterLimit(), uint32(18); got != want {
		t.Errorf("ClusterLimit() = %d, want %d", got, want)
	}

	for _, tc := range []struct {
		name  string
		patch func(b []byte)
	}{
		{"signature", func(b []byte) { b[bpbSignature] = 0 }},
		{"sector size", func(b []byte) { binary.LittleEndian.PutUint16(b[bpbBytesPerSector:], 4096) }},
		{"cluster size", func(b []byte) { b[bpbSectorsPerCluster] = 3 }},
		{"no FAT", func(b []byte) { b[bpbFATCount] = 0 }},
		{"root cluster", func(b []byte) { binary.LittleEndian.PutUint32(b[bpbRootCluster:], 1) }},
		{"root past end", func(b []byte) { binary.LittleEndian.PutUint32(b[bpbRootCluster:], 100) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := append([]byte(nil), img.data[:SectorSize]...)
			tc.patch(b)
			if _, err := ParseBPB(b); !linuxerr.Equals(linuxerr.EINVAL, err) {
				t.Errorf("ParseBPB got error %v, want EINVAL", err)
			}
		})
	}
	if _, err := ParseBPB(make([]byte, 10)); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("ParseBPB(short) got error %v, want EINVAL", err)
	}
}

func TestSignature28HasNoLabel(t *testing.T) {
	img := newTestImage(t, 4)
	img.data[bpbSignature] = 0x28
	bpb, err := ParseBPB(img.data)
	if err != nil {
		t.Fatalf("ParseBPB failed: %v", err)
	}
	if bpb.VolumeLabel != "" {
		t.Errorf("VolumeLabel = %q, want empty", bpb.VolumeLabel)
	}
}

func TestOpenFilesystem(t *testing.T) {
	img := standardImage(t)
	dev := img.device()
	fs, err := Open(dev)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if fs.Dev() != vfs.BlockDevice(dev) {
		t.Errorf("Dev() does not return the device")
	}
	if got := fs.Data().(BPB); got != img.bpb {
		t.Errorf("Data() = %+v, want %+v", got, img.bpb)
	}
	root, _ := fs.Root()
	if root.Name() != "" || !root.IsDirectory() || !root.IsSeekable() {
		t.Errorf("unexpected root %q kind %v seekable %t", root.Name(), root.Kind(), root.IsSeekable())
	}
	if root.FS() != vfs.Filesystem(fs) {
		t.Errorf("root.FS() is not the filesystem")
	}
}

func TestOpenBadBootSector(t *testing.T) {
	img := newTestImage(t, 4)
	img.data[bpbSignature] = 0x11
	if _, err := Open(img.device()); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("Open got error %v, want EINVAL", err)
	}
}

func TestReaddirRoot(t *testing.T) {
	fs, _ := setUp(t, standardImage(t))
	root, _ := fs.Root()
	got, err := root.Readdir(0, 0)
	if err != nil {
		t.Fatalf("Readdir failed: %v", err)
	}
	want := []linux.Dirent{
		{Name: ".", Type: linux.DT_DIR, NextOff: 1},
		{Name: "..", Type: linux.DT_DIR, NextOff: 2},
		{Name: "HELLO.TXT", Type: linux.DT_REG, NextOff: 3},
		{Name: longName, Type: linux.DT_REG, NextOff: 4},
		{Name: "SUB", Type: linux.DT_DIR, NextOff: 5},
		{Name: "readme.md", Type: linux.DT_REG, NextOff: 6},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Readdir mismatch (-want +got):\n%s", diff)
	}

	// Resume in the middle.
	got, err = root.Readdir(3, 2)
	if err != nil {
		t.Fatalf("Readdir(3, 2) failed: %v", err)
	}
	if diff := cmp.Diff(want[3:5], got); diff != "" {
		t.Errorf("Readdir(3, 2) mismatch (-want +got):\n%s", diff)
	}
	if got, err := root.Readdir(6, 0); err != nil || len(got) != 0 {
		t.Errorf("Readdir past end = %v, %v, want nothing", got, err)
	}
}

func TestReaddirMultiCluster(t *testing.T) {
	_, ctx := setUp(t, standardImage(t))
	f, err := ctx.Open(nil, "/SUB", 0, linux.O_RDONLY|linux.O_DIRECTORY)
	if err != nil {
		t.Fatalf("Open(/SUB) failed: %v", err)
	}
	defer f.Close()
	var names []string
	for {
		ents, err := f.Readdir(5)
		if err != nil {
			t.Fatalf("Readdir failed: %v", err)
		}
		if len(ents) == 0 {
			break
		}
		for _, e := range ents {
			names = append(names, e.Name)
		}
	}
	want := []string{".", ".."}
	for i := 0; i < subFiles; i++ {
		want = append(want, fmt.Sprintf("F%02d", i))
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("SUB listing mismatch (-want +got):\n%s", diff)
	}

	stat, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if got, want := stat.Size, uint64(2*SectorSize); got != want {
		t.Errorf("directory size = %d, want %d", got, want)
	}
}

func TestReadFiles(t *testing.T) {
	_, ctx := setUp(t, standardImage(t))
	for _, tc := range []struct {
		path string
		want []byte
	}{
		{"/HELLO.TXT", helloData},
		{"/hello.txt", helloData},
		{"/" + longName, longData},
		{"/a LONG file NAME.TXT", longData},
		{"/readme.md", nil},
		{"/SUB/F07", nil},
		{"/SUB/../HELLO.TXT", helloData},
	} {
		if got := readFile(t, ctx, tc.path); !bytes.Equal(got, tc.want) {
			t.Errorf("contents of %q = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestReadAt(t *testing.T) {
	_, ctx := setUp(t, standardImage(t))
	node, err := ctx.Find(nil, "/"+longName, false)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	for _, tc := range []struct {
		pos int64
		len int
	}{
		{0, 512},
		{0, 2000},
		{510, 4},
		{511, 600},
		{512, 512},
		{1023, 1},
		{1100, 200},
		{1199, 1},
	} {
		buf := make([]byte, tc.len)
		n, err := node.Read(tc.pos, buf)
		if err != nil {
			t.Errorf("Read(%d, %d) failed: %v", tc.pos, tc.len, err)
			continue
		}
		end := tc.pos + int64(tc.len)
		if end > int64(len(longData)) {
			end = int64(len(longData))
		}
		if want := longData[tc.pos:end]; !bytes.Equal(buf[:n], want) {
			t.Errorf("Read(%d, %d) returned %d bytes that differ from the file", tc.pos, tc.len, n)
		}
	}
	if n, err := node.Read(1200, make([]byte, 10)); n != 0 || err != nil {
		t.Errorf("Read at EOF = %d, %v, want 0, nil", n, err)
	}
}

func TestStat(t *testing.T) {
	_, ctx := setUp(t, standardImage(t))
	stat, err := ctx.Stat(nil, "/"+longName)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	want := linux.Stat{
		Mode:    linux.S_IFREG | 0444,
		Size:    1200,
		Blksize: SectorSize,
		Blocks:  3,
	}
	if diff := cmp.Diff(want, stat); diff != "" {
		t.Errorf("Stat mismatch (-want +got):\n%s", diff)
	}
	stat, err = ctx.Stat(nil, "/SUB")
	if err != nil {
		t.Fatalf("Stat(/SUB) failed: %v", err)
	}
	if stat.Mode != linux.S_IFDIR|0555 {
		t.Errorf("directory mode = %v, want S_IFDIR|0o555", stat.Mode)
	}
}

func TestReadOnly(t *testing.T) {
	_, ctx := setUp(t, standardImage(t))
	for _, flags := range []linux.OpenFlags{linux.O_WRONLY, linux.O_RDWR, linux.O_RDONLY | linux.O_TRUNC} {
		if _, err := ctx.Open(nil, "/HELLO.TXT", 0, flags); !linuxerr.Equals(linuxerr.EROFS, err) {
			t.Errorf("Open(flags=%#o) got error %v, want EROFS", flags, err)
		}
	}
	if _, err := ctx.Open(nil, "/new", 0644, linux.O_RDONLY|linux.O_CREAT); !linuxerr.Equals(linuxerr.EROFS, err) {
		t.Errorf("Open(O_CREAT) got error %v, want EROFS", err)
	}
	if _, err := ctx.Mkdir(nil, "/dir", 0755); !linuxerr.Equals(linuxerr.EROFS, err) {
		t.Errorf("Mkdir got error %v, want EROFS", err)
	}
	if err := ctx.Unlink(nil, "/HELLO.TXT"); !linuxerr.Equals(linuxerr.EROFS, err) {
		t.Errorf("Unlink got error %v, want EROFS", err)
	}
	node, err := ctx.Find(nil, "/HELLO.TXT", false)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if _, err := node.Write(0, []byte("x")); !linuxerr.Equals(linuxerr.EROFS, err) {
		t.Errorf("Write got error %v, want EROFS", err)
	}
	if err := node.Truncate(0); !linuxerr.Equals(linuxerr.EROFS, err) {
		t.Errorf("Truncate got error %v, want EROFS", err)
	}
}

func TestLookupMissing(t *testing.T) {
	_, ctx := setUp(t, standardImage(t))
	for _, path := range []string{"/nope", "/GONE.TXT", "/SUB/F20", "/KVFS TEST"} {
		if _, err := ctx.Find(nil, path, false); !linuxerr.Equals(linuxerr.ENOENT, err) {
			t.Errorf("Find(%q) got error %v, want ENOENT", path, err)
		}
	}
}

func TestBrokenChain(t *testing.T) {
	img := standardImage(t)
	img.setFAT(7, 0)
	_, ctx := setUp(t, img)
	f, err := ctx.Open(nil, "/"+longName, 0, linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := f.Read(make([]byte, 10)); !linuxerr.Equals(linuxerr.EIO, err) {
		t.Errorf("Read got error %v, want EIO", err)
	}
}

func TestChainLoop(t *testing.T) {
	img := standardImage(t)
	img.setFAT(9, 6)
	fs, _ := setUp(t, img)
	if _, err := fs.chain(6); !linuxerr.Equals(linuxerr.EIO, err) {
		t.Errorf("chain(6) got error %v, want EIO", err)
	}
}

func TestShortChain(t *testing.T) {
	img := standardImage(t)
	// Cut the file down to two clusters.
	img.setFAT(7, 0x0fffffff)
	_, ctx := setUp(t, img)
	node, err := ctx.Find(nil, "/"+longName, false)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if _, err := node.Read(0, make([]byte, 10)); !linuxerr.Equals(linuxerr.EIO, err) {
		t.Errorf("Read got error %v, want EIO", err)
	}
}

func TestDeviceErrors(t *testing.T) {
	img := standardImage(t)
	// Drop the data region so cluster reads run off the device.
	img.data = img.data[:img.bpb.ClusterOffset(3)]
	_, ctx := setUp(t, img)
	f, err := ctx.Open(nil, "/HELLO.TXT", 0, linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := io.ReadAll(fileReader{f}); !linuxerr.Equals(linuxerr.EIO, err) {
		t.Errorf("Read got error %v, want EIO", err)
	}
}

type fileReader struct {
	f *vfs.File
}

func (r fileReader) Read(buf []byte) (int, error) {
	n, err := r.f.Read(buf)
	if err == nil && n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, err
}
