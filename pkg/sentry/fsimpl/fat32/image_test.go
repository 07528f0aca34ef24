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
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"kvfs.dev/kvfs/pkg/sentry/devices/blockdev"
)

// testImage builds a FAT32 volume in memory with one sector per cluster.
type testImage struct {
	t    *testing.T
	data []byte
	bpb  BPB
}

const (
	testReserved = 4
	testFATs     = 2
)

func newTestImage(t *testing.T, clusters int) *testImage {
	t.Helper()
	spf := ((clusters+firstCluster)*4 + SectorSize - 1) / SectorSize
	total := testReserved + testFATs*spf + clusters
	img := &testImage{t: t, data: make([]byte, total*SectorSize)}

	b := img.data
	le := binary.LittleEndian
	le.PutUint16(b[bpbBytesPerSector:], SectorSize)
	b[bpbSectorsPerCluster] = 1
	le.PutUint16(b[bpbReservedSectors:], testReserved)
	b[bpbFATCount] = testFATs
	le.PutUint32(b[bpbTotalSectors:], uint32(total))
	le.PutUint32(b[bpbSectorsPerFAT:], uint32(spf))
	le.PutUint32(b[bpbRootCluster:], firstCluster)
	b[bpbSignature] = 0x29
	copy(b[bpbVolumeLabel:], "KVFS TEST  ")

	bpb, err := ParseBPB(b)
	if err != nil {
		t.Fatalf("ParseBPB failed on test image: %v", err)
	}
	img.bpb = bpb
	img.setFAT(0, 0x0ffffff8)
	img.setFAT(1, 0x0fffffff)
	return img
}

// setFAT sets the entry for cluster c in every FAT.
func (img *testImage) setFAT(c, v uint32) {
	for i := 0; i < testFATs; i++ {
		off := img.bpb.FATOffset() + int64(i)*int64(img.bpb.SectorsPerFAT)*SectorSize + int64(c)*4
		binary.LittleEndian.PutUint32(img.data[off:], v)
	}
}

// write links clusters into a chain and stores data across them.
func (img *testImage) write(data []byte, clusters ...uint32) {
	cs := img.bpb.ClusterSize()
	if int64(len(data)) > int64(len(clusters))*cs {
		img.t.Fatalf("%d bytes do not fit in %d clusters", len(data), len(clusters))
	}
	for i, c := range clusters {
		next := uint32(0x0fffffff)
		if i+1 < len(clusters) {
			next = clusters[i+1]
		}
		img.setFAT(c, next)
		start := int64(i) * cs
		if start < int64(len(data)) {
			end := start + cs
			if end > int64(len(data)) {
				end = int64(len(data))
			}
			copy(img.data[img.bpb.ClusterOffset(c):], data[start:end])
		}
	}
}

func (img *testImage) device() *blockdev.Memory {
	return blockdev.NewMemoryFrom(img.data, true)
}

// shortEntry returns an 8.3 entry. name is the raw 11-byte name.
func shortEntry(name string, attr byte, cluster, size uint32) []byte {
	e := make([]byte, direntSize)
	copy(e, name)
	e[11] = attr
	binary.LittleEndian.PutUint16(e[20:], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(e[26:], uint16(cluster))
	binary.LittleEndian.PutUint32(e[28:], size)
	return e
}

// longEntries returns the long name entries for name, in on-disk order,
// bound to the short name short.
func longEntries(name, short string) []byte {
	chars := utf16.Encode([]rune(name))
	if len(chars)%lfnChars != 0 {
		chars = append(chars, 0)
		for len(chars)%lfnChars != 0 {
			chars = append(chars, 0xffff)
		}
	}
	n := len(chars) / lfnChars
	sum := shortChecksum([]byte(short))
	var out []byte
	for order := n; order >= 1; order-- {
		e := make([]byte, direntSize)
		e[0] = byte(order)
		if order == n {
			e[0] |= lfnLast
		}
		e[11] = attrLongName
		e[lfnChecksum] = sum
		part := chars[(order-1)*lfnChars : order*lfnChars]
		le := binary.LittleEndian
		for j := 0; j < 5; j++ {
			le.PutUint16(e[1+2*j:], part[j])
		}
		for j := 0; j < 6; j++ {
			le.PutUint16(e[14+2*j:], part[5+j])
		}
		for j := 0; j < 2; j++ {
			le.PutUint16(e[28+2*j:], part[11+j])
		}
		out = append(out, e...)
	}
	return out
}

func join(ents ...[]byte) []byte {
	var out []byte
	for _, e := range ents {
		out = append(out, e...)
	}
	return out
}

// Contents of the standard test volume.
var (
	helloData = []byte("Hello, FAT32\n")
	longName  = "A long file name.txt"
)

var longData = func() []byte {
	b := make([]byte, 1200)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}()

const subFiles = 20

// standardImage returns a volume with:
//
//	/HELLO.TXT             13 bytes in cluster 3
//	/A long file name.txt  1200 bytes in clusters 4, 7, 5
//	/SUB/                  clusters 6, 9 holding F00..F19
//	/readme.md             empty, lower case via NT flags
//
// plus a volume label and a deleted entry in the root.
func standardImage(t *testing.T) *testImage {
	img := newTestImage(t, 16)

	readme := shortEntry("README  MD ", attrArchive, 0, 0)
	readme[12] = ntLowerBase | ntLowerExt
	root := join(
		shortEntry("KVFS TEST  ", attrVolumeID, 0, 0),
		shortEntry("HELLO   TXT", attrArchive, 3, uint32(len(helloData))),
		longEntries(longName, "ALONGF~1TXT"),
		shortEntry("ALONGF~1TXT", attrArchive, 4, uint32(len(longData))),
		shortEntry("\xe5ONE    TXT", attrArchive, 10, 5),
		shortEntry("SUB        ", attrDirectory, 6, 0),
		readme,
	)
	img.write(root, 2)
	img.write(helloData, 3)
	img.write(longData, 4, 7, 5)

	sub := join(
		shortEntry(".          ", attrDirectory, 6, 0),
		shortEntry("..         ", attrDirectory, 0, 0),
	)
	for i := 0; i < subFiles; i++ {
		name := []byte("F00        ")
		name[1] = '0' + byte(i/10)
		name[2] = '0' + byte(i%10)
		sub = append(sub, shortEntry(string(name), attrArchive, 0, 0)...)
	}
	img.write(sub, 6, 9)
	return img
}
