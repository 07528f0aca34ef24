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
	"strings"
	"unicode/utf16"
)

// direntSize is the size of an on-disk directory entry.
const direntSize = 32

// Directory entry attributes.
const (
	attrReadOnly  = 0x01
	attrHidden    = 0x02
	attrSystem    = 0x04
	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20
	attrLongName  = attrReadOnly | attrHidden | attrSystem | attrVolumeID
)

// Markers in the first name byte.
const (
	entryEnd     = 0x00
	entryDeleted = 0xe5
	entryKanji   = 0x05
)

// Long name entry layout.
const (
	lfnLast      = 0x40
	lfnOrderMask = 0x3f
	lfnChars     = 13
	lfnChecksum  = 13
)

// Case bits in the reserved byte of short entries.
const (
	ntLowerBase = 0x08
	ntLowerExt  = 0x10
)

// dirent is a decoded directory entry.
type dirent struct {
	name    string
	dir     bool
	cluster uint32
	size    uint32
}

// lfnRun accumulates the long name entries preceding a short entry.
type lfnRun struct {
	chars    []uint16
	checksum uint8
	// next is the order of the entry expected next; 0 when idle.
	next int
}

func (r *lfnRun) reset() {
	r.chars = r.chars[:0]
	r.next = 0
}

// add records the long name entry e.
func (r *lfnRun) add(e []byte) {
	order := int(e[0] & lfnOrderMask)
	if e[0]&lfnLast != 0 {
		r.reset()
		if order == 0 {
			warnLog.Warningf("fat32: long name entry with order 0")
			return
		}
		r.chars = append(r.chars, make([]uint16, order*lfnChars)...)
		r.checksum = e[lfnChecksum]
		r.next = order
	}
	if r.next == 0 || order != r.next || e[lfnChecksum] != r.checksum {
		if r.next != 0 {
			warnLog.Warningf("fat32: out of sequence long name entry %#x", e[0])
		}
		r.reset()
		return
	}
	pos := (order - 1) * lfnChars
	le := binary.LittleEndian
	for j := 0; j < 5; j++ {
		r.chars[pos+j] = le.Uint16(e[1+2*j:])
	}
	for j := 0; j < 6; j++ {
		r.chars[pos+5+j] = le.Uint16(e[14+2*j:])
	}
	for j := 0; j < 2; j++ {
		r.chars[pos+11+j] = le.Uint16(e[28+2*j:])
	}
	r.next--
	if r.next == 0 {
		// Complete; mark with -1 so a following long entry is not taken as
		// a continuation.
		r.next = -1
	}
}

// name returns the accumulated long name if it is complete and belongs to
// the short entry with the given 8.3 name.
func (r *lfnRun) name(short []byte) (string, bool) {
	if r.next != -1 || r.checksum != shortChecksum(short) {
		return "", false
	}
	chars := r.chars
	for i, c := range chars {
		if c == 0x0000 || c == 0xffff {
			chars = chars[:i]
			break
		}
	}
	if len(chars) == 0 {
		return "", false
	}
	return string(utf16.Decode(chars)), true
}

// shortChecksum computes the checksum long name entries carry for the
// 11-byte short name they belong to.
func shortChecksum(short []byte) uint8 {
	var sum uint8
	for _, c := range short[:11] {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}

// shortName decodes an 8.3 name.
func shortName(e []byte) string {
	base := make([]byte, 0, 8)
	for i, c := range e[0:8] {
		if c == 0 || c == ' ' {
			break
		}
		if i == 0 && c == entryKanji {
			c = entryDeleted
		}
		base = append(base, c)
	}
	var ext []byte
	for _, c := range e[8:11] {
		if c == 0 || c == ' ' {
			break
		}
		ext = append(ext, c)
	}
	name := string(base)
	if e[12]&ntLowerBase != 0 {
		name = strings.ToLower(name)
	}
	if len(ext) > 0 {
		x := string(ext)
		if e[12]&ntLowerExt != 0 {
			x = strings.ToLower(x)
		}
		name += "." + x
	}
	return name
}

// parseDirents decodes the entries of a directory whose contents are data.
// Deleted entries, volume labels, "." and ".." are skipped. Decoding stops
// at the end marker.
func parseDirents(data []byte) []dirent {
	var (
		ents []dirent
		run  lfnRun
	)
	le := binary.LittleEndian
	for off := 0; off+direntSize <= len(data); off += direntSize {
		e := data[off : off+direntSize]
		switch {
		case e[0] == entryEnd:
			return ents
		case e[0] == entryDeleted:
			run.reset()
			continue
		case e[11]&attrLongName == attrLongName:
			run.add(e)
			continue
		case e[11]&attrVolumeID != 0:
			run.reset()
			continue
		}
		name, ok := run.name(e[:11])
		if !ok {
			if run.next != 0 {
				warnLog.Warningf("fat32: discarding long name for %q", shortName(e))
			}
			name = shortName(e)
		}
		run.reset()
		if name == "." || name == ".." {
			continue
		}
		if name == "" {
			warnLog.Warningf("fat32: entry with empty name at offset %d", off)
			continue
		}
		ents = append(ents, dirent{
			name:    name,
			dir:     e[11]&attrDirectory != 0,
			cluster: uint32(le.Uint16(e[20:]))<<16 | uint32(le.Uint16(e[26:])),
			size:    le.Uint32(e[28:]),
		})
	}
	return ents
}
