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

// Package linux contains the constants and types shared between the VFS and
// its callers: file modes, open flags, access modes, stat and dirent records.
package linux

import (
	"fmt"
	"strings"
)

// Values for mode_t.
const (
	FileTypeMask        = 0170000
	ModeSocket          = 0140000
	ModeSymlink         = 0120000
	ModeRegular         = 0100000
	ModeBlockDevice     = 060000
	ModeDirectory       = 040000
	ModeCharacterDevice = 020000
	ModeNamedPipe       = 010000

	ModeSetUID = 04000
	ModeSetGID = 02000
	ModeSticky = 01000

	ModeUserAll     = 0700
	ModeUserRead    = 0400
	ModeUserWrite   = 0200
	ModeUserExec    = 0100
	ModeGroupAll    = 0070
	ModeGroupRead   = 0040
	ModeGroupWrite  = 0020
	ModeGroupExec   = 0010
	ModeOtherAll    = 0007
	ModeOtherRead   = 0004
	ModeOtherWrite  = 0002
	ModeOtherExec   = 0001
	PermissionsMask = 0777
)

// File types.
const (
	S_IFMT   = FileTypeMask
	S_IFSOCK = ModeSocket
	S_IFLNK  = ModeSymlink
	S_IFREG  = ModeRegular
	S_IFBLK  = ModeBlockDevice
	S_IFDIR  = ModeDirectory
	S_IFCHR  = ModeCharacterDevice
	S_IFIFO  = ModeNamedPipe
)

// FileMode represents a mode_t.
type FileMode uint32

// DefaultDirMode is the mode given to directories created implicitly, for
// example the parents of archive members.
const DefaultDirMode FileMode = S_IFDIR | 0755

// DefaultFileMode is the mode given to regular files when the caller does
// not supply one.
const DefaultFileMode FileMode = S_IFREG | 0644

// Permissions returns just the permission bits.
func (m FileMode) Permissions() FileMode {
	return m & PermissionsMask
}

// FileType returns just the file type bits.
func (m FileMode) FileType() FileMode {
	return m & FileTypeMask
}

// ExtraBits returns everything but the file type and permission bits.
func (m FileMode) ExtraBits() FileMode {
	return m &^ (PermissionsMask | FileTypeMask)
}

// IsDir returns true if m represents a directory.
func (m FileMode) IsDir() bool {
	return m.FileType() == S_IFDIR
}

// DirentType returns the dirent type corresponding to m's file type.
func (m FileMode) DirentType() uint8 {
	switch m.FileType() {
	case S_IFSOCK:
		return DT_SOCK
	case S_IFLNK:
		return DT_LNK
	case S_IFREG:
		return DT_REG
	case S_IFBLK:
		return DT_BLK
	case S_IFDIR:
		return DT_DIR
	case S_IFCHR:
		return DT_CHR
	case S_IFIFO:
		return DT_FIFO
	default:
		return DT_UNKNOWN
	}
}

var fileTypeNames = map[FileMode]string{
	S_IFSOCK: "S_IFSOCK",
	S_IFLNK:  "S_IFLNK",
	S_IFREG:  "S_IFREG",
	S_IFBLK:  "S_IFBLK",
	S_IFDIR:  "S_IFDIR",
	S_IFCHR:  "S_IFCHR",
	S_IFIFO:  "S_IFIFO",
}

// String returns a string representation of m, e.g. "S_IFDIR|0o755".
func (m FileMode) String() string {
	var s []string
	if ft := m.FileType(); ft != 0 {
		if name, ok := fileTypeNames[ft]; ok {
			s = append(s, name)
		} else {
			s = append(s, fmt.Sprintf("%#o", uint32(ft)))
		}
	}
	eb := m.ExtraBits()
	if eb&ModeSetUID != 0 {
		s = append(s, "S_ISUID")
	}
	if eb&ModeSetGID != 0 {
		s = append(s, "S_ISGID")
	}
	if eb&ModeSticky != 0 {
		s = append(s, "S_ISVTX")
	}
	s = append(s, fmt.Sprintf("0o%o", uint32(m.Permissions())))
	return strings.Join(s, "|")
}

// LsString renders m the way ls -l prints a mode, e.g. "drwxr-xr-x".
func (m FileMode) LsString() string {
	var b [10]byte
	switch m.FileType() {
	case S_IFDIR:
		b[0] = 'd'
	case S_IFCHR:
		b[0] = 'c'
	case S_IFBLK:
		b[0] = 'b'
	case S_IFLNK:
		b[0] = 'l'
	case S_IFIFO:
		b[0] = 'p'
	case S_IFSOCK:
		b[0] = 's'
	default:
		b[0] = '-'
	}
	const rwx = "rwx"
	for i := 0; i < 9; i++ {
		if m&(1<<uint(8-i)) != 0 {
			b[1+i] = rwx[i%3]
		} else {
			b[1+i] = '-'
		}
	}
	return string(b[:])
}

// Stat is the file status reported by a vnode.
type Stat struct {
	Mode    FileMode
	UID     uint32
	GID     uint32
	Size    uint64
	Blksize uint32
	Blocks  uint64
}

// Dirent types, from include/linux/fs_types.h.
const (
	DT_UNKNOWN = 0
	DT_FIFO    = 1
	DT_CHR     = 2
	DT_DIR     = 4
	DT_BLK     = 6
	DT_REG     = 8
	DT_LNK     = 10
	DT_SOCK    = 12
)

// Dirent is a single directory entry produced by readdir.
type Dirent struct {
	// Name is the entry's name, without any path separators.
	Name string

	// Type is one of the DT_* values.
	Type uint8

	// NextOff is the position to pass to the next readdir call in order to
	// continue after this entry.
	NextOff int64
}
