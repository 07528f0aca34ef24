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
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

// AccessTypes is a bitmask of Unix file permissions.
type AccessTypes uint16

// Bits in AccessTypes.
const (
	MayRead  AccessTypes = 4
	MayWrite AccessTypes = 2
	MayExec  AccessTypes = 1
)

// RootUID is the user ID that bypasses permission checks.
const RootUID = 0

// GenericCheckPermissions checks that a caller with the given uid and gid
// has the given access rights on a file with the given mode and ownership,
// following fs/namei.c:generic_permission(). isDir is true if the file is a
// directory.
func GenericCheckPermissions(uid, gid uint32, ats AccessTypes, isDir bool, mode linux.FileMode, fuid, fgid uint32) error {
	perms := uint16(mode.Permissions())
	if uid == fuid {
		perms >>= 6
	} else if gid == fgid {
		perms >>= 3
	}
	if uint16(ats)&perms == uint16(ats) {
		return nil
	}

	// Root has arbitrary access to directories, read/write access to
	// non-directory files, and execute access to non-directory files for
	// which at least one execute bit is set.
	if uid == RootUID && (isDir || ats&MayExec == 0 || mode&0111 != 0) {
		return nil
	}
	return linuxerr.EACCES
}

// AccessTypesForOpenFlags returns the access types required to open a file
// with the given flags. O_TRUNC requires MayWrite even for O_RDONLY.
func AccessTypesForOpenFlags(flags linux.OpenFlags) AccessTypes {
	switch flags.AccessMode() {
	case linux.O_RDONLY:
		if flags&linux.O_TRUNC != 0 {
			return MayRead | MayWrite
		}
		return MayRead
	case linux.O_WRONLY:
		return MayWrite
	default:
		return MayRead | MayWrite
	}
}

// AccessTypesForAccessMode converts an access(2) mode to AccessTypes.
func AccessTypesForAccessMode(mode linux.AccessMode) AccessTypes {
	return AccessTypes(mode & (linux.R_OK | linux.W_OK | linux.X_OK))
}

// CheckPermissions checks that ctx may access v with the given rights.
func (v *Vnode) CheckPermissions(ctx *Ioctx, ats AccessTypes) error {
	v.mu.Lock()
	mode, uid, gid := v.mode, v.uid, v.gid
	v.mu.Unlock()
	return GenericCheckPermissions(ctx.UID(), ctx.GID(), ats, v.IsDirectory(), mode, uid, gid)
}

// CheckAccess implements access(2) for v. F_OK only checks existence,
// which holding v already proves.
func (v *Vnode) CheckAccess(ctx *Ioctx, mode linux.AccessMode) error {
	if mode == linux.F_OK {
		return nil
	}
	return v.CheckPermissions(ctx, AccessTypesForAccessMode(mode))
}
