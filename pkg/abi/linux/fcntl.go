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

// OpenFlags is the flags argument of open(2).
type OpenFlags uint32

// Constants for open(2).
const (
	O_RDONLY    OpenFlags = 000000000
	O_WRONLY    OpenFlags = 000000001
	O_RDWR      OpenFlags = 000000002
	O_ACCMODE   OpenFlags = 000000003
	O_CREAT     OpenFlags = 000000100
	O_EXCL      OpenFlags = 000000200
	O_NOCTTY    OpenFlags = 000000400
	O_TRUNC     OpenFlags = 000001000
	O_APPEND    OpenFlags = 000002000
	O_NONBLOCK  OpenFlags = 000004000
	O_DIRECTORY OpenFlags = 000200000
	O_CLOEXEC   OpenFlags = 002000000
)

// AccessMode returns just the O_ACCMODE bits.
func (f OpenFlags) AccessMode() OpenFlags {
	return f & O_ACCMODE
}

// AccessMode is the mode argument of access(2).
type AccessMode uint32

// Constants for access(2).
const (
	F_OK AccessMode = 0
	X_OK AccessMode = 1
	W_OK AccessMode = 2
	R_OK AccessMode = 4
)

// Constants for lseek(2).
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)
