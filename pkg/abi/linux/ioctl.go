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

// ioctl(2) requests understood by kvfs backends, from
// include/uapi/asm-generic/ioctls.h and include/uapi/linux/fs.h.
const (
	TCGETS     = 0x00005401
	TCSETS     = 0x00005402
	TIOCGWINSZ = 0x00005413
	TIOCSWINSZ = 0x00005414
	FIONREAD   = 0x0000541b

	BLKSSZGET    = 0x00001268
	BLKGETSIZE64 = 0x80081272
)
