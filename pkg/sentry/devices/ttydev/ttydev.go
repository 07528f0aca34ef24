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

// Package ttydev implements serial terminal devices on top of host streams.
package ttydev

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// Winsize is struct winsize from include/uapi/asm-generic/termios.h.
type Winsize struct {
	Row    uint16
	Col    uint16
	Xpixel uint16
	Ypixel uint16
}

// Serial implements vfs.CharDevice for a serial line connected to a host
// reader and writer, for example the process's standard streams.
type Serial struct {
	in  io.Reader
	out io.Writer

	// mu protects winsize.
	mu      sync.Mutex
	winsize Winsize
}

var _ vfs.CharDevice = (*Serial)(nil)
var _ vfs.Ioctler = (*Serial)(nil)

// NewSerial returns a serial line reading from in and writing to out.
func NewSerial(in io.Reader, out io.Writer) *Serial {
	s := &Serial{in: in, out: out}
	if w, h, err := s.termSize(); err == nil {
		s.winsize = Winsize{Row: uint16(h), Col: uint16(w)}
	} else {
		s.winsize = Winsize{Row: 24, Col: 80}
	}
	return s
}

// terminal returns the host file descriptor backing out, if it is a
// terminal.
func (s *Serial) terminal() (int, bool) {
	f, ok := s.out.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func (s *Serial) termSize() (int, int, error) {
	fd, ok := s.terminal()
	if !ok {
		return 0, 0, linuxerr.ENOTTY
	}
	return term.GetSize(fd)
}

// Read implements vfs.CharDevice.Read. End of input reads as zero bytes.
// The blocking flag is ignored: host streams are always read blocking.
func (s *Serial) Read(_ bool, buf []byte) (int, error) {
	if s.in == nil {
		return 0, nil
	}
	n, err := s.in.Read(buf)
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		return n, linuxerr.EIO
	}
	return n, nil
}

// Write implements vfs.CharDevice.Write.
func (s *Serial) Write(_ bool, buf []byte) (int, error) {
	if s.out == nil {
		return len(buf), nil
	}
	n, err := s.out.Write(buf)
	if err != nil {
		return n, linuxerr.EIO
	}
	return n, nil
}

// Winsize returns the current window size.
func (s *Serial) Winsize() Winsize {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winsize
}

// Ioctl implements vfs.Ioctler.Ioctl. Window sizes are passed by value
// with the row count in bits 16-31 and the column count in bits 0-15:
// TIOCGWINSZ returns one and TIOCSWINSZ takes one as arg.
func (s *Serial) Ioctl(cmd uint64, arg uintptr, _ int) (int, error) {
	switch cmd {
	case linux.TIOCGWINSZ:
		ws := s.Winsize()
		return PackWinsize(ws), nil
	case linux.TIOCSWINSZ:
		s.mu.Lock()
		s.winsize = UnpackWinsize(uint32(arg))
		s.mu.Unlock()
		return 0, nil
	case linux.TCGETS, linux.TCSETS:
		if _, ok := s.terminal(); !ok {
			return 0, linuxerr.ENOTTY
		}
		return 0, nil
	default:
		return 0, linuxerr.ENOTTY
	}
}

// PackWinsize encodes the rows and columns of ws in the form Ioctl uses.
func PackWinsize(ws Winsize) int {
	return int(ws.Row)<<16 | int(ws.Col)
}

// UnpackWinsize decodes a window size packed by PackWinsize.
func UnpackWinsize(v uint32) Winsize {
	return Winsize{Row: uint16(v >> 16), Col: uint16(v)}
}
