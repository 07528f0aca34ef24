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

// Package fspath provides efficient tools for working with file paths in
// kvfs code.
package fspath

import (
	"fmt"
	"strings"

	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

// Path contains the components of a parsed pathname.
type Path struct {
	// Begin is an iterator to the first path component in the relative part
	// of the path.
	//
	// Path doesn't store information about path components after the first
	// since this would require allocation.
	Begin Iterator

	// If true, the path is absolute, such that lookup should begin at the
	// filesystem root. If false, the path is relative, such that where lookup
	// begins is unspecified.
	Absolute bool

	// If true, the pathname contains trailing path separators, so the last
	// path component must exist and resolve to a directory.
	Dir bool
}

// String returns a pathname string equivalent to p. Note that the returned
// string is not necessarily equal to the string p was parsed from; in
// particular, redundant path separators will not be present.
func (p Path) String() string {
	var b strings.Builder
	if p.Absolute {
		b.WriteByte('/')
	}
	sep := false
	for pit := p.Begin; pit.Ok(); pit = pit.Next() {
		if sep {
			b.WriteByte('/')
		}
		b.WriteString(pit.String())
		sep = true
	}
	// Don't return "//" for Parse("/").
	if p.Dir && p.Begin.Ok() {
		b.WriteByte('/')
	}
	return b.String()
}

// Parse parses a pathname as described by path_resolution(7). An empty
// pathname yields ENOENT.
func Parse(pathname string) (Path, error) {
	if len(pathname) == 0 {
		return Path{}, linuxerr.ENOENT
	}
	// Skip leading path separators.
	i := 0
	for pathname[i] == '/' {
		i++
		if i == len(pathname) {
			// pathname consists entirely of path separators.
			return Path{
				Absolute: true,
				Dir:      true,
			}, nil
		}
	}
	// Skip trailing path separators. This is required by Iterator.Next. This
	// loop is guaranteed to terminate with j >= i since otherwise the
	// pathname would consist entirely of path separators, and we have
	// already handled that case.
	j := len(pathname)
	for pathname[j-1] == '/' {
		j--
	}
	// Find the end of the first path component.
	firstEnd := i + 1
	for firstEnd != len(pathname) && pathname[firstEnd] != '/' {
		firstEnd++
	}
	return Path{
		Begin: Iterator{
			partialPathname: pathname[i:j],
			end:             firstEnd - i,
		},
		Absolute: i != 0,
		Dir:      j != len(pathname),
	}, nil
}

// Iterator represents either a path component in a Path or a terminal
// iterator indicating that the end of the path has been reached.
//
// Iterator is immutable and copyable by value. The zero value of Iterator
// is valid, and represents a terminal iterator.
type Iterator struct {
	// partialPathname is a substring of the original pathname beginning at
	// the start of the represented path component and ending immediately
	// after the end of the last path component in the pathname. If
	// partialPathname is empty, the Iterator is terminal.
	partialPathname string

	// end is the offset into partialPathname of the first byte after the end
	// of the represented path component.
	end int
}

// Ok returns true if it is not terminal.
func (it Iterator) Ok() bool {
	return len(it.partialPathname) != 0
}

// String returns the path component represented by it.
//
// Preconditions: it.Ok().
func (it Iterator) String() string {
	return it.partialPathname[:it.end]
}

// Next returns an iterator to the path component after it. If it is the
// last component in the path, Next returns a terminal iterator.
//
// Preconditions: it.Ok().
func (it Iterator) Next() Iterator {
	if it.end == len(it.partialPathname) {
		// End of the path.
		return Iterator{}
	}
	// Skip path separators. Since Parse trims trailing path separators, if we
	// aren't at the end of the path, there is definitely another path
	// component.
	i := it.end + 1
	for {
		if it.partialPathname[i] != '/' {
			break
		}
		i++
	}
	nextPartialPathname := it.partialPathname[i:]
	// Find the end of this path component.
	nextEnd := 1
	for nextEnd < len(nextPartialPathname) && nextPartialPathname[nextEnd] != '/' {
		nextEnd++
	}
	return Iterator{
		partialPathname: nextPartialPathname,
		end:             nextEnd,
	}
}

// NextOk is equivalent to it.Next().Ok(), but is faster.
//
// Preconditions: it.Ok().
func (it Iterator) NextOk() bool {
	return it.end != len(it.partialPathname)
}

// Remaining returns the unconsumed part of the pathname after it, without
// leading separators, or "" if it is the last component.
//
// Preconditions: it.Ok().
func (it Iterator) Remaining() string {
	if !it.NextOk() {
		return ""
	}
	return it.Next().partialPathname
}

// SplitLast splits pathname into the directory that contains its final
// component and the component itself. Trailing separators are ignored.
// Absolute pathnames keep their root: SplitLast("/c") is ("/", "c"). A
// pathname without a separator has directory ".". SplitLast("/") is
// ("/", "").
func SplitLast(pathname string) (dir, base string) {
	j := len(pathname)
	for j > 1 && pathname[j-1] == '/' {
		j--
	}
	pathname = pathname[:j]
	if pathname == "/" {
		return "/", ""
	}
	i := strings.LastIndexByte(pathname, '/')
	if i < 0 {
		return ".", pathname
	}
	base = pathname[i+1:]
	dir = strings.TrimRight(pathname[:i], "/")
	if dir == "" {
		dir = "/"
	}
	return dir, base
}

// ValidateName returns an error if name cannot be used as a single path
// component of a new file.
func ValidateName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return linuxerr.EINVAL
	case strings.IndexByte(name, '/') >= 0:
		return linuxerr.EINVAL
	case len(name) > MaxNameLen:
		return fmt.Errorf("component of %d bytes: %w", len(name), linuxerr.ENAMETOOLONG)
	}
	return nil
}

// MaxNameLen is the longest path component accepted by ValidateName, equal
// to Linux's NAME_MAX.
const MaxNameLen = 255
