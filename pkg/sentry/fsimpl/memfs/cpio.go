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

package memfs

import (
	"fmt"
	"io"

	"github.com/cavaliergopher/cpio"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// LoadCpio adds the contents of the cpio archive read from r to fs, in the
// way the kernel unpacks an initramfs. Regular files and directories are
// supported; other members are skipped.
func (fs *Filesystem) LoadCpio(r io.Reader) error {
	cr := cpio.NewReader(r)
	return fs.load("cpio", func() (member, bool, error) {
		for {
			hdr, err := cr.Next()
			if err == io.EOF {
				return member{}, false, nil
			}
			if err != nil {
				return member{}, false, err
			}
			mode := linux.FileMode(hdr.Mode)
			m := member{
				name: cleanName(hdr.Name),
				mode: mode,
				uid:  uint32(hdr.Uid),
				gid:  uint32(hdr.Guid),
			}
			switch mode.FileType() {
			case linux.S_IFDIR:
				m.kind = vfs.Directory
			case linux.S_IFREG:
				m.kind = vfs.Regular
				if m.data, err = io.ReadAll(cr); err != nil {
					return member{}, false, fmt.Errorf("reading %q: %w", hdr.Name, err)
				}
			default:
				skipLog.Warningf("Skipping cpio member %q with mode %v", hdr.Name, mode)
				continue
			}
			return m, true, nil
		}
	})
}

// WriteCpio writes the contents of fs to w as a newc cpio archive.
func (fs *Filesystem) WriteCpio(w io.Writer) error {
	cw := cpio.NewWriter(w)
	err := fs.walk(func(name string, node *vfs.Vnode) error {
		stat := node.CachedStat()
		hdr := &cpio.Header{
			Name: name,
			Mode: cpio.FileMode(stat.Mode),
			Uid:  int(stat.UID),
			Guid: int(stat.GID),
		}
		var data []byte
		switch node.Kind() {
		case vfs.Directory:
			hdr.Links = 2
		case vfs.Regular:
			var err error
			if data, err = contents(node); err != nil {
				return err
			}
			hdr.Links = 1
			hdr.Size = int64(len(data))
		default:
			skipLog.Warningf("Skipping %v node %q while generating cpio archive", node.Kind(), name)
			return nil
		}
		if err := cw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header for %s: %w", name, err)
		}
		if _, err := cw.Write(data); err != nil {
			return fmt.Errorf("write body for %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
