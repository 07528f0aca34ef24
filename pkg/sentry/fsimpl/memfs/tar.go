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
	"archive/tar"
	"fmt"
	"io"

	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// LoadTar adds the contents of the tar archive read from r to fs. Regular
// files and directories are supported; other members are skipped.
func (fs *Filesystem) LoadTar(r io.Reader) error {
	tr := tar.NewReader(r)
	return fs.load("tar", func() (member, bool, error) {
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return member{}, false, nil
			}
			if err != nil {
				return member{}, false, err
			}
			m := member{
				name: cleanName(hdr.Name),
				mode: linux.FileMode(hdr.Mode),
				uid:  uint32(hdr.Uid),
				gid:  uint32(hdr.Gid),
			}
			switch hdr.Typeflag {
			case tar.TypeDir:
				m.kind = vfs.Directory
			case tar.TypeReg:
				m.kind = vfs.Regular
				if m.data, err = io.ReadAll(tr); err != nil {
					return member{}, false, fmt.Errorf("reading %q: %w", hdr.Name, err)
				}
			default:
				skipLog.Warningf("Skipping tar member %q of type %q", hdr.Name, hdr.Typeflag)
				continue
			}
			return m, true, nil
		}
	})
}

// WriteTar writes the contents of fs to w as a tar archive.
func (fs *Filesystem) WriteTar(w io.Writer) error {
	tw := tar.NewWriter(w)
	err := fs.walk(func(name string, node *vfs.Vnode) error {
		stat := node.CachedStat()
		hdr := &tar.Header{
			Name: name,
			Mode: int64(stat.Mode &^ linux.FileTypeMask),
			Uid:  int(stat.UID),
			Gid:  int(stat.GID),
		}
		var data []byte
		switch node.Kind() {
		case vfs.Directory:
			hdr.Typeflag = tar.TypeDir
			hdr.Name += "/"
		case vfs.Regular:
			var err error
			if data, err = contents(node); err != nil {
				return err
			}
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(data))
		default:
			skipLog.Warningf("Skipping %v node %q while generating tar archive", node.Kind(), name)
			return nil
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write tar header for %q: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("failed to write file content for %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}
	return nil
}
