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

package boot

import (
	"io"

	"kvfs.dev/kvfs/pkg/sentry/devices/memdev"
	"kvfs.dev/kvfs/pkg/sentry/devices/ttydev"
	"kvfs.dev/kvfs/pkg/sentry/fsimpl/devfs"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
)

// newDevfs returns a devfs holding the memory devices, a serial console on
// stdin and stdout, and one block device per image of the namespace.
func (ns *Namespace) newDevfs(mnt *Mounted, stdin io.Reader, stdout io.Writer) (*devfs.Filesystem, error) {
	fs := devfs.New(devfs.Options{NonBlocking: mnt.NonBlocking()})
	for _, d := range []struct {
		name string
		dev  vfs.CharDevice
	}{
		{"null", memdev.Null{}},
		{"zero", memdev.Zero{}},
		{"kmsg", &memdev.Kmsg{}},
	} {
		if _, err := fs.AddNamedCharDevice(d.name, d.dev); err != nil {
			return nil, err
		}
	}
	if stdin != nil && stdout != nil {
		if _, err := fs.AddCharDevice(ttydev.NewSerial(stdin, stdout), devfs.TtySerial); err != nil {
			return nil, err
		}
	}
	for _, m := range ns.mounts {
		if m.image == nil {
			continue
		}
		if _, err := fs.AddBlockDevice(m.image, devfs.VirtualDisk); err != nil {
			return nil, err
		}
	}
	return fs, nil
}
