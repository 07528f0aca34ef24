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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/sentry/fsimpl/memfs"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/boot"
	"kvfs.dev/kvfs/vfsctl/config"
)

// Export implements subcommands.Command for the "export" command.
type Export struct {
	format string
	file   string
}

// Name implements subcommands.Command.Name.
func (*Export) Name() string {
	return "export"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Export) Synopsis() string {
	return "write a memfs mount as an archive"
}

// Usage implements subcommands.Command.Usage.
func (*Export) Usage() string {
	return `export [-format tar|cpio] [-file path] <mount path> - serialize the memfs
mounted on mount path.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *Export) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.format, "format", config.FormatTar, "archive format: tar or cpio")
	f.StringVar(&e.file, "file", "", "output file path, if empty, output to stdout")
}

// Execute implements subcommands.Command.Execute.
func (e *Export) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError(f)
	}
	return run(ctx, args, func(ns *boot.Namespace, ioctx *vfs.Ioctx) error {
		out := Stdout
		if e.file != "" {
			file, err := os.OpenFile(e.file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("failed to open output file: %w", err)
			}
			defer file.Close()
			out = file
		}
		return export(out, ns, ioctx, f.Arg(0), e.format)
	})
}

func export(w io.Writer, ns *boot.Namespace, ioctx *vfs.Ioctx, path, format string) error {
	node, err := ioctx.Find(nil, path, true)
	if err != nil {
		return fmt.Errorf("cannot access %q: %w", path, err)
	}
	mnt := ns.MountOf(node)
	fs, ok := node.FS().(*memfs.Filesystem)
	if !ok || mnt == nil || mnt.Root != node {
		return fmt.Errorf("%q is not the root of a memfs mount: %w", path, linuxerr.EINVAL)
	}
	return boot.WriteArchive(fs, w, format)
}
