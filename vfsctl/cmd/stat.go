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

	"github.com/google/subcommands"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/boot"
)

// Stat implements subcommands.Command for the "stat" command.
type Stat struct{}

// Name implements subcommands.Command.Name.
func (*Stat) Name() string {
	return "stat"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stat) Synopsis() string {
	return "display file status"
}

// Usage implements subcommands.Command.Usage.
func (*Stat) Usage() string {
	return `stat <path>... - print the status of each file and the mount it lives on.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Stat) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Stat) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return usageError(f)
	}
	return run(ctx, args, func(ns *boot.Namespace, ioctx *vfs.Ioctx) error {
		for _, p := range f.Args() {
			if err := printStat(Stdout, ns, ioctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func fileType(mode linux.FileMode) string {
	switch mode.FileType() {
	case linux.S_IFDIR:
		return "directory"
	case linux.S_IFREG:
		return "regular file"
	case linux.S_IFCHR:
		return "character special file"
	case linux.S_IFBLK:
		return "block special file"
	default:
		return "unknown"
	}
}

func printStat(w io.Writer, ns *boot.Namespace, ioctx *vfs.Ioctx, path string) error {
	node, err := ioctx.Find(nil, path, true)
	if err != nil {
		return fmt.Errorf("cannot stat %q: %w", path, err)
	}
	st, err := node.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat %q: %w", path, err)
	}
	mount := "unknown"
	if m := ns.MountOf(node); m != nil {
		mount = fmt.Sprintf("%s (%s)", m.Path, m.Type)
	}
	fmt.Fprintf(w, "  File: %s\n", node.Path())
	fmt.Fprintf(w, "  Size: %-10d\tBlocks: %-10d IO Block: %-6d %s\n", st.Size, st.Blocks, st.Blksize, fileType(st.Mode))
	fmt.Fprintf(w, "Access: (%04o/%s)  Uid: %5d   Gid: %5d\n", uint32(st.Mode.Permissions()), st.Mode.LsString(), st.UID, st.GID)
	_, err = fmt.Fprintf(w, " Mount: %s\n", mount)
	return err
}
