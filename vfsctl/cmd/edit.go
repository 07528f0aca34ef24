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

	"github.com/google/subcommands"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/boot"
)

// Mkdir implements subcommands.Command for the "mkdir" command.
type Mkdir struct {
	mode   uint
	noSync bool
}

// Name implements subcommands.Command.Name.
func (*Mkdir) Name() string {
	return "mkdir"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Mkdir) Synopsis() string {
	return "make directories"
}

// Usage implements subcommands.Command.Usage.
func (*Mkdir) Usage() string {
	return `mkdir [-m mode] [-no-sync] <path>... - create directories.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Mkdir) SetFlags(f *flag.FlagSet) {
	f.UintVar(&m.mode, "m", 0755, "permission bits of the new directories")
	f.BoolVar(&m.noSync, "no-sync", false, "do not save memfs archives")
}

// Execute implements subcommands.Command.Execute.
func (m *Mkdir) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return usageError(f)
	}
	mode := linux.S_IFDIR | linux.FileMode(m.mode)&linux.PermissionsMask
	return run(ctx, args, func(ns *boot.Namespace, ioctx *vfs.Ioctx) error {
		for _, p := range f.Args() {
			if _, err := ioctx.Mkdir(nil, p, mode); err != nil {
				return fmt.Errorf("cannot create directory %q: %w", p, err)
			}
		}
		return syncArchives(ns, m.noSync)
	})
}

// Rm implements subcommands.Command for the "rm" command.
type Rm struct {
	noSync bool
}

// Name implements subcommands.Command.Name.
func (*Rm) Name() string {
	return "rm"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Rm) Synopsis() string {
	return "remove files or empty directories"
}

// Usage implements subcommands.Command.Usage.
func (*Rm) Usage() string {
	return `rm [-no-sync] <path>... - unlink each path.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Rm) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.noSync, "no-sync", false, "do not save memfs archives")
}

// Execute implements subcommands.Command.Execute.
func (r *Rm) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return usageError(f)
	}
	return run(ctx, args, func(ns *boot.Namespace, ioctx *vfs.Ioctx) error {
		for _, p := range f.Args() {
			if err := ioctx.Unlink(nil, p); err != nil {
				return fmt.Errorf("cannot remove %q: %w", p, err)
			}
		}
		return syncArchives(ns, r.noSync)
	})
}
