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
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/boot"
)

// Write implements subcommands.Command for the "write" command.
type Write struct {
	append bool
	noSync bool
}

// Name implements subcommands.Command.Name.
func (*Write) Name() string {
	return "write"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Write) Synopsis() string {
	return "write standard input to a file"
}

// Usage implements subcommands.Command.Usage.
func (*Write) Usage() string {
	return `write [-append] [-no-sync] <path> - create or replace path with the
contents of standard input. Writable memfs mounts loaded from an archive are
saved back to it afterwards.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (w *Write) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&w.append, "append", false, "append instead of truncating")
	f.BoolVar(&w.noSync, "no-sync", false, "do not save memfs archives")
}

// Execute implements subcommands.Command.Execute.
func (w *Write) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError(f)
	}
	path := f.Arg(0)
	return run(ctx, args, func(ns *boot.Namespace, ioctx *vfs.Ioctx) error {
		if err := w.write(ioctx, path); err != nil {
			return err
		}
		return syncArchives(ns, w.noSync)
	})
}

func (w *Write) write(ioctx *vfs.Ioctx, path string) error {
	flags := linux.O_WRONLY | linux.O_CREAT
	if w.append {
		flags |= linux.O_APPEND
	} else {
		flags |= linux.O_TRUNC
	}
	file, err := ioctx.Open(nil, path, linux.DefaultFileMode, flags)
	if err != nil {
		return fmt.Errorf("opening %q: %w", path, err)
	}
	n, err := copyIn(file, Stdin)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	log.Debugf("Wrote %d bytes to %q", n, path)
	return nil
}

func syncArchives(ns *boot.Namespace, skip bool) error {
	if skip {
		return nil
	}
	return ns.Sync()
}
