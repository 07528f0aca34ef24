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

// Cat implements subcommands.Command for the "cat" command.
type Cat struct{}

// Name implements subcommands.Command.Name.
func (*Cat) Name() string {
	return "cat"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Cat) Synopsis() string {
	return "print files"
}

// Usage implements subcommands.Command.Usage.
func (*Cat) Usage() string {
	return `cat <path>... - concatenate files to standard output.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Cat) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Cat) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return usageError(f)
	}
	return run(ctx, args, func(_ *boot.Namespace, ioctx *vfs.Ioctx) error {
		for _, p := range f.Args() {
			if err := catFile(ioctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func catFile(ioctx *vfs.Ioctx, path string) error {
	f, err := ioctx.Open(nil, path, 0, linux.O_RDONLY)
	if err != nil {
		return fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()
	if err := copyOut(Stdout, f); err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	return nil
}
