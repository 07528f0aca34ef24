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
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/boot"
)

// Ls implements subcommands.Command for the "ls" command.
type Ls struct {
	long bool
	all  bool
}

// Name implements subcommands.Command.Name.
func (*Ls) Name() string {
	return "ls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Ls) Synopsis() string {
	return "list directory contents"
}

// Usage implements subcommands.Command.Usage.
func (*Ls) Usage() string {
	return `ls [-l] [-a] [path]... - list the entries of each directory.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *Ls) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&l.long, "l", false, "use a long listing format")
	f.BoolVar(&l.all, "a", false, "do not ignore entries starting with .")
}

// Execute implements subcommands.Command.Execute.
func (l *Ls) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	paths := f.Args()
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	return run(ctx, args, func(_ *boot.Namespace, ioctx *vfs.Ioctx) error {
		for i, p := range paths {
			if len(paths) > 1 {
				if i > 0 {
					fmt.Fprintln(Stdout)
				}
				fmt.Fprintf(Stdout, "%s:\n", p)
			}
			if err := l.list(Stdout, ioctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Ls) list(w io.Writer, ioctx *vfs.Ioctx, path string) error {
	node, err := ioctx.Find(nil, path, true)
	if err != nil {
		return fmt.Errorf("cannot access %q: %w", path, err)
	}
	if !node.IsDirectory() {
		return l.entry(w, ioctx, nil, path)
	}
	dir, ents, err := readdirAll(ioctx, path)
	if err != nil {
		return err
	}
	for _, e := range ents {
		if !l.all && len(e.Name) > 0 && e.Name[0] == '.' {
			continue
		}
		if err := l.entry(w, ioctx, dir, e.Name); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ls) entry(w io.Writer, ioctx *vfs.Ioctx, dir *vfs.Vnode, name string) error {
	if !l.long {
		_, err := fmt.Fprintln(w, name)
		return err
	}
	st, err := ioctx.Stat(dir, name)
	if err != nil {
		return fmt.Errorf("cannot stat %q: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "%s %5d %5d %10d %s\n", st.Mode.LsString(), st.UID, st.GID, st.Size, name)
	return err
}
