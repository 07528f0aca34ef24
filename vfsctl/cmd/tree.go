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
	"strings"

	"github.com/google/subcommands"
	"golang.org/x/term"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/boot"
)

// Tree implements subcommands.Command for the "tree" command.
type Tree struct {
	depth int
	width int
}

// Name implements subcommands.Command.Name.
func (*Tree) Name() string {
	return "tree"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Tree) Synopsis() string {
	return "print a directory hierarchy"
}

// Usage implements subcommands.Command.Usage.
func (*Tree) Usage() string {
	return `tree [-L depth] [path] - print the tree rooted at path, crossing mounts.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (t *Tree) SetFlags(f *flag.FlagSet) {
	f.IntVar(&t.depth, "L", 0, "maximum depth, 0 for no limit")
	f.IntVar(&t.width, "width", 0, "truncate lines to this many columns, 0 for the terminal width")
}

// Execute implements subcommands.Command.Execute.
func (t *Tree) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() > 1 {
		return usageError(f)
	}
	root := "/"
	if f.NArg() == 1 {
		root = f.Arg(0)
	}
	if t.width == 0 {
		t.width = terminalWidth(Stdout)
	}
	return run(ctx, args, func(_ *boot.Namespace, ioctx *vfs.Ioctx) error {
		fmt.Fprintln(Stdout, clip(root, t.width))
		return t.walk(Stdout, ioctx, root, "", 1)
	})
}

// terminalWidth returns the width of w if it is a terminal, or 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// clip truncates s to width runes. A width of 0 disables truncation.
func clip(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

func (t *Tree) walk(w io.Writer, ioctx *vfs.Ioctx, dir, prefix string, level int) error {
	if t.depth > 0 && level > t.depth {
		return nil
	}
	_, ents, err := readdirAll(ioctx, dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range ents {
		if e.Name != "." && e.Name != ".." {
			names = append(names, e.Name)
		}
	}
	for i, name := range names {
		branch, indent := "|-- ", "|   "
		if i == len(names)-1 {
			branch, indent = "`-- ", "    "
		}
		child := strings.TrimSuffix(dir, "/") + "/" + name
		node, err := ioctx.Find(nil, child, true)
		if err != nil {
			return fmt.Errorf("cannot access %q: %w", child, err)
		}
		line := prefix + branch + name
		if node.IsDirectory() {
			line += "/"
		}
		fmt.Fprintln(w, clip(line, t.width))
		if node.IsDirectory() {
			if err := t.walk(w, ioctx, child, prefix+indent, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}
