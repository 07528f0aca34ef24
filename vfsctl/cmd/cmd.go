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

// Package cmd holds implementations of the vfsctl commands. Every command
// builds the namespace described by the configured mount table, runs one
// operation against it and tears it down again.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"kvfs.dev/kvfs/pkg/abi/linux"
	"kvfs.dev/kvfs/pkg/sentry/vfs"
	"kvfs.dev/kvfs/vfsctl/boot"
	"kvfs.dev/kvfs/vfsctl/cmd/util"
	"kvfs.dev/kvfs/vfsctl/config"
)

// Stdin and Stdout are the streams commands read input from and print
// results to.
var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
)

// openNamespace builds the namespace described by conf.
func openNamespace(ctx context.Context, conf *config.Config) (*boot.Namespace, error) {
	table := config.DefaultMountTable()
	if conf.Mounts != "" {
		var err error
		if table, err = config.LoadMountTable(conf.Mounts); err != nil {
			return nil, err
		}
	}
	mounts, err := table.Resolve()
	if err != nil {
		return nil, err
	}
	return boot.New(ctx, boot.Args{
		Conf:   conf,
		Mounts: mounts,
		Stdin:  Stdin,
		Stdout: Stdout,
	})
}

// run opens the namespace and calls fn with it and a context carrying the
// configured credentials.
func run(ctx context.Context, args []any, fn func(ns *boot.Namespace, ioctx *vfs.Ioctx) error) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	ns, err := openNamespace(ctx, conf)
	if err != nil {
		return util.Errorf("building namespace: %v", err)
	}
	defer ns.Close()
	if err := fn(ns, ns.NewIoctx()); err != nil {
		return util.Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

// usageError prints the usage of the command and returns ExitUsageError.
func usageError(f *flag.FlagSet) subcommands.ExitStatus {
	f.Usage()
	return subcommands.ExitUsageError
}

// copyOut copies the contents of f to w, reading until f reports zero
// bytes.
func copyOut(w io.Writer, f *vfs.File) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

// copyIn writes everything read from r to f.
func copyIn(f *vfs.File, r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, rerr := r.Read(buf)
		for off := 0; off < n; {
			m, err := f.Write(buf[off:n])
			if err != nil {
				return total, err
			}
			off += m
			total += int64(m)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// readdirAll lists the directory at path.
func readdirAll(ioctx *vfs.Ioctx, path string) (*vfs.Vnode, []linux.Dirent, error) {
	f, err := ioctx.Open(nil, path, 0, linux.O_RDONLY|linux.O_DIRECTORY)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()
	ents, err := f.Readdir(0)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return f.Node(), ents, nil
}
