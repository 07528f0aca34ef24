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
	"fmt"
	"strconv"
	"strings"
	"time"

	"kvfs.dev/kvfs/pkg/errors/linuxerr"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/pkg/sentry/fsimpl/sysfs"
)

// text adapts a function rendering a whole attribute to a sysfs.ReadFunc.
func text(render func() string) sysfs.ReadFunc {
	return func(buf []byte) (int, error) {
		return copy(buf, render()), nil
	}
}

func logLevelName() string {
	switch {
	case log.IsLogging(log.Debug):
		return "debug"
	case log.IsLogging(log.Info):
		return "info"
	default:
		return "warning"
	}
}

func parseLogLevel(s string) (log.Level, error) {
	switch s = strings.TrimSpace(s); strings.ToLower(s) {
	case "debug":
		return log.Debug, nil
	case "info":
		return log.Info, nil
	case "warning":
		return log.Warning, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || log.Level(n) > log.Debug {
		return 0, linuxerr.EINVAL
	}
	return log.Level(n), nil
}

func writeLogLevel(buf []byte) (int, error) {
	level, err := parseLogLevel(string(buf))
	if err != nil {
		return 0, err
	}
	log.SetLevel(level)
	log.Infof("Log level set to %v", level)
	return len(buf), nil
}

// newSysfs returns a sysfs describing the namespace:
//
//	kernel/log_level     global log level, writable
//	kernel/uptime        seconds since the namespace was created
//	fs/mounts            one line per mount
//	fs/memfs/blocks      allocator counters shared by memfs mounts
func (ns *Namespace) newSysfs() *sysfs.Filesystem {
	fs := sysfs.New()
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("populating sysfs: %v", err))
		}
	}

	kernel, err := fs.AddDirectory(nil, "kernel")
	must(err)
	_, err = fs.AddReadWriteNode(kernel, "log_level", text(func() string {
		return logLevelName() + "\n"
	}), writeLogLevel)
	must(err)
	_, err = fs.AddReadNode(kernel, "uptime", text(func() string {
		return fmt.Sprintf("%.2f\n", time.Since(ns.start).Seconds())
	}))
	must(err)

	fsDir, err := fs.AddDirectory(nil, "fs")
	must(err)
	_, err = fs.AddReadNode(fsDir, "mounts", text(ns.mountsText))
	must(err)
	memfsDir, err := fs.AddDirectory(fsDir, "memfs")
	must(err)
	_, err = fs.AddReadNode(memfsDir, "blocks", text(func() string {
		s := ns.arena.Stats()
		return fmt.Sprintf("inuse %d\nlimit %d\nallocs %d\nfrees %d\n", s.InUse, s.Limit, s.Allocs, s.Frees)
	}))
	must(err)
	return fs
}

func (ns *Namespace) mountsText() string {
	var b strings.Builder
	for _, mnt := range ns.mounts {
		source := mnt.Source
		if source == "" {
			source = "none"
		}
		opt := "rw"
		if mnt.IsReadOnly() {
			opt = "ro"
		}
		fmt.Fprintf(&b, "%s %s %s %s\n", source, mnt.Path, mnt.Type, opt)
	}
	return b.String()
}
