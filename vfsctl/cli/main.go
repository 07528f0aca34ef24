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

// Package cli is the main entrypoint for vfsctl.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/subcommands"
	"kvfs.dev/kvfs/pkg/log"
	"kvfs.dev/kvfs/vfsctl/cmd"
	"kvfs.dev/kvfs/vfsctl/cmd/util"
	"kvfs.dev/kvfs/vfsctl/config"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	subcommand := flag.CommandLine.Arg(0)

	// Set up logging.
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	var emitters log.MultiEmitter
	if conf.DebugLog != "" {
		f, err := debugLogFile(conf.DebugLog, subcommand)
		if err != nil {
			util.Fatalf("error opening debug log file in %q: %v", conf.DebugLog, err)
		}
		util.ErrorLogger = f
		emitters = append(emitters, newEmitter(conf.LogFormat, subcommand, f))
	}
	if conf.AlsoLogToStderr || (conf.DebugLog == "" && conf.Debug) {
		emitters = append(emitters, newEmitter(conf.LogFormat, subcommand, os.Stderr))
	}

	switch len(emitters) {
	case 0:
		// Command output goes to stdout; without a debug log, only warnings
		// reach stderr.
		log.SetTarget(newEmitter(conf.LogFormat, subcommand, os.Stderr))
		log.SetLevel(log.Warning)
	case 1:
		// Use the singular emitter to avoid needless
		// `for` loop overhead when logging to a single place.
		log.SetTarget(emitters[0])
	default:
		log.SetTarget(&emitters)
	}

	log.Infof("***************************")
	log.Infof("vfsctl %s, %s/%s, PID %d, UID %d, GID %d", runtime.Version(), runtime.GOOS, runtime.GOARCH, os.Getpid(), os.Getuid(), os.Getgid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof("***************************")

	// Call the subcommand and pass in the configuration.
	status := subcommands.Execute(context.Background(), conf)
	if status != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", status)
	}
	os.Exit(int(status))
}

// forEachCmd invokes the passed callback for each command supported by vfsctl.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")

	const inspectGroup = "inspect"
	cb(new(cmd.Ls), inspectGroup)
	cb(new(cmd.Cat), inspectGroup)
	cb(new(cmd.Stat), inspectGroup)
	cb(new(cmd.Tree), inspectGroup)

	const modifyGroup = "modify"
	cb(new(cmd.Write), modifyGroup)
	cb(new(cmd.Mkdir), modifyGroup)
	cb(new(cmd.Rm), modifyGroup)
	cb(new(cmd.Export), modifyGroup)
}

// debugLogFile opens the debug log. A name ending in "/" is a directory in
// which a file named after the command is created.
func debugLogFile(name, command string) (*os.File, error) {
	if strings.HasSuffix(name, "/") {
		if err := os.MkdirAll(name, 0755); err != nil {
			return nil, err
		}
		if command == "" {
			command = "vfsctl"
		}
		name = filepath.Join(name, "vfsctl."+command+".log")
	}
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

// newEmitter returns an emitter writing format to logFile. JSON records are
// tagged with the command being run.
func newEmitter(format, command string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Writer: &log.Writer{Next: logFile}}
	case "json":
		e := log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
		if command != "" {
			e.Fields = map[string]string{"command": command}
		}
		return e
	case "logrus":
		return log.NewLogrusEmitter(&log.Writer{Next: logFile})
	}
	util.Fatalf("invalid log format %q, must be 'text', 'json', or 'logrus'", format)
	panic("unreachable")
}
