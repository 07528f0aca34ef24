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

// Package util groups helpers shared by vfsctl commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"kvfs.dev/kvfs/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by tooling that expects JSON lines.
var ErrorLogger io.Writer

// Stderr is where user facing messages are printed.
var Stderr io.Writer = os.Stderr

type jsonError struct {
	Msg   string    `json:"msg"`
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}

func writeError(w io.Writer, err error) {
	if w == nil {
		return
	}
	b, jerr := json.Marshal(jsonError{Msg: err.Error(), Level: "error", Time: time.Now()})
	if jerr != nil {
		return
	}
	fmt.Fprintln(w, string(b))
}

// Fatalf logs to stderr and exits with a failure status code.
func Fatalf(format string, args ...any) {
	err := fmt.Errorf(format, args...)
	log.Warningf("FATAL ERROR: %v", err)
	writeError(ErrorLogger, err)
	fmt.Fprintf(Stderr, "vfsctl: %v\n", err)
	os.Exit(128)
}

// Errorf logs an error to the error log and stderr, and returns
// subcommands.ExitFailure.
func Errorf(format string, args ...any) subcommands.ExitStatus {
	err := fmt.Errorf(format, args...)
	log.Warningf("%v", err)
	writeError(ErrorLogger, err)
	fmt.Fprintf(Stderr, "vfsctl: %v\n", err)
	return subcommands.ExitFailure
}

// Infof writes an informational message to the log and to stderr.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
	fmt.Fprintf(Stderr, format+"\n", args...)
}
