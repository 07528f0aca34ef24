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

// Package config provides basic infrastructure to set configuration settings
// for vfsctl. Settings come from command line flags; the mount table they
// point to is loaded by LoadMountTable.
package config

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"kvfs.dev/kvfs/pkg/log"
)

// Config holds configuration that is not part of the mount table.
type Config struct {
	// Debug enables debug logging.
	Debug bool `flag:"debug"`

	// LogFormat is the log format: text, json or logrus.
	LogFormat string `flag:"log-format"`

	// DebugLog is the path of a file that receives all log output.
	DebugLog string `flag:"debug-log"`

	// AlsoLogToStderr allows logs to go to stderr in addition to DebugLog.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// Mounts is the path of the mount table. When empty, the namespace has
	// an empty memfs root with devfs on /dev and sysfs on /sys.
	Mounts string `flag:"mounts"`

	// UID and GID are the credentials used for path resolution.
	UID uint `flag:"uid"`
	GID uint `flag:"gid"`

	// MaxBlocks caps the number of blocks memfs mounts may hold at once.
	// Zero selects the allocator default.
	MaxBlocks uint `flag:"max-blocks"`

	// LockTimeout bounds how long opening an image waits for its lock.
	LockTimeout time.Duration `flag:"lock-timeout"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json", "logrus":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json', or 'logrus'", c.LogFormat)
	}
	if c.UID > math.MaxUint32 || c.GID > math.MaxUint32 {
		return fmt.Errorf("uid %d or gid %d out of range", c.UID, c.GID)
	}
	if c.MaxBlocks > math.MaxUint32 {
		return fmt.Errorf("max-blocks %d out of range", c.MaxBlocks)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock-timeout must not be negative: %v", c.LockTimeout)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		log.Infof("  %s: %v", st.Field(i).Name, obj.Field(i).Interface())
	}
}
