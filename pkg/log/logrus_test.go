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

package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogrusEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Debug, Emitter: NewLogrusEmitter(&Writer{Next: &buf})}
	l.Warningf("hello %s", "world")
	l.Debugf("details")

	out := buf.String()
	for _, want := range []string{
		"level=warning",
		`msg="hello world"`,
		"level=debug",
		"msg=details",
		"logrus_test.go:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("logrus output %q does not contain %q", out, want)
		}
	}
}
