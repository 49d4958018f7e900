// Copyright 2018 Bull S.A.S. Atos Technologies - Bull, Rue Jean Jaures, B.P.68, 78340, Les Clayes-sous-Bois, France.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executil

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
)

// maxStderrLines is the number of trailing stderr lines kept in errors
const maxStderrLines = 5

// Output runs a command and returns its standard output.
//
// On failure, the returned error holds the last lines written on the standard error.
func Output(ctx context.Context, name string, arg ...string) ([]byte, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := Command(ctx, name, arg...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if tail := StderrTail(stderr.String()); tail != "" {
			return stdout.Bytes(), errors.Wrap(err, tail)
		}
		return stdout.Bytes(), errors.Wrapf(err, "command %q failed", name)
	}
	return stdout.Bytes(), nil
}

// StderrTail returns the last non-empty lines of a command error output joined by " | "
func StderrTail(stderr string) string {
	var lines []string
	for _, l := range strings.Split(stderr, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > maxStderrLines {
		lines = lines[len(lines)-maxStderrLines:]
	}
	return strings.Join(lines, " | ")
}
