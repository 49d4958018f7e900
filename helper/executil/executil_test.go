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

//go:build !windows
// +build !windows

package executil

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutput(t *testing.T) {
	t.Parallel()
	out, err := Output(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestOutputFailureKeepsStderr(t *testing.T) {
	t.Parallel()
	_, err := Output(context.Background(), "sh", "-c", "echo noise >&2; echo 'ModuleNotFoundError: torch' >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "noise | ModuleNotFoundError: torch")
}

func TestOutputKillsProcessGroupOnTimeout(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Output(ctx, "sh", "-c", "sleep 30 & sleep 30")
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	assert.True(t, time.Since(start) < 10*time.Second, "command should have been killed")
}

func TestStderrTail(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", StderrTail("\n \n"))
	assert.Equal(t, "c | d | e | f | g", StderrTail("a\nb\nc\nd\ne\nf\ng\n"))
}
