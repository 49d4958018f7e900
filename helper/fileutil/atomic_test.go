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

package fileutil

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "fileutil")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "summary.txt")

	err = WriteFileAtomic(path, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, "first")
		return err
	})
	require.NoError(t, err)
	content, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	// A failing writer leaves the previous content and no temporary file behind
	err = WriteFileAtomic(path, 0644, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)
	content, err = ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	t.Parallel()
	err := WriteFileAtomic(filepath.Join(os.TempDir(), "gpucheck-missing-dir", "x", "out.json"), 0644, func(w io.Writer) error {
		return nil
	})
	require.Error(t, err)
}
