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
	"bufio"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFileAtomic writes a file using the given write function.
//
// Data is written into a temporary file of the target directory which is renamed once complete,
// so readers see either the previous content or the new one. The temporary file is removed on any failure.
func WriteFileAtomic(path string, perm os.FileMode, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file for %q", path)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}
	if err = bw.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrapf(err, "failed to sync %q", path)
	}
	if err = tmp.Chmod(perm); err != nil {
		return errors.Wrapf(err, "failed to set permissions of %q", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %q", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move %q into place", path)
	}
	return nil
}
