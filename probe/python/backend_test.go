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

package python

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/probe"
)

type recordedCall struct {
	name string
	args []string
}

func stubBackend(output string, err error, calls *[]recordedCall) *Backend {
	b := NewBackend(config.Configuration{})
	b.run = func(ctx context.Context, name string, arg ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: arg})
		return []byte(output), err
	}
	return b
}

func TestNewBackendDefaults(t *testing.T) {
	t.Parallel()
	b := NewBackend(config.Configuration{})
	assert.Equal(t, "python3", b.Interpreter)
	assert.Equal(t, "cellpose", b.Module)
	assert.Equal(t, "cpsam", b.Model)
	assert.Equal(t, 256, b.ImageSize)

	b = NewBackend(config.Configuration{PythonInterpreter: "/opt/venv/bin/python", Model: config.Model{Framework: "cellpose_plus", Name: "cpsam_v2", ImageSize: 512}})
	assert.Equal(t, "/opt/venv/bin/python", b.Interpreter)
	assert.Equal(t, "cellpose_plus", b.Module)
	assert.Equal(t, 512, b.ImageSize)
}

func TestAccelerator(t *testing.T) {
	t.Parallel()
	var calls []recordedCall
	out := "Some warning printed by torch\n" +
		`{"version": "2.3.1", "cuda_compiled_version": "12.1", "cuda_available": true, "device_count": 2, "devices": [` +
		`{"index": 0, "name": "NVIDIA A100-SXM4-40GB", "memory_gb": 42.41, "compute_capability": "8.0"},` +
		`{"index": 1, "name": "NVIDIA A100-SXM4-40GB", "memory_gb": 42.41, "compute_capability": "8.0"}]}` + "\n"
	b := stubBackend(out, nil, &calls)

	info, err := b.Accelerator(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Available)
	assert.Equal(t, 2, info.DeviceCount)
	require.Len(t, info.Devices, 2)
	assert.Equal(t, probe.Device{Index: 1, Name: "NVIDIA A100-SXM4-40GB", MemoryGB: 42.41, ComputeCapability: "8.0"}, info.Devices[1])

	require.Len(t, calls, 1)
	assert.Equal(t, "python3", calls[0].name)
	assert.Equal(t, "-c", calls[0].args[0])
	assert.Equal(t, acceleratorScript, calls[0].args[1])
}

func TestScriptArguments(t *testing.T) {
	t.Parallel()
	var calls []recordedCall
	b := stubBackend(`{"name": "cellpose", "version": "4.0.1"}`, nil, &calls)

	fw, err := b.Framework(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.0.1", fw.Version)
	_, err = b.LoadModel(context.Background())
	require.NoError(t, err)
	_, err = b.Infer(context.Background())
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Equal(t, []string{"cellpose"}, calls[0].args[2:])
	assert.Equal(t, []string{"cellpose", "cpsam"}, calls[1].args[2:])
	assert.Equal(t, []string{"cellpose", "cpsam", "256"}, calls[2].args[2:])
}

func TestConfiguredModuleIsUsedByEveryModelScript(t *testing.T) {
	t.Parallel()
	var calls []recordedCall
	b := stubBackend(`{"name": "cellpose_plus", "version": "1.0.0"}`, nil, &calls)
	b.Module = "cellpose_plus"
	b.Model = "cpsam_v2"

	_, err := b.Framework(context.Background())
	require.NoError(t, err)
	_, err = b.LoadModel(context.Background())
	require.NoError(t, err)
	_, err = b.Infer(context.Background())
	require.NoError(t, err)

	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, "cellpose_plus", c.args[2])
	}
	assert.Equal(t, modelLoadingScript, calls[1].args[1])
	assert.Equal(t, inferenceScript, calls[2].args[1])
	assert.NotContains(t, modelLoadingScript, "from cellpose import")
	assert.NotContains(t, inferenceScript, "from cellpose import")
}

func TestExecErrors(t *testing.T) {
	t.Parallel()
	var calls []recordedCall
	b := stubBackend("", errors.New("ModuleNotFoundError: No module named 'torch'"), &calls)
	_, err := b.Accelerator(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No module named 'torch'")

	b = stubBackend("nothing useful\n", nil, &calls)
	_, err = b.Accelerator(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result found")

	b = stubBackend(`{"cuda_available": "maybe"}`, nil, &calls)
	_, err = b.Accelerator(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed interpreter output")
}

func TestLastJSONLine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `{"a": 1}`, string(lastJSONLine([]byte("{\"a\": 0}\nlog line\n  {\"a\": 1}  \n\n"))))
	assert.Nil(t, lastJSONLine([]byte("no json here\n{")))
	assert.Nil(t, lastJSONLine(nil))
}

// A fake interpreter ignoring its arguments exercises the actual process execution
func TestEnvironmentWithFakeInterpreter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script interpreter")
	}
	t.Parallel()
	dir, err := ioutil.TempDir("", "python")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	interpreter := filepath.Join(dir, "python")
	script := "#!/bin/sh\necho 'starting'\necho '{\"python_version\": \"3.11.4\", \"python_executable\": \"/usr/bin/python3\"}'\n"
	require.NoError(t, ioutil.WriteFile(interpreter, []byte(script), 0755))

	b := NewBackend(config.Configuration{PythonInterpreter: interpreter})
	env, err := b.Environment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.11.4", env["python_version"])

	b = NewBackend(config.Configuration{PythonInterpreter: filepath.Join(dir, "missing")})
	_, err = b.Environment(context.Background())
	assert.Error(t, err)
}
