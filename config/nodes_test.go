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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNodes = `
nodes:
  - node_name: gpu01
    partition: gpu
  - node_name: gpu01-a100
    partition: gpu-a100
    resource_overrides:
      mem: 64G
      runtime: "01:00:00"
  - node_name: gpu02
    partition: gpu
    actual_host: gpu02.cluster.local
`

func TestParseNodes(t *testing.T) {
	t.Parallel()
	nodes, err := ParseNodes([]byte(testNodes), DefaultHostSuffixes, DynamicMap(DefaultResources))
	require.NoError(t, err)
	require.Equal(t, 3, nodes.Len())
	assert.Equal(t, []string{"gpu01", "gpu01-a100", "gpu02"}, nodes.Names())

	plain, ok := nodes.Get("gpu01")
	require.True(t, ok)
	assert.Equal(t, "gpu01", plain.ActualHost)

	aliased, ok := nodes.Get("gpu01-a100")
	require.True(t, ok)
	assert.Equal(t, "gpu01", aliased.ActualHost, "alias suffix should be stripped for dispatch")
	assert.Equal(t, "gpu01-a100", aliased.Name, "node key should be preserved")
	assert.NotEqual(t, ResultFileName(plain.Name), ResultFileName(aliased.Name))

	explicit, ok := nodes.Get("gpu02")
	require.True(t, ok)
	assert.Equal(t, "gpu02.cluster.local", explicit.ActualHost)

	res, err := aliased.Resources(DynamicMap(DefaultResources))
	require.NoError(t, err)
	assert.Equal(t, Resources{Memory: "64G", Runtime: "01:00:00", GPUs: 1}, res)

	_, ok = nodes.Get("gpu03")
	assert.False(t, ok)
}

func TestParseNodesErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		errMsgs []string
	}{
		{"MissingName", "nodes:\n  - partition: gpu\n", []string{"node #1: node_name is required"}},
		{"MissingPartition", "nodes:\n  - node_name: gpu01\n", []string{`node "gpu01": partition is required`}},
		{"DuplicateName", "nodes:\n  - {node_name: gpu01, partition: gpu}\n  - {node_name: gpu01, partition: gpu-a100}\n", []string{`node "gpu01": declared more than once`}},
		{"CollidingResultFile", "nodes:\n  - {node_name: gpu/01, partition: gpu}\n  - {node_name: gpu_01, partition: gpu}\n", []string{`result file "gpu_01_result.json" collides with node "gpu/01"`}},
		{"BadResources", "nodes:\n  - {node_name: gpu01, partition: gpu, resource_overrides: {mem: lots}}\n", []string{`node "gpu01": invalid mem resource`}},
		{"UnknownOption", "nodes:\n  - {node_name: gpu01, partition: gpu, queue: gpu}\n", []string{"failed to parse nodes list"}},
		{"Empty", "nodes: []\n", []string{"no node defined"}},
		{"SeveralErrors", "nodes:\n  - node_name: gpu01\n  - partition: gpu\n", []string{`node "gpu01": partition is required`, "node #2: node_name is required"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseNodes([]byte(tt.content), DefaultHostSuffixes, DynamicMap(DefaultResources))
			require.Error(t, err)
			for _, msg := range tt.errMsgs {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestLoadNodes(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "nodes")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "nodes.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(testNodes), 0644))
	nodes, err := LoadNodes(path, nil, nil)
	require.NoError(t, err)
	aliased, ok := nodes.Get("gpu01-a100")
	require.True(t, ok)
	assert.Equal(t, "gpu01-a100", aliased.ActualHost, "no suffix configured")

	_, err = LoadNodes(filepath.Join(dir, "missing.yaml"), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read nodes file")
}

func TestResolveActualHost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		suffixes []string
		want     string
	}{
		{"x-a100", []string{"-a100"}, "x"},
		{"x", []string{"-a100"}, "x"},
		{"x-v100", []string{"-a100"}, "x-v100"},
		{"x-v100", []string{"-a100", "-v100"}, "x"},
		{"-a100", []string{"-a100"}, "-a100"},
		{"x-a100", nil, "x-a100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveActualHost(tt.name, tt.suffixes), "node %q", tt.name)
	}
}

func TestResultFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gpu01-a100_result.json", ResultFileName("gpu01-a100"))
	assert.Equal(t, "gpu_01_result.json", ResultFileName("gpu/01"))
	assert.Equal(t, "gpu01-a100", NodeFromResultFile("/tmp/results/gpu01-a100_result.json"))
	assert.Equal(t, filepath.Join("res", "gpu01_result.json"), NodeSpec{Name: "gpu01"}.ResultFile("res"))
}
