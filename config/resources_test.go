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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResources(t *testing.T) {
	t.Parallel()
	res, err := DecodeResources(DynamicMap{"mem": 4096, "runtime": "90", "gpus": "2", "cpus": 8, "gres": "gpu:a100:2", "qos": "high"})
	require.NoError(t, err)
	assert.Equal(t, Resources{
		Memory:  "4096M",
		Runtime: "01:30:00",
		GPUs:    2,
		CPUs:    8,
		Gres:    "gpu:a100:2",
		Extra:   map[string]interface{}{"qos": "high"},
	}, res)

	res, err = DecodeResources(nil)
	require.NoError(t, err)
	assert.Equal(t, Resources{}, res)

	_, err = DecodeResources(DynamicMap{"gpus": -1})
	assert.Error(t, err)
	_, err = DecodeResources(DynamicMap{"runtime": "forever"})
	assert.Error(t, err)
	_, err = DecodeResources(DynamicMap{"gpus": "many"})
	assert.Error(t, err)
}

func TestParseRuntime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30m", 30 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"45", 45 * time.Minute, false},
		{"02:00:00", 2 * time.Hour, false},
		{"1-00:30:00", 24*time.Hour + 30*time.Minute, false},
		{"00:61:00", 0, true},
		{"0", 0, true},
		{"-5m", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRuntime(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		assert.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestFormatSlurmTime(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "00:30:00", FormatSlurmTime(30*time.Minute))
	assert.Equal(t, "00:00:02", FormatSlurmTime(1500*time.Millisecond))
	assert.Equal(t, "2-01:00:05", FormatSlurmTime(49*time.Hour+5*time.Second))
}
