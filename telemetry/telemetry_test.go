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

package telemetry

import (
	"testing"

	metrics "github.com/armon/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ystia/gpucheck/config"
)

func TestSetupInMemory(t *testing.T) {
	sink, shutdown, err := Setup(config.Telemetry{ServiceName: "node-check"})
	require.NoError(t, err)
	require.NotNil(t, sink)
	defer shutdown()

	metrics.IncrCounter([]string{"checks"}, 1)
	data := sink.Data()
	require.NotEmpty(t, data)
	_, ok := data[len(data)-1].Counters["node-check.checks"]
	assert.True(t, ok)
}

func TestSetupStatsd(t *testing.T) {
	sink, shutdown, err := Setup(config.Telemetry{StatsdAddress: "127.0.0.1:8125"})
	require.NoError(t, err)
	require.NotNil(t, sink)
	metrics.IncrCounter([]string{"checks"}, 1)
	shutdown()

	// Sinks are detached once shut down
	metrics.IncrCounter([]string{"checks"}, 1)
	for _, interval := range sink.Data() {
		if c, ok := interval.Counters["gpucheck.checks"]; ok {
			assert.Equal(t, 1, c.Count)
		}
	}
}
