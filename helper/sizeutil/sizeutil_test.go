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

package sizeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToSlurmMemory(t *testing.T) {
	var testData = []struct {
		test          string
		inputSize     string
		expectedSize  string
		expectedError bool
	}{
		{"plainMB", "4096", "4096M", false},
		{"slurmG", "32G", "32G", false},
		{"slurmLower", "32g", "32G", false},
		{"slurmSpaced", "512 M", "512M", false},
		{"humanGiB", "2 GiB", "2048M", false},
		{"humanGB", "1GB", "954M", false},
		{"zero", "0", "", true},
		{"empty", "  ", "", true},
		{"error", "1 deca", "", true},
	}
	for _, tt := range testData {
		t.Run(tt.test, func(t *testing.T) {
			s, err := ConvertToSlurmMemory(tt.inputSize)
			if !tt.expectedError {
				assert.Nil(t, err)
				assert.Equal(t, tt.expectedSize, s)
			} else {
				assert.Error(t, err, "Expected an error")
			}
		})
	}
}

func TestFormatGB(t *testing.T) {
	assert.Equal(t, "40 GB", FormatGB(40))
	assert.Equal(t, "85 GB", FormatGB(85.05))
	assert.Equal(t, "0 B", FormatGB(0))
}
