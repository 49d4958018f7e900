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
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

var slurmMemRegexp = regexp.MustCompile(`^(\d+)\s*([KMGT]?)$`)

// ConvertToSlurmMemory converts a memory size into the notation expected by the Slurm --mem option.
//
// Sizes already in Slurm notation ("4096", "32G", "512 M") are kept as is, a unit-less value meaning MB.
// Human readable sizes ("64 GiB", "1.5GB") are converted into a whole number of MiB, rounded up.
func ConvertToSlurmMemory(size string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(size))
	if s == "" {
		return "", errors.New("empty memory size")
	}
	if m := slurmMemRegexp.FindStringSubmatch(s); m != nil {
		if strings.Trim(m[1], "0") == "" {
			return "", errors.Errorf("memory size %q must be positive", size)
		}
		unit := m[2]
		if unit == "" {
			unit = "M"
		}
		return m[1] + unit, nil
	}
	b, err := humanize.ParseBytes(size)
	if err != nil {
		return "", errors.Errorf("Can't convert size to bytes value: %v", err)
	}
	if b == 0 {
		return "", errors.Errorf("memory size %q must be positive", size)
	}
	return fmt.Sprintf("%dM", uint64(math.Ceil(float64(b)/humanize.MiByte))), nil
}

// FormatGB renders a size expressed in GB in a human readable form
func FormatGB(gb float64) string {
	if gb <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(math.Round(gb * humanize.GByte)))
}
