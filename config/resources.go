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
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/ystia/gpucheck/helper/sizeutil"
)

// Resources are the resources requested to the resource manager for a probe job
type Resources struct {
	// Memory in Slurm notation (eg. 32G)
	Memory string `mapstructure:"mem" json:"mem,omitempty" yaml:"mem,omitempty"`
	// Runtime is the wall-clock limit in Slurm notation ([D-]HH:MM:SS)
	Runtime string `mapstructure:"runtime" json:"runtime,omitempty" yaml:"runtime,omitempty"`
	GPUs    int    `mapstructure:"gpus" json:"gpus,omitempty" yaml:"gpus,omitempty"`
	CPUs    int    `mapstructure:"cpus" json:"cpus,omitempty" yaml:"cpus,omitempty"`
	// Gres overrides the generic resource request built from GPUs
	Gres string `mapstructure:"gres" json:"gres,omitempty" yaml:"gres,omitempty"`
	// Extra holds options that are passed verbatim to the resource manager
	Extra map[string]interface{} `mapstructure:",remain" json:"extra,omitempty" yaml:"extra,omitempty"`
}

// DecodeResources decodes a resources map into a Resources structure.
//
// Memory and runtime values are normalized into the resource manager notation.
func DecodeResources(dm DynamicMap) (Resources, error) {
	var res Resources
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &res,
	})
	if err != nil {
		return res, errors.Wrap(err, "failed to create resources decoder")
	}
	if err = decoder.Decode(map[string]interface{}(dm)); err != nil {
		return res, errors.Wrap(err, "invalid resources")
	}
	if res.Memory != "" {
		res.Memory, err = sizeutil.ConvertToSlurmMemory(res.Memory)
		if err != nil {
			return res, errors.Wrap(err, "invalid mem resource")
		}
	}
	if res.Runtime != "" {
		d, err := ParseRuntime(res.Runtime)
		if err != nil {
			return res, errors.Wrap(err, "invalid runtime resource")
		}
		res.Runtime = FormatSlurmTime(d)
	}
	if res.GPUs < 0 {
		return res, errors.Errorf("invalid gpus resource %d: must not be negative", res.GPUs)
	}
	if res.CPUs < 0 {
		return res, errors.Errorf("invalid cpus resource %d: must not be negative", res.CPUs)
	}
	return res, nil
}

var slurmTimeRegexp = regexp.MustCompile(`^(?:(\d+)-)?(\d+):(\d{1,2}):(\d{1,2})$`)

// ParseRuntime parses a wall-clock limit.
//
// Go durations ("1h30m"), plain minutes ("90") and Slurm time notations
// ("HH:MM:SS", "D-HH:MM:SS") are accepted.
func ParseRuntime(s string) (time.Duration, error) {
	var d time.Duration
	if m := slurmTimeRegexp.FindStringSubmatch(s); m != nil {
		var days int
		if m[1] != "" {
			days, _ = strconv.Atoi(m[1])
		}
		h, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		sec, _ := strconv.Atoi(m[4])
		if mins > 59 || sec > 59 {
			return 0, errors.Errorf("malformed time %q", s)
		}
		d = time.Duration(days)*24*time.Hour + time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(sec)*time.Second
	} else if minutes, err := strconv.Atoi(s); err == nil {
		d = time.Duration(minutes) * time.Minute
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, errors.Errorf("malformed time %q", s)
		}
	}
	if d <= 0 {
		return 0, errors.Errorf("time %q must be positive", s)
	}
	return d, nil
}

// FormatSlurmTime renders a duration as [D-]HH:MM:SS, rounded up to the second
func FormatSlurmTime(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	days := secs / 86400
	secs %= 86400
	hms := fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
	if days > 0 {
		return fmt.Sprintf("%d-%s", days, hms)
	}
	return hms
}
