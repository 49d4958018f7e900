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

// Package nvidia collects NVIDIA driver information using the nvidia-smi tool.
package nvidia

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/ystia/gpucheck/helper/executil"
)

// DefaultSMIPath is the nvidia-smi executable looked up in the PATH
const DefaultSMIPath = "nvidia-smi"

var queryFields = []string{"index", "name", "driver_version", "memory.total"}

// GPU is a device as reported by nvidia-smi
type GPU struct {
	Index         int    `json:"index" mapstructure:"index"`
	Name          string `json:"name" mapstructure:"name"`
	DriverVersion string `json:"driver_version" mapstructure:"driver_version"`
	MemoryMiB     int    `json:"memory_total_mib" mapstructure:"memory_total_mib"`
}

// SMI queries nvidia-smi
type SMI struct {
	Path string
	run  func(ctx context.Context, name string, arg ...string) ([]byte, error)
}

// NewSMI returns an SMI using the given executable path, DefaultSMIPath if empty
func NewSMI(path string) *SMI {
	if path == "" {
		path = DefaultSMIPath
	}
	return &SMI{Path: path, run: executil.Output}
}

// GPUs lists the devices seen by the driver
func (s *SMI) GPUs(ctx context.Context) ([]GPU, error) {
	out, err := s.run(ctx, s.Path, "--query-gpu="+strings.Join(queryFields, ","), "--format=csv,noheader,nounits")
	if err != nil {
		return nil, errors.Wrap(err, "nvidia-smi query failed")
	}
	return ParseQueryOutput(string(out))
}

// DriverInfo implements probe.DriverProber
func (s *SMI) DriverInfo(ctx context.Context) (map[string]interface{}, error) {
	gpus, err := s.GPUs(ctx)
	if err != nil {
		return nil, err
	}
	info := map[string]interface{}{
		"gpu_count": len(gpus),
		"gpus":      gpus,
	}
	if len(gpus) > 0 {
		info["driver_version"] = gpus[0].DriverVersion
	}
	return info, nil
}

// ParseQueryOutput parses the csv output of a "nvidia-smi --query-gpu=index,name,driver_version,memory.total" command
func ParseQueryOutput(out string) ([]GPU, error) {
	r := csv.NewReader(strings.NewReader(out))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = len(queryFields)
	gpus := make([]GPU, 0)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "unexpected nvidia-smi output")
		}
		index, err := cast.ToIntE(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid GPU index %q", record[0])
		}
		gpu := GPU{Index: index, Name: strings.TrimSpace(record[1]), DriverVersion: strings.TrimSpace(record[2])}
		// Memory is "[N/A]" on some virtualized devices
		if mem, err := cast.ToIntE(strings.TrimSpace(record[3])); err == nil {
			gpu.MemoryMiB = mem
		}
		gpus = append(gpus, gpu)
	}
	return gpus, nil
}
