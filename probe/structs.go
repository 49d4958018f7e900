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

package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Status is the overall outcome of a node probe
type Status int

const (
	// StatusUnknown is the status of a probe that did not complete
	StatusUnknown Status = iota
	// StatusSuccess means that every check passed
	StatusSuccess
	// StatusFailed means that at least one check failed
	StatusFailed
)

var statusNames = map[Status]string{
	StatusUnknown: "UNKNOWN",
	StatusSuccess: "SUCCESS",
	StatusFailed:  "FAILED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus parses a status name, ignoring case
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return StatusUnknown, errors.Errorf("%q is not a valid Status", name)
}

// MarshalJSON is used to represent this enumeration as a string instead of an int
func (s Status) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(s.String())
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

// UnmarshalJSON is used to read this enumeration from a string
func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	err := json.Unmarshal(b, &str)
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal Status as string")
	}
	*s, err = ParseStatus(str)
	return errors.Wrap(err, "failed to parse Status from JSON input")
}

// Category names a group of checks
type Category string

const (
	// CategoryEnvironment collects host and platform information
	CategoryEnvironment Category = "environment"
	// CategoryRuntimeAccelerator checks that the numerical runtime sees the accelerators
	CategoryRuntimeAccelerator Category = "runtime_accelerator"
	// CategoryModelFramework checks that the model library is importable
	CategoryModelFramework Category = "model_framework"
	// CategoryModelLoading loads the pretrained model on the accelerator
	CategoryModelLoading Category = "model_loading"
	// CategoryInference runs a forward pass on a synthetic input
	CategoryInference Category = "inference"
)

// Categories lists check categories in their execution order
var Categories = []Category{
	CategoryEnvironment,
	CategoryRuntimeAccelerator,
	CategoryModelFramework,
	CategoryModelLoading,
	CategoryInference,
}

// CategoryResult is the outcome of a check category
type CategoryResult struct {
	Passed bool `json:"passed"`
	// Skipped is set when the check was not attempted because a precondition failed
	Skipped    bool                   `json:"skipped,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// TestResult is the outcome of a node probe
type TestResult struct {
	Node       string                       `json:"node"`
	Hostname   string                       `json:"hostname"`
	Status     Status                       `json:"status"`
	Tests      map[Category]*CategoryResult `json:"tests"`
	Errors     []string                     `json:"errors"`
	RunID      string                       `json:"run_id,omitempty"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
}

// A Device is an accelerator seen by the numerical runtime
type Device struct {
	Index             int     `json:"index" mapstructure:"index"`
	Name              string  `json:"name" mapstructure:"name"`
	MemoryGB          float64 `json:"memory_gb" mapstructure:"memory_gb"`
	ComputeCapability string  `json:"compute_capability" mapstructure:"compute_capability"`
}

// Devices returns the accelerators recorded by the runtime_accelerator check
func (r *TestResult) Devices() ([]Device, error) {
	cr, ok := r.Tests[CategoryRuntimeAccelerator]
	if !ok || cr == nil || cr.Details == nil {
		return nil, nil
	}
	raw, ok := cr.Details["devices"]
	if !ok || raw == nil {
		return nil, nil
	}
	var devices []Device
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &devices,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create devices decoder")
	}
	return devices, errors.Wrap(decoder.Decode(raw), "malformed devices")
}

// toDetails converts a check info structure into a details map
func toDetails(info interface{}) map[string]interface{} {
	details := make(map[string]interface{})
	if err := mapstructure.Decode(info, &details); err != nil {
		return map[string]interface{}{"raw": info}
	}
	return details
}
