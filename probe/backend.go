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

import "context"

// A Backend runs the runtime, framework and model checks on the local host.
//
// Every method should honor the context deadline, it is the only guard against a stuck accelerator call.
type Backend interface {
	// Environment returns information about the runtime used by the checks (interpreter path, version...)
	Environment(ctx context.Context) (map[string]interface{}, error)
	// Accelerator queries the numerical runtime accelerator backend
	Accelerator(ctx context.Context) (*AcceleratorInfo, error)
	// Framework imports the model library
	Framework(ctx context.Context) (*FrameworkInfo, error)
	// LoadModel loads the pretrained model onto the accelerator
	LoadModel(ctx context.Context) (*ModelInfo, error)
	// Infer runs a forward pass of the model on a synthetic input
	Infer(ctx context.Context) (*InferenceInfo, error)
}

// A DriverProber collects accelerator driver information
type DriverProber interface {
	DriverInfo(ctx context.Context) (map[string]interface{}, error)
}

// AcceleratorInfo is reported by the numerical runtime
type AcceleratorInfo struct {
	RuntimeVersion string   `json:"version" mapstructure:"version"`
	CUDAVersion    string   `json:"cuda_compiled_version" mapstructure:"cuda_compiled_version"`
	Available      bool     `json:"cuda_available" mapstructure:"cuda_available"`
	DeviceCount    int      `json:"device_count" mapstructure:"device_count"`
	Devices        []Device `json:"devices" mapstructure:"devices"`
}

// FrameworkInfo describes the imported model library
type FrameworkInfo struct {
	Name    string `json:"name" mapstructure:"name"`
	Version string `json:"version" mapstructure:"version"`
	Path    string `json:"path,omitempty" mapstructure:"path"`
}

// ModelInfo describes a loaded model
type ModelInfo struct {
	Name            string  `json:"name" mapstructure:"name"`
	Device          string  `json:"device" mapstructure:"device"`
	ParameterDevice string  `json:"parameter_device,omitempty" mapstructure:"parameter_device"`
	OnAccelerator   bool    `json:"on_accelerator" mapstructure:"on_accelerator"`
	LoadSeconds     float64 `json:"load_seconds" mapstructure:"load_seconds"`
}

// InferenceInfo describes the outcome of a forward pass
type InferenceInfo struct {
	InputShape  []int   `json:"input_shape" mapstructure:"input_shape"`
	OutputShape []int   `json:"output_shape" mapstructure:"output_shape"`
	MasksFound  int     `json:"num_masks_found" mapstructure:"num_masks_found"`
	Seconds     float64 `json:"inference_seconds" mapstructure:"inference_seconds"`
}
