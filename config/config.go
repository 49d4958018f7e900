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

// Package config defines configuration structures
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// DefaultNodesFile is the default path of the nodes list file
const DefaultNodesFile = "nodes.yaml"

// DefaultResultsDir is the default directory where per-node results are written
const DefaultResultsDir = "results"

// DefaultPythonInterpreter is the default interpreter used to run runtime checks
const DefaultPythonInterpreter = "python3"

// DefaultModelFramework is the default python module of the model library
const DefaultModelFramework = "cellpose"

// DefaultModelName is the default pretrained model to load
const DefaultModelName = "cpsam"

// DefaultImageSize is the default edge size in pixels of the synthetic inference image
const DefaultImageSize = 256

// DefaultCheckTimeout is the default maximum duration of a single probe check
const DefaultCheckTimeout = 5 * time.Minute

// DefaultHostSuffixes are the node name suffixes stripped to get the actual host name
var DefaultHostSuffixes = []string{"-a100"}

// DefaultResources are the job resources used when a node does not override them
var DefaultResources = map[string]interface{}{
	"mem":     "32G",
	"runtime": "30m",
	"gpus":    1,
}

// Configuration holds config information filled by Cobra and Viper (see commands package for more information)
type Configuration struct {
	NodesFile         string        `mapstructure:"nodes_file"`
	ResultsDir        string        `mapstructure:"results_dir"`
	PythonInterpreter string        `mapstructure:"python_interpreter"`
	CheckTimeout      time.Duration `mapstructure:"check_timeout"`
	Model             Model         `mapstructure:"model"`
	HostSuffixes      []string      `mapstructure:"host_suffixes"`
	DefaultResources  DynamicMap    `mapstructure:"default_resources"`
	Telemetry         Telemetry     `mapstructure:"telemetry"`
}

// Model describes the model exercised by the probe
type Model struct {
	// Framework is the python module name of the model library
	Framework string `mapstructure:"framework"`
	// Name of the pretrained model
	Name string `mapstructure:"name"`
	// MinVersion is an optional minimum framework version
	MinVersion string `mapstructure:"min_version"`
	ImageSize  int    `mapstructure:"image_size"`
}

// Telemetry holds the configuration for the telemetry service
type Telemetry struct {
	ServiceName     string `mapstructure:"service_name"`
	StatsdAddress   string `mapstructure:"statsd_address"`
	StatsiteAddress string `mapstructure:"statsite_address"`
}

// DynamicMap allows to store configuration parameters that are not known in advance.
//
// It has methods to automatically cast data to the desired type.
type DynamicMap map[string]interface{}

// NewDynamicMapWithPayload returns a DynamicMap holding a copy of the given payload
func NewDynamicMapWithPayload(payload map[string]interface{}) DynamicMap {
	dm := make(DynamicMap, len(payload))
	for k, v := range payload {
		dm[k] = v
	}
	return dm
}

// Get returns the raw value of a given configuration key
func (dm DynamicMap) Get(name string) interface{} {
	return dm[name]
}

// IsSet checks if a given configuration key is set
func (dm DynamicMap) IsSet(name string) bool {
	_, ok := dm[name]
	return ok
}

// Keys returns the sorted list of defined keys
func (dm DynamicMap) Keys() []string {
	keys := make([]string, 0, len(dm))
	for k := range dm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString returns the value of the given key casted into a string.
// An empty string is returned if not found.
func (dm DynamicMap) GetString(name string) string {
	return cast.ToString(dm[name])
}

// GetStringOrDefault returns the value of the given key casted into a string.
// The given default value is returned if not found.
func (dm DynamicMap) GetStringOrDefault(name, defaultValue string) string {
	if res := dm.GetString(name); res != "" {
		return res
	}
	return defaultValue
}

// GetBool returns the value of the given key casted into a boolean.
// False is returned if not found.
func (dm DynamicMap) GetBool(name string) bool {
	return cast.ToBool(dm[name])
}

// GetInt returns the value of the given key casted into an int.
// 0 is returned if not found.
func (dm DynamicMap) GetInt(name string) int {
	return cast.ToInt(dm[name])
}

// GetStringSlice returns the value of the given key casted into a slice of string.
// If the corresponding raw value is a string, it is  splited on comas.
// A nil or empty slice is returned if not found.
func (dm DynamicMap) GetStringSlice(name string) []string {
	val := dm[name]
	switch v := val.(type) {
	case string:
		return strings.Split(v, ",")
	default:
		return cast.ToStringSlice(dm[name])
	}
}

// Merge returns a new DynamicMap holding the values of dm overridden by those of other
func (dm DynamicMap) Merge(other DynamicMap) DynamicMap {
	res := NewDynamicMapWithPayload(dm)
	for k, v := range other {
		res[k] = v
	}
	return res
}
