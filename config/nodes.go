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
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/ystia/gpucheck/helper/pathutil"
)

// ResultFileSuffix is the suffix of per-node result files
const ResultFileSuffix = "_result.json"

// A NodeSpec identifies one probe target
type NodeSpec struct {
	// Name is the unique key of the node
	Name string `yaml:"node_name" json:"node_name"`
	// Partition is the resource manager queue used to reach the node
	Partition string `yaml:"partition" json:"partition"`
	// ActualHost is the real host name. Defaults to Name without its alias suffix.
	ActualHost        string     `yaml:"actual_host,omitempty" json:"actual_host,omitempty"`
	ResourceOverrides DynamicMap `yaml:"resource_overrides,omitempty" json:"resource_overrides,omitempty"`
}

// Resources returns the node resources: defaults overridden by the node specific ones
func (ns NodeSpec) Resources(defaults DynamicMap) (Resources, error) {
	return DecodeResources(defaults.Merge(ns.ResourceOverrides))
}

// ResultFile returns the path of the node result file within the given directory
func (ns NodeSpec) ResultFile(dir string) string {
	return filepath.Join(dir, ResultFileName(ns.Name))
}

type nodesFile struct {
	Nodes []NodeSpec `yaml:"nodes"`
}

// Nodes is a validated list of NodeSpec
type Nodes struct {
	specs []NodeSpec
	index map[string]int
}

// List returns node specs in their configuration order
func (n *Nodes) List() []NodeSpec {
	res := make([]NodeSpec, len(n.specs))
	copy(res, n.specs)
	return res
}

// Names returns node keys in their configuration order
func (n *Nodes) Names() []string {
	res := make([]string, len(n.specs))
	for i, ns := range n.specs {
		res[i] = ns.Name
	}
	return res
}

// Get returns the NodeSpec of the given key
func (n *Nodes) Get(name string) (NodeSpec, bool) {
	i, ok := n.index[name]
	if !ok {
		return NodeSpec{}, false
	}
	return n.specs[i], true
}

// Len returns the number of configured nodes
func (n *Nodes) Len() int {
	return len(n.specs)
}

// LoadNodes reads and validates a nodes list file
func LoadNodes(path string, hostSuffixes []string, defaults DynamicMap) (*Nodes, error) {
	p, err := pathutil.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read nodes file %q", p)
	}
	nodes, err := ParseNodes(data, hostSuffixes, defaults)
	return nodes, errors.Wrapf(err, "invalid nodes file %q", p)
}

// ParseNodes parses and validates a nodes list.
//
// Every problem found is reported, a list holding colliding keys or result files is rejected.
func ParseNodes(data []byte, hostSuffixes []string, defaults DynamicMap) (*Nodes, error) {
	var nf nodesFile
	if err := yaml.UnmarshalStrict(data, &nf); err != nil {
		return nil, errors.Wrap(err, "failed to parse nodes list")
	}

	var errs *multierror.Error
	nodes := &Nodes{index: make(map[string]int, len(nf.Nodes))}
	resultFiles := make(map[string]string, len(nf.Nodes))
	for i, ns := range nf.Nodes {
		ns.Name = strings.TrimSpace(ns.Name)
		ns.Partition = strings.TrimSpace(ns.Partition)
		id := fmt.Sprintf("node #%d", i+1)
		if ns.Name == "" {
			errs = multierror.Append(errs, errors.Errorf("%s: node_name is required", id))
			continue
		}
		id = fmt.Sprintf("node %q", ns.Name)
		if ns.Partition == "" {
			errs = multierror.Append(errs, errors.Errorf("%s: partition is required", id))
		}
		if _, ok := nodes.index[ns.Name]; ok {
			errs = multierror.Append(errs, errors.Errorf("%s: declared more than once", id))
			continue
		}
		rf := ResultFileName(ns.Name)
		if other, ok := resultFiles[rf]; ok {
			errs = multierror.Append(errs, errors.Errorf("%s: result file %q collides with node %q", id, rf, other))
			continue
		}
		resultFiles[rf] = ns.Name
		if ns.ActualHost == "" {
			ns.ActualHost = ResolveActualHost(ns.Name, hostSuffixes)
		}
		if _, err := ns.Resources(defaults); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, id))
		}
		nodes.index[ns.Name] = len(nodes.specs)
		nodes.specs = append(nodes.specs, ns)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if len(nodes.specs) == 0 {
		return nil, errors.New("no node defined")
	}
	return nodes, nil
}

// ResolveActualHost returns the host name targeted by a node key.
//
// A key ending with one of the given suffixes (eg. "gpu01-a100") targets the host without it ("gpu01").
func ResolveActualHost(name string, suffixes []string) string {
	for _, suffix := range suffixes {
		if suffix != "" && strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ResultFileName returns the base name of the result file of a node
func ResultFileName(node string) string {
	return unsafeFileChars.ReplaceAllString(node, "_") + ResultFileSuffix
}

// NodeFromResultFile guesses a node key from a result file path
func NodeFromResultFile(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ResultFileSuffix)
}
