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

// Package plan renders the job graph input consumed by the external workflow executor.
//
// It only describes jobs: one probe per configured node and a summary job depending on all of them.
// Submission, scheduling and retries are left to the executor.
package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/tmc/dot"
	"gopkg.in/yaml.v2"

	"github.com/ystia/gpucheck/config"
)

const (
	// DefaultExecutable is the command name used in job command lines
	DefaultExecutable = "gpucheck"
	// DefaultSummaryFile is the summary file name within the results directory
	DefaultSummaryFile = "summary.txt"
	jobNamePrefix      = "gpucheck-"
	summaryJobName     = jobNamePrefix + "summary"
)

// Format is a plan output format
type Format string

const (
	// FormatJSON renders plans as indented JSON
	FormatJSON Format = "json"
	// FormatYAML renders plans as YAML
	FormatYAML Format = "yaml"
	// FormatDOT renders the plan jobs graph in the GraphViz Dot format
	FormatDOT Format = "dot"
)

// ParseFormat parses a plan format name, ignoring case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatDOT:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "graphviz":
		return FormatDOT, nil
	}
	return "", errors.Errorf("unsupported plan format %q, expecting one of json, yaml, dot", s)
}

// Options of a plan
type Options struct {
	ResultsDir  string
	SummaryFile string
	Executable  string
	Defaults    config.DynamicMap
}

// A Job probes a single node
type Job struct {
	Name      string           `json:"name" yaml:"name"`
	Node      string           `json:"node" yaml:"node"`
	Partition string           `json:"partition" yaml:"partition"`
	Host      string           `json:"host" yaml:"host"`
	Resources config.Resources `json:"resources" yaml:"resources"`
	Output    string           `json:"output" yaml:"output"`
	// SbatchArgs are the resource manager submission options
	SbatchArgs []string `json:"sbatch_args" yaml:"sbatch_args"`
	Command    []string `json:"command" yaml:"command"`
}

// SummaryJob aggregates the probe jobs results
type SummaryJob struct {
	Name      string   `json:"name" yaml:"name"`
	DependsOn []string `json:"depends_on" yaml:"depends_on"`
	Inputs    []string `json:"inputs" yaml:"inputs"`
	Output    string   `json:"output" yaml:"output"`
	Command   []string `json:"command" yaml:"command"`
}

// Plan is the job graph of a probe campaign
type Plan struct {
	Jobs    []Job      `json:"jobs" yaml:"jobs"`
	Summary SummaryJob `json:"summary" yaml:"summary"`
}

// Build returns the plan probing the given nodes, jobs are in node configuration order
func Build(nodes *config.Nodes, opts Options) (*Plan, error) {
	if opts.ResultsDir == "" {
		opts.ResultsDir = config.DefaultResultsDir
	}
	if opts.SummaryFile == "" {
		opts.SummaryFile = DefaultSummaryFile
	}
	if opts.Executable == "" {
		opts.Executable = DefaultExecutable
	}

	p := &Plan{Jobs: make([]Job, 0, nodes.Len())}
	summaryOutput := opts.SummaryFile
	if filepath.Base(summaryOutput) == summaryOutput {
		summaryOutput = filepath.Join(opts.ResultsDir, summaryOutput)
	}
	p.Summary = SummaryJob{
		Name:    summaryJobName,
		Output:  summaryOutput,
		Command: []string{opts.Executable, "summarize", "--output", summaryOutput, "--input-files"},
	}
	for _, ns := range nodes.List() {
		res, err := ns.Resources(opts.Defaults)
		if err != nil {
			return nil, errors.Wrapf(err, "node %q", ns.Name)
		}
		job := Job{
			Name:      jobNamePrefix + ns.Name,
			Node:      ns.Name,
			Partition: ns.Partition,
			Host:      ns.ActualHost,
			Resources: res,
			Output:    ns.ResultFile(opts.ResultsDir),
		}
		job.SbatchArgs = sbatchArgs(job)
		job.Command = []string{opts.Executable, "probe", "--node", ns.Name, "--output", job.Output}
		p.Jobs = append(p.Jobs, job)
		p.Summary.DependsOn = append(p.Summary.DependsOn, job.Name)
		p.Summary.Inputs = append(p.Summary.Inputs, job.Output)
	}
	p.Summary.Command = append(p.Summary.Command, p.Summary.Inputs...)
	return p, nil
}

func sbatchArgs(job Job) []string {
	args := []string{
		"--job-name=" + job.Name,
		"--partition=" + job.Partition,
		"--nodelist=" + job.Host,
	}
	r := job.Resources
	switch {
	case r.Gres != "":
		args = append(args, "--gres="+r.Gres)
	case r.GPUs > 0:
		args = append(args, fmt.Sprintf("--gres=gpu:%d", r.GPUs))
	}
	if r.Memory != "" {
		args = append(args, "--mem="+r.Memory)
	}
	if r.Runtime != "" {
		args = append(args, "--time="+r.Runtime)
	}
	if r.CPUs > 0 {
		args = append(args, fmt.Sprintf("--cpus-per-task=%d", r.CPUs))
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opt := "--" + strings.Replace(k, "_", "-", -1)
		switch v := r.Extra[k].(type) {
		case nil:
			args = append(args, opt)
		case bool:
			if v {
				args = append(args, opt)
			}
		default:
			args = append(args, opt+"="+cast.ToString(v))
		}
	}
	return args
}

// Render writes the plan in the given format
func (p *Plan) Render(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(p), "failed to render plan")
	case FormatYAML:
		b, err := yaml.Marshal(p)
		if err != nil {
			return errors.Wrap(err, "failed to render plan")
		}
		_, err = w.Write(b)
		return errors.Wrap(err, "failed to render plan")
	case FormatDOT:
		_, err := fmt.Fprintln(w, p.Graph())
		return errors.Wrap(err, "failed to render plan")
	}
	return errors.Errorf("unsupported plan format %q", f)
}

// Graph returns the jobs dependency graph.
//
// The output can be converted to an image using GraphViz: gpucheck nodes plan --format dot | dot -Tpng > plan.png
func (p *Plan) Graph() *dot.Graph {
	graph := dot.NewGraph("gpucheck")
	graph.SetType(dot.DIGRAPH)
	graph.Set("label", "gpucheck jobs plan")
	graph.Set("labelloc", "t")
	graph.Set("rankdir", "LR")
	summary := dot.NewNode(p.Summary.Name)
	graph.AddNode(summary)
	for _, job := range p.Jobs {
		jobNode := dot.NewNode(job.Name)
		graph.AddNode(jobNode)
		graph.AddEdge(dot.NewEdge(jobNode, summary))
	}
	return graph
}
