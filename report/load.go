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

// Package report aggregates node probe results into a summary.
//
// Aggregation tolerates partial completion: a missing or unreadable result marks its node as incomplete,
// it never aborts the whole run.
package report

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/log"
	"github.com/ystia/gpucheck/probe"
)

// DefaultConcurrency is the default number of result files read concurrently
const DefaultConcurrency = 8

// An Input is a result file to aggregate
type Input struct {
	Path string
	// Node is the expected node key, derived from the result itself when empty
	Node string
}

// An Entry is a loaded input
type Entry struct {
	Node   string
	Path   string
	Result *probe.TestResult
	// Reason is set when the node result could not be used
	Reason string
}

// Incomplete returns true if the node has no usable result
func (e Entry) Incomplete() bool {
	return e.Result == nil || e.Reason != ""
}

// InputsFromFiles returns inputs for the given files
func InputsFromFiles(paths []string) []Input {
	inputs := make([]Input, 0, len(paths))
	for _, p := range paths {
		inputs = append(inputs, Input{Path: p})
	}
	return inputs
}

// InputsFromDir returns inputs for every result file of a directory
func InputsFromDir(dir string) ([]Input, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+config.ResultFileSuffix))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list result files of %q", dir)
	}
	sort.Strings(paths)
	return InputsFromFiles(paths), nil
}

// InputsFromNodes returns the expected result file of every configured node
func InputsFromNodes(nodes *config.Nodes, dir string) []Input {
	inputs := make([]Input, 0, nodes.Len())
	for _, ns := range nodes.List() {
		inputs = append(inputs, Input{Path: ns.ResultFile(dir), Node: ns.Name})
	}
	return inputs
}

// Load reads inputs using at most concurrency parallel readers.
//
// Returned entries are sorted by node then path and hold a single entry per node,
// a complete result being preferred over an incomplete one.
func Load(ctx context.Context, inputs []Input, concurrency int) ([]Entry, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	entries := make([]Entry, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range inputs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "results loading interrupted")
			}
			entries[i] = loadEntry(inputs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Node != entries[j].Node {
			return nodeLess(entries[i].Node, entries[j].Node)
		}
		// A complete result wins over an unreadable file for the same node
		if entries[i].Incomplete() != entries[j].Incomplete() {
			return !entries[i].Incomplete()
		}
		return entries[i].Path < entries[j].Path
	})
	unique := entries[:0]
	for _, e := range entries {
		if len(unique) > 0 && unique[len(unique)-1].Node == e.Node {
			log.Warnf("Ignoring result file %q: node %q already reported by %q", e.Path, e.Node, unique[len(unique)-1].Path)
			continue
		}
		unique = append(unique, e)
	}
	return unique, nil
}

func loadEntry(in Input) Entry {
	e := Entry{Node: in.Node, Path: in.Path}
	if e.Node == "" {
		e.Node = config.NodeFromResultFile(in.Path)
	}
	res, err := probe.ReadResult(in.Path)
	if err != nil {
		log.Debugf("%+v", err)
		e.Reason = err.Error()
		if os.IsNotExist(errors.Cause(err)) {
			e.Reason = "result file not found: " + in.Path
		}
		return e
	}
	switch {
	case res.Node == "":
	case in.Node == "":
		e.Node = res.Node
	case res.Node != in.Node:
		e.Reason = "result file reports node " + res.Node
		return e
	}
	if res.Status != probe.StatusSuccess && res.Status != probe.StatusFailed {
		e.Reason = "result has no final status"
		return e
	}
	e.Result = res
	return e
}
