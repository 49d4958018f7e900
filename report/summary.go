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

package report

import (
	"sort"

	"github.com/fvbommel/sortorder"

	"github.com/ystia/gpucheck/log"
	"github.com/ystia/gpucheck/probe"
)

// A NodeOutcome is the summary of a single node
type NodeOutcome struct {
	Node     string
	Hostname string
	Errors   []string
	// Reason explains why an incomplete node has no usable result
	Reason  string
	Devices []probe.Device
}

// CategoryTally counts the failures of a check category across nodes
type CategoryTally struct {
	Category probe.Category
	Failed   int
	Skipped  int
}

// An ErrorGroup lists the nodes sharing an error text
type ErrorGroup struct {
	Error string
	Nodes []string
}

// Summary aggregates node outcomes.
//
// Success and Failed counts only consider completed nodes.
type Summary struct {
	Total      int
	Success    int
	Failed     int
	Incomplete int

	Successes   []NodeOutcome
	Failures    []NodeOutcome
	Incompletes []NodeOutcome

	// Categories is ordered as probe.Categories
	Categories []CategoryTally
	// ErrorBreakdown is ordered by error text
	ErrorBreakdown []ErrorGroup
}

// Completed returns the number of nodes with a usable result
func (s *Summary) Completed() int {
	return s.Success + s.Failed
}

// Summarize builds a Summary from loaded entries.
//
// The outcome does not depend on entries order.
func Summarize(entries []Entry) *Summary {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return nodeLess(sorted[i].Node, sorted[j].Node) })

	s := &Summary{Total: len(sorted)}
	tallies := make(map[probe.Category]*CategoryTally, len(probe.Categories))
	for _, c := range probe.Categories {
		tallies[c] = &CategoryTally{Category: c}
	}
	groups := make(map[string][]string)

	for _, e := range sorted {
		if e.Incomplete() {
			s.Incomplete++
			s.Incompletes = append(s.Incompletes, NodeOutcome{Node: e.Node, Reason: e.Reason})
			continue
		}
		res := e.Result
		outcome := NodeOutcome{Node: e.Node, Hostname: res.Hostname, Errors: res.Errors}
		for _, c := range probe.Categories {
			cr, ok := res.Tests[c]
			if !ok || cr == nil || cr.Passed {
				continue
			}
			if cr.Skipped {
				tallies[c].Skipped++
			} else {
				tallies[c].Failed++
			}
		}
		if res.Status == probe.StatusSuccess && len(res.Errors) == 0 {
			devices, err := res.Devices()
			if err != nil {
				log.Debugf("Node %q: %v", e.Node, err)
			}
			outcome.Devices = devices
			s.Success++
			s.Successes = append(s.Successes, outcome)
			continue
		}
		s.Failed++
		s.Failures = append(s.Failures, outcome)
		for _, msg := range uniqueStrings(res.Errors) {
			groups[msg] = append(groups[msg], e.Node)
		}
	}

	for _, c := range probe.Categories {
		s.Categories = append(s.Categories, *tallies[c])
	}
	messages := make([]string, 0, len(groups))
	for msg := range groups {
		messages = append(messages, msg)
	}
	sort.Strings(messages)
	for _, msg := range messages {
		s.ErrorBreakdown = append(s.ErrorBreakdown, ErrorGroup{Error: msg, Nodes: groups[msg]})
	}
	return s
}

// nodeLess orders node keys naturally ("gpu2" before "gpu10")
func nodeLess(a, b string) bool {
	if sortorder.NaturalLess(a, b) {
		return true
	}
	if sortorder.NaturalLess(b, a) {
		return false
	}
	return a < b
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
