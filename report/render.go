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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/ystia/gpucheck/helper/fileutil"
	"github.com/ystia/gpucheck/helper/sizeutil"
)

const (
	reportWidth = 80
	reportTitle = "GPU NODE TEST SUMMARY"
)

// RenderOptions alter the summary rendering
type RenderOptions struct {
	// Generated is printed in the header unless zero
	Generated time.Time
	// Color enables colored marks, for terminal output only
	Color bool
}

type marks struct {
	success, failure, incomplete string
}

func newMarks(colored bool) marks {
	m := marks{success: "✓", failure: "✗", incomplete: "?"}
	if colored {
		m.success = color.New(color.FgGreen, color.Bold).Sprint(m.success)
		m.failure = color.New(color.FgRed, color.Bold).Sprint(m.failure)
		m.incomplete = color.New(color.FgYellow, color.Bold).Sprint(m.incomplete)
	}
	return m
}

// Render returns the text form of a summary
func Render(s *Summary, opts RenderOptions) []byte {
	buf := &bytes.Buffer{}
	m := newMarks(opts.Color)
	ruler := strings.Repeat("=", reportWidth)
	separator := strings.Repeat("-", reportWidth)

	fmt.Fprintln(buf, ruler)
	fmt.Fprintln(buf, reportTitle)
	if !opts.Generated.IsZero() {
		fmt.Fprintf(buf, "Generated: %s\n", opts.Generated.Format(time.RFC3339))
	}
	fmt.Fprintf(buf, "Total nodes: %d (%d completed)\n", s.Total, s.Completed())
	fmt.Fprintln(buf, ruler)
	fmt.Fprintln(buf)

	fmt.Fprintf(buf, "%s SUCCESS:    %d nodes\n", m.success, s.Success)
	fmt.Fprintf(buf, "%s FAILED:     %d nodes\n", m.failure, s.Failed)
	fmt.Fprintf(buf, "%s INCOMPLETE: %d nodes\n", m.incomplete, s.Incomplete)
	fmt.Fprintln(buf)

	fmt.Fprintln(buf, "FAILURES BY CATEGORY:")
	fmt.Fprintln(buf, separator)
	for _, t := range s.Categories {
		fmt.Fprintf(buf, "  %-20s failed: %d  skipped: %d\n", t.Category, t.Failed, t.Skipped)
	}
	fmt.Fprintln(buf)

	if len(s.Successes) > 0 {
		fmt.Fprintln(buf, "SUCCESSFUL NODES:")
		fmt.Fprintln(buf, separator)
		for _, n := range s.Successes {
			fmt.Fprintf(buf, "  %s %s (hostname: %s)\n", m.success, n.Node, hostname(n.Hostname))
			for _, d := range n.Devices {
				fmt.Fprintf(buf, "      GPU %d: %s (%s)\n", d.Index, d.Name, sizeutil.FormatGB(d.MemoryGB))
			}
		}
		fmt.Fprintln(buf)
	}

	if len(s.Failures) > 0 {
		fmt.Fprintln(buf, "FAILED NODES:")
		fmt.Fprintln(buf, separator)
		for _, n := range s.Failures {
			fmt.Fprintf(buf, "  %s %s (hostname: %s)\n", m.failure, n.Node, hostname(n.Hostname))
			if len(n.Errors) == 0 {
				fmt.Fprintln(buf, "      ERROR: failed without recorded error")
			}
			for _, e := range n.Errors {
				fmt.Fprintf(buf, "      ERROR: %s\n", e)
			}
		}
		fmt.Fprintln(buf)
	}

	if len(s.Incompletes) > 0 {
		fmt.Fprintln(buf, "INCOMPLETE NODES:")
		fmt.Fprintln(buf, separator)
		for _, n := range s.Incompletes {
			fmt.Fprintf(buf, "  %s %s\n", m.incomplete, n.Node)
			fmt.Fprintf(buf, "      REASON: %s\n", n.Reason)
		}
		fmt.Fprintln(buf)
	}

	if len(s.ErrorBreakdown) > 0 {
		fmt.Fprintln(buf, "DETAILED ERROR BREAKDOWN:")
		fmt.Fprintln(buf, separator)
		for _, g := range s.ErrorBreakdown {
			fmt.Fprintln(buf)
			fmt.Fprintln(buf, g.Error)
			fmt.Fprintf(buf, "  Affected nodes (%d): %s\n", len(g.Nodes), strings.Join(g.Nodes, ", "))
		}
		fmt.Fprintln(buf)
	}
	fmt.Fprintln(buf, ruler)
	return buf.Bytes()
}

func hostname(h string) string {
	if h == "" {
		return "unknown"
	}
	return h
}

// WriteFile atomically writes a rendered summary, creating the parent directory if needed
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create summary directory for %q", path)
	}
	return fileutil.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
