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

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/helper/pathutil"
	"github.com/ystia/gpucheck/log"
	"github.com/ystia/gpucheck/report"
)

type summarizeOptions struct {
	output      string
	inputFiles  []string
	inputDir    string
	fromNodes   bool
	timestamp   bool
	concurrency int
	colorize    bool
}

func init() {
	var opts summarizeOptions
	var noColor bool
	summarizeCmd := &cobra.Command{
		Use:     "summarize",
		Aliases: []string{"summary", "sum"},
		Short:   "Aggregate node results into a summary",
		Long: `Aggregates node result files into a text summary written to the output file and printed on the standard output.

Inputs are either the given files, the expected result file of every configured node (--from-nodes),
or every result file of the input directory (default). Missing or unreadable results are reported as incomplete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig()
			if err != nil {
				return err
			}
			opts.colorize = !noColor
			return runSummarize(cmd.Context(), cfg, opts, os.Stdout)
		},
	}
	summarizeCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Summary file")
	summarizeCmd.Flags().StringSliceVarP(&opts.inputFiles, "input-files", "f", nil, "Result files to aggregate")
	summarizeCmd.Flags().StringVarP(&opts.inputDir, "input-dir", "d", "", "Directory of the result files (default is the results directory)")
	summarizeCmd.Flags().BoolVar(&opts.fromNodes, "from-nodes", false, "Expect a result file for every configured node")
	summarizeCmd.Flags().BoolVar(&opts.timestamp, "timestamp", false, "Add the generation date to the summary")
	summarizeCmd.Flags().IntVar(&opts.concurrency, "concurrency", report.DefaultConcurrency, "Maximum number of result files read concurrently")
	summarizeCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable coloring output")
	summarizeCmd.MarkFlagRequired("output")
	summarizeCmd.MarkFlagsMutuallyExclusive("input-files", "from-nodes")
	summarizeCmd.MarkFlagsMutuallyExclusive("input-files", "input-dir")
	RootCmd.AddCommand(summarizeCmd)
}

func summaryInputs(cfg config.Configuration, opts summarizeOptions) ([]report.Input, *config.Nodes, error) {
	if len(opts.inputFiles) > 0 {
		return report.InputsFromFiles(opts.inputFiles), nil, nil
	}
	dir := opts.inputDir
	if dir == "" {
		dir = cfg.ResultsDir
	}
	dir, err := pathutil.Expand(dir)
	if err != nil {
		return nil, nil, err
	}
	if opts.fromNodes {
		nodes, err := loadNodes(cfg)
		if err != nil {
			return nil, nil, err
		}
		return report.InputsFromNodes(nodes, dir), nodes, nil
	}
	ok, err := pathutil.IsValidPath(dir)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errors.Errorf("input directory %q does not exist", dir)
	}
	inputs, err := report.InputsFromDir(dir)
	return inputs, nil, err
}

func runSummarize(ctx context.Context, cfg config.Configuration, opts summarizeOptions, w io.Writer) error {
	if opts.output == "" {
		return errors.New("an output file is required")
	}
	output, err := pathutil.Expand(opts.output)
	if err != nil {
		return err
	}
	inputs, nodes, err := summaryInputs(cfg, opts)
	if err != nil {
		return err
	}
	if nodes == nil {
		// Best effort check of the results against the configuration
		if nodes, err = loadNodes(cfg); err != nil {
			log.Debugf("Can't check results against nodes configuration: %v", err)
		}
	}

	entries, err := report.Load(ctx, inputs, opts.concurrency)
	if err != nil {
		return err
	}
	if nodes != nil {
		for _, e := range entries {
			if _, ok := nodes.Get(e.Node); !ok {
				log.Warnf("Node %q of %q is not declared in %q", e.Node, e.Path, cfg.NodesFile)
			}
		}
	}

	s := report.Summarize(entries)
	renderOpts := report.RenderOptions{}
	if opts.timestamp {
		renderOpts.Generated = time.Now()
	}
	if err = report.WriteFile(output, report.Render(s, renderOpts)); err != nil {
		return errors.Wrap(err, "failed to write summary")
	}

	renderOpts.Color = opts.colorize
	if opts.colorize {
		defer color.Unset()
	}
	fmt.Fprint(w, string(report.Render(s, renderOpts)))
	log.Printf("Summary written to %q", output)
	return nil
}
