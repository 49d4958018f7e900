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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/helper/pathutil"
	"github.com/ystia/gpucheck/helper/tabutil"
	"github.com/ystia/gpucheck/plan"
)

var nodesCmd = &cobra.Command{
	Use:     "nodes",
	Aliases: []string{"node", "n"},
	Short:   "Perform commands on configured nodes",
	Long:    `Allow to list the configured nodes and to render the jobs plan probing them`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			fmt.Print(err)
		}
	},
}

type planOptions struct {
	format      string
	summaryFile string
	executable  string
}

func init() {
	nodesListCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured nodes",
		Long:  `Lists configured nodes with their partition, actual host and job resources.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig()
			if err != nil {
				return err
			}
			return listNodes(cfg, os.Stdout)
		},
	}

	var opts planOptions
	nodesPlanCmd := &cobra.Command{
		Use:   "plan",
		Short: "Render the jobs plan",
		Long: `Renders the jobs plan consumed by the workflow executor: one probe job per configured node
and a summary job depending on all of them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig()
			if err != nil {
				return err
			}
			return renderPlan(cfg, opts, os.Stdout)
		},
	}
	nodesPlanCmd.Flags().StringVar(&opts.format, "format", string(plan.FormatJSON), "Output format, one of json, yaml or dot")
	nodesPlanCmd.Flags().StringVar(&opts.summaryFile, "summary-file", plan.DefaultSummaryFile, "Summary file, relative to the results directory unless it is a path")
	nodesPlanCmd.Flags().StringVar(&opts.executable, "executable", plan.DefaultExecutable, "gpucheck command used by jobs")

	nodesCmd.AddCommand(nodesListCmd, nodesPlanCmd)
	RootCmd.AddCommand(nodesCmd)
}

func listNodes(cfg config.Configuration, w io.Writer) error {
	nodes, err := loadNodes(cfg)
	if err != nil {
		return err
	}
	nodesTable := tabutil.NewTable()
	nodesTable.AddHeaders("Node", "Partition", "Host", "Resources", "Result file")
	for _, ns := range nodes.List() {
		res, err := ns.Resources(cfg.DefaultResources)
		if err != nil {
			return err
		}
		nodesTable.AddRow(ns.Name, ns.Partition, ns.ActualHost, formatResources(res), ns.ResultFile(cfg.ResultsDir))
	}
	fmt.Fprintf(w, "Nodes (%d):\n", nodesTable.Len())
	fmt.Fprintln(w, nodesTable.Render())
	return nil
}

func formatResources(res config.Resources) string {
	var parts []string
	if res.Gres != "" {
		parts = append(parts, "gres="+res.Gres)
	} else if res.GPUs > 0 {
		parts = append(parts, fmt.Sprintf("gpus=%d", res.GPUs))
	}
	if res.CPUs > 0 {
		parts = append(parts, fmt.Sprintf("cpus=%d", res.CPUs))
	}
	if res.Memory != "" {
		parts = append(parts, "mem="+res.Memory)
	}
	if res.Runtime != "" {
		parts = append(parts, "time="+res.Runtime)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func renderPlan(cfg config.Configuration, opts planOptions, w io.Writer) error {
	format, err := plan.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	summaryFile, err := pathutil.Expand(opts.summaryFile)
	if err != nil {
		return err
	}
	nodes, err := loadNodes(cfg)
	if err != nil {
		return err
	}
	p, err := plan.Build(nodes, plan.Options{
		ResultsDir:  cfg.ResultsDir,
		SummaryFile: summaryFile,
		Executable:  opts.executable,
		Defaults:    cfg.DefaultResources,
	})
	if err != nil {
		return err
	}
	return p.Render(w, format)
}
