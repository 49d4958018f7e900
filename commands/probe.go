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
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/helper/pathutil"
	"github.com/ystia/gpucheck/log"
	"github.com/ystia/gpucheck/probe"
	"github.com/ystia/gpucheck/probe/nvidia"
	"github.com/ystia/gpucheck/probe/python"
	"github.com/ystia/gpucheck/telemetry"
)

func init() {
	var node, output, smiPath string
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the local GPU node",
		Long: `Runs the diagnostic checks of the local host on behalf of a configured node and writes its result file.

Checks failures are recorded in the result, the command only fails when the result can't be written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runProbe(ctx, cfg, node, output, python.NewBackend(cfg), nvidia.NewSMI(smiPath))
		},
	}
	probeCmd.Flags().StringVar(&node, "node", "", "Key of the probed node")
	probeCmd.Flags().StringVarP(&output, "output", "o", "", "Result file (default is <results-dir>/<node>_result.json)")
	probeCmd.Flags().StringVar(&smiPath, "nvidia-smi", nvidia.DefaultSMIPath, "Path to the nvidia-smi tool")
	probeCmd.MarkFlagRequired("node")
	RootCmd.AddCommand(probeCmd)
}

func runProbe(ctx context.Context, cfg config.Configuration, node, output string, backend probe.Backend, driver probe.DriverProber) error {
	if node == "" {
		return errors.New("a node key is required")
	}
	nodes, err := loadNodes(cfg)
	if err != nil {
		log.Debugf("Can't check node %q against configuration: %v", node, err)
	} else if _, ok := nodes.Get(node); !ok {
		log.Warnf("Node %q is not declared in %q", node, cfg.NodesFile)
	}

	if output == "" {
		output = filepath.Join(cfg.ResultsDir, config.ResultFileName(node))
	}
	if output, err = pathutil.Expand(output); err != nil {
		return err
	}

	_, shutdownTelemetry, err := telemetry.Setup(cfg.Telemetry)
	if err != nil {
		log.Warnf("Telemetry disabled: %v", err)
	}
	defer shutdownTelemetry()

	prober, err := probe.NewProber(backend, probe.Options{
		CheckTimeout:        cfg.CheckTimeout,
		MinFrameworkVersion: cfg.Model.MinVersion,
		Driver:              driver,
	})
	if err != nil {
		return err
	}
	res := prober.Run(ctx, node)
	if err = probe.WriteResult(output, res); err != nil {
		return errors.Wrapf(err, "failed to write result of node %q", node)
	}
	log.Printf("Node %q: %s, result written to %q", node, res.Status, output)
	return nil
}
