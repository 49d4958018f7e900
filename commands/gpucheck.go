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

// Package commands holds the gpucheck command line tree
package commands

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/helper/pathutil"
	"github.com/ystia/gpucheck/log"
)

var cfgFile string

// RootCmd is the root of gpucheck commands tree
var RootCmd = &cobra.Command{
	Use:   "gpucheck",
	Short: "GPU nodes diagnostic tool",
	Long: `gpucheck checks that the GPU nodes of a cluster can run a given ML model.

Each node is probed by a dedicated job (see the probe command) and a final job
aggregates every node result into a summary (see the summarize command).
Jobs are dispatched by an external workflow executor, the nodes plan command
renders its input.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug") {
			log.SetDebug(true)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			fmt.Print(err)
		}
	},
}

func init() {
	setConfig()
	cobra.OnInitialize(initConfig)
}

func setConfig() {
	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is /etc/gpucheck/config.gpucheck.yaml)")
	RootCmd.PersistentFlags().Bool("debug", false, "Enable debug logs")
	RootCmd.PersistentFlags().StringP("nodes", "n", config.DefaultNodesFile, "Path to the nodes list file")
	RootCmd.PersistentFlags().String("results-dir", config.DefaultResultsDir, "Directory of per-node result files")

	viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("nodes_file", RootCmd.PersistentFlags().Lookup("nodes"))
	viper.BindPFlag("results_dir", RootCmd.PersistentFlags().Lookup("results-dir"))

	// Environment variables
	viper.SetEnvPrefix("gpucheck") // will be uppercased automatically - Become "GPUCHECK_"
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// Setting defaults
	viper.SetDefault("nodes_file", config.DefaultNodesFile)
	viper.SetDefault("results_dir", config.DefaultResultsDir)
	viper.SetDefault("python_interpreter", config.DefaultPythonInterpreter)
	viper.SetDefault("check_timeout", config.DefaultCheckTimeout)
	viper.SetDefault("model.framework", config.DefaultModelFramework)
	viper.SetDefault("model.name", config.DefaultModelName)
	viper.SetDefault("model.min_version", "")
	viper.SetDefault("model.image_size", config.DefaultImageSize)
	viper.SetDefault("host_suffixes", config.DefaultHostSuffixes)
	viper.SetDefault("default_resources", config.DefaultResources)
	viper.SetDefault("telemetry.service_name", "gpucheck")
	viper.SetDefault("telemetry.statsd_address", "")
	viper.SetDefault("telemetry.statsite_address", "")

	// Configuration file directories
	viper.SetConfigName("config.gpucheck") // name of config file (without extension)
	viper.AddConfigPath("/etc/gpucheck/")
	viper.AddConfigPath(".")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	}
	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debugln("Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		log.Warnf("Failed to read config file %q: %v", cfgFile, err)
	} else {
		log.Debugln("Config not found... ")
	}
}

func getConfig() (config.Configuration, error) {
	configuration := config.Configuration{}
	if err := viper.Unmarshal(&configuration); err != nil {
		return configuration, errors.Wrap(err, "invalid configuration")
	}
	var err error
	for _, p := range []*string{&configuration.NodesFile, &configuration.ResultsDir, &configuration.PythonInterpreter} {
		if *p, err = pathutil.Expand(*p); err != nil {
			return configuration, err
		}
	}
	if configuration.CheckTimeout <= 0 {
		return configuration, errors.Errorf("invalid configuration: check_timeout must be positive, got %v", configuration.CheckTimeout)
	}
	return configuration, nil
}

func loadNodes(cfg config.Configuration) (*config.Nodes, error) {
	return config.LoadNodes(cfg.NodesFile, cfg.HostSuffixes, cfg.DefaultResources)
}
