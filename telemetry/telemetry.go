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

// Package telemetry configures the global metrics sinks
package telemetry

import (
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/pkg/errors"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/log"
)

// DefaultServiceName prefixes every metric key when no service name is configured
const DefaultServiceName = "gpucheck"

// Setup installs the global metrics sinks.
//
// Metrics are always kept in memory (dumped on SIGUSR1) and additionally sent to statsd or statsite when configured.
// The returned shutdown function flushes and closes the sinks, it is never nil.
func Setup(cfg config.Telemetry) (*metrics.InmemSink, func(), error) {
	memSink := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(memSink)
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	metricsConf := metrics.DefaultConfig(serviceName)
	metricsConf.EnableRuntimeMetrics = false
	var sinks metrics.FanoutSink

	if cfg.StatsdAddress != "" {
		log.Debugf("Setting up a statsd telemetry service on %q", cfg.StatsdAddress)
		statsdSink, err := metrics.NewStatsdSink(cfg.StatsdAddress)
		if err != nil {
			return nil, noop, errors.Wrap(err, "Failed to create Statsd telemetry service")
		}
		sinks = append(sinks, statsdSink)
	}

	if cfg.StatsiteAddress != "" {
		log.Debugf("Setting up a statsite telemetry service on %q", cfg.StatsiteAddress)
		statsiteSink, err := metrics.NewStatsiteSink(cfg.StatsiteAddress)
		if err != nil {
			return nil, noop, errors.Wrap(err, "Failed to create Statsite telemetry service")
		}
		sinks = append(sinks, statsiteSink)
	}

	var err error
	if len(sinks) > 0 {
		sinks = append(sinks, memSink)
		_, err = metrics.NewGlobal(metricsConf, sinks)
	} else {
		log.Debugln("Using InMemory only telemetry")
		_, err = metrics.NewGlobal(metricsConf, memSink)
	}
	if err != nil {
		return memSink, noop, errors.Wrap(err, "failed to setup telemetry")
	}
	return memSink, metrics.Shutdown, nil
}

func noop() {}
