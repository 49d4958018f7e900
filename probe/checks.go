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

package probe

import (
	"context"
	"os"
	"runtime"

	"github.com/blang/semver"
	"github.com/pkg/errors"
)

// environmentVariables are recorded by the environment check, "N/A" when unset
var environmentVariables = map[string]string{
	"slurm_job_id":         "SLURM_JOB_ID",
	"slurm_nodelist":       "SLURM_NODELIST",
	"slurm_job_partition":  "SLURM_JOB_PARTITION",
	"cuda_visible_devices": "CUDA_VISIBLE_DEVICES",
}

func (p *Prober) checkEnvironment(ctx context.Context) (map[string]interface{}, error) {
	details := map[string]interface{}{
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
		"num_cpu": runtime.NumCPU(),
	}
	for key, env := range environmentVariables {
		value, ok := os.LookupEnv(env)
		if !ok {
			value = "N/A"
		}
		details[key] = value
	}

	// Interpreter and driver details are informative, later checks report the actual failures
	runtimeEnv, err := p.backend.Environment(ctx)
	if err != nil {
		details["runtime_error"] = err.Error()
	}
	for k, v := range runtimeEnv {
		details[k] = v
	}
	if p.opts.Driver != nil {
		driver, err := p.opts.Driver.DriverInfo(ctx)
		if err != nil {
			details["driver_error"] = err.Error()
		} else {
			details["driver"] = driver
		}
	}

	hostname, err := p.opts.Hostname()
	if err != nil {
		return details, errors.Wrap(err, "failed to resolve hostname")
	}
	details["hostname"] = hostname
	return details, nil
}

func (p *Prober) checkAccelerator(ctx context.Context) (map[string]interface{}, error) {
	info, err := p.backend.Accelerator(ctx)
	if err != nil {
		return nil, err
	}
	details := toDetails(info)
	if !info.Available {
		return details, errors.New("CUDA not available despite GPU partition")
	}
	if info.DeviceCount < 1 || len(info.Devices) == 0 {
		return details, errors.New("CUDA reports no accelerator device")
	}
	return details, nil
}

func (p *Prober) checkFramework(ctx context.Context) (map[string]interface{}, error) {
	info, err := p.backend.Framework(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "import error")
	}
	details := toDetails(info)
	if p.minVersionErr != nil {
		return details, p.minVersionErr
	}
	if p.minVersion == nil {
		return details, nil
	}
	details["min_version"] = p.minVersion.String()
	v, err := semver.ParseTolerant(info.Version)
	if err != nil {
		return details, errors.Wrapf(err, "cannot compare %s version %q to required %s", info.Name, info.Version, p.minVersion)
	}
	if v.LT(*p.minVersion) {
		return details, errors.Errorf("%s version %s is older than required %s", info.Name, v, p.minVersion)
	}
	return details, nil
}

func (p *Prober) checkModelLoading(ctx context.Context) (map[string]interface{}, error) {
	info, err := p.backend.LoadModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "model loading error")
	}
	details := toDetails(info)
	if !info.OnAccelerator {
		return details, errors.Errorf("model %s loaded on %s despite CUDA being available", info.Name, info.Device)
	}
	return details, nil
}

func (p *Prober) checkInference(ctx context.Context) (map[string]interface{}, error) {
	info, err := p.backend.Infer(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "inference error")
	}
	return toDetails(info), nil
}
