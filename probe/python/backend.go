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

// Package python implements the probe checks with a Python interpreter.
//
// Each check runs an embedded script in a dedicated interpreter process which prints a JSON document on its
// last output line. The process group is killed when the check context is done.
package python

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ystia/gpucheck/config"
	"github.com/ystia/gpucheck/helper/executil"
	"github.com/ystia/gpucheck/log"
	"github.com/ystia/gpucheck/probe"
)

var (
	//go:embed scripts/environment.py
	environmentScript string
	//go:embed scripts/accelerator.py
	acceleratorScript string
	//go:embed scripts/framework.py
	frameworkScript string
	//go:embed scripts/model_loading.py
	modelLoadingScript string
	//go:embed scripts/inference.py
	inferenceScript string
)

type runFunc func(ctx context.Context, name string, arg ...string) ([]byte, error)

// Backend runs checks through a Python interpreter
type Backend struct {
	Interpreter string
	// Module is the python module of the model library, it must expose a cellpose compatible models API
	Module      string
	Model       string
	ImageSize   int
	run         runFunc
}

// NewBackend returns a Backend configured from the given configuration
func NewBackend(cfg config.Configuration) *Backend {
	b := &Backend{
		Interpreter: cfg.PythonInterpreter,
		Module:      cfg.Model.Framework,
		Model:       cfg.Model.Name,
		ImageSize:   cfg.Model.ImageSize,
		run:         executil.Output,
	}
	if b.Interpreter == "" {
		b.Interpreter = config.DefaultPythonInterpreter
	}
	if b.Module == "" {
		b.Module = config.DefaultModelFramework
	}
	if b.Model == "" {
		b.Model = config.DefaultModelName
	}
	if b.ImageSize <= 0 {
		b.ImageSize = config.DefaultImageSize
	}
	return b
}

// Environment implements probe.Backend
func (b *Backend) Environment(ctx context.Context) (map[string]interface{}, error) {
	env := make(map[string]interface{})
	err := b.exec(ctx, environmentScript, &env)
	return env, err
}

// Accelerator implements probe.Backend
func (b *Backend) Accelerator(ctx context.Context) (*probe.AcceleratorInfo, error) {
	info := new(probe.AcceleratorInfo)
	return info, b.exec(ctx, acceleratorScript, info)
}

// Framework implements probe.Backend
func (b *Backend) Framework(ctx context.Context) (*probe.FrameworkInfo, error) {
	info := new(probe.FrameworkInfo)
	return info, b.exec(ctx, frameworkScript, info, b.Module)
}

// LoadModel implements probe.Backend
func (b *Backend) LoadModel(ctx context.Context) (*probe.ModelInfo, error) {
	info := new(probe.ModelInfo)
	return info, b.exec(ctx, modelLoadingScript, info, b.Module, b.Model)
}

// Infer implements probe.Backend
func (b *Backend) Infer(ctx context.Context) (*probe.InferenceInfo, error) {
	info := new(probe.InferenceInfo)
	return info, b.exec(ctx, inferenceScript, info, b.Module, b.Model, strconv.Itoa(b.ImageSize))
}

func (b *Backend) exec(ctx context.Context, script string, result interface{}, args ...string) error {
	out, err := b.run(ctx, b.Interpreter, append([]string{"-c", script}, args...)...)
	if err != nil {
		return err
	}
	line := lastJSONLine(out)
	if line == nil {
		log.Debugf("interpreter output: %s", out)
		return errors.New("no result found in interpreter output")
	}
	return errors.Wrap(json.Unmarshal(line, result), "malformed interpreter output")
}

// lastJSONLine returns the last output line holding a JSON object, libraries may print their own messages before
func lastJSONLine(out []byte) []byte {
	lines := bytes.Split(out, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		l := bytes.TrimSpace(lines[i])
		if len(l) > 1 && l[0] == '{' && l[len(l)-1] == '}' {
			return l
		}
	}
	return nil
}
