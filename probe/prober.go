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

// Package probe runs the diagnostic checks of a GPU node and records their outcome.
//
// Check failures are data: they are recorded into the TestResult and never abort the probe.
package probe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blang/semver"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/ystia/gpucheck/helper/metricsutil"
	"github.com/ystia/gpucheck/log"
)

// DefaultCheckTimeout is used when no check timeout is set in Options
const DefaultCheckTimeout = 5 * time.Minute

// Options tunes a Prober
type Options struct {
	// CheckTimeout bounds the duration of every single check
	CheckTimeout time.Duration
	// MinFrameworkVersion is an optional minimum version of the model library
	MinFrameworkVersion string
	// Driver collects driver information for the environment check, it may be nil
	Driver DriverProber
	// Hostname defaults to os.Hostname
	Hostname func() (string, error)
}

// A Prober runs the ordered checks of a node
type Prober struct {
	backend    Backend
	opts       Options
	minVersion *semver.Version
	// minVersionErr fails the model_framework check when the configured minimum version is invalid
	minVersionErr error
}

type checkFunc func(ctx context.Context) (map[string]interface{}, error)

// NewProber returns a Prober using the given backend
func NewProber(backend Backend, opts Options) (*Prober, error) {
	if backend == nil {
		return nil, errors.New("a probe backend is required")
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.Hostname == nil {
		opts.Hostname = os.Hostname
	}
	p := &Prober{backend: backend, opts: opts}
	if opts.MinFrameworkVersion != "" {
		v, err := semver.ParseTolerant(opts.MinFrameworkVersion)
		if err != nil {
			p.minVersionErr = errors.Wrapf(err, "invalid minimum framework version %q", opts.MinFrameworkVersion)
			log.Warnf("%v", p.minVersionErr)
		} else {
			p.minVersion = &v
		}
	}
	return p, nil
}

// Run probes the local host on behalf of the given node key.
//
// It always returns a result: failures are recorded in it. The runtime_accelerator check is a precondition of
// every later check, and inference is only attempted once the model is loaded.
func (p *Prober) Run(ctx context.Context, node string) *TestResult {
	res := &TestResult{
		Node:      node,
		Status:    StatusUnknown,
		Tests:     make(map[Category]*CategoryResult, len(Categories)),
		Errors:    make([]string, 0),
		RunID:     uuid.NewV4().String(),
		StartedAt: time.Now().UTC(),
	}
	hostname, err := p.opts.Hostname()
	if err != nil {
		log.Warnf("failed to resolve hostname: %v", err)
	}
	res.Hostname = hostname
	log.Printf("Testing node %q on host %q (run %s)", node, hostname, res.RunID)

	p.runCheck(ctx, res, CategoryEnvironment, p.checkEnvironment)

	if !p.runCheck(ctx, res, CategoryRuntimeAccelerator, p.checkAccelerator) {
		reason := fmt.Sprintf("not attempted: %s check failed: %s", CategoryRuntimeAccelerator, res.Tests[CategoryRuntimeAccelerator].Error)
		for _, cat := range []Category{CategoryModelFramework, CategoryModelLoading, CategoryInference} {
			p.skip(res, cat, reason)
		}
		return p.finish(res)
	}

	p.runCheck(ctx, res, CategoryModelFramework, p.checkFramework)

	if p.runCheck(ctx, res, CategoryModelLoading, p.checkModelLoading) {
		p.runCheck(ctx, res, CategoryInference, p.checkInference)
	} else {
		p.skip(res, CategoryInference, "not attempted: model not loaded")
	}
	return p.finish(res)
}

func (p *Prober) finish(res *TestResult) *TestResult {
	res.FinishedAt = time.Now().UTC()
	if len(res.Errors) == 0 {
		res.Status = StatusSuccess
		log.Printf("Node %q: all tests passed", res.Node)
	} else {
		res.Status = StatusFailed
		log.Printf("Node %q: tests failed with %d error(s)", res.Node, len(res.Errors))
	}
	metricsutil.IncrCounter([]string{"probe", "status", res.Status.String()}, 1)
	return res
}

func (p *Prober) skip(res *TestResult, cat Category, reason string) {
	log.Printf("[%s] skipped: %s", cat, reason)
	res.Tests[cat] = &CategoryResult{Skipped: true, Error: reason}
	metricsutil.IncrCounter([]string{"probe", "check", string(cat), "skipped"}, 1)
}

// runCheck runs a check under its timeout and records its outcome. It returns true if the check passed.
func (p *Prober) runCheck(ctx context.Context, res *TestResult, cat Category, check checkFunc) bool {
	log.Printf("[%s] running", cat)
	start := time.Now()
	defer metricsutil.MeasureSince([]string{"probe", "check", string(cat)}, start)

	cctx, cancel := context.WithTimeout(ctx, p.opts.CheckTimeout)
	defer cancel()
	details, err := p.guard(cctx, check)

	cr := &CategoryResult{
		Passed:     err == nil,
		DurationMS: time.Since(start).Nanoseconds() / int64(time.Millisecond),
		Details:    details,
	}
	res.Tests[cat] = cr
	if err != nil {
		cr.Error = err.Error()
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", cat, cr.Error))
		log.Printf("[%s] failed: %v", cat, err)
		metricsutil.IncrCounter([]string{"probe", "check", string(cat), "failures"}, 1)
		return false
	}
	log.Printf("[%s] passed in %s", cat, time.Since(start).Round(time.Millisecond))
	metricsutil.IncrCounter([]string{"probe", "check", string(cat), "successes"}, 1)
	return true
}

type checkOutcome struct {
	details map[string]interface{}
	err     error
}

// guard runs a check in its own goroutine, turning panics into errors and giving up on it when the
// context is done. A check stuck in a blocking call is abandoned, the external job timeout remains the backstop.
func (p *Prober) guard(ctx context.Context, check checkFunc) (map[string]interface{}, error) {
	outcomes := make(chan checkOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcomes <- checkOutcome{err: errors.Errorf("check panicked: %v", r)}
			}
		}()
		details, err := check(ctx)
		outcomes <- checkOutcome{details: details, err: err}
	}()

	select {
	case o := <-outcomes:
		if ctx.Err() != nil {
			return o.details, p.interrupted(ctx)
		}
		return o.details, o.err
	case <-ctx.Done():
		return nil, p.interrupted(ctx)
	}
}

func (p *Prober) interrupted(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Errorf("check did not complete within %s", p.opts.CheckTimeout)
	}
	return errors.Wrap(ctx.Err(), "check interrupted")
}
