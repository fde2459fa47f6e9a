/*
Copyright The Strata Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package action

import (
	"github.com/Masterminds/log-go"

	"github.com/strata-sandbox/strata/pkg/diff"
	"github.com/strata-sandbox/strata/pkg/solver"
)

// Remove unlinks the packages matching the given specs together with
// everything depending on them.
type Remove struct {
	Config *Configuration

	DryRun bool

	// Force unlinks matching records as they are, leaving dependents
	// broken rather than removing them.
	Force bool
	// Prune also drops dependencies nothing else needs.
	Prune bool

	Output diff.OutputMode
}

// NewRemove constructs a new Remove action over the configuration.
func NewRemove(cfg *Configuration) *Remove {
	return &Remove{Config: cfg, Output: diff.Table}
}

// Run solves the removal and, unless DryRun is set, executes it.
func (r *Remove) Run(args []string, logger log.Logger) (*diff.Transaction, error) {
	specs, err := parseSpecs(args)
	if err != nil {
		return nil, err
	}
	opts := solver.Options{
		SpecsToRemove: specs,
		Force:         r.Force,
		Prune:         r.Prune,
	}

	s := r.Config.NewSolver()
	t, err := s.SolveForTransaction(r.Config.Prefix.Prefix(), opts)
	if err != nil {
		return nil, err
	}

	if r.DryRun {
		changes := diff.Changes{Unlink: t.Unlink, Link: t.Link}
		logger.Info(changes.FormatOutput(r.Output))
		return t, nil
	}
	if err := r.Config.Execute(t, logger); err != nil {
		return nil, err
	}
	return t, nil
}
