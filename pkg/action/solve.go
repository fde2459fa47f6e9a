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
	logio "github.com/Masterminds/log-go/io"

	"github.com/strata-sandbox/strata/pkg/diff"
)

// Solve computes and prints the transaction a request would produce,
// without ever touching the prefix. It is install's planner exposed on
// its own, with removals allowed in the same request.
type Solve struct {
	Install

	// Remove are specs taken out of the environment by the same solve.
	Remove []string
}

// NewSolve constructs a new Solve action over the configuration.
func NewSolve(cfg *Configuration) *Solve {
	return &Solve{Install: *NewInstall(cfg)}
}

// Run solves the combined add/remove request and prints the plan.
func (s *Solve) Run(args []string, logger log.Logger) (*diff.Transaction, error) {
	opts, err := s.options(args)
	if err != nil {
		return nil, err
	}
	removeSpecs, err := parseSpecs(s.Remove)
	if err != nil {
		return nil, err
	}
	opts.SpecsToRemove = removeSpecs

	sv := s.Config.NewSolver()
	t, err := sv.SolveForTransaction(s.Config.Prefix.Prefix(), opts)
	if err != nil {
		return nil, err
	}

	changes := diff.Changes{Unlink: t.Unlink, Link: t.Link}
	wInfo := logio.NewWriter(logger, log.InfoLevel)
	if _, err := wInfo.Write([]byte(changes.FormatOutput(s.Output))); err != nil {
		return nil, err
	}
	return t, nil
}
