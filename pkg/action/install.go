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
	"github.com/strata-sandbox/strata/pkg/eyecandy"
	"github.com/strata-sandbox/strata/pkg/solver"
)

// Install solves the requested specs against the channel index and
// links the outcome into the prefix.
type Install struct {
	Config *Configuration

	// DryRun solves and prints the plan without touching the prefix.
	DryRun bool

	FreezeInstalled bool
	UpdateDeps      bool
	NoDeps          bool
	OnlyDeps        bool
	Prune           bool
	ForceReinstall  bool
	IgnorePinned    bool

	// Output selects the rendering of the plan under DryRun.
	Output diff.OutputMode
}

// NewInstall constructs a new Install action over the configuration.
func NewInstall(cfg *Configuration) *Install {
	return &Install{Config: cfg, Output: diff.Table}
}

func (i *Install) options(args []string) (solver.Options, error) {
	specs, err := parseSpecs(args)
	if err != nil {
		return solver.Options{}, err
	}
	opts := solver.Options{
		SpecsToAdd:     specs,
		Prune:          i.Prune,
		ForceReinstall: i.ForceReinstall,
		IgnorePinned:   i.IgnorePinned,
	}
	switch {
	case i.FreezeInstalled:
		opts.Update = solver.FreezeInstalled
	case i.UpdateDeps:
		opts.Update = solver.UpdateDeps
	}
	switch {
	case i.NoDeps:
		opts.Deps = solver.NoDeps
	case i.OnlyDeps:
		opts.Deps = solver.OnlyDeps
	}
	return opts, nil
}

// Run solves the request and, unless DryRun is set, executes it.
func (i *Install) Run(args []string, logger log.Logger) (*diff.Transaction, error) {
	opts, err := i.options(args)
	if err != nil {
		return nil, err
	}

	s := i.Config.NewSolver()
	t, err := s.SolveForTransaction(i.Config.Prefix.Prefix(), opts)
	if err != nil {
		return nil, err
	}

	changes := diff.Changes{Unlink: t.Unlink, Link: t.Link}
	if changes.Empty() {
		logger.Info(eyecandy.ESPrint(i.Config.Settings.NoEmojis,
			":sparkles: all requested packages already installed"))
		return t, nil
	}
	if i.DryRun {
		logger.Info(changes.FormatOutput(i.Output))
		return t, nil
	}

	if err := i.Config.Execute(t, logger); err != nil {
		return nil, err
	}
	for _, spec := range t.NeuteredSpecs {
		logger.Warnf("history spec relaxed to %s to satisfy the request", spec)
	}
	return t, nil
}
