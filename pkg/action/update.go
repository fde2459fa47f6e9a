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
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/strata-sandbox/strata/pkg/diff"
	"github.com/strata-sandbox/strata/pkg/solver"
)

// Update moves the named packages, or the whole environment with All,
// to the newest versions the constraints allow.
type Update struct {
	Install

	// All updates every installed package instead of named ones.
	All bool
}

// NewUpdate constructs a new Update action by cloning an Install
// action's knobs, the two share everything but the update modifier.
func NewUpdate(cfg *Configuration) *Update {
	u := &Update{}
	// Install carries the shared flag surface.
	inst := NewInstall(cfg)
	if err := copier.Copy(&u.Install, inst); err != nil {
		u.Install = *inst
	}
	return u
}

// Run solves the update and, unless DryRun is set, executes it.
func (u *Update) Run(args []string, logger log.Logger) (*diff.Transaction, error) {
	if u.All && len(args) > 0 {
		return nil, errors.New("--all takes no package arguments")
	}
	if !u.All && len(args) == 0 {
		return nil, errors.New("no packages to update, name some or pass --all")
	}

	opts, err := u.options(args)
	if err != nil {
		return nil, err
	}
	if u.All {
		opts.Update = solver.UpdateAll
	} else {
		opts.Update = solver.UpdateSpecs
	}

	s := u.Config.NewSolver()
	t, err := s.SolveForTransaction(u.Config.Prefix.Prefix(), opts)
	if err != nil {
		return nil, err
	}

	changes := diff.Changes{Unlink: t.Unlink, Link: t.Link}
	if changes.Empty() {
		logger.Info("everything already up to date")
		return t, nil
	}
	if u.DryRun {
		logger.Info(changes.FormatOutput(u.Output))
		return t, nil
	}
	if err := u.Config.Execute(t, logger); err != nil {
		return nil, err
	}
	return t, nil
}
