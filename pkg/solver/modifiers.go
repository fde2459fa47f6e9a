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

package solver

import (
	"github.com/strata-sandbox/strata/pkg/matchspec"
)

// UpdateModifier selects the update policy for a solve.
type UpdateModifier int

const (
	// UpdateSpecs updates the requested packages and whatever that
	// drags along, leaving the rest alone where possible.
	UpdateSpecs UpdateModifier = iota
	// FreezeInstalled pins every installed package that does not
	// conflict with the request.
	FreezeInstalled
	// UpdateAll relaxes every package to its name, letting the whole
	// environment drift to the newest consistent versions.
	UpdateAll
	// UpdateDeps additionally promotes the dependencies of the
	// requested packages to user-requested status and updates them.
	UpdateDeps
)

func (m UpdateModifier) String() string {
	switch m {
	case FreezeInstalled:
		return "freeze-installed"
	case UpdateAll:
		return "update-all"
	case UpdateDeps:
		return "update-deps"
	default:
		return "update-specs"
	}
}

// DepsModifier selects how dependencies of the requested packages are
// treated in the final state.
type DepsModifier int

const (
	// DepsNotSet applies the normal policy: dependencies are
	// installed and recorded as dependencies.
	DepsNotSet DepsModifier = iota
	// NoDeps takes the requested packages without their dependencies.
	NoDeps
	// OnlyDeps installs the dependencies but not the requested
	// packages themselves.
	OnlyDeps
)

func (m DepsModifier) String() string {
	switch m {
	case NoDeps:
		return "no-deps"
	case OnlyDeps:
		return "only-deps"
	default:
		return "not-set"
	}
}

// Options carries the per-request solver knobs.
type Options struct {
	SpecsToAdd    []matchspec.MatchSpec
	SpecsToRemove []matchspec.MatchSpec

	Update UpdateModifier
	Deps   DepsModifier

	// Prune drops packages no requested or historic spec needs.
	Prune bool
	// Force skips solving on removal and unlinks matching records
	// as they are, broken dependents included.
	Force bool
	// ForceReinstall relinks requested packages even when the solved
	// record is the installed one.
	ForceReinstall bool
	// IgnorePinned disables the environment's pinned specs.
	IgnorePinned bool

	// noFastPath forces a real solve even when the request looks
	// already satisfied; set internally for update-deps re-solves.
	noFastPath bool
}
