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
	"fmt"
	"strings"

	"github.com/strata-sandbox/strata/pkg/matchspec"
)

// PackagesNotFoundError reports specs that match nothing in the
// channels being solved against.
type PackagesNotFoundError struct {
	Specs []matchspec.MatchSpec
}

func (e *PackagesNotFoundError) Error() string {
	return "the following packages are not available from current channels: " +
		joinSpecs(e.Specs)
}

// UnsatisfiableError reports that the requested specs cannot be
// installed together. Specs holds the conflicting subset the back-end
// could isolate.
type UnsatisfiableError struct {
	Specs []matchspec.MatchSpec
}

func (e *UnsatisfiableError) Error() string {
	if len(e.Specs) == 0 {
		return "the requested packages cannot be installed together"
	}
	return "found conflicts when trying to solve the following packages: " +
		joinSpecs(e.Specs)
}

// SpecsConfigurationConflictError reports explicitly requested specs
// that contradict the environment's pinned specs.
type SpecsConfigurationConflictError struct {
	RequestedSpecs []matchspec.MatchSpec
	PinnedSpecs    []matchspec.MatchSpec
}

func (e *SpecsConfigurationConflictError) Error() string {
	return fmt.Sprintf("requested specs conflict with pinned specs: requested [%s], pinned [%s]",
		joinSpecs(e.RequestedSpecs), joinSpecs(e.PinnedSpecs))
}

func joinSpecs(specs []matchspec.MatchSpec) string {
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}
