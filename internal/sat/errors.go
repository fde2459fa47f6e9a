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

package sat

import (
	"strings"

	"github.com/strata-sandbox/strata/pkg/matchspec"
)

// UnsatisfiableError reports that no model satisfies the hard
// constraints. Specs holds the conflicting subset when it could be
// narrowed down, or the full request otherwise.
type UnsatisfiableError struct {
	Specs []matchspec.MatchSpec
}

func (e *UnsatisfiableError) Error() string {
	if len(e.Specs) == 0 {
		return "the requested packages cannot be installed together"
	}
	parts := make([]string, 0, len(e.Specs))
	for _, s := range e.Specs {
		parts = append(parts, s.String())
	}
	return "the following packages are incompatible: " + strings.Join(parts, ", ")
}
