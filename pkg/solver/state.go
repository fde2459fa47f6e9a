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
	"sort"

	"github.com/strata-sandbox/strata/internal/sat"
	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// Index supplies candidate records for a set of specs. The returned
// pool must be transitively closed: every dependency name reachable
// from the specs has its candidates included.
type Index interface {
	ReducedIndex(specs []matchspec.MatchSpec) ([]record.Record, error)
}

// Environment is the installed side of a solve: the records currently
// linked into the prefix, the specs the user asked for over time, and
// the pin file.
type Environment interface {
	InstalledRecords() ([]record.Record, error)
	RequestedSpecsMap() (map[string]matchspec.MatchSpec, error)
	PinnedSpecs() ([]matchspec.MatchSpec, error)
}

// Backend answers satisfiability queries over one candidate pool.
type Backend interface {
	Solve(specs, historySpecs, addSpecs []matchspec.MatchSpec) ([]record.Record, error)
	GetConflictingSpecs(specs, addSpecs []matchspec.MatchSpec) ([]matchspec.MatchSpec, error)
	BadInstalled(installed []record.Record) (bool, []record.Record)
	FindMatches(spec matchspec.MatchSpec) []record.Record
}

// BackendFactory builds a Backend over a pool. The default factory
// uses the MAXSAT encoder.
type BackendFactory func(pool, installed []record.Record) Backend

// DefaultBackend adapts the MAXSAT encoder to the Backend interface.
func DefaultBackend(pool, installed []record.Record) Backend {
	return sat.New(pool, installed)
}

// entry is one row of the working specs map. Entries evolve during the
// pipeline: a name-only entry can gain an exact freeze, a soft target,
// or a pin, and conflict back-off can strip those again.
type entry struct {
	spec matchspec.MatchSpec
	// target is the installed record this entry would rather keep,
	// a preference rather than a constraint.
	target *record.Record
	// fromHistory marks entries seeded from the request history.
	fromHistory bool
	// explicit marks entries the user asked for in this request.
	explicit bool
	// pinned marks pin-file entries: conflicts with these are fatal.
	pinned bool
	// locked entries are never neutered or relaxed: the interpreter
	// minor lock, unmanageable records, the tool's own floor.
	locked bool
}

// state carries one solve through the pipeline steps.
type state struct {
	specs     map[string]entry
	solution  []record.Record
	installed []record.Record
	history   map[string]matchspec.MatchSpec
	pinned    []matchspec.MatchSpec
	// trackFeatures join the spec set on every solve but never live in
	// the specs map: they are not per-name and cannot be neutered.
	trackFeatures []matchspec.MatchSpec
	addBack       map[string]record.Record
	neutered      []matchspec.MatchSpec
	backend       Backend
}

// solveList is the final spec set handed to the back-end: the specs map
// in name order plus the track-features pseudo-specs.
func (st *state) solveList() []matchspec.MatchSpec {
	return append(st.specList(), st.trackFeatures...)
}

func (st *state) names() []string {
	names := make([]string, 0, len(st.specs))
	for n := range st.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// specList flattens the specs map in name order.
func (st *state) specList() []matchspec.MatchSpec {
	out := make([]matchspec.MatchSpec, 0, len(st.specs))
	for _, n := range st.names() {
		out = append(out, st.specs[n].spec)
	}
	return out
}

func (st *state) historyList() []matchspec.MatchSpec {
	names := make([]string, 0, len(st.history))
	for n := range st.history {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]matchspec.MatchSpec, 0, len(names))
	for _, n := range names {
		out = append(out, st.history[n])
	}
	return out
}

func (st *state) installedByName(name string) (record.Record, bool) {
	for _, r := range st.solution {
		if r.Name == name {
			return r, true
		}
	}
	return record.Record{}, false
}

func (st *state) dropFromSolution(keys map[record.Key]bool) {
	kept := st.solution[:0]
	for _, r := range st.solution {
		if !keys[r.Key()] {
			kept = append(kept, r)
		}
	}
	st.solution = kept
}
