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

/*Package sat encodes package selection as a weighted MAXSAT problem.

Each candidate record is one Boolean variable, keyed by its identity
string. Hard constraints carry the rules that can never be violated:
at most one record per package name, every requested spec satisfied,
dependencies present, run constraints honored. Soft constraints carry
the preferences: higher versions, fewer tracked features, minimal
change against the installed set. The solver picks the model with the
lowest total violation weight.
*/
package sat

import (
	"sort"

	"github.com/crillab/gophersat/maxsat"
	"github.com/pkg/errors"

	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// Weights for the soft-constraint tiers. Features dominate versions,
// versions dominate churn, so the tiers never trade against each other
// for realistic pool sizes.
const (
	weightFeature   = 1000
	weightVersion   = 2
	weightSelection = 1
	weightInstalled = 1
	weightHistory   = 500
)

// Backend holds one candidate pool and answers solve queries against
// it. It is not safe for concurrent use.
type Backend struct {
	pool      []record.Record
	byName    map[string][]record.Record // sorted ascending by version
	installed map[record.Key]bool
}

// New builds a backend over the candidate pool. The installed records
// are used for the minimal-change preference; they should be part of
// the pool if keeping them is to be possible.
func New(pool, installed []record.Record) *Backend {
	b := &Backend{
		byName:    make(map[string][]record.Record),
		installed: make(map[record.Key]bool, len(installed)),
	}
	seen := make(map[record.Key]bool, len(pool))
	add := func(recs []record.Record) {
		for _, r := range recs {
			if seen[r.Key()] {
				continue
			}
			seen[r.Key()] = true
			b.pool = append(b.pool, r)
			b.byName[r.Name] = append(b.byName[r.Name], r)
		}
	}
	add(pool)
	add(installed)
	for _, r := range installed {
		b.installed[r.Key()] = true
	}
	record.Sort(b.pool)
	for name := range b.byName {
		record.Sort(b.byName[name])
	}
	return b
}

// FindMatches returns the pool records matching the spec, sorted.
func (b *Backend) FindMatches(spec matchspec.MatchSpec) []record.Record {
	var out []record.Record
	if spec.IsNameOnly() || !spec.NameIsGlob() {
		for _, r := range b.byName[spec.Name()] {
			if spec.Match(r) {
				out = append(out, r)
			}
		}
		return out
	}
	for _, r := range b.pool {
		if spec.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Solve selects one record per needed name such that every spec is
// satisfied and all dependency and constrain rules hold. historySpecs
// are preferences, not requirements: the solver tries to keep them
// satisfied but may not. On failure it returns an UnsatisfiableError
// naming a conflicting subset of the specs.
func (b *Backend) Solve(specs, historySpecs, addSpecs []matchspec.MatchSpec) ([]record.Record, error) {
	constrs := b.hardConstraints(specs)
	if constrs == nil {
		// a non-optional spec matched nothing in the pool
		conflicting, _ := b.GetConflictingSpecs(specs, addSpecs)
		return nil, &UnsatisfiableError{Specs: conflicting}
	}
	constrs = append(constrs, b.softConstraints(historySpecs)...)

	model, _ := maxsat.New(constrs...).Solve()
	if model == nil {
		conflicting, _ := b.GetConflictingSpecs(specs, addSpecs)
		return nil, &UnsatisfiableError{Specs: conflicting}
	}

	var out []record.Record
	for _, r := range b.pool {
		if model[string(r.Key())] {
			out = append(out, r)
		}
	}
	record.Sort(out)
	return out, nil
}

// GetConflictingSpecs reduces an unsatisfiable spec set to the specs
// actually involved in the conflict: the ones whose individual removal
// restores satisfiability. A satisfiable input returns nil.
func (b *Backend) GetConflictingSpecs(specs, addSpecs []matchspec.MatchSpec) ([]matchspec.MatchSpec, error) {
	if b.satisfiable(specs) {
		return nil, nil
	}
	addNames := make(map[string]bool, len(addSpecs))
	for _, s := range addSpecs {
		addNames[s.Name()] = true
	}
	var conflicting []matchspec.MatchSpec
	for i := range specs {
		trimmed := make([]matchspec.MatchSpec, 0, len(specs)-1)
		trimmed = append(trimmed, specs[:i]...)
		trimmed = append(trimmed, specs[i+1:]...)
		if b.satisfiable(trimmed) {
			conflicting = append(conflicting, specs[i])
		}
	}
	if len(conflicting) == 0 {
		// no single spec is responsible; blame the explicitly
		// requested ones so the caller has something to report
		for _, s := range specs {
			if addNames[s.Name()] {
				conflicting = append(conflicting, s)
			}
		}
	}
	if len(conflicting) == 0 {
		conflicting = specs
	}
	return conflicting, errors.Errorf("%d conflicting specs", len(conflicting))
}

func (b *Backend) satisfiable(specs []matchspec.MatchSpec) bool {
	constrs := b.hardConstraints(specs)
	if constrs == nil {
		return false
	}
	model, _ := maxsat.New(constrs...).Solve()
	return model != nil
}

// BadInstalled reports whether the installed set is self-consistent,
// and returns the records whose dependencies or constrains are broken
// within it. The check iterates to a fixpoint: removing a broken record
// can break its dependents too.
func (b *Backend) BadInstalled(installed []record.Record) (bool, []record.Record) {
	good := make(map[record.Key]record.Record, len(installed))
	for _, r := range installed {
		good[r.Key()] = r
	}
	bad := map[record.Key]record.Record{}

	satisfied := func(specStr string) bool {
		spec, err := matchspec.Parse(specStr)
		if err != nil {
			return true
		}
		for _, r := range good {
			if spec.Match(r) {
				return true
			}
		}
		return false
	}
	violated := func(specStr string) bool {
		spec, err := matchspec.Parse(specStr)
		if err != nil {
			return false
		}
		for _, r := range good {
			if r.Name == spec.Name() && !spec.Match(r) {
				return true
			}
		}
		return false
	}

	for changed := true; changed; {
		changed = false
		for k, r := range good {
			broken := false
			for _, d := range r.Depends {
				if !satisfied(d) {
					broken = true
					break
				}
			}
			if !broken {
				for _, c := range r.Constrains {
					if violated(c) {
						broken = true
						break
					}
				}
			}
			if broken {
				delete(good, k)
				bad[k] = r
				changed = true
			}
		}
	}

	out := make([]record.Record, 0, len(bad))
	for _, r := range bad {
		out = append(out, r)
	}
	record.Sort(out)
	return len(out) == 0, out
}

// hardConstraints builds the rule clauses for the given specs over the
// pool. It returns nil when a non-optional spec has no candidates at
// all, which is unsatisfiable before the solver runs.
func (b *Backend) hardConstraints(specs []matchspec.MatchSpec) []maxsat.Constr {
	lit := func(r record.Record, negated bool) maxsat.Lit {
		return maxsat.Lit{Var: string(r.Key()), Negated: negated}
	}

	var constrs []maxsat.Constr

	// selection cost keeps unneeded records out of the model
	for _, r := range b.pool {
		constrs = append(constrs, maxsat.WeightedClause(
			[]maxsat.Lit{lit(r, true)}, b.selectionCost(r)))
	}

	for _, spec := range specs {
		matches := b.FindMatches(spec)
		if spec.Optional() {
			// optional: forbid same-name records that violate it
			for _, r := range b.byName[spec.Name()] {
				if !spec.Match(r) {
					constrs = append(constrs, maxsat.HardClause(lit(r, true)))
				}
			}
			continue
		}
		if len(matches) == 0 {
			return nil
		}
		lits := make([]maxsat.Lit, 0, len(matches))
		coeffs := make([]int, 0, len(matches))
		for _, r := range matches {
			lits = append(lits, lit(r, false))
			coeffs = append(coeffs, 1)
		}
		constrs = append(constrs, maxsat.HardPBConstr(lits, coeffs, 1))
	}

	// dependency and constrain clauses for every candidate
	for _, r := range b.pool {
		for _, depStr := range r.Depends {
			dep, err := matchspec.Parse(depStr)
			if err != nil {
				continue
			}
			depMatches := b.FindMatches(dep)
			if len(depMatches) == 0 {
				constrs = append(constrs, maxsat.HardClause(lit(r, true)))
				continue
			}
			clause := make([]maxsat.Lit, 0, len(depMatches)+1)
			clause = append(clause, lit(r, true))
			for _, d := range depMatches {
				clause = append(clause, lit(d, false))
			}
			constrs = append(constrs, maxsat.HardClause(clause...))
		}
		for _, conStr := range r.Constrains {
			con, err := matchspec.Parse(conStr)
			if err != nil {
				continue
			}
			for _, q := range b.byName[con.Name()] {
				if !con.Match(q) {
					constrs = append(constrs, maxsat.HardClause(lit(r, true), lit(q, true)))
				}
			}
		}
	}

	// at most one record per name
	for _, name := range b.sortedNames() {
		recs := b.byName[name]
		if len(recs) < 2 {
			continue
		}
		lits := make([]maxsat.Lit, 0, len(recs))
		coeffs := make([]int, 0, len(recs))
		for _, r := range recs {
			lits = append(lits, lit(r, true))
			coeffs = append(coeffs, 1)
		}
		constrs = append(constrs, maxsat.HardPBConstr(lits, coeffs, len(lits)-1))
	}

	return constrs
}

// softConstraints builds the preference clauses that are allowed to be
// violated, beyond the per-record selection costs.
func (b *Backend) softConstraints(historySpecs []matchspec.MatchSpec) []maxsat.Constr {
	var constrs []maxsat.Constr
	// keeping an installed record is cheaper than dropping it
	for _, r := range b.pool {
		if b.installed[r.Key()] {
			constrs = append(constrs, maxsat.WeightedClause(
				[]maxsat.Lit{{Var: string(r.Key())}}, weightInstalled))
		}
	}
	// history specs are wishes: try to keep each satisfied
	for _, spec := range historySpecs {
		matches := b.FindMatches(spec)
		if len(matches) == 0 {
			continue
		}
		lits := make([]maxsat.Lit, 0, len(matches))
		for _, r := range matches {
			lits = append(lits, maxsat.Lit{Var: string(r.Key())})
		}
		constrs = append(constrs, maxsat.WeightedClause(lits, weightHistory))
	}
	return constrs
}

// selectionCost is the soft penalty for having the record in the model
// at all: tracked features weigh most, then distance from the newest
// version of the name, then a base unit that keeps unneeded packages
// out of the solution.
func (b *Backend) selectionCost(r record.Record) int {
	recs := b.byName[r.Name]
	rank := 0
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Key() == r.Key() {
			rank = len(recs) - 1 - i
			break
		}
	}
	return weightFeature*len(r.TrackFeatures) + weightVersion*rank + weightSelection
}

func (b *Backend) sortedNames() []string {
	names := make([]string, 0, len(b.byName))
	for n := range b.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
