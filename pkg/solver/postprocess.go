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
	"github.com/Masterminds/log-go"

	"github.com/strata-sandbox/strata/internal/depgraph"
	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// postProcess applies the dependency policies and pruning to a solved
// record set.
func (s *Solver) postProcess(st *state, res *Result, opts Options) error {
	if opts.Deps == OnlyDeps && opts.Update != UpdateDeps {
		s.onlyDeps(st, res, opts)
	}

	if opts.Prune {
		g := depgraph.New(res.Records)
		keep := make([]matchspec.MatchSpec, 0, len(st.specs))
		for _, name := range st.names() {
			e := st.specs[name]
			if e.spec.Optional() {
				continue
			}
			keep = append(keep, e.spec)
		}
		keep = append(keep, opts.SpecsToAdd...)
		for _, r := range g.Prune(keep) {
			log.Debugf("pruning %s, nothing requires it", r)
		}
		res.Records = g.Records()
	}
	return nil
}

// noDeps replays the request on the literal previous record set
// without solving: remove what the removal specs match, then swap in
// the best candidate for each added spec, dependencies untouched and
// unenforced.
func (s *Solver) noDeps(st *state, opts Options) (*Result, error) {
	result := append([]record.Record{}, st.installed...)

	if len(opts.SpecsToRemove) > 0 {
		var notFound []matchspec.MatchSpec
		for _, spec := range opts.SpecsToRemove {
			kept := result[:0]
			matched := false
			for _, r := range result {
				if spec.Match(r) {
					matched = true
					continue
				}
				kept = append(kept, r)
			}
			result = kept
			if !matched {
				notFound = append(notFound, spec)
			}
		}
		if len(notFound) > 0 {
			return nil, &PackagesNotFoundError{Specs: notFound}
		}
	}

	var missing []matchspec.MatchSpec
	for _, spec := range opts.SpecsToAdd {
		matches := st.backend.FindMatches(spec)
		if len(matches) == 0 {
			missing = append(missing, spec)
			continue
		}
		chosen := matches[len(matches)-1] // candidates sort ascending
		kept := result[:0]
		for _, r := range result {
			if r.Name != chosen.Name {
				kept = append(kept, r)
			}
		}
		result = append(kept, chosen)
	}
	if len(missing) > 0 {
		return nil, &PackagesNotFoundError{Specs: missing}
	}
	return &Result{Records: depgraph.New(result).Sorted()}, nil
}

// onlyDeps drops the requested packages themselves from the solution,
// keeping their dependency closure, and promotes the direct
// dependencies to user-requested status so history records what the
// environment now intentionally holds. A requested package that was
// already installed before the request survives.
func (s *Solver) onlyDeps(st *state, res *Result, opts Options) {
	g := depgraph.New(res.Records)

	for _, spec := range opts.SpecsToAdd {
		if r, ok := g.NodeByName(spec.Name()); ok {
			for _, dep := range g.DirectDeps(r) {
				res.PromotedSpecs = append(res.PromotedSpecs, matchspec.FromName(dep.Name))
			}
		}
	}

	installedKeys := map[record.Key]bool{}
	for _, r := range st.installed {
		installedKeys[r.Key()] = true
	}
	removed := g.RemoveYoungestDescendantsWithSpecs(opts.SpecsToAdd)
	result := g.Records()
	for _, r := range removed {
		if installedKeys[r.Key()] {
			result = append(result, r)
		}
	}
	record.Sort(result)
	res.Records = result
}

// solveUpdateDeps runs a first solve to learn the dependency closure of
// the requested packages, promotes those dependencies to bare
// user-requested specs, and solves again with the enlarged request.
func (s *Solver) solveUpdateDeps(opts Options) (*Result, error) {
	inner := opts
	inner.Update = UpdateSpecs
	inner.Deps = DepsNotSet
	inner.noFastPath = true
	first, err := s.solve(inner)
	if err != nil {
		return nil, err
	}

	g := depgraph.New(first.Records)
	pinned, err := s.Env.PinnedSpecs()
	if err != nil {
		return nil, err
	}
	protected := map[string]bool{s.Interpreter: true, s.OwnName: true}
	if !opts.IgnorePinned {
		for _, p := range pinned {
			protected[p.Name()] = true
		}
	}
	addNames := map[string]bool{}
	for _, spec := range opts.SpecsToAdd {
		addNames[spec.Name()] = true
	}

	var promoted []matchspec.MatchSpec
	for _, spec := range opts.SpecsToAdd {
		r, ok := g.NodeByName(spec.Name())
		if !ok {
			continue
		}
		for _, anc := range g.Ancestors(r) {
			if protected[anc.Name] || addNames[anc.Name] {
				continue
			}
			addNames[anc.Name] = true
			promoted = append(promoted, matchspec.FromName(anc.Name))
		}
	}
	log.Debugf("promoting %d dependencies to user-requested", len(promoted))

	second := opts
	second.Update = UpdateSpecs
	second.noFastPath = true
	second.SpecsToAdd = append(append([]matchspec.MatchSpec{}, opts.SpecsToAdd...), promoted...)
	if second.Deps == OnlyDeps {
		// the request already names the dependencies themselves
		second.Deps = DepsNotSet
	}
	res, err := s.solve(second)
	if err != nil {
		return nil, err
	}
	res.PromotedSpecs = append(res.PromotedSpecs, promoted...)
	return res, nil
}
