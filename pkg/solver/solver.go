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

/*Package solver computes final environment states. It owns the policy
around the raw satisfiability query: seeding the working spec set from
history and the installed records, freezing and pinning, quarantining
inconsistent packages, backing off from conflicts by relaxing
historical constraints, and the post-solve dependency policies.
*/
package solver

import (
	"fmt"

	"github.com/Masterminds/log-go"
	"github.com/pkg/errors"

	"github.com/strata-sandbox/strata/internal/depgraph"
	"github.com/strata-sandbox/strata/internal/sat"
	"github.com/strata-sandbox/strata/pkg/diff"
	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// Solver solves final states for one environment against one index.
type Solver struct {
	Env   Environment
	Index Index
	// NewBackend defaults to the MAXSAT encoder when nil.
	NewBackend BackendFactory

	// Interpreter is the package whose minor version is held back
	// unless explicitly requested, "python" in most environments.
	Interpreter string
	// OwnName is this tool's own package name; an installed copy is
	// never downgraded by a solve.
	OwnName string
	// AggressiveUpdates are specs always relaxed to their newest
	// version regardless of freezing.
	AggressiveUpdates []matchspec.MatchSpec
	// TrackFeatures are pseudo-specs selecting records by track
	// feature; they join the spec set on every solve.
	TrackFeatures []matchspec.MatchSpec
}

// Result is the outcome of a solve, before it is turned into a diff.
type Result struct {
	Records []record.Record
	// NeuteredSpecs are history specs the conflict back-off relaxed
	// to get a solution; callers persist them so history stays honest.
	NeuteredSpecs []matchspec.MatchSpec
	// PromotedSpecs are dependencies raised to user-requested status
	// by the deps policies.
	PromotedSpecs []matchspec.MatchSpec
}

// SolveFinalState computes the full record set the environment should
// hold after applying the request, in dependency order.
func (s *Solver) SolveFinalState(opts Options) ([]record.Record, error) {
	res, err := s.solve(opts)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// SolveForDiff solves and reduces the outcome to the records to unlink
// and link.
func (s *Solver) SolveForDiff(opts Options) (diff.Changes, error) {
	previous, err := s.Env.InstalledRecords()
	if err != nil {
		return diff.Changes{}, err
	}
	// diff reverses this order to unlink dependents first, so the
	// installed set must be in dependency order, not storage order
	previous = depgraph.New(previous).Sorted()
	final, err := s.SolveFinalState(opts)
	if err != nil {
		return diff.Changes{}, err
	}
	var reinstall []matchspec.MatchSpec
	if opts.ForceReinstall {
		reinstall = opts.SpecsToAdd
	}
	return diff.Compute(previous, final, diff.Options{
		ForceReinstall: reinstall,
		Interpreter:    s.Interpreter,
	}), nil
}

// SolveForTransaction solves and packages the outcome together with
// the spec bookkeeping a caller needs to execute and record it.
func (s *Solver) SolveForTransaction(prefix string, opts Options) (*diff.Transaction, error) {
	previous, err := s.Env.InstalledRecords()
	if err != nil {
		return nil, err
	}
	previous = depgraph.New(previous).Sorted()
	res, err := s.solve(opts)
	if err != nil {
		return nil, err
	}
	var reinstall []matchspec.MatchSpec
	if opts.ForceReinstall {
		reinstall = opts.SpecsToAdd
	}
	changes := diff.Compute(previous, res.Records, diff.Options{
		ForceReinstall: reinstall,
		Interpreter:    s.Interpreter,
	})
	specsAdded := append([]matchspec.MatchSpec{}, opts.SpecsToAdd...)
	specsAdded = append(specsAdded, res.PromotedSpecs...)
	return &diff.Transaction{
		Prefix:        prefix,
		Unlink:        changes.Unlink,
		Link:          changes.Link,
		SpecsAdded:    specsAdded,
		SpecsRemoved:  opts.SpecsToRemove,
		NeuteredSpecs: res.NeuteredSpecs,
	}, nil
}

func (s *Solver) solve(opts Options) (*Result, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	if opts.Update == UpdateDeps {
		return s.solveUpdateDeps(opts)
	}

	st, fast, err := s.collect(opts)
	if err != nil {
		return nil, err
	}
	if fast != nil {
		return fast, nil
	}

	if opts.Deps == NoDeps {
		return s.noDeps(st, opts)
	}

	if err := s.processRemove(st, opts); err != nil {
		return nil, err
	}
	if err := s.assignTargets(st, opts); err != nil {
		return nil, err
	}
	s.quarantineInconsistent(st)

	solution, err := s.runSolve(st, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Records: solution, NeuteredSpecs: st.neutered}
	if err := s.postProcess(st, res, opts); err != nil {
		return nil, err
	}
	res.Records = depgraph.New(res.Records).Sorted()
	return res, nil
}

func validate(opts Options) error {
	removeNames := map[string]bool{}
	for _, spec := range opts.SpecsToRemove {
		removeNames[spec.Name()] = true
	}
	for _, spec := range opts.SpecsToAdd {
		if removeNames[spec.Name()] {
			return errors.Errorf("cannot add and remove %q in the same request", spec.Name())
		}
	}
	return nil
}

// collect seeds the working state and handles the no-solve fast paths.
// A non-nil Result means the request was answered without the back-end.
func (s *Solver) collect(opts Options) (*state, *Result, error) {
	installed, err := s.Env.InstalledRecords()
	if err != nil {
		return nil, nil, err
	}
	history, err := s.Env.RequestedSpecsMap()
	if err != nil {
		return nil, nil, err
	}
	pinned, err := s.Env.PinnedSpecs()
	if err != nil {
		return nil, nil, err
	}
	if opts.IgnorePinned {
		pinned = nil
	}

	// forced removal unlinks matching records as they stand
	if opts.Force && len(opts.SpecsToRemove) > 0 {
		var kept []record.Record
		for _, r := range installed {
			matched := false
			for _, spec := range opts.SpecsToRemove {
				if spec.Match(r) {
					matched = true
					break
				}
			}
			if !matched {
				kept = append(kept, r)
			}
		}
		return nil, &Result{Records: depgraph.New(kept).Sorted()}, nil
	}

	// an already-satisfied request needs no solve
	if len(opts.SpecsToRemove) == 0 && !opts.Prune && !opts.noFastPath {
		allSatisfied := true
		for _, spec := range opts.SpecsToAdd {
			found := false
			for _, r := range installed {
				if spec.Match(r) {
					found = true
					break
				}
			}
			if !found {
				allSatisfied = false
				break
			}
		}
		if allSatisfied && opts.Update != UpdateAll {
			log.Debug("all requested specs already satisfied, skipping solve")
			return nil, &Result{Records: depgraph.New(installed).Sorted()}, nil
		}
	}

	st := &state{
		specs:         map[string]entry{},
		solution:      append([]record.Record{}, installed...),
		installed:     installed,
		history:       history,
		pinned:        pinned,
		trackFeatures: s.TrackFeatures,
		addBack:       map[string]record.Record{},
	}

	for name, spec := range history {
		st.specs[name] = entry{spec: spec, fromHistory: true}
	}
	// every installed package participates in the solve, by name when
	// nothing stronger is on file; with prune, uncovered packages must
	// stay droppable and are not seeded
	if !opts.Prune {
		for _, r := range installed {
			if _, ok := st.specs[r.Name]; !ok {
				st.specs[r.Name] = entry{spec: matchspec.FromName(r.Name)}
			}
		}
	}

	union := st.specList()
	union = append(union, opts.SpecsToAdd...)
	union = append(union, pinned...)
	union = append(union, s.AggressiveUpdates...)
	union = append(union, s.TrackFeatures...)
	pool, err := s.Index.ReducedIndex(union)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("reduced index holds %d candidate records", len(pool))

	factory := s.NewBackend
	if factory == nil {
		factory = DefaultBackend
	}
	st.backend = factory(pool, installed)
	return st, nil, nil
}

// processRemove takes the removal specs out of the working solution,
// dependents and feature groups included, and clears their entries
// from the specs map.
func (s *Solver) processRemove(st *state, opts Options) error {
	if len(opts.SpecsToRemove) == 0 {
		return nil
	}
	g := depgraph.New(st.solution)
	var notFound []matchspec.MatchSpec
	for _, spec := range opts.SpecsToRemove {
		removed := g.RemoveSpec(spec)
		if len(removed) == 0 {
			notFound = append(notFound, spec)
			continue
		}
		for _, r := range removed {
			log.Debugf("removing %s from the working solution", r)
			if hist, ok := st.history[r.Name]; ok && len(hist.TrackFeatures()) > 0 {
				// the feature request outlives the package
				continue
			}
			delete(st.specs, r.Name)
		}
	}
	if len(notFound) > 0 {
		return &PackagesNotFoundError{Specs: notFound}
	}
	st.solution = g.Records()
	return nil
}

// assignTargets walks the installed records and decides, per update
// policy, how strongly each one holds on to its current version. It
// then applies pins, the interpreter minor lock, the tool's own floor,
// and finally the explicit request.
func (s *Solver) assignTargets(st *state, opts Options) error {
	aggressive := map[string]bool{}
	for _, spec := range s.AggressiveUpdates {
		aggressive[spec.Name()] = true
	}
	addByName := map[string]matchspec.MatchSpec{}
	for _, spec := range opts.SpecsToAdd {
		addByName[spec.Name()] = spec
	}

	var frozenConflicts map[string]bool
	if opts.Update == FreezeInstalled {
		frozenConflicts = s.freezeConflicts(st, opts)
	}

	for _, r := range st.installed {
		e, ok := st.specs[r.Name]
		if !ok {
			continue
		}
		rec := r
		switch {
		case aggressive[r.Name]:
			e.spec = matchspec.FromName(r.Name)
		case r.Kind == record.Unmanageable || r.Kind == record.Foreign || r.Kind == record.Virtual:
			e.spec = matchspec.FromRecord(r)
			e.locked = true
		case opts.Update == FreezeInstalled && !frozenConflicts[r.Name]:
			e.spec = matchspec.FromRecord(r)
			e.target = &rec
		default:
			e.target = &rec
		}
		st.specs[r.Name] = e
	}

	for _, pin := range st.pinned {
		name := pin.Name()
		if add, ok := addByName[name]; ok {
			if !s.compatible(st, add, pin) {
				return &SpecsConfigurationConflictError{
					RequestedSpecs: []matchspec.MatchSpec{add},
					PinnedSpecs:    []matchspec.MatchSpec{pin},
				}
			}
			merged, err := matchspec.Merge(add, pin)
			if err != nil {
				return &SpecsConfigurationConflictError{
					RequestedSpecs: []matchspec.MatchSpec{add},
					PinnedSpecs:    []matchspec.MatchSpec{pin},
				}
			}
			st.specs[name] = entry{spec: merged, explicit: true, pinned: true}
			continue
		}
		// pins only constrain packages that are in play
		if _, installed := st.installedByName(name); !installed {
			if _, requested := st.specs[name]; !requested {
				continue
			}
		}
		st.specs[name] = entry{spec: pin, pinned: true}
	}

	// pins are already merged, so the rewrite leaves them alone
	if opts.Update == UpdateAll {
		for name, e := range st.specs {
			if e.locked || e.pinned {
				continue
			}
			e.spec = matchspec.FromName(name)
			e.target = nil
			st.specs[name] = e
		}
	}

	if err := s.lockInterpreter(st, addByName, opts); err != nil {
		return err
	}
	s.holdOwnVersion(st, addByName)

	// the explicit request always lands last and wins
	for _, spec := range opts.SpecsToAdd {
		name := spec.Name()
		if e, ok := st.specs[name]; ok && e.pinned {
			continue // merged with the pin above
		}
		st.specs[name] = entry{spec: spec, explicit: true}
	}
	return nil
}

// freezeConflicts reports which installed packages cannot keep their
// exact version alongside the explicit request.
func (s *Solver) freezeConflicts(st *state, opts Options) map[string]bool {
	probe := make([]matchspec.MatchSpec, 0, len(st.installed)+len(opts.SpecsToAdd))
	probe = append(probe, opts.SpecsToAdd...)
	for _, r := range st.installed {
		probe = append(probe, matchspec.FromRecord(r))
	}
	conflicting, _ := st.backend.GetConflictingSpecs(probe, opts.SpecsToAdd)
	out := map[string]bool{}
	for _, spec := range conflicting {
		out[spec.Name()] = true
	}
	return out
}

// lockInterpreter holds the interpreter to its installed minor series
// unless the user asked for it explicitly.
func (s *Solver) lockInterpreter(st *state, addByName map[string]matchspec.MatchSpec, opts Options) error {
	if s.Interpreter == "" {
		return nil
	}
	if _, explicit := addByName[s.Interpreter]; explicit {
		return nil
	}
	r, ok := st.installedByName(s.Interpreter)
	if !ok {
		return nil
	}
	v, err := r.ParsedVersion()
	if err != nil {
		return errors.Wrapf(err, "installed %s has unparseable version %q", s.Interpreter, r.Version)
	}
	series := v.MinorSeries()
	spec, err := matchspec.Parse(fmt.Sprintf("%s %s.*", s.Interpreter, series))
	if err != nil {
		return err
	}
	e := entry{spec: spec, locked: true}
	if opts.Update != UpdateAll {
		rec := r
		e.target = &rec
	}
	st.specs[s.Interpreter] = e
	return nil
}

// holdOwnVersion keeps an installed copy of this tool from being
// downgraded as a side effect of a solve.
func (s *Solver) holdOwnVersion(st *state, addByName map[string]matchspec.MatchSpec) {
	if s.OwnName == "" {
		return
	}
	if _, explicit := addByName[s.OwnName]; explicit {
		return
	}
	r, ok := st.installedByName(s.OwnName)
	if !ok {
		return
	}
	spec, err := matchspec.Parse(fmt.Sprintf("%s >=%s", s.OwnName, r.Version))
	if err != nil {
		return
	}
	st.specs[s.OwnName] = entry{spec: spec, locked: true}
}

// quarantineInconsistent pulls broken installed records out of the
// working solution so they cannot anchor the solve, relaxing their
// entries to name-only. They are added back afterwards when the new
// solution leaves room for them.
func (s *Solver) quarantineInconsistent(st *state) {
	ok, bad := st.backend.BadInstalled(st.solution)
	if ok {
		return
	}
	doomed := map[record.Key]bool{}
	for _, r := range bad {
		log.Debugf("environment is inconsistent: quarantining %s", r)
		doomed[r.Key()] = true
		st.addBack[r.Name] = r
		if e, ok := st.specs[r.Name]; ok && (e.explicit || e.pinned || e.locked) {
			continue
		}
		st.specs[r.Name] = entry{spec: matchspec.FromName(r.Name)}
	}
	st.dropFromSolution(doomed)
}

// runSolve checks availability, backs off from conflicts by neutering
// relaxable entries, runs the back-end, and restores quarantined
// records the solution leaves room for.
func (s *Solver) runSolve(st *state, opts Options) ([]record.Record, error) {
	var missing []matchspec.MatchSpec
	for _, spec := range st.solveList() {
		if spec.Optional() {
			continue
		}
		if len(st.backend.FindMatches(spec)) == 0 {
			missing = append(missing, spec)
		}
	}
	if len(missing) > 0 {
		return nil, &PackagesNotFoundError{Specs: missing}
	}

	for round := 0; round <= len(st.specs); round++ {
		conflicting, _ := st.backend.GetConflictingSpecs(st.solveList(), opts.SpecsToAdd)
		if len(conflicting) == 0 {
			break
		}
		var pinConflicts []matchspec.MatchSpec
		for _, c := range conflicting {
			if e, ok := st.specs[c.Name()]; ok && e.pinned {
				pinConflicts = append(pinConflicts, e.spec)
			}
		}
		if len(pinConflicts) > 0 {
			return nil, &SpecsConfigurationConflictError{
				RequestedSpecs: opts.SpecsToAdd,
				PinnedSpecs:    pinConflicts,
			}
		}
		neutered := false
		for _, c := range conflicting {
			e, ok := st.specs[c.Name()]
			if !ok || e.explicit || e.locked {
				continue
			}
			if e.spec.IsNameOnly() && e.target == nil {
				continue
			}
			log.Debugf("neutering conflicting spec %s", e.spec)
			if e.fromHistory {
				st.neutered = append(st.neutered, e.spec)
			}
			e.spec = matchspec.FromName(c.Name())
			e.target = nil
			st.specs[c.Name()] = e
			neutered = true
		}
		if !neutered {
			// nothing left to relax, let the back-end name the conflict
			break
		}
	}

	// soft targets ride along as preferences: the back-end tries to
	// keep each targeted record, but a hard constraint wins. Under
	// update-all even the history is no longer a preference.
	var prefs []matchspec.MatchSpec
	if opts.Update != UpdateAll {
		prefs = st.historyList()
	}
	for _, name := range st.names() {
		if e := st.specs[name]; e.target != nil {
			prefs = append(prefs, matchspec.FromRecord(*e.target))
		}
	}

	solution, err := st.backend.Solve(st.solveList(), prefs, opts.SpecsToAdd)
	if err != nil {
		var unsat *sat.UnsatisfiableError
		if errors.As(err, &unsat) {
			return nil, &UnsatisfiableError{Specs: unsat.Specs}
		}
		return nil, err
	}

	present := map[string]bool{}
	for _, r := range solution {
		present[r.Name] = true
	}
	for name, r := range st.addBack {
		if present[name] {
			continue
		}
		if depsSatisfied(r, solution) {
			log.Debugf("restoring quarantined %s", r)
			solution = append(solution, r)
		}
	}
	record.Sort(solution)
	return solution, nil
}

func depsSatisfied(r record.Record, solution []record.Record) bool {
	for _, depStr := range r.Depends {
		spec, err := matchspec.Parse(depStr)
		if err != nil {
			continue
		}
		found := false
		for _, cand := range solution {
			if spec.Match(cand) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// compatible reports whether some candidate satisfies both specs.
func (s *Solver) compatible(st *state, a, b matchspec.MatchSpec) bool {
	for _, r := range st.backend.FindMatches(a) {
		if b.Match(r) {
			return true
		}
	}
	return false
}
