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

/*Package depgraph holds the dependency graph over one set of records,
typically the records installed in a prefix or a candidate solution. It
answers the ordering and reachability questions the solver asks:
topological iteration, ancestor queries, and subgraph removal by spec.
*/
package depgraph

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// Graph is a directed dependency graph over a record set. Edges point
// from a record to the records it depends on. A Graph is mutable: the
// removal operations drop nodes and their edges.
type Graph struct {
	order  []record.Key // insertion order, for deterministic iteration
	nodes  map[record.Key]record.Record
	byName map[string][]record.Key
	deps   map[record.Key]mapset.Set[record.Key]
	users  map[record.Key]mapset.Set[record.Key]
}

// New builds a graph from the given records. Dependency spec strings
// that do not parse are ignored: records from an index are well-formed,
// and a malformed spec cannot name an installed node.
func New(records []record.Record) *Graph {
	g := &Graph{
		nodes:  make(map[record.Key]record.Record, len(records)),
		byName: make(map[string][]record.Key),
		deps:   make(map[record.Key]mapset.Set[record.Key], len(records)),
		users:  make(map[record.Key]mapset.Set[record.Key], len(records)),
	}
	for _, r := range records {
		k := r.Key()
		if _, ok := g.nodes[k]; ok {
			continue
		}
		g.order = append(g.order, k)
		g.nodes[k] = r
		g.byName[r.Name] = append(g.byName[r.Name], k)
		g.deps[k] = mapset.NewThreadUnsafeSet[record.Key]()
		g.users[k] = mapset.NewThreadUnsafeSet[record.Key]()
	}
	for _, k := range g.order {
		r := g.nodes[k]
		for _, depStr := range r.Depends {
			spec, err := matchspec.Parse(depStr)
			if err != nil {
				continue
			}
			for _, dk := range g.byName[spec.Name()] {
				if spec.Match(g.nodes[dk]) {
					g.deps[k].Add(dk)
					g.users[dk].Add(k)
				}
			}
		}
	}
	return g
}

// Len returns the number of nodes left in the graph.
func (g *Graph) Len() int { return len(g.order) }

// Records returns the remaining records in insertion order.
func (g *Graph) Records() []record.Record {
	out := make([]record.Record, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.nodes[k])
	}
	return out
}

// NodeByName returns the single record with the given name, if present.
func (g *Graph) NodeByName(name string) (record.Record, bool) {
	keys := g.byName[name]
	if len(keys) == 0 {
		return record.Record{}, false
	}
	return g.nodes[keys[0]], true
}

// Sorted returns the records in dependency order: every record's
// dependencies appear before the record itself. Ties break by name then
// key, so the order is deterministic.
func (g *Graph) Sorted() []record.Record {
	indegree := make(map[record.Key]int, len(g.order))
	for _, k := range g.order {
		indegree[k] = g.deps[k].Cardinality()
	}
	ready := g.readyKeys(indegree, nil)

	var out []record.Record
	done := mapset.NewThreadUnsafeSet[record.Key]()
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		out = append(out, g.nodes[k])
		done.Add(k)
		var freed []record.Key
		for uk := range g.users[k].Iter() {
			indegree[uk]--
			if indegree[uk] == 0 {
				freed = append(freed, uk)
			}
		}
		ready = mergeSorted(g, ready, freed)
	}
	// dependency cycles keep indegrees positive; append leftovers in
	// insertion order so the sort stays total
	for _, k := range g.order {
		if !done.Contains(k) {
			out = append(out, g.nodes[k])
		}
	}
	return out
}

func (g *Graph) readyKeys(indegree map[record.Key]int, _ []record.Key) []record.Key {
	var ready []record.Key
	for _, k := range g.order {
		if indegree[k] == 0 {
			ready = append(ready, k)
		}
	}
	g.sortKeys(ready)
	return ready
}

func mergeSorted(g *Graph, ready, freed []record.Key) []record.Key {
	if len(freed) == 0 {
		return ready
	}
	out := append(ready, freed...)
	g.sortKeys(out)
	return out
}

func (g *Graph) sortKeys(keys []record.Key) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := g.nodes[keys[i]], g.nodes[keys[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return keys[i] < keys[j]
	})
}

// Ancestors returns every record the given record transitively depends
// on, in deterministic order.
func (g *Graph) Ancestors(r record.Record) []record.Record {
	return g.closure(r.Key(), g.deps)
}

// Descendants returns every record that transitively depends on the
// given record.
func (g *Graph) Descendants(r record.Record) []record.Record {
	return g.closure(r.Key(), g.users)
}

func (g *Graph) closure(start record.Key, edges map[record.Key]mapset.Set[record.Key]) []record.Record {
	seen := mapset.NewThreadUnsafeSet[record.Key]()
	queue := []record.Key{start}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		set, ok := edges[k]
		if !ok {
			continue
		}
		for nk := range set.Iter() {
			if seen.Add(nk) {
				queue = append(queue, nk)
			}
		}
	}
	var keys []record.Key
	for k := range seen.Iter() {
		keys = append(keys, k)
	}
	g.sortKeys(keys)
	out := make([]record.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.nodes[k])
	}
	return out
}

// RemoveSpec removes every record matching the spec, every record that
// transitively depends on one, and every record sharing a track feature
// with a matched record. It returns the removed records.
func (g *Graph) RemoveSpec(spec matchspec.MatchSpec) []record.Record {
	doomed := mapset.NewThreadUnsafeSet[record.Key]()
	for _, k := range g.order {
		if spec.Match(g.nodes[k]) {
			doomed.Add(k)
		}
	}
	// a matched track feature takes its whole feature group along
	features := mapset.NewThreadUnsafeSet[string]()
	for k := range doomed.Iter() {
		for _, f := range g.nodes[k].TrackFeatures {
			features.Add(f)
		}
	}
	if features.Cardinality() > 0 {
		for _, k := range g.order {
			for _, f := range g.nodes[k].TrackFeatures {
				if features.Contains(f) {
					doomed.Add(k)
				}
			}
		}
	}
	for k := range doomed.Clone().Iter() {
		for _, d := range g.Descendants(g.nodes[k]) {
			doomed.Add(d.Key())
		}
	}
	return g.removeKeys(doomed)
}

// Prune removes every record not reachable from a record matched by one
// of the given specs, following dependency edges. It returns the removed
// records.
func (g *Graph) Prune(specs []matchspec.MatchSpec) []record.Record {
	keep := mapset.NewThreadUnsafeSet[record.Key]()
	for _, k := range g.order {
		r := g.nodes[k]
		if r.Kind == record.Virtual || r.Kind == record.Foreign || r.Kind == record.Unmanageable {
			keep.Add(k)
			continue
		}
		for _, spec := range specs {
			if spec.Match(r) {
				keep.Add(k)
				break
			}
		}
	}
	for k := range keep.Clone().Iter() {
		for _, a := range g.Ancestors(g.nodes[k]) {
			keep.Add(a.Key())
		}
	}
	doomed := mapset.NewThreadUnsafeSet[record.Key]()
	for _, k := range g.order {
		if !keep.Contains(k) {
			doomed.Add(k)
		}
	}
	return g.removeKeys(doomed)
}

// RemoveYoungestDescendantsWithSpecs removes records that match one of
// the specs and have no remaining dependents: the leaves the specs name.
// It returns the removed records.
func (g *Graph) RemoveYoungestDescendantsWithSpecs(specs []matchspec.MatchSpec) []record.Record {
	doomed := mapset.NewThreadUnsafeSet[record.Key]()
	for _, k := range g.order {
		if g.users[k].Cardinality() > 0 {
			continue
		}
		for _, spec := range specs {
			if spec.Match(g.nodes[k]) {
				doomed.Add(k)
				break
			}
		}
	}
	return g.removeKeys(doomed)
}

// DirectDeps returns the record's direct dependencies still present in
// the graph.
func (g *Graph) DirectDeps(r record.Record) []record.Record {
	set, ok := g.deps[r.Key()]
	if !ok {
		return nil
	}
	var keys []record.Key
	for k := range set.Iter() {
		keys = append(keys, k)
	}
	g.sortKeys(keys)
	out := make([]record.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.nodes[k])
	}
	return out
}

func (g *Graph) removeKeys(doomed mapset.Set[record.Key]) []record.Record {
	if doomed.Cardinality() == 0 {
		return nil
	}
	var removed []record.Record
	var keep []record.Key
	for _, k := range g.order {
		if doomed.Contains(k) {
			removed = append(removed, g.nodes[k])
		} else {
			keep = append(keep, k)
		}
	}
	g.order = keep
	for k := range doomed.Iter() {
		r := g.nodes[k]
		delete(g.nodes, k)
		delete(g.deps, k)
		delete(g.users, k)
		keys := g.byName[r.Name]
		for i, nk := range keys {
			if nk == k {
				g.byName[r.Name] = append(keys[:i], keys[i+1:]...)
				break
			}
		}
		if len(g.byName[r.Name]) == 0 {
			delete(g.byName, r.Name)
		}
	}
	for _, sets := range []map[record.Key]mapset.Set[record.Key]{g.deps, g.users} {
		for _, set := range sets {
			for k := range doomed.Iter() {
				set.Remove(k)
			}
		}
	}
	return removed
}
