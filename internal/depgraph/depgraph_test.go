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

package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

func rec(name, version string, depends ...string) record.Record {
	return record.Record{
		Name:    name,
		Version: version,
		Build:   "0",
		Depends: depends,
	}
}

// a small environment: app -> lib -> zlib, app -> zlib, tool -> lib
func testRecords() []record.Record {
	return []record.Record{
		rec("app", "1.0", "lib >=2", "zlib"),
		rec("lib", "2.1", "zlib >=1.2"),
		rec("tool", "0.5", "lib"),
		rec("zlib", "1.2.11"),
		rec("orphan", "3.0"),
	}
}

func names(records []record.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func TestSortedDependenciesFirst(t *testing.T) {
	g := New(testRecords())
	sorted := names(g.Sorted())
	require.Len(t, sorted, 5)

	pos := map[string]int{}
	for i, n := range sorted {
		pos[n] = i
	}
	assert.Less(t, pos["zlib"], pos["lib"])
	assert.Less(t, pos["lib"], pos["app"])
	assert.Less(t, pos["zlib"], pos["app"])
	assert.Less(t, pos["lib"], pos["tool"])
}

func TestSortedDeterministic(t *testing.T) {
	a := names(New(testRecords()).Sorted())
	b := names(New(testRecords()).Sorted())
	assert.Equal(t, a, b)
}

func TestSortedWithCycle(t *testing.T) {
	g := New([]record.Record{
		rec("a", "1", "b"),
		rec("b", "1", "a"),
		rec("c", "1"),
	})
	sorted := g.Sorted()
	assert.Len(t, sorted, 3)
}

func TestAncestorsAndDescendants(t *testing.T) {
	recs := testRecords()
	g := New(recs)

	app, ok := g.NodeByName("app")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"lib", "zlib"}, names(g.Ancestors(app)))

	zlib, ok := g.NodeByName("zlib")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"app", "lib", "tool"}, names(g.Descendants(zlib)))

	orphan, ok := g.NodeByName("orphan")
	require.True(t, ok)
	assert.Empty(t, g.Ancestors(orphan))
	assert.Empty(t, g.Descendants(orphan))
}

func TestRemoveSpecPropagatesToDependents(t *testing.T) {
	g := New(testRecords())
	removed := g.RemoveSpec(matchspec.MustParse("lib"))
	assert.ElementsMatch(t, []string{"lib", "app", "tool"}, names(removed))
	assert.ElementsMatch(t, []string{"zlib", "orphan"}, names(g.Records()))
}

func TestRemoveSpecNoMatch(t *testing.T) {
	g := New(testRecords())
	removed := g.RemoveSpec(matchspec.MustParse("nosuch"))
	assert.Empty(t, removed)
	assert.Equal(t, 5, g.Len())
}

func TestRemoveSpecTrackFeatures(t *testing.T) {
	blas := rec("libblas", "3.9")
	blas.TrackFeatures = []string{"mkl"}
	numpy := rec("numpy", "1.21")
	numpy.TrackFeatures = []string{"mkl"}
	g := New([]record.Record{blas, numpy, rec("zlib", "1.2.11")})

	removed := g.RemoveSpec(matchspec.MustParse("libblas"))
	assert.ElementsMatch(t, []string{"libblas", "numpy"}, names(removed))
	assert.Equal(t, []string{"zlib"}, names(g.Records()))
}

func TestPrune(t *testing.T) {
	g := New(testRecords())
	removed := g.Prune([]matchspec.MatchSpec{matchspec.MustParse("app")})
	assert.ElementsMatch(t, []string{"tool", "orphan"}, names(removed))
	assert.ElementsMatch(t, []string{"app", "lib", "zlib"}, names(g.Records()))
}

func TestPruneKeepsVirtual(t *testing.T) {
	virt := rec("__glibc", "2.17").WithKind(record.Virtual)
	recs := append(testRecords(), virt)
	g := New(recs)
	removed := g.Prune([]matchspec.MatchSpec{matchspec.MustParse("app")})
	assert.NotContains(t, names(removed), "__glibc")
}

func TestRemoveYoungestDescendants(t *testing.T) {
	g := New(testRecords())
	specs := []matchspec.MatchSpec{
		matchspec.MustParse("app"),
		matchspec.MustParse("lib"), // lib has dependents, must survive
	}
	removed := g.RemoveYoungestDescendantsWithSpecs(specs)
	assert.Equal(t, []string{"app"}, names(removed))
	assert.Contains(t, names(g.Records()), "lib")
}

func TestDirectDeps(t *testing.T) {
	g := New(testRecords())
	app, _ := g.NodeByName("app")
	assert.ElementsMatch(t, []string{"lib", "zlib"}, names(g.DirectDeps(app)))
}
