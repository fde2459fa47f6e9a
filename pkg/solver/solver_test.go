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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-sandbox/strata/pkg/index"
	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

type fakeEnv struct {
	installed []record.Record
	history   map[string]matchspec.MatchSpec
	pinned    []matchspec.MatchSpec
}

func (e *fakeEnv) InstalledRecords() ([]record.Record, error) { return e.installed, nil }
func (e *fakeEnv) PinnedSpecs() ([]matchspec.MatchSpec, error) {
	return e.pinned, nil
}
func (e *fakeEnv) RequestedSpecsMap() (map[string]matchspec.MatchSpec, error) {
	if e.history == nil {
		return map[string]matchspec.MatchSpec{}, nil
	}
	return e.history, nil
}

func rec(name, version, build string, depends ...string) record.Record {
	return record.Record{Name: name, Version: version, Build: build, Depends: depends}
}

func specs(texts ...string) []matchspec.MatchSpec {
	out := make([]matchspec.MatchSpec, 0, len(texts))
	for _, t := range texts {
		out = append(out, matchspec.MustParse(t))
	}
	return out
}

func history(texts ...string) map[string]matchspec.MatchSpec {
	out := map[string]matchspec.MatchSpec{}
	for _, t := range texts {
		s := matchspec.MustParse(t)
		out[s.Name()] = s
	}
	return out
}

// channel contents shared by most tests
func testIndex() *index.InMemory {
	return index.NewInMemory(
		rec("zlib", "1.2.8", "0"),
		rec("zlib", "1.2.11", "0"),
		rec("lib", "2.0", "0", "zlib <1.2.11"),
		rec("lib", "2.1", "0", "zlib >=1.2.11"),
		rec("app", "1.0", "0", "lib >=2"),
	)
}

func newSolver(env *fakeEnv, ix *index.InMemory) *Solver {
	return &Solver{Env: env, Index: ix}
}

func versionsByName(records []record.Record) map[string]string {
	out := map[string]string{}
	for _, r := range records {
		out[r.Name] = r.Version
	}
	return out
}

func TestInstallIntoEmpty(t *testing.T) {
	s := newSolver(&fakeEnv{}, testIndex())
	got, err := s.SolveFinalState(Options{SpecsToAdd: specs("app")})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Equal(t, "1.0", m["app"])
	assert.Equal(t, "2.1", m["lib"])
	assert.Equal(t, "1.2.11", m["zlib"])

	// dependency order: zlib before lib before app
	pos := map[string]int{}
	for i, r := range got {
		pos[r.Name] = i
	}
	assert.Less(t, pos["zlib"], pos["lib"])
	assert.Less(t, pos["lib"], pos["app"])
}

func TestNoOpResolveSkipsSolve(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{rec("zlib", "1.2.8", "0")}}
	s := newSolver(env, testIndex())
	s.NewBackend = func(pool, installed []record.Record) Backend {
		t.Fatal("back-end must not be built for a satisfied request")
		return nil
	}
	got, err := s.SolveFinalState(Options{SpecsToAdd: specs("zlib")})
	require.NoError(t, err)
	assert.Equal(t, versionsByName(env.installed), versionsByName(got))
}

func TestExplicitSpecUpdates(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{rec("zlib", "1.2.8", "0")}}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{SpecsToAdd: specs("zlib >=1.2.11")})
	require.NoError(t, err)
	assert.Equal(t, "1.2.11", versionsByName(got)["zlib"])
}

func TestAddAndRemoveSameName(t *testing.T) {
	s := newSolver(&fakeEnv{}, testIndex())
	_, err := s.SolveFinalState(Options{
		SpecsToAdd:    specs("zlib"),
		SpecsToRemove: specs("zlib"),
	})
	assert.Error(t, err)
}

func TestRemovePropagatesToDependents(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{
		rec("zlib", "1.2.11", "0"),
		rec("lib", "2.1", "0", "zlib >=1.2.11"),
		rec("app", "1.0", "0", "lib >=2"),
	}}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{SpecsToRemove: specs("lib")})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.NotContains(t, m, "lib")
	assert.NotContains(t, m, "app")
	assert.Contains(t, m, "zlib", "zlib has its own name-only spec and survives")
}

func TestRemoveTrackFeatureGroup(t *testing.T) {
	blas := rec("libblas", "3.9", "mkl")
	blas.TrackFeatures = []string{"mkl"}
	numpy := rec("numpy", "1.21", "mkl")
	numpy.TrackFeatures = []string{"mkl"}
	env := &fakeEnv{installed: []record.Record{blas, numpy, rec("zlib", "1.2.11", "0")}}
	ix := index.NewInMemory(blas, numpy, rec("zlib", "1.2.11", "0"))

	s := newSolver(env, ix)
	got, err := s.SolveFinalState(Options{
		SpecsToRemove: specs("*[track_features='mkl']"),
	})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.NotContains(t, m, "libblas")
	assert.NotContains(t, m, "numpy")
	assert.Contains(t, m, "zlib")
}

func TestRemoveNotFound(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{rec("zlib", "1.2.11", "0")}}
	s := newSolver(env, testIndex())
	_, err := s.SolveFinalState(Options{SpecsToRemove: specs("nosuch")})
	var nf *PackagesNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nosuch", nf.Specs[0].Name())
}

func TestForceRemoveSkipsSolve(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{
		rec("zlib", "1.2.11", "0"),
		rec("lib", "2.1", "0", "zlib >=1.2.11"),
	}}
	s := newSolver(env, testIndex())
	s.NewBackend = func(pool, installed []record.Record) Backend {
		t.Fatal("force removal must not solve")
		return nil
	}
	got, err := s.SolveFinalState(Options{
		SpecsToRemove: specs("zlib"),
		Force:         true,
	})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.NotContains(t, m, "zlib")
	assert.Contains(t, m, "lib", "broken dependent survives a forced removal")
}

func TestFreezeInstalledKeepsVersions(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{rec("zlib", "1.2.8", "0")}}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{
		SpecsToAdd: specs("lib <2.1"),
		Update:     FreezeInstalled,
	})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Equal(t, "1.2.8", m["zlib"], "non-conflicting installed version is frozen")
	assert.Equal(t, "2.0", m["lib"])
}

func TestFreezeGivesWayOnConflict(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{rec("zlib", "1.2.8", "0")}}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{
		SpecsToAdd: specs("lib >=2.1"),
		Update:     FreezeInstalled,
	})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Equal(t, "2.1", m["lib"])
	assert.Equal(t, "1.2.11", m["zlib"], "frozen version yields to the explicit request")
}

func TestUpdateAll(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{
			rec("zlib", "1.2.8", "0"),
			rec("lib", "2.0", "0", "zlib <1.2.11"),
		},
		history: history("lib <2.1"),
	}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{Update: UpdateAll})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Equal(t, "2.1", m["lib"])
	assert.Equal(t, "1.2.11", m["zlib"])
}

func TestUpdateAllKeepsPinnedVersion(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{rec("zlib", "1.2.8", "0")},
		pinned:    specs("zlib <1.2.11"),
	}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{Update: UpdateAll})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Equal(t, "1.2.8", m["zlib"], "pins hold under update-all")
}

func TestTrackFeaturesSpecJoinsSolve(t *testing.T) {
	mkl := rec("blas", "3.9", "mkl")
	mkl.TrackFeatures = []string{"mkl"}
	ix := index.NewInMemory(
		rec("blas", "3.8", "openblas"),
		mkl,
	)
	s := newSolver(&fakeEnv{}, ix)
	s.TrackFeatures = specs("*[track_features=mkl]")

	got, err := s.SolveFinalState(Options{SpecsToAdd: specs("blas")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	// without the feature spec the featureless build would win
	assert.Equal(t, "mkl", got[0].Build)
}

func TestPinnedConflictTerminates(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{rec("zlib", "1.2.8", "0")},
		pinned:    specs("zlib 1.2.8"),
	}
	s := newSolver(env, testIndex())
	_, err := s.SolveFinalState(Options{SpecsToAdd: specs("zlib >=1.2.11")})
	var conflict *SpecsConfigurationConflictError
	require.ErrorAs(t, err, &conflict)
	assert.NotEmpty(t, conflict.RequestedSpecs)
	assert.NotEmpty(t, conflict.PinnedSpecs)
}

func TestIgnorePinned(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{rec("zlib", "1.2.8", "0")},
		pinned:    specs("zlib 1.2.8"),
	}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{
		SpecsToAdd:   specs("zlib >=1.2.11"),
		IgnorePinned: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.2.11", versionsByName(got)["zlib"])
}

func TestPinnedHoldsHistoryPackage(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{rec("zlib", "1.2.8", "0")},
		pinned:    specs("zlib 1.2.8"),
	}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{Update: UpdateAll})
	require.NoError(t, err)
	assert.Equal(t, "1.2.8", versionsByName(got)["zlib"])
}

func TestMissingPackage(t *testing.T) {
	s := newSolver(&fakeEnv{}, testIndex())
	_, err := s.SolveFinalState(Options{SpecsToAdd: specs("nosuch")})
	var nf *PackagesNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestNoDepsLeavesDependenciesUnmet(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{
		rec("a", "1", "0"),
		rec("b", "1", "0", "a"),
	}}
	// c depends on d, which the channel does not carry
	ix := index.NewInMemory(
		rec("a", "1", "0"),
		rec("b", "1", "0", "a"),
		rec("c", "1", "0", "d >=5"),
	)
	s := newSolver(env, ix)
	got, err := s.SolveFinalState(Options{
		SpecsToAdd: specs("c"),
		Deps:       NoDeps,
	})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Contains(t, m, "a")
	assert.Contains(t, m, "b")
	assert.Contains(t, m, "c")
	assert.NotContains(t, m, "d")
}

func TestOnlyDepsSkipsRequested(t *testing.T) {
	s := newSolver(&fakeEnv{}, testIndex())
	got, err := s.SolveFinalState(Options{
		SpecsToAdd: specs("app"),
		Deps:       OnlyDeps,
	})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.NotContains(t, m, "app")
	assert.Contains(t, m, "lib")
	assert.Contains(t, m, "zlib")
}

func TestOnlyDepsKeepsPreinstalledLeaf(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{
		rec("zlib", "1.2.11", "0"),
		rec("lib", "2.1", "0", "zlib >=1.2.11"),
		rec("app", "1.0", "0", "lib >=2"),
	}}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{
		SpecsToAdd: specs("app"),
		Deps:       OnlyDeps,
	})
	require.NoError(t, err)
	assert.Contains(t, versionsByName(got), "app")
}

func TestUpdateDepsPromotesAncestors(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{
			rec("zlib", "1.2.8", "0"),
			rec("lib", "2.0", "0", "zlib <1.2.11"),
			rec("app", "1.0", "0", "lib >=2"),
		},
		history: history("app"),
	}
	s := newSolver(env, testIndex())
	res, err := s.solve(Options{
		SpecsToAdd: specs("app"),
		Update:     UpdateDeps,
	})
	require.NoError(t, err)
	m := versionsByName(res.Records)
	assert.Equal(t, "2.1", m["lib"], "dependency of the request is updated")
	assert.Equal(t, "1.2.11", m["zlib"])
	assert.NotEmpty(t, res.PromotedSpecs)
}

func TestConflictBackoffNeutersHistory(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{
			rec("zlib", "1.2.8", "0"),
			rec("lib", "2.0", "0", "zlib <1.2.11"),
		},
		history: history("lib <2.1"),
	}
	s := newSolver(env, testIndex())
	res, err := s.solve(Options{SpecsToAdd: specs("zlib >=1.2.11")})
	require.NoError(t, err)
	m := versionsByName(res.Records)
	assert.Equal(t, "1.2.11", m["zlib"])
	assert.Equal(t, "2.1", m["lib"])
	require.Len(t, res.NeuteredSpecs, 1)
	assert.Equal(t, "lib", res.NeuteredSpecs[0].Name())
}

func TestPrune(t *testing.T) {
	env := &fakeEnv{
		installed: []record.Record{
			rec("zlib", "1.2.11", "0"),
			rec("lib", "2.1", "0", "zlib >=1.2.11"),
			rec("orphan", "3.0", "0"),
		},
		history: history("lib"),
	}
	ix := index.NewInMemory(
		rec("zlib", "1.2.11", "0"),
		rec("lib", "2.1", "0", "zlib >=1.2.11"),
		rec("orphan", "3.0", "0"),
	)
	s := newSolver(env, ix)
	got, err := s.SolveFinalState(Options{Prune: true})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Contains(t, m, "lib")
	assert.Contains(t, m, "zlib")
	assert.NotContains(t, m, "orphan")
}

func TestInconsistentEnvironmentRepaired(t *testing.T) {
	// lib is installed with its dependency missing
	env := &fakeEnv{installed: []record.Record{
		rec("lib", "2.1", "0", "zlib >=1.2.11"),
	}}
	s := newSolver(env, testIndex())
	got, err := s.SolveFinalState(Options{SpecsToAdd: specs("app")})
	require.NoError(t, err)
	m := versionsByName(got)
	assert.Contains(t, m, "zlib", "missing dependency is filled in")
	assert.Contains(t, m, "lib")
	assert.Contains(t, m, "app")
}

func TestInterpreterMinorLock(t *testing.T) {
	ix := index.NewInMemory(
		rec("python", "3.8.5", "0"),
		rec("python", "3.8.6", "0"),
		rec("python", "3.9.1", "0"),
		rec("zlib", "1.2.11", "0"),
	)
	env := &fakeEnv{installed: []record.Record{rec("python", "3.8.5", "0")}}
	s := newSolver(env, ix)
	s.Interpreter = "python"

	got, err := s.SolveFinalState(Options{Update: UpdateAll})
	require.NoError(t, err)
	assert.Equal(t, "3.8.6", versionsByName(got)["python"], "interpreter stays in its minor series")

	// an explicit request crosses the series
	got, err = s.SolveFinalState(Options{SpecsToAdd: specs("python >=3.9")})
	require.NoError(t, err)
	assert.Equal(t, "3.9.1", versionsByName(got)["python"])
}

func TestOwnVersionNeverDowngraded(t *testing.T) {
	ix := index.NewInMemory(
		rec("strata", "0.9", "0"),
		rec("strata", "1.0", "0"),
		rec("wants-old", "1.0", "0", "strata <1.0"),
	)
	env := &fakeEnv{installed: []record.Record{rec("strata", "1.0", "0")}}
	s := newSolver(env, ix)
	s.OwnName = "strata"

	_, err := s.SolveFinalState(Options{SpecsToAdd: specs("wants-old")})
	assert.Error(t, err, "a solve may not downgrade the running tool")
}

func TestSolveForDiff(t *testing.T) {
	env := &fakeEnv{installed: []record.Record{rec("zlib", "1.2.8", "0")}}
	s := newSolver(env, testIndex())
	changes, err := s.SolveForDiff(Options{SpecsToAdd: specs("zlib >=1.2.11")})
	require.NoError(t, err)
	require.Len(t, changes.Unlink, 1)
	require.Len(t, changes.Link, 1)
	assert.Equal(t, "1.2.8", changes.Unlink[0].Version)
	assert.Equal(t, "1.2.11", changes.Link[0].Version)
}

func TestSolveForDiffUnlinksDependentsFirst(t *testing.T) {
	// name-sorted order (app, lib, zlib) opposes dependency order here,
	// so a diff over the raw installed list would come out inverted
	installed := []record.Record{
		rec("app", "1.0", "0", "lib >=2"),
		rec("lib", "2.0", "0", "zlib <1.2.11"),
		rec("zlib", "1.2.8", "0"),
	}
	env := &fakeEnv{installed: installed}
	s := newSolver(env, testIndex())

	changes, err := s.SolveForDiff(Options{SpecsToRemove: specs("zlib")})
	require.NoError(t, err)
	require.Len(t, changes.Unlink, 3)
	assert.Equal(t, "app", changes.Unlink[0].Name)
	assert.Equal(t, "lib", changes.Unlink[1].Name)
	assert.Equal(t, "zlib", changes.Unlink[2].Name)
	assert.Empty(t, changes.Link)
}

func TestSolveForTransaction(t *testing.T) {
	env := &fakeEnv{}
	s := newSolver(env, testIndex())
	tx, err := s.SolveForTransaction("/opt/envs/test", Options{SpecsToAdd: specs("app")})
	require.NoError(t, err)
	assert.Equal(t, "/opt/envs/test", tx.Prefix)
	assert.Empty(t, tx.Unlink)
	assert.Len(t, tx.Link, 3)
	require.Len(t, tx.SpecsAdded, 1)
	assert.Equal(t, "app", tx.SpecsAdded[0].Name())
}
