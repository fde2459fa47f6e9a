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

package index

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

const indexDoc = `apiVersion: v1
channel: main
subdir: linux-64
packages:
  - name: zlib
    version: 1.2.11
    build: h470a237_3
    build_number: 3
  - name: lib
    version: "2.1"
    build: "0"
    depends:
      - zlib >=1.2.8
  - name: bogus
    version: ""
`

func writeIndex(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main-linux-64.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	f, err := LoadFile(writeIndex(t, indexDoc))
	require.NoError(t, err)
	assert.Equal(t, "main", f.Channel)
	require.Len(t, f.Packages, 2, "invalid entry is dropped")
	for _, r := range f.Packages {
		assert.Equal(t, "main", r.Channel)
		assert.Equal(t, "linux-64", r.Subdir)
	}
}

func TestLoadFileNoAPIVersion(t *testing.T) {
	doc := "channel: main\npackages: []\n"
	_, err := LoadFile(writeIndex(t, doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAPIVersion)
}

func TestLoadDir(t *testing.T) {
	path := writeIndex(t, indexDoc)
	records, err := LoadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func rec(name, version string, depends ...string) record.Record {
	return record.Record{Name: name, Version: version, Build: "0", Depends: depends}
}

func TestReducedIndexClosure(t *testing.T) {
	ix := NewInMemory(
		rec("app", "1.0", "lib >=2"),
		rec("lib", "2.0", "zlib"),
		rec("lib", "2.1", "zlib"),
		rec("zlib", "1.2.11"),
		rec("unrelated", "9.9"),
	)
	pool, err := ix.ReducedIndex([]matchspec.MatchSpec{matchspec.MustParse("app")})
	require.NoError(t, err)
	names := map[string]int{}
	for _, r := range pool {
		names[r.Name]++
	}
	assert.Equal(t, 1, names["app"])
	assert.Equal(t, 2, names["lib"], "every candidate version of a needed name is included")
	assert.Equal(t, 1, names["zlib"])
	assert.Zero(t, names["unrelated"])
}

func TestReducedIndexIncludesVirtual(t *testing.T) {
	virt := rec("__glibc", "2.17").WithKind(record.Virtual)
	ix := NewInMemory(rec("zlib", "1.2.11"), virt)
	pool, err := ix.ReducedIndex([]matchspec.MatchSpec{matchspec.MustParse("zlib")})
	require.NoError(t, err)
	assert.Len(t, pool, 2)
}

func TestReducedIndexGlobSpec(t *testing.T) {
	ix := NewInMemory(rec("pytest", "7.0"), rec("pytest-cov", "4.0"), rec("zlib", "1.2.11"))
	pool, err := ix.ReducedIndex([]matchspec.MatchSpec{matchspec.MustParse("pytest*")})
	require.NoError(t, err)
	assert.Len(t, pool, 2)
}
