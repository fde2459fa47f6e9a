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

package matchspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-sandbox/strata/pkg/record"
)

func rec(name, version, build string, opts ...func(*record.Record)) record.Record {
	r := record.Record{Name: name, Version: version, Build: build, Channel: "main", Subdir: "linux-64"}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func TestParseAndMatch(t *testing.T) {
	zlib := rec("zlib", "1.2.11", "h470a237_3")
	for _, tcase := range []struct {
		spec string
		want bool
	}{
		{"zlib", true},
		{"libpng", false},
		{"zlib 1.2.11", true},
		{"zlib 1.2.12", false},
		{"zlib >=1.2.7", true},
		{"zlib>=1.2.7,<1.3", true},
		{"zlib >=1.3", false},
		{"zlib 1.2.*", true},
		{"zlib=1.2", true},
		{"zlib=1.3", false},
		{"zlib !=1.2.*", false},
		{"zlib !=1.3.*", true},
		{"zlib ~=1.2.3", true},
		{"zlib 1.2.7|1.2.11", true},
		{"zlib (1.2.7|1.2.8),<2", false},
		{"zlib ^1\\.2\\.1.*$", true},
		{"zlib 1.2.11 h470a237_3", true},
		{"zlib 1.2.11 h999*", false},
		{"zlib=1.2.11=h470a237_3", true},
		{"zlib=1.2.11=h9999999_0", false},
		{"zlib[build=h470*]", true},
		{"zlib[version='>=1.2.7,<1.3', build='h*_3']", true},
		{"main::zlib", true},
		{"contrib::zlib", false},
		{"main/linux-64::zlib", true},
		{"main/osx-64::zlib", false},
		{"z*", true},
		{"*", true},
	} {
		m, err := Parse(tcase.spec)
		require.NoError(t, err, tcase.spec)
		assert.Equal(t, tcase.want, m.Match(zlib), "spec %q", tcase.spec)
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"   ",
		"zlib >=",
		"zlib ==1.0 extra junk here",
		"zlib[build_number=abc]",
		"zlib[bogus_key=1]",
		"zlib ~=1.0.*",
	} {
		_, err := Parse(s)
		assert.Error(t, err, "%q should not parse", s)
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{
		"zlib",
		"zlib>=1.2.7",
		"zlib>=1.2.7,<1.3",
		"zlib=1.2",
		"zlib==1.2.11",
		"zlib=1.2.11=h470a237_3",
		"main::zlib",
		"main/linux-64::zlib[version='>=1.2.7']",
		"zlib[build='h*_3']",
		"zlib[track_features='mkl']",
		"*[track_features='mkl']",
		"zlib[version='>=1.2.7',optional]",
	} {
		m, err := Parse(s)
		require.NoError(t, err, s)
		again, err := Parse(m.String())
		require.NoError(t, err, "restring of %q: %q", s, m.String())
		assert.Equal(t, m.String(), again.String(), "round trip of %q", s)
		assert.True(t, m.Equal(again), "round trip of %q", s)
	}
}

func TestTreeifyUntreeify(t *testing.T) {
	for _, s := range []string{
		"1.5",
		"1.5|1.6",
		"1.5|1.6,1.7",
		"(1.5|1.6),1.7",
		"1.5,(1.6|1.7),1.8",
		">=1.0,<2.0|>=3.0",
	} {
		tree, err := Treeify(s)
		require.NoError(t, err, s)
		flat := Untreeify(tree)
		a, err := NewVersionSpec(s)
		require.NoError(t, err, s)
		b, err := NewVersionSpec(flat)
		require.NoError(t, err, flat)
		for _, v := range []string{"1.0", "1.5", "1.6", "1.6.5", "1.7", "1.8", "2.5", "3.1"} {
			assert.Equal(t, a.Match(v), b.Match(v),
				"spec %q vs untreeified %q on version %s", s, flat, v)
		}
	}
}

func TestVersionSpecCompound(t *testing.T) {
	vs := MustVersionSpec("1.5|>=1.7,<1.9")
	assert.True(t, vs.Match("1.5"))
	assert.True(t, vs.Match("1.8"))
	assert.False(t, vs.Match("1.6"))
	assert.False(t, vs.Match("1.9"))
}

func TestIsExact(t *testing.T) {
	assert.True(t, MustParse("zlib=1.2.11=h470a237_3").IsExact())
	assert.True(t, MustParse("zlib[version='==1.2.11', build=h470a237_3]").IsExact())
	assert.False(t, MustParse("zlib==1.2.11").IsExact())
	assert.False(t, MustParse("zlib=1.2.11=h*").IsExact())
	assert.False(t, MustParse("zlib").IsExact())
}

func TestFromRecord(t *testing.T) {
	r := rec("zlib", "1.2.11", "h470a237_3")
	m := FromRecord(r)
	assert.True(t, m.IsExact())
	assert.True(t, m.Match(r))
	assert.False(t, m.Match(rec("zlib", "1.2.11", "other_0")))
	other := r
	other.BuildNumber = 4
	assert.False(t, m.Match(other))
}

func TestFromRecordEmptyBuild(t *testing.T) {
	r := rec("zlib", "1.2.11", "")
	m := FromRecord(r)
	assert.True(t, m.IsExact())
	assert.True(t, m.Match(r))
	assert.False(t, m.Match(rec("zlib", "1.2.11", "h470a237_3")))
}

func TestMerge(t *testing.T) {
	a := MustParse("zlib>=1.2.7")
	b := MustParse("zlib<1.3")
	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.True(t, merged.Match(rec("zlib", "1.2.11", "0")))
	assert.False(t, merged.Match(rec("zlib", "1.3", "0")))

	_, err = Merge(MustParse("zlib=1.2=a_0"), MustParse("zlib=1.2=b_0"))
	assert.Error(t, err)

	n3, n4 := 3, 4
	sa, err := FromFields(Fields{Name: "zlib", BuildNumber: &n3})
	require.NoError(t, err)
	sb, err := FromFields(Fields{Name: "zlib", BuildNumber: &n4})
	require.NoError(t, err)
	_, err = Merge(sa, sb)
	assert.Error(t, err)

	_, err = Merge(MustParse("zlib"), MustParse("libpng"))
	assert.Error(t, err)
}

func TestTrackFeaturesMatch(t *testing.T) {
	mkl := rec("blas", "1.0", "mkl", func(r *record.Record) {
		r.TrackFeatures = []string{"mkl"}
	})
	plain := rec("blas", "1.0", "openblas")
	spec := MustParse("*[track_features=mkl]")
	assert.True(t, spec.Match(mkl))
	assert.False(t, spec.Match(plain))
}

func TestOptional(t *testing.T) {
	m := MustParse("zlib[version='>=1.2.7',optional]")
	assert.True(t, m.Optional())
	assert.False(t, m.WithOptional(false).Optional())
}

func TestNameOnly(t *testing.T) {
	assert.True(t, MustParse("zlib").IsNameOnly())
	assert.False(t, MustParse("zlib 1.2").IsNameOnly())
	assert.False(t, MustParse("main::zlib").IsNameOnly())
}
