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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ladder lists versions in strictly increasing order; versions inside one
// group compare equal.
var ladder = [][]string{
	{"0.4"},
	{"0.4.1.rc", "0.4.1.RC"},
	{"0.4.1"},
	{"0.5a1"},
	{"0.5b3"},
	{"0.5C1"},
	{"0.5"},
	{"0.9.6"},
	{"0.960923"},
	{"1.0"},
	{"1.1dev1"},
	{"1.1a1"},
	{"1.1.0dev1", "1.1.dev1"},
	{"1.1.a1"},
	{"1.1.0rc1"},
	{"1.1.0", "1.1"},
	{"1.1.0post1", "1.1.post1"},
	{"1.1post1"},
	{"1996.07.12"},
	{"1!0.4.1"},
	{"1!3.1.1.6"},
	{"2!0.4.1"},
}

func TestTotalOrderLadder(t *testing.T) {
	for i, group := range ladder {
		for _, a := range group {
			va, err := Parse(a)
			require.NoError(t, err, a)
			for _, b := range group {
				vb := MustParse(b)
				assert.Equal(t, 0, Compare(va, vb), "%s == %s", a, b)
			}
			for j := i + 1; j < len(ladder); j++ {
				for _, b := range ladder[j] {
					vb := MustParse(b)
					assert.Negative(t, Compare(va, vb), "%s < %s", a, b)
					assert.Positive(t, Compare(vb, va), "%s > %s", b, a)
				}
			}
		}
	}
}

func TestPaddingEquivalence(t *testing.T) {
	assert.True(t, MustParse("1.1").Equal(MustParse("1.1.0")))
	assert.True(t, MustParse("1.1").Equal(MustParse("1.1.0.0")))
	assert.False(t, MustParse("1.1").Equal(MustParse("1.1.1")))
	assert.True(t, MustParse("1.1").LessThan(MustParse("1.1.1")))
}

func TestPhaseAlignment(t *testing.T) {
	// a letter-leading component gets an implicit leading zero
	assert.True(t, MustParse("1.1.0a0").LessThan(MustParse("1.1.0")))
	assert.True(t, MustParse("1.1.a1").Equal(MustParse("1.1.0a1")))
}

func TestLocalVersions(t *testing.T) {
	assert.True(t, MustParse("1.0").LessThan(MustParse("1.0+local")))
	assert.True(t, MustParse("1.0+local.1").LessThan(MustParse("1.0+local.2")))
	assert.True(t, MustParse("1.0+1").Equal(MustParse("1.0+01")))
	assert.True(t, MustParse("1.0+local").LessThan(MustParse("1.0.1")))
}

func TestDashUnderscoreFolding(t *testing.T) {
	assert.True(t, MustParse("1.0-1").Equal(MustParse("1.0_1")))
	// with both present, dashes are left alone and rejected
	_, err := Parse("1.0-1_2")
	assert.Error(t, err)
}

func TestLargeNumerals(t *testing.T) {
	assert.True(t, MustParse("9223372036854775808").LessThan(MustParse("9223372036854775809")))
	assert.True(t, MustParse("2").LessThan(MustParse("10")))
	assert.True(t, MustParse("1.09").Equal(MustParse("1.9")))
}

func TestInvalidVersions(t *testing.T) {
	for _, s := range []string{
		"",
		"  ",
		"1!2!3",
		"1+2+3",
		"!1.0",
		"a!1.0",
		"+1.0",
		"1.0 beta",
		"1.0..post",
		"1.0+",
	} {
		_, err := Parse(s)
		assert.Error(t, err, "%q should not parse", s)
		var ivs *InvalidSpecError
		assert.ErrorAs(t, err, &ivs, "%q", s)
	}
}

func TestInterning(t *testing.T) {
	a := MustParse("3.19.1")
	b := MustParse("3.19.1")
	assert.Same(t, a, b)
	ClearCache()
	c := MustParse("3.19.1")
	assert.NotSame(t, a, c)
	assert.True(t, a.Equal(c))
}

func TestStartsWith(t *testing.T) {
	for _, tcase := range []struct {
		version string
		prefix  string
		want    bool
	}{
		{"1.2.3", "1.2", true},
		{"1.2", "1.2", true},
		{"1.2.3", "1.2.3", true},
		{"1.20", "1.2", false},
		{"1.2.3", "1.3", false},
		{"1.8a", "1.8a", true},
		{"1.8ab", "1.8a", true},
		{"2!1.2.3", "2!1.2", true},
		{"1.2.3", "2!1.2", false},
		{"1.0+local.7", "1.0+local", true},
		{"1.0+other", "1.0+local", false},
	} {
		got := MustParse(tcase.version).StartsWith(MustParse(tcase.prefix))
		assert.Equal(t, tcase.want, got, "%s startswith %s", tcase.version, tcase.prefix)
	}
}

func TestCompareIsTransitive(t *testing.T) {
	versions := []string{
		"0.4", "0.4.1", "0.5a1", "1.0", "1.1dev1", "1.1", "1.1.post1",
		"1!0.4", "1.0+local",
	}
	for _, a := range versions {
		for _, b := range versions {
			for _, c := range versions {
				va, vb, vc := MustParse(a), MustParse(b), MustParse(c)
				if Compare(va, vb) <= 0 && Compare(vb, vc) <= 0 {
					assert.LessOrEqual(t, Compare(va, vc), 0,
						"%s <= %s <= %s", a, b, c)
				}
			}
		}
	}
}
