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

/*Package version implements the total order over package version strings.

A version string is lower-cased and decomposed into an optional integer
epoch (before '!'), a main version, and an optional local suffix (after
'+'). Main and local parts split on '.' and '_' into components, and each
component splits into runs of numerals and non-numerals. Numeral runs
compare numerically, the literal "post" compares above everything, and
"dev" compares below any other non-numeral run. Components that start
with a letter get an implicit leading zero so that 1.1.0a1 sorts into the
1.1.0 release series. Missing trailing components compare as zero, so
1.1 == 1.1.0.
*/
package version

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// InvalidSpecError reports a version or version-spec string that cannot be
// parsed.
type InvalidSpecError struct {
	Spec    string
	Problem string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid version '%s': %s", e.Spec, e.Problem)
}

var (
	checkRe = regexp.MustCompile(`^[\*\.\+!_0-9a-z]+$`)
	splitRe = regexp.MustCompile(`([0-9]+|[^0-9]+)`)
)

type atomKind int

const (
	atomStr atomKind = iota
	atomNum
	atomInf // the "post" marker, greater than any numeral
)

// atom is one numeral or non-numeral run inside a version component.
// Numerals are kept as strings with leading zeros stripped, so that
// arbitrarily long numerals still compare correctly.
type atom struct {
	kind    atomKind
	numeral string
	str     string
}

// fillAtom pads short components: 1.1 == 1.1.0.
var fillAtom = atom{kind: atomNum}

func compareAtoms(a, b atom) int {
	// any string sorts below any numeral; "dev" is stored upper-cased so
	// it sorts below every other (lower-cased) string
	if a.kind == atomStr || b.kind == atomStr {
		switch {
		case a.kind != atomStr:
			return 1
		case b.kind != atomStr:
			return -1
		default:
			return strings.Compare(a.str, b.str)
		}
	}
	if a.kind == atomInf || b.kind == atomInf {
		switch {
		case a.kind == b.kind:
			return 0
		case a.kind == atomInf:
			return 1
		default:
			return -1
		}
	}
	if d := len(a.numeral) - len(b.numeral); d != 0 {
		if d < 0 {
			return -1
		}
		return 1
	}
	return strings.Compare(a.numeral, b.numeral)
}

// Version is an immutable, parsed version string. Instances obtained from
// Parse are interned: equal source strings yield the identical handle.
type Version struct {
	norm    string
	version [][]atom // epoch component followed by the main components
	local   [][]atom
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*Version{}
)

// Parse parses and interns a version string.
func Parse(vstr string) (*Version, error) {
	cacheMu.Lock()
	if v, ok := cache[vstr]; ok {
		cacheMu.Unlock()
		return v, nil
	}
	cacheMu.Unlock()
	v, err := parse(vstr)
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cache[vstr] = v
	cacheMu.Unlock()
	return v, nil
}

// MustParse is Parse for version literals known to be valid.
func MustParse(vstr string) *Version {
	v, err := Parse(vstr)
	if err != nil {
		panic(err)
	}
	return v
}

// ClearCache drops every interned Version. Handles obtained earlier stay
// valid but will no longer compare pointer-equal with later parses.
func ClearCache() {
	cacheMu.Lock()
	cache = map[string]*Version{}
	cacheMu.Unlock()
}

func parse(vstr string) (*Version, error) {
	norm := strings.ToLower(strings.TrimSpace(vstr))
	if norm == "" {
		return nil, &InvalidSpecError{vstr, "empty version string"}
	}
	if !checkRe.MatchString(norm) {
		// people use dashes or underscores as separators, but not both;
		// fold dashes for OpenSSL-style versions such as 1.0.1-c
		if strings.Contains(norm, "-") && !strings.Contains(norm, "_") {
			norm = strings.ReplaceAll(norm, "-", "_")
		}
		if !checkRe.MatchString(norm) {
			return nil, &InvalidSpecError{vstr, "invalid character(s)"}
		}
	}

	epoch := "0"
	rest := norm
	switch parts := strings.Split(norm, "!"); len(parts) {
	case 1:
	case 2:
		if !isDigits(parts[0]) {
			return nil, &InvalidSpecError{vstr, "epoch must be an integer"}
		}
		epoch = parts[0]
		rest = parts[1]
	default:
		return nil, &InvalidSpecError{vstr, "duplicated epoch separator '!'"}
	}

	var localStr string
	hasLocal := false
	switch parts := strings.Split(rest, "+"); len(parts) {
	case 1:
	case 2:
		rest = parts[0]
		localStr = parts[1]
		hasLocal = true
	default:
		return nil, &InvalidSpecError{vstr, "duplicated local version separator '+'"}
	}
	if rest == "" {
		return nil, &InvalidSpecError{vstr, "empty version string"}
	}

	v := &Version{norm: norm}
	components := append([]string{epoch}, splitComponents(rest)...)
	for _, c := range components {
		parsed, err := parseComponent(vstr, c)
		if err != nil {
			return nil, err
		}
		v.version = append(v.version, parsed)
	}
	if hasLocal {
		for _, c := range splitComponents(localStr) {
			parsed, err := parseComponent(vstr, c)
			if err != nil {
				return nil, err
			}
			v.local = append(v.local, parsed)
		}
	}
	return v, nil
}

func splitComponents(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "_", "."), ".")
}

func parseComponent(vstr, comp string) ([]atom, error) {
	runs := splitRe.FindAllString(comp, -1)
	if len(runs) == 0 {
		return nil, &InvalidSpecError{vstr, "empty version component"}
	}
	atoms := make([]atom, 0, len(runs)+1)
	if !isDigit(comp[0]) {
		// keep numerals and strings in phase across versions
		atoms = append(atoms, fillAtom)
	}
	for _, r := range runs {
		switch {
		case isDigit(r[0]):
			atoms = append(atoms, atom{kind: atomNum, numeral: strings.TrimLeft(r, "0")})
		case r == "post":
			atoms = append(atoms, atom{kind: atomInf})
		case r == "dev":
			// upper-cased so it sorts below '_' and every letter
			atoms = append(atoms, atom{kind: atomStr, str: "DEV"})
		default:
			atoms = append(atoms, atom{kind: atomStr, str: r})
		}
	}
	return atoms, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// String returns the normalized (lower-cased, possibly dash-folded) source
// string.
func (v *Version) String() string { return v.norm }

// MinorSeries returns the leading "major.minor" of the version, used
// for series pinning such as holding an interpreter at 3.9.*. A
// one-component version returns that component alone.
func (v *Version) MinorSeries() string {
	s := v.norm
	if i := strings.Index(s, "!"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, "+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func compareAtomSlices(v1, v2 []atom) int {
	n := len(v1)
	if len(v2) > n {
		n = len(v2)
	}
	for j := 0; j < n; j++ {
		c1, c2 := fillAtom, fillAtom
		if j < len(v1) {
			c1 = v1[j]
		}
		if j < len(v2) {
			c2 = v2[j]
		}
		if d := compareAtoms(c1, c2); d != 0 {
			return d
		}
	}
	return 0
}

func compareComponents(t1, t2 [][]atom) int {
	n := len(t1)
	if len(t2) > n {
		n = len(t2)
	}
	for i := 0; i < n; i++ {
		var v1, v2 []atom
		if i < len(t1) {
			v1 = t1[i]
		}
		if i < len(t2) {
			v2 = t2[i]
		}
		if d := compareAtomSlices(v1, v2); d != 0 {
			return d
		}
	}
	return 0
}

// Compare returns a number < 0 if a sorts before b, > 0 if a sorts after
// b, and 0 if they are equal. The order is total for any two parsed
// versions.
func Compare(a, b *Version) int {
	if a == b {
		return 0
	}
	if d := compareComponents(a.version, b.version); d != 0 {
		return d
	}
	return compareComponents(a.local, b.local)
}

func (v *Version) Compare(o *Version) int   { return Compare(v, o) }
func (v *Version) Equal(o *Version) bool    { return Compare(v, o) == 0 }
func (v *Version) LessThan(o *Version) bool { return Compare(v, o) < 0 }

// StartsWith reports whether v lies inside the release series named by
// other, giving 1.2.* its glob semantics: every component of other but the
// last must match exactly, and the last behaves as a prefix.
func (v *Version) StartsWith(other *Version) bool {
	t1, t2 := v.version, other.version
	if len(other.local) > 0 {
		if compareComponents(v.version, other.version) != 0 {
			return false
		}
		t1, t2 = v.local, other.local
	}

	nt := len(t2) - 1
	if compareComponents(truncComponents(t1, nt), t2[:nt]) != 0 {
		return false
	}
	var v1 []atom
	if len(t1) > nt {
		v1 = t1[nt]
	}
	vo := t2[nt]

	nt = len(vo) - 1
	if compareAtomSlices(truncAtoms(v1, nt), vo[:nt]) != 0 {
		return false
	}
	c1 := fillAtom
	if len(v1) > nt {
		c1 = v1[nt]
	}
	co := vo[nt]
	if co.kind == atomStr {
		return c1.kind == atomStr && strings.HasPrefix(c1.str, co.str)
	}
	return compareAtoms(c1, co) == 0
}

func truncComponents(t [][]atom, n int) [][]atom {
	if len(t) > n {
		return t[:n]
	}
	return t
}

func truncAtoms(v []atom, n int) []atom {
	if len(v) > n {
		return v[:n]
	}
	return v
}
