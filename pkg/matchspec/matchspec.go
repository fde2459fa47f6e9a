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

/*Package matchspec implements the constraint language used to query and
pin package records.

A spec names a package and optionally constrains its version, build,
build number, channel, subdir, track features, url, md5 or license:

	zlib
	zlib 1.2.11
	zlib>=1.2.7,<1.3
	zlib=1.2.11=h470a237_3
	main/linux-64::zlib[version='>=1.2.7', build=h*_3]

Specs are immutable; two specs with the same normalized string are
interchangeable.
*/
package matchspec

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/strata-sandbox/strata/pkg/record"
)

// InvalidSpecError reports a match spec string that cannot be parsed.
type InvalidSpecError struct {
	Spec    string
	Problem string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid match spec '%s': %s", e.Spec, e.Problem)
}

// strMatcher matches a string field exactly or against a glob/regex.
type strMatcher struct {
	raw string
	re  *regexp.Regexp
}

func newStrMatcher(spec, s string) (*strMatcher, error) {
	if strings.HasPrefix(s, "^") && strings.HasSuffix(s, "$") {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, &InvalidSpecError{spec, "invalid regex " + s}
		}
		return &strMatcher{raw: s, re: re}, nil
	}
	if strings.Contains(s, "*") {
		parts := strings.Split(s, "*")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
		if err != nil {
			return nil, &InvalidSpecError{spec, "invalid glob " + s}
		}
		return &strMatcher{raw: s, re: re}, nil
	}
	return &strMatcher{raw: s}, nil
}

func (sm *strMatcher) match(v string) bool {
	if sm == nil {
		return true
	}
	if sm.re != nil {
		return sm.re.MatchString(v)
	}
	return v == sm.raw
}

func (sm *strMatcher) isExact() bool { return sm != nil && sm.re == nil }

// Fields is the builder form of a MatchSpec: set the fields you need and
// call FromFields. Empty strings mean "unconstrained".
type Fields struct {
	Name          string
	Version       string
	Build         string
	BuildNumber   *int
	Channel       string
	Subdir        string
	TrackFeatures []string
	URL           string
	MD5           string
	License       string
	Optional      bool
}

// MatchSpec is an immutable predicate over package records.
type MatchSpec struct {
	name          string
	nameRe        *regexp.Regexp
	version       *VersionSpec
	build         *strMatcher
	buildNumber   *int
	channel       *strMatcher
	subdir        *strMatcher
	trackFeatures []string
	url           *strMatcher
	md5           *strMatcher
	license       *strMatcher
	optional      bool
	str           string
}

// FromFields compiles a Fields value into a MatchSpec.
func FromFields(f Fields) (MatchSpec, error) {
	m := MatchSpec{optional: f.Optional}
	name := strings.ToLower(strings.TrimSpace(f.Name))
	if name == "" {
		name = "*"
	}
	m.name = name
	if name != "*" && strings.Contains(name, "*") {
		sm, err := newStrMatcher(name, name)
		if err != nil {
			return MatchSpec{}, err
		}
		m.nameRe = sm.re
	}
	var err error
	if f.Version != "" {
		if m.version, err = NewVersionSpec(f.Version); err != nil {
			return MatchSpec{}, err
		}
	}
	if f.Build != "" {
		if m.build, err = newStrMatcher(f.Build, f.Build); err != nil {
			return MatchSpec{}, err
		}
	}
	if f.BuildNumber != nil {
		n := *f.BuildNumber
		m.buildNumber = &n
	}
	if f.Channel != "" && f.Channel != "*" {
		if m.channel, err = newStrMatcher(f.Channel, f.Channel); err != nil {
			return MatchSpec{}, err
		}
	}
	if f.Subdir != "" && f.Subdir != "*" {
		if m.subdir, err = newStrMatcher(f.Subdir, f.Subdir); err != nil {
			return MatchSpec{}, err
		}
	}
	if len(f.TrackFeatures) > 0 {
		feats := append([]string(nil), f.TrackFeatures...)
		sort.Strings(feats)
		m.trackFeatures = dedupe(feats)
	}
	if f.URL != "" {
		if m.url, err = newStrMatcher(f.URL, f.URL); err != nil {
			return MatchSpec{}, err
		}
	}
	if f.MD5 != "" {
		if m.md5, err = newStrMatcher(f.MD5, f.MD5); err != nil {
			return MatchSpec{}, err
		}
	}
	if f.License != "" {
		if m.license, err = newStrMatcher(f.License, f.License); err != nil {
			return MatchSpec{}, err
		}
	}
	m.str = m.render()
	return m, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for _, s := range sorted {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}

// FromName returns the spec that matches every record with the given
// name.
func FromName(name string) MatchSpec {
	m, err := FromFields(Fields{Name: name})
	if err != nil {
		// a bare name always compiles
		panic(err)
	}
	return m
}

// FromRecord returns the exact spec matching only the given record's
// identity.
func FromRecord(r record.Record) MatchSpec {
	n := r.BuildNumber
	m, err := FromFields(Fields{
		Name:        r.Name,
		Version:     "==" + r.Version,
		Build:       r.Build,
		BuildNumber: &n,
		Channel:     r.Channel,
	})
	if err != nil {
		panic(fmt.Sprintf("record %s does not round-trip to a spec: %v", r, err))
	}
	if r.Build == "" {
		// Fields cannot express "build is empty"; pin it directly so
		// the spec stays exact and cannot match another build
		m.build = &strMatcher{}
		m.str = m.render()
	}
	return m
}

// Parse parses a match spec string.
func Parse(text string) (MatchSpec, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return MatchSpec{}, &InvalidSpecError{text, "empty spec"}
	}
	var f Fields

	if idx := strings.Index(s, "::"); idx >= 0 {
		chanPart := s[:idx]
		s = s[idx+2:]
		if i := strings.IndexByte(chanPart, '/'); i >= 0 {
			f.Channel, f.Subdir = chanPart[:i], chanPart[i+1:]
		} else {
			f.Channel = chanPart
		}
	}

	if strings.HasSuffix(s, "]") {
		i := strings.Index(s, "[")
		if i < 0 {
			return MatchSpec{}, &InvalidSpecError{text, "unmatched ']'"}
		}
		if err := parseBrackets(text, s[i+1:len(s)-1], &f); err != nil {
			return MatchSpec{}, err
		}
		s = s[:i]
	}

	s = strings.TrimSpace(s)
	if s != "" {
		name, rest := splitName(s)
		if name == "" {
			return MatchSpec{}, &InvalidSpecError{text, "missing package name"}
		}
		if f.Name == "" {
			f.Name = name
		}
		rest = strings.TrimSpace(rest)
		if rest != "" {
			ver, build, err := splitVersionBuild(text, rest)
			if err != nil {
				return MatchSpec{}, err
			}
			if f.Version == "" {
				f.Version = ver
			}
			if f.Build == "" {
				f.Build = build
			}
		}
	}
	return FromFields(f)
}

// MustParse is Parse for spec literals known to be valid.
func MustParse(text string) MatchSpec {
	m, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return m
}

func splitName(s string) (name, rest string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '.' || c == '-' || c == '_' || c == '*' {
			i++
			continue
		}
		break
	}
	return s[:i], s[i:]
}

func splitVersionBuild(text, rest string) (ver, build string, err error) {
	if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") {
		// legacy single '=': name=1.0 is fuzzy, name=1.0=build is exact
		body := rest[1:]
		if i := strings.IndexByte(body, '='); i >= 0 {
			ver, build = body[:i], body[i+1:]
			if ver == "" || build == "" {
				return "", "", &InvalidSpecError{text, "malformed version/build"}
			}
			return ver, build, nil
		}
		if body == "" {
			return "", "", &InvalidSpecError{text, "missing version after '='"}
		}
		if !strings.ContainsAny(body, "*<>!~=|,") {
			body += "*"
		}
		return body, "", nil
	}

	tokens := strings.Fields(rest)
	// "pkg >= 1.0" is tolerated by joining the dangling operator
	if len(tokens) >= 2 && strings.ContainsAny(tokens[0][len(tokens[0])-1:], "=<>!~,|") {
		tokens = append([]string{tokens[0] + tokens[1]}, tokens[2:]...)
	}
	switch len(tokens) {
	case 1:
		return tokens[0], "", nil
	case 2:
		return tokens[0], tokens[1], nil
	default:
		return "", "", &InvalidSpecError{text, "too many fields"}
	}
}

func parseBrackets(text, body string, f *Fields) error {
	for _, pair := range splitQuoted(body) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		i := strings.IndexByte(pair, '=')
		if i < 0 {
			if pair == "optional" {
				f.Optional = true
				continue
			}
			return &InvalidSpecError{text, "malformed bracket entry " + pair}
		}
		key := strings.TrimSpace(pair[:i])
		val := strings.Trim(strings.TrimSpace(pair[i+1:]), `'"`)
		switch key {
		case "name":
			f.Name = val
		case "version":
			f.Version = val
		case "build":
			f.Build = val
		case "build_number":
			n, err := strconv.Atoi(val)
			if err != nil {
				return &InvalidSpecError{text, "build_number must be an integer"}
			}
			f.BuildNumber = &n
		case "channel":
			f.Channel = val
		case "subdir":
			f.Subdir = val
		case "track_features":
			f.TrackFeatures = strings.FieldsFunc(val, func(r rune) bool {
				return r == ',' || r == ' '
			})
		case "url":
			f.URL = val
		case "md5":
			f.MD5 = val
		case "license":
			f.License = val
		case "optional":
			f.Optional = val == "" || val == "true"
		default:
			return &InvalidSpecError{text, "unknown bracket key " + key}
		}
	}
	return nil
}

// splitQuoted splits on commas that are outside single or double quotes.
func splitQuoted(s string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// Name returns the spec's package name, or "*" when the spec is not
// restricted to one name.
func (m MatchSpec) Name() string { return m.name }

// Version returns the version constraint, or nil when unconstrained.
func (m MatchSpec) Version() *VersionSpec { return m.version }

// Optional reports whether the spec is advisory: an optional spec
// constrains a package when present but does not require it.
func (m MatchSpec) Optional() bool { return m.optional }

// NameIsGlob reports whether the spec's name can match more than one
// package name.
func (m MatchSpec) NameIsGlob() bool { return m.name == "*" || m.nameRe != nil }

// IsNameOnly reports whether the spec constrains nothing but the name.
func (m MatchSpec) IsNameOnly() bool {
	return m.name != "*" && m.nameRe == nil && m.version == nil && m.build == nil &&
		m.buildNumber == nil && m.channel == nil && m.subdir == nil &&
		len(m.trackFeatures) == 0 && m.url == nil && m.md5 == nil && m.license == nil
}

// IsTrackFeaturesOnly reports whether the spec selects records purely by
// track feature.
func (m MatchSpec) IsTrackFeaturesOnly() bool {
	return m.name == "*" && len(m.trackFeatures) > 0 && m.version == nil && m.build == nil
}

// TrackFeatures returns the features the spec selects on.
func (m MatchSpec) TrackFeatures() []string {
	return append([]string(nil), m.trackFeatures...)
}

// IsExact reports whether the spec can match at most one record identity:
// exact name, exact version and exact build.
func (m MatchSpec) IsExact() bool {
	return m.name != "*" && m.nameRe == nil &&
		m.version != nil && m.version.IsExact() &&
		m.build.isExact()
}

// Match reports whether the record satisfies every constraint the spec
// carries.
func (m MatchSpec) Match(r record.Record) bool {
	if m.name != "*" {
		if m.nameRe != nil {
			if !m.nameRe.MatchString(r.Name) {
				return false
			}
		} else if m.name != r.Name {
			return false
		}
	}
	if m.version != nil && !m.version.Match(r.Version) {
		return false
	}
	if m.build != nil && !m.build.match(r.Build) {
		return false
	}
	if m.buildNumber != nil && *m.buildNumber != r.BuildNumber {
		return false
	}
	if m.channel != nil && !m.channel.match(r.Channel) {
		return false
	}
	if m.subdir != nil && !m.subdir.match(r.Subdir) {
		return false
	}
	for _, feat := range m.trackFeatures {
		if !r.HasTrackFeature(feat) {
			return false
		}
	}
	if m.url != nil && !m.url.match(r.URL) {
		return false
	}
	if m.md5 != nil && !m.md5.match(r.MD5) {
		return false
	}
	if m.license != nil && !m.license.match(r.License) {
		return false
	}
	return true
}

// Fields decomposes the spec back into its builder form, so callers can
// weaken or extend it and recompile.
func (m MatchSpec) Fields() Fields {
	f := Fields{Name: m.name, Optional: m.optional}
	if f.Name == "*" {
		f.Name = ""
	}
	if m.version != nil {
		f.Version = m.version.Spec()
	}
	if m.build != nil {
		f.Build = m.build.raw
	}
	if m.buildNumber != nil {
		n := *m.buildNumber
		f.BuildNumber = &n
	}
	if m.channel != nil {
		f.Channel = m.channel.raw
	}
	if m.subdir != nil {
		f.Subdir = m.subdir.raw
	}
	f.TrackFeatures = append([]string(nil), m.trackFeatures...)
	if m.url != nil {
		f.URL = m.url.raw
	}
	if m.md5 != nil {
		f.MD5 = m.md5.raw
	}
	if m.license != nil {
		f.License = m.license.raw
	}
	return f
}

func (m MatchSpec) render() string {
	base := ""
	channelInPrefix := false
	if m.channel.isExact() {
		base = m.channel.raw
		channelInPrefix = true
		if m.subdir.isExact() {
			base += "/" + m.subdir.raw
		}
		base += "::"
	}
	base += m.name

	var brackets []string
	addBracket := func(key, val string) {
		brackets = append(brackets, fmt.Sprintf("%s='%s'", key, val))
	}

	simpleTriple := m.version != nil && m.version.IsExact() && m.build.isExact() &&
		m.buildNumber == nil && len(m.trackFeatures) == 0 &&
		m.url == nil && m.md5 == nil && m.license == nil && !m.optional &&
		(m.channel == nil || channelInPrefix) && (m.subdir == nil || channelInPrefix)
	if simpleTriple {
		ver := strings.TrimPrefix(m.version.Spec(), "==")
		return base + "=" + ver + "=" + m.build.raw
	}

	if m.version != nil {
		brackets = append(brackets, "version='"+m.version.Spec()+"'")
	}
	if m.build != nil {
		addBracket("build", m.build.raw)
	}
	if m.buildNumber != nil {
		addBracket("build_number", strconv.Itoa(*m.buildNumber))
	}
	if m.channel != nil && !channelInPrefix {
		addBracket("channel", m.channel.raw)
	}
	if m.subdir != nil && !channelInPrefix {
		addBracket("subdir", m.subdir.raw)
	}
	if len(m.trackFeatures) > 0 {
		addBracket("track_features", strings.Join(m.trackFeatures, " "))
	}
	if m.url != nil {
		addBracket("url", m.url.raw)
	}
	if m.md5 != nil {
		addBracket("md5", m.md5.raw)
	}
	if m.license != nil {
		addBracket("license", m.license.raw)
	}
	if m.optional {
		brackets = append(brackets, "optional")
	}

	if len(brackets) == 0 {
		return base
	}
	// a lone simple version renders without brackets: zlib>=1.2.7
	if len(brackets) == 1 && m.version != nil && !m.optional {
		spec := m.version.Spec()
		if !strings.ContainsAny(spec, "' ()") {
			if strings.ContainsAny(spec[:1], "=<>!~") {
				return base + spec
			}
			return base + " " + spec
		}
	}
	return base + "[" + strings.Join(brackets, ",") + "]"
}

// String returns the normalized spec string. Two specs are equivalent iff
// their strings are equal.
func (m MatchSpec) String() string { return m.str }

// Equal reports spec equivalence by normalized string.
func (m MatchSpec) Equal(o MatchSpec) bool { return m.str == o.str }

// WithOptional returns a copy of the spec with the optional flag set.
func (m MatchSpec) WithOptional(optional bool) MatchSpec {
	f := m.Fields()
	f.Optional = optional
	out, err := FromFields(f)
	if err != nil {
		panic(err)
	}
	return out
}

// Merge combines two specs for the same package into one spec that
// requires both. Version constraints AND together; any other field that
// both specs constrain differently is a conflict.
func Merge(a, b MatchSpec) (MatchSpec, error) {
	fa, fb := a.Fields(), b.Fields()
	out := Fields{Optional: a.optional && b.optional}

	switch {
	case fa.Name == "" || fa.Name == fb.Name:
		out.Name = fb.Name
	case fb.Name == "":
		out.Name = fa.Name
	default:
		return MatchSpec{}, &InvalidSpecError{a.String(), "cannot merge with " + b.String() + ": name mismatch"}
	}

	switch {
	case fa.Version == "":
		out.Version = fb.Version
	case fb.Version == "" || fa.Version == fb.Version:
		out.Version = fa.Version
	default:
		out.Version = fa.Version + "," + fb.Version
	}

	var err error
	if out.Build, err = mergeExact(a, b, "build", fa.Build, fb.Build); err != nil {
		return MatchSpec{}, err
	}
	if fa.BuildNumber != nil && fb.BuildNumber != nil && *fa.BuildNumber != *fb.BuildNumber {
		return MatchSpec{}, &InvalidSpecError{a.String(),
			"cannot merge with " + b.String() + ": build_number mismatch"}
	}
	if out.BuildNumber = fa.BuildNumber; out.BuildNumber == nil {
		out.BuildNumber = fb.BuildNumber
	}
	if out.Channel, err = mergeExact(a, b, "channel", fa.Channel, fb.Channel); err != nil {
		return MatchSpec{}, err
	}
	if out.Subdir, err = mergeExact(a, b, "subdir", fa.Subdir, fb.Subdir); err != nil {
		return MatchSpec{}, err
	}
	if out.URL, err = mergeExact(a, b, "url", fa.URL, fb.URL); err != nil {
		return MatchSpec{}, err
	}
	if out.MD5, err = mergeExact(a, b, "md5", fa.MD5, fb.MD5); err != nil {
		return MatchSpec{}, err
	}
	if out.License, err = mergeExact(a, b, "license", fa.License, fb.License); err != nil {
		return MatchSpec{}, err
	}
	out.TrackFeatures = append(fa.TrackFeatures, fb.TrackFeatures...)
	return FromFields(out)
}

func mergeExact(a, b MatchSpec, field, va, vb string) (string, error) {
	switch {
	case va == "" || va == vb:
		return vb, nil
	case vb == "":
		return va, nil
	default:
		return "", &InvalidSpecError{a.String(),
			fmt.Sprintf("cannot merge with %s: %s mismatch", b.String(), field)}
	}
}
