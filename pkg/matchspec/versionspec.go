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
	"regexp"
	"strings"

	"github.com/strata-sandbox/strata/pkg/version"
)

// VersionSpec is an immutable predicate over version strings: a leaf
// matcher (always-true, relational operator, glob, regex, raw equality) or
// an AND/OR tree of them.
type VersionSpec struct {
	raw   string
	exact bool
	match func(string) bool
}

// Spec returns the normalized spec string.
func (vs *VersionSpec) Spec() string { return vs.raw }

// IsExact reports whether the spec can only be satisfied by a single
// version.
func (vs *VersionSpec) IsExact() bool { return vs.exact }

// Match reports whether the given version string satisfies the spec.
// Version strings that do not parse never match a relational leaf.
func (vs *VersionSpec) Match(v string) bool { return vs.match(v) }

// Node is one element of a treeified compound spec: either a string leaf
// or an operator with children.
type Node struct {
	op       byte // ',' or '|'; 0 for leaves
	leaf     string
	children []Node
}

// Treeify parses a compound spec string into an AND/OR tree. ',' (AND)
// binds tighter than '|' (OR); parentheses group explicitly. Regex leaves
// delimited by '^' and '$' are kept whole.
func Treeify(spec string) (Node, error) {
	tokens, err := tokenizeVSpec(spec)
	if err != nil {
		return Node{}, err
	}
	p := &vspecParser{spec: spec, tokens: tokens}
	n, err := p.parseOr()
	if err != nil {
		return Node{}, err
	}
	if p.pos != len(p.tokens) {
		return Node{}, &version.InvalidSpecError{Spec: spec, Problem: "unexpected token " + p.tokens[p.pos]}
	}
	return n, nil
}

// Untreeify renders a tree back to a spec string. The result is
// semantically equivalent to the treeified input.
func Untreeify(n Node) string {
	return untreeify(n, false, 0)
}

func untreeify(n Node, inAnd bool, depth int) string {
	if n.op == 0 {
		return n.leaf
	}
	parts := make([]string, len(n.children))
	if n.op == '|' {
		for i, c := range n.children {
			parts[i] = untreeify(c, false, depth+1)
		}
		res := strings.Join(parts, "|")
		if inAnd || depth > 0 {
			res = "(" + res + ")"
		}
		return res
	}
	for i, c := range n.children {
		parts[i] = untreeify(c, true, depth+1)
	}
	res := strings.Join(parts, ",")
	if depth > 0 {
		res = "(" + res + ")"
	}
	return res
}

func tokenizeVSpec(spec string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(spec) {
		c := spec[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '^':
			// regex leaf, runs through the closing '$'
			j := strings.IndexByte(spec[i:], '$')
			if j < 0 {
				return nil, &version.InvalidSpecError{Spec: spec, Problem: "unterminated regex"}
			}
			tokens = append(tokens, spec[i:i+j+1])
			i += j + 1
		case c == '(' || c == ')' || c == '|' || c == ',':
			tokens = append(tokens, string(c))
			i++
		default:
			j := i
			for j < len(spec) && !strings.ContainsRune("(),| \t", rune(spec[j])) {
				j++
			}
			tokens = append(tokens, spec[i:j])
			i = j
		}
	}
	if len(tokens) == 0 {
		return nil, &version.InvalidSpecError{Spec: spec, Problem: "empty version spec"}
	}
	return tokens, nil
}

type vspecParser struct {
	spec   string
	tokens []string
	pos    int
}

func (p *vspecParser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return Node{}, err
	}
	children := []Node{first}
	for p.pos < len(p.tokens) && p.tokens[p.pos] == "|" {
		p.pos++
		next, err := p.parseAnd()
		if err != nil {
			return Node{}, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return Node{op: '|', children: children}, nil
}

func (p *vspecParser) parseAnd() (Node, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return Node{}, err
	}
	children := []Node{first}
	for p.pos < len(p.tokens) && p.tokens[p.pos] == "," {
		p.pos++
		next, err := p.parsePrimary()
		if err != nil {
			return Node{}, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return Node{op: ',', children: children}, nil
}

func (p *vspecParser) parsePrimary() (Node, error) {
	if p.pos >= len(p.tokens) {
		return Node{}, &version.InvalidSpecError{Spec: p.spec, Problem: "expected version constraint"}
	}
	tok := p.tokens[p.pos]
	if tok == "(" {
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return Node{}, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos] != ")" {
			return Node{}, &version.InvalidSpecError{Spec: p.spec, Problem: "expected ')'"}
		}
		p.pos++
		return n, nil
	}
	if tok == ")" || tok == "|" || tok == "," {
		return Node{}, &version.InvalidSpecError{Spec: p.spec, Problem: "unexpected token " + tok}
	}
	p.pos++
	return Node{leaf: tok}, nil
}

// NewVersionSpec parses a version constraint string into a VersionSpec.
func NewVersionSpec(spec string) (*VersionSpec, error) {
	spec = strings.TrimSpace(spec)
	if strings.ContainsAny(spec, "(),|") {
		tree, err := Treeify(spec)
		if err != nil {
			return nil, err
		}
		return compileTree(tree)
	}
	return compileLeaf(spec)
}

// MustVersionSpec is NewVersionSpec for spec literals known to be valid.
func MustVersionSpec(spec string) *VersionSpec {
	vs, err := NewVersionSpec(spec)
	if err != nil {
		panic(err)
	}
	return vs
}

func compileTree(n Node) (*VersionSpec, error) {
	if n.op == 0 {
		return compileLeaf(n.leaf)
	}
	subs := make([]*VersionSpec, len(n.children))
	for i, c := range n.children {
		sub, err := compileTree(c)
		if err != nil {
			return nil, err
		}
		subs[i] = sub
	}
	any := n.op == '|'
	return &VersionSpec{
		raw: Untreeify(n),
		match: func(v string) bool {
			for _, sub := range subs {
				if sub.match(v) == any {
					return any
				}
			}
			return !any
		},
	}, nil
}

var relationOps = []string{"==", "!=", "<=", ">=", "~=", "<", ">", "="}

func splitRelation(spec string) (op, rest string, ok bool) {
	for _, o := range relationOps {
		if strings.HasPrefix(spec, o) {
			rest = spec[len(o):]
			if rest == "" || strings.ContainsAny(rest[:1], "=<>!~") {
				return "", "", false
			}
			return o, rest, true
		}
	}
	return "", "", false
}

func compileLeaf(spec string) (*VersionSpec, error) {
	switch {
	case spec == "":
		return nil, &version.InvalidSpecError{Spec: spec, Problem: "empty version spec"}

	case spec == "*":
		return &VersionSpec{raw: spec, match: func(string) bool { return true }}, nil

	case strings.ContainsAny(spec[:1], "=<>!~"):
		op, vstr, ok := splitRelation(spec)
		if !ok {
			return nil, &version.InvalidSpecError{Spec: spec, Problem: "invalid operator"}
		}
		return compileRelation(spec, op, vstr)

	case strings.HasPrefix(spec, "^") || strings.HasSuffix(spec, "$"):
		if !strings.HasPrefix(spec, "^") || !strings.HasSuffix(spec, "$") {
			return nil, &version.InvalidSpecError{Spec: spec,
				Problem: "regex specs must start with '^' and end with '$'"}
		}
		re, err := regexp.Compile(spec)
		if err != nil {
			return nil, &version.InvalidSpecError{Spec: spec, Problem: "invalid regex"}
		}
		return &VersionSpec{raw: spec, match: re.MatchString}, nil

	case strings.Contains(strings.TrimRight(spec, "*"), "*"):
		// interior glob: convert to a regex
		re, err := regexp.Compile("^(?:" + strings.ReplaceAll(spec, "*", ".*") + ")$")
		if err != nil {
			return nil, &version.InvalidSpecError{Spec: spec, Problem: "invalid glob"}
		}
		return &VersionSpec{raw: spec, match: re.MatchString}, nil

	case strings.HasSuffix(spec, "*"):
		norm := spec
		if !strings.HasSuffix(norm, ".*") {
			norm = norm[:len(norm)-1] + ".*"
		}
		vo, err := version.Parse(strings.TrimRight(strings.TrimRight(norm, "*"), "."))
		if err != nil {
			return nil, err
		}
		// normalized to the '=' spelling so spec strings round-trip
		return &VersionSpec{raw: "=" + vo.String() + ".*", match: startsWithMatcher(vo)}, nil

	case !strings.Contains(spec, "@"):
		vo, err := version.Parse(spec)
		if err != nil {
			return nil, err
		}
		return &VersionSpec{raw: spec, exact: true, match: equalsMatcher(vo)}, nil

	default:
		return &VersionSpec{raw: spec, exact: true, match: func(v string) bool { return v == spec }}, nil
	}
}

func compileRelation(spec, op, vstr string) (*VersionSpec, error) {
	if strings.HasSuffix(vstr, ".*") {
		switch op {
		case "=", ">=":
			vstr = vstr[:len(vstr)-2]
		case "!=":
			vstr = vstr[:len(vstr)-2]
			op = "!=startswith"
		case "~=":
			return nil, &version.InvalidSpecError{Spec: spec, Problem: "invalid operator with '.*'"}
		default:
			// e.g. <1.0.*: the glob adds nothing to a strict relation
			vstr = vstr[:len(vstr)-2]
		}
	}
	vo, err := version.Parse(vstr)
	if err != nil {
		return nil, err
	}
	vs := &VersionSpec{raw: op + vstr}
	switch op {
	case "==":
		vs.exact = true
		vs.match = equalsMatcher(vo)
	case "!=":
		eq := equalsMatcher(vo)
		vs.match = func(v string) bool { return !eq(v) }
	case "<", "<=", ">", ">=":
		vs.match = orderMatcher(op, vo)
	case "=":
		vs.raw = "=" + vo.String() + ".*"
		vs.match = startsWithMatcher(vo)
	case "!=startswith":
		vs.raw = "!=" + vo.String() + ".*"
		sw := startsWithMatcher(vo)
		vs.match = func(v string) bool { return !sw(v) }
	case "~=":
		idx := strings.LastIndex(vstr, ".")
		if idx < 0 {
			return nil, &version.InvalidSpecError{Spec: spec,
				Problem: "compatible release operator requires at least two components"}
		}
		series, err := version.Parse(vstr[:idx])
		if err != nil {
			return nil, err
		}
		ge := orderMatcher(">=", vo)
		sw := startsWithMatcher(series)
		vs.match = func(v string) bool { return ge(v) && sw(v) }
	}
	return vs, nil
}

func equalsMatcher(vo *version.Version) func(string) bool {
	return func(v string) bool {
		parsed, err := version.Parse(v)
		if err != nil {
			return false
		}
		return parsed.Equal(vo)
	}
}

func startsWithMatcher(vo *version.Version) func(string) bool {
	return func(v string) bool {
		parsed, err := version.Parse(v)
		if err != nil {
			return false
		}
		return parsed.StartsWith(vo)
	}
}

func orderMatcher(op string, vo *version.Version) func(string) bool {
	return func(v string) bool {
		parsed, err := version.Parse(v)
		if err != nil {
			return false
		}
		d := version.Compare(parsed, vo)
		switch op {
		case "<":
			return d < 0
		case "<=":
			return d <= 0
		case ">":
			return d > 0
		default:
			return d >= 0
		}
	}
}
