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

/*Package diff turns a previous and a next environment state into the
ordered unlink and link lists an installer executes. Ordering is load
bearing: unlinking walks dependents before dependencies, linking walks
dependencies before dependents.
*/
package diff

import (
	"encoding/json"
	"strings"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v2"

	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// Changes is the record-level difference between two environment
// states. Unlink is ordered in reverse previous-install order, Link in
// forward dependency order of the next state.
type Changes struct {
	Unlink []record.Record `yaml:"unlink" json:"unlink"`
	Link   []record.Record `yaml:"link" json:"link"`
}

// Options tunes how records common to both states are treated.
type Options struct {
	// ForceReinstall relinks unchanged records matched by these specs.
	ForceReinstall []matchspec.MatchSpec
	// Interpreter names the package whose minor-series change forces
	// interpreter-agnostic records to be relinked.
	Interpreter string
}

// Transaction is a solved request ready to execute: the link/unlink
// plan plus the spec bookkeeping that must land in the environment's
// history once the plan succeeds.
type Transaction struct {
	Prefix        string                `yaml:"prefix" json:"prefix"`
	Unlink        []record.Record       `yaml:"unlink" json:"unlink"`
	Link          []record.Record       `yaml:"link" json:"link"`
	SpecsAdded    []matchspec.MatchSpec `yaml:"-" json:"-"`
	SpecsRemoved  []matchspec.MatchSpec `yaml:"-" json:"-"`
	NeuteredSpecs []matchspec.MatchSpec `yaml:"-" json:"-"`
}

// Compute diffs two states by record identity. previous and next must
// already be in dependency order; Compute preserves their orders
// rather than re-sorting.
func Compute(previous, next []record.Record, opts Options) Changes {
	prevKeys := keySet(previous)
	nextKeys := keySet(next)

	relink := map[record.Key]bool{}
	for _, spec := range opts.ForceReinstall {
		for _, r := range next {
			if spec.Match(r) && prevKeys[r.Key()] {
				relink[r.Key()] = true
			}
		}
	}
	if opts.Interpreter != "" && interpreterSeriesChanged(previous, next, opts.Interpreter) {
		// noarch records are linked into the interpreter's own tree
		// and must follow it to the new series
		for _, r := range next {
			if r.Noarch && prevKeys[r.Key()] {
				relink[r.Key()] = true
			}
		}
	}

	var c Changes
	// reverse previous order: dependents come off before dependencies
	for i := len(previous) - 1; i >= 0; i-- {
		r := previous[i]
		if !nextKeys[r.Key()] || relink[r.Key()] {
			c.Unlink = append(c.Unlink, r)
		}
	}
	for _, r := range next {
		if !prevKeys[r.Key()] || relink[r.Key()] {
			c.Link = append(c.Link, r)
		}
	}
	return c
}

// Empty reports whether the diff changes nothing.
func (c Changes) Empty() bool { return len(c.Unlink) == 0 && len(c.Link) == 0 }

func keySet(records []record.Record) map[record.Key]bool {
	out := make(map[record.Key]bool, len(records))
	for _, r := range records {
		out[r.Key()] = true
	}
	return out
}

func interpreterSeriesChanged(previous, next []record.Record, name string) bool {
	prev, prevOK := findByName(previous, name)
	cur, curOK := findByName(next, name)
	if !prevOK || !curOK {
		return false
	}
	pv, err := prev.ParsedVersion()
	if err != nil {
		return false
	}
	cv, err := cur.ParsedVersion()
	if err != nil {
		return false
	}
	return pv.MinorSeries() != cv.MinorSeries()
}

func findByName(records []record.Record, name string) (record.Record, bool) {
	for _, r := range records {
		if r.Name == name {
			return r, true
		}
	}
	return record.Record{}, false
}

// OutputMode selects a rendering for FormatOutput.
type OutputMode int

const (
	JSON OutputMode = iota
	YAML
	Table
)

// FormatOutput renders the diff for human or machine consumption.
func (c Changes) FormatOutput(mode OutputMode) string {
	var sb strings.Builder
	switch mode {
	case Table:
		table := uitable.New()
		table.MaxColWidth = 80
		table.AddRow("ACTION", "NAME", "VERSION", "BUILD", "CHANNEL")
		for _, r := range c.Unlink {
			table.AddRow("unlink", r.Name, r.Version, r.Build, r.Channel)
		}
		for _, r := range c.Link {
			table.AddRow("link", r.Name, r.Version, r.Build, r.Channel)
		}
		sb.WriteString(table.String())
		sb.WriteString("\n")
	case YAML:
		o, _ := yaml.Marshal(c)
		sb.Write(o)
	case JSON:
		o, _ := json.Marshal(c)
		sb.Write(o)
	}
	return sb.String()
}
