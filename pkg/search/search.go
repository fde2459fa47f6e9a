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

/*Package search finds packages in the channel index by name, so the
lookup logic can be reused and composed over instead of living inside
the search command.
*/
package search

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/Masterminds/log-go"
	logio "github.com/Masterminds/log-go/io"
	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/strata-sandbox/strata/pkg/diff"
	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// Options filters a search and configures its output.
type Options struct {
	// Versions lists every matching version, not just the newest.
	Versions bool
	// Regexp treats search terms as regular expressions instead of
	// substrings.
	Regexp bool
	// Spec constrains the matches further, e.g. ">=1.2,<1.3".
	Spec string
	// MaxColWidth caps table column width.
	MaxColWidth uint

	OutputFormat diff.OutputMode
}

// Run searches records for the given terms and prints the matches.
func (o *Options) Run(logger log.Logger, records []record.Record, terms []string) error {
	wInfo := logio.NewWriter(logger, log.InfoLevel)

	res, err := o.search(records, terms)
	if err != nil {
		return err
	}
	return o.write(wInfo, res)
}

func (o *Options) search(records []record.Record, terms []string) ([]record.Record, error) {
	matchers, err := o.matchers(terms)
	if err != nil {
		return nil, err
	}

	var res []record.Record
	for _, r := range records {
		matched := len(matchers) == 0
		for _, m := range matchers {
			if m(r.Name) {
				matched = true
				break
			}
		}
		if matched {
			res = append(res, r)
		}
	}

	if o.Spec != "" {
		res, err = o.applyConstraint(res)
		if err != nil {
			return nil, err
		}
	}

	record.Sort(res)
	if !o.Versions {
		res = newestPerName(res)
	}
	return res, nil
}

func (o *Options) matchers(terms []string) ([]func(string) bool, error) {
	out := make([]func(string) bool, 0, len(terms))
	for _, term := range terms {
		if o.Regexp {
			re, err := regexp.Compile(term)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid search expression %q", term)
			}
			out = append(out, re.MatchString)
			continue
		}
		t := strings.ToLower(term)
		out = append(out, func(name string) bool {
			return strings.Contains(strings.ToLower(name), t)
		})
	}
	return out, nil
}

// applyConstraint keeps the records whose version satisfies the
// configured spec string.
func (o *Options) applyConstraint(res []record.Record) ([]record.Record, error) {
	var out []record.Record
	for _, r := range res {
		spec, err := matchspec.Parse(r.Name + " " + o.Spec)
		if err != nil {
			return nil, errors.Wrapf(err, "an invalid version/constraint format %q", o.Spec)
		}
		if spec.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// newestPerName keeps the last record of each name. The input is in
// ascending version order, so the last one is the newest.
func newestPerName(res []record.Record) []record.Record {
	byName := map[string]record.Record{}
	var names []string
	for _, r := range res {
		if _, ok := byName[r.Name]; !ok {
			names = append(names, r.Name)
		}
		byName[r.Name] = r
	}
	out := make([]record.Record, 0, len(names))
	for _, n := range names {
		out = append(out, byName[n])
	}
	return out
}

// resultElement is the final shape a match gets printed as.
type resultElement struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Build   string `json:"build" yaml:"build"`
	Channel string `json:"channel" yaml:"channel"`
}

func (o *Options) write(out io.Writer, res []record.Record) error {
	if len(res) == 0 && o.OutputFormat == diff.Table {
		_, err := out.Write([]byte("No results found\n"))
		return err
	}

	elements := make([]resultElement, 0, len(res))
	for _, r := range res {
		elements = append(elements, resultElement{r.Name, r.Version, r.Build, r.Channel})
	}

	switch o.OutputFormat {
	case diff.JSON:
		b, err := json.Marshal(elements)
		if err != nil {
			return err
		}
		_, err = out.Write(append(b, '\n'))
		return err
	case diff.YAML:
		b, err := yaml.Marshal(elements)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	default:
		width := o.MaxColWidth
		if width == 0 {
			width = 50
		}
		table := uitable.New()
		table.MaxColWidth = width
		table.AddRow("NAME", "VERSION", "BUILD", "CHANNEL")
		for _, e := range elements {
			table.AddRow(e.Name, e.Version, e.Build, e.Channel)
		}
		_, err := out.Write([]byte(table.String() + "\n"))
		return err
	}
}
