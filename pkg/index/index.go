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

/*Package index loads channel index files and answers candidate
queries for the solver. A channel index is one YAML document per
subdir listing the records the channel serves.
*/
package index

import (
	"io/ioutil"
	"path/filepath"
	"sort"

	"github.com/Masterminds/log-go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

// APIVersionV1 is the v1 API version for channel index files.
const APIVersionV1 = "v1"

// ErrNoAPIVersion indicates that an API version was not specified.
var ErrNoAPIVersion = errors.New("no API version specified")

// File is the on-disk shape of one channel subdir index.
type File struct {
	APIVersion string          `yaml:"apiVersion"`
	Channel    string          `yaml:"channel"`
	Subdir     string          `yaml:"subdir"`
	Packages   []record.Record `yaml:"packages"`
}

// LoadFile reads a channel index document from path. Records inherit
// the document's channel and subdir when they carry none themselves,
// and invalid records are skipped rather than failing the whole file.
func LoadFile(path string) (*File, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := loadFile(b, path)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading %s", path)
	}
	return f, nil
}

func loadFile(data []byte, source string) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, err
	}
	kept := f.Packages[:0]
	for _, r := range f.Packages {
		if r.Name == "" || r.Version == "" {
			log.Warnf("skipping invalid entry %q from %s", r.String(), source)
			continue
		}
		if _, err := r.ParsedVersion(); err != nil {
			log.Warnf("skipping entry %s from %s: %v", r.String(), source, err)
			continue
		}
		if r.Channel == "" {
			r.Channel = f.Channel
		}
		if r.Subdir == "" {
			r.Subdir = f.Subdir
		}
		kept = append(kept, r)
	}
	f.Packages = kept
	record.Sort(f.Packages)
	if f.APIVersion == "" {
		return f, ErrNoAPIVersion
	}
	return f, nil
}

// LoadDir loads every *.yaml index document under dir, first-channel
// wins on identical record identities.
func LoadDir(dir string) ([]record.Record, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var out []record.Record
	seen := map[record.Key]bool{}
	for _, p := range paths {
		f, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		for _, r := range f.Packages {
			if seen[r.Key()] {
				continue
			}
			seen[r.Key()] = true
			out = append(out, r)
		}
	}
	record.Sort(out)
	return out, nil
}

// InMemory serves candidate queries from a fixed record set.
type InMemory struct {
	records []record.Record
	byName  map[string][]record.Record
}

// NewInMemory builds a provider over the given records. Virtual
// records are always part of every reduced index.
func NewInMemory(records ...record.Record) *InMemory {
	ix := &InMemory{byName: map[string][]record.Record{}}
	seen := map[record.Key]bool{}
	for _, r := range records {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		ix.records = append(ix.records, r)
		ix.byName[r.Name] = append(ix.byName[r.Name], r)
	}
	record.Sort(ix.records)
	return ix
}

// Records returns every record the provider holds.
func (ix *InMemory) Records() []record.Record {
	return append([]record.Record{}, ix.records...)
}

// ReducedIndex returns the records that could participate in solving
// the given specs: every candidate for a requested name plus the
// transitive closure of their dependency names, plus all virtual
// records.
func (ix *InMemory) ReducedIndex(specs []matchspec.MatchSpec) ([]record.Record, error) {
	wanted := map[string]bool{}
	var queue []string
	push := func(name string) {
		if name == "" || name == "*" || wanted[name] {
			return
		}
		wanted[name] = true
		queue = append(queue, name)
	}

	for _, spec := range specs {
		if !spec.NameIsGlob() {
			push(spec.Name())
			continue
		}
		for _, r := range ix.records {
			if spec.Match(r) {
				push(r.Name)
			}
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, r := range ix.byName[name] {
			for _, depStr := range r.Depends {
				dep, err := matchspec.Parse(depStr)
				if err != nil {
					continue
				}
				push(dep.Name())
			}
			for _, conStr := range r.Constrains {
				con, err := matchspec.Parse(conStr)
				if err != nil {
					continue
				}
				push(con.Name())
			}
		}
	}

	var out []record.Record
	for _, r := range ix.records {
		if wanted[r.Name] || r.Kind == record.Virtual {
			out = append(out, r)
		}
	}
	return out, nil
}
