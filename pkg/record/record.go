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

/*Package record defines the immutable descriptor of a concrete package
artifact: the unit the solver reasons about. The same name with a
different version, build, or channel is a different record.
*/
package record

import (
	"fmt"
	"sort"

	"github.com/jinzhu/copier"

	"github.com/strata-sandbox/strata/pkg/version"
)

// Kind classifies how a record participates in resolution.
type Kind int

const (
	// Ordinary records come from a channel index and are fully managed.
	Ordinary Kind = iota
	// Virtual records describe system properties (OS, libc, CPU flags);
	// they are never linked or unlinked.
	Virtual
	// Foreign records were installed by another tool; the solver keeps
	// them pinned and never offers alternatives.
	Foreign
	// Unmanageable records cannot be relinked on this system (for
	// example, the running tool's own bootstrap dependencies).
	Unmanageable
)

func (k Kind) String() string {
	switch k {
	case Virtual:
		return "virtual"
	case Foreign:
		return "foreign"
	case Unmanageable:
		return "unmanageable"
	default:
		return "ordinary"
	}
}

// Record describes one installable package artifact. Records are
// immutable: transformations return copies.
type Record struct {
	Name          string   `yaml:"name" json:"name"`
	Version       string   `yaml:"version" json:"version"`
	Build         string   `yaml:"build,omitempty" json:"build,omitempty"`
	BuildNumber   int      `yaml:"build_number,omitempty" json:"build_number,omitempty"`
	Subdir        string   `yaml:"subdir,omitempty" json:"subdir,omitempty"`
	Channel       string   `yaml:"channel,omitempty" json:"channel,omitempty"`
	Depends       []string `yaml:"depends,omitempty" json:"depends,omitempty"`
	Constrains    []string `yaml:"constrains,omitempty" json:"constrains,omitempty"`
	TrackFeatures []string `yaml:"track_features,omitempty" json:"track_features,omitempty"`
	Size          int64    `yaml:"size,omitempty" json:"size,omitempty"`
	MD5           string   `yaml:"md5,omitempty" json:"md5,omitempty"`
	URL           string   `yaml:"url,omitempty" json:"url,omitempty"`
	License       string   `yaml:"license,omitempty" json:"license,omitempty"`
	Timestamp     int64    `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	Kind          Kind     `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Noarch records are interpreter-agnostic and must be relinked when
	// the interpreter's minor version changes.
	Noarch bool `yaml:"noarch,omitempty" json:"noarch,omitempty"`
}

// Key is the identity of a record: two records with equal keys denote the
// same artifact.
type Key string

// Key returns the record's identity key. The separator cannot occur in
// any field, so distinct records never collide.
func (r Record) Key() Key {
	return Key(fmt.Sprintf("%s::%s::%s::%d::%s", r.Name, r.Version, r.Build, r.BuildNumber, r.Channel))
}

func (r Record) String() string {
	if r.Build == "" {
		return fmt.Sprintf("%s-%s", r.Name, r.Version)
	}
	return fmt.Sprintf("%s-%s-%s", r.Name, r.Version, r.Build)
}

// ParsedVersion parses the record's version through the interned version
// order. Records coming from an index always carry valid versions.
func (r Record) ParsedVersion() (*version.Version, error) {
	return version.Parse(r.Version)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	var out Record
	if err := copier.CopyWithOption(&out, &r, copier.Option{DeepCopy: true}); err != nil {
		// Record contains only plain data; a copy cannot fail.
		panic(err)
	}
	return out
}

// WithKind returns a copy of the record with the given kind.
func (r Record) WithKind(k Kind) Record {
	out := r.Clone()
	out.Kind = k
	return out
}

// WithChannel returns a copy of the record assigned to the given channel.
func (r Record) WithChannel(channel string) Record {
	out := r.Clone()
	out.Channel = channel
	return out
}

// HasTrackFeature reports whether the record carries the given track
// feature.
func (r Record) HasTrackFeature(feature string) bool {
	for _, f := range r.TrackFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

// Sort orders records by name, then version order, then build number,
// then build string. Invalid versions sort by their raw string.
func Sort(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		va, errA := a.ParsedVersion()
		vb, errB := b.ParsedVersion()
		if errA == nil && errB == nil {
			if d := version.Compare(va, vb); d != 0 {
				return d < 0
			}
		} else if a.Version != b.Version {
			return a.Version < b.Version
		}
		if a.BuildNumber != b.BuildNumber {
			return a.BuildNumber < b.BuildNumber
		}
		return a.Build < b.Build
	})
}

// Keys returns the identity keys of the given records, in order.
func Keys(records []Record) []Key {
	keys := make([]Key, len(records))
	for i, r := range records {
		keys[i] = r.Key()
	}
	return keys
}
