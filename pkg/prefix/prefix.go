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

/*Package prefix reads and writes the metadata an environment keeps
about itself: one YAML document per installed record under
strata-meta/, the request history, and the pin file. Writes take a
file lock so concurrent invocations against the same prefix do not
corrupt each other.
*/
package prefix

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/record"
)

const (
	metaDirName   = "strata-meta"
	historyName   = "history.yaml"
	pinnedName    = "pinned"
	lockTimeout   = 30 * time.Second
	lockRetryWait = time.Second
)

// Data is the metadata handle for one prefix.
type Data struct {
	prefix string
}

// New returns a handle for the given prefix. The prefix need not exist
// yet; it is created on first write.
func New(prefix string) *Data {
	return &Data{prefix: prefix}
}

// Prefix returns the environment directory the handle points at.
func (d *Data) Prefix() string { return d.prefix }

func (d *Data) metaDir() string { return filepath.Join(d.prefix, metaDirName) }

// InstalledRecords returns every record linked into the prefix, in
// dependency-agnostic sorted order.
func (d *Data) InstalledRecords() ([]record.Record, error) {
	paths, err := filepath.Glob(filepath.Join(d.metaDir(), "*.yaml"))
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for _, p := range paths {
		if filepath.Base(p) == historyName {
			continue
		}
		b, err := ioutil.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var r record.Record
		if err := yaml.Unmarshal(b, &r); err != nil {
			return nil, errors.Wrapf(err, "error loading %s", p)
		}
		out = append(out, r)
	}
	record.Sort(out)
	return out, nil
}

// Insert writes the record's metadata document. The installer calls
// this after linking the record's files.
func (d *Data) Insert(r record.Record) error {
	unlock, err := d.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.MkdirAll(d.metaDir(), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(d.recordPath(r), b, 0o644)
}

// Remove deletes the record's metadata document.
func (d *Data) Remove(r record.Record) error {
	unlock, err := d.lock()
	if err != nil {
		return err
	}
	defer unlock()

	err = os.Remove(d.recordPath(r))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *Data) recordPath(r record.Record) string {
	name := fmt.Sprintf("%s-%s-%s.yaml", r.Name, r.Version, r.Build)
	return filepath.Join(d.metaDir(), name)
}

// historyFile is the on-disk shape of the request history.
type historyFile struct {
	Requested []string `yaml:"requested"`
}

// RequestedSpecsMap returns the specs the user has asked for over the
// prefix's lifetime, newest request per name winning.
func (d *Data) RequestedSpecsMap() (map[string]matchspec.MatchSpec, error) {
	b, err := ioutil.ReadFile(filepath.Join(d.metaDir(), historyName))
	if os.IsNotExist(err) {
		return map[string]matchspec.MatchSpec{}, nil
	}
	if err != nil {
		return nil, err
	}
	var h historyFile
	if err := yaml.Unmarshal(b, &h); err != nil {
		return nil, errors.Wrap(err, "error loading request history")
	}
	out := make(map[string]matchspec.MatchSpec, len(h.Requested))
	for _, text := range h.Requested {
		spec, err := matchspec.Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid spec %q in request history", text)
		}
		out[spec.Name()] = spec
	}
	return out, nil
}

// UpdateHistory records the outcome of a transaction: added and
// neutered specs replace same-name entries, removed names drop out.
func (d *Data) UpdateHistory(added, removed []matchspec.MatchSpec) error {
	unlock, err := d.lock()
	if err != nil {
		return err
	}
	defer unlock()

	current, err := d.RequestedSpecsMap()
	if err != nil {
		return err
	}
	for _, spec := range removed {
		delete(current, spec.Name())
	}
	for _, spec := range added {
		current[spec.Name()] = spec
	}

	names := make([]string, 0, len(current))
	for n := range current {
		names = append(names, n)
	}
	sort.Strings(names)
	h := historyFile{}
	for _, n := range names {
		h.Requested = append(h.Requested, current[n].String())
	}
	if err := os.MkdirAll(d.metaDir(), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(h)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(d.metaDir(), historyName), b, 0o644)
}

// PinnedSpecs reads the prefix's pin file: one spec per line, blank
// lines and '#' comments ignored.
func (d *Data) PinnedSpecs() ([]matchspec.MatchSpec, error) {
	b, err := ioutil.ReadFile(filepath.Join(d.metaDir(), pinnedName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []matchspec.MatchSpec
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		spec, err := matchspec.Parse(line)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pinned spec %q", line)
		}
		out = append(out, spec)
	}
	return out, nil
}

// lock takes the prefix-wide write lock, waiting up to lockTimeout.
func (d *Data) lock() (func(), error) {
	if err := os.MkdirAll(d.prefix, 0o755); err != nil {
		return nil, err
	}
	fileLock := flock.New(filepath.Join(d.prefix, "."+metaDirName+".lock"))
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to lock %s", d.prefix)
	}
	if !locked {
		return nil, errors.Errorf("unable to lock %s", d.prefix)
	}
	return func() { _ = fileLock.Unlock() }, nil
}
