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

/*Package action holds the commands' logic: each command builds an
action, sets its knobs from flags, and calls Run. Actions wire the
prefix, the channel index and the solver together and execute the
resulting transaction.
*/
package action

import (
	"github.com/Masterminds/log-go"
	"github.com/pkg/errors"

	"github.com/strata-sandbox/strata/pkg/cli"
	"github.com/strata-sandbox/strata/pkg/diff"
	"github.com/strata-sandbox/strata/pkg/index"
	"github.com/strata-sandbox/strata/pkg/matchspec"
	"github.com/strata-sandbox/strata/pkg/prefix"
	"github.com/strata-sandbox/strata/pkg/solver"
)

const (
	// interpreterName is the package whose minor series is held back
	// unless explicitly requested.
	interpreterName = "python"
	// ownName is strata's own package name inside environments.
	ownName = "strata"
)

// Configuration holds the shared state every action needs: the prefix
// being operated on and the candidate index to solve against.
type Configuration struct {
	Prefix *prefix.Data
	Index  solver.Index

	Settings *cli.EnvSettings
}

// Init loads the prefix and the channel index from the settings. The
// index is the union of every index file in the channel directory.
func (c *Configuration) Init(settings *cli.EnvSettings) error {
	if settings.Prefix == "" {
		return errors.New("no prefix set, use --prefix or STRATA_PREFIX")
	}
	c.Settings = settings
	c.Prefix = prefix.New(settings.Prefix)

	records, err := index.LoadDir(settings.ChannelDir)
	if err != nil {
		return errors.Wrapf(err, "loading channel indexes from %q", settings.ChannelDir)
	}
	c.Index = index.NewInMemory(records...)
	return nil
}

// NewSolver builds a solver over the configuration's prefix and index.
func (c *Configuration) NewSolver() *solver.Solver {
	return &solver.Solver{
		Env:         c.Prefix,
		Index:       c.Index,
		Interpreter: interpreterName,
		OwnName:     ownName,
	}
}

// Execute applies a solved transaction to the prefix: unlinks in
// order, links in order, then records the request in history.
func (c *Configuration) Execute(t *diff.Transaction, logger log.Logger) error {
	for _, r := range t.Unlink {
		logger.Debugf("unlinking %s", r.Key())
		if err := c.Prefix.Remove(r); err != nil {
			return errors.Wrapf(err, "unlinking %s", r.Key())
		}
	}
	for _, r := range t.Link {
		logger.Debugf("linking %s", r.Key())
		if err := c.Prefix.Insert(r); err != nil {
			return errors.Wrapf(err, "linking %s", r.Key())
		}
	}

	// Neutered specs overwrite their old history entries so the next
	// solve does not reintroduce the conflict.
	added := make([]matchspec.MatchSpec, 0, len(t.SpecsAdded)+len(t.NeuteredSpecs))
	added = append(added, t.SpecsAdded...)
	added = append(added, t.NeuteredSpecs...)
	return c.Prefix.UpdateHistory(added, t.SpecsRemoved)
}

// parseSpecs turns command line arguments into match specifications.
func parseSpecs(args []string) ([]matchspec.MatchSpec, error) {
	specs := make([]matchspec.MatchSpec, 0, len(args))
	for _, arg := range args {
		spec, err := matchspec.Parse(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid spec %q", arg)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
