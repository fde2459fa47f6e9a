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

package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/strata-sandbox/strata/pkg/action"
	"github.com/strata-sandbox/strata/pkg/diff"
)

const outputFlag = "output"

var outputNames = []string{"table", "yaml", "json"}

// bindOutputFlag adds the output flag to the given command and binds
// the value to the given mode pointer.
func bindOutputFlag(cmd *cobra.Command, varRef *diff.OutputMode) {
	cmd.Flags().VarP(newOutputValue(diff.Table, varRef), outputFlag, "o",
		fmt.Sprintf("prints the output in the specified format. Allowed values: %s",
			strings.Join(outputNames, ", ")))
}

type outputValue diff.OutputMode

func newOutputValue(defaultValue diff.OutputMode, p *diff.OutputMode) *outputValue {
	*p = defaultValue
	return (*outputValue)(p)
}

func (o *outputValue) String() string {
	switch diff.OutputMode(*o) {
	case diff.YAML:
		return "yaml"
	case diff.JSON:
		return "json"
	default:
		return "table"
	}
}

func (o *outputValue) Type() string {
	return "format"
}

func (o *outputValue) Set(s string) error {
	switch s {
	case "table":
		*o = outputValue(diff.Table)
	case "yaml":
		*o = outputValue(diff.YAML)
	case "json":
		*o = outputValue(diff.JSON)
	default:
		return errors.Errorf("unknown output format %q", s)
	}
	return nil
}

// addSolveFlags binds the solver knobs shared by install and update.
func addSolveFlags(cmd *cobra.Command, client *action.Install) {
	f := cmd.Flags()
	f.BoolVar(&client.DryRun, "dry-run", false, "solve and print the plan without changing the prefix")
	f.BoolVar(&client.FreezeInstalled, "freeze-installed", false, "do not update already-installed packages")
	f.BoolVar(&client.UpdateDeps, "update-deps", false, "also update the dependencies of the requested packages")
	f.BoolVar(&client.NoDeps, "no-deps", false, "do not install dependencies")
	f.BoolVar(&client.OnlyDeps, "only-deps", false, "install only dependencies, not the packages themselves")
	f.BoolVar(&client.Prune, "prune", false, "remove packages nothing requested needs")
	f.BoolVar(&client.ForceReinstall, "force-reinstall", false, "relink requested packages even when already installed")
	f.BoolVar(&client.IgnorePinned, "ignore-pinned", false, "ignore the prefix's pinned specs")
	bindOutputFlag(cmd, &client.Output)
}
