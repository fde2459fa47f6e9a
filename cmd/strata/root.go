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
	"errors"
	"os"

	"github.com/Masterminds/log-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/strata-sandbox/strata/pkg/action"
)

var globalUsage = `Usage: strata command

A package and environment manager driven by a SAT solver.
`

func newRootCmd(logger log.Logger, args []string) (*cobra.Command, error) {
	cfg := &action.Configuration{}

	cmd := &cobra.Command{
		Use:          "strata",
		Short:        "A package and environment manager driven by a SAT solver",
		Long:         globalUsage,
		SilenceUsage: false,
	}

	flags := cmd.PersistentFlags()
	settings.AddFlags(flags)

	cmd.AddCommand(
		newInstallCmd(cfg, logger),
		newRemoveCmd(cfg, logger),
		newUpdateCmd(cfg, logger),
		newListCmd(cfg, logger),
		newSolveCmd(cfg, logger),
		newSearchCmd(logger),
		newVersionCmd(logger),
	)

	flags.ParseErrorsWhitelist.UnknownFlags = true
	err := flags.Parse(args)

	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		log.Errorf("failed while parsing flags for %s: %s", args, err)

		os.Exit(1)
	}

	if settings.NoColors {
		color.NoColor = true // disable colorized output
	}

	return cmd, nil
}
