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
	"github.com/Masterminds/log-go"
	"github.com/spf13/cobra"

	"github.com/strata-sandbox/strata/pkg/action"
	"github.com/strata-sandbox/strata/pkg/eyecandy"
)

var removeDesc = `remove packages from the prefix, dependents included`

func newRemoveCmd(cfg *action.Configuration, logger log.Logger) *cobra.Command {
	client := action.NewRemove(cfg)

	cmd := &cobra.Command{
		Use:     "remove [SPEC...]",
		Aliases: []string{"uninstall"},
		Short:   "remove packages from the prefix",
		Long:    removeDesc,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := cfg.Init(settings); err != nil {
				return err
			}
			for _, arg := range args {
				logger.Info(eyecandy.ESPrintf(settings.NoEmojis, ":fire: removing %s", arg))
			}
			if _, err := client.Run(args, logger); err != nil {
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&client.DryRun, "dry-run", false, "solve and print the plan without changing the prefix")
	f.BoolVar(&client.Force, "force", false, "unlink matching packages as they are, keeping dependents")
	f.BoolVar(&client.Prune, "prune", false, "also remove dependencies nothing else needs")
	bindOutputFlag(cmd, &client.Output)

	return cmd
}
