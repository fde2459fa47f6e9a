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

const updateDesc = `
This command updates the named packages, or with --all the whole
prefix, to the newest versions the constraints allow. Pinned specs and
the interpreter's minor series hold unless explicitly overridden.
`

func newUpdateCmd(cfg *action.Configuration, logger log.Logger) *cobra.Command {
	client := action.NewUpdate(cfg)

	cmd := &cobra.Command{
		Use:     "update [SPEC...]",
		Aliases: []string{"upgrade"},
		Short:   "update packages to the newest allowed versions",
		Long:    updateDesc,
		RunE: func(_ *cobra.Command, args []string) error {
			if err := cfg.Init(settings); err != nil {
				return err
			}
			if _, err := client.Run(args, logger); err != nil {
				return err
			}
			if !client.DryRun {
				logger.Info(eyecandy.ESPrint(settings.NoEmojis, "Done! :clapping_hands:"))
			}
			return nil
		},
	}
	addSolveFlags(cmd, &client.Install)
	cmd.Flags().BoolVar(&client.All, "all", false, "update every installed package")
	return cmd
}
