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

const installDesc = `
This command installs packages into the prefix.

Each argument is a match specification: a package name, optionally
followed by a version constraint and a build string, for example:

    strata install zlib
    strata install 'zlib >=1.2.8,<1.3'
    strata install 'numpy 1.19.* py38*'

The request is solved against the channel index together with what is
already installed; dependencies are pulled in automatically.
`

func newInstallCmd(cfg *action.Configuration, logger log.Logger) *cobra.Command {
	client := action.NewInstall(cfg)

	cmd := &cobra.Command{
		Use:   "install [SPEC...]",
		Short: "install packages into the prefix",
		Long:  installDesc,
		Args:  cobra.MinimumNArgs(1),
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
	addSolveFlags(cmd, client)
	return cmd
}
