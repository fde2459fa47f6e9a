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
)

const solveDesc = `
Solve a request against the channel index and print the transaction it
would produce, without changing the prefix. Specs given as arguments
are added; --remove takes specs out in the same solve.
`

func newSolveCmd(cfg *action.Configuration, logger log.Logger) *cobra.Command {
	client := action.NewSolve(cfg)

	cmd := &cobra.Command{
		Use:   "solve [SPEC...]",
		Short: "print the transaction a request would produce",
		Long:  solveDesc,
		RunE: func(_ *cobra.Command, args []string) error {
			if err := cfg.Init(settings); err != nil {
				return err
			}
			_, err := client.Run(args, logger)
			return err
		},
	}

	addSolveFlags(cmd, &client.Install)
	cmd.Flags().StringArrayVar(&client.Remove, "remove", nil, "spec to remove in the same solve")
	return cmd
}
