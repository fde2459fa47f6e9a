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
	logio "github.com/Masterminds/log-go/io"
	"github.com/spf13/cobra"

	"github.com/strata-sandbox/strata/pkg/action"
)

var listDesc = `list the packages linked into the prefix`

func newListCmd(cfg *action.Configuration, logger log.Logger) *cobra.Command {
	client := action.NewList(cfg)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list installed packages",
		Long:  listDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			if err := cfg.Init(settings); err != nil {
				return err
			}
			records, err := client.Run()
			if err != nil {
				return err
			}
			wInfo := logio.NewWriter(logger, log.InfoLevel)
			_, err = wInfo.Write([]byte(client.Format(records) + "\n"))
			return err
		},
	}
	return cmd
}
