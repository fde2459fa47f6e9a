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

	"github.com/strata-sandbox/strata/pkg/index"
	"github.com/strata-sandbox/strata/pkg/search"
)

const searchDesc = `
Search the channel index for packages by name.

Terms are matched as substrings, or as regular expressions with
--regexp. Without terms every package is listed. By default only the
newest version per name is shown; --versions lists them all.
`

func newSearchCmd(logger log.Logger) *cobra.Command {
	o := &search.Options{}

	cmd := &cobra.Command{
		Use:   "search [TERM...]",
		Short: "search the channel index for packages",
		Long:  searchDesc,
		RunE: func(_ *cobra.Command, args []string) error {
			// search needs no prefix, only the channel index
			records, err := index.LoadDir(settings.ChannelDir)
			if err != nil {
				return err
			}
			return o.Run(logger, records, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&o.Regexp, "regexp", "r", false, "treat terms as regular expressions")
	f.BoolVarP(&o.Versions, "versions", "l", false, "list every matching version")
	f.StringVar(&o.Spec, "version", "", "constrain matches to versions satisfying this spec")
	f.UintVar(&o.MaxColWidth, "max-col-width", 50, "maximum column width for table output")
	bindOutputFlag(cmd, &o.OutputFormat)

	return cmd
}
