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

package action

import (
	"github.com/gosuri/uitable"

	"github.com/strata-sandbox/strata/pkg/record"
)

// List reports the records linked into the prefix.
type List struct {
	Config *Configuration
}

// NewList constructs a new List action over the configuration.
func NewList(cfg *Configuration) *List {
	return &List{Config: cfg}
}

// Run returns the installed records sorted by name and version.
func (l *List) Run() ([]record.Record, error) {
	records, err := l.Config.Prefix.InstalledRecords()
	if err != nil {
		return nil, err
	}
	record.Sort(records)
	return records, nil
}

// Format renders the records the way `strata list` prints them.
func (l *List) Format(records []record.Record) string {
	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("NAME", "VERSION", "BUILD", "CHANNEL")
	for _, r := range records {
		table.AddRow(r.Name, r.Version, r.Build, r.Channel)
	}
	return table.String()
}
