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
	"os"

	"github.com/Masterminds/log-go"
	logcli "github.com/Masterminds/log-go/impl/cli"

	"github.com/strata-sandbox/strata/pkg/cli"
)

var settings = cli.New()

func main() {
	logger := logcli.NewStandard()
	log.Current = logger

	extra, err := cli.ExtraArgs()
	if err != nil {
		logger.Errorf("failed parsing STRATA_FLAGS: %s", err)
		os.Exit(1)
	}
	args := append(extra, os.Args[1:]...)

	cmd, err := newRootCmd(logger, args)
	if err != nil {
		logger.Debugf("%v", err)
		os.Exit(1)
	}

	if settings.Debug {
		logger.Level = log.DebugLevel
	}

	if err := cmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		if settings.Debug {
			logger.Debugf("%+v", err)
		}
		os.Exit(1)
	}
}
