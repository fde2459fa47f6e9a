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

/*Package cli collects the settings shared by every strata command,
sourced from environment variables and overridden by flags.
*/
package cli

import (
	"os"
	"strconv"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/pflag"

	"github.com/strata-sandbox/strata/pkg/stratapath"
)

// EnvSettings describes all of the cosmetic and environment settings.
type EnvSettings struct {
	// Debug enables verbose output
	Debug bool
	// NoColors disables colorized output
	NoColors bool
	// NoEmojis disables emojis in output
	NoEmojis bool
	// Prefix is the environment directory operated on
	Prefix string
	// ChannelDir is the directory holding channel index files
	ChannelDir string
}

// New builds the settings from STRATA_* environment variables.
// Flags parsed later take precedence over the environment.
func New() *EnvSettings {
	env := &EnvSettings{
		Prefix:     envOr("STRATA_PREFIX", ""),
		ChannelDir: envOr("STRATA_CHANNEL_DIR", stratapath.CachePath("channels")),
	}
	env.Debug, _ = strconv.ParseBool(os.Getenv("STRATA_DEBUG"))
	env.NoColors, _ = strconv.ParseBool(os.Getenv("STRATA_NOCOLORS"))
	env.NoEmojis, _ = strconv.ParseBool(os.Getenv("STRATA_NOEMOJIS"))
	return env
}

// AddFlags binds the settings to persistent flags.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
	fs.BoolVar(&s.NoColors, "nocolor", s.NoColors, "disable colorized output")
	fs.BoolVar(&s.NoEmojis, "noemojis", s.NoEmojis, "disable emojis in output")
	fs.StringVarP(&s.Prefix, "prefix", "p", s.Prefix, "environment prefix to operate on")
	fs.StringVar(&s.ChannelDir, "channel-dir", s.ChannelDir, "directory with channel index files")
}

// EnvVars maps the settings back to the variables they came from.
func (s *EnvSettings) EnvVars() map[string]string {
	return map[string]string{
		"STRATA_DEBUG":       strconv.FormatBool(s.Debug),
		"STRATA_NOCOLORS":    strconv.FormatBool(s.NoColors),
		"STRATA_NOEMOJIS":    strconv.FormatBool(s.NoEmojis),
		"STRATA_PREFIX":      s.Prefix,
		"STRATA_CHANNEL_DIR": s.ChannelDir,
	}
}

// ExtraArgs splits STRATA_FLAGS into arguments prepended to the
// command line, so users can persist defaults in their shell profile.
func ExtraArgs() ([]string, error) {
	raw := os.Getenv("STRATA_FLAGS")
	if raw == "" {
		return nil, nil
	}
	return shellwords.Parse(raw)
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}
