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

//go:build !windows

package stratapath

import (
	"os"
	"runtime"
	"testing"

	"github.com/strata-sandbox/strata/pkg/stratapath/xdg"
)

func TestStrataHome(t *testing.T) {
	os.Setenv(xdg.CacheHomeEnvVar, "/cache")
	os.Setenv(xdg.ConfigHomeEnvVar, "/config")
	os.Setenv(xdg.DataHomeEnvVar, "/data")
	os.Unsetenv(CacheHomeEnvVar)
	os.Unsetenv(ConfigHomeEnvVar)
	os.Unsetenv(DataHomeEnvVar)
	isEq := func(t *testing.T, got, expected string) {
		t.Helper()
		if expected != got {
			t.Error(runtime.GOOS)
			t.Errorf("Expected %q, got %q", expected, got)
		}
	}

	isEq(t, CachePath(), "/cache/strata")
	isEq(t, ConfigPath(), "/config/strata")
	isEq(t, DataPath(), "/data/strata")

	// test to see if lazy-loading environment variables at runtime works
	os.Setenv(xdg.CacheHomeEnvVar, "/cache2")

	isEq(t, CachePath(), "/cache2/strata")

	// strata specific variables beat the XDG ones
	os.Setenv(CacheHomeEnvVar, "/strata-cache")

	isEq(t, CachePath(), "/strata-cache")
	isEq(t, CachePath("channels"), "/strata-cache/channels")
}
