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

// Package test holds shared test helpers.
package test

import (
	"bytes"
	"flag"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// UpdateGolden writes out the golden files with the latest values,
// rather than failing the test.
var updateGolden = flag.Bool("update", false, "update golden files")

// AssertGoldenString asserts that the given string matches the
// contents of the golden file under testdata.
func AssertGoldenString(t *testing.T, actual, filename string) {
	t.Helper()

	path := filepath.Join("testdata", filename)
	if err := compare([]byte(actual), path); err != nil {
		t.Fatalf("%v", err)
	}
}

// AssertGoldenFile asserts that the file at actualFileName matches the
// golden file under testdata.
func AssertGoldenFile(t *testing.T, actualFileName, filename string) {
	t.Helper()

	actual, err := ioutil.ReadFile(actualFileName)
	if err != nil {
		t.Fatalf("%v", err)
	}
	AssertGoldenString(t, string(actual), filename)
}

func compare(actual []byte, path string) error {
	actual = normalize(actual)
	if *updateGolden {
		if err := ioutil.WriteFile(path, actual, 0o644); err != nil {
			return err
		}
	}
	expected, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	expected = normalize(expected)
	if diff := cmp.Diff(string(expected), string(actual)); diff != "" {
		return errors.Errorf("does not match golden file %s (-want +got):\n%s", path, diff)
	}
	return nil
}

func normalize(in []byte) []byte {
	return bytes.ReplaceAll(in, []byte("\r\n"), []byte("\n"))
}
