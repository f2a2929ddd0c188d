// Copyright CEA-List.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dualRailNetlist = `{
  "modules": {
    "top": {
      "ports": {
        "clk":   {"direction": "input", "bits": [2]},
        "d":     {"direction": "input", "bits": [3]},
        "alert": {"direction": "output", "bits": [6]},
        "q":     {"direction": "output", "bits": [4]}
      },
      "cells": {
        "reg1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [4]}},
        "reg2": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [5]}},
        "xor0": {"type": "$_XOR_", "connections": {"A": [4], "B": [5], "Y": [6]}}
      },
      "netnames": {}
    }
  }
}`

func TestRunAnalysis(t *testing.T) {
	dir := t.TempDir()

	designPath := filepath.Join(dir, "netlist.json")
	require.NoError(t, os.WriteFile(designPath, []byte(dualRailNetlist), 0o644))

	dumpPath := filepath.Join(dir, "dump")

	configs := map[string]any{
		"default": map[string]any{
			"design_path": designPath,
			"design_name": "top",
			"k":           1,
			"delay":       1,
			"dump_path":   dumpPath,
			"alert_list":  map[string][]int{"alert": {0}},
			"f_gates":     "SEQ",
			"procedure":   "P1",
		},
	}

	data, err := json.Marshal(configs)
	require.NoError(t, err)

	configPath := filepath.Join(dir, "config_file.json")
	require.NoError(t, os.WriteFile(configPath, data, 0o644))

	require.NoError(t, runAnalysis(configPath, "default"))

	report, err := os.ReadFile(filepath.Join(dumpPath, "log"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Partitioning finished with 2 partitions.")

	// The effective configuration travels with the results.
	copied, err := os.ReadFile(filepath.Join(dumpPath, "config_file"))
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(copied))
}

func TestRunAnalysisMissingConfig(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config_file.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0o644))

	err := runAnalysis(configPath, "default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing configuration "default"`)
}
