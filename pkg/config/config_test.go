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
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `{
  "default": {
    "design_path": "design.json",
    "design_name": "top",
    "k": 2,
    "delay": 3,
    "dump_path": "out",
    "alert_list": {"alert": [0, 1]}
  },
  "strict": {
    "design_path": "design.json",
    "design_name": "top",
    "k": 1,
    "delay": 1,
    "dump_path": "out",
    "alert_list": {},
    "increasing_k": false,
    "f_gates": "SEQ",
    "procedure": "P2",
    "optim_atleast2": false,
    "solver_timeout_s": 30,
    "exclude_inputs": true
  }
}`

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config_file.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal), "default")
	require.NoError(t, err)

	assert.Equal(t, "design.json", cfg.DesignPath)
	assert.Equal(t, "top", cfg.DesignName)
	assert.Equal(t, 2, cfg.K)
	assert.Equal(t, 3, cfg.Delay)

	// Unset keys fall back to their defaults.
	assert.True(t, cfg.IncreasingK)
	assert.Equal(t, GatesAll, cfg.FGates)
	assert.Equal(t, ProcedureBoth, cfg.Procedure)
	assert.True(t, cfg.OptimAtLeast2)
	assert.True(t, cfg.DumpPartitioning)
	assert.False(t, cfg.DumpVCD)
	assert.Zero(t, cfg.SolverTimeout())

	assert.Equal(t, map[string][]bool{"alert": {false, true}}, cfg.Alerts())
	assert.Empty(t, cfg.Invariants())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal), "strict")
	require.NoError(t, err)

	assert.False(t, cfg.IncreasingK)
	assert.Equal(t, GatesSeq, cfg.FGates)
	assert.Equal(t, Procedure2, cfg.Procedure)
	assert.False(t, cfg.OptimAtLeast2)
	assert.True(t, cfg.ExcludeInputs)
	assert.Equal(t, 30*time.Second, cfg.SolverTimeout())
}

func TestLoadMissingConfiguration(t *testing.T) {
	_, err := Load(writeConfig(t, minimal), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing configuration "nope"`)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "missing required key",
			want: `missing parameter "alert_list"`,
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 1, "delay": 0,
				"dump_path": "out"}}`,
		},
		{
			name: "illegal procedure",
			want: "illegal procedure",
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 1, "delay": 0,
				"dump_path": "out", "alert_list": {}, "procedure": "P3"}}`,
		},
		{
			name: "illegal f_gates",
			want: "illegal f_gates",
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 1, "delay": 0,
				"dump_path": "out", "alert_list": {}, "f_gates": "NONE"}}`,
		},
		{
			name: "k too small",
			want: "k must be at least 1",
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 0, "delay": 0,
				"dump_path": "out", "alert_list": {}}}`,
		},
		{
			name: "negative delay",
			want: "delay must not be negative",
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 1, "delay": -1,
				"dump_path": "out", "alert_list": {}}}`,
		},
		{
			name: "negative timeout",
			want: "solver_timeout_s must not be negative",
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 1, "delay": 0,
				"dump_path": "out", "alert_list": {}, "solver_timeout_s": -5}}`,
		},
		{
			name: "subcircuit without interface",
			want: "subcircuit requires",
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 1, "delay": 0,
				"dump_path": "out", "alert_list": {}, "subcircuit": true}}`,
		},
		{
			name: "illegal bit pattern",
			want: "not 0 or 1",
			data: `{"c": {"design_path": "d", "design_name": "t", "k": 1, "delay": 0,
				"dump_path": "out", "alert_list": {"alert": [0, 2]}}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.data), "c")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestPrepareDumpDir(t *testing.T) {
	configPath := writeConfig(t, minimal)

	cfg, err := Load(configPath, "default")
	require.NoError(t, err)

	cfg.DumpPath = filepath.Join(t.TempDir(), "dump")

	// A stale dump directory is wiped before the run.
	require.NoError(t, os.MkdirAll(cfg.DumpPath, 0o755))
	stale := filepath.Join(cfg.DumpPath, "stale")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	require.NoError(t, cfg.PrepareDumpDir(configPath))

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	copied, err := os.ReadFile(filepath.Join(cfg.DumpPath, "config_file"))
	require.NoError(t, err)
	assert.Equal(t, minimal, string(copied))
}
