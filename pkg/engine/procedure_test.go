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
package engine

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cea-list/k-partitions/pkg/config"
)

// fanoutRegs forks one register into two: a single flip of r0 corrupts both
// r1 and r2 one cycle later.
const fanoutRegs = `{
  "modules": {
    "top": {
      "ports": {
        "clk": {"direction": "input", "bits": [2]},
        "d":   {"direction": "input", "bits": [3]},
        "q1":  {"direction": "output", "bits": [5]},
        "q2":  {"direction": "output", "bits": [6]}
      },
      "cells": {
        "r0": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [4]}},
        "r1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [4], "Q": [5]}},
        "r2": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [4], "Q": [6]}}
      },
      "netnames": {
        "r0": {"bits": [4]},
        "r1": {"bits": [5]},
        "r2": {"bits": [6]}
      }
    }
  }
}`

// singleReg exposes one register directly on a primary output.
const singleReg = `{
  "modules": {
    "top": {
      "ports": {
        "clk": {"direction": "input", "bits": [2]},
        "d":   {"direction": "input", "bits": [3]},
        "q":   {"direction": "output", "bits": [4]}
      },
      "cells": {
        "r0": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [4]}}
      },
      "netnames": {}
    }
  }
}`

func testConfig() *config.Config {
	return &config.Config{
		K:             1,
		IncreasingK:   true,
		Delay:         1,
		FGates:        config.GatesSeq,
		Procedure:     config.Procedure1,
		OptimAtLeast2: true,
		AlertList:     map[string]config.BitPattern{},
	}
}

func TestProcedure1DualRailResists(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	cfg := testConfig()
	cfg.AlertList = map[string]config.BitPattern{"alert": {false}}

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure1())

	// Every single flip either trips the alert or stays within one
	// partition, so the finest partitioning survives.
	assert.Contains(t, out.String(), " UNSAT")
	assert.Contains(t, out.String(), "Partitioning finished with 2 partitions.")
	assert.NotContains(t, out.String(), "Merge together")
	assert.Len(t, a.Partitions(), 2)
}

func TestProcedure1MergesFanout(t *testing.T) {
	c := loadTestCircuit(t, fanoutRegs)

	cfg := testConfig()

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure1())

	// Flipping r0 corrupts r1 and r2 together, so they end up merged.
	assert.Contains(t, out.String(), " SAT")
	assert.Contains(t, out.String(), "Merged: 2, Remaining: 2")
	assert.Contains(t, out.String(), "Partitioning finished with 2 partitions.")
	require.Len(t, a.Partitions(), 2)

	sizes := []int{len(a.Partitions()[0]), len(a.Partitions()[1])}
	assert.ElementsMatch(t, []int{1, 2}, sizes)
}

func TestProcedure1AllGateBudgets(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	cfg := testConfig()
	cfg.FGates = config.GatesAll
	cfg.AlertList = map[string]config.BitPattern{"alert": {false}}
	// A fault on the shared input corrupts both rails consistently, so
	// input faults are out of scope here.
	cfg.ExcludeInputs = true

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure1())

	// k=1 with gate faults allowed walks two budget splits, both safe.
	assert.Equal(t, 2, strings.Count(out.String(), "Partitioning finished with 2 partitions."))
	assert.NotContains(t, out.String(), "Merge together")
}

func TestProcedure1WithInvariant(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	cfg := testConfig()
	cfg.AlertList = map[string]config.BitPattern{"alert": {false}}
	cfg.InvariantList = map[string]config.BitPattern{"r1": {true}}

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure1())

	assert.Contains(t, out.String(), "Partitioning finished with 2 partitions.")
}

func TestProcedure1DumpsPartitioning(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	cfg := testConfig()
	cfg.AlertList = map[string]config.BitPattern{"alert": {false}}
	cfg.DumpPartitioning = true
	cfg.DumpPath = t.TempDir()

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure1())

	files, err := filepath.Glob(filepath.Join(cfg.DumpPath, "partitioning-*.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
	assert.Contains(t, out.String(), "Write partitioning in file")
}

func TestProcedure1ReloadedPartitioningIsStable(t *testing.T) {
	c := loadTestCircuit(t, fanoutRegs)

	cfg := testConfig()

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure1())
	require.Len(t, a.Partitions(), 2)

	path := filepath.Join(t.TempDir(), "partitioning.json")
	require.NoError(t, a.Partitions().Save(path))

	cfg2 := testConfig()
	cfg2.InitialPartitionPath = path

	var out2 bytes.Buffer

	a2, err := NewAnalysis(cfg2, c, &out2)
	require.NoError(t, err)
	require.NoError(t, a2.RunProcedure1())

	// The merged partitioning is already a fixpoint.
	assert.NotContains(t, out2.String(), "Merge together")
	assert.Contains(t, out2.String(), "Partitioning finished with 2 partitions.")
	assert.Len(t, a2.Partitions(), 2)
}

func TestProcedure2UnprotectedOutput(t *testing.T) {
	c := loadTestCircuit(t, singleReg)

	cfg := testConfig()
	cfg.Delay = 0
	cfg.Procedure = config.Procedure2

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure2())

	// A single register flip lands straight on the output.
	assert.Contains(t, out.String(), "Faulty partitions (initial): 0 ( 4 ) ")
	assert.Contains(t, out.String(), "Corrupted outputs: 4 ")

	// Once enumerated the witness is forbidden and the search dries up.
	assert.Contains(t, out.String(), "UNSAT")
}

func TestProcedure2AlertProtectsOutput(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	cfg := testConfig()
	cfg.Procedure = config.Procedure2
	cfg.AlertList = map[string]config.BitPattern{"alert": {false}}

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.RunProcedure2())

	// Any flip reaching q first trips the alert, so nothing is exploitable.
	assert.Contains(t, out.String(), "UNSAT")
	assert.NotContains(t, out.String(), "Corrupted outputs: 4")
}

func TestRunExecutesConfiguredProcedures(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	cfg := testConfig()
	cfg.Procedure = config.ProcedureBoth
	cfg.AlertList = map[string]config.BitPattern{"alert": {false}}

	var out bytes.Buffer

	a, err := NewAnalysis(cfg, c, &out)
	require.NoError(t, err)
	require.NoError(t, a.Run())

	assert.Contains(t, out.String(), "Procedure 1 -- Build partitions")
	assert.Contains(t, out.String(), "Procedure 2 -- Check output integrity")
}
