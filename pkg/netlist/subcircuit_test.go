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
package netlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractString(t *testing.T, top *Circuit, iface string) (*Circuit, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "interface.json")
	require.NoError(t, os.WriteFile(path, []byte(iface), 0o644))

	return ExtractSubcircuit(top, path, "top")
}

func TestSubcircuitFullInterface(t *testing.T) {
	top, err := loadString(t, shiftXor)
	require.NoError(t, err)

	sub, err := extractString(t, top, `{"modules": {"top": {"ports": {
		"clk": {"direction": "input", "bits": [2]},
		"d":   {"direction": "input", "bits": [3]},
		"out": {"direction": "output", "bits": [6]}}}}}`)
	require.NoError(t, err)

	assert.Len(t, sub.Cells(), 3)
	assert.Equal(t, top.Regs(), sub.Regs())
	assert.Equal(t, SignalID(2), sub.Clock())

	// Bus names covering the cone carry over.
	assert.True(t, sub.Has("r1"))
	assert.True(t, sub.Has("r2"))
}

func TestSubcircuitRegisterCone(t *testing.T) {
	top, err := loadString(t, shiftXor)
	require.NoError(t, err)

	// Cut at the second register: the xor stays outside and only warns.
	sub, err := extractString(t, top, `{"modules": {"top": {"ports": {
		"clk": {"direction": "input", "bits": [2]},
		"d":   {"direction": "input", "bits": [3]},
		"tap": {"direction": "output", "bits": [5]}}}}}`)
	require.NoError(t, err)

	assert.Len(t, sub.Cells(), 2)
	assert.Equal(t, SigSet{4: {}, 5: {}}, sub.Regs())
	assert.False(t, sub.Outs().Has(6))
}

func TestSubcircuitUndeclaredInput(t *testing.T) {
	top, err := loadString(t, shiftXor)
	require.NoError(t, err)

	// The cone of the output needs d, which the interface omits.
	_, err = extractString(t, top, `{"modules": {"top": {"ports": {
		"clk": {"direction": "input", "bits": [2]},
		"out": {"direction": "output", "bits": [6]}}}}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared input")
}

func TestSubcircuitUndeclaredOutput(t *testing.T) {
	data := `{
	  "modules": {
	    "top": {
	      "ports": {
	        "clk": {"direction": "input", "bits": [2]},
	        "d":   {"direction": "input", "bits": [3]},
	        "q1":  {"direction": "output", "bits": [4]},
	        "q2":  {"direction": "output", "bits": [5]}
	      },
	      "cells": {
	        "reg1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [4]}},
	        "reg2": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [4], "Q": [5]}}
	      },
	      "netnames": {}
	    }
	  }
	}`

	top, err := loadString(t, data)
	require.NoError(t, err)

	// The cone of q2 visits q1, a top-level output the interface omits.
	_, err = extractString(t, top, `{"modules": {"top": {"ports": {
		"clk": {"direction": "input", "bits": [2]},
		"d":   {"direction": "input", "bits": [3]},
		"q2":  {"direction": "output", "bits": [5]}}}}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared output")
}
