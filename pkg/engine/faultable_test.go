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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cea-list/k-partitions/pkg/netlist"
)

func TestFaultableSignalsDefault(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	faultable := FaultableSignals(c, FaultScope{})

	// Without prefixes every signal is in scope, constants included.
	assert.Equal(t, c.Sigs(), faultable)
}

func TestFaultableSignalsIncludePrefix(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	faultable := FaultableSignals(c, FaultScope{IncludedPrefixes: []string{"r"}})
	assert.Equal(t, []netlist.SignalID{4, 5}, faultable.Sorted())
}

func TestFaultableSignalsExcludePrefix(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	faultable := FaultableSignals(c, FaultScope{
		IncludedPrefixes: []string{"r"},
		ExcludedPrefixes: []string{"r2"},
	})
	assert.Equal(t, []netlist.SignalID{4}, faultable.Sorted())
}

func TestFaultableSignalsExcludeInputs(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	faultable := FaultableSignals(c, FaultScope{ExcludeInputs: true})
	assert.False(t, faultable.Has(2))
	assert.False(t, faultable.Has(3))
	assert.True(t, faultable.Has(6))
}

func TestFaultableSignalsExplicitExclusion(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	faultable := FaultableSignals(c, FaultScope{
		IncludedPrefixes: []string{"r"},
		ExcludedSignals:  []netlist.SignalID{5},
	})
	assert.Equal(t, []netlist.SignalID{4}, faultable.Sorted())
}

func TestAlertSignals(t *testing.T) {
	c := loadTestCircuit(t, dualRail)

	alerts := AlertSignals(c, map[string][]bool{"alert": {false}})
	assert.Equal(t, []netlist.SignalID{6}, alerts.Sorted())

	assert.Empty(t, AlertSignals(c, nil))
}
