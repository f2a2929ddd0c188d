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

	"github.com/irifrance/gini/z"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cea-list/k-partitions/pkg/netlist"
	"github.com/cea-list/k-partitions/pkg/sat"
)

func TestInduceFaultTruthTable(t *testing.T) {
	ctx := sat.NewContext()

	normal := ctx.Lit()
	spec := NewFaultSpec(ctx)
	faulted := spec.InduceFault(ctx, normal)

	pol := func(m z.Lit, v bool) z.Lit {
		if v {
			return m
		}

		return m.Not()
	}

	for _, f := range []bool{false, true} {
		for _, n := range []bool{false, true} {
			want := n != f

			res := ctx.Solve([]z.Lit{pol(spec.F, f), pol(normal, n), pol(faulted, want)}, 0)
			assert.Equal(t, sat.Sat, res, "F=%v n=%v y=%v must be a model", f, n, want)

			res = ctx.Solve([]z.Lit{pol(spec.F, f), pol(normal, n), pol(faulted, !want)}, 0)
			assert.Equal(t, sat.Unsat, res, "F=%v n=%v y=%v must be excluded", f, n, !want)
		}
	}
}

func TestInduceFaultPassthrough(t *testing.T) {
	ctx := sat.NewContext()

	normal := ctx.Lit()
	spec := NewFaultSpec(ctx)
	faulted := spec.InduceFault(ctx, normal)

	// With the control pinned low the two sides must agree.
	res := ctx.Solve([]z.Lit{spec.F.Not(), ctx.Xor(normal, faulted)}, 0)
	require.Equal(t, sat.Unsat, res)
}

func TestFaultMapOrder(t *testing.T) {
	ctx := sat.NewContext()

	m := FaultMap{
		netlist.SignalID(9): NewFaultSpec(ctx),
		netlist.SignalID(3): NewFaultSpec(ctx),
		netlist.SignalID(7): NewFaultSpec(ctx),
	}

	assert.Equal(t, []netlist.SignalID{3, 7, 9}, m.Signals())

	controls := m.Controls()
	require.Len(t, controls, 3)
	assert.Equal(t, m[3].F, controls[0])
	assert.Equal(t, m[7].F, controls[1])
	assert.Equal(t, m[9].F, controls[2])
}
