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

// Package engine unrolls a synchronous netlist into a pair of symbolic
// executions, injects controllable bit-flip faults, and runs the two
// partitioning procedures on top of an incremental SAT solver.
package engine

import (
	"sort"

	"github.com/irifrance/gini/z"

	"github.com/cea-list/k-partitions/pkg/netlist"
	"github.com/cea-list/k-partitions/pkg/sat"
)

// FaultSpec is one fault occurrence: a control literal which, when true,
// flips the faulty execution away from its fault-free value.
type FaultSpec struct {
	F z.Lit
}

// NewFaultSpec mints the control literal for one occurrence.
func NewFaultSpec(ctx *sat.Context) FaultSpec {
	return FaultSpec{F: ctx.Lit()}
}

// InduceFault returns a literal equal to normal when F is false and to its
// negation when F is true.
func (s FaultSpec) InduceFault(ctx *sat.Context, normal z.Lit) z.Lit {
	faulted := ctx.Lit()

	ctx.AddClause(normal, s.F, faulted.Not())
	ctx.AddClause(normal.Not(), s.F, faulted)
	ctx.AddClause(normal, s.F.Not(), faulted)
	ctx.AddClause(normal.Not(), s.F.Not(), faulted.Not())

	return faulted
}

// IsFaulted is the control literal itself, suitable for cardinality
// networks and model readback.
func (s FaultSpec) IsFaulted() z.Lit { return s.F }

// FaultMap records the fault occurrences injected during one clock cycle,
// keyed by the signal they corrupt.
type FaultMap map[netlist.SignalID]FaultSpec

// Signals returns the corrupted signals in ascending id order.
func (m FaultMap) Signals() []netlist.SignalID {
	sigs := make([]netlist.SignalID, 0, len(m))
	for sig := range m {
		sigs = append(sigs, sig)
	}

	sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })

	return sigs
}

// Controls returns the control literals in ascending signal order.
func (m FaultMap) Controls() []z.Lit {
	sigs := m.Signals()

	ms := make([]z.Lit, len(sigs))
	for i, sig := range sigs {
		ms[i] = m[sig].F
	}

	return ms
}
