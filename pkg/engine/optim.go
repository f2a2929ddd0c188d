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
	"fmt"
	"io"

	"github.com/irifrance/gini/z"

	"github.com/cea-list/k-partitions/pkg/netlist"
	"github.com/cea-list/k-partitions/pkg/sat"
)

// optimAtLeast2ConnParts forbids fault locations whose effect cannot spread
// beyond a single partition: a corruption confined to one partition can
// never exceed the fault budget in the next state.  The clauses are
// permanent, so the pass must run again after every merge.
func optimAtLeast2ConnParts(ctx *sat.Context, c *netlist.Circuit, parts Partitions,
	initialCombFaults FaultMap, initialDiff []z.Lit, out io.Writer) {
	regPart := make(map[netlist.SignalID]int, len(c.Regs()))

	for idx, part := range parts {
		for reg := range part {
			regPart[reg] = idx
		}
	}

	// spansOne reports whether all registers reachable from the set lie in
	// one partition.
	spansOne := func(adjacent []netlist.SignalID) bool {
		if len(adjacent) <= 1 {
			return true
		}

		first := regPart[adjacent[0]]

		for _, reg := range adjacent[1:] {
			if regPart[reg] != first {
				return false
			}
		}

		return true
	}

	partOptim := 0

	for idx, part := range parts {
		adjacent := netlist.SigSet{}

		for sig := range part {
			for _, reg := range c.Expand(c.ConnRegs(sig)) {
				adjacent.Add(reg)
			}
		}

		if spansOne(adjacent.Sorted()) {
			ctx.AddClause(initialDiff[idx].Not())
			partOptim++
		}
	}

	fmt.Fprintf(out, "  Optimize %d faults in partitions\n", partOptim)

	combOptim := 0

	for _, sig := range initialCombFaults.Signals() {
		if spansOne(c.Expand(c.ConnRegs(sig))) {
			ctx.AddClause(initialCombFaults[sig].IsFaulted().Not())
			combOptim++
		}
	}

	fmt.Fprintf(out, "  Optimize %d faults in comb logic\n", combOptim)
}
