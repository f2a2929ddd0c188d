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
	"sort"

	"github.com/irifrance/gini/z"

	"github.com/cea-list/k-partitions/pkg/netlist"
	"github.com/cea-list/k-partitions/pkg/sat"
)

// State maps every signal of one clock cycle onto its solver literal.
type State = map[netlist.SignalID]z.Lit

// Unrolling is a pair of symbolic executions of the same circuit sharing one
// solver: a fault-free golden trace and a faulty trace whose deviations are
// guarded by the control literals recorded in Faults.
type Unrolling struct {
	ctx     *sat.Context
	circuit *netlist.Circuit

	// Signals eligible for fault injection.
	faultable netlist.SigSet
	// Top-level outputs wired to an alert handler.
	alerts netlist.SigSet

	Golden []State
	Faulty []State
	Faults []FaultMap
}

// NewUnrolling prepares an empty unrolling; no cycle exists until Init.
func NewUnrolling(ctx *sat.Context, c *netlist.Circuit, faultable, alerts netlist.SigSet) *Unrolling {
	return &Unrolling{ctx: ctx, circuit: c, faultable: faultable, alerts: alerts}
}

// Depth is the number of unrolled clock cycles.
func (u *Unrolling) Depth() int { return len(u.Golden) }

func (u *Unrolling) initConstants(s State) {
	s[netlist.Const0] = u.ctx.False()
	s[netlist.Const1] = u.ctx.True()
	s[netlist.ConstX] = u.ctx.False()
	s[netlist.ConstZ] = u.ctx.False()
}

// faultInputs mints fresh golden symbols for the primary inputs and faults
// the faultable ones on the faulty side.
func (u *Unrolling) faultInputs(golden, faulty State, faults FaultMap) {
	for _, sig := range u.circuit.Ins().Sorted() {
		golden[sig] = u.ctx.Lit()
	}

	for _, sig := range u.circuit.Ins().Sorted() {
		if u.faultable.Has(sig) {
			f := NewFaultSpec(u.ctx)
			faults[sig] = f
			faulty[sig] = f.InduceFault(u.ctx, golden[sig])
		} else {
			faulty[sig] = golden[sig]
		}
	}
}

// evalCell computes the cell output in cur, registers reading their data,
// enable and reset ports from prev.
func (u *Unrolling) evalCell(cell *netlist.Cell, prev, cur State) {
	ctx := u.ctx

	switch cell.Type.Kind {
	case netlist.KindUnary:
		a := cur[cell.A]
		if cell.Type.Op == netlist.OpNot {
			a = a.Not()
		}

		cur[cell.Y] = a
	case netlist.KindBinary:
		a, b := cur[cell.A], cur[cell.B]

		var y z.Lit

		switch cell.Type.Op {
		case netlist.OpAnd:
			y = ctx.And(a, b)
		case netlist.OpOr:
			y = ctx.Or(a, b)
		case netlist.OpXor:
			y = ctx.Xor(a, b)
		case netlist.OpXnor:
			y = ctx.Xor(a, b).Not()
		case netlist.OpNand:
			y = ctx.And(a, b).Not()
		case netlist.OpNor:
			y = ctx.Or(a, b).Not()
		case netlist.OpAndNot:
			y = ctx.And(a, b.Not())
		case netlist.OpOrNot:
			y = ctx.Or(a, b.Not())
		default:
			panic(fmt.Sprintf("illegal binary op %d", cell.Type.Op))
		}

		cur[cell.Y] = y
	case netlist.KindMux:
		y := ctx.Mux(cur[cell.A], cur[cell.B], cur[cell.S])
		if cell.Type.Op == netlist.OpNmux {
			y = y.Not()
		}

		cur[cell.Y] = y
	case netlist.KindRegister:
		q := prev[cell.D]

		if cell.Type.HasEnable {
			en := prev[cell.E]
			if cell.Type.EnableLow {
				en = en.Not()
			}

			q = ctx.Mux(prev[cell.Y], q, en)
		}

		if cell.Type.HasReset {
			rst := prev[cell.R]
			if cell.Type.ResetLow {
				rst = rst.Not()
			}

			q = ctx.Mux(q, ctx.False(), rst)
		}

		cur[cell.Y] = q
	}
}

// Init unrolls the initial cycle: inputs get fresh symbols, every register
// gets an unconstrained value on each side, and faultable signals receive a
// fault occurrence.  Register faults are modelled by the independent initial
// values rather than explicit occurrences.
func (u *Unrolling) Init() {
	golden, faulty := State{}, State{}
	faults := FaultMap{}

	u.initConstants(golden)
	u.initConstants(faulty)
	u.faultInputs(golden, faulty, faults)

	for _, sig := range u.circuit.Regs().Sorted() {
		golden[sig] = u.ctx.Lit()
		faulty[sig] = u.ctx.Lit()
	}

	for _, cell := range u.circuit.Cells() {
		if cell.IsRegister() {
			continue
		}

		u.evalCell(cell, nil, golden)
		u.evalCell(cell, nil, faulty)

		out := cell.Output()
		if u.faultable.Has(out) {
			f := NewFaultSpec(u.ctx)
			faults[out] = f
			faulty[out] = f.InduceFault(u.ctx, faulty[out])
		}
	}

	u.Golden = append(u.Golden, golden)
	u.Faulty = append(u.Faulty, faulty)
	u.Faults = append(u.Faults, faults)
}

// Step unrolls one more cycle on top of the existing trace.  Combinational
// faults are only injected where the gate output still reaches an alert, so
// later cycles cannot hide a corruption the checker would never see.
func (u *Unrolling) Step() {
	prevGolden := u.Golden[len(u.Golden)-1]
	prevFaulty := u.Faulty[len(u.Faulty)-1]

	golden, faulty := State{}, State{}
	faults := FaultMap{}

	u.initConstants(golden)
	u.initConstants(faulty)
	u.faultInputs(golden, faulty, faults)

	for _, cell := range u.circuit.Cells() {
		u.evalCell(cell, prevGolden, golden)
		u.evalCell(cell, prevFaulty, faulty)

		if cell.IsRegister() {
			continue
		}

		out := cell.Output()
		if !u.faultable.Has(out) {
			continue
		}

		for _, reach := range u.circuit.Expand(u.circuit.ConnOuts(out)) {
			if u.alerts.Has(reach) {
				f := NewFaultSpec(u.ctx)
				faults[out] = f
				faulty[out] = f.InduceFault(u.ctx, faulty[out])

				break
			}
		}
	}

	u.Golden = append(u.Golden, golden)
	u.Faulty = append(u.Faulty, faulty)
	u.Faults = append(u.Faults, faults)
}

// AssertInvariants pins the named buses of the golden trace at the given
// cycle to their expected values.
func (u *Unrolling) AssertInvariants(invariants map[string][]bool, step int) error {
	for _, name := range sortedKeys(invariants) {
		sigs := u.circuit.Nets()[name]
		bits := invariants[name]

		if len(sigs) != len(bits) {
			return fmt.Errorf("invariant %q has %d bits, net has %d", name, len(bits), len(sigs))
		}

		for pos, sig := range sigs {
			m := u.Golden[step][sig]
			if !bits[pos] {
				m = m.Not()
			}

			u.ctx.AddClause(m)
		}
	}

	return nil
}

// AssertNoAlert forces the named alert buses to their rest values on both
// sides at the given cycle: the attacker only wins silently.
func (u *Unrolling) AssertNoAlert(alerts map[string][]bool, step int) error {
	for _, name := range sortedKeys(alerts) {
		sigs := u.circuit.Nets()[name]
		bits := alerts[name]

		if len(sigs) != len(bits) {
			return fmt.Errorf("alert %q has %d bits, net has %d", name, len(bits), len(sigs))
		}

		ms := make([]z.Lit, 0, 2*len(sigs))

		for pos, sig := range sigs {
			g, f := u.Golden[step][sig], u.Faulty[step][sig]
			if !bits[pos] {
				g, f = g.Not(), f.Not()
			}

			ms = append(ms, g, f)
		}

		u.ctx.AddClause(u.ctx.And(ms...))
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
