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

import "github.com/bits-and-blooms/bitset"

// BuildAdjacency computes, for every signal, the registers and primary
// outputs whose combinational fan-in transitively contains it, plus the
// reverse register-to-register relation.
//
// The traversal walks signals in reverse topological order so every
// combinational consumer's set is final when a signal is processed.  A signal
// with a single contributing consumer shares that consumer's bitset instead
// of copying it, which keeps the pools near-linear on wide fan-out cones.
func (c *Circuit) BuildAdjacency() {
	sigToCells := make(map[SignalID][]*Cell, len(c.sigs))

	for _, cell := range c.cells {
		for _, in := range cell.Inputs() {
			sigToCells[in] = append(sigToCells[in], cell)
		}
	}

	order := make([]SignalID, 0, len(c.ins)+len(c.cells)+4)
	order = append(order, Const0, Const1, ConstX, ConstZ)

	for _, sig := range c.ins.Sorted() {
		if !sig.IsConst() {
			order = append(order, sig)
		}
	}

	for _, cell := range c.cells {
		order = append(order, cell.Y)
	}

	n := uint(len(c.rindex))
	empty := bitset.New(n)

	c.connRegs = make(map[SignalID]*bitset.BitSet, len(order))
	c.connOuts = make(map[SignalID]*bitset.BitSet, len(order))

	for i := len(order) - 1; i >= 0; i-- {
		sig := order[i]

		own := bitset.New(n)
		if c.outs.Has(sig) {
			idx, ok := c.index[sig]
			if !ok {
				panic("output signal missing from dense index")
			}

			own.Set(idx)
		}

		regs := bitset.New(n)

		// Deduplicate shared consumer sets by identity before merging.
		regSets := make(map[*bitset.BitSet]struct{})
		outSets := make(map[*bitset.BitSet]struct{})

		for _, consumer := range sigToCells[sig] {
			if consumer.IsRegister() {
				idx, ok := c.index[consumer.Y]
				if !ok {
					panic("register output missing from dense index")
				}

				regs.Set(idx)

				continue
			}

			if rs := c.connRegs[consumer.Y]; rs.Any() {
				regSets[rs] = struct{}{}
			}

			if os := c.connOuts[consumer.Y]; os.Any() {
				outSets[os] = struct{}{}
			}
		}

		c.connRegs[sig] = mergeSets(regs, regSets, empty)
		c.connOuts[sig] = mergeSets(own, outSets, empty)
	}

	c.prevRegs = make(map[SignalID]SigSet, len(c.regs))

	for sig := range c.regs {
		for _, next := range c.Expand(c.connRegs[sig]) {
			set, ok := c.prevRegs[next]
			if !ok {
				set = make(SigSet)
				c.prevRegs[next] = set
			}

			set.Add(sig)
		}
	}
}

// mergeSets combines the signal's own contributions with the sets inherited
// from its consumers, reusing an inherited set whenever no copy is needed.
func mergeSets(own *bitset.BitSet, inherited map[*bitset.BitSet]struct{}, empty *bitset.BitSet) *bitset.BitSet {
	switch {
	case len(inherited) == 0 && !own.Any():
		return empty
	case len(inherited) == 0:
		return own
	case len(inherited) == 1 && !own.Any():
		for set := range inherited {
			return set
		}

		panic("unreachable")
	default:
		for set := range inherited {
			own.InPlaceUnion(set)
		}

		return own
	}
}
