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
	"fmt"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// SigSet is an unordered set of signals.
type SigSet map[SignalID]struct{}

// Has reports membership of sig.
func (s SigSet) Has(sig SignalID) bool {
	_, ok := s[sig]
	return ok
}

// Add inserts sig.
func (s SigSet) Add(sig SignalID) {
	s[sig] = struct{}{}
}

// Sorted returns the members in ascending id order.
func (s SigSet) Sorted() []SignalID {
	out := make([]SignalID, 0, len(s))
	for sig := range s {
		out = append(out, sig)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Circuit is an immutable gate-level netlist: ports, cells in topological
// order (registers first), named buses, and the derived fan-out adjacency.
type Circuit struct {
	moduleName string
	ins        SigSet
	outs       SigSet
	regs       SigSet
	sigs       SigSet
	cells      []*Cell
	nameBits   map[string][]SignalID
	bitNames   map[SignalID]BitRef
	clock      SignalID
	clockPos   bool

	// Dense interning of signals for bitset-backed adjacency.
	index  map[SignalID]uint
	rindex []SignalID

	connRegs map[SignalID]*bitset.BitSet
	connOuts map[SignalID]*bitset.BitSet
	prevRegs map[SignalID]SigSet
}

// Name returns the module name the circuit was loaded from.
func (c *Circuit) Name() string { return c.moduleName }

// Ins returns the primary input signals.
func (c *Circuit) Ins() SigSet { return c.ins }

// Outs returns the primary output signals.
func (c *Circuit) Outs() SigSet { return c.outs }

// Regs returns the register output signals.
func (c *Circuit) Regs() SigSet { return c.regs }

// Sigs returns every defined signal, constants included.
func (c *Circuit) Sigs() SigSet { return c.sigs }

// Cells returns all cells in topological order, registers first.
func (c *Circuit) Cells() []*Cell { return c.cells }

// Nets returns the bus name to signal vector mapping.
func (c *Circuit) Nets() map[string][]SignalID { return c.nameBits }

// Clock returns the unique register clock, or Const0 for a purely
// combinational circuit.
func (c *Circuit) Clock() SignalID { return c.clock }

// ClockPositive reports the shared triggering edge of all registers.
func (c *Circuit) ClockPositive() bool { return c.clockPos }

// Has reports whether the named bus exists.
func (c *Circuit) Has(name string) bool {
	_, ok := c.nameBits[name]
	return ok
}

// Signals returns the bit vector of the named bus.
func (c *Circuit) Signals(name string) ([]SignalID, error) {
	bits, ok := c.nameBits[name]
	if !ok {
		return nil, fmt.Errorf("unknown net name %q", name)
	}

	return bits, nil
}

// BitName returns the preferred human-readable reference of sig.
func (c *Circuit) BitName(sig SignalID) BitRef {
	ref, ok := c.bitNames[sig]
	if !ok {
		return NewBitRef(fmt.Sprintf("$sig%d", uint32(sig)), 0)
	}

	return ref
}

// IndexOf returns the dense index assigned to sig.
func (c *Circuit) IndexOf(sig SignalID) (uint, bool) {
	idx, ok := c.index[sig]
	return idx, ok
}

// SignalAt maps a dense index back to its signal.
func (c *Circuit) SignalAt(idx uint) SignalID {
	return c.rindex[idx]
}

// Expand converts a dense adjacency set back into signal ids.
func (c *Circuit) Expand(bs *bitset.BitSet) []SignalID {
	out := make([]SignalID, 0, bs.Count())
	for idx, ok := bs.NextSet(0); ok; idx, ok = bs.NextSet(idx + 1) {
		out = append(out, c.rindex[idx])
	}

	return out
}

// ConnRegs returns the registers whose combinational fan-in transitively
// contains sig, as a dense set.  Only valid after BuildAdjacency.
func (c *Circuit) ConnRegs(sig SignalID) *bitset.BitSet {
	if len(c.connRegs) == 0 {
		panic("adjacency queried before BuildAdjacency")
	}

	return c.connRegs[sig]
}

// ConnOuts returns the primary outputs whose combinational fan-in contains
// sig, as a dense set.  Only valid after BuildAdjacency.
func (c *Circuit) ConnOuts(sig SignalID) *bitset.BitSet {
	if len(c.connOuts) == 0 {
		panic("adjacency queried before BuildAdjacency")
	}

	return c.connOuts[sig]
}

// PrevRegs returns the register outputs in the combinational fan-in of the
// register output sig.
func (c *Circuit) PrevRegs(sig SignalID) SigSet {
	if !c.regs.Has(sig) {
		panic(fmt.Sprintf("prev_regs queried on non-register signal %v", sig))
	}

	return c.prevRegs[sig]
}

// Stats renders a short summary block of the circuit dimensions.
func (c *Circuit) Stats() string {
	var sb strings.Builder

	sb.WriteString("******* Circuit Stats ********\n")
	fmt.Fprintf(&sb, "Cells size: %d\n", len(c.cells))
	fmt.Fprintf(&sb, "Sigs size: %d\n", len(c.sigs))
	fmt.Fprintf(&sb, "Inputs size: %d\n", len(c.ins))
	fmt.Fprintf(&sb, "Outputs size: %d\n", len(c.outs))
	fmt.Fprintf(&sb, "Registers size: %d\n", len(c.regs))
	fmt.Fprintf(&sb, "Nets size: %d\n", len(c.nameBits))

	return sb.String()
}

// addBitNames records the preferred display name of every bit in a bus,
// keeping the least BitRef when a signal is covered by several names.
func (c *Circuit) addBitNames(name string, bits []SignalID) {
	for pos, sig := range bits {
		ref := NewBitRef(name, uint32(pos))

		prev, ok := c.bitNames[sig]
		if !ok || ref.Less(prev) {
			c.bitNames[sig] = ref
		}
	}
}

// buildIndex interns every signal into a dense index in ascending id order
// (the constants, at the top of the id range, come last), so bitsets over the
// circuit stay small.
func (c *Circuit) buildIndex() {
	c.index = make(map[SignalID]uint, len(c.sigs))
	c.rindex = make([]SignalID, 0, len(c.sigs))

	for _, sig := range c.sigs.Sorted() {
		c.index[sig] = uint(len(c.rindex))
		c.rindex = append(c.rindex, sig)
	}
}

func newCircuit(moduleName string) *Circuit {
	c := &Circuit{
		moduleName: moduleName,
		ins:        make(SigSet),
		outs:       make(SigSet),
		regs:       make(SigSet),
		sigs:       make(SigSet),
		nameBits:   make(map[string][]SignalID),
		bitNames:   make(map[SignalID]BitRef),
		clock:      Const0,
		clockPos:   true,
	}

	c.sigs.Add(Const0)
	c.sigs.Add(Const1)
	c.sigs.Add(ConstX)
	c.sigs.Add(ConstZ)

	return c
}

func (c *Circuit) nameConstants() {
	constants := map[SignalID]string{
		Const0: "constant 0",
		Const1: "constant 1",
		ConstX: "constant X",
		ConstZ: "constant Z",
	}
	for sig, name := range constants {
		if _, ok := c.bitNames[sig]; !ok {
			c.bitNames[sig] = NewBitRef(name, 0)
		}
	}
}
