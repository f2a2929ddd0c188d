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
	"encoding/json"
	"fmt"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
)

// jsonBit is one entry of a Yosys "bits" array: either a net id number or one
// of the constant strings "0", "1", "x", "z".
type jsonBit struct {
	sig SignalID
}

func (b *jsonBit) UnmarshalJSON(data []byte) error {
	var id uint32
	if err := json.Unmarshal(data, &id); err == nil {
		b.sig = SignalID(id)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("illegal signal list entry %s", data)
	}

	sig, err := SignalFromConst(s)
	if err != nil {
		return err
	}

	b.sig = sig

	return nil
}

type jsonPort struct {
	Direction string    `json:"direction"`
	Bits      []jsonBit `json:"bits"`
}

type jsonCell struct {
	Type        string               `json:"type"`
	Connections map[string][]jsonBit `json:"connections"`
}

type jsonNet struct {
	Bits []jsonBit `json:"bits"`
}

type jsonModule struct {
	Ports    map[string]jsonPort `json:"ports"`
	Cells    map[string]jsonCell `json:"cells"`
	Netnames map[string]jsonNet  `json:"netnames"`
}

type jsonDesign struct {
	Modules map[string]jsonModule `json:"modules"`
}

func signals(bits []jsonBit) []SignalID {
	out := make([]SignalID, len(bits))
	for i, b := range bits {
		out[i] = b.sig
	}

	return out
}

// sortedKeys fixes the admission order of JSON object members, which Yosys
// emits in arbitrary order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// LoadCircuit reads a Yosys JSON netlist and builds the named module as an
// ordered circuit.  The netlist must already be synthesised down to the
// supported single-bit gate library.
func LoadCircuit(path string, moduleName string) (*Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading netlist: %w", err)
	}

	var design jsonDesign
	if err := json.Unmarshal(data, &design); err != nil {
		return nil, fmt.Errorf("parsing netlist %s: %w", path, err)
	}

	module, ok := design.Modules[moduleName]
	if !ok {
		return nil, fmt.Errorf("module %q not found in %s", moduleName, path)
	}

	c := newCircuit(moduleName)

	if err := c.loadPorts(module.Ports); err != nil {
		return nil, err
	}

	if err := c.loadCells(module.Cells); err != nil {
		return nil, err
	}

	if err := c.checkClocks(); err != nil {
		return nil, err
	}

	if err := c.orderCells(); err != nil {
		return nil, err
	}

	if err := c.loadNetnames(module.Netnames); err != nil {
		return nil, err
	}

	c.nameConstants()
	c.buildIndex()

	return c, nil
}

func (c *Circuit) loadPorts(ports map[string]jsonPort) error {
	for _, name := range sortedKeys(ports) {
		port := ports[name]

		if port.Direction != "input" && port.Direction != "output" {
			return fmt.Errorf("illegal direction %q of port %q", port.Direction, name)
		}

		if _, ok := c.nameBits[name]; ok {
			return fmt.Errorf("redeclaration of name %q", name)
		}

		bits := signals(port.Bits)
		c.nameBits[name] = bits
		c.addBitNames(name, bits)

		for _, sig := range bits {
			if port.Direction == "input" {
				c.ins.Add(sig)
				c.sigs.Add(sig)
			} else {
				c.outs.Add(sig)
			}
		}
	}

	return nil
}

// loadCells admits every cell of the module, tracking forward references in a
// missing set that must be empty once all drivers are seen.
func (c *Circuit) loadCells(cells map[string]jsonCell) error {
	missing := make(SigSet)

	conn := func(cell jsonCell, cellName, port string) (SignalID, error) {
		bits, ok := cell.Connections[port]
		if !ok || len(bits) == 0 {
			return 0, fmt.Errorf("cell %q has no connection on port %s", cellName, port)
		}

		return bits[0].sig, nil
	}

	input := func(sig SignalID) {
		if !c.sigs.Has(sig) {
			missing.Add(sig)
		}
	}

	output := func(sig SignalID) error {
		if c.sigs.Has(sig) && !c.ins.Has(sig) {
			return fmt.Errorf("signal %v driven by more than one cell", sig)
		}

		c.sigs.Add(sig)
		delete(missing, sig)

		return nil
	}

	for _, name := range sortedKeys(cells) {
		jc := cells[name]

		if jc.Type == "$assert" {
			log.Debugf("skipping assert cell %q", name)
			continue
		}

		typ, ok := CellTypeByName(jc.Type)
		if !ok {
			return fmt.Errorf("illegal cell type %q of cell %q", jc.Type, name)
		}

		cell := &Cell{Name: name, Type: typ}

		var err error

		switch typ.Kind {
		case KindUnary:
			if cell.A, err = conn(jc, name, "A"); err == nil {
				cell.Y, err = conn(jc, name, "Y")
			}
		case KindBinary:
			if cell.A, err = conn(jc, name, "A"); err == nil {
				if cell.B, err = conn(jc, name, "B"); err == nil {
					cell.Y, err = conn(jc, name, "Y")
				}
			}
		case KindMux:
			if cell.A, err = conn(jc, name, "A"); err == nil {
				if cell.B, err = conn(jc, name, "B"); err == nil {
					if cell.S, err = conn(jc, name, "S"); err == nil {
						cell.Y, err = conn(jc, name, "Y")
					}
				}
			}
		case KindRegister:
			if cell.C, err = conn(jc, name, "C"); err == nil {
				if cell.D, err = conn(jc, name, "D"); err == nil {
					cell.Y, err = conn(jc, name, "Q")
				}
			}

			if err == nil && typ.HasEnable {
				cell.E, err = conn(jc, name, "E")
			}

			if err == nil && typ.HasReset {
				cell.R, err = conn(jc, name, "R")
			}
		}

		if err != nil {
			return err
		}

		for _, in := range cell.Inputs() {
			if in == cell.Y {
				return fmt.Errorf("cell %q feeds its own output %v", name, cell.Y)
			}

			input(in)
		}

		if err := output(cell.Y); err != nil {
			return fmt.Errorf("cell %q: %w", name, err)
		}

		if typ.Kind == KindRegister {
			c.regs.Add(cell.Y)
		}

		c.cells = append(c.cells, cell)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing signals %v", missing.Sorted())
	}

	for sig := range c.outs {
		if !c.sigs.Has(sig) {
			return fmt.Errorf("missing signals: undriven output %v", sig)
		}
	}

	return nil
}

// checkClocks verifies that all registers share one non-constant clock signal
// and one triggering edge, recording both on the circuit.
func (c *Circuit) checkClocks() error {
	var posEdge, negEdge bool

	for _, cell := range c.cells {
		if !cell.IsRegister() {
			continue
		}

		posEdge = posEdge || cell.Type.ClockPos
		negEdge = negEdge || !cell.Type.ClockPos

		if c.clock == Const0 {
			if cell.C.IsConst() {
				return fmt.Errorf("constant clock signal on register %q", cell.Name)
			}

			c.clock = cell.C
		} else if cell.C != c.clock {
			return fmt.Errorf("multiple clocks: register %q uses %v, expected %v", cell.Name, cell.C, c.clock)
		}
	}

	if posEdge && negEdge {
		return fmt.Errorf("registers trigger on mixed clock edges")
	}

	c.clockPos = !negEdge

	return nil
}

// orderCells rewrites the cell list in topological order, registers first.
// Register outputs count as visited from the start, so only a true
// combinational cycle can block progress.
func (c *Circuit) orderCells() error {
	visited := make(SigSet, len(c.sigs))

	for sig := range c.ins {
		visited.Add(sig)
	}

	visited.Add(Const0)
	visited.Add(Const1)
	visited.Add(ConstX)
	visited.Add(ConstZ)

	placed := make(map[*Cell]struct{}, len(c.cells))
	order := make([]*Cell, 0, len(c.cells))

	for _, cell := range c.cells {
		if !cell.IsRegister() {
			continue
		}

		order = append(order, cell)
		placed[cell] = struct{}{}
		visited.Add(cell.Y)
	}

	for len(order) != len(c.cells) {
		progress := false

		for _, cell := range c.cells {
			if _, done := placed[cell]; done {
				continue
			}

			ready := true

			for _, in := range cell.CombInputs() {
				if !visited.Has(in) {
					ready = false
					break
				}
			}

			if !ready {
				continue
			}

			visited.Add(cell.Y)
			placed[cell] = struct{}{}
			order = append(order, cell)
			progress = true
		}

		if !progress {
			blocked := make([]string, 0)

			for _, cell := range c.cells {
				if _, done := placed[cell]; !done {
					blocked = append(blocked, cell.Name)
				}
			}

			return fmt.Errorf("combinational cycle through cells %v", blocked)
		}
	}

	c.cells = order

	return nil
}

func (c *Circuit) loadNetnames(nets map[string]jsonNet) error {
	for _, name := range sortedKeys(nets) {
		bits := signals(nets[name].Bits)

		if prev, ok := c.nameBits[name]; ok {
			if len(prev) != len(bits) {
				return fmt.Errorf("redeclaration of name %q with different width", name)
			}

			for i := range prev {
				if prev[i] != bits[i] {
					return fmt.Errorf("redeclaration of name %q with different signals", name)
				}
			}

			continue
		}

		c.nameBits[name] = bits
		c.addBitNames(name, bits)
	}

	return nil
}
