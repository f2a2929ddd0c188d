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

	log "github.com/sirupsen/logrus"
)

// ExtractSubcircuit carves the cone of influence of a declared interface out
// of top.  The interface file uses the Yosys port syntax and names the
// declared inputs and outputs of the cut.  Cells are walked backwards from
// the declared outputs; the walk stops at declared inputs.
//
// A cone input that is a top-level input but was not declared is an error, as
// is a visited signal that is a top-level output but was not declared.  A
// declared input the cone never reaches, or an unvisited cell reading a cone
// signal, only warns.
func ExtractSubcircuit(top *Circuit, interfacePath string, moduleName string) (*Circuit, error) {
	data, err := os.ReadFile(interfacePath)
	if err != nil {
		return nil, fmt.Errorf("reading subcircuit interface: %w", err)
	}

	var design jsonDesign
	if err := json.Unmarshal(data, &design); err != nil {
		return nil, fmt.Errorf("parsing subcircuit interface %s: %w", interfacePath, err)
	}

	module, ok := design.Modules[moduleName]
	if !ok {
		return nil, fmt.Errorf("module %q not found in %s", moduleName, interfacePath)
	}

	c := newCircuit(moduleName)

	if err := c.loadPorts(module.Ports); err != nil {
		return nil, err
	}

	visited := make(SigSet, len(c.outs))
	for sig := range c.outs {
		visited.Add(sig)
	}

	placed := make(map[*Cell]struct{})

	for prev := -1; prev != len(visited); {
		prev = len(visited)

		for i := len(top.cells) - 1; i >= 0; i-- {
			cell := top.cells[i]
			if _, done := placed[cell]; done {
				continue
			}

			if !visited.Has(cell.Y) || c.ins.Has(cell.Y) {
				continue
			}

			for _, in := range cell.Inputs() {
				if top.ins.Has(in) && !c.ins.Has(in) {
					return nil, fmt.Errorf("subcircuit reaches undeclared input %v (%s)",
						in, top.BitName(in).Display())
				}

				visited.Add(in)
			}

			placed[cell] = struct{}{}

			if cell.IsRegister() {
				c.regs.Add(cell.Y)
			}
		}
	}

	for _, sig := range c.ins.Sorted() {
		if !visited.Has(sig) {
			log.Warnf("subcircuit: useless input %v (%s)", sig, top.BitName(sig).Display())
		}
	}

	for _, sig := range visited.Sorted() {
		if sig.IsConst() {
			continue
		}

		if top.outs.Has(sig) && !c.outs.Has(sig) {
			return nil, fmt.Errorf("subcircuit drives undeclared output %v (%s)",
				sig, top.BitName(sig).Display())
		}
	}

	for _, cell := range top.cells {
		if _, done := placed[cell]; done {
			continue
		}

		for _, in := range cell.Inputs() {
			if in.IsConst() || c.ins.Has(in) {
				continue
			}

			if visited.Has(in) && !c.outs.Has(in) {
				log.Warnf("subcircuit: implicit connection of cell %q to %v (%s)",
					cell.Name, in, top.BitName(in).Display())
			}
		}
	}

	for sig := range visited {
		c.sigs.Add(sig)
	}

	for _, cell := range top.cells {
		if _, done := placed[cell]; done {
			copied := *cell
			c.cells = append(c.cells, &copied)
		}
	}

	if err := c.copyNetnames(top); err != nil {
		return nil, err
	}

	if err := c.checkClocks(); err != nil {
		return nil, err
	}

	c.nameConstants()
	c.buildIndex()

	return c, nil
}

// copyNetnames carries over every top-level bus that touches the subcircuit,
// keeping buses the interface already declared consistent.
func (c *Circuit) copyNetnames(top *Circuit) error {
	for _, name := range sortedKeys(top.nameBits) {
		bits := top.nameBits[name]

		if prev, ok := c.nameBits[name]; ok {
			if len(prev) != len(bits) {
				return fmt.Errorf("subcircuit redeclares name %q with different width", name)
			}

			for i := range prev {
				if prev[i] != bits[i] {
					return fmt.Errorf("subcircuit redeclares name %q with different signals", name)
				}
			}

			continue
		}

		included := false

		for _, sig := range bits {
			if c.sigs.Has(sig) {
				included = true
				break
			}
		}

		if included {
			c.nameBits[name] = bits
			c.addBitNames(name, bits)
		}
	}

	return nil
}
