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

// CellKind partitions the supported cell types into their structural shapes.
type CellKind uint8

const (
	// KindUnary covers single-input gates (inputs A, output Y).
	KindUnary CellKind = iota
	// KindBinary covers two-input gates (inputs A and B, output Y).
	KindBinary
	// KindMux covers 2:1 multiplexers (inputs A, B, select S, output Y).
	KindMux
	// KindRegister covers the D-flip-flop family (clock C, data D, output Q,
	// optional enable E and synchronous reset R).
	KindRegister
)

// CellOp is the logical function computed by a combinational cell.  Registers
// use OpDff regardless of their enable/reset decoration.
type CellOp uint8

const (
	OpNot CellOp = iota
	OpBuf
	OpAnd
	OpOr
	OpXor
	OpXnor
	OpNand
	OpNor
	OpAndNot
	OpOrNot
	OpMux
	OpNmux
	OpDff
)

// CellType describes one entry of the supported gate library.
type CellType struct {
	Name string
	Kind CellKind
	Op   CellOp

	// Register decorations.  ClockPos is the triggering edge; EnableLow and
	// ResetLow record active-low polarities of the optional ports.
	ClockPos  bool
	HasEnable bool
	EnableLow bool
	HasReset  bool
	ResetLow  bool
}

func comb(name string, kind CellKind, op CellOp) *CellType {
	return &CellType{Name: name, Kind: kind, Op: op}
}

func dff(name string, clockPos bool) *CellType {
	return &CellType{Name: name, Kind: KindRegister, Op: OpDff, ClockPos: clockPos}
}

func dffe(name string, clockPos, enLow bool) *CellType {
	t := dff(name, clockPos)
	t.HasEnable = true
	t.EnableLow = enLow

	return t
}

func sdff(name string, clockPos, rstLow bool) *CellType {
	t := dff(name, clockPos)
	t.HasReset = true
	t.ResetLow = rstLow

	return t
}

func sdffe(name string, clockPos, rstLow, enLow bool) *CellType {
	t := sdff(name, clockPos, rstLow)
	t.HasEnable = true
	t.EnableLow = enLow

	return t
}

// cellTypes maps Yosys type names, both the coarse internal names and the
// technology-mapped gate names, onto their descriptions.  Synchronous resets
// always clear the register to zero.
var cellTypes = func() map[string]*CellType {
	types := []*CellType{
		// Coarse cells.
		comb("$not", KindUnary, OpNot),
		comb("$buf", KindUnary, OpBuf),
		comb("$and", KindBinary, OpAnd),
		comb("$or", KindBinary, OpOr),
		comb("$xor", KindBinary, OpXor),
		comb("$xnor", KindBinary, OpXnor),
		comb("$mux", KindMux, OpMux),
		dff("$dff", true),
		dffe("$dffe", true, false),
		sdff("$sdff", true, false),
		sdffe("$sdffe", true, false, false),
		// Technology-mapped gates.
		comb("$_NOT_", KindUnary, OpNot),
		comb("$_BUF_", KindUnary, OpBuf),
		comb("$_AND_", KindBinary, OpAnd),
		comb("$_OR_", KindBinary, OpOr),
		comb("$_XOR_", KindBinary, OpXor),
		comb("$_XNOR_", KindBinary, OpXnor),
		comb("$_NAND_", KindBinary, OpNand),
		comb("$_NOR_", KindBinary, OpNor),
		comb("$_ANDNOT_", KindBinary, OpAndNot),
		comb("$_ORNOT_", KindBinary, OpOrNot),
		comb("$_MUX_", KindMux, OpMux),
		comb("$_NMUX_", KindMux, OpNmux),
		dff("$_DFF_P_", true),
		dff("$_DFF_N_", false),
		dffe("$_DFFE_PP_", true, false),
		dffe("$_DFFE_PN_", true, true),
		dffe("$_DFFE_NP_", false, false),
		dffe("$_DFFE_NN_", false, true),
		sdff("$_SDFF_PP0_", true, false),
		sdff("$_SDFF_PN0_", true, true),
		sdff("$_SDFF_NP0_", false, false),
		sdff("$_SDFF_NN0_", false, true),
		sdffe("$_SDFFE_PP0P_", true, false, false),
		sdffe("$_SDFFE_PP0N_", true, false, true),
		sdffe("$_SDFFE_PN0P_", true, true, false),
		sdffe("$_SDFFE_NP0P_", false, false, false),
	}
	m := make(map[string]*CellType, len(types))

	for _, t := range types {
		m[t.Name] = t
	}

	return m
}()

// CellTypeByName resolves a Yosys cell type name; ok is false for unsupported
// types.
func CellTypeByName(name string) (*CellType, bool) {
	t, ok := cellTypes[name]
	return t, ok
}

// Cell is one gate instance.  Only the ports implied by the cell kind (and,
// for registers, the enable/reset decorations) are meaningful.
type Cell struct {
	Name string
	Type *CellType

	// Combinational ports.
	A, B, S SignalID
	// Register ports.
	C, D, E, R SignalID
	// Output (Y for combinational cells, Q for registers).
	Y SignalID
}

// Output returns the signal driven by this cell.
func (c *Cell) Output() SignalID {
	return c.Y
}

// Inputs returns the input signals of this cell, in port order.
func (c *Cell) Inputs() []SignalID {
	switch c.Type.Kind {
	case KindUnary:
		return []SignalID{c.A}
	case KindBinary:
		return []SignalID{c.A, c.B}
	case KindMux:
		return []SignalID{c.A, c.B, c.S}
	default:
		ins := []SignalID{c.C, c.D}
		if c.Type.HasEnable {
			ins = append(ins, c.E)
		}

		if c.Type.HasReset {
			ins = append(ins, c.R)
		}

		return ins
	}
}

// CombInputs returns the inputs that participate in combinational ordering.
// For registers this is empty since the register output breaks the cycle.
func (c *Cell) CombInputs() []SignalID {
	if c.Type.Kind == KindRegister {
		return nil
	}

	return c.Inputs()
}

// IsRegister reports whether this cell is a flip-flop.
func (c *Cell) IsRegister() bool {
	return c.Type.Kind == KindRegister
}
