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
	"strings"
)

// SignalID names a single wire bit within one circuit.  Synthesiser-assigned
// net ids occupy the low end of the 32-bit range; the four constant signals
// live at the very top so they can never collide with a real net.
type SignalID uint32

// Constant signals.  X and Z are unknown/high-impedance in the netlist but
// evaluate as logical zero.
const (
	Const0 SignalID = 0xFFFFFFFC
	Const1 SignalID = 0xFFFFFFFD
	ConstX SignalID = 0xFFFFFFFE
	ConstZ SignalID = 0xFFFFFFFF
)

// IsConst reports whether s is one of the four reserved constant signals.
func (s SignalID) IsConst() bool {
	return s >= Const0
}

func (s SignalID) String() string {
	switch s {
	case Const0:
		return "constant 0"
	case Const1:
		return "constant 1"
	case ConstX:
		return "constant X"
	case ConstZ:
		return "constant Z"
	}

	return fmt.Sprintf("%d", uint32(s))
}

// SignalFromConst maps the Yosys constant strings "0", "1", "x", "z" onto the
// reserved signal ids.
func SignalFromConst(s string) (SignalID, error) {
	switch s {
	case "0":
		return Const0, nil
	case "1":
		return Const1, nil
	case "x", "X":
		return ConstX, nil
	case "z", "Z":
		return ConstZ, nil
	}

	return 0, fmt.Errorf("illegal constant signal %q", s)
}

// BitRef is the human-readable identity of a signal: the bus it belongs to,
// its bit position within that bus, and the hierarchy depth of the bus name
// (number of '.'-separated levels).
type BitRef struct {
	Name  string
	Pos   uint32
	Depth uint32
}

// NewBitRef computes the hierarchy depth from the name.
func NewBitRef(name string, pos uint32) BitRef {
	return BitRef{Name: name, Pos: pos, Depth: uint32(strings.Count(name, ".")) + 1}
}

// Display renders the reference as "name [pos]".
func (b BitRef) Display() string {
	return fmt.Sprintf("%s [%d]", b.Name, b.Pos)
}

// Less orders bit references by preference: a name not starting with '_'
// beats one that does, then lower hierarchy depth wins, then the shorter
// name.  When several bus names cover the same signal, the least reference
// is kept as its display name.
func (b BitRef) Less(o BitRef) bool {
	bu := strings.HasPrefix(b.Name, "_")
	ou := strings.HasPrefix(o.Name, "_")

	if ou && !bu {
		return true
	} else if bu && !ou {
		return false
	}

	if b.Depth != o.Depth {
		return b.Depth < o.Depth
	}

	return len(b.Name) < len(o.Name)
}
