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
package dump

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cea-list/k-partitions/pkg/netlist"
)

const (
	openGroupMagic  = "@800200"
	closeGroupMagic = "@1000200"
	displayBinMagic = "@8"
)

// WriteGTKW writes the GTKWave savefile next to a VCD dump, grouping the
// diff signals of the partitions faulted initially and in the next state.
func WriteGTKW(vcdPath string, faultyInitial, faultyNext []int,
	parts []netlist.SigSet, c *netlist.Circuit) error {
	savefile := strings.TrimSuffix(vcdPath, ".vcd") + ".gtkw"

	return writeAtomic(savefile, func(w io.Writer) error {
		fmt.Fprint(w, "[*] Fault analysis result\n")
		fmt.Fprintf(w, "[dumpfile] %q\n", filepath.Base(vcdPath))

		group := func(label string, idxs []int) {
			for _, idx := range idxs {
				fmt.Fprintf(w, "%s\n-%s %d\n", openGroupMagic, label, idx)
				fmt.Fprintf(w, "%s\n", displayBinMagic)

				for _, sig := range parts[idx].Sorted() {
					ref := c.BitName(sig)
					fmt.Fprintf(w, "diff.\\%s[%d]\n", strings.ReplaceAll(ref.Name, ":", "_"), ref.Pos)
				}

				fmt.Fprintf(w, "%s\n-%s %d\n", closeGroupMagic, label, idx)
			}
		}

		group("initial faulty", faultyInitial)
		group("next faulty", faultyNext)

		return nil
	})
}
