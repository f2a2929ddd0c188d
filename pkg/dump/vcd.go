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

// Package dump renders analysis artefacts: counterexample waveforms as VCD
// with a GTKWave savefile, and partitioning JSON.  All writes go through a
// temporary file and a rename, so readers never observe partial output.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/irifrance/gini/z"

	"github.com/cea-list/k-partitions/pkg/netlist"
)

// State maps the signals of one clock cycle onto their solver literals.
type State = map[netlist.SignalID]z.Lit

// Valuer reads literal values from a satisfying model.
type Valuer interface {
	Value(m z.Lit) bool
}

// writeAtomic streams through render into path via a temporary sibling.
func writeAtomic(path string, render func(w io.Writer) error) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)

	if err := render(w); err != nil {
		f.Close()
		os.Remove(tmp)

		return err
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)

		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// vcdName rewrites a net name into VCD-safe form.
func vcdName(name string) string {
	name = strings.ReplaceAll(name, ":", "_")
	if strings.Contains(name, "$") {
		name = "\\" + name
	}

	return name
}

// vcdID is the identifier code of one signal, shared across the three
// scopes via a one-letter prefix.
func vcdID(sig netlist.SignalID) string {
	return fmt.Sprintf("%d", uint32(sig))
}

type scopeEntry struct {
	id   string
	name string
	pos  uint32
}

// WriteVCD dumps the golden and faulty traces of a counterexample, with a
// third scope marking divergences as x.
func WriteVCD(path string, c *netlist.Circuit, golden, faulty []State, val Valuer) error {
	return writeAtomic(path, func(w io.Writer) error {
		fmt.Fprintf(w, "$date\n\t%s\n$end\n", time.Now().Format(time.ANSIC))
		fmt.Fprint(w, "$version\n\tFI Verification Tool v0.01\n$end\n")
		fmt.Fprint(w, "$timescale\n\t1ps\n$end\n")

		names := make([]string, 0, len(c.Nets()))
		for name := range c.Nets() {
			names = append(names, name)
		}

		sort.Strings(names)

		var entries []scopeEntry

		inVCD := map[netlist.SignalID]string{}

		for _, name := range names {
			bits := c.Nets()[name]
			display := vcdName(name)

			for pos := len(bits) - 1; pos >= 0; pos-- {
				sig := bits[pos]
				id := vcdID(sig)
				inVCD[sig] = id
				entries = append(entries, scopeEntry{id: id, name: display, pos: uint32(pos)})
			}
		}

		// The clock is toggled explicitly rather than sampled.
		hasClock := c.Clock() != netlist.Const0
		if hasClock {
			delete(inVCD, c.Clock())
		}

		for _, scope := range []struct{ module, prefix string }{
			{"golden", "g"}, {"faulty", "f"}, {"diff", "d"},
		} {
			fmt.Fprintf(w, "$scope module %s $end\n", scope.module)

			for _, e := range entries {
				fmt.Fprintf(w, "\t$var wire 1 %s%s %s[%d] $end\n", scope.prefix, e.id, e.name, e.pos)
			}

			fmt.Fprint(w, "$upscope $end\n")
		}

		fmt.Fprint(w, "$enddefinitions $end\n")

		if len(golden) == 0 {
			return nil
		}

		sigs := make([]netlist.SignalID, 0, len(inVCD))
		for sig := range inVCD {
			sigs = append(sigs, sig)
		}

		sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })

		bit := func(v bool) int {
			if v {
				return 1
			}

			return 0
		}

		showDiff := func(id string, g, f bool) {
			if g != f {
				fmt.Fprintf(w, "bx d%s\n", id)
			} else {
				fmt.Fprintf(w, "b%d d%s\n", bit(g), id)
			}
		}

		tick := 0

		for cycle := range golden {
			cur, curF := golden[cycle], faulty[cycle]

			fmt.Fprintf(w, "#%d\n", tick)

			if tick == 0 {
				fmt.Fprint(w, "$dumpvars\n")
			}

			if hasClock {
				clk := vcdID(c.Clock())
				fmt.Fprintf(w, "b1 g%s\nb1 f%s\nb1 d%s\n", clk, clk, clk)
			}

			for _, sig := range sigs {
				id := inVCD[sig]
				mg, okg := cur[sig]
				mf := curF[sig]

				if tick == 0 {
					if okg {
						g, f := val.Value(mg), val.Value(mf)
						fmt.Fprintf(w, "b%d g%s\nb%d f%s\n", bit(g), id, bit(f), id)
						showDiff(id, g, f)
					} else {
						fmt.Fprintf(w, "bz g%s\nbz f%s\nbz d%s\n", id, id, id)
					}

					continue
				}

				if !okg {
					continue
				}

				g, f := val.Value(mg), val.Value(mf)
				pg, okpg := golden[cycle-1][sig]
				pf := faulty[cycle-1][sig]

				changedG := !okpg || g != val.Value(pg)
				changedF := !okpg || f != val.Value(pf)

				if changedG {
					fmt.Fprintf(w, "b%d g%s\n", bit(g), id)
				}

				if changedF {
					fmt.Fprintf(w, "b%d f%s\n", bit(f), id)
				}

				if changedG || changedF {
					showDiff(id, g, f)
				}
			}

			if tick == 0 {
				fmt.Fprint(w, "$end\n")
			}

			if hasClock {
				clk := vcdID(c.Clock())
				fmt.Fprintf(w, "#%d\n", tick+500)
				fmt.Fprintf(w, "b0 g%s\nb0 f%s\nb0 d%s\n", clk, clk, clk)
			}

			tick += 1000
		}

		fmt.Fprintf(w, "#%d\n", tick)

		return nil
	})
}
