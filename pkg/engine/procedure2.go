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
	"path/filepath"
	"time"

	"github.com/irifrance/gini/z"
	log "github.com/sirupsen/logrus"

	"github.com/cea-list/k-partitions/pkg/config"
	"github.com/cea-list/k-partitions/pkg/dump"
	"github.com/cea-list/k-partitions/pkg/netlist"
	"github.com/cea-list/k-partitions/pkg/sat"
)

// RunProcedure2 checks output integrity: no combination of at most k silent
// faults may corrupt a primary output within the unrolling depth.  Every
// satisfying model is an exploitable fault pattern; its locations are
// forbidden and the search continues until exhaustion.
func (a *Analysis) RunProcedure2() error {
	cfg := a.cfg

	a.banner("Procedure 2 -- Check output integrity")

	ctx := sat.NewContext()
	u := NewUnrolling(ctx, a.circuit, a.faultable, a.alerts)

	for cycle := 0; cycle <= cfg.Delay; cycle++ {
		if cycle == 0 {
			u.Init()

			if err := u.AssertInvariants(cfg.Invariants(), 0); err != nil {
				return err
			}
		} else {
			u.Step()
		}

		if err := u.AssertNoAlert(cfg.Alerts(), cycle); err != nil {
			return err
		}
	}

	diffs0 := partitionDiffs(ctx, a.parts, u.Golden[0], u.Faulty[0])
	combVars := combFaultControls(u.Faults)
	start := time.Now()

	primaryOuts := netlist.SigSet{}

	for sig := range a.circuit.Outs() {
		if !a.alerts.Has(sig) {
			primaryOuts.Add(sig)
		}
	}

	// Output divergence is judged at the end of the unrolling, once the
	// faults had the whole window to propagate.
	final := u.Depth() - 1
	outputDiff := make([]z.Lit, 0, len(primaryOuts))

	for _, sig := range primaryOuts.Sorted() {
		outputDiff = append(outputDiff, ctx.Xor(u.Golden[final][sig], u.Faulty[final][sig]))
	}

	enumeratedFaults := netlist.SigSet{}
	enumeratedParts := map[int]bool{}

	a.optimOutputConnectivity(ctx, u, diffs0, primaryOuts)

	for kFaults := 1; kFaults <= cfg.K; kFaults++ {
		if !cfg.IncreasingK {
			kFaults = cfg.K
		}

		maxKFComb := kFaults
		if cfg.FGates == config.GatesSeq {
			maxKFComb = 0
		}

		for kFComb := 0; kFComb <= maxKFComb; kFComb++ {
			kFPart := kFaults - kFComb

			a.rule()
			fmt.Fprintf(a.out, "Check output integrity for %d/%d faulty partitions,\n", kFPart, len(a.parts))
			fmt.Fprintf(a.out, "%d/%d combinational faults\n", kFComb, len(combVars[0])+len(combVars[1]))
			a.rule()

			totalCombVars := append(append([]z.Lit(nil), combVars[0]...), combVars[1]...)
			atMostComb := ctx.AtMost(totalCombVars, kFComb)
			atMostPart := ctx.AtMost(diffs0, kFPart)
			anyOutputDiff := ctx.Or(outputDiff...)

			a.exhaust(ctx, u, diffs0, enumeratedFaults, enumeratedParts,
				atMostComb, atMostPart, anyOutputDiff, final)
		}
	}

	fmt.Fprintf(a.out, "=> Procedure 2 verification time: %s\n", elapsed(start))

	return nil
}

// optimOutputConnectivity forbids fault locations that cannot reach any
// primary output.
func (a *Analysis) optimOutputConnectivity(ctx *sat.Context, u *Unrolling, diffs0 []z.Lit,
	primaryOuts netlist.SigSet) {
	reaches := func(sigs []netlist.SignalID) bool {
		for _, out := range sigs {
			if primaryOuts.Has(out) {
				return true
			}
		}

		return false
	}

	partOptim := 0

	for idx, part := range a.parts {
		connOuts := netlist.SigSet{}

		for sig := range part {
			for _, out := range a.circuit.Expand(a.circuit.ConnOuts(sig)) {
				connOuts.Add(out)
			}
		}

		if !reaches(connOuts.Sorted()) {
			ctx.AddClause(diffs0[idx].Not())
			partOptim++
		}
	}

	fmt.Fprintf(a.out, "  Optimize %d faults in partitions\n", partOptim)

	combOptim := 0

	for _, sig := range u.Faults[0].Signals() {
		if !reaches(a.circuit.Expand(a.circuit.ConnOuts(sig))) {
			ctx.AddClause(u.Faults[0][sig].IsFaulted().Not())
			combOptim++
		}
	}

	fmt.Fprintf(a.out, "  Optimize %d faults in comb logic\n", combOptim)
}

// exhaust enumerates every exploitable fault pattern under the given
// cardinality gates, forbidding each witness before asking again.
func (a *Analysis) exhaust(ctx *sat.Context, u *Unrolling, diffs0 []z.Lit,
	enumeratedFaults netlist.SigSet, enumeratedParts map[int]bool,
	atMostComb, atMostPart, anyOutputDiff z.Lit, final int) {
	cfg := a.cfg

	for ; a.solverIter < maxIter; a.solverIter++ {
		assumptions := []z.Lit{atMostComb, atMostPart, anyOutputDiff}

		fmt.Fprint(a.out, "\nEnumerate exploitable faults: ")

		for _, sig := range enumeratedFaults.Sorted() {
			fmt.Fprintf(a.out, "%d ", uint32(sig))

			for _, faults := range u.Faults {
				if f, ok := faults[sig]; ok {
					ctx.AddClause(f.IsFaulted().Not())
				}
			}
		}

		fmt.Fprintln(a.out)
		fmt.Fprint(a.out, "Enumerate exploitable partitions: ")

		for idx := range diffs0 {
			if enumeratedParts[idx] {
				fmt.Fprintf(a.out, "%d ", idx)
				ctx.AddClause(diffs0[idx].Not())
			}
		}

		fmt.Fprintln(a.out)
		fmt.Fprintf(a.out, "\n  Running solver %d: ", a.solverIter)
		a.progress.Update("solver %d | output integrity", a.solverIter)

		solveStart := time.Now()
		res := ctx.Solve(assumptions, cfg.SolverTimeout())

		switch res {
		case sat.Unsat:
			fmt.Fprintf(a.out, "UNSAT %s\n", elapsed(solveStart))
			return
		case sat.Unknown:
			fmt.Fprintf(a.out, "UNKNOWN %s\n", elapsed(solveStart))
			log.Warnf("solver timeout after %s, result unknown", cfg.SolverTimeout())

			return
		}

		fmt.Fprintf(a.out, "SAT %s\n", elapsed(solveStart))

		for cycle, faults := range u.Faults {
			fmt.Fprintf(a.out, "Faulty comb gates at clock cycle %d: ", cycle)

			for _, sig := range faults.Signals() {
				if ctx.Value(faults[sig].IsFaulted()) {
					enumeratedFaults.Add(sig)
					fmt.Fprintf(a.out, "%d ", uint32(sig))
				}
			}

			fmt.Fprintln(a.out)
		}

		fmt.Fprint(a.out, "Faulty partitions (initial): ")

		for idx, diff := range diffs0 {
			if !ctx.Value(diff) {
				continue
			}

			enumeratedParts[idx] = true
			fmt.Fprintf(a.out, "%d ( ", idx)

			for _, reg := range a.parts[idx].Sorted() {
				fmt.Fprintf(a.out, "%d ", uint32(reg))
			}

			fmt.Fprint(a.out, ") ")
		}

		fmt.Fprintln(a.out)
		fmt.Fprint(a.out, "Corrupted outputs: ")

		for _, sig := range a.circuit.Outs().Sorted() {
			if ctx.Value(u.Golden[final][sig]) != ctx.Value(u.Faulty[final][sig]) {
				fmt.Fprintf(a.out, "%d ", uint32(sig))
			}
		}

		fmt.Fprintln(a.out)

		if cfg.DumpVCD {
			path := filepath.Join(cfg.DumpPath,
				fmt.Sprintf("k-partitions-output-%s.vcd", a.timeStr))
			if err := dump.WriteVCD(path, a.circuit, u.Golden, u.Faulty, ctx); err != nil {
				log.Errorf("writing %s: %v", path, err)
			}
		}
	}
}
