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

// partitionDiffs builds, per partition, the disjunction of the member
// divergences at one cycle.
func partitionDiffs(ctx *sat.Context, parts Partitions, golden, faulty State) []z.Lit {
	diffs := make([]z.Lit, 0, len(parts))

	for _, part := range parts {
		members := make([]z.Lit, 0, len(part))
		for _, sig := range part.Sorted() {
			members = append(members, ctx.Xor(golden[sig], faulty[sig]))
		}

		diffs = append(diffs, ctx.Or(members...))
	}

	return diffs
}

// combFaultControls splits the per-cycle fault occurrences into the
// initial-state controls and the flattened later-cycle controls.
func combFaultControls(faults []FaultMap) [2][]z.Lit {
	var vars [2][]z.Lit

	for cycle, m := range faults {
		slot := 0
		if cycle > 0 {
			slot = 1
		}

		vars[slot] = append(vars[slot], m.Controls()...)
	}

	return vars
}

// RunProcedure1 searches for a partitioning in which no combination of at
// most k faults silently corrupts more than k partitions in the next state.
// Counterexamples drive random merges of the offending partitions until the
// query turns UNSAT.
func (a *Analysis) RunProcedure1() error {
	cfg := a.cfg
	ctx := sat.NewContext()
	u := NewUnrolling(ctx, a.circuit, a.faultable, a.alerts)

	depth := cfg.Delay
	if depth < 1 {
		depth = 1
	}

	for cycle := 0; cycle <= depth; cycle++ {
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

	var diffs [2][]z.Lit
	for cycle := 0; cycle <= 1; cycle++ {
		diffs[cycle] = partitionDiffs(ctx, a.parts, u.Golden[cycle], u.Faulty[cycle])
	}

	combVars := combFaultControls(u.Faults)
	start := time.Now()
	enumerated := netlist.SigSet{}

	a.banner("Procedure 1 -- Build partitions")

	for kFaults := 1; kFaults <= cfg.K; kFaults++ {
		if !cfg.IncreasingK {
			kFaults = cfg.K
		}

		maxKFComb := kFaults
		if cfg.FGates == config.GatesSeq {
			maxKFComb = 0
		}

		for kFComb := maxKFComb; kFComb >= 0; kFComb-- {
			for kFCombNext := 0; kFCombNext <= kFComb && kFCombNext <= kFaults-1; kFCombNext++ {
				kFPart := kFaults - kFComb
				kFCombInit := kFComb - kFCombNext

				a.rule()
				fmt.Fprintf(a.out, "Partitioning for %d/%d faulty partitions,\n", kFPart, len(a.parts))
				fmt.Fprintf(a.out, "%d/%d combinational faults at initial state,\n", kFCombInit, len(combVars[0]))
				fmt.Fprintf(a.out, "and %d/%d combinational faults in the following clock cycles.\n",
					kFCombNext, len(combVars[1]))
				a.rule()

				a.fixpoint(ctx, u, &diffs, combVars, enumerated, kFaults, kFPart, kFCombInit, kFCombNext)

				fmt.Fprintf(a.out, "  Partitioning finished with %d partitions.\n", len(a.parts))

				if cfg.DumpPartitioning {
					path := filepath.Join(cfg.DumpPath, fmt.Sprintf("partitioning-%d.json", a.solverIter))
					if err := a.parts.Save(path); err != nil {
						return err
					}

					fmt.Fprintf(a.out, "  Write partitioning in file `%s`\n", path)
				}
			}
		}
	}

	fmt.Fprintf(a.out, "=> Procedure 1 verification time: %s\n", elapsed(start))

	return nil
}

// fixpoint runs the solve/merge loop for one fault budget triple until the
// query becomes UNSAT or the iteration cap is reached.
func (a *Analysis) fixpoint(ctx *sat.Context, u *Unrolling, diffs *[2][]z.Lit, combVars [2][]z.Lit,
	enumerated netlist.SigSet, kFaults, kFPart, kFCombInit, kFCombNext int) {
	cfg := a.cfg

	for a.solverIter++; a.solverIter < maxIter; a.solverIter++ {
		if cfg.OptimAtLeast2 {
			optimAtLeast2ConnParts(ctx, a.circuit, a.parts, u.Faults[0], diffs[0], a.out)
		}

		assumptions := []z.Lit{
			ctx.AtMost(combVars[0], kFCombInit),
			ctx.AtMost(combVars[1], kFCombNext),
			ctx.AtMost(diffs[0], kFPart),
			ctx.AtLeast(diffs[1], kFaults+1),
		}

		if cfg.EnumerateExploitable {
			fmt.Fprint(a.out, "\nEnumerate exploitable faults: ")

			for _, sig := range enumerated.Sorted() {
				fmt.Fprintf(a.out, "%d ", uint32(sig))
				ctx.AddClause(u.Faults[0][sig].IsFaulted().Not())
			}

			fmt.Fprintln(a.out)
		}

		fmt.Fprintf(a.out, "\n  Running solver %d: ", a.solverIter)
		a.progress.Update("solver %d | %d partitions | k=%d", a.solverIter, len(a.parts), kFaults)

		solveStart := time.Now()
		res := ctx.Solve(assumptions, cfg.SolverTimeout())
		fmt.Fprintf(a.out, "%s -> ", elapsed(solveStart))

		switch res {
		case sat.Unsat:
			fmt.Fprintln(a.out, " UNSAT")
			return
		case sat.Unknown:
			fmt.Fprintln(a.out, " UNKNOWN")
			log.Warnf("solver timeout after %s, result unknown", cfg.SolverTimeout())

			return
		}

		fmt.Fprintln(a.out, " SAT ")

		faultyInitial, faultyNext := a.reportWitness(ctx, u, diffs, enumerated, kFaults)

		if cfg.DumpVCD {
			path := filepath.Join(cfg.DumpPath,
				fmt.Sprintf("k-partitions-%s-%d.vcd", a.timeStr, a.solverIter))
			if err := dump.WriteVCD(path, a.circuit, u.Golden, u.Faulty, ctx); err != nil {
				log.Errorf("writing %s: %v", path, err)
			} else if err := dump.WriteGTKW(path, faultyInitial, faultyNext, a.parts, a.circuit); err != nil {
				log.Errorf("writing savefile for %s: %v", path, err)
			}
		}

		if !cfg.EnumerateExploitable {
			a.merge(ctx, diffs, faultyNext, kFaults)
			fmt.Fprint(a.out, a.parts.Info(a.circuit, cfg.InterestingNames))
		}
	}
}

// reportWitness reads the satisfying model back: faulted gates per cycle and
// the partitions diverging at cycles 0 and 1.
func (a *Analysis) reportWitness(ctx *sat.Context, u *Unrolling, diffs *[2][]z.Lit,
	enumerated netlist.SigSet, kFaults int) (faultyInitial, faultyNext []int) {
	for cycle, faults := range u.Faults {
		fmt.Fprintf(a.out, "  - Faulty comb gates at clock cycle %d: ", cycle)

		for _, sig := range faults.Signals() {
			if !ctx.Value(faults[sig].IsFaulted()) {
				continue
			}

			if a.cfg.EnumerateExploitable {
				enumerated.Add(sig)
			}

			fmt.Fprintf(a.out, "%d (%s) ", uint32(sig), a.circuit.BitName(sig).Name)
		}

		fmt.Fprintln(a.out)
	}

	report := func(label string, cycleDiffs []z.Lit) []int {
		var indexes []int

		fmt.Fprintf(a.out, "  - Faulty partitions (%s): ", label)

		for idx, diff := range cycleDiffs {
			if !ctx.Value(diff) {
				continue
			}

			indexes = append(indexes, idx)
			fmt.Fprintf(a.out, "%d ( ", idx)

			for _, reg := range a.parts[idx].Sorted() {
				fmt.Fprintf(a.out, "%d ", uint32(reg))
			}

			fmt.Fprint(a.out, ") ")
		}

		fmt.Fprintln(a.out)

		return indexes
	}

	faultyInitial = report("initial", diffs[0])
	faultyNext = report("next", diffs[1])

	return faultyInitial, faultyNext
}

// merge buckets the counterexample's next-state faulty partitions into at
// most kFaults groups, drawing members at random, and replaces the old
// partitions with the merged ones.
func (a *Analysis) merge(ctx *sat.Context, diffs *[2][]z.Lit, faultyNext []int, kFaults int) {
	if len(faultyNext) == 0 {
		return
	}

	mergedSize := float64(len(faultyNext)) / float64(kFaults)
	nextBucket := 0.0

	var buckets [][]int

	remaining := append([]int(nil), faultyNext...)

	for fi := 0; fi < len(faultyNext); fi++ {
		if float64(fi) >= nextBucket {
			buckets = append(buckets, nil)
			nextBucket += mergedSize
		}

		chosen := a.rng.Intn(len(remaining))
		buckets[len(buckets)-1] = append(buckets[len(buckets)-1], remaining[chosen])
		remaining = append(remaining[:chosen], remaining[chosen+1:]...)
	}

	for _, bucket := range buckets {
		merged := netlist.SigSet{}

		var diffs0, diffs1 []z.Lit

		fmt.Fprint(a.out, "  Merge together : ")

		for _, fi := range bucket {
			fmt.Fprintf(a.out, "%d ", fi)

			for reg := range a.parts[fi] {
				merged.Add(reg)
			}

			diffs0 = append(diffs0, diffs[0][fi])
			diffs1 = append(diffs1, diffs[1][fi])
		}

		fmt.Fprintln(a.out)

		a.parts = append(a.parts, merged)
		diffs[0] = append(diffs[0], ctx.Or(diffs0...))
		diffs[1] = append(diffs[1], ctx.Or(diffs1...))
	}

	// faultyNext is ascending, so removal with an offset stays aligned.
	for removed, fi := range faultyNext {
		idx := fi - removed
		a.parts = append(a.parts[:idx], a.parts[idx+1:]...)
		diffs[0] = append(diffs[0][:idx], diffs[0][idx+1:]...)
		diffs[1] = append(diffs[1][:idx], diffs[1][idx+1:]...)
	}

	fmt.Fprintf(a.out, "  Merged: %d, Remaining: %d\n", len(faultyNext), len(a.parts))
}
