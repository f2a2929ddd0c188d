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
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/cea-list/k-partitions/pkg/config"
	"github.com/cea-list/k-partitions/pkg/netlist"
	"github.com/cea-list/k-partitions/pkg/util"
)

// maxIter bounds the total number of solver calls across both procedures.
const maxIter = 2000

// Analysis drives the two verification procedures over one circuit.  The
// partitioning is shared: Procedure 2 checks the partitions as Procedure 1
// left them.
type Analysis struct {
	cfg     *config.Config
	circuit *netlist.Circuit
	out     io.Writer

	parts     Partitions
	alerts    netlist.SigSet
	faultable netlist.SigSet

	// Merge buckets are drawn from a fixed seed so runs are reproducible.
	rng        *rand.Rand
	timeStr    string
	solverIter int
	progress   *util.Progress
}

// NewAnalysis prepares the shared analysis state: partitioning, alert and
// faultable signal sets.  The circuit must already carry its adjacency
// lists.
func NewAnalysis(cfg *config.Config, c *netlist.Circuit, out io.Writer) (*Analysis, error) {
	a := &Analysis{
		cfg:      cfg,
		circuit:  c,
		out:      out,
		alerts:   AlertSignals(c, cfg.Alerts()),
		rng:      rand.New(rand.NewSource(42)),
		timeStr:  time.Now().Format("06.01.02@15:04:05"),
		progress: util.NewProgress(),
	}

	a.faultable = FaultableSignals(c, FaultScope{
		IncludedPrefixes: cfg.FIncludedPrefix,
		ExcludedPrefixes: cfg.FExcludedPrefix,
		ExcludedSignals:  cfg.FExcludedSignals,
		ExcludeInputs:    cfg.ExcludeInputs,
	})

	if cfg.InitialPartitionPath == "" {
		a.parts = SingletonPartitions(c)
	} else {
		parts, err := LoadPartitions(c, cfg.InitialPartitionPath)
		if err != nil {
			return nil, err
		}

		a.parts = parts
	}

	fmt.Fprint(out, c.Stats())
	fmt.Fprint(out, a.parts.Info(c, cfg.InterestingNames))

	return a, nil
}

// Partitions is the current partitioning, as refined by Procedure 1.
func (a *Analysis) Partitions() Partitions { return a.parts }

// Run executes the configured procedures in order.
func (a *Analysis) Run() error {
	if a.cfg.Procedure != config.Procedure2 {
		if err := a.RunProcedure1(); err != nil {
			return err
		}
	}

	if a.cfg.Procedure != config.Procedure1 {
		if err := a.RunProcedure2(); err != nil {
			return err
		}
	}

	a.progress.Clear()

	return nil
}

func (a *Analysis) banner(title string) {
	stars := strings.Repeat("*", 80)
	fmt.Fprintf(a.out, "\n%s\n%s%s\n%s\n", stars, strings.Repeat(" ", 20), title, stars)
}

func (a *Analysis) rule() {
	fmt.Fprintf(a.out, "%s\n", strings.Repeat("-", 80))
}

func elapsed(since time.Time) string {
	ms := time.Since(since).Milliseconds()
	return fmt.Sprintf("%d.%03d s", ms/1000, ms%1000)
}
