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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cea-list/k-partitions/pkg/dump"
	"github.com/cea-list/k-partitions/pkg/netlist"
)

// Partitions groups the registers of a circuit into disjoint protection
// domains.  Index order is the reporting order.
type Partitions []netlist.SigSet

// SingletonPartitions starts from the finest partitioning: one register per
// partition, in ascending signal order.
func SingletonPartitions(c *netlist.Circuit) Partitions {
	regs := c.Regs().Sorted()

	ps := make(Partitions, 0, len(regs))
	for _, sig := range regs {
		ps = append(ps, netlist.SigSet{sig: {}})
	}

	return ps
}

// LoadPartitions reads a partitioning from a JSON object keyed by partition
// index.  Every member must be a register of the circuit and every register
// must be covered exactly once.
func LoadPartitions(c *netlist.Circuit, path string) (Partitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string][]netlist.SignalID
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing partitioning %s: %w", path, err)
	}

	keys := make([]int, 0, len(raw))

	for k := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("illegal partition index %q", k)
		}

		keys = append(keys, idx)
	}

	sort.Ints(keys)

	ps := make(Partitions, 0, len(keys))
	visited := netlist.SigSet{}

	for _, idx := range keys {
		members := raw[strconv.Itoa(idx)]
		if len(members) == 0 {
			return nil, fmt.Errorf("partition %d is empty", idx)
		}

		part := netlist.SigSet{}

		for _, sig := range members {
			if !c.Regs().Has(sig) {
				return nil, fmt.Errorf("partition %d contains non-register signal %v", idx, sig)
			}

			if visited.Has(sig) {
				return nil, fmt.Errorf("register %v appears more than once in the partitioning", sig)
			}

			part.Add(sig)
			visited.Add(sig)
		}

		ps = append(ps, part)
	}

	if len(visited) != len(c.Regs()) {
		return nil, fmt.Errorf("partitioning covers %d of %d registers", len(visited), len(c.Regs()))
	}

	return ps, nil
}

// Save writes the partitioning as a JSON object keyed by partition index.
func (ps Partitions) Save(path string) error {
	return dump.WritePartitioning(path, ps)
}

// Info renders the partition summary block: partition count, the ten largest
// partitions and, when interesting names are given, how often each name
// occurs among the members of the four largest.
func (ps Partitions) Info(c *netlist.Circuit, interestingNames []string) string {
	var sb strings.Builder

	sb.WriteString("******* Partition info ********\n")
	fmt.Fprintf(&sb, "Number of partitions: %d\n", len(ps))
	sb.WriteString("Largest partitions: ")

	large := make(map[int]bool, 10)

	var largeIdxs [10]int

	for i := 0; i < len(ps) && i < 10; i++ {
		maxIdx := 0
		for large[maxIdx] {
			maxIdx++
		}

		for idx := 1; idx < len(ps); idx++ {
			if !large[idx] && len(ps[idx]) > len(ps[maxIdx]) {
				maxIdx = idx
			}
		}

		large[maxIdx] = true
		largeIdxs[i] = maxIdx
		fmt.Fprintf(&sb, "(%d: %d) ", maxIdx, len(ps[maxIdx]))
	}

	sb.WriteString("\n")

	if len(interestingNames) > 0 {
		for i := 0; i < 4 && i < len(ps); i++ {
			fmt.Fprintf(&sb, "Contents of %d: ", largeIdxs[i])

			for _, name := range interestingNames {
				found := 0

				for sig := range ps[largeIdxs[i]] {
					if strings.Contains(c.BitName(sig).Display(), name) {
						found++
					}
				}

				fmt.Fprintf(&sb, "(%s: %d) ", name, found)
			}

			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// MemberNames lists a partition's registers as display names in ascending
// signal order.
func (ps Partitions) MemberNames(c *netlist.Circuit, idx int) string {
	var sb strings.Builder

	for _, sig := range ps[idx].Sorted() {
		fmt.Fprintf(&sb, "%s ", c.BitName(sig).Display())
	}

	return strings.TrimSpace(sb.String())
}
