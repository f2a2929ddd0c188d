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
	"strings"

	"github.com/cea-list/k-partitions/pkg/netlist"
)

// FaultScope selects which signals an attacker may corrupt.
type FaultScope struct {
	// IncludedPrefixes restricts faults to nets whose name starts with one of
	// these prefixes; empty means every signal.
	IncludedPrefixes []string
	// ExcludedPrefixes removes nets by name prefix.
	ExcludedPrefixes []string
	// ExcludedSignals removes individual signals.
	ExcludedSignals []netlist.SignalID
	// ExcludeInputs removes all primary inputs.
	ExcludeInputs bool
}

// FaultableSignals resolves the scope against a circuit: the union of the
// included nets minus the union of the exclusions.
func FaultableSignals(c *netlist.Circuit, scope FaultScope) netlist.SigSet {
	excluded := netlist.SigSet{}

	for _, prefix := range scope.ExcludedPrefixes {
		for name, sigs := range c.Nets() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}

			for _, sig := range sigs {
				excluded.Add(sig)
			}
		}
	}

	if scope.ExcludeInputs {
		for sig := range c.Ins() {
			excluded.Add(sig)
		}
	}

	for _, sig := range scope.ExcludedSignals {
		excluded.Add(sig)
	}

	included := netlist.SigSet{}

	for _, prefix := range scope.IncludedPrefixes {
		for name, sigs := range c.Nets() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}

			for _, sig := range sigs {
				included.Add(sig)
			}
		}
	}

	if len(scope.IncludedPrefixes) == 0 {
		for sig := range c.Sigs() {
			included.Add(sig)
		}
	}

	faultable := netlist.SigSet{}

	for sig := range included {
		if !excluded.Has(sig) {
			faultable.Add(sig)
		}
	}

	return faultable
}

// AlertSignals collects the bits of the named alert buses.
func AlertSignals(c *netlist.Circuit, alerts map[string][]bool) netlist.SigSet {
	sigs := netlist.SigSet{}

	for name := range alerts {
		for _, sig := range c.Nets()[name] {
			sigs.Add(sig)
		}
	}

	return sigs
}
