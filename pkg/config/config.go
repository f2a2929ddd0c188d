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

// Package config loads the JSON analysis configuration.  One file holds
// several named configurations; an analysis run selects one by name.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cea-list/k-partitions/pkg/netlist"
)

// Procedure selects which verification procedures to run.
type Procedure string

const (
	ProcedureBoth Procedure = "BOTH"
	Procedure1    Procedure = "P1"
	Procedure2    Procedure = "P2"
)

// FaultGates restricts where combinational faults may land.
type FaultGates string

const (
	// GatesAll allows faults on combinational gates and registers.
	GatesAll FaultGates = "ALL"
	// GatesSeq restricts faults to sequential state.
	GatesSeq FaultGates = "SEQ"
)

// BitPattern is a bus-level bit vector decoded from a JSON array of 0/1.
type BitPattern []bool

func (p *BitPattern) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	bits := make([]bool, len(raw))

	for i, v := range raw {
		if v != 0 && v != 1 {
			return fmt.Errorf("bit pattern value %d is not 0 or 1", v)
		}

		bits[i] = v == 1
	}

	*p = bits

	return nil
}

// Config is one named analysis configuration.
type Config struct {
	DesignPath string `json:"design_path"`
	DesignName string `json:"design_name"`

	Subcircuit              bool   `json:"subcircuit"`
	SubcircuitInterfacePath string `json:"subcircuit_interface_path"`
	SubcircuitInterfaceName string `json:"subcircuit_interface_name"`

	K           int  `json:"k"`
	IncreasingK bool `json:"increasing_k"`
	Delay       int  `json:"delay"`

	AlertList     map[string]BitPattern `json:"alert_list"`
	InvariantList map[string]BitPattern `json:"invariant_list"`

	InitialPartitionPath string `json:"initial_partition_path"`

	FIncludedPrefix  []string           `json:"f_included_prefix"`
	FExcludedPrefix  []string           `json:"f_excluded_prefix"`
	FExcludedSignals []netlist.SignalID `json:"f_excluded_signals"`
	ExcludeInputs    bool               `json:"exclude_inputs"`
	FGates           FaultGates         `json:"f_gates"`
	FEffect          string             `json:"f_effect"`

	Procedure            Procedure `json:"procedure"`
	OptimAtLeast2        bool      `json:"optim_atleast2"`
	EnumerateExploitable bool      `json:"enumerate_exploitable"`
	SolverTimeoutS       int       `json:"solver_timeout_s"`

	DumpPath         string   `json:"dump_path"`
	DumpVCD          bool     `json:"dump_vcd"`
	DumpPartitioning bool     `json:"dump_partitioning"`
	InterestingNames []string `json:"interesting_names"`
}

// requiredKeys must all be present in a configuration object.
var requiredKeys = []string{"design_path", "design_name", "k", "delay", "dump_path", "alert_list"}

// Load reads the configuration named name from the JSON file at path.
func Load(path, name string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file map[string]json.RawMessage
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing configuration file %s: %w", path, err)
	}

	raw, ok := file[name]
	if !ok {
		return nil, fmt.Errorf("missing configuration %q in file %s", name, path)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("parsing configuration %q: %w", name, err)
	}

	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("missing parameter %q in configuration %q", key, name)
		}
	}

	cfg := &Config{
		IncreasingK:      true,
		FGates:           GatesAll,
		Procedure:        ProcedureBoth,
		OptimAtLeast2:    true,
		DumpPartitioning: true,
	}

	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration %q: %w", name, err)
	}

	if err := cfg.validate(name); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate(name string) error {
	switch c.Procedure {
	case ProcedureBoth, Procedure1, Procedure2:
	default:
		return fmt.Errorf("configuration %q: illegal procedure %q", name, c.Procedure)
	}

	switch c.FGates {
	case GatesAll, GatesSeq:
	default:
		return fmt.Errorf("configuration %q: illegal f_gates %q", name, c.FGates)
	}

	if c.K < 1 {
		return fmt.Errorf("configuration %q: k must be at least 1", name)
	}

	if c.Delay < 0 {
		return fmt.Errorf("configuration %q: delay must not be negative", name)
	}

	if c.SolverTimeoutS < 0 {
		return fmt.Errorf("configuration %q: solver_timeout_s must not be negative", name)
	}

	if c.Subcircuit && (c.SubcircuitInterfacePath == "" || c.SubcircuitInterfaceName == "") {
		return fmt.Errorf("configuration %q: subcircuit requires subcircuit_interface_path and subcircuit_interface_name", name)
	}

	return nil
}

// SolverTimeout is the per-call solver budget; zero disables the timeout.
func (c *Config) SolverTimeout() time.Duration {
	return time.Duration(c.SolverTimeoutS) * time.Second
}

// Invariants converts the invariant list to plain bit vectors.
func (c *Config) Invariants() map[string][]bool { return patterns(c.InvariantList) }

// Alerts converts the alert list to plain bit vectors.
func (c *Config) Alerts() map[string][]bool { return patterns(c.AlertList) }

func patterns(m map[string]BitPattern) map[string][]bool {
	out := make(map[string][]bool, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// PrepareDumpDir recreates the dump directory and copies the effective
// configuration file into it for later reference.
func (c *Config) PrepareDumpDir(configPath string) error {
	if err := os.RemoveAll(c.DumpPath); err != nil {
		return err
	}

	if err := os.MkdirAll(c.DumpPath, 0o755); err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(c.DumpPath, "config_file"), data, 0o644)
}
