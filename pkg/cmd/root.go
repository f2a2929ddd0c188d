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
package cmd

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cea-list/k-partitions/pkg/config"
	"github.com/cea-list/k-partitions/pkg/engine"
	"github.com/cea-list/k-partitions/pkg/netlist"
	"github.com/cea-list/k-partitions/pkg/util"
)

// rootCmd verifies a k-fault-resistant partitioning of a gate-level design.
var rootCmd = &cobra.Command{
	Use:   "k-partitions [config_name]",
	Short: "Verify k-fault-resistant partitionings of gate-level netlists.",
	Long: `Verify k-fault-resistant partitionings of gate-level netlists.
	The analysis reads a Yosys JSON netlist, unrolls a golden and a faulty
	execution into a SAT instance and checks that no combination of at most
	k faults silently corrupts more partitions than the budget allows.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if getFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}

		configName := "default"
		if len(args) == 1 {
			configName = args[0]
		}

		if err := runAnalysis(getString(cmd, "config-file"), configName); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
	},
}

// Execute runs the root command.  This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String("config-file", filepath.Join("config", "config_file.json"),
		"configuration file holding the named analyses")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
}

func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		log.Fatalf("reading flag %q: %v", flag, err)
	}

	return r
}

func getString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		log.Fatalf("reading flag %q: %v", flag, err)
	}

	return r
}

func runAnalysis(configPath, configName string) error {
	cfg, err := config.Load(configPath, configName)
	if err != nil {
		return err
	}

	if err := cfg.PrepareDumpDir(configPath); err != nil {
		return err
	}

	report, err := os.Create(filepath.Join(cfg.DumpPath, "log"))
	if err != nil {
		return err
	}
	defer report.Close()

	stats := util.NewPerfStats()

	circuit, err := netlist.LoadCircuit(cfg.DesignPath, cfg.DesignName)
	if err != nil {
		return err
	}

	if cfg.Subcircuit {
		circuit, err = netlist.ExtractSubcircuit(circuit,
			cfg.SubcircuitInterfacePath, cfg.SubcircuitInterfaceName)
		if err != nil {
			return err
		}
	}

	circuit.BuildAdjacency()
	stats.Log("Loading circuit")

	analysis, err := engine.NewAnalysis(cfg, circuit, report)
	if err != nil {
		return err
	}

	stats = util.NewPerfStats()
	defer stats.Log("Verification")

	return analysis.Run()
}
