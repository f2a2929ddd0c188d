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
	"encoding/json"
	"io"
	"strconv"

	"github.com/cea-list/k-partitions/pkg/netlist"
)

// WritePartitioning serialises a register partitioning as a JSON object
// keyed by partition index.
func WritePartitioning(path string, parts []netlist.SigSet) error {
	raw := make(map[string][]netlist.SignalID, len(parts))
	for idx, part := range parts {
		raw[strconv.Itoa(idx)] = part.Sorted()
	}

	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(raw)
	})
}
