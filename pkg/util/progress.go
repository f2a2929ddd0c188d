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
package util

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Progress rewrites a single status line on stderr while a long-running
// loop works.  It stays silent when stderr is not a terminal, so logs and
// redirected output are unaffected.
type Progress struct {
	fd      int
	enabled bool
	dirty   bool
}

// NewProgress probes stderr once.
func NewProgress() *Progress {
	fd := int(os.Stderr.Fd())
	return &Progress{fd: fd, enabled: term.IsTerminal(fd)}
}

// Update replaces the status line, clipped to the terminal width.
func (p *Progress) Update(format string, args ...any) {
	if !p.enabled {
		return
	}

	line := fmt.Sprintf(format, args...)

	if width, _, err := term.GetSize(p.fd); err == nil && len(line) > width-1 && width > 1 {
		line = line[:width-1]
	}

	fmt.Fprintf(os.Stderr, "\r\x1b[2K%s", line)
	p.dirty = true
}

// Clear erases the status line before normal output resumes.
func (p *Progress) Clear() {
	if !p.enabled || !p.dirty {
		return
	}

	fmt.Fprint(os.Stderr, "\r\x1b[2K")
	p.dirty = false
}
