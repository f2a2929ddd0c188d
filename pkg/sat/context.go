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

// Package sat wraps the gini solver with the symbolic-circuit vocabulary the
// verification engine speaks: fresh literals, logic gadgets and assumable
// cardinality bounds over one incremental solver instance.
package sat

import (
	"time"

	"github.com/irifrance/gini"
	"github.com/irifrance/gini/logic"
	"github.com/irifrance/gini/z"
)

// Result is the outcome of one solver call.
type Result int

const (
	Unsat   Result = -1
	Unknown Result = 0
	Sat     Result = 1
)

func (r Result) String() string {
	switch r {
	case Unsat:
		return "UNSAT"
	case Sat:
		return "SAT"
	default:
		return "UNKNOWN"
	}
}

// Context owns one incremental solver together with its variable allocator.
// Contexts are explicitly passed around; independent analyses build
// independent contexts.  It implements logic.LitAdder, so gini's sorting
// networks emit their clauses straight into the solver.
type Context struct {
	g     *gini.Gini
	nvars uint32
	t     z.Lit
}

// NewContext returns an empty context with the constant-true literal pinned.
func NewContext() *Context {
	c := &Context{g: gini.New()}
	c.t = c.Lit()
	c.AddClause(c.t)

	return c
}

// Lit mints a fresh variable and returns its positive literal.
func (c *Context) Lit() z.Lit {
	c.nvars++
	return z.Var(c.nvars).Pos()
}

// Add streams one literal of a clause; z.LitNull terminates the clause.
func (c *Context) Add(m z.Lit) {
	c.g.Add(m)
}

// AddClause adds a complete clause.
func (c *Context) AddClause(ms ...z.Lit) {
	for _, m := range ms {
		c.g.Add(m)
	}

	c.g.Add(z.LitNull)
}

// True returns the literal fixed to true.
func (c *Context) True() z.Lit { return c.t }

// False returns the literal fixed to false.
func (c *Context) False() z.Lit { return c.t.Not() }

// Not negates without introducing a variable.
func (c *Context) Not(a z.Lit) z.Lit { return a.Not() }

// And returns a literal equivalent to the conjunction of ms.
func (c *Context) And(ms ...z.Lit) z.Lit {
	switch len(ms) {
	case 0:
		return c.True()
	case 1:
		return ms[0]
	}

	y := c.Lit()

	for _, m := range ms {
		c.AddClause(y.Not(), m)
	}

	for _, m := range ms {
		c.Add(m.Not())
	}

	c.Add(y)
	c.Add(z.LitNull)

	return y
}

// Or returns a literal equivalent to the disjunction of ms.
func (c *Context) Or(ms ...z.Lit) z.Lit {
	switch len(ms) {
	case 0:
		return c.False()
	case 1:
		return ms[0]
	}

	y := c.Lit()

	for _, m := range ms {
		c.AddClause(m.Not(), y)
	}

	for _, m := range ms {
		c.Add(m)
	}

	c.Add(y.Not())
	c.Add(z.LitNull)

	return y
}

// Xor returns a literal equivalent to a^b.
func (c *Context) Xor(a, b z.Lit) z.Lit {
	y := c.Lit()

	c.AddClause(a.Not(), b.Not(), y.Not())
	c.AddClause(a, b, y.Not())
	c.AddClause(a, b.Not(), y)
	c.AddClause(a.Not(), b, y)

	return y
}

// Mux returns a literal equivalent to s ? b : a.
func (c *Context) Mux(a, b, s z.Lit) z.Lit {
	y := c.Lit()

	c.AddClause(s, a.Not(), y)
	c.AddClause(s, a, y.Not())
	c.AddClause(s.Not(), b.Not(), y)
	c.AddClause(s.Not(), b, y.Not())

	return y
}

// Card builds a sorting network over ms whose Leq/Geq outputs are literals
// suitable for assumption.
func (c *Context) Card(ms []z.Lit) *logic.CardSort {
	return logic.NewCardSort(ms, c)
}

// AtMost returns a literal which, assumed, bounds the number of true
// literals in ms from above by b.
func (c *Context) AtMost(ms []z.Lit, b int) z.Lit {
	return c.Card(ms).Leq(b)
}

// AtLeast returns a literal which, assumed, bounds the number of true
// literals in ms from below by b.
func (c *Context) AtLeast(ms []z.Lit, b int) z.Lit {
	return c.Card(ms).Geq(b)
}

// Solve decides the clause set under the given assumptions.  A zero timeout
// solves to completion; otherwise the call gives up after the deadline and
// reports Unknown.
func (c *Context) Solve(assumptions []z.Lit, timeout time.Duration) Result {
	c.g.Assume(assumptions...)

	if timeout <= 0 {
		return Result(c.g.Solve())
	}

	return Result(c.g.GoSolve().Try(timeout))
}

// Value reads a literal from the last satisfying model.
func (c *Context) Value(m z.Lit) bool {
	return c.g.Value(m)
}
