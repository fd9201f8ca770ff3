// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package planopts collects the small set of options recognized by the
// planning pipeline into a single immutable value, passed
// explicitly through Resolve, RewriteSubqueries and ToPhysical rather than
// held as process-wide globals.
package planopts

// Options is the complete set of recognized planner options. Zero value is
// not the default configuration; use Default().
type Options struct {
	// EnableSubqueryToMarkjoin gates the §4.4 rewrite. When false,
	// SubqueryExpr nodes remain in filters/output and the executor
	// evaluates them per outer row.
	EnableSubqueryToMarkjoin bool

	// EnableHashJoin, when false, forces every generic Join to translate
	// to a PhysicNLJoin regardless of predicate shape.
	EnableHashJoin bool

	// EnableNLJoin, when false, makes it a planner error (ErrJoinStrategy)
	// to translate a join whose predicate is not hashable.
	EnableNLJoin bool

	// UseMemo names the memo optimizer as the translation path.
	// The core does not implement search, and no pass in this module reads
	// the flag: Resolve and ToPhysical follow a MemoRef to its group's
	// canonical member whether or not it is set.
	UseMemo bool

	// ProfilingEnabled wraps each physical node in PhysicProfiling before
	// connecting it to its parent.
	ProfilingEnabled bool
}

// Default returns the documented default configuration.
func Default() Options {
	return Options{
		EnableSubqueryToMarkjoin: true,
		EnableHashJoin:           true,
		EnableNLJoin:             true,
		UseMemo:                  false,
		ProfilingEnabled:         false,
	}
}
