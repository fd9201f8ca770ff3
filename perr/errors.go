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

// Package perr declares the error taxonomy of the planning pipeline:
// SemanticAnalyze, InvalidProgram, NotImplemented, and the
// SemanticExecution marker the executor boundary raises.
//
// Each distinct condition gets its own package-level *errors.Kind so
// callers can match on cause with errors.Is-style Kind.Is checks instead of
// string comparison.
package perr

import "gopkg.in/src-d/go-errors.v1"

// SemanticAnalyze: a name cannot be bound, is ambiguous, or a column
// appears in aggregate output without being grouped.
var (
	ErrColumnNotFound      = errors.NewKind("column %q could not be resolved against any table in scope")
	ErrAmbiguousColumn     = errors.NewKind("column %q is ambiguous between table references %v")
	ErrNonAggregatedColumn = errors.NewKind("column %s must appear in the GROUP BY clause or be used in an aggregate function")
	ErrSubqueryArity       = errors.NewKind("subquery returns %d columns, expected %d")
)

// InvalidProgram: ordinal resolution could not place a required expression
// on either side of a join. This indicates a binder/planner inconsistency,
// never a user error.
var ErrCannotPlaceExpr = errors.NewKind("expression %s references table refs on neither side of join")

// NotImplemented: a logical node kind has no physical mapping configured.
var (
	ErrNoPhysicalMapping = errors.NewKind("no physical translation configured for logical node %T")
	ErrJoinStrategy      = errors.NewKind("join predicate is not hashable and enable_nljoin is false")
)

// SemanticExecution surfaces only at execution time, across the
// codegen/executor boundary this core does not implement; the Kind exists
// so physical nodes can construct it without importing an executor package.
var ErrSemanticExecution = errors.NewKind("execution error: %s")
