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

// Package planprint implements deterministic plan rendering, used by
// regression fixtures that compare output byte-for-byte.
// Each node renders its indentation, an arrow prefix (skipped at the
// root), its kind name and inline details, an optional profile annotation,
// an "Output:" line and node-specific detail lines, then its children.
// physical.Profiling is transparent: it renders as whatever it wraps.
package planprint

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/physical"
)

const indentUnit = "  "

// Print renders node to w. It is a pure function of node: no
// global or per-call state survives between invocations, so repeated calls
// on an unchanged tree are byte-equal.
func Print(w io.Writer, node physical.Node) error {
	return printNode(w, node, 0, true)
}

// Sprint renders node to a string, for tests comparing fixtures inline.
func Sprint(node physical.Node) string {
	var sb strings.Builder
	_ = printNode(&sb, node, 0, true)
	return sb.String()
}

func printNode(w io.Writer, node physical.Node, depth int, root bool) error {
	profile := ""
	if p := node.Profile(); p != nil {
		profile = fmt.Sprintf(" (rows=%d)", p.NRows)
	}
	node = physical.Unwrap(node)

	prefix := strings.Repeat(indentUnit, depth)
	arrow := ""
	if !root {
		arrow = "-> "
	}
	if _, err := fmt.Fprintf(w, "%s%s%s%s%s\n", prefix, arrow, node.NodeKind(), inlineDetails(node), profile); err != nil {
		return err
	}

	detailPrefix := prefix + indentUnit
	if _, err := fmt.Fprintf(w, "%sOutput: %s\n", detailPrefix, renderExprList(node.Output())); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%sCost: %.2f  Cardinality: %.2f\n", detailPrefix, node.Cost(), node.Cardinality()); err != nil {
		return err
	}
	for _, line := range extraDetails(node) {
		if _, err := fmt.Fprintf(w, "%s%s\n", detailPrefix, line); err != nil {
			return err
		}
	}
	for _, sq := range node.SubqueryPlans() {
		if _, err := fmt.Fprintf(w, "%sSubquery:\n", detailPrefix); err != nil {
			return err
		}
		if err := printNode(w, sq, depth+2, false); err != nil {
			return err
		}
	}

	for _, c := range node.Children() {
		if err := printNode(w, c, depth+1, false); err != nil {
			return err
		}
	}
	return nil
}

// inlineDetails renders the short parenthesized detail that follows a
// node's kind name: the table/file name for a scan, the join type for a
// join, nothing for most other kinds (their detail lines carry the rest).
func inlineDetails(node physical.Node) string {
	switch n := node.(type) {
	case *physical.ScanTable:
		return fmt.Sprintf("(%s)", n.Logical().(*logical.Scan).Table)
	case *physical.ScanFile:
		return fmt.Sprintf("(%s)", n.Logical().(*logical.Scan).Table)
	case *physical.HashJoin:
		return fmt.Sprintf("(%s)", n.Logical().(*logical.Join).JoinType)
	case *physical.NLJoin:
		return fmt.Sprintf("(%s)", n.Logical().(*logical.Join).JoinType)
	case *physical.FromQuery:
		return fmt.Sprintf("(%s)", n.Logical().(*logical.FromQuery).SubqueryRef.AliasName)
	case *physical.Insert:
		return fmt.Sprintf("(%s)", n.Logical().(*logical.Insert).TargetTable)
	case *physical.Limit:
		return fmt.Sprintf("(%d)", n.Logical().(*logical.Limit).N)
	case *physical.Offset:
		return fmt.Sprintf("(%d)", n.Logical().(*logical.Offset).N)
	default:
		return ""
	}
}

// extraDetails renders the node-specific lines placed after
// Output: filter predicate, group-by/aggregates, order-by.
func extraDetails(node physical.Node) []string {
	var lines []string
	logic := node.Logical()
	if logic == nil {
		return nil
	}
	if f := logic.Filter(); f != nil {
		lines = append(lines, fmt.Sprintf("Filter: %s", renderExpr(f)))
	}
	switch n := logic.(type) {
	case *logical.Aggregate:
		if len(n.GroupKeys) > 0 {
			lines = append(lines, fmt.Sprintf("Group by: %s", renderExprList(n.GroupKeys)))
		}
		if len(n.AggCore) > 0 {
			parts := make([]string, len(n.AggCore))
			for i, af := range n.AggCore {
				parts[i] = renderExpr(af)
			}
			lines = append(lines, fmt.Sprintf("Aggregates: %s", strings.Join(parts, ", ")))
		}
		if n.Having != nil {
			lines = append(lines, fmt.Sprintf("Having: %s", renderExpr(n.Having)))
		}
	case *logical.Order:
		parts := make([]string, len(n.OrderExprs))
		for i, oe := range n.OrderExprs {
			dir := "ASC"
			if i < len(n.Descending) && n.Descending[i] {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", renderExpr(oe), dir)
		}
		lines = append(lines, fmt.Sprintf("Order by: %s", strings.Join(parts, ", ")))
	}
	return lines
}

func renderExprList(list []expr.Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = renderExpr(e)
	}
	return strings.Join(parts, ", ")
}

// renderExpr is expr.Expr.String() with one override: a Literal's value is
// rendered through spf13/cast's loose value-to-string coercion rather than
// %v/%q, so the printed form is stable regardless of the literal's
// concrete Go numeric type, so the rendering is bit-exact regardless.
func renderExpr(e expr.Expr) string {
	if lit, ok := e.(*expr.Literal); ok {
		if lit.Value == nil {
			return "NULL"
		}
		s, err := cast.ToStringE(lit.Value)
		if err != nil {
			return e.String()
		}
		if lit.Type == expr.TypeString {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return e.String()
}
