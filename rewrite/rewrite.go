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

// Package rewrite implements the subquery-to-join rewriter:
// EXISTS/IN subqueries in a filter's boolean position become a MarkJoin
// consuming the correlated predicate, and scalar subqueries (wherever they
// sit in a filter or output list) become a SingleJoin. The rewrite runs
// before ordinal resolution: it
// leaves every newly introduced reference (the synthetic #marker column,
// the pulled-up scalar value) with ordinal -1, to be fixed up by the
// existing generic machinery in package resolve exactly like any other
// column reference — joinInputVector already knows how to expose a marker
// column, and routeExpr already partitions an arbitrary expression to the
// join side that owns its table references, so the rewriter itself never
// needs to compute an ordinal.
package rewrite

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/perr"
	"github.com/arzuschen/qpmodel/planopts"
)

// booleanSubqueryKind tags which of the two filter-position forms a
// Function-wrapped subquery encodes: our closed Expr family
// has no dedicated EXISTS/IN case, so the parser boundary is
// expected to emit these as expr.Function{Name: "EXISTS"|"IN"} the way a
// generic scalar function call would be represented, and the rewriter
// pattern-matches on the name.
type booleanSubqueryKind int

const (
	existsKind booleanSubqueryKind = iota
	inKind
)

// RewriteSubqueries rewrites EXISTS/IN/scalar subqueries into joins, gated by
// opts.EnableSubqueryToMarkjoin. It is a pure bottom-up tree rewrite:
// nothing here mutates node in place, so callers may safely call it twice.
func RewriteSubqueries(node logical.Node, opts planopts.Options) (logical.Node, error) {
	if !opts.EnableSubqueryToMarkjoin {
		return node, nil
	}
	return logical.TransformUp(node, func(n logical.Node) (logical.Node, error) {
		return rewriteNode(n, opts)
	})
}

func rewriteNode(n logical.Node, opts planopts.Options) (logical.Node, error) {
	if f, ok := n.(*logical.Filter); ok && f.FilterExpr != nil {
		rewritten, changed, err := rewriteFilterBooleanSubqueries(f, opts)
		if err != nil {
			return nil, err
		}
		if changed {
			n = rewritten
		}
	}
	return liftScalarSubqueries(n, opts)
}

// rewriteFilterBooleanSubqueries splits f's predicate into its top-level AND
// conjuncts, lifts every EXISTS/IN-shaped conjunct into a MarkJoin chained
// above f.Child, and replaces the conjunct itself with a reference to the
// join's #marker column, leaving every other conjunct untouched.
func rewriteFilterBooleanSubqueries(f *logical.Filter, opts planopts.Options) (logical.Node, bool, error) {
	conjuncts := splitConjuncts(f.FilterExpr)
	child := f.Child
	residual := make([]expr.Expr, 0, len(conjuncts))
	changed := false

	for _, c := range conjuncts {
		kind, sq, lhs := detectBooleanSubquery(c)
		if sq == nil {
			residual = append(residual, c)
			continue
		}
		rightPlanNode, ok := sq.Plan.(logical.Node)
		if !ok {
			residual = append(residual, c)
			continue
		}
		rightPlanNode, err := RewriteSubqueries(rightPlanNode, opts)
		if err != nil {
			return nil, false, err
		}
		rightPlan, joinPred, err := decorrelate(rightPlanNode)
		if err != nil {
			return nil, false, err
		}

		if kind == inKind {
			if len(rightPlan.Output()) != 1 {
				return nil, false, perr.ErrSubqueryArity.New(len(rightPlan.Output()), 1)
			}
			eq := expr.NewBinary(expr.OpEq, clearOuterRefs(lhs), expr.Clone(rightPlan.Output()[0]))
			joinPred = andExprs(joinPred, eq)
		}

		child = logical.NewJoin(logical.MarkJoin, child, rightPlan, joinPred)
		residual = append(residual, &expr.ColRef{Alias: logical.MarkerColumn, Ordinal: -1})
		changed = true

		logrus.WithFields(logrus.Fields{"joinType": logical.MarkJoin.String()}).
			Debug("rewrite: subquery lifted to mark join")
	}

	if !changed {
		return f, false, nil
	}
	return logical.NewFilter(joinConjuncts(residual), child), true, nil
}

// liftScalarSubqueries finds the first scalar subquery sitting (anywhere,
// including nested inside a larger expression) in n's filter or output and
// pulls it up into a SingleJoin whose left child is n itself (any further
// scalar subqueries of n becoming SingleJoins stacked below it), with the
// subquery's own occurrence replaced by the raw expression its inner plan
// projects (its pre-bound, arity-checked single output column). Everything
// downstream resolves that raw expression against the new join exactly as
// it would any other expression that happens to reference the right side's
// tables — no ordinal bookkeeping is needed here.
func liftScalarSubqueries(n logical.Node, opts planopts.Options) (logical.Node, error) {
	sq := firstRawSubquery(n.Filter())
	if sq == nil {
		for _, o := range n.Output() {
			if found := firstRawSubquery(o); found != nil {
				sq = found
				break
			}
		}
	}
	if sq == nil {
		return n, nil
	}

	rightPlanNode, ok := sq.Plan.(logical.Node)
	if !ok {
		return n, nil
	}
	rightPlanNode, err := RewriteSubqueries(rightPlanNode, opts)
	if err != nil {
		return nil, err
	}
	rightPlan, joinPred, err := decorrelate(rightPlanNode)
	if err != nil {
		return nil, err
	}
	if len(rightPlan.Output()) != 1 {
		return nil, perr.ErrSubqueryArity.New(len(rightPlan.Output()), 1)
	}
	scalarValue := rightPlan.Output()[0]

	left := n.Clone().(logical.Node)
	if left.Filter() != nil {
		left.SetFilter(expr.SearchReplace(left.Filter(), sq, scalarValue))
	}
	if out := left.Output(); out != nil {
		newOut := make([]expr.Expr, len(out))
		for i, o := range out {
			newOut[i] = expr.SearchReplace(o, sq, scalarValue)
		}
		left.SetOutput(newOut)
	}
	// any further scalar subquery of n is lifted the same way, below this one
	left, err = liftScalarSubqueries(left, opts)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"joinType": logical.SingleJoin.String()}).
		Debug("rewrite: scalar subquery lifted to single join")
	return logical.NewJoin(logical.SingleJoin, left, rightPlan, joinPred), nil
}

func detectBooleanSubquery(e expr.Expr) (booleanSubqueryKind, *expr.Subquery, expr.Expr) {
	fn, ok := e.(*expr.Function)
	if !ok {
		return 0, nil, nil
	}
	switch fn.Name {
	case "EXISTS":
		if len(fn.Args) == 1 {
			if sq, ok := fn.Args[0].(*expr.Subquery); ok {
				return existsKind, sq, nil
			}
		}
	case "IN":
		if len(fn.Args) == 2 {
			if sq, ok := fn.Args[1].(*expr.Subquery); ok {
				return inKind, sq, fn.Args[0]
			}
		}
	}
	return 0, nil, nil
}

// firstRawSubquery finds the first expr.Subquery reachable from e that is
// not already consumed by an EXISTS/IN wrapper (those are handled earlier,
// at the filter-boolean level, by rewriteFilterBooleanSubqueries).
func firstRawSubquery(e expr.Expr) *expr.Subquery {
	if e == nil {
		return nil
	}
	if sq, ok := e.(*expr.Subquery); ok {
		return sq
	}
	if fn, ok := e.(*expr.Function); ok && (fn.Name == "EXISTS" || fn.Name == "IN") {
		return nil
	}
	for _, c := range e.Children() {
		if found := firstRawSubquery(c); found != nil {
			return found
		}
	}
	return nil
}

// decorrelate walks plan looking for Filter nodes whose predicate contains
// outer-referencing conjuncts, strips those conjuncts out (turning their
// outer refs into ordinary refs, since after the rewrite they are columns
// of the join's left side rather than an enclosing scope) and returns the
// stripped plan together with the conjunction of everything it removed, to
// be used as the new join's predicate. A subquery with no correlated
// predicate anywhere (already uncorrelated) returns a nil predicate, which
// callers treat as an unconditional join.
func decorrelate(root logical.Node) (logical.Node, expr.Expr, error) {
	var joinPred expr.Expr
	newRoot, err := logical.TransformUp(root, func(n logical.Node) (logical.Node, error) {
		f, ok := n.(*logical.Filter)
		if !ok || f.FilterExpr == nil {
			return n, nil
		}
		conjuncts := splitConjuncts(f.FilterExpr)
		var corr, resid []expr.Expr
		for _, c := range conjuncts {
			if hasOuterRef(c) {
				corr = append(corr, clearOuterRefs(c))
			} else {
				resid = append(resid, c)
			}
		}
		if len(corr) == 0 {
			return n, nil
		}
		for _, c := range corr {
			joinPred = andExprs(joinPred, c)
		}
		if len(resid) == 0 {
			return f.Child, nil
		}
		return logical.NewFilter(joinConjuncts(resid), f.Child), nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rewrite: decorrelate: %w", err)
	}
	return newRoot, joinPred, nil
}

func splitConjuncts(e expr.Expr) []expr.Expr {
	if e == nil {
		return nil
	}
	if b, ok := e.(*expr.Binary); ok && b.Op == expr.OpAnd {
		return append(splitConjuncts(b.Left), splitConjuncts(b.Right)...)
	}
	return []expr.Expr{e}
}

func joinConjuncts(list []expr.Expr) expr.Expr {
	var out expr.Expr
	for _, e := range list {
		out = andExprs(out, e)
	}
	return out
}

func andExprs(a, b expr.Expr) expr.Expr {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return expr.NewBinary(expr.OpAnd, a, b)
}

func hasOuterRef(e expr.Expr) bool {
	return expr.VisitEachExists(e, func(x expr.Expr) bool {
		cr, ok := x.(*expr.ColRef)
		return ok && cr.OuterRef
	}, nil)
}

// clearOuterRefs clones e, demoting every outer ColRef to an ordinary one:
// once its owning conjunct becomes a join predicate, the column is no
// longer bound against an enclosing scope but against the join's own left
// side.
func clearOuterRefs(e expr.Expr) expr.Expr {
	if e == nil {
		return nil
	}
	if cr, ok := e.(*expr.ColRef); ok {
		cp := *cr
		cp.OuterRef = false
		return &cp
	}
	children := e.Children()
	if len(children) == 0 {
		return expr.Clone(e)
	}
	newChildren := make([]expr.Expr, len(children))
	for i, c := range children {
		newChildren[i] = clearOuterRefs(c)
	}
	out, err := e.WithChildren(newChildren...)
	if err != nil {
		return expr.Clone(e)
	}
	return out
}
