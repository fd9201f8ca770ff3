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

// Package resolve implements ordinal resolution: the top-down
// traversal that, given a parent's required output expressions, pushes
// requests to children and rewrites every ColRef in a node's filter/output
// so it carries its position in the producing child's output vector.
package resolve

import (
	"github.com/sirupsen/logrus"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/perr"
	"github.com/arzuschen/qpmodel/planopts"
)

// Resolve rewrites node (and its subtree) so every ColRef carries a
// concrete ordinal. reqOutput is the expression list the
// parent wants from node; removeRedundant, when true, deduplicates node's
// own computed output.
func Resolve(node logical.Node, reqOutput []expr.Expr, removeRedundant bool, opts planopts.Options) (logical.Node, error) {
	switch n := node.(type) {
	case *logical.Scan:
		return resolveScan(n, reqOutput, removeRedundant)
	case *logical.Filter:
		return resolveFilter(n, reqOutput, removeRedundant, opts)
	case *logical.Join:
		return resolveJoin(n, reqOutput, removeRedundant, opts)
	case *logical.Aggregate:
		return resolveAggregate(n, reqOutput, removeRedundant, opts)
	case *logical.Order:
		return resolveOrder(n, reqOutput, removeRedundant, opts)
	case *logical.FromQuery:
		return resolveFromQuery(n, reqOutput, removeRedundant, opts)
	case *logical.Insert:
		return resolveInsert(n, opts)
	case *logical.Result:
		return resolveResult(n, reqOutput, removeRedundant)
	case *logical.MemoRef:
		return Resolve(n.Group.Canonical(), reqOutput, removeRedundant, opts)
	case *logical.Distinct:
		return resolvePassThrough(n, n.Child, reqOutput, removeRedundant, opts,
			func(child logical.Node) logical.Node { return &logical.Distinct{Child: child} })
	case *logical.Limit:
		return resolvePassThrough(n, n.Child, reqOutput, removeRedundant, opts,
			func(child logical.Node) logical.Node { return &logical.Limit{Child: child, N: n.N} })
	case *logical.Offset:
		return resolvePassThrough(n, n.Child, reqOutput, removeRedundant, opts,
			func(child logical.Node) logical.Node { return &logical.Offset{Child: child, N: n.N} })
	default:
		return nil, perr.ErrCannotPlaceExpr.New(node)
	}
}

func resolveScan(n *logical.Scan, reqOutput []expr.Expr, removeRedundant bool) (logical.Node, error) {
	childrenOutput := tableInputVector(n.Table)

	newFilter, err := resolveSubqueriesThenFix(n.FilterExpr, childrenOutput)
	if err != nil {
		return nil, err
	}
	newOutput, err := rewriteList(reqOutput, childrenOutput, removeRedundant)
	if err != nil {
		return nil, err
	}
	newOutput = n.Table.AddOuterRefsToOutput(newOutput)

	out := &logical.Scan{Table: n.Table}
	out.SetFilter(newFilter)
	out.SetOutput(newOutput)
	return out, nil
}

func resolveFilter(n *logical.Filter, reqOutput []expr.Expr, removeRedundant bool, opts planopts.Options) (logical.Node, error) {
	reqFromChild := append([]expr.Expr{}, reqOutput...)
	for _, leaf := range expr.RetrieveAllColExpr(n.FilterExpr) {
		if leaf.OuterRef {
			continue
		}
		reqFromChild = appendUnique(reqFromChild, leaf)
	}
	resolvedChild, err := Resolve(n.Child, reqFromChild, true, opts)
	if err != nil {
		return nil, err
	}
	childOutput := resolvedChild.Output()

	newFilter, err := resolveSubqueriesThenFix(n.FilterExpr, childOutput)
	if err != nil {
		return nil, err
	}
	newOutput, err := rewriteList(reqOutput, childOutput, removeRedundant)
	if err != nil {
		return nil, err
	}

	out := &logical.Filter{Child: resolvedChild}
	out.SetFilter(newFilter)
	out.SetOutput(newOutput)
	return out, nil
}

func resolvePassThrough(self logical.Node, child logical.Node, reqOutput []expr.Expr, removeRedundant bool, opts planopts.Options, rebuild func(logical.Node) logical.Node) (logical.Node, error) {
	resolvedChild, err := Resolve(child, reqOutput, true, opts)
	if err != nil {
		return nil, err
	}
	childOutput := resolvedChild.Output()

	newOutput, err := rewriteList(reqOutput, childOutput, removeRedundant)
	if err != nil {
		return nil, err
	}

	out := rebuild(resolvedChild)
	out.SetOutput(newOutput)
	return out, nil
}

func resolveOrder(n *logical.Order, reqOutput []expr.Expr, removeRedundant bool, opts planopts.Options) (logical.Node, error) {
	reqFromChild := append(append([]expr.Expr{}, reqOutput...), n.OrderExprs...)
	resolvedChild, err := Resolve(n.Child, reqFromChild, true, opts)
	if err != nil {
		return nil, err
	}
	childOutput := resolvedChild.Output()

	newOrderExprs := make([]expr.Expr, len(n.OrderExprs))
	for i, oe := range n.OrderExprs {
		re, err := cloneFixColumnOrdinal(oe, childOutput)
		if err != nil {
			return nil, err
		}
		newOrderExprs[i] = re
	}
	newOutput, err := rewriteList(reqOutput, childOutput, removeRedundant)
	if err != nil {
		return nil, err
	}

	out := &logical.Order{Child: resolvedChild, OrderExprs: newOrderExprs, Descending: append([]bool(nil), n.Descending...)}
	out.SetOutput(newOutput)
	return out, nil
}

func resolveFromQuery(n *logical.FromQuery, reqOutput []expr.Expr, removeRedundant bool, opts planopts.Options) (logical.Node, error) {
	resolvedChild, err := Resolve(n.Child, reqOutput, true, opts)
	if err != nil {
		return nil, err
	}
	childOutput := resolvedChild.Output()

	newOutput, err := rewriteList(reqOutput, childOutput, removeRedundant)
	if err != nil {
		return nil, err
	}
	newOutput = n.SubqueryRef.AddOuterRefsToOutput(newOutput)

	out := &logical.FromQuery{Child: resolvedChild, SubqueryRef: n.SubqueryRef}
	out.SetOutput(newOutput)
	return out, nil
}

func resolveInsert(n *logical.Insert, opts planopts.Options) (logical.Node, error) {
	resolvedChild, err := Resolve(n.Child, n.Child.Output(), true, opts)
	if err != nil {
		return nil, err
	}
	out := &logical.Insert{Child: resolvedChild, TargetTable: n.TargetTable}
	out.SetOutput(nil)
	return out, nil
}

func resolveResult(n *logical.Result, reqOutput []expr.Expr, removeRedundant bool) (logical.Node, error) {
	newOutput, err := rewriteList(reqOutput, nil, removeRedundant)
	if err != nil {
		return nil, err
	}
	out := &logical.Result{}
	out.SetOutput(newOutput)
	return out, nil
}

func resolveJoin(n *logical.Join, reqOutput []expr.Expr, removeRedundant bool, opts planopts.Options) (logical.Node, error) {
	leftRefs := collectTableRefs(n.Left)
	rightRefs := collectTableRefs(n.Right)

	ownMarker := n.JoinType == logical.MarkJoin || n.JoinType == logical.SingleMarkJoin ||
		n.JoinType == logical.Semi || n.JoinType == logical.AntiSemi

	var leftReq, rightReq []expr.Expr
	route := func(e expr.Expr) error {
		if e == nil {
			return nil
		}
		// this join's own marker column comes from joinInputVector, not a child
		if cr, ok := e.(*expr.ColRef); ok && ownMarker && cr.Table == nil && cr.Alias == logical.MarkerColumn {
			return nil
		}
		l, r, err := routeExpr(e, leftRefs, rightRefs)
		if err != nil {
			return err
		}
		for _, le := range l {
			leftReq = appendUnique(leftReq, le)
		}
		for _, re := range r {
			rightReq = appendUnique(rightReq, re)
		}
		return nil
	}
	for _, e := range reqOutput {
		if err := route(e); err != nil {
			return nil, err
		}
	}
	if err := route(n.FilterExpr); err != nil {
		return nil, err
	}

	resolvedLeft, err := Resolve(n.Left, leftReq, true, opts)
	if err != nil {
		return nil, err
	}
	resolvedRight, err := Resolve(n.Right, rightReq, true, opts)
	if err != nil {
		return nil, err
	}

	childrenOutput := joinInputVector(n.JoinType, resolvedLeft.Output(), resolvedRight.Output())

	newFilter, err := resolveSubqueriesThenFix(n.FilterExpr, childrenOutput)
	if err != nil {
		return nil, err
	}
	newOutput, err := rewriteList(reqOutput, childrenOutput, removeRedundant)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"joinType": n.JoinType.String(),
		"left":     len(resolvedLeft.Output()),
		"right":    len(resolvedRight.Output()),
	}).Debug("resolve: join resolved")

	out := &logical.Join{Left: resolvedLeft, Right: resolvedRight, JoinType: n.JoinType}
	out.SetFilter(newFilter)
	out.SetOutput(newOutput)
	return out, nil
}

// joinInputVector builds the node's own input vector:
// left-then-right for ordinary joins, with a synthetic marker column
// appended for (Single)MarkJoin/Semi/AntiSemi, which expose left's columns
// (plus right's, for SingleMarkJoin) rather than a plain concatenation
//.
func joinInputVector(jt logical.JoinType, left, right []expr.Expr) []expr.Expr {
	marker := &expr.ColRef{Alias: logical.MarkerColumn, Ordinal: -1}
	switch jt {
	case logical.MarkJoin, logical.Semi, logical.AntiSemi:
		return append(append([]expr.Expr{}, left...), marker)
	case logical.SingleMarkJoin:
		out := append([]expr.Expr{}, left...)
		out = append(out, right...)
		return append(out, marker)
	default:
		return append(append([]expr.Expr{}, left...), right...)
	}
}

func collectTableRefs(n logical.Node) map[expr.TableRef]bool {
	set := make(map[expr.TableRef]bool)
	logical.Inspect(n, func(node logical.Node) bool {
		switch v := node.(type) {
		case *logical.Scan:
			set[v.Table] = true
		case *logical.FromQuery:
			set[v.SubqueryRef] = true
		}
		return true
	})
	return set
}

func routeExpr(e expr.Expr, left, right map[expr.TableRef]bool) (leftAdd, rightAdd []expr.Expr, err error) {
	refs := expr.TableRefs(e)
	allLeft, allRight := true, true
	for _, r := range refs {
		if !left[r] {
			allLeft = false
		}
		if !right[r] {
			allRight = false
		}
	}
	switch {
	case len(refs) == 0 || allLeft:
		return []expr.Expr{e}, nil, nil
	case allRight:
		return nil, []expr.Expr{e}, nil
	default:
		for _, leaf := range expr.RetrieveAllColExpr(e) {
			if leaf.OuterRef {
				continue
			}
			if leaf.Table == nil {
				return nil, nil, perr.ErrCannotPlaceExpr.New(e.String())
			}
			if left[leaf.Table] {
				leftAdd = appendUnique(leftAdd, leaf)
			} else if right[leaf.Table] {
				rightAdd = appendUnique(rightAdd, leaf)
			} else {
				return nil, nil, perr.ErrCannotPlaceExpr.New(e.String())
			}
		}
		return leftAdd, rightAdd, nil
	}
}

func appendUnique(list []expr.Expr, e expr.Expr) []expr.Expr {
	for _, existing := range list {
		if expr.Equal(existing, e) {
			return list
		}
	}
	return append(list, e)
}

// tableInputVector is a Scan leaf's own "children output": the table's raw
// columns in storage order, each pre-stamped with its storage ordinal, the
// way a physical scan hands the executor a positional row.
func tableInputVector(tbl interface {
	AllColumnRefs() []*expr.ColRef
}) []expr.Expr {
	cols := tbl.AllColumnRefs()
	out := make([]expr.Expr, len(cols))
	for i, c := range cols {
		cp := *c
		cp.Ordinal = i
		out[i] = &cp
	}
	return out
}

// rewriteList rewrites every expression in list against childrenOutput,
// optionally deduplicating by structural equality.
func rewriteList(list []expr.Expr, childrenOutput []expr.Expr, removeRedundant bool) ([]expr.Expr, error) {
	out := make([]expr.Expr, 0, len(list))
	for _, e := range list {
		re, err := resolveSubqueriesThenFix(e, childrenOutput)
		if err != nil {
			return nil, err
		}
		if removeRedundant && containsEqual(out, re) {
			continue
		}
		out = append(out, re)
	}
	return out, nil
}

func containsEqual(list []expr.Expr, e expr.Expr) bool {
	for _, existing := range list {
		if expr.Equal(existing, e) {
			return true
		}
	}
	return false
}

// resolveSubqueriesThenFix resolves any nested subquery plans first (their
// own ordinals are independent of this node's childrenOutput), then fixes
// column ordinals in the outer expression.
func resolveSubqueriesThenFix(e expr.Expr, childrenOutput []expr.Expr) (expr.Expr, error) {
	if e == nil {
		return nil, nil
	}
	withSubqueriesResolved, err := resolveSubqueriesIn(e)
	if err != nil {
		return nil, err
	}
	return cloneFixColumnOrdinal(withSubqueriesResolved, childrenOutput)
}

func resolveSubqueriesIn(e expr.Expr) (expr.Expr, error) {
	if e == nil {
		return nil, nil
	}
	if sq, ok := e.(*expr.Subquery); ok {
		planNode, ok := sq.Plan.(logical.Node)
		if !ok {
			return e, nil
		}
		resolved, err := Resolve(planNode, planNode.Output(), true, planopts.Default())
		if err != nil {
			return nil, err
		}
		return expr.NewSubquery(resolved, sq.BindContext), nil
	}
	children := e.Children()
	if len(children) == 0 {
		return e, nil
	}
	newChildren := make([]expr.Expr, len(children))
	changed := false
	for i, c := range children {
		nc, err := resolveSubqueriesIn(c)
		if err != nil {
			return nil, err
		}
		newChildren[i] = nc
		if nc != c {
			changed = true
		}
	}
	if !changed {
		return e, nil
	}
	return e.WithChildren(newChildren...)
}

// cloneFixColumnOrdinal is the rewrite step that: whole-
// expression match first (yielding an ExprRef), otherwise recurse into
// ColRefs and set each one's ordinal by equality-or-alias match against
// childrenOutput, disambiguating same-alias matches by table identity.
func cloneFixColumnOrdinal(e expr.Expr, childrenOutput []expr.Expr) (expr.Expr, error) {
	if e == nil {
		return nil, nil
	}
	if cr, ok := e.(*expr.ColRef); ok {
		if cr.OuterRef {
			return expr.Clone(cr), nil
		}
		return resolveColRef(cr, childrenOutput)
	}
	if idx, ok := findWholeMatch(e, childrenOutput); ok {
		return expr.NewExprRef(expr.Clone(e), idx), nil
	}
	children := e.Children()
	if len(children) == 0 {
		return expr.Clone(e), nil
	}
	newChildren := make([]expr.Expr, len(children))
	for i, c := range children {
		nc, err := cloneFixColumnOrdinal(c, childrenOutput)
		if err != nil {
			return nil, err
		}
		newChildren[i] = nc
	}
	return e.WithChildren(newChildren...)
}

func findWholeMatch(e expr.Expr, childrenOutput []expr.Expr) (int, bool) {
	for i, co := range childrenOutput {
		if expr.Equal(e, co) {
			return i, true
		}
	}
	return 0, false
}

func resolveColRef(cr *expr.ColRef, childrenOutput []expr.Expr) (expr.Expr, error) {
	var matches []int
	for i, co := range childrenOutput {
		ccr, ok := co.(*expr.ColRef)
		if !ok {
			continue
		}
		if ccr.Alias == cr.Alias {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return nil, perr.ErrColumnNotFound.New(cr.Alias)
	}
	if len(matches) > 1 && cr.Table != nil {
		var filtered []int
		for _, i := range matches {
			ccr := childrenOutput[i].(*expr.ColRef)
			if ccr.Table != nil && ccr.Table.TableRefEqual(cr.Table) {
				filtered = append(filtered, i)
			}
		}
		if len(filtered) == 1 {
			matches = filtered
		}
	}
	if len(matches) > 1 {
		return nil, perr.ErrAmbiguousColumn.New(cr.Alias, matchTableNames(matches, childrenOutput))
	}
	out := *cr
	out.Ordinal = matches[0]
	return &out, nil
}

func matchTableNames(idxs []int, childrenOutput []expr.Expr) []string {
	names := make([]string, 0, len(idxs))
	for _, i := range idxs {
		if ccr, ok := childrenOutput[i].(*expr.ColRef); ok && ccr.Table != nil {
			names = append(names, ccr.Table.TableRefName())
		}
	}
	return names
}
