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

// Package translate implements logical-to-physical translation:
// a single post-order walk mapping each closed logical.Node variant
// to its physical.Node counterpart, choosing hash-join vs nested-loop-join
// by predicate shape, and wrapping every emitted node in physical.Profiling
// when planopts.Options.ProfilingEnabled is set.
package translate

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/perr"
	"github.com/arzuschen/qpmodel/physical"
	"github.com/arzuschen/qpmodel/planopts"
	"github.com/arzuschen/qpmodel/tableref"
)

// ToPhysical maps node to its physical counterpart. It recurses
// post-order: a node's children are fully translated
// (and, if enabled, profiling-wrapped) before the node itself is built, so
// every child a physical parent holds is already connected and estimated.
//
// A logical.MemoRef is followed to its group's canonical member before any
// translation happens: translation must work for a fully
// materialized logical tree without any MemoRefs present — MemoRef is
// resolved away transparently, never switched on).
func ToPhysical(ctx context.Context, node logical.Node, opts planopts.Options) (physical.Node, error) {
	if mr, ok := node.(*logical.MemoRef); ok {
		return ToPhysical(ctx, mr.Group.Canonical(), opts)
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "translate."+node.NodeKind().String())
	defer span.Finish()

	phys, err := translateNode(ctx, node, opts)
	if err != nil {
		return nil, err
	}

	subs, err := translateSubqueries(ctx, node, opts)
	if err != nil {
		return nil, err
	}
	phys.SetSubqueryPlans(subs)

	if opts.ProfilingEnabled {
		return physical.NewProfiling(phys), nil
	}
	return phys, nil
}

func translateNode(ctx context.Context, node logical.Node, opts planopts.Options) (physical.Node, error) {
	switch n := node.(type) {
	case *logical.Scan:
		return translateScan(n)
	case *logical.Filter:
		return translateFilter(ctx, n, opts)
	case *logical.Join:
		return translateJoin(ctx, n, opts)
	case *logical.Aggregate:
		return translateAggregate(ctx, n, opts)
	case *logical.Order:
		return translateOrder(ctx, n, opts)
	case *logical.FromQuery:
		return translateFromQuery(ctx, n, opts)
	case *logical.Insert:
		return translateInsert(ctx, n, opts)
	case *logical.Result:
		return physical.NewResult(n, physical.EstimateLeaf(1)), nil
	case *logical.Distinct:
		return translateDistinct(ctx, n, opts)
	case *logical.Limit:
		return translateLimit(ctx, n, opts)
	case *logical.Offset:
		return translateOffset(ctx, n, opts)
	default:
		return nil, perr.ErrNoPhysicalMapping.New(node)
	}
}

func translateScan(n *logical.Scan) (physical.Node, error) {
	est := physical.EstimateLeaf(physical.DefaultTableCardinality)
	switch n.Table.RefKind() {
	case tableref.KindExternalFile:
		return physical.NewScanFile(n, est), nil
	default:
		return physical.NewScanTable(n, est), nil
	}
}

func translateFilter(ctx context.Context, n *logical.Filter, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewFilter(n, child, physical.EstimateFilter(estimateOf(child))), nil
}

func translateAggregate(ctx context.Context, n *logical.Aggregate, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewHashAgg(n, child, physical.EstimateHashAgg(estimateOf(child))), nil
}

func translateOrder(ctx context.Context, n *logical.Order, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewOrder(n, child, physical.EstimateOrder(estimateOf(child))), nil
}

func translateFromQuery(ctx context.Context, n *logical.FromQuery, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewFromQuery(n, child, physical.EstimatePassThrough(estimateOf(child))), nil
}

func translateInsert(ctx context.Context, n *logical.Insert, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewInsert(n, child, physical.EstimatePassThrough(estimateOf(child))), nil
}

func translateDistinct(ctx context.Context, n *logical.Distinct, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewDistinct(n, child, physical.EstimateDistinct(estimateOf(child))), nil
}

func translateLimit(ctx context.Context, n *logical.Limit, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewLimit(n, child, physical.EstimateLimit(estimateOf(child), n.N)), nil
}

func translateOffset(ctx context.Context, n *logical.Offset, opts planopts.Options) (physical.Node, error) {
	child, err := ToPhysical(ctx, n.Child, opts)
	if err != nil {
		return nil, err
	}
	return physical.NewOffset(n, child, physical.EstimateOffset(estimateOf(child), n.N)), nil
}

// translateJoin implements the join mapping: the three subquery-
// rewrite join types translate directly to their named physical operator;
// a generic join is hash-joined when its predicate is hashable (the
// single-equality test) and its left subtree carries no outer
// reference, nested-loop-joined otherwise, subject to the enable_hashjoin/
// enable_nljoin switches.
func translateJoin(ctx context.Context, n *logical.Join, opts planopts.Options) (physical.Node, error) {
	left, err := ToPhysical(ctx, n.Left, opts)
	if err != nil {
		return nil, err
	}
	right, err := ToPhysical(ctx, n.Right, opts)
	if err != nil {
		return nil, err
	}
	le, re := estimateOf(left), estimateOf(right)

	switch n.JoinType {
	case logical.SingleMarkJoin:
		return physical.NewSingleMarkJoin(n, left, right, physical.EstimateMarkJoin(le, re)), nil
	case logical.MarkJoin:
		return physical.NewMarkJoin(n, left, right, physical.EstimateMarkJoin(le, re)), nil
	case logical.SingleJoin:
		return physical.NewSingleJoin(n, left, right, physical.EstimateMarkJoin(le, re)), nil
	}

	hashable := opts.EnableHashJoin && isHashablePredicate(n.FilterExpr, n.Left, n.Right) && !hasOuterRef(n.Left)
	if hashable {
		logrus.WithFields(logrus.Fields{"joinType": n.JoinType.String()}).Debug("translate: hash join chosen")
		return physical.NewHashJoin(n, left, right, physical.EstimateHashJoin(le, re)), nil
	}
	if !opts.EnableNLJoin {
		return nil, perr.ErrJoinStrategy.New()
	}
	logrus.WithFields(logrus.Fields{"joinType": n.JoinType.String()}).Warn("translate: nested-loop join fallback")
	return physical.NewNLJoin(n, left, right, physical.EstimateNLJoin(le, re)), nil
}

func estimateOf(n physical.Node) physical.Estimate {
	return physical.Estimate{Cost: n.Cost(), Cardinality: n.Cardinality()}
}

// isHashablePredicate implements the hashable test: a binary
// equality whose two sides each reference a non-empty, non-outer table-ref
// set drawn entirely from one side of the join. Composite AND-of-equalities
// is not recognized here — only a single top-level equality predicate is
// considered hashable; see DESIGN.md for the reasoning.
func isHashablePredicate(pred expr.Expr, left, right logical.Node) bool {
	b, ok := pred.(*expr.Binary)
	if !ok || !b.Op.IsEquality() {
		return false
	}
	leftSet := collectTableRefs(left)
	rightSet := collectTableRefs(right)
	lRefs, rRefs := expr.TableRefs(b.Left), expr.TableRefs(b.Right)
	if len(lRefs) == 0 || len(rRefs) == 0 {
		return false
	}
	if allIn(lRefs, leftSet) && allIn(rRefs, rightSet) {
		return true
	}
	return allIn(lRefs, rightSet) && allIn(rRefs, leftSet)
}

func allIn(refs []expr.TableRef, set map[expr.TableRef]bool) bool {
	for _, r := range refs {
		if !set[r] {
			return false
		}
	}
	return true
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

// hasOuterRef reports whether any expression anywhere in n's subtree
// (filter, output, group keys, having, order exprs, join predicates)
// contains an outer-referencing ColRef, which rules out a HashJoin on that
// side.
func hasOuterRef(n logical.Node) bool {
	found := false
	logical.Inspect(n, func(node logical.Node) bool {
		if node == nil || found {
			return false
		}
		check := func(e expr.Expr) {
			if expr.VisitEachExists(e, func(x expr.Expr) bool {
				cr, ok := x.(*expr.ColRef)
				return ok && cr.OuterRef
			}, nil) {
				found = true
			}
		}
		check(node.Filter())
		for _, o := range node.Output() {
			check(o)
		}
		switch v := node.(type) {
		case *logical.Aggregate:
			for _, k := range v.GroupKeys {
				check(k)
			}
			check(v.Having)
		case *logical.Order:
			for _, o := range v.OrderExprs {
				check(o)
			}
		}
		return !found
	})
	return found
}

// translateSubqueries implements the recursive half of Scan/
// Filter rows: any expr.Subquery reachable from node's own filter/output
// (present only when opts.EnableSubqueryToMarkjoin is false, since
// otherwise package rewrite already consumed them) is itself translated,
// in discovery order, for the executor's subquery cache to consult.
func translateSubqueries(ctx context.Context, node logical.Node, opts planopts.Options) ([]physical.Node, error) {
	var subqueries []*expr.Subquery
	collect := func(e expr.Expr) {
		expr.VisitEach(e, func(x expr.Expr) {
			if sq, ok := x.(*expr.Subquery); ok {
				subqueries = append(subqueries, sq)
			}
		})
	}
	collect(node.Filter())
	for _, o := range node.Output() {
		collect(o)
	}

	if len(subqueries) == 0 {
		return nil, nil
	}
	out := make([]physical.Node, 0, len(subqueries))
	for _, sq := range subqueries {
		planNode, ok := sq.Plan.(logical.Node)
		if !ok {
			return nil, fmt.Errorf("translate: subquery plan is not a logical.Node: %T", sq.Plan)
		}
		p, err := ToPhysical(ctx, planNode, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
