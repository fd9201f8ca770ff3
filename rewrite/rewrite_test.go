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

package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/planopts"
	"github.com/arzuschen/qpmodel/tableref"
)

// buildExistsQuery mirrors a TPC-H Q4-shaped query: orders filtered
// by an EXISTS over lineitem correlated on orderkey, plus an unrelated
// residual predicate and an unrelated non-correlated predicate inside the
// subquery.
func buildExistsQuery() (*logical.Filter, *tableref.BaseTable, *tableref.BaseTable) {
	orders := tableref.NewBaseTable("orders", []string{"o_orderkey", "o_orderdate", "o_orderpriority"})
	lineitem := tableref.NewBaseTable("lineitem", []string{"l_orderkey", "l_commitdate", "l_receiptdate"})

	corr := expr.NewBinary(expr.OpEq,
		&expr.ColRef{Alias: "l_orderkey", Table: lineitem, Ordinal: -1},
		&expr.ColRef{Alias: "o_orderkey", Table: orders, OuterRef: true, Ordinal: -1},
	)
	nonCorr := expr.NewBinary(expr.OpLt,
		&expr.ColRef{Alias: "l_commitdate", Table: lineitem, Ordinal: -1},
		&expr.ColRef{Alias: "l_receiptdate", Table: lineitem, Ordinal: -1},
	)
	innerPlan := logical.NewFilter(expr.NewBinary(expr.OpAnd, corr, nonCorr), logical.NewScan(lineitem))
	sq := expr.NewSubquery(innerPlan, nil)
	existsFn := expr.NewFunction("EXISTS", sq)

	residual := expr.NewBinary(expr.OpEq,
		&expr.ColRef{Alias: "o_orderpriority", Table: orders, Ordinal: -1},
		expr.NewLiteral("URGENT", expr.TypeString),
	)
	outerPred := expr.NewBinary(expr.OpAnd, existsFn, residual)
	outer := logical.NewFilter(outerPred, logical.NewScan(orders))
	return outer, orders, lineitem
}

func TestRewriteExistsToMarkJoin(t *testing.T) {
	outer, _, _ := buildExistsQuery()

	out, err := RewriteSubqueries(outer, planopts.Default())
	require.NoError(t, err)

	f, ok := out.(*logical.Filter)
	require.True(t, ok, "expected top node to remain a Filter, got %T", out)

	join, ok := f.Child.(*logical.Join)
	require.True(t, ok, "expected the filter's child to become a Join, got %T", f.Child)
	require.Equal(t, logical.MarkJoin, join.JoinType)

	// the correlated predicate moved to the join, stripped of its outer tag
	eq, ok := join.Filter().(*expr.Binary)
	require.True(t, ok)
	require.Equal(t, expr.OpEq, eq.Op)
	rhs, ok := eq.Right.(*expr.ColRef)
	require.True(t, ok)
	require.False(t, rhs.OuterRef)

	// the EXISTS conjunct became a #marker reference, the residual predicate survived
	residual := splitConjuncts(f.FilterExpr)
	require.Len(t, residual, 2)
	var sawMarker, sawResidual bool
	for _, c := range residual {
		if cr, ok := c.(*expr.ColRef); ok && cr.Alias == logical.MarkerColumn {
			sawMarker = true
		}
		if b, ok := c.(*expr.Binary); ok && b.Op == expr.OpEq {
			if cr, ok := b.Left.(*expr.ColRef); ok && cr.Alias == "o_orderpriority" {
				sawResidual = true
			}
		}
	}
	require.True(t, sawMarker, "expected a #marker reference in the residual filter")
	require.True(t, sawResidual, "expected the unrelated predicate to survive untouched")

	// the non-correlated predicate stayed inside the subquery's own filter
	innerFilter, ok := join.Right.(*logical.Filter)
	require.True(t, ok, "expected the join's right side to keep its own residual filter")
	lt, ok := innerFilter.FilterExpr.(*expr.Binary)
	require.True(t, ok)
	require.Equal(t, expr.OpLt, lt.Op)
}

func TestRewriteSubqueriesDisabledIsNoop(t *testing.T) {
	outer, _, _ := buildExistsQuery()
	opts := planopts.Default()
	opts.EnableSubqueryToMarkjoin = false

	out, err := RewriteSubqueries(outer, opts)
	require.NoError(t, err)
	require.True(t, out.Equal(outer))
}

func TestRewriteExistsIsIdempotent(t *testing.T) {
	outer, _, _ := buildExistsQuery()
	opts := planopts.Default()

	once, err := RewriteSubqueries(outer, opts)
	require.NoError(t, err)
	twice, err := RewriteSubqueries(once, opts)
	require.NoError(t, err)

	require.True(t, once.Equal(twice))
}

// buildScalarSubqueryQuery mirrors a correlated scalar subquery
// query: SELECT a.i, (SELECT max(b.j) FROM b WHERE b.k = a.k) FROM a.
func buildScalarSubqueryQuery() (logical.Node, *tableref.BaseTable, *tableref.BaseTable) {
	a := tableref.NewBaseTable("a", []string{"i", "k"})
	b := tableref.NewBaseTable("b", []string{"j", "k"})

	corr := expr.NewBinary(expr.OpEq,
		&expr.ColRef{Alias: "k", Table: b, Ordinal: -1},
		&expr.ColRef{Alias: "k", Table: a, OuterRef: true, Ordinal: -1},
	)
	innerScan := logical.NewFilter(corr, logical.NewScan(b))
	maxExpr := expr.NewAggFunc(expr.AggMax, &expr.ColRef{Alias: "j", Table: b, Ordinal: -1})
	innerAgg := logical.NewAggregate(innerScan, nil, nil)
	innerAgg.SetOutput([]expr.Expr{maxExpr})

	sq := expr.NewSubquery(innerAgg, nil)
	outer := logical.NewScan(a)
	outer.SetOutput([]expr.Expr{
		&expr.ColRef{Alias: "i", Table: a, Ordinal: -1},
		sq,
	})
	return outer, a, b
}

func TestRewriteScalarSubqueryToSingleJoin(t *testing.T) {
	outer, _, _ := buildScalarSubqueryQuery()

	out, err := RewriteSubqueries(outer, planopts.Default())
	require.NoError(t, err)

	join, ok := out.(*logical.Join)
	require.True(t, ok, "expected a Join at the top, got %T", out)
	require.Equal(t, logical.SingleJoin, join.JoinType)

	left, ok := join.Left.(*logical.Scan)
	require.True(t, ok)
	require.Len(t, left.Output(), 2)
	require.Equal(t, "i", left.Output()[0].(*expr.ColRef).Alias)
	agg, ok := left.Output()[1].(*expr.AggFunc)
	require.True(t, ok, "expected the subquery occurrence to be replaced by its raw projected expression")
	require.Equal(t, expr.AggMax, agg.Kind)

	right, ok := join.Right.(*logical.Aggregate)
	require.True(t, ok)
	require.Nil(t, right.Filter())
	require.Equal(t, 0, len(right.GroupKeys))

	eq, ok := join.Filter().(*expr.Binary)
	require.True(t, ok)
	require.Equal(t, expr.OpEq, eq.Op)
	rhs, ok := eq.Right.(*expr.ColRef)
	require.True(t, ok)
	require.False(t, rhs.OuterRef)
}

func TestRewriteScalarSubqueryArityMismatch(t *testing.T) {
	a := tableref.NewBaseTable("a", []string{"i"})
	b := tableref.NewBaseTable("b", []string{"j", "k"})

	innerScan := logical.NewScan(b)
	innerScan.SetOutput([]expr.Expr{
		&expr.ColRef{Alias: "j", Table: b, Ordinal: -1},
		&expr.ColRef{Alias: "k", Table: b, Ordinal: -1},
	})
	sq := expr.NewSubquery(innerScan, nil)
	outer := logical.NewScan(a)
	outer.SetOutput([]expr.Expr{sq})

	_, err := RewriteSubqueries(outer, planopts.Default())
	require.Error(t, err)
}
