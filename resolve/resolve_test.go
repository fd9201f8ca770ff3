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

package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/perr"
	"github.com/arzuschen/qpmodel/planopts"
	"github.com/arzuschen/qpmodel/tableref"
)

func col(alias string, tbl tableref.TableRef) *expr.ColRef {
	return &expr.ColRef{Alias: alias, Table: tbl, Ordinal: -1}
}

func TestResolveScanStampsOrdinals(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i", "j", "k"})
	scan := logical.NewScan(tbl)

	out, err := Resolve(scan, []expr.Expr{col("k", tbl), col("i", tbl)}, false, planopts.Default())
	require.NoError(t, err)

	require.Len(t, out.Output(), 2)
	require.Equal(t, 2, out.Output()[0].(*expr.ColRef).Ordinal)
	require.Equal(t, 0, out.Output()[1].(*expr.ColRef).Ordinal)
}

func TestResolveScanUnknownColumn(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i"})
	scan := logical.NewScan(tbl)

	_, err := Resolve(scan, []expr.Expr{col("nope", tbl)}, false, planopts.Default())
	require.Error(t, err)
	require.True(t, perr.ErrColumnNotFound.Is(err))
}

func TestResolveFilterPushesPredicateToChild(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i", "j"})
	pred := expr.NewBinary(expr.OpGt, col("j", tbl), expr.NewLiteral(int64(0), expr.TypeInt64))
	f := logical.NewFilter(pred, logical.NewScan(tbl))

	out, err := Resolve(f, []expr.Expr{col("i", tbl)}, false, planopts.Default())
	require.NoError(t, err)

	rf := out.(*logical.Filter)
	require.Len(t, rf.Output(), 1)
	require.Equal(t, 0, rf.Output()[0].(*expr.ColRef).Ordinal)

	gt := rf.Filter().(*expr.Binary)
	require.Equal(t, 1, gt.Left.(*expr.ColRef).Ordinal)
}

func TestResolveJoinRoutesColumnsAndDetectsAmbiguity(t *testing.T) {
	left := tableref.NewBaseTable("a", []string{"id", "val"})
	right := tableref.NewBaseTable("b", []string{"id", "other"})
	pred := expr.NewBinary(expr.OpEq, col("id", left), col("id", right))
	join := logical.NewJoin(logical.Inner, logical.NewScan(left), logical.NewScan(right), pred)

	out, err := Resolve(join, []expr.Expr{col("val", left), col("other", right)}, false, planopts.Default())
	require.NoError(t, err)

	rj := out.(*logical.Join)
	require.Len(t, rj.Output(), 2)
	// children output is left [a.val, a.id] then right [b.other, b.id]
	require.Equal(t, 0, rj.Output()[0].(*expr.ColRef).Ordinal)
	require.Equal(t, 2, rj.Output()[1].(*expr.ColRef).Ordinal)

	// "id" alone (no table qualifier) is ambiguous once both sides expose it.
	ambiguousCol := &expr.ColRef{Alias: "id", Ordinal: -1}
	_, err = Resolve(join, []expr.Expr{ambiguousCol}, false, planopts.Default())
	require.Error(t, err)
	require.True(t, perr.ErrAmbiguousColumn.Is(err))
}

func TestResolveJoinMarkJoinExposesMarkerColumn(t *testing.T) {
	left := tableref.NewBaseTable("a", []string{"id"})
	right := tableref.NewBaseTable("b", []string{"id"})
	pred := expr.NewBinary(expr.OpEq, col("id", left), col("id", right))
	join := logical.NewJoin(logical.MarkJoin, logical.NewScan(left), logical.NewScan(right), pred)

	marker := &expr.ColRef{Alias: logical.MarkerColumn, Ordinal: -1}
	out, err := Resolve(join, []expr.Expr{col("id", left), marker}, false, planopts.Default())
	require.NoError(t, err)

	rj := out.(*logical.Join)
	require.Len(t, rj.Output(), 2)
	require.Equal(t, logical.MarkerColumn, rj.Output()[1].(*expr.ColRef).Alias)
}

// TestResolveAggregateWiresAggCore mirrors: SELECT
// a.k, sum(a.v) FROM a GROUP BY a.k. AggCore must end up with exactly the
// one unique sum(a.v), and both the group key and the aggregate must
// resolve to ExprRefs into the aggregate's own [groupKeys, aggCore] vector.
func TestResolveAggregateWiresAggCore(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"k", "v"})
	groupKey := col("k", tbl)
	sumV := expr.NewAggFunc(expr.AggSum, col("v", tbl))
	agg := logical.NewAggregate(logical.NewScan(tbl), []expr.Expr{col("k", tbl)}, nil)

	out, err := Resolve(agg, []expr.Expr{groupKey, sumV}, false, planopts.Default())
	require.NoError(t, err)

	ra := out.(*logical.Aggregate)
	require.Len(t, ra.AggCore, 1)
	require.Equal(t, expr.AggSum, ra.AggCore[0].Kind)

	require.Len(t, ra.Output(), 2)
	groupRef := ra.Output()[0].(*expr.ExprRef)
	require.Equal(t, 0, groupRef.Ordinal)
	sumRef := ra.Output()[1].(*expr.ExprRef)
	require.Equal(t, 1, sumRef.Ordinal)
}

// TestResolveAggregateRepeatedAggFuncSharesOneCoreSlot covers the dedup half
// of aggregate-core extraction: sum(a.v) appearing twice (e.g. once bare, once
// inside an arithmetic expression) must extract to a single AggCore entry.
func TestResolveAggregateRepeatedAggFuncSharesOneCoreSlot(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"k", "v"})
	sumV := expr.NewAggFunc(expr.AggSum, col("v", tbl))
	doubled := expr.NewBinary(expr.OpAdd, expr.NewAggFunc(expr.AggSum, col("v", tbl)), expr.NewLiteral(int64(1), expr.TypeInt64))
	agg := logical.NewAggregate(logical.NewScan(tbl), []expr.Expr{col("k", tbl)}, nil)

	out, err := Resolve(agg, []expr.Expr{sumV, doubled}, false, planopts.Default())
	require.NoError(t, err)

	ra := out.(*logical.Aggregate)
	require.Len(t, ra.AggCore, 1, "the two occurrences of sum(a.v) must share one AggCore slot")

	require.Equal(t, 1, ra.Output()[0].(*expr.ExprRef).Ordinal)
	plus := ra.Output()[1].(*expr.Binary)
	require.Equal(t, 1, plus.Left.(*expr.ExprRef).Ordinal)
}

// TestResolveAggregateNonGroupedColumnErrors mirrors:
// SELECT a.k, a.v FROM a GROUP BY a.k, where a.v is neither a group key nor
// wrapped in an aggregate, must fail with ErrNonAggregatedColumn.
func TestResolveAggregateNonGroupedColumnErrors(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"k", "v"})
	agg := logical.NewAggregate(logical.NewScan(tbl), []expr.Expr{col("k", tbl)}, nil)

	_, err := Resolve(agg, []expr.Expr{col("k", tbl), col("v", tbl)}, false, planopts.Default())
	require.Error(t, err)
	require.True(t, perr.ErrNonAggregatedColumn.Is(err))
}

func TestResolveAggregateHavingWiresAgainstAggCore(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"k", "v"})
	having := expr.NewBinary(expr.OpGt, expr.NewCountStar(), expr.NewLiteral(int64(1), expr.TypeInt64))
	agg := &logical.Aggregate{
		Child:     logical.NewScan(tbl),
		GroupKeys: []expr.Expr{col("k", tbl)},
		Having:    having,
	}

	out, err := Resolve(agg, []expr.Expr{col("k", tbl)}, false, planopts.Default())
	require.NoError(t, err)

	ra := out.(*logical.Aggregate)
	require.Len(t, ra.AggCore, 1)
	require.True(t, ra.AggCore[0].Star)

	gt := ra.Having.(*expr.Binary)
	require.Equal(t, 1, gt.Left.(*expr.ExprRef).Ordinal)
}
