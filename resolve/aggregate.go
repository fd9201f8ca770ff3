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
	"github.com/sirupsen/logrus"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/perr"
	"github.com/arzuschen/qpmodel/planopts"
)

// resolveAggregate implements the two-phase aggregate resolution:
// first the ordinary ordinal fix against the child's output (so raw
// aggregate arguments and group-key references land on concrete child
// positions, exactly like any other node), then a second pass that walks
// the now child-ordinal-fixed output/having, extracting each unique AggFunc
// into AggCore (in discovery order) and rewriting both AggFunc occurrences
// and bare references to a group key into an ExprRef against the
// aggregate's own [groupKeys..., aggCore...] vector. Any ColRef surviving
// that second pass unwrapped is a column that must appear in the GROUP BY
// clause.
func resolveAggregate(n *logical.Aggregate, reqOutput []expr.Expr, removeRedundant bool, opts planopts.Options) (logical.Node, error) {
	reqFromChild := aggregateChildRequirements(n, reqOutput)

	resolvedChild, err := Resolve(n.Child, reqFromChild, true, opts)
	if err != nil {
		return nil, err
	}
	childOutput := resolvedChild.Output()

	newGroupKeys := make([]expr.Expr, len(n.GroupKeys))
	for i, k := range n.GroupKeys {
		rk, err := cloneFixColumnOrdinal(k, childOutput)
		if err != nil {
			return nil, err
		}
		newGroupKeys[i] = rk
	}

	fixedOutput := make([]expr.Expr, len(reqOutput))
	for i, e := range reqOutput {
		fe, err := cloneFixColumnOrdinal(e, childOutput)
		if err != nil {
			return nil, err
		}
		fixedOutput[i] = fe
	}
	var fixedHaving expr.Expr
	if n.Having != nil {
		fixedHaving, err = cloneFixColumnOrdinal(n.Having, childOutput)
		if err != nil {
			return nil, err
		}
	}

	var aggCore []*expr.AggFunc
	newOutput := make([]expr.Expr, 0, len(fixedOutput))
	for _, e := range fixedOutput {
		re, err := rewriteAggregateExpr(e, newGroupKeys, &aggCore)
		if err != nil {
			return nil, err
		}
		if removeRedundant && containsEqual(newOutput, re) {
			continue
		}
		newOutput = append(newOutput, re)
	}
	var newHaving expr.Expr
	if fixedHaving != nil {
		newHaving, err = rewriteAggregateExpr(fixedHaving, newGroupKeys, &aggCore)
		if err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"groupKeys": len(newGroupKeys),
		"aggCore":   len(aggCore),
	}).Debug("resolve: aggregate core extracted")

	out := &logical.Aggregate{Child: resolvedChild, GroupKeys: newGroupKeys, Having: newHaving, AggCore: aggCore}
	out.SetOutput(newOutput)
	return out, nil
}

// aggregateChildRequirements collects the atomic column requirements an
// Aggregate node must push to its child: its group keys plus every column
// leaf reachable from reqOutput/Having, whether bare or nested inside an
// aggregate argument. The child never sees an AggFunc itself — aggregation
// happens at this node, not below it.
func aggregateChildRequirements(n *logical.Aggregate, reqOutput []expr.Expr) []expr.Expr {
	var reqFromChild []expr.Expr
	for _, k := range n.GroupKeys {
		reqFromChild = appendUnique(reqFromChild, k)
	}
	collectLeaves := func(e expr.Expr) {
		for _, leaf := range expr.RetrieveAllColExpr(e) {
			if leaf.OuterRef {
				continue
			}
			reqFromChild = appendUnique(reqFromChild, leaf)
		}
	}
	for _, e := range reqOutput {
		collectLeaves(e)
	}
	if n.Having != nil {
		collectLeaves(n.Having)
	}
	return reqFromChild
}

// rewriteAggregateExpr walks an already child-ordinal-fixed expression,
// replacing every unique AggFunc with an ExprRef into aggCore (appending
// new entries in discovery order) and every bare reference to one of
// groupKeys with an ExprRef into the group-key prefix of the aggregate's own
// output vector. A ColRef that matches neither is a non-grouped column
//.
func rewriteAggregateExpr(e expr.Expr, groupKeys []expr.Expr, aggCore *[]*expr.AggFunc) (expr.Expr, error) {
	if e == nil {
		return nil, nil
	}
	if af, ok := e.(*expr.AggFunc); ok {
		idx := -1
		for i, existing := range *aggCore {
			if expr.Equal(existing, af) {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = len(*aggCore)
			*aggCore = append(*aggCore, af)
		}
		return expr.NewExprRef(expr.Clone(af), len(groupKeys)+idx), nil
	}
	for i, k := range groupKeys {
		if expr.Equal(e, k) {
			return expr.NewExprRef(expr.Clone(e), i), nil
		}
	}
	if cr, ok := e.(*expr.ColRef); ok {
		return nil, perr.ErrNonAggregatedColumn.New(cr.String())
	}
	children := e.Children()
	if len(children) == 0 {
		return expr.Clone(e), nil
	}
	newChildren := make([]expr.Expr, len(children))
	for i, c := range children {
		nc, err := rewriteAggregateExpr(c, groupKeys, aggCore)
		if err != nil {
			return nil, err
		}
		newChildren[i] = nc
	}
	return e.WithChildren(newChildren...)
}
