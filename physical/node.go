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

// Package physical implements the closed PhysicNode family: the
// operator tree the executor actually iterates, produced from a logical
// tree by package translate. Every case pairs with its logical counterpart
// and carries the static cost/cardinality estimate the printed
// plan reproduces bit-exact, plus the one mutable field the executor
// writes post-execution: a profile's row count.
package physical

import (
	"fmt"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
)

// Kind tags the variant of a Node. The family is closed.
type Kind int

const (
	KindScanTable Kind = iota
	KindScanFile
	KindFilter
	KindHashAgg
	KindOrder
	KindNLJoin
	KindHashJoin
	KindMarkJoin
	KindSingleJoin
	KindSingleMarkJoin
	KindFromQuery
	KindInsert
	KindResult
	KindDistinct
	KindLimit
	KindOffset
	KindProfiling
)

func (k Kind) String() string {
	switch k {
	case KindScanTable:
		return "ScanTable"
	case KindScanFile:
		return "ScanFile"
	case KindFilter:
		return "Filter"
	case KindHashAgg:
		return "HashAgg"
	case KindOrder:
		return "Order"
	case KindNLJoin:
		return "NLJoin"
	case KindHashJoin:
		return "HashJoin"
	case KindMarkJoin:
		return "MarkJoin"
	case KindSingleJoin:
		return "SingleJoin"
	case KindSingleMarkJoin:
		return "SingleMarkJoin"
	case KindFromQuery:
		return "FromQuery"
	case KindInsert:
		return "Insert"
	case KindResult:
		return "Result"
	case KindDistinct:
		return "Distinct"
	case KindLimit:
		return "Limit"
	case KindOffset:
		return "Offset"
	case KindProfiling:
		return "Profiling"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Profile is the sole mutable state observed after execution: a
// row count written by the executor on the thread that evaluated the
// wrapped operator, read only once execution of that operator has
// completed.
type Profile struct {
	NRows int64
}

// Node is the closed PhysicNode family. Every case pairs with a
// logical.Node (nil only for Profiling, which is a pure pass-through
// decorator with no logical counterpart of its own) and carries a cost and
// cardinality estimate computed once at translation time.
type Node interface {
	NodeKind() Kind
	Children() []Node
	Logical() logical.Node
	Output() []expr.Expr
	Cost() float64
	Cardinality() float64
	Profile() *Profile
	SetProfile(*Profile)
	// SubqueryPlans returns the physical plans of any expr.Subquery found
	// in this node's own filter/output — subqueries in a filter or
	// predicate are themselves translated (recursive) — in
	// discovery order, for the ExecContext subquery cache to evaluate per
	// outer row when enable_subquery_to_markjoin is false.
	SubqueryPlans() []Node
	SetSubqueryPlans([]Node)
	String() string
}

// base carries the fields every concrete case shares: the logical
// counterpart, its static cost/cardinality estimate, and the (possibly nil
// until execution) profile record.
type base struct {
	Logic   logical.Node
	Est     Estimate
	Prof    *Profile
	SubPlan []Node
}

// Estimate is the static cost/cardinality pair, computed
// from static estimates tied to operator type and child cardinalities and
// stable for a given input — see the Estimate* functions in cost.go.
type Estimate struct {
	Cost        float64
	Cardinality float64
}

func (b *base) Logical() logical.Node      { return b.Logic }
func (b *base) Output() []expr.Expr        { return b.Logic.Output() }
func (b *base) Cost() float64              { return b.Est.Cost }
func (b *base) Cardinality() float64       { return b.Est.Cardinality }
func (b *base) Profile() *Profile          { return b.Prof }
func (b *base) SetProfile(p *Profile)      { b.Prof = p }
func (b *base) SubqueryPlans() []Node      { return b.SubPlan }

// SetSubqueryPlans records the translated physical plans of any
// expr.Subquery expressions found in this node's own filter/output;
// package translate calls this once per node after recursively translating
// each subquery's logical plan.
func (b *base) SetSubqueryPlans(s []Node) { b.SubPlan = s }

// ScanTable is the physical counterpart of logical.Scan over a BaseTable.
type ScanTable struct {
	base
}

func NewScanTable(logic logical.Node, est Estimate) *ScanTable {
	return &ScanTable{base{Logic: logic, Est: est}}
}

func (s *ScanTable) NodeKind() Kind     { return KindScanTable }
func (s *ScanTable) Children() []Node   { return nil }
func (s *ScanTable) String() string     { return fmt.Sprintf("ScanTable(%s)", s.Logic) }

// ScanFile is the physical counterpart of logical.Scan over an
// ExternalFile; the file wire format itself is out of scope.
type ScanFile struct {
	base
}

func NewScanFile(logic logical.Node, est Estimate) *ScanFile {
	return &ScanFile{base{Logic: logic, Est: est}}
}

func (s *ScanFile) NodeKind() Kind   { return KindScanFile }
func (s *ScanFile) Children() []Node { return nil }
func (s *ScanFile) String() string   { return fmt.Sprintf("ScanFile(%s)", s.Logic) }

// Filter is the physical counterpart of logical.Filter.
type Filter struct {
	base
	Child Node
}

func NewFilter(logic logical.Node, child Node, est Estimate) *Filter {
	return &Filter{base{Logic: logic, Est: est}, child}
}

func (f *Filter) NodeKind() Kind   { return KindFilter }
func (f *Filter) Children() []Node { return []Node{f.Child} }
func (f *Filter) String() string   { return fmt.Sprintf("Filter(%s)", f.Logic.Filter()) }

// HashAgg is the physical counterpart of logical.Aggregate;
// only hash aggregation is emitted by direct translation.
type HashAgg struct {
	base
	Child Node
}

func NewHashAgg(logic logical.Node, child Node, est Estimate) *HashAgg {
	return &HashAgg{base{Logic: logic, Est: est}, child}
}

func (a *HashAgg) NodeKind() Kind   { return KindHashAgg }
func (a *HashAgg) Children() []Node { return []Node{a.Child} }
func (a *HashAgg) String() string   { return "HashAgg" }

// Order is the physical counterpart of logical.Order.
type Order struct {
	base
	Child Node
}

func NewOrder(logic logical.Node, child Node, est Estimate) *Order {
	return &Order{base{Logic: logic, Est: est}, child}
}

func (o *Order) NodeKind() Kind   { return KindOrder }
func (o *Order) Children() []Node { return []Node{o.Child} }
func (o *Order) String() string   { return "Order" }

// NLJoin is a nested-loop join: the fallback strategy for any predicate
// the hashable test rejects, or whenever enable_hashjoin is false.
type NLJoin struct {
	base
	Left, Right Node
}

func NewNLJoin(logic logical.Node, left, right Node, est Estimate) *NLJoin {
	return &NLJoin{base{Logic: logic, Est: est}, left, right}
}

func (j *NLJoin) NodeKind() Kind   { return KindNLJoin }
func (j *NLJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j *NLJoin) String() string {
	return fmt.Sprintf("NLJoin(%s)[%s]", j.Logic.(*logical.Join).JoinType, j.Logic.Filter())
}

// HashJoin is emitted when the hashable-equality test passes and
// the left subtree is outer-ref-free.
type HashJoin struct {
	base
	Left, Right Node
}

func NewHashJoin(logic logical.Node, left, right Node, est Estimate) *HashJoin {
	return &HashJoin{base{Logic: logic, Est: est}, left, right}
}

func (j *HashJoin) NodeKind() Kind   { return KindHashJoin }
func (j *HashJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j *HashJoin) String() string {
	return fmt.Sprintf("HashJoin(%s)[%s]", j.Logic.(*logical.Join).JoinType, j.Logic.Filter())
}

// MarkJoin is the physical counterpart of a logical.MarkJoin-typed Join:
// every left row survives, augmented with a boolean #marker.
type MarkJoin struct {
	base
	Left, Right Node
}

func NewMarkJoin(logic logical.Node, left, right Node, est Estimate) *MarkJoin {
	return &MarkJoin{base{Logic: logic, Est: est}, left, right}
}

func (j *MarkJoin) NodeKind() Kind   { return KindMarkJoin }
func (j *MarkJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j *MarkJoin) String() string   { return fmt.Sprintf("MarkJoin[%s]", j.Logic.Filter()) }

// SingleJoin is the physical counterpart of a logical.SingleJoin-typed
// Join: a correlated scalar subquery pulled up by package rewrite.
type SingleJoin struct {
	base
	Left, Right Node
}

func NewSingleJoin(logic logical.Node, left, right Node, est Estimate) *SingleJoin {
	return &SingleJoin{base{Logic: logic, Est: est}, left, right}
}

func (j *SingleJoin) NodeKind() Kind   { return KindSingleJoin }
func (j *SingleJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j *SingleJoin) String() string   { return fmt.Sprintf("SingleJoin[%s]", j.Logic.Filter()) }

// SingleMarkJoin combines the marker semantics of MarkJoin with the
// at-most-one-match enforcement of SingleJoin.
type SingleMarkJoin struct {
	base
	Left, Right Node
}

func NewSingleMarkJoin(logic logical.Node, left, right Node, est Estimate) *SingleMarkJoin {
	return &SingleMarkJoin{base{Logic: logic, Est: est}, left, right}
}

func (j *SingleMarkJoin) NodeKind() Kind   { return KindSingleMarkJoin }
func (j *SingleMarkJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j *SingleMarkJoin) String() string {
	return fmt.Sprintf("SingleMarkJoin[%s]", j.Logic.Filter())
}

// FromQuery wraps the physical plan of a derived table.
type FromQuery struct {
	base
	Child Node
}

func NewFromQuery(logic logical.Node, child Node, est Estimate) *FromQuery {
	return &FromQuery{base{Logic: logic, Est: est}, child}
}

func (f *FromQuery) NodeKind() Kind   { return KindFromQuery }
func (f *FromQuery) Children() []Node { return []Node{f.Child} }
func (f *FromQuery) String() string {
	return fmt.Sprintf("FromQuery(%s)", f.Logic.(*logical.FromQuery).SubqueryRef.AliasName)
}

// Insert is always the root of its physical tree, mirroring logical.Insert.
type Insert struct {
	base
	Child Node
}

func NewInsert(logic logical.Node, child Node, est Estimate) *Insert {
	return &Insert{base{Logic: logic, Est: est}, child}
}

func (i *Insert) NodeKind() Kind   { return KindInsert }
func (i *Insert) Children() []Node { return []Node{i.Child} }
func (i *Insert) String() string {
	return fmt.Sprintf("Insert(%s)", i.Logic.(*logical.Insert).TargetTable)
}

// Result emits a single row of literals.
type Result struct {
	base
}

func NewResult(logic logical.Node, est Estimate) *Result {
	return &Result{base{Logic: logic, Est: est}}
}

func (r *Result) NodeKind() Kind   { return KindResult }
func (r *Result) Children() []Node { return nil }
func (r *Result) String() string   { return "Result" }

// Distinct is the physical counterpart of logical.Distinct.
type Distinct struct {
	base
	Child Node
}

func NewDistinct(logic logical.Node, child Node, est Estimate) *Distinct {
	return &Distinct{base{Logic: logic, Est: est}, child}
}

func (d *Distinct) NodeKind() Kind   { return KindDistinct }
func (d *Distinct) Children() []Node { return []Node{d.Child} }
func (d *Distinct) String() string   { return "Distinct" }

// Limit is the physical counterpart of logical.Limit.
type Limit struct {
	base
	Child Node
}

func NewLimit(logic logical.Node, child Node, est Estimate) *Limit {
	return &Limit{base{Logic: logic, Est: est}, child}
}

func (l *Limit) NodeKind() Kind   { return KindLimit }
func (l *Limit) Children() []Node { return []Node{l.Child} }
func (l *Limit) String() string   { return fmt.Sprintf("Limit(%d)", l.Logic.(*logical.Limit).N) }

// Offset is the physical counterpart of logical.Offset.
type Offset struct {
	base
	Child Node
}

func NewOffset(logic logical.Node, child Node, est Estimate) *Offset {
	return &Offset{base{Logic: logic, Est: est}, child}
}

func (o *Offset) NodeKind() Kind   { return KindOffset }
func (o *Offset) Children() []Node { return []Node{o.Child} }
func (o *Offset) String() string   { return fmt.Sprintf("Offset(%d)", o.Logic.(*logical.Offset).N) }

// Profiling is a pass-through decorator wrapping any other Node when
// planopts.Options.ProfilingEnabled is set. It is invisible to
// plan equality and to printing: both defer to Wrapped.
type Profiling struct {
	Wrapped Node
	Prof    *Profile
}

func NewProfiling(wrapped Node) *Profiling { return &Profiling{Wrapped: wrapped} }

func (p *Profiling) NodeKind() Kind        { return KindProfiling }
func (p *Profiling) Children() []Node      { return p.Wrapped.Children() }
func (p *Profiling) Logical() logical.Node { return p.Wrapped.Logical() }
func (p *Profiling) Output() []expr.Expr   { return p.Wrapped.Output() }
func (p *Profiling) Cost() float64         { return p.Wrapped.Cost() }
func (p *Profiling) Cardinality() float64  { return p.Wrapped.Cardinality() }
func (p *Profiling) Profile() *Profile     { return p.Prof }
func (p *Profiling) SubqueryPlans() []Node { return p.Wrapped.SubqueryPlans() }
func (p *Profiling) SetSubqueryPlans(s []Node) { p.Wrapped.SetSubqueryPlans(s) }
func (p *Profiling) SetProfile(pr *Profile) {
	if pr != nil {
		cp := *pr
		p.Prof = &cp
	}
}
func (p *Profiling) String() string { return p.Wrapped.String() }

// Unwrap strips any Profiling decorator — the decorator is transparent
// to printing, so tree-shape checks can compare modulo profiling.
func Unwrap(n Node) Node {
	for {
		p, ok := n.(*Profiling)
		if !ok {
			return n
		}
		n = p.Wrapped
	}
}
