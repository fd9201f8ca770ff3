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

// Package logical implements the closed LogicNode family: scan,
// filter, join, aggregate, order, from-query, insert, result and a
// memo-reference hole, plus the Distinct/Limit/Offset nodes SPEC_FULL.md
// adds so a SELECT-core binder has somewhere to land those clauses.
package logical

import (
	"fmt"
	"strings"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/tableref"
)

// Kind tags the variant of a Node. The family is closed.
type Kind int

const (
	KindScan Kind = iota
	KindFilter
	KindJoin
	KindAggregate
	KindOrder
	KindFromQuery
	KindInsert
	KindResult
	KindMemoRef
	KindDistinct
	KindLimit
	KindOffset
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "Scan"
	case KindFilter:
		return "Filter"
	case KindJoin:
		return "Join"
	case KindAggregate:
		return "Aggregate"
	case KindOrder:
		return "Order"
	case KindFromQuery:
		return "FromQuery"
	case KindInsert:
		return "Insert"
	case KindResult:
		return "Result"
	case KindMemoRef:
		return "MemoRef"
	case KindDistinct:
		return "Distinct"
	case KindLimit:
		return "Limit"
	case KindOffset:
		return "Offset"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// JoinType tags the semantics of a Join node.
type JoinType int

const (
	Inner JoinType = iota
	Left
	Right
	Full
	Cross
	Semi
	AntiSemi
	MarkJoin
	SingleJoin
	SingleMarkJoin
)

func (jt JoinType) String() string {
	switch jt {
	case Inner:
		return "Inner"
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Full:
		return "Full"
	case Cross:
		return "Cross"
	case Semi:
		return "Semi"
	case AntiSemi:
		return "AntiSemi"
	case MarkJoin:
		return "MarkJoin"
	case SingleJoin:
		return "SingleJoin"
	case SingleMarkJoin:
		return "SingleMarkJoin"
	default:
		return fmt.Sprintf("JoinType(%d)", int(jt))
	}
}

// MarkerColumn is the synthetic boolean column a MarkJoin/SingleMarkJoin
// appends to its left schema.
const MarkerColumn = "#marker"

// MemoGroupRef is the minimal contract a MemoRef needs from an external
// memo group: its canonical member (for following to a concrete plan) and a
// signature for equality. package memo implements it; logical does not
// import memo to avoid a cycle (memo needs to hold Node values).
type MemoGroupRef interface {
	MemoSign() string
	Canonical() Node
}

// Node is the closed LogicNode family. Every case's Clone/Equal/
// String signatures match expr.LogicalPlan so a Node can be embedded
// directly as an expr.Subquery's Plan.
type Node interface {
	NodeKind() Kind
	Children() []Node
	WithChildren(children ...Node) (Node, error)

	Filter() expr.Expr
	SetFilter(expr.Expr)
	Output() []expr.Expr
	SetOutput([]expr.Expr)

	Clone() expr.LogicalPlan
	Equal(other expr.LogicalPlan) bool
	String() string
}

// base implements the fields shared by every Node case: an optional
// filter expression, an output
// expression list, and an ordered list of children"). The children
// themselves are kind-specific (a Scan has none, a Join has two) so they
// live on each concrete type rather than on base.
type base struct {
	FilterExpr  expr.Expr
	OutputExprs []expr.Expr
}

func (b *base) Filter() expr.Expr          { return b.FilterExpr }
func (b *base) SetFilter(e expr.Expr)      { b.FilterExpr = e }
func (b *base) Output() []expr.Expr        { return b.OutputExprs }
func (b *base) SetOutput(o []expr.Expr)    { b.OutputExprs = o }

func equalBase(a, b *base) bool {
	if !expr.Equal(a.FilterExpr, b.FilterExpr) {
		return false
	}
	if len(a.OutputExprs) != len(b.OutputExprs) {
		return false
	}
	for i := range a.OutputExprs {
		if !expr.Equal(a.OutputExprs[i], b.OutputExprs[i]) {
			return false
		}
	}
	return true
}

// cloneBase copies Filter/Output preserving resolved ordinals: a Node is
// typically cloned after resolution (e.g. when a subquery plan is embedded
// elsewhere by the rewriter), and silently discarding ordinals at that
// point would violate the §4.3 invariant without re-running resolution.
func cloneBase(b *base) base {
	var nf expr.Expr
	if b.FilterExpr != nil {
		nf = expr.CloneKeepOrdinal(b.FilterExpr)
	}
	var out []expr.Expr
	if b.OutputExprs != nil {
		out = make([]expr.Expr, len(b.OutputExprs))
		for i, e := range b.OutputExprs {
			out[i] = expr.CloneKeepOrdinal(e)
		}
	}
	return base{FilterExpr: nf, OutputExprs: out}
}

func outputString(o []expr.Expr) string {
	parts := make([]string, len(o))
	for i, e := range o {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Scan is a leaf node over a BaseTable or ExternalFile TableRef. Its
// (optional) Filter is a WHERE clause pushed down into the scan.
type Scan struct {
	base
	Table tableref.TableRef
}

func NewScan(table tableref.TableRef) *Scan { return &Scan{Table: table} }

func (s *Scan) NodeKind() Kind          { return KindScan }
func (s *Scan) Children() []Node        { return nil }
func (s *Scan) WithChildren(c ...Node) (Node, error) {
	if len(c) != 0 {
		return nil, fmt.Errorf("logical: Scan takes 0 children, got %d", len(c))
	}
	return s, nil
}
func (s *Scan) Clone() expr.LogicalPlan {
	return &Scan{base: cloneBase(&s.base), Table: s.Table.Clone()}
}
func (s *Scan) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Scan)
	return ok && equalBase(&s.base, &o.base) && s.Table.TableRefEqual(o.Table)
}
func (s *Scan) String() string { return fmt.Sprintf("Scan(%s)", s.Table) }

// Filter is a unary predicate node; its predicate is stored as the common
// Filter field.
type Filter struct {
	base
	Child Node
}

func NewFilter(predicate expr.Expr, child Node) *Filter {
	f := &Filter{Child: child}
	f.FilterExpr = predicate
	return f
}

func (f *Filter) NodeKind() Kind   { return KindFilter }
func (f *Filter) Children() []Node { return []Node{f.Child} }
func (f *Filter) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: Filter takes 1 child, got %d", len(c))
	}
	cp := *f
	cp.Child = c[0]
	return &cp, nil
}
func (f *Filter) Clone() expr.LogicalPlan {
	return &Filter{base: cloneBase(&f.base), Child: f.Child.Clone().(Node)}
}
func (f *Filter) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Filter)
	return ok && equalBase(&f.base, &o.base) && f.Child.Equal(o.Child)
}
func (f *Filter) String() string {
	return fmt.Sprintf("Filter(%s)[%s]", f.FilterExpr, f.Child)
}

// Join is a binary node tagged with its JoinType; its predicate is stored
// as the common Filter field.
type Join struct {
	base
	Left, Right Node
	JoinType    JoinType
}

func NewJoin(joinType JoinType, left, right Node, predicate expr.Expr) *Join {
	j := &Join{Left: left, Right: right, JoinType: joinType}
	j.FilterExpr = predicate
	return j
}

func (j *Join) NodeKind() Kind   { return KindJoin }
func (j *Join) Children() []Node { return []Node{j.Left, j.Right} }
func (j *Join) WithChildren(c ...Node) (Node, error) {
	if len(c) != 2 {
		return nil, fmt.Errorf("logical: Join takes 2 children, got %d", len(c))
	}
	cp := *j
	cp.Left, cp.Right = c[0], c[1]
	return &cp, nil
}
func (j *Join) Clone() expr.LogicalPlan {
	return &Join{
		base: cloneBase(&j.base), JoinType: j.JoinType,
		Left: j.Left.Clone().(Node), Right: j.Right.Clone().(Node),
	}
}
func (j *Join) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Join)
	return ok && j.JoinType == o.JoinType && equalBase(&j.base, &o.base) &&
		j.Left.Equal(o.Left) && j.Right.Equal(o.Right)
}
func (j *Join) String() string {
	return fmt.Sprintf("Join(%s)[%s on %s][%s]", j.JoinType, j.Left, j.FilterExpr, j.Right)
}

// Aggregate groups Child by GroupKeys, keeping only rows matching Having
// (if set). AggCore is populated by resolution: the
// deduplicated aggregate-function expressions extracted from Output, in
// discovery order.
type Aggregate struct {
	base
	Child     Node
	GroupKeys []expr.Expr
	Having    expr.Expr
	AggCore   []*expr.AggFunc
}

func NewAggregate(child Node, groupKeys []expr.Expr, having expr.Expr) *Aggregate {
	return &Aggregate{Child: child, GroupKeys: groupKeys, Having: having}
}

func (a *Aggregate) NodeKind() Kind   { return KindAggregate }
func (a *Aggregate) Children() []Node { return []Node{a.Child} }
func (a *Aggregate) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: Aggregate takes 1 child, got %d", len(c))
	}
	cp := *a
	cp.Child = c[0]
	return &cp, nil
}
func (a *Aggregate) Clone() expr.LogicalPlan {
	keys := make([]expr.Expr, len(a.GroupKeys))
	for i, k := range a.GroupKeys {
		keys[i] = expr.CloneKeepOrdinal(k)
	}
	var having expr.Expr
	if a.Having != nil {
		having = expr.CloneKeepOrdinal(a.Having)
	}
	core := make([]*expr.AggFunc, len(a.AggCore))
	for i, af := range a.AggCore {
		core[i] = expr.CloneKeepOrdinal(af).(*expr.AggFunc)
	}
	return &Aggregate{
		base: cloneBase(&a.base), Child: a.Child.Clone().(Node),
		GroupKeys: keys, Having: having, AggCore: core,
	}
}
func (a *Aggregate) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Aggregate)
	if !ok || !equalBase(&a.base, &o.base) || !a.Child.Equal(o.Child) {
		return false
	}
	if len(a.GroupKeys) != len(o.GroupKeys) {
		return false
	}
	for i := range a.GroupKeys {
		if !expr.Equal(a.GroupKeys[i], o.GroupKeys[i]) {
			return false
		}
	}
	return expr.Equal(a.Having, o.Having)
}
func (a *Aggregate) String() string {
	return fmt.Sprintf("Aggregate(group=[%s])[%s]", outputString(a.GroupKeys), a.Child)
}

// Order sorts Child by OrderExprs; Descending[i] tags OrderExprs[i].
type Order struct {
	base
	Child      Node
	OrderExprs []expr.Expr
	Descending []bool
}

func NewOrder(child Node, orderExprs []expr.Expr, descending []bool) *Order {
	return &Order{Child: child, OrderExprs: orderExprs, Descending: descending}
}

func (o *Order) NodeKind() Kind   { return KindOrder }
func (o *Order) Children() []Node { return []Node{o.Child} }
func (o *Order) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: Order takes 1 child, got %d", len(c))
	}
	cp := *o
	cp.Child = c[0]
	return &cp, nil
}
func (o *Order) Clone() expr.LogicalPlan {
	keys := make([]expr.Expr, len(o.OrderExprs))
	for i, k := range o.OrderExprs {
		keys[i] = expr.CloneKeepOrdinal(k)
	}
	return &Order{
		base: cloneBase(&o.base), Child: o.Child.Clone().(Node),
		OrderExprs: keys, Descending: append([]bool(nil), o.Descending...),
	}
}
func (o *Order) Equal(other expr.LogicalPlan) bool {
	ov, ok := other.(*Order)
	if !ok || !equalBase(&o.base, &ov.base) || !o.Child.Equal(ov.Child) {
		return false
	}
	if len(o.OrderExprs) != len(ov.OrderExprs) {
		return false
	}
	for i := range o.OrderExprs {
		if !expr.Equal(o.OrderExprs[i], ov.OrderExprs[i]) || o.Descending[i] != ov.Descending[i] {
			return false
		}
	}
	return true
}
func (o *Order) String() string {
	return fmt.Sprintf("Order(by=[%s])[%s]", outputString(o.OrderExprs), o.Child)
}

// FromQuery wraps a derived table (subquery-as-relation) plan root; the
// TableRef is the SubqueryRef that names it in the enclosing scope.
type FromQuery struct {
	base
	Child       Node
	SubqueryRef *tableref.SubqueryRef
}

func NewFromQuery(child Node, ref *tableref.SubqueryRef) *FromQuery {
	return &FromQuery{Child: child, SubqueryRef: ref}
}

func (f *FromQuery) NodeKind() Kind   { return KindFromQuery }
func (f *FromQuery) Children() []Node { return []Node{f.Child} }
func (f *FromQuery) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: FromQuery takes 1 child, got %d", len(c))
	}
	cp := *f
	cp.Child = c[0]
	return &cp, nil
}
func (f *FromQuery) Clone() expr.LogicalPlan {
	return &FromQuery{
		base: cloneBase(&f.base), Child: f.Child.Clone().(Node),
		SubqueryRef: f.SubqueryRef.Clone().(*tableref.SubqueryRef),
	}
}
func (f *FromQuery) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*FromQuery)
	return ok && equalBase(&f.base, &o.base) && f.Child.Equal(o.Child) &&
		f.SubqueryRef.TableRefEqual(o.SubqueryRef)
}
func (f *FromQuery) String() string {
	return fmt.Sprintf("FromQuery(%s)[%s]", f.SubqueryRef.AliasName, f.Child)
}

// Insert is always the root of its plan; its own Output is never deduped
// and starts empty.
type Insert struct {
	base
	Child       Node
	TargetTable string
}

func NewInsert(child Node, targetTable string) *Insert {
	return &Insert{Child: child, TargetTable: targetTable}
}

func (i *Insert) NodeKind() Kind   { return KindInsert }
func (i *Insert) Children() []Node { return []Node{i.Child} }
func (i *Insert) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: Insert takes 1 child, got %d", len(c))
	}
	cp := *i
	cp.Child = c[0]
	return &cp, nil
}
func (i *Insert) Clone() expr.LogicalPlan {
	return &Insert{base: cloneBase(&i.base), Child: i.Child.Clone().(Node), TargetTable: i.TargetTable}
}
func (i *Insert) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Insert)
	return ok && i.TargetTable == o.TargetTable && equalBase(&i.base, &o.base) && i.Child.Equal(o.Child)
}
func (i *Insert) String() string { return fmt.Sprintf("Insert(%s)[%s]", i.TargetTable, i.Child) }

// Result is a leaf that emits a single row of literals (e.g. SELECT 1).
type Result struct {
	base
}

func NewResult(outputExprs []expr.Expr) *Result {
	r := &Result{}
	r.OutputExprs = outputExprs
	return r
}

func (r *Result) NodeKind() Kind   { return KindResult }
func (r *Result) Children() []Node { return nil }
func (r *Result) WithChildren(c ...Node) (Node, error) {
	if len(c) != 0 {
		return nil, fmt.Errorf("logical: Result takes 0 children, got %d", len(c))
	}
	return r, nil
}
func (r *Result) Clone() expr.LogicalPlan { return &Result{base: cloneBase(&r.base)} }
func (r *Result) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Result)
	return ok && equalBase(&r.base, &o.base)
}
func (r *Result) String() string { return fmt.Sprintf("Result(%s)", outputString(r.OutputExprs)) }

// MemoRef is a transparent hole pointing at an external memo group;
// it defers Equal to the canonical member's signature so group
// membership can appear in a tree without committing to a member.
type MemoRef struct {
	base
	Group MemoGroupRef
}

func NewMemoRef(group MemoGroupRef) *MemoRef { return &MemoRef{Group: group} }

func (m *MemoRef) NodeKind() Kind   { return KindMemoRef }
func (m *MemoRef) Children() []Node { return nil }
func (m *MemoRef) WithChildren(c ...Node) (Node, error) {
	if len(c) != 0 {
		return nil, fmt.Errorf("logical: MemoRef takes 0 children, got %d", len(c))
	}
	return m, nil
}
func (m *MemoRef) Clone() expr.LogicalPlan { return &MemoRef{base: cloneBase(&m.base), Group: m.Group} }
func (m *MemoRef) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*MemoRef)
	return ok && m.Group.MemoSign() == o.Group.MemoSign()
}
func (m *MemoRef) String() string { return fmt.Sprintf("MemoRef(%s)", m.Group.MemoSign()) }

// Distinct de-duplicates rows of Child: a supplemented node so DISTINCT
// has somewhere to land in the logical plan.
type Distinct struct {
	base
	Child Node
}

func NewDistinct(child Node) *Distinct { return &Distinct{Child: child} }

func (d *Distinct) NodeKind() Kind   { return KindDistinct }
func (d *Distinct) Children() []Node { return []Node{d.Child} }
func (d *Distinct) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: Distinct takes 1 child, got %d", len(c))
	}
	cp := *d
	cp.Child = c[0]
	return &cp, nil
}
func (d *Distinct) Clone() expr.LogicalPlan {
	return &Distinct{base: cloneBase(&d.base), Child: d.Child.Clone().(Node)}
}
func (d *Distinct) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Distinct)
	return ok && equalBase(&d.base, &o.base) && d.Child.Equal(o.Child)
}
func (d *Distinct) String() string { return fmt.Sprintf("Distinct[%s]", d.Child) }

// Limit caps Child to its first N rows.
type Limit struct {
	base
	Child Node
	N     int64
}

func NewLimit(child Node, n int64) *Limit { return &Limit{Child: child, N: n} }

func (l *Limit) NodeKind() Kind   { return KindLimit }
func (l *Limit) Children() []Node { return []Node{l.Child} }
func (l *Limit) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: Limit takes 1 child, got %d", len(c))
	}
	cp := *l
	cp.Child = c[0]
	return &cp, nil
}
func (l *Limit) Clone() expr.LogicalPlan {
	return &Limit{base: cloneBase(&l.base), Child: l.Child.Clone().(Node), N: l.N}
}
func (l *Limit) Equal(other expr.LogicalPlan) bool {
	o, ok := other.(*Limit)
	return ok && l.N == o.N && equalBase(&l.base, &o.base) && l.Child.Equal(o.Child)
}
func (l *Limit) String() string { return fmt.Sprintf("Limit(%d)[%s]", l.N, l.Child) }

// Offset skips Child's first N rows.
type Offset struct {
	base
	Child Node
	N     int64
}

func NewOffset(child Node, n int64) *Offset { return &Offset{Child: child, N: n} }

func (o *Offset) NodeKind() Kind   { return KindOffset }
func (o *Offset) Children() []Node { return []Node{o.Child} }
func (o *Offset) WithChildren(c ...Node) (Node, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("logical: Offset takes 1 child, got %d", len(c))
	}
	cp := *o
	cp.Child = c[0]
	return &cp, nil
}
func (o *Offset) Clone() expr.LogicalPlan {
	return &Offset{base: cloneBase(&o.base), Child: o.Child.Clone().(Node), N: o.N}
}
func (o *Offset) Equal(other expr.LogicalPlan) bool {
	ov, ok := other.(*Offset)
	return ok && o.N == ov.N && equalBase(&o.base, &ov.base) && o.Child.Equal(ov.Child)
}
func (o *Offset) String() string { return fmt.Sprintf("Offset(%d)[%s]", o.N, o.Child) }
