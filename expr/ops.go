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

package expr

import "github.com/mitchellh/hashstructure"

// Clone returns a deep copy of e. Every ColRef's Ordinal is reset to -1:
// ordinals are only meaningful relative to a specific producing node, so a
// clone lifted out of that context should not claim one.
func Clone(e Expr) Expr { return cloneExpr(e, false) }

// CloneKeepOrdinal is Clone's escape hatch for callers (principally the
// resolver itself) that need a copy without discarding already-resolved
// ordinals.
func CloneKeepOrdinal(e Expr) Expr { return cloneExpr(e, true) }

func cloneExpr(e Expr, keepOrdinal bool) Expr {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case *Literal:
		cp := *v
		return &cp
	case *ColRef:
		cp := *v
		if !keepOrdinal {
			cp.Ordinal = -1
		}
		return &cp
	case *Binary:
		return &Binary{Op: v.Op, Left: cloneExpr(v.Left, keepOrdinal), Right: cloneExpr(v.Right, keepOrdinal)}
	case *Function:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = cloneExpr(a, keepOrdinal)
		}
		return &Function{Name: v.Name, Args: args}
	case *AggFunc:
		if v.Star {
			return &AggFunc{Kind: v.Kind, Star: true}
		}
		return &AggFunc{Kind: v.Kind, Arg: cloneExpr(v.Arg, keepOrdinal)}
	case *Subquery:
		return &Subquery{Plan: v.Plan.Clone(), BindContext: v.BindContext}
	case *ExprRef:
		return &ExprRef{Inner: cloneExpr(v.Inner, keepOrdinal), Ordinal: v.Ordinal}
	default:
		return e
	}
}

// Equal reports structural equality: same kind and all component fields
// equal. A ColRef's resolved Ordinal is never compared: equality ignores
// the resolved ordinal.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ExprKind() != b.ExprKind() {
		return false
	}
	switch av := a.(type) {
	case *Literal:
		bv := b.(*Literal)
		return av.Type == bv.Type && av.Value == bv.Value
	case *ColRef:
		bv := b.(*ColRef)
		if av.Alias != bv.Alias || av.OuterRef != bv.OuterRef {
			return false
		}
		if (av.Table == nil) != (bv.Table == nil) {
			return false
		}
		if av.Table != nil && !av.Table.TableRefEqual(bv.Table) {
			return false
		}
		return true
	case *Binary:
		bv := b.(*Binary)
		return av.Op == bv.Op && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *Function:
		bv := b.(*Function)
		if av.Name != bv.Name || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	case *AggFunc:
		bv := b.(*AggFunc)
		if av.Kind != bv.Kind || av.Star != bv.Star {
			return false
		}
		return Equal(av.Arg, bv.Arg)
	case *Subquery:
		bv := b.(*Subquery)
		return av.Plan.Equal(bv.Plan)
	case *ExprRef:
		bv := b.(*ExprRef)
		return av.Ordinal == bv.Ordinal && Equal(av.Inner, bv.Inner)
	default:
		return false
	}
}

// hashSeed/hashPrime are the FNV-1a 64-bit constants; Hash mixes the
// node-local signature (computed per kind via hashstructure) with each
// child's hash in traversal order, so Hash(e) depends on both content and
// shape the way Equal does.
const (
	hashSeed  uint64 = 14695981039346656037
	hashPrime uint64 = 1099511628211
)

func mixHash(h, x uint64) uint64 { return (h ^ x) * hashPrime }

func sigHash(v interface{}) uint64 {
	h, err := hashstructure.Hash(v, nil)
	if err != nil {
		return hashPrime
	}
	return h
}

// Hash computes a structural hash consistent with Equal: Equal(a, b) =>
// Hash(a) == Hash(b). The resolved Ordinal of a ColRef is excluded from the
// signature for the same reason Equal ignores it.
func Hash(e Expr) uint64 {
	if e == nil {
		return 0
	}
	h := mixHash(hashSeed, uint64(e.ExprKind()))
	switch v := e.(type) {
	case *Literal:
		h = mixHash(h, sigHash(struct {
			Value interface{}
			Type  ValueType
		}{v.Value, v.Type}))
	case *ColRef:
		tableName := ""
		if v.Table != nil {
			tableName = v.Table.TableRefName()
		}
		h = mixHash(h, sigHash(struct {
			Alias    string
			Table    string
			OuterRef bool
		}{v.Alias, tableName, v.OuterRef}))
	case *Binary:
		h = mixHash(h, uint64(v.Op))
	case *Function:
		h = mixHash(h, sigHash(v.Name))
	case *AggFunc:
		h = mixHash(h, sigHash(struct {
			Kind AggKind
			Star bool
		}{v.Kind, v.Star}))
	case *Subquery:
		h = mixHash(h, sigHash(v.Plan.String()))
	case *ExprRef:
		h = mixHash(h, uint64(v.Ordinal))
	}
	for _, c := range e.Children() {
		h = mixHash(h, Hash(c))
	}
	return h
}

// VisitEach walks e pre-order, calling visit on every node including e
// itself.
func VisitEach(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	for _, c := range e.Children() {
		VisitEach(c, visit)
	}
}

// VisitEachExists walks e pre-order, short-circuiting as soon as pred
// returns true. An ExprRef's Inner is descended into like a child. A
// subtree whose root's Kind is in stopKinds is not descended into (used to
// avoid re-examining an already-resolved ExprRef wrapper during validation).
func VisitEachExists(e Expr, pred func(Expr) bool, stopKinds []Kind) bool {
	if e == nil {
		return false
	}
	if pred(e) {
		return true
	}
	for _, sk := range stopKinds {
		if e.ExprKind() == sk {
			return false
		}
	}
	children := e.Children()
	if ref, ok := e.(*ExprRef); ok && ref.Inner != nil {
		children = []Expr{ref.Inner}
	}
	for _, c := range children {
		if VisitEachExists(c, pred, stopKinds) {
			return true
		}
	}
	return false
}

// SearchReplace returns a clone of e with every subtree structurally equal
// to target replaced by (a clone of) replacement.
func SearchReplace(e, target, replacement Expr) Expr {
	if e == nil {
		return nil
	}
	if Equal(e, target) {
		return Clone(replacement)
	}
	children := e.Children()
	if len(children) == 0 {
		return Clone(e)
	}
	newChildren := make([]Expr, len(children))
	for i, c := range children {
		newChildren[i] = SearchReplace(c, target, replacement)
	}
	out, err := e.WithChildren(newChildren...)
	if err != nil {
		return Clone(e)
	}
	return out
}

// TableRefs returns the set (first-seen order, deduplicated by identity) of
// table refs appearing in any non-outer ColRef of e.
func TableRefs(e Expr) []TableRef {
	seen := make(map[TableRef]bool)
	var out []TableRef
	VisitEach(e, func(x Expr) {
		cr, ok := x.(*ColRef)
		if !ok || cr.OuterRef || cr.Table == nil {
			return
		}
		if !seen[cr.Table] {
			seen[cr.Table] = true
			out = append(out, cr.Table)
		}
	})
	return out
}

// RetrieveAllColExpr returns every ColRef leaf in e, in pre-order.
func RetrieveAllColExpr(e Expr) []*ColRef {
	var out []*ColRef
	VisitEach(e, func(x Expr) {
		if cr, ok := x.(*ColRef); ok {
			out = append(out, cr)
		}
	})
	return out
}
