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

// Package memo implements the hole left in LogicNode for a
// Cascades-style search-based optimizer: a Group owns an ordered list of
// candidate logical.Node members plus a canonical index, and a MemoRef
// lets that group membership appear in an otherwise ordinary plan tree
// without committing to one member. No cost-based search is implemented
// here (cost-based join reordering at full generality is out of scope);
// the type exists so package translate never needs a type
// switch on "is this a memo build or a direct build".
package memo

import (
	uuid "github.com/satori/go.uuid"

	"github.com/arzuschen/qpmodel/logical"
)

// Group is a set of logically-equivalent plan alternatives sharing one
// output schema, identified by a stable id usable across the life of an
// optimizer session: a group's lifetime is bounded by the enclosing
// optimizer session.
type Group struct {
	ID      uuid.UUID
	Members []logical.Node

	canonical int
}

// NewGroup creates a group around a single initial member, canonical by
// default.
func NewGroup(member logical.Node) *Group {
	return &Group{ID: uuid.NewV4(), Members: []logical.Node{member}}
}

// AddMember appends an equivalent alternative to the group. It does not
// change which member is canonical.
func (g *Group) AddMember(n logical.Node) {
	g.Members = append(g.Members, n)
}

// SetCanonical selects which member ToPhysical (and MemoSign) should treat
// as the group's representative.
func (g *Group) SetCanonical(idx int) {
	if idx >= 0 && idx < len(g.Members) {
		g.canonical = idx
	}
}

// Canonical returns the group's current canonical member, satisfying
// logical.MemoGroupRef.
func (g *Group) Canonical() logical.Node {
	return g.Members[g.canonical]
}

// MemoSign delegates to the canonical member's own String(), satisfying
// logical.MemoGroupRef; equality of two MemoRefs compares this signature
// rather than the full member list, so group membership can change (new
// alternatives being added by a search rule) without invalidating an
// already-built equality check against an unrelated plan.
func (g *Group) MemoSign() string {
	return g.Canonical().String()
}

var _ logical.MemoGroupRef = (*Group)(nil)

// WrapMemoRef is a convenience constructor for logical.NewMemoRef(g),
// spelled out here since logical does not (and must not) import memo.
func WrapMemoRef(g *Group) *logical.MemoRef {
	return logical.NewMemoRef(g)
}
