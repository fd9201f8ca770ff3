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

package logical

// Visitor mirrors go/ast's Visitor: Walk calls Visit(node); if the result
// is non-nil, Walk visits each child with the returned Visitor, then calls
// Visit(nil) to signal that node is done.
type Visitor interface {
	Visit(Node) Visitor
}

// Walk traverses n pre-order, following the go/ast.Walk convention: every
// node (including a closing nil per subtree) is passed to v.Visit.
func Walk(v Visitor, n Node) {
	if v = v.Visit(n); v == nil {
		return
	}
	if n == nil {
		return
	}
	for _, c := range n.Children() {
		Walk(v, c)
	}
	v.Visit(nil)
}

type inspector func(Node) bool

func (f inspector) Visit(n Node) Visitor {
	if f(n) {
		return f
	}
	return nil
}

// Inspect traverses n pre-order calling f on every node (and a closing nil
// per subtree, like Walk); traversal stops descending into a subtree as
// soon as f returns false for its root.
func Inspect(n Node, f func(Node) bool) {
	Walk(inspector(f), n)
}

// TransformUp rebuilds n bottom-up: f is applied to the already-rebuilt
// children of each node before being applied to the node itself, so f only
// ever sees replacement-ready subtrees.
func TransformUp(n Node, f func(Node) (Node, error)) (Node, error) {
	children := n.Children()
	if len(children) == 0 {
		return f(n)
	}
	newChildren := make([]Node, len(children))
	for i, c := range children {
		nc, err := TransformUp(c, f)
		if err != nil {
			return nil, err
		}
		newChildren[i] = nc
	}
	newNode, err := n.WithChildren(newChildren...)
	if err != nil {
		return nil, err
	}
	return f(newNode)
}
