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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arzuschen/qpmodel/tableref"
)

type visitorFunc func(Node) Visitor

func (f visitorFunc) Visit(n Node) Visitor { return f(n) }

func TestWalk(t *testing.T) {
	t1 := NewScan(tableref.NewBaseTable("foo", nil))
	t2 := NewScan(tableref.NewBaseTable("bar", nil))
	join := NewJoin(Cross, t1, t2, nil)
	filter := NewFilter(nil, join)
	project := NewOrder(filter, nil, nil) // stand-in unary wrapper

	var visited []Node
	var f visitorFunc
	f = func(n Node) Visitor {
		visited = append(visited, n)
		return f
	}

	Walk(f, project)

	require.Equal(t,
		[]Node{project, filter, join, t1, nil, t2, nil, nil, nil, nil},
		visited,
	)

	visited = nil
	f = func(n Node) Visitor {
		visited = append(visited, n)
		if _, ok := n.(*Join); ok {
			return nil
		}
		return f
	}

	Walk(f, project)

	require.Equal(t,
		[]Node{project, filter, join, nil, nil},
		visited,
	)
}

func TestInspect(t *testing.T) {
	t1 := NewScan(tableref.NewBaseTable("foo", nil))
	t2 := NewScan(tableref.NewBaseTable("bar", nil))
	join := NewJoin(Cross, t1, t2, nil)
	filter := NewFilter(nil, join)
	project := NewOrder(filter, nil, nil)

	var visited []Node
	Inspect(project, func(n Node) bool {
		visited = append(visited, n)
		return true
	})

	require.Equal(t,
		[]Node{project, filter, join, t1, nil, t2, nil, nil, nil, nil},
		visited,
	)
}

func TestTransformUpReplacesLeaf(t *testing.T) {
	unresolved := NewScan(tableref.NewBaseTable("unresolved", nil))
	resolved := NewScan(tableref.NewBaseTable("resolved", []string{"a"}))
	p := NewFilter(nil, unresolved)

	out, err := TransformUp(p, func(n Node) (Node, error) {
		if s, ok := n.(*Scan); ok && s.Table.TableRefName() == "unresolved" {
			return resolved, nil
		}
		return n, nil
	})
	require.NoError(t, err)

	expected := NewFilter(nil, resolved)
	require.True(t, out.Equal(expected))
}
