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

package tableref

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arzuschen/qpmodel/expr"
)

func TestBaseTableAllColumnRefs(t *testing.T) {
	tbl := NewBaseTable("orders", []string{"o_orderkey", "o_orderdate"})

	cols := tbl.AllColumnRefs()
	require.Len(t, cols, 2)
	require.Equal(t, "o_orderkey", cols[0].Alias)
	require.Same(t, tbl, cols[0].Table.(*BaseTable))

	// cached
	require.Same(t, cols[0], tbl.AllColumnRefs()[0])
}

func TestBaseTableAliasName(t *testing.T) {
	tbl := &BaseTable{Name: "orders", AliasName: "o"}
	require.Equal(t, "o", tbl.TableRefName())
}

func TestAddOuterRefsToOutputDedups(t *testing.T) {
	outerCol := expr.NewColRef("o_orderkey", nil)
	outerCol.OuterRef = true

	tbl := &BaseTable{Name: "lineitem", OuterRefs: []*expr.ColRef{outerCol}}

	list := tbl.AddOuterRefsToOutput(nil)
	require.Len(t, list, 1)

	// adding again must not duplicate
	list = tbl.AddOuterRefsToOutput(list)
	require.Len(t, list, 1)
}

func TestTableRefEqualDistinguishesAlias(t *testing.T) {
	a := &BaseTable{Name: "t"}
	b := &BaseTable{Name: "t", AliasName: "t2"}
	require.False(t, a.TableRefEqual(b))
	require.True(t, a.TableRefEqual(&BaseTable{Name: "t"}))
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := NewBaseTable("orders", []string{"a", "b"})
	clone := tbl.Clone().(*BaseTable)
	clone.Columns[0] = "z"
	require.Equal(t, "a", tbl.Columns[0])
}
