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

package physical_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/physical"
	"github.com/arzuschen/qpmodel/tableref"
)

func TestProfilingIsTransparentToChildrenAndEstimates(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i"})
	scanLogic := logical.NewScan(tbl)
	est := physical.EstimateLeaf(42)
	scan := physical.NewScanTable(scanLogic, est)

	wrapped := physical.NewProfiling(scan)
	require.Equal(t, physical.KindProfiling, wrapped.NodeKind())
	require.Equal(t, scan.Cost(), wrapped.Cost())
	require.Equal(t, scan.Cardinality(), wrapped.Cardinality())
	require.Empty(t, wrapped.Children())

	require.Same(t, scan, physical.Unwrap(wrapped))
}

func TestProfilingRecordsRowCount(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i"})
	scan := physical.NewScanTable(logical.NewScan(tbl), physical.EstimateLeaf(10))
	wrapped := physical.NewProfiling(scan)

	wrapped.SetProfile(&physical.Profile{NRows: 7})
	require.Equal(t, int64(7), wrapped.Profile().NRows)
	// The wrapped node itself is untouched; the mutable profile field
	// lives solely on the decorator.
	require.Nil(t, scan.Profile())
}

func TestSubqueryPlansRoundTrip(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i"})
	scan := physical.NewScanTable(logical.NewScan(tbl), physical.EstimateLeaf(10))
	require.Empty(t, scan.SubqueryPlans())

	inner := physical.NewScanTable(logical.NewScan(tableref.NewBaseTable("b", []string{"j"})), physical.EstimateLeaf(1))
	scan.SetSubqueryPlans([]physical.Node{inner})
	require.Len(t, scan.SubqueryPlans(), 1)
}
