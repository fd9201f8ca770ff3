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

package planprint

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arzuschen/qpmodel/expr"
	"github.com/arzuschen/qpmodel/logical"
	"github.com/arzuschen/qpmodel/physical"
	"github.com/arzuschen/qpmodel/planopts"
	"github.com/arzuschen/qpmodel/tableref"
	"github.com/arzuschen/qpmodel/translate"
)

func TestPrintIsDeterministic(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i", "j"})
	pred := expr.NewBinary(expr.OpGt, &expr.ColRef{Alias: "j", Table: tbl, Ordinal: 1}, expr.NewLiteral(int64(0), expr.TypeInt64))
	logic := logical.NewFilter(pred, logical.NewScan(tbl))
	logic.SetOutput([]expr.Expr{&expr.ColRef{Alias: "i", Table: tbl, Ordinal: 0}})

	phys, err := translate.ToPhysical(context.Background(), logic, planopts.Default())
	require.NoError(t, err)

	first := Sprint(phys)
	second := Sprint(phys)
	require.Equal(t, first, second)
	require.True(t, strings.HasPrefix(first, "Filter"))
	require.Contains(t, first, "Output: a.i#0")
	require.Contains(t, first, "-> ScanTable(a)")
}

func TestPrintIsTransparentToProfiling(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i"})
	logic := logical.NewScan(tbl)
	logic.SetOutput([]expr.Expr{&expr.ColRef{Alias: "i", Table: tbl, Ordinal: 0}})

	opts := planopts.Default()
	opts.ProfilingEnabled = true
	phys, err := translate.ToPhysical(context.Background(), logic, opts)
	require.NoError(t, err)
	require.Equal(t, physical.KindProfiling, phys.NodeKind())

	withProfiling := Sprint(phys)
	withoutProfiling := Sprint(physical.Unwrap(phys))
	require.Equal(t, withProfiling, withoutProfiling)
}

func TestPrintRendersProfiledRowCount(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i"})
	logic := logical.NewScan(tbl)
	phys, err := translate.ToPhysical(context.Background(), logic, planopts.Default())
	require.NoError(t, err)

	phys.SetProfile(&physical.Profile{NRows: 42})
	require.Contains(t, Sprint(phys), "(rows=42)")
}

// TestPrintRendersProfiledRowCountThroughWrapper mirrors the
// ProfilingEnabled configuration translate.ToPhysical actually produces:
// the executor only ever holds the *Profiling wrapper ToPhysical returns
// (translate/translate.go), and SetProfile on that wrapper records the row
// count on the decorator itself, never forwarding it to the wrapped node
// (physical.Profiling.SetProfile). Print must still render it.
func TestPrintRendersProfiledRowCountThroughWrapper(t *testing.T) {
	tbl := tableref.NewBaseTable("a", []string{"i"})
	logic := logical.NewScan(tbl)

	opts := planopts.Default()
	opts.ProfilingEnabled = true
	phys, err := translate.ToPhysical(context.Background(), logic, opts)
	require.NoError(t, err)
	require.Equal(t, physical.KindProfiling, phys.NodeKind())

	phys.SetProfile(&physical.Profile{NRows: 7})
	require.Nil(t, physical.Unwrap(phys).Profile(), "profile must live on the wrapper, not the wrapped node")
	require.Contains(t, Sprint(phys), "(rows=7)")
}
