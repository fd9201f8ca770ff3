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

// Package tableref implements the named-source variants:
// BaseTable, SubqueryRef and ExternalFile. Each exposes a lazily
// materialized list of output ColRef expressions and outer-reference
// bookkeeping used to keep correlated columns alive across a plan boundary.
package tableref

import (
	"fmt"

	"github.com/arzuschen/qpmodel/expr"
)

// Kind tags the variant of a TableRef.
type Kind int

const (
	KindBaseTable Kind = iota
	KindSubqueryRef
	KindExternalFile
)

// TableRef is the full contract a named source exposes to the planner,
// extending the minimal expr.TableRef identity interface every ColRef
// holds a reference to.
type TableRef interface {
	expr.TableRef
	RefKind() Kind
	// AllColumnRefs returns this table's logical output as an ordered,
	// lazily materialized list of ColRef expressions.
	AllColumnRefs() []*expr.ColRef
	// AddOuterRefsToOutput augments a projection list with any outer
	// refs that must survive across this table ref's boundary (used for
	// correlated scans).
	AddOuterRefsToOutput(list []expr.Expr) []expr.Expr
	Clone() TableRef
}

// BaseTable is a named source table resolved against the catalog.
// The catalog lookup itself is out of scope; BaseTable only needs
// the column names the catalog returned.
type BaseTable struct {
	Name      string
	AliasName string
	Columns   []string
	OuterRefs []*expr.ColRef

	colCache []*expr.ColRef
}

func NewBaseTable(name string, columns []string) *BaseTable {
	return &BaseTable{Name: name, Columns: columns}
}

func (b *BaseTable) RefKind() Kind { return KindBaseTable }

func (b *BaseTable) TableRefName() string {
	if b.AliasName != "" {
		return b.AliasName
	}
	return b.Name
}

func (b *BaseTable) TableRefEqual(other expr.TableRef) bool {
	o, ok := other.(*BaseTable)
	if !ok {
		return false
	}
	return o.Name == b.Name && o.AliasName == b.AliasName
}

func (b *BaseTable) AllColumnRefs() []*expr.ColRef {
	if b.colCache == nil {
		b.colCache = make([]*expr.ColRef, len(b.Columns))
		for i, c := range b.Columns {
			b.colCache[i] = expr.NewColRef(c, b)
		}
	}
	return b.colCache
}

func (b *BaseTable) AddOuterRefsToOutput(list []expr.Expr) []expr.Expr {
	return addOuterRefs(list, b.OuterRefs)
}

func (b *BaseTable) Clone() TableRef {
	cp := *b
	cp.colCache = nil
	cp.Columns = append([]string(nil), b.Columns...)
	return &cp
}

func (b *BaseTable) String() string {
	if b.AliasName != "" {
		return fmt.Sprintf("%s AS %s", b.Name, b.AliasName)
	}
	return b.Name
}

// SubqueryRef is a derived table: a SELECT used in FROM position, aliased.
// Plan is the nested query's (already owned) logical plan root; binding
// that plan root happens one layer up in package logical, this type only
// needs its exposed output column names.
type SubqueryRef struct {
	AliasName   string
	Plan        expr.LogicalPlan
	BindContext *expr.BindContext
	OutputCols  []string
	OuterRefs   []*expr.ColRef

	colCache []*expr.ColRef
}

func NewSubqueryRef(alias string, plan expr.LogicalPlan, outputCols []string, bc *expr.BindContext) *SubqueryRef {
	return &SubqueryRef{AliasName: alias, Plan: plan, OutputCols: outputCols, BindContext: bc}
}

func (s *SubqueryRef) RefKind() Kind            { return KindSubqueryRef }
func (s *SubqueryRef) TableRefName() string     { return s.AliasName }
func (s *SubqueryRef) TableRefEqual(other expr.TableRef) bool {
	o, ok := other.(*SubqueryRef)
	if !ok {
		return false
	}
	return o.AliasName == s.AliasName && o.Plan.Equal(s.Plan)
}

func (s *SubqueryRef) AllColumnRefs() []*expr.ColRef {
	if s.colCache == nil {
		s.colCache = make([]*expr.ColRef, len(s.OutputCols))
		for i, c := range s.OutputCols {
			s.colCache[i] = expr.NewColRef(c, s)
		}
	}
	return s.colCache
}

func (s *SubqueryRef) AddOuterRefsToOutput(list []expr.Expr) []expr.Expr {
	return addOuterRefs(list, s.OuterRefs)
}

func (s *SubqueryRef) Clone() TableRef {
	cp := *s
	cp.colCache = nil
	cp.Plan = s.Plan.Clone()
	cp.OutputCols = append([]string(nil), s.OutputCols...)
	return &cp
}

func (s *SubqueryRef) String() string { return fmt.Sprintf("(%s) AS %s", s.Plan, s.AliasName) }

// ExternalFile is a scan over an external file, whose wire format is out of
// scope; this core only needs the declared schema to expose
// column refs and route the file through physical translation.
type ExternalFile struct {
	Filename  string
	AliasName string
	Schema    []string
	OuterRefs []*expr.ColRef

	colCache []*expr.ColRef
}

func NewExternalFile(filename string, schema []string) *ExternalFile {
	return &ExternalFile{Filename: filename, Schema: schema}
}

func (f *ExternalFile) RefKind() Kind { return KindExternalFile }

func (f *ExternalFile) TableRefName() string {
	if f.AliasName != "" {
		return f.AliasName
	}
	return f.Filename
}

func (f *ExternalFile) TableRefEqual(other expr.TableRef) bool {
	o, ok := other.(*ExternalFile)
	if !ok {
		return false
	}
	return o.Filename == f.Filename && o.AliasName == f.AliasName
}

func (f *ExternalFile) AllColumnRefs() []*expr.ColRef {
	if f.colCache == nil {
		f.colCache = make([]*expr.ColRef, len(f.Schema))
		for i, c := range f.Schema {
			f.colCache[i] = expr.NewColRef(c, f)
		}
	}
	return f.colCache
}

func (f *ExternalFile) AddOuterRefsToOutput(list []expr.Expr) []expr.Expr {
	return addOuterRefs(list, f.OuterRefs)
}

func (f *ExternalFile) Clone() TableRef {
	cp := *f
	cp.colCache = nil
	cp.Schema = append([]string(nil), f.Schema...)
	return &cp
}

func (f *ExternalFile) String() string { return fmt.Sprintf("FILE(%s)", f.Filename) }

func addOuterRefs(list []expr.Expr, outer []*expr.ColRef) []expr.Expr {
	for _, o := range outer {
		found := false
		for _, e := range list {
			if expr.Equal(e, o) {
				found = true
				break
			}
		}
		if !found {
			list = append(list, o)
		}
	}
	return list
}
