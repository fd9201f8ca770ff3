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

package physical

import "math"

// DefaultTableCardinality is the placeholder row-count estimate used when
// no catalog statistics are available (catalog lookup is an external
// collaborator, out of scope here). It only needs to be stable across translations
// of the same input, not accurate.
const DefaultTableCardinality = 1000.0

// filterSelectivity, joinSelectivity and aggGroupFactor are the fixed
// selectivity constants the static cost model is computed against; a real
// optimizer would draw
// these from catalog statistics, out of scope here.
const (
	filterSelectivity = 0.33
	joinSelectivity    = 0.33
	aggGroupFactor     = 0.1
	distinctFactor     = 0.5
)

// EstimateLeaf produces the estimate for a leaf physical node (a scan or a
// Result) whose cardinality is not derived from any child.
func EstimateLeaf(cardinality float64) Estimate {
	return Estimate{Cost: cardinality, Cardinality: cardinality}
}

// EstimateFilter derives a Filter's estimate from its child's.
func EstimateFilter(child Estimate) Estimate {
	card := child.Cardinality * filterSelectivity
	return Estimate{Cost: child.Cost + child.Cardinality, Cardinality: card}
}

// EstimateHashAgg derives a HashAgg's estimate from its child's.
func EstimateHashAgg(child Estimate) Estimate {
	card := math.Max(1, child.Cardinality*aggGroupFactor)
	return Estimate{Cost: child.Cost + child.Cardinality, Cardinality: card}
}

// EstimateOrder derives an Order's estimate from its child's: an n*log(n)
// sort cost, cardinality unchanged.
func EstimateOrder(child Estimate) Estimate {
	n := math.Max(1, child.Cardinality)
	return Estimate{Cost: child.Cost + n*math.Log2(n+1), Cardinality: child.Cardinality}
}

// EstimateNLJoin derives a nested-loop join's estimate: the inner (right)
// side is scanned once per outer (left) row.
func EstimateNLJoin(left, right Estimate) Estimate {
	card := left.Cardinality * right.Cardinality * joinSelectivity
	return Estimate{Cost: left.Cost + left.Cardinality*right.Cost, Cardinality: card}
}

// EstimateHashJoin derives a hash join's estimate: build+probe is linear in
// both inputs.
func EstimateHashJoin(left, right Estimate) Estimate {
	card := left.Cardinality * right.Cardinality * joinSelectivity
	return Estimate{Cost: left.Cost + right.Cost + left.Cardinality + right.Cardinality, Cardinality: card}
}

// EstimateMarkJoin derives a mark/single-join's estimate: cardinality
// matches the left (preserved) side.
func EstimateMarkJoin(left, right Estimate) Estimate {
	return Estimate{Cost: left.Cost + right.Cost + left.Cardinality, Cardinality: left.Cardinality}
}

// EstimatePassThrough derives the estimate of a node whose cardinality is
// unchanged from its child's (FromQuery, Insert).
func EstimatePassThrough(child Estimate) Estimate {
	return Estimate{Cost: child.Cost + 1, Cardinality: child.Cardinality}
}

// EstimateDistinct derives Distinct's estimate from its child's.
func EstimateDistinct(child Estimate) Estimate {
	return Estimate{Cost: child.Cost + child.Cardinality, Cardinality: child.Cardinality * distinctFactor}
}

// EstimateLimit caps a child's cardinality at n (n < 0 means unbounded).
func EstimateLimit(child Estimate, n int64) Estimate {
	card := child.Cardinality
	if n >= 0 && float64(n) < card {
		card = float64(n)
	}
	return Estimate{Cost: child.Cost, Cardinality: card}
}

// EstimateOffset reduces a child's cardinality by n (floored at 0).
func EstimateOffset(child Estimate, n int64) Estimate {
	card := child.Cardinality - float64(n)
	if card < 0 {
		card = 0
	}
	return Estimate{Cost: child.Cost, Cardinality: card}
}
