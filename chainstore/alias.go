/*
Copyright (C) 2026  Markovchain Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package chainstore

import (
	"math/rand/v2"

	"github.com/launix-de/markovchain/errs"
)

// aliasCell is one entry of a Vose alias table: with probability
// threshold it yields primary, otherwise it yields the suffix at
// index alias.
type aliasCell struct {
	primary   int
	alias     int
	threshold float64
}

// AliasTable is an O(1)-per-draw weighted categorical sampler built
// from a suffix list by Vose's algorithm (spec §4.1). It holds indices
// into the PrefixEntry's suffix slice rather than copies of the
// suffixes, so it stays valid only as long as that slice is unchanged
// (PrefixEntry invalidates it on every mutation).
type AliasTable struct {
	cells []aliasCell
}

// NewAliasTable builds an AliasTable for the given positive weights.
// Construction is Θ(n) time and space. It fails with InvalidInput if
// the weights don't sum to something positive (which cannot happen
// given PrefixEntry's invariants, but is checked defensively).
func NewAliasTable(weights []uint64) (*AliasTable, error) {
	n := len(weights)
	if n == 0 {
		return &AliasTable{}, nil
	}
	var total float64
	for _, w := range weights {
		total += float64(w)
	}
	if total <= 0 {
		return nil, errs.New(errs.InvalidInput, "alias table: total weight must be positive")
	}

	cells := make([]aliasCell, n)
	probs := make([]float64, n)
	for i, w := range weights {
		probs[i] = float64(n) * float64(w) / total
	}

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, p := range probs {
		if p < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		cells[s] = aliasCell{primary: s, alias: l, threshold: probs[s]}
		probs[l] = probs[l] - (1 - probs[s])
		if probs[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	// Leftover buckets: floating point drift leaves items in whichever
	// bucket didn't empty first; they become certain (threshold=1).
	for _, l := range large {
		cells[l] = aliasCell{primary: l, alias: l, threshold: 1}
	}
	for _, s := range small {
		cells[s] = aliasCell{primary: s, alias: s, threshold: 1}
	}

	return &AliasTable{cells: cells}, nil
}

// Len reports the number of suffixes the table was built over.
func (a *AliasTable) Len() int {
	if a == nil {
		return 0
	}
	return len(a.cells)
}

// Sample draws one index in [0,n) via two uniform draws: a cell index
// and a coin toss against that cell's threshold.
func (a *AliasTable) Sample() int {
	n := len(a.cells)
	if n == 0 {
		return -1
	}
	i := rand.IntN(n)
	cell := a.cells[i]
	if rand.Float64() < cell.threshold {
		return cell.primary
	}
	return cell.alias
}
