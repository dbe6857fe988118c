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
	"sync"

	"github.com/launix-de/markovchain/errs"
)

// suffixMapThreshold is the suffix count above which PrefixEntry keeps
// an auxiliary hash index alongside its flat list: below it, a linear
// scan over a short slice beats a map (spec §4.2).
const suffixMapThreshold = 32

// suffixEntry is a (token, weight) pair. Weight is a positive integer
// observation count.
type suffixEntry struct {
	Token  string `json:"word"`
	Weight uint64 `json:"weight"`
}

// PrefixEntry accumulates the suffixes observed after one prefix and
// lazily maintains a weighted sampler over them (spec §4.2).
//
// suffixes is always in first-insertion order (required for
// deterministic snapshot writes and export); index is a token->slice
// index map used only once len(suffixes) exceeds suffixMapThreshold,
// mirroring the teacher's "hybrid flat list until k>32" storage shape.
type PrefixEntry struct {
	mu          sync.RWMutex
	prefix      string
	suffixes    []suffixEntry
	index       map[string]int
	totalWeight uint64
	alias       *AliasTable
	aliasValid  bool
}

// NewPrefixEntry creates an empty accumulator for the given canonical
// prefix string.
func NewPrefixEntry(prefix string) *PrefixEntry {
	return &PrefixEntry{prefix: prefix}
}

// Prefix returns the canonical prefix string this entry accumulates.
func (p *PrefixEntry) Prefix() string {
	return p.prefix
}

// Insert merges (token, weight) into the suffix list: adds to an
// existing entry or appends a new one, and invalidates the alias
// table. weight must be >= 1.
func (p *PrefixEntry) Insert(token string, weight uint64) error {
	if token == "" {
		return errs.New(errs.InvalidInput, "suffix token must not be empty")
	}
	if weight < 1 {
		return errs.New(errs.InvalidInput, "suffix weight must be >= 1")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertLocked(token, weight)
	return nil
}

func (p *PrefixEntry) insertLocked(token string, weight uint64) {
	if idx, ok := p.findLocked(token); ok {
		p.suffixes[idx].Weight += weight
	} else {
		p.suffixes = append(p.suffixes, suffixEntry{Token: token, Weight: weight})
		if p.index != nil {
			p.index[token] = len(p.suffixes) - 1
		} else if len(p.suffixes) > suffixMapThreshold {
			p.buildIndexLocked()
		}
	}
	p.totalWeight += weight
	p.aliasValid = false
	p.alias = nil
}

func (p *PrefixEntry) findLocked(token string) (int, bool) {
	if p.index != nil {
		idx, ok := p.index[token]
		return idx, ok
	}
	for i, s := range p.suffixes {
		if s.Token == token {
			return i, true
		}
	}
	return 0, false
}

func (p *PrefixEntry) buildIndexLocked() {
	p.index = make(map[string]int, len(p.suffixes))
	for i, s := range p.suffixes {
		p.index[s.Token] = i
	}
}

// RemoveSuffix removes one suffix token entirely, if present,
// recomputing totalWeight and invalidating the alias table. Reports
// whether it was present.
func (p *PrefixEntry) RemoveSuffix(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.findLocked(token)
	if !ok {
		return false
	}
	p.totalWeight -= p.suffixes[idx].Weight
	p.suffixes = append(p.suffixes[:idx], p.suffixes[idx+1:]...)
	if p.index != nil {
		p.buildIndexLocked()
	}
	p.aliasValid = false
	p.alias = nil
	return true
}

// Count returns the number of distinct suffixes.
func (p *PrefixEntry) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.suffixes)
}

// TotalWeight returns the sum of suffix weights.
func (p *PrefixEntry) TotalWeight() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalWeight
}

// Enumerate yields suffixes in insertion order, for persistence and
// import/export.
func (p *PrefixEntry) Enumerate() []suffixEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]suffixEntry, len(p.suffixes))
	copy(out, p.suffixes)
	return out
}

// Sample draws one suffix token weighted by observation count. It
// returns ("", false) if there are no suffixes. A single-suffix entry
// is deterministic and never builds an alias table (spec §8 boundary
// behavior). A multi-suffix entry rebuilds its AliasTable lazily, on
// the first sample after any mutation, using a double-checked
// upgrade from a read lock to a write lock so unrelated prefixes'
// samplers are never blocked by this rebuild (spec §5).
func (p *PrefixEntry) Sample() (string, bool) {
	p.mu.RLock()
	n := len(p.suffixes)
	if n == 0 {
		p.mu.RUnlock()
		return "", false
	}
	if n == 1 {
		tok := p.suffixes[0].Token
		p.mu.RUnlock()
		return tok, true
	}
	if p.aliasValid {
		idx := p.alias.Sample()
		tok := p.suffixes[idx].Token
		p.mu.RUnlock()
		return tok, true
	}
	p.mu.RUnlock()

	// Upgrade: rebuild under write lock, double-checking invalidation.
	p.mu.Lock()
	if !p.aliasValid {
		weights := make([]uint64, len(p.suffixes))
		for i, s := range p.suffixes {
			weights[i] = s.Weight
		}
		table, err := NewAliasTable(weights)
		if err == nil {
			p.alias = table
			p.aliasValid = true
		}
	}
	alias, suffixes := p.alias, p.suffixes
	p.mu.Unlock()

	if alias == nil {
		return "", false
	}
	idx := alias.Sample()
	return suffixes[idx].Token, true
}

// HasAlias reports whether a valid alias table is currently cached
// (used by tests asserting spec §8 invariant 2).
func (p *PrefixEntry) HasAlias() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aliasValid
}
