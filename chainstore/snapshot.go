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

// schemaVersion is bumped whenever the on-disk snapshot layout changes
// incompatibly; a load that sees an unknown version is treated as
// Corrupt (spec §6).
const schemaVersion = 1

// snapshotSuffix is the wire shape of one suffixEntry.
type snapshotSuffix struct {
	Word   string `json:"word"`
	Weight uint64 `json:"weight"`
}

// snapshotPrefix is the wire shape of one PrefixEntry.
type snapshotPrefix struct {
	Prefix      string           `json:"prefix"`
	Suffixes    []snapshotSuffix `json:"suffixes"`
	TotalWeight uint64           `json:"totalWeight"`
}

// snapshotFile is the full on-disk JSON object for one tenant: a
// header (schema version, state size, tenant id) followed by the
// prefix->entry mapping (spec §6). AliasTables are never persisted.
type snapshotFile struct {
	Magic         string                    `json:"magic"`
	SchemaVersion int                       `json:"schemaVersion"`
	StateSize     int                       `json:"stateSize"`
	TenantID      string                    `json:"tenantId"`
	Prefixes      map[string]snapshotPrefix `json:"prefixes"`
}

const snapshotMagic = "MARKOVCHAIN"

func (p *PrefixEntry) toSnapshot() snapshotPrefix {
	suf := p.Enumerate()
	out := snapshotPrefix{
		Prefix:      p.Prefix(),
		Suffixes:    make([]snapshotSuffix, len(suf)),
		TotalWeight: p.TotalWeight(),
	}
	for i, s := range suf {
		out.Suffixes[i] = snapshotSuffix{Word: s.Token, Weight: s.Weight}
	}
	return out
}

func prefixEntryFromSnapshot(sp snapshotPrefix) *PrefixEntry {
	pe := NewPrefixEntry(sp.Prefix)
	pe.suffixes = make([]suffixEntry, len(sp.Suffixes))
	var total uint64
	for i, s := range sp.Suffixes {
		pe.suffixes[i] = suffixEntry{Token: s.Word, Weight: s.Weight}
		total += s.Weight
	}
	if len(pe.suffixes) > suffixMapThreshold {
		pe.buildIndexLocked()
	}
	pe.totalWeight = total
	return pe
}
