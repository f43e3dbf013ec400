// This file is part of GoRE.
//
// Copyright (C) 2019-2024 GoRE Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package bloat

import (
	"cmp"
	"slices"
)

// rawSymbol is a symbol table entry from a format that does not record
// symbol sizes.
type rawSymbol struct {
	name    string
	address uint64
	keep    bool
}

// sortWithSentinel adds a sentinel entry at end, the first address past the
// code section, and sorts by address. The sentinel never has keep set and
// sorts after real entries at the same address.
func sortWithSentinel(syms []rawSymbol, end uint64) []rawSymbol {
	syms = append(syms, rawSymbol{address: end})
	slices.SortStableFunc(syms, func(a, b rawSymbol) int {
		return cmp.Compare(a.address, b.address)
	})
	return syms
}

// nextDistinctSize returns the distance from the entry at i to the first
// following entry with a different address. addrs must be sorted. The
// second result is false when no such entry exists.
func nextDistinctSize(addrs []uint64, i int) (uint64, bool) {
	for j := i + 1; j < len(addrs); j++ {
		if addrs[j] != addrs[i] {
			return addrs[j] - addrs[i], true
		}
	}
	return 0, false
}

// synthesizeSizes sizes every kept entry of the sorted, sentinel terminated
// list by the next distinct address. Entries that share an address all get
// the same size; address dedup later keeps the first of them.
func synthesizeSizes(sorted []rawSymbol) []Symbol {
	addrs := make([]uint64, len(sorted))
	for i, s := range sorted {
		addrs[i] = s.address
	}

	var out []Symbol
	for i, s := range sorted {
		if !s.keep {
			continue
		}
		size, ok := nextDistinctSize(addrs, i)
		if !ok || size == 0 {
			continue
		}
		out = append(out, Symbol{
			Name:    DemangleSymbol(s.name),
			Address: s.address,
			Size:    size,
		})
	}
	return out
}

// dedupByAddress keeps the first symbol for each address. The result is
// ordered by address.
func dedupByAddress(syms []Symbol) []Symbol {
	slices.SortStableFunc(syms, func(a, b Symbol) int {
		return cmp.Compare(a.Address, b.Address)
	})
	return slices.CompactFunc(syms, func(a, b Symbol) bool {
		return a.Address == b.Address
	})
}
