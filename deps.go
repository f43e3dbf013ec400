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

//go:generate go run ./gen stdcrates

package bloat

import (
	"slices"
	"sort"
)

// DepsIndex maps symbol names to the crates whose archives define them.
// A symbol can map to several crates since generic instantiations are
// emitted into every crate that uses them.
type DepsIndex struct {
	symbols map[string][]string
}

// NewDepsIndex returns an empty index.
func NewDepsIndex() *DepsIndex {
	return &DepsIndex{symbols: make(map[string][]string)}
}

// Add records that crate defines symbol. Crates are kept in insertion
// order, without duplicates.
func (d *DepsIndex) Add(symbol, crate string) {
	crates := d.symbols[symbol]
	if slices.Contains(crates, crate) {
		return
	}
	d.symbols[symbol] = append(crates, crate)
}

// Lookup returns the crates known to define symbol.
func (d *DepsIndex) Lookup(symbol string) []string {
	if d == nil {
		return nil
	}
	return d.symbols[symbol]
}

// Len returns the number of distinct symbols in the index.
func (d *DepsIndex) Len() int {
	if d == nil {
		return 0
	}
	return len(d.symbols)
}

// lookupName returns the index entry for the complete name, falling back
// to the mangled name.
func (d *DepsIndex) lookupName(n SymbolName) []string {
	if crates := d.Lookup(n.Complete); len(crates) > 0 {
		return crates
	}
	if n.Mangled != "" && n.Mangled != n.Complete {
		return d.Lookup(n.Mangled)
	}
	return nil
}

// CrateSets holds the names of the dependency crates and standard library
// crates linked into a binary. Both lists are sorted.
type CrateSets struct {
	Deps []string
	Std  []string
}

// NewCrateSets sorts and deduplicates both lists and removes every
// dependency from the standard library list.
func NewCrateSets(deps, std []string) CrateSets {
	d := sortedUnique(deps)
	s := sortedUnique(std)
	s = slices.DeleteFunc(s, func(name string) bool {
		_, found := slices.BinarySearch(d, name)
		return found
	})
	return CrateSets{Deps: d, Std: s}
}

// IsDep reports whether name is a dependency crate.
func (c CrateSets) IsDep(name string) bool {
	_, found := slices.BinarySearch(c.Deps, name)
	return found
}

// IsStd reports whether name is a standard library crate.
func (c CrateSets) IsStd(name string) bool {
	_, found := slices.BinarySearch(c.Std, name)
	return found
}

// Known reports whether name is a dependency or standard library crate.
func (c CrateSets) Known(name string) bool {
	return c.IsDep(name) || c.IsStd(name)
}

func sortedUnique(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}
