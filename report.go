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
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// FunctionReport lists the largest functions of a binary.
type FunctionReport struct {
	Functions []Function
	// Matched is the number of functions that passed the filter.
	Matched int
	// Total is the number of functions in the binary.
	Total int
	// FilteredOutSize is the size of the matched functions that were cut
	// by the limit.
	FilteredOutSize uint64
	// Filtered is true when a filter was applied.
	Filtered bool
	// FilterWarning is set when the filter could not be used as given.
	FilterWarning error
}

// Others returns the number of matched functions not in the report.
func (r *FunctionReport) Others() int {
	return r.Matched - len(r.Functions)
}

// MatchedSize returns the size of all matched functions.
func (r *FunctionReport) MatchedSize() uint64 {
	total := r.FilteredOutSize
	for _, f := range r.Functions {
		total += f.Size
	}
	return total
}

// CrateReport lists crates by the total size of their functions.
type CrateReport struct {
	Crates []CrateSize
	// FilteredOutSize is the size of the crates cut by the limit.
	FilteredOutSize uint64
	// FilteredOutCount is the number of crates cut by the limit.
	FilteredOutCount int
}

type functionFilter struct {
	crate string
	re    *regexp.Regexp
	sub   string
}

func (f *functionFilter) match(a Attribution, name string) bool {
	switch {
	case f == nil:
		return true
	case f.crate != "":
		return a.Crate == f.crate
	case f.re != nil:
		return f.re.MatchString(name)
	default:
		return strings.Contains(name, f.sub)
	}
}

// newFilter interprets Config.Filter. A known crate name filters by crate,
// anything else is used as a regular expression, or as a plain substring if
// it does not compile.
func (r *Resolver) newFilter() (*functionFilter, error) {
	text := r.Config.Filter
	if text == "" {
		return nil, nil
	}
	if r.Sets.Known(text) || text == StdCrate || text == UnknownCrate {
		return &functionFilter{crate: r.FoldStd(text)}, nil
	}
	re, err := regexp.Compile(text)
	if err != nil {
		return &functionFilter{sub: text}, fmt.Errorf("filter %q is not a known crate or a valid regexp, matching it as a substring: %w", text, err)
	}
	return &functionFilter{re: re}, nil
}

// Functions attributes syms and returns the largest ones, limited by
// Config.N and filtered by Config.Filter.
func (r *Resolver) Functions(syms []Symbol) FunctionReport {
	sorted := slices.Clone(syms)
	slices.SortStableFunc(sorted, func(a, b Symbol) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Name.Complete, b.Name.Complete)
	})

	filter, warn := r.newFilter()
	report := FunctionReport{
		Total:         len(syms),
		Filtered:      filter != nil,
		FilterWarning: warn,
	}

	for _, sym := range sorted {
		a := r.Resolve(sym.Name)
		name := sym.Name.Trimmed
		if r.Config.FullFn {
			name = sym.Name.Complete
		}
		if !filter.match(a, name) {
			continue
		}

		report.Matched++
		if r.Config.N == 0 || len(report.Functions) < r.Config.N {
			report.Functions = append(report.Functions, Function{
				Name:    name,
				Crate:   a.Crate,
				Exact:   a.Exact,
				Size:    sym.Size,
				Address: sym.Address,
			})
		} else {
			report.FilteredOutSize += sym.Size
		}
	}
	return report
}

// CrateSizes sums function sizes per crate and returns the largest crates,
// limited by Config.N.
func (r *Resolver) CrateSizes(syms []Symbol) CrateReport {
	sizes := make(map[string]uint64)
	for _, sym := range syms {
		sizes[r.Resolve(sym.Name).Crate] += sym.Size
	}

	list := make([]CrateSize, 0, len(sizes))
	for name, size := range sizes {
		list = append(list, CrateSize{Name: name, Size: size})
	}
	slices.SortFunc(list, func(a, b CrateSize) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	n := r.Config.N
	if n == 0 || n > len(list) {
		n = len(list)
	}
	report := CrateReport{Crates: list[:n], FilteredOutCount: len(list) - n}
	for _, c := range list[n:] {
		report.FilteredOutSize += c.Size
	}
	return report
}
