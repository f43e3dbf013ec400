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
	"testing"

	"github.com/stretchr/testify/assert"
)

func reportSymbols() []Symbol {
	return []Symbol{
		{Name: DemangleSymbol("_ZN7mycrate4main17h0123456789abcdefE"), Address: 0x00, Size: 0x40},
		{Name: legacy("core::fmt::write"), Address: 0x40, Size: 0x30},
		{Name: legacy("serde::de::parse"), Address: 0x70, Size: 0x30},
		{Name: legacy("alloc::vec::Vec<T>::push"), Address: 0xa0, Size: 0x10},
		{Name: DemangleSymbol("memcpy"), Address: 0xb0, Size: 0x08},
	}
}

func TestFunctionsOrderAndLimit(t *testing.T) {
	assert := assert.New(t)
	r := NewResolver(nil, testSets, AttributionConfig{N: 3})

	report := r.Functions(reportSymbols())
	assert.Equal(5, report.Total)
	assert.Equal(5, report.Matched)
	assert.False(report.Filtered)
	assert.NoError(report.FilterWarning)

	if assert.Len(report.Functions, 3) {
		assert.Equal("mycrate::main", report.Functions[0].Name)
		assert.Equal("mycrate", report.Functions[0].Crate)
		// Equal sizes are ordered by name.
		assert.Equal("core::fmt::write", report.Functions[1].Name)
		assert.Equal(StdCrate, report.Functions[1].Crate)
		assert.Equal("serde::de::parse", report.Functions[2].Name)
	}
	assert.Equal(2, report.Others())
	assert.Equal(uint64(0x18), report.FilteredOutSize)
	assert.Equal(uint64(0xb8), report.MatchedSize())
}

func TestFunctionsFullName(t *testing.T) {
	r := NewResolver(nil, testSets, AttributionConfig{FullFn: true, N: 1})
	report := r.Functions(reportSymbols())
	if assert.Len(t, report.Functions, 1) {
		assert.Equal(t, "mycrate::main::h0123456789abcdef", report.Functions[0].Name)
	}
}

func TestFunctionsFilter(t *testing.T) {
	const tupleDebug = "<(A, B) as core::fmt::Debug>::fmt"
	syms := append(reportSymbols(), Symbol{Name: legacy(tupleDebug), Address: 0xb8, Size: 0x04})

	tests := []struct {
		name    string
		filter  string
		split   bool
		names   []string
		warning bool
	}{
		{"crate", "serde", false, []string{"serde::de::parse"}, false},
		{"std_crate_folded", "core", false, []string{"core::fmt::write", "alloc::vec::Vec<T>::push", tupleDebug}, false},
		{"std_crate_split", "core", true, []string{"core::fmt::write", tupleDebug}, false},
		{"std_label", "std", false, []string{"core::fmt::write", "alloc::vec::Vec<T>::push", tupleDebug}, false},
		{"unknown", UnknownCrate, false, []string{"memcpy"}, false},
		{"regexp", "^(memcpy|serde::.*)$", false, []string{"serde::de::parse", "memcpy"}, false},
		{"regexp_literal", "Vec<T", false, []string{"alloc::vec::Vec<T>::push"}, false},
		{"invalid_regexp", "(A, B", false, []string{tupleDebug}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)
			r := NewResolver(nil, testSets, AttributionConfig{Filter: test.filter, SplitStd: test.split})

			report := r.Functions(syms)
			assert.True(report.Filtered)
			if test.warning {
				assert.Error(report.FilterWarning)
			} else {
				assert.NoError(report.FilterWarning)
			}

			var names []string
			for _, f := range report.Functions {
				names = append(names, f.Name)
			}
			assert.Equal(test.names, names)
			assert.Equal(len(test.names), report.Matched)
		})
	}
}

func TestCrateSizes(t *testing.T) {
	assert := assert.New(t)

	r := NewResolver(nil, testSets, AttributionConfig{})
	report := r.CrateSizes(reportSymbols())
	assert.Equal([]CrateSize{
		{Name: "mycrate", Size: 0x40},
		{Name: "std", Size: 0x40},
		{Name: "serde", Size: 0x30},
		{Name: UnknownCrate, Size: 0x08},
	}, report.Crates)
	assert.Zero(report.FilteredOutCount)

	r = NewResolver(nil, testSets, AttributionConfig{SplitStd: true, N: 2})
	report = r.CrateSizes(reportSymbols())
	assert.Equal([]CrateSize{
		{Name: "mycrate", Size: 0x40},
		{Name: "core", Size: 0x30},
	}, report.Crates)
	assert.Equal(3, report.FilteredOutCount)
	assert.Equal(uint64(0x30+0x10+0x08), report.FilteredOutSize)
}

func TestFunctionsCrateFilterIncludesGuesses(t *testing.T) {
	assert := assert.New(t)

	syms := []Symbol{
		{Name: legacy("mycrate::run"), Address: 0x00, Size: 0x20},
		{Name: legacy("<mycrate::Config as core::fmt::Debug>::fmt"), Address: 0x20, Size: 0x10},
		{Name: legacy("serde::de::parse"), Address: 0x30, Size: 0x10},
	}
	r := NewResolver(nil, testSets, AttributionConfig{Filter: "mycrate"})

	report := r.Functions(syms)
	if assert.Len(report.Functions, 2) {
		assert.Equal("mycrate", report.Functions[0].DisplayCrate())
		// The guessed impl is listed as mycrate? but still belongs to mycrate.
		assert.Equal("mycrate?", report.Functions[1].DisplayCrate())
	}
	assert.Equal(2, report.Matched)
}
