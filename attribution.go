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

const (
	// UnknownCrate is reported for symbols that can't be attributed.
	UnknownCrate = "[Unknown]"
	// StdCrate is the label all standard library crates are folded into.
	StdCrate = "std"
	// inexactMarker is appended to guessed crate names.
	inexactMarker = "?"
)

// AttributionConfig controls attribution and report generation.
type AttributionConfig struct {
	// SplitStd keeps standard library crates apart instead of folding
	// them into "std".
	SplitStd bool
	// FullFn reports complete names, including the hash.
	FullFn bool
	// Filter restricts the function report to a crate, or to names matching
	// a regular expression.
	Filter string
	// N limits the number of reported entries. 0 means no limit.
	N int
}

// Attribution is the crate a symbol was attributed to. Exact is false when
// the crate is a guess.
type Attribution struct {
	Crate string
	Exact bool
}

// Display returns the crate name with a trailing "?" for guesses.
func (a Attribution) Display() string {
	if a.Exact {
		return a.Crate
	}
	return a.Crate + inexactMarker
}

// Resolver attributes symbols to crates. It holds no mutable state, so
// Resolve returns the same answer for the same input.
type Resolver struct {
	Index  *DepsIndex
	Sets   CrateSets
	Config AttributionConfig
}

// NewResolver returns a resolver. A nil index behaves like an empty one.
func NewResolver(index *DepsIndex, sets CrateSets, cfg AttributionConfig) *Resolver {
	if index == nil {
		index = NewDepsIndex()
	}
	return &Resolver{Index: index, Sets: sets, Config: cfg}
}

// Resolve returns the crate that defines sym. It never fails; symbols
// that can't be attributed go to UnknownCrate.
func (r *Resolver) Resolve(sym SymbolName) Attribution {
	a := r.resolve(sym)
	if !r.known(a.Crate) {
		// Never report a crate the binary doesn't link.
		a = Attribution{Crate: UnknownCrate, Exact: true}
	}
	a.Crate = r.FoldStd(a.Crate)
	return a
}

// FoldStd maps standard library crates to StdCrate unless SplitStd is set.
func (r *Resolver) FoldStd(crate string) string {
	if !r.Config.SplitStd && r.Sets.IsStd(crate) {
		return StdCrate
	}
	return crate
}

func (r *Resolver) known(crate string) bool {
	return crate == UnknownCrate || crate == StdCrate || r.Sets.Known(crate)
}

func (r *Resolver) resolve(sym SymbolName) Attribution {
	// A symbol listed by an archive belongs to the first crate that lists it.
	if crates := r.Index.lookupName(sym); len(crates) > 0 {
		return Attribution{Crate: crates[0], Exact: true}
	}

	name := sym.Complete
	switch sym.Kind {
	case ManglingV0:
		if sym.CrateName != "" {
			return Attribution{Crate: sym.CrateName, Exact: true}
		}
		name = sym.Trimmed
	case ManglingUnknown:
		// C and C++ paths such as std::vector say nothing about Rust crates.
		return Attribution{Crate: UnknownCrate, Exact: true}
	}

	shape := ParseShape(name)
	switch shape.Kind {
	case ShapeTraitImpl:
		return resolveTraitImpl(shape)
	case ShapePlainPath:
		// v0 names without a crate root are parsed from the demangled
		// text, which is less reliable than the encoded crate.
		return Attribution{Crate: shape.Crate, Exact: sym.Kind != ManglingV0}
	default:
		return Attribution{Crate: UnknownCrate, Exact: true}
	}
}

// resolveTraitImpl handles <TypeCrate::Type as TraitCrate::Trait>::fn for
// symbols no archive lists.
func resolveTraitImpl(shape Shape) Attribution {
	typeCrate, traitCrate := shape.TypeCrate, shape.TraitCrate

	// <T as core::fmt::Display>::fmt, the type is a bare type parameter.
	if typeCrate == "" {
		return Attribution{Crate: traitCrate, Exact: true}
	}
	if typeCrate == traitCrate {
		return Attribution{Crate: typeCrate, Exact: true}
	}
	// Either the impl was instantiated in the binary's own crate or the
	// trait's crate defines it. The type's crate is a guess.
	return Attribution{Crate: typeCrate, Exact: false}
}
