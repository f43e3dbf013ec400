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

import "strings"

// ShapeKind is the syntactic form of a demangled symbol name.
type ShapeKind int

const (
	// ShapeForeign is a name without any path separator, like a C function.
	ShapeForeign ShapeKind = iota
	// ShapePlainPath is crate::module::function.
	ShapePlainPath
	// ShapeTraitImpl is <TypeCrate::Type as TraitCrate::Trait>::function.
	ShapeTraitImpl
)

func (k ShapeKind) String() string {
	switch k {
	case ShapePlainPath:
		return "path"
	case ShapeTraitImpl:
		return "trait impl"
	default:
		return "foreign"
	}
}

// Shape is a parsed symbol name. Crate is set for plain paths, TypeCrate
// and TraitCrate for trait implementations.
type Shape struct {
	Kind       ShapeKind
	Crate      string
	TypeCrate  string
	TraitCrate string
}

const traitSeparator = " as "

// ParseShape classifies a demangled name. The split is purely textual: a
// " as " anywhere in the name, including inside generic arguments, makes it
// a trait implementation and the first occurrence separates the type from
// the trait.
func ParseShape(name string) Shape {
	if !strings.Contains(name, "::") {
		return Shape{Kind: ShapeForeign}
	}
	if typ, trait, ok := strings.Cut(name, traitSeparator); ok {
		return Shape{
			Kind:       ShapeTraitImpl,
			TypeCrate:  crateFromPath(typ),
			TraitCrate: crateFromPath(trait),
		}
	}
	return Shape{Kind: ShapePlainPath, Crate: crateFromPath(name)}
}

// crateFromPath returns the first path segment of s. For qualified forms
// like "<&mut alloc::vec::Vec" the angle brackets and reference markers are
// dropped and the last word is used.
func crateFromPath(s string) string {
	first, _, ok := strings.Cut(s, "::")
	if !ok {
		return ""
	}
	if !strings.HasPrefix(first, "<") {
		return first
	}

	first = strings.TrimLeft(first, "<")
	first = strings.TrimLeft(first, "&")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
