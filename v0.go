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
	"strconv"
	"strings"
)

// v0CrateName walks the path of a v0 mangled symbol down to its crate root
// and returns the crate name. Paths rooted in a type (trait impls written
// as <T as Trait>, back references) have no crate and yield "".
func v0CrateName(sym string) string {
	p, ok := strings.CutPrefix(sym, "_R")
	if !ok {
		return ""
	}
	// Optional encoding version.
	for len(p) > 0 && isDigit(p[0]) {
		p = p[1:]
	}

	for len(p) > 0 {
		switch p[0] {
		case 'C':
			name, ok := v0Identifier(p[1:])
			if !ok {
				return ""
			}
			return name
		case 'N':
			// N <namespace> <path> <identifier>
			if len(p) < 2 {
				return ""
			}
			p = p[2:]
		case 'M', 'X':
			// M <impl-path> <type>, X <impl-path> <type> <path>
			p = skipV0Disambiguator(p[1:])
		case 'I':
			// I <path> {<generic-arg>} E
			p = p[1:]
		default:
			return ""
		}
	}
	return ""
}

// skipV0Disambiguator drops an optional s<base-62>_ prefix.
func skipV0Disambiguator(p string) string {
	if !strings.HasPrefix(p, "s") {
		return p
	}
	if i := strings.IndexByte(p, '_'); i >= 0 {
		return p[i+1:]
	}
	return ""
}

// v0Identifier decodes [s<base-62>_] [u] <decimal> [_] <bytes>.
func v0Identifier(p string) (string, bool) {
	p = skipV0Disambiguator(p)
	p = strings.TrimPrefix(p, "u")

	n := 0
	for n < len(p) && isDigit(p[n]) {
		n++
	}
	if n == 0 {
		return "", false
	}
	length, err := strconv.Atoi(p[:n])
	if err != nil {
		return "", false
	}
	p = p[n:]
	p = strings.TrimPrefix(p, "_")
	if length == 0 || len(p) < length {
		return "", false
	}
	return p[:length], true
}
