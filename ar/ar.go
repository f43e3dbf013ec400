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

// Package ar reads the symbol index of Unix ar archives, the container
// format of Rust .rlib files and C static libraries.
package ar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goretk/bloat"
)

var (
	// ErrNotArchive is returned if the data does not start with the ar magic.
	ErrNotArchive = errors.New("not an ar archive")
	// ErrBadHeader is returned for a member header that can't be decoded.
	ErrBadHeader = errors.New("malformed archive member header")
)

const (
	magic      = "!<arch>\n"
	headerSize = 60
	headerEnd  = "`\n"

	gnuSymtab    = "/"
	gnuSymtab64  = "/SYM64/"
	bsdSymtab    = "__.SYMDEF"
	bsdSymtabSrt = "__.SYMDEF SORTED"
	bsdSymtab64  = "__.SYMDEF_64"
	bsdSymtab64S = "__.SYMDEF_64 SORTED"
	bsdLongName  = "#1/"
)

type member struct {
	name string
	data []byte
}

// Parse returns the symbol names listed in the archive's symbol index, in
// index order without duplicates. An archive without an index has no
// symbols.
func Parse(data []byte) ([]string, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return nil, ErrNotArchive
	}

	m, err := firstMember(data)
	if err != nil || m == nil {
		return nil, err
	}

	var names []string
	err = bloat.Decode(func() (err error) {
		switch m.name {
		case gnuSymtab:
			names, err = parseGNU(m.data, false)
		case gnuSymtab64:
			names, err = parseGNU(m.data, true)
		case bsdSymtab, bsdSymtabSrt:
			names = parseBSD(m.data, false)
		case bsdSymtab64, bsdSymtab64S:
			names = parseBSD(m.data, true)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error when reading the symbol index %q: %w", m.name, err)
	}
	return unique(names), nil
}

// firstMember decodes the member header following the archive magic. The
// symbol index, if present, is always the first member.
func firstMember(data []byte) (*member, error) {
	rest := data[len(magic):]
	if len(rest) == 0 {
		return nil, nil
	}
	if len(rest) < headerSize {
		return nil, fmt.Errorf("%w: truncated", ErrBadHeader)
	}

	hdr := rest[:headerSize]
	if string(hdr[58:60]) != headerEnd {
		return nil, fmt.Errorf("%w: bad terminator", ErrBadHeader)
	}
	name := strings.TrimRight(string(hdr[:16]), " ")
	size, err := strconv.ParseUint(strings.TrimSpace(string(hdr[48:58])), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: size: %w", ErrBadHeader, err)
	}
	body := rest[headerSize:]
	if size > uint64(len(body)) {
		return nil, fmt.Errorf("%w: member %q extends past the end of the archive", ErrBadHeader, name)
	}
	body = body[:size]

	// BSD stores long names at the start of the member data.
	if n, ok := strings.CutPrefix(name, bsdLongName); ok {
		l, err := strconv.Atoi(n)
		if err != nil || l > len(body) {
			return nil, fmt.Errorf("%w: long name length %q", ErrBadHeader, n)
		}
		name = string(bytes.TrimRight(body[:l], "\x00"))
		body = body[l:]
	}

	return &member{name: name, data: body}, nil
}

// parseGNU reads a System V / GNU index: a big-endian count, count member
// offsets, then count NUL terminated names.
func parseGNU(data []byte, wide bool) ([]string, error) {
	s := bloat.NewStream(data, binary.BigEndian)
	var count, width uint64
	if wide {
		count, width = s.ReadU64(), 8
	} else {
		count, width = uint64(s.ReadU32()), 4
	}
	if count > uint64(len(data))/width {
		return nil, fmt.Errorf("%w: %d symbols do not fit in a %d byte index", ErrBadHeader, count, len(data))
	}
	s.Skip(count * width)

	strtab := data[s.Offset():]
	names := make([]string, 0, min(count, uint64(len(strtab))))
	for i := uint64(0); i < count && len(strtab) > 0; i++ {
		end := bytes.IndexByte(strtab, 0)
		if end < 0 {
			end = len(strtab)
		}
		names = append(names, string(strtab[:end]))
		strtab = strtab[min(end+1, len(strtab)):]
	}
	return names, nil
}

// parseBSD reads a BSD index: the byte size of a ranlib array of
// (name offset, member offset) pairs, the array, the string table size and
// the string table. BSD archives are little-endian on all current targets.
func parseBSD(data []byte, wide bool) []string {
	s := bloat.NewStream(data, binary.LittleEndian)

	var strx []uint64
	if wide {
		n := s.ReadU64() / 16
		for i := uint64(0); i < n; i++ {
			strx = append(strx, s.ReadU64())
			s.Skip(8)
		}
	} else {
		n := uint64(s.ReadU32()) / 8
		for i := uint64(0); i < n; i++ {
			strx = append(strx, uint64(s.ReadU32()))
			s.Skip(4)
		}
	}

	var strsize uint64
	if wide {
		strsize = s.ReadU64()
	} else {
		strsize = uint64(s.ReadU32())
	}
	strtab := s.ReadBytes(strsize)

	names := make([]string, 0, len(strx))
	for _, off := range strx {
		if off >= uint64(len(strtab)) {
			continue
		}
		b := strtab[off:]
		if end := bytes.IndexByte(b, 0); end >= 0 {
			b = b[:end]
		}
		names = append(names, string(b))
	}
	return names
}

func unique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
