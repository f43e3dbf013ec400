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
	"bytes"
	"encoding/binary"
	"fmt"
	"runtime"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
)

const (
	machoHeaderSize     = 32
	machoLoadCmdSize    = 8
	machoSectionSize    = 80
	machoNlistSize      = 16
	machoTextSegment    = "__TEXT"
	machoDefaultSection = "__text"
)

type machoSection struct {
	addr    uint64
	size    uint64
	offset  uint64
	ordinal uint8
}

type machoSymtab struct {
	symoff  uint64
	nsyms   uint64
	stroff  uint64
	strsize uint64
}

func parseMachO(data []byte, sectionName string) (bin *Binary, err error) {
	stage := StageHeader
	defer catchEOF(FormatMachO, &stage, &err)

	order := binary.LittleEndian
	s := NewStream(data, order)
	s.Skip(4) // magic
	cpu := types.CPU(s.ReadU32())
	s.Skip(4 + 4) // cpusubtype, filetype
	ncmds := s.ReadU32()
	s.Skip(4 + 4 + 4) // sizeofcmds, flags, reserved

	bin = &Binary{
		Format:      FormatMachO,
		Arch:        machoArch(cpu),
		ByteOrder:   order,
		SectionName: sectionName,
	}

	stage = StageSections
	var (
		text   *machoSection
		symtab *machoSymtab
		// Section ordinals are numbered across all segments, starting at 1.
		sectionsSeen uint64
	)
	off := uint64(machoHeaderSize)
	for i := uint32(0); i < ncmds; i++ {
		s := NewStreamAt(data, off, order)
		cmd := types.LoadCmd(s.ReadU32())
		size := s.ReadU32()
		if size < machoLoadCmdSize {
			return bin.degrade(stage, fmt.Errorf("%w: load command %d has size %d", ErrBadEntrySize, i, size)), nil
		}

		switch cmd {
		case types.LC_SEGMENT_64:
			sect, n, err := readMachOSegment(s, sectionName, sectionsSeen)
			if err != nil {
				return nil, parseErr(FormatMachO, stage, err)
			}
			sectionsSeen += n
			if text == nil {
				text = sect
			}
		case types.LC_SYMTAB:
			symtab = &machoSymtab{
				symoff:  uint64(s.ReadU32()),
				nsyms:   uint64(s.ReadU32()),
				stroff:  uint64(s.ReadU32()),
				strsize: uint64(s.ReadU32()),
			}
		}
		off += uint64(size)
	}

	if text == nil {
		return bin.degrade(stage, fmt.Errorf("%w: %s,%s", ErrMissingSection, machoTextSegment, sectionName)), nil
	}
	bin.TextSize = text.size
	bin.code = codeRange{addr: text.addr, offset: text.offset, size: text.size}

	if symtab == nil {
		return bin.degrade(stage, fmt.Errorf("%w: no LC_SYMTAB", ErrMissingSection)), nil
	}
	if !inRange(symtab.symoff, symtab.nsyms*machoNlistSize, len(data)) ||
		!inRange(symtab.stroff, symtab.strsize, len(data)) {
		return bin.degrade(stage, fmt.Errorf("%w: symbol or string table outside of file", ErrMissingSection)), nil
	}

	stage = StageSymbols
	strtab := data[symtab.stroff : symtab.stroff+symtab.strsize]
	s = NewStreamAt(data, symtab.symoff, order)
	raw := make([]rawSymbol, 0, symtab.nsyms+1)
	for i := uint64(0); i < symtab.nsyms; i++ {
		strx := s.ReadU32()
		kind := types.NType(s.ReadU8()) & types.N_TYPE
		sect := s.ReadU8()
		s.Skip(2) // n_desc
		value := s.ReadU64()

		if value == 0 {
			continue
		}

		sym := rawSymbol{address: value}
		// Only defined symbols in the code section have a size we can
		// derive. Their neighbours still bound the size.
		if strx != 0 && kind&types.N_INDR != 0 && kind&types.N_SECT != 0 && sect == text.ordinal {
			name, ok := readCString(strtab, uint64(strx))
			if !ok {
				return bin.degrade(stage, fmt.Errorf("%w: symbol %d", ErrTruncatedStringTable, i)), nil
			}
			sym.name = name
			sym.keep = true
		}
		raw = append(raw, sym)
	}

	bin.Symbols = synthesizeSizes(sortWithSentinel(raw, text.addr+text.size))
	return bin, nil
}

// readMachOSegment scans the sections of an LC_SEGMENT_64 command. It
// returns the named section if this is the __TEXT segment, together with the
// number of sections in the segment.
func readMachOSegment(s *Stream, sectionName string, ordinalBase uint64) (*machoSection, uint64, error) {
	segname := fixedString(s.ReadBytes(16))
	s.Skip(8 + 8 + 8 + 8) // vmaddr, vmsize, fileoff, filesize
	s.Skip(4 + 4)         // maxprot, initprot
	nsects := uint64(s.ReadU32())
	s.Skip(4) // flags

	if segname != machoTextSegment {
		return nil, nsects, nil
	}

	for i := uint64(0); i < nsects; i++ {
		sectname := fixedString(s.ReadBytes(16))
		s.Skip(16) // segname
		sect := &machoSection{
			addr:    s.ReadU64(),
			size:    s.ReadU64(),
			offset:  uint64(s.ReadU32()),
			ordinal: uint8(ordinalBase + i + 1),
		}
		s.Skip(machoSectionSize - 16 - 16 - 8 - 8 - 4)

		if sectname == sectionName {
			if i != 0 {
				return nil, nsects, fmt.Errorf("%w: %s is section %d", ErrTextNotFirst, sectionName, i)
			}
			return sect, nsects, nil
		}
	}
	return nil, nsects, nil
}

// parseMachOFat picks one slice of a universal binary and parses it. The
// slice matching the host architecture is preferred, the first one is used
// otherwise.
func parseMachOFat(data []byte, sectionName string) (*Binary, error) {
	ff, err := macho.NewFatFile(bytes.NewReader(data))
	if err != nil {
		return nil, parseErr(FormatMachOFat, StageHeader, fmt.Errorf("error when parsing the universal header: %w", err))
	}
	defer func() {
		_ = ff.Close()
	}()

	if len(ff.Arches) == 0 {
		return nil, parseErr(FormatMachOFat, StageHeader, fmt.Errorf("%w: no architectures", ErrUnsupportedFile))
	}

	arch := ff.Arches[0]
	for _, a := range ff.Arches {
		if machoArch(a.CPU) == runtime.GOARCH || (a.CPU == types.CPUI386 && runtime.GOARCH == "386") {
			arch = a
			break
		}
	}

	start, size := uint64(arch.Offset), uint64(arch.Size)
	if !inRange(start, size, len(data)) {
		return nil, parseErr(FormatMachOFat, StageHeader, fmt.Errorf("%w: %s slice", ErrUnexpectedEOF, arch.CPU))
	}
	slice := data[start : start+size]
	if f, _, err := DetectFormat(slice); err != nil || f != FormatMachO {
		return nil, parseErr(FormatMachOFat, StageHeader, fmt.Errorf("%w: %s slice is not a 64-bit Mach-O", ErrUnsupportedFile, arch.CPU))
	}

	bin, err := parseMachO(slice, sectionName)
	if err != nil {
		return nil, err
	}
	bin.Format = FormatMachOFat
	bin.code.offset += start
	return bin, nil
}

func machoArch(cpu types.CPU) string {
	switch cpu {
	case types.CPUI386:
		return Arch386
	case types.CPUAmd64:
		return ArchAMD64
	case types.CPUArm64:
		return ArchARM64
	case types.CPUArm:
		return ArchARM
	default:
		return cpu.String()
	}
}

// fixedString trims the NUL padding of a fixed size name field.
func fixedString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
