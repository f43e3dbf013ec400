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
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	elf32SectionHeaderSize = 40
	elf64SectionHeaderSize = 64
	elf32SymSize           = 16
	elf64SymSize           = 24
)

type elfHeader struct {
	machine   elf.Machine
	shoff     uint64
	shentsize uint16
	shnum     uint16
	shstrndx  uint16
}

type elfSection struct {
	name    uint32
	kind    elf.SectionType
	addr    uint64
	offset  uint64
	size    uint64
	link    uint32
	entsize uint64
}

type elfSym struct {
	name  uint32
	value uint64
	size  uint64
	info  uint8
	shndx uint16
}

// elfLayout holds the record decoders for one ELF class. The 32 and 64-bit
// records order their fields differently, so each class gets its own.
type elfLayout struct {
	sectionHeaderSize uint64
	symSize           uint64
	header            func(s *Stream) elfHeader
	section           func(s *Stream) elfSection
	sym               func(s *Stream) elfSym
}

var elf32Layout = elfLayout{
	sectionHeaderSize: elf32SectionHeaderSize,
	symSize:           elf32SymSize,
	header: func(s *Stream) elfHeader {
		var h elfHeader
		s.Skip(2) // e_type
		h.machine = elf.Machine(s.ReadU16())
		s.Skip(4 + 4 + 4) // e_version, e_entry, e_phoff
		h.shoff = uint64(s.ReadU32())
		s.Skip(4 + 2 + 2 + 2) // e_flags, e_ehsize, e_phentsize, e_phnum
		h.shentsize = s.ReadU16()
		h.shnum = s.ReadU16()
		h.shstrndx = s.ReadU16()
		return h
	},
	section: func(s *Stream) elfSection {
		var sec elfSection
		sec.name = s.ReadU32()
		sec.kind = elf.SectionType(s.ReadU32())
		s.Skip(4) // sh_flags
		sec.addr = uint64(s.ReadU32())
		sec.offset = uint64(s.ReadU32())
		sec.size = uint64(s.ReadU32())
		sec.link = s.ReadU32()
		s.Skip(4 + 4) // sh_info, sh_addralign
		sec.entsize = uint64(s.ReadU32())
		return sec
	},
	sym: func(s *Stream) elfSym {
		var sym elfSym
		sym.name = s.ReadU32()
		sym.value = uint64(s.ReadU32())
		sym.size = uint64(s.ReadU32())
		sym.info = s.ReadU8()
		s.Skip(1) // st_other
		sym.shndx = s.ReadU16()
		return sym
	},
}

var elf64Layout = elfLayout{
	sectionHeaderSize: elf64SectionHeaderSize,
	symSize:           elf64SymSize,
	header: func(s *Stream) elfHeader {
		var h elfHeader
		s.Skip(2)
		h.machine = elf.Machine(s.ReadU16())
		s.Skip(4 + 8 + 8)
		h.shoff = s.ReadU64()
		s.Skip(4 + 2 + 2 + 2)
		h.shentsize = s.ReadU16()
		h.shnum = s.ReadU16()
		h.shstrndx = s.ReadU16()
		return h
	},
	section: func(s *Stream) elfSection {
		var sec elfSection
		sec.name = s.ReadU32()
		sec.kind = elf.SectionType(s.ReadU32())
		s.Skip(8)
		sec.addr = s.ReadU64()
		sec.offset = s.ReadU64()
		sec.size = s.ReadU64()
		sec.link = s.ReadU32()
		s.Skip(4 + 8)
		sec.entsize = s.ReadU64()
		return sec
	},
	sym: func(s *Stream) elfSym {
		var sym elfSym
		sym.name = s.ReadU32()
		sym.info = s.ReadU8()
		s.Skip(1)
		sym.shndx = s.ReadU16()
		sym.value = s.ReadU64()
		sym.size = s.ReadU64()
		return sym
	},
}

func parseELF(data []byte, format Format, order binary.ByteOrder, sectionName string) (bin *Binary, err error) {
	stage := StageHeader
	defer catchEOF(format, &stage, &err)

	layout := elf32Layout
	if format == FormatELF64 {
		layout = elf64Layout
	}

	hdr := layout.header(NewStreamAt(data, elfIdentSize, order))
	bin = &Binary{
		Format:      format,
		Arch:        elfArch(hdr.machine),
		ByteOrder:   order,
		SectionName: sectionName,
	}

	stage = StageSections
	if uint64(hdr.shentsize) < layout.sectionHeaderSize {
		return bin.degrade(stage, fmt.Errorf("%w: section header entry size %d", ErrBadEntrySize, hdr.shentsize)), nil
	}
	sections := make([]elfSection, 0, hdr.shnum)
	for i := uint64(0); i < uint64(hdr.shnum); i++ {
		s := NewStreamAt(data, hdr.shoff+i*uint64(hdr.shentsize), order)
		sections = append(sections, layout.section(s))
	}

	if int(hdr.shstrndx) >= len(sections) {
		return bin.degrade(stage, fmt.Errorf("%w: section name table index %d", ErrMissingSection, hdr.shstrndx)), nil
	}
	shstr := sections[hdr.shstrndx]
	if !inRange(shstr.offset, shstr.size, len(data)) {
		return bin.degrade(stage, fmt.Errorf("%w: section name table", ErrTruncatedStringTable)), nil
	}
	sectionNames := data[shstr.offset : shstr.offset+shstr.size]

	textIdx, symtabIdx := -1, -1
	for i, sec := range sections {
		if symtabIdx < 0 && sec.kind == elf.SHT_SYMTAB {
			symtabIdx = i
		}
		if textIdx < 0 {
			if name, ok := readCString(sectionNames, uint64(sec.name)); ok && name == sectionName {
				textIdx = i
			}
		}
	}
	if textIdx < 0 {
		return bin.degrade(stage, fmt.Errorf("%w: %s", ErrMissingSection, sectionName)), nil
	}
	text := sections[textIdx]
	bin.TextSize = text.size
	bin.code = codeRange{addr: text.addr, offset: text.offset, size: text.size}

	if symtabIdx < 0 {
		return bin.degrade(stage, fmt.Errorf("%w: no symbol table", ErrMissingSection)), nil
	}
	symtab := sections[symtabIdx]
	if symtab.entsize == 0 || symtab.entsize < layout.symSize {
		return bin.degrade(stage, fmt.Errorf("%w: symbol entry size %d", ErrBadEntrySize, symtab.entsize)), nil
	}
	if int(symtab.link) >= len(sections) || sections[symtab.link].kind != elf.SHT_STRTAB {
		return bin.degrade(stage, fmt.Errorf("%w: link %d", ErrBadLink, symtab.link)), nil
	}
	strtab := sections[symtab.link]
	if !inRange(strtab.offset, strtab.size, len(data)) || !inRange(symtab.offset, symtab.size, len(data)) {
		return bin.degrade(stage, fmt.Errorf("%w: symbol or string table outside of file", ErrMissingSection)), nil
	}
	if symtab.size%symtab.entsize != 0 {
		return nil, parseErr(format, stage, fmt.Errorf("%w: %d %% %d", ErrBadSymbolTableSize, symtab.size, symtab.entsize))
	}

	stage = StageSymbols
	names := data[strtab.offset : strtab.offset+strtab.size]
	count := symtab.size / symtab.entsize
	for i := uint64(0); i < count; i++ {
		sym := layout.sym(NewStreamAt(data, symtab.offset+i*symtab.entsize, order))

		if sym.size == 0 || sym.name == 0 {
			continue
		}
		if elf.ST_TYPE(sym.info) != elf.STT_FUNC || int(sym.shndx) != textIdx {
			continue
		}

		name, ok := readCString(names, uint64(sym.name))
		if !ok {
			return bin.degrade(stage, fmt.Errorf("%w: symbol %d", ErrTruncatedStringTable, i)), nil
		}
		bin.Symbols = append(bin.Symbols, Symbol{
			Name:    DemangleSymbol(name),
			Address: sym.value,
			Size:    sym.size,
		})
	}

	return bin, nil
}

func elfArch(m elf.Machine) string {
	switch m {
	case elf.EM_X86_64:
		return ArchAMD64
	case elf.EM_386:
		return Arch386
	case elf.EM_AARCH64:
		return ArchARM64
	case elf.EM_ARM:
		return ArchARM
	case elf.EM_MIPS:
		return ArchMIPS
	default:
		return strings.ToLower(strings.TrimPrefix(m.String(), "EM_"))
	}
}
