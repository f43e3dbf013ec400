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
	"debug/pe"
	"encoding/binary"
	"fmt"
)

const (
	coffHeaderSize    = 20
	peSectionSize     = 40
	coffSymbolSize    = 18
	coffDTypeFunction = 2
	coffClassExternal = 2
)

type peSection struct {
	name      string
	vaddr     uint32
	rawSize   uint32
	rawOffset uint32
}

// parsePE reads the COFF symbol table of a PE image. COFF symbols carry no
// size, so sizes are derived from the distance to the next symbol.
func parsePE(data []byte, sectionName string) (bin *Binary, err error) {
	stage := StageHeader
	defer catchEOF(FormatPE, &stage, &err)

	order := binary.LittleEndian
	peOff := uint64(order.Uint32(data[peOffsetField:]))
	s := NewStreamAt(data, peOff+uint64(len(peSignature)), order)
	machine := s.ReadU16()
	nsections := s.ReadU16()
	s.Skip(4) // TimeDateStamp
	symtabOff := uint64(s.ReadU32())
	nsyms := uint64(s.ReadU32())
	optHeaderSize := uint64(s.ReadU16())
	s.Skip(2) // Characteristics

	bin = &Binary{
		Format:      FormatPE,
		Arch:        peArch(machine),
		ByteOrder:   order,
		SectionName: sectionName,
	}

	stage = StageSections
	s = NewStreamAt(data, peOff+uint64(len(peSignature))+coffHeaderSize+optHeaderSize, order)
	textIdx := -1
	var text peSection
	for i := 0; i < int(nsections); i++ {
		sec := peSection{name: fixedString(s.ReadBytes(8))}
		s.Skip(4) // VirtualSize
		sec.vaddr = s.ReadU32()
		sec.rawSize = s.ReadU32()
		sec.rawOffset = s.ReadU32()
		s.Skip(peSectionSize - 8 - 4*4)

		if textIdx < 0 && sec.name == sectionName {
			textIdx = i
			text = sec
		}
	}
	if textIdx < 0 {
		return bin.degrade(stage, fmt.Errorf("%w: %s", ErrMissingSection, sectionName)), nil
	}
	bin.TextSize = uint64(text.rawSize)
	// Symbol values are offsets into their section.
	bin.code = codeRange{addr: 0, offset: uint64(text.rawOffset), size: uint64(text.rawSize)}

	if symtabOff == 0 || nsyms == 0 {
		return bin, nil
	}

	stage = StageSymbols
	strtabOff := symtabOff + nsyms*coffSymbolSize
	if !inRange(symtabOff, nsyms*coffSymbolSize, len(data)) {
		return bin.degrade(stage, fmt.Errorf("%w: symbol table outside of file", ErrMissingSection)), nil
	}
	var strtab []byte
	if inRange(strtabOff, 4, len(data)) {
		strtab = data[strtabOff:]
	}

	s = NewStreamAt(data, symtabOff, order)
	var raw []rawSymbol
	for i := uint64(0); i < nsyms; i++ {
		nameField := s.ReadBytes(8)
		value := s.ReadU32()
		section := s.ReadI16()
		typ := s.ReadU16()
		class := s.ReadU8()
		naux := uint64(s.ReadU8())

		// Auxiliary records follow their symbol and count as symbols.
		if naux > 0 {
			if i+naux >= nsyms {
				break
			}
			s.Skip(naux * coffSymbolSize)
			i += naux
		}

		if (typ&0x30)>>4 != coffDTypeFunction || class != coffClassExternal || int(section)-1 != textIdx {
			continue
		}

		name, ok := coffSymbolName(nameField, strtab, order)
		if !ok {
			return bin.degrade(stage, fmt.Errorf("%w: symbol %d", ErrTruncatedStringTable, i)), nil
		}
		raw = append(raw, rawSymbol{name: name, address: uint64(value), keep: true})
	}

	if len(raw) == 0 {
		return bin, nil
	}
	bin.Symbols = synthesizeSizes(sortWithSentinel(raw, uint64(text.rawSize)))
	return bin, nil
}

// coffSymbolName resolves a short inline name or a long name stored in the
// string table. A long name has four zero bytes followed by its string table
// offset.
func coffSymbolName(field []byte, strtab []byte, order binary.ByteOrder) (string, bool) {
	if order.Uint32(field[:4]) != 0 {
		return fixedString(field), true
	}
	return readCString(strtab, uint64(order.Uint32(field[4:])))
}

func peArch(machine uint16) string {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		return Arch386
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return ArchAMD64
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return ArchARM64
	case pe.IMAGE_FILE_MACHINE_ARMNT, pe.IMAGE_FILE_MACHINE_ARM:
		return ArchARM
	default:
		return fmt.Sprintf("pe-machine-%#x", machine)
	}
}
