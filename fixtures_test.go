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
	"debug/elf"
	"encoding/binary"
)

// Builders for small, well-formed binaries used throughout the tests.

type fixtureSym struct {
	name  string
	value uint64
	size  uint64
	info  uint8
	shndx uint16
}

// funcSym is a global function in the .text section (index 1).
func funcSym(name string, value, size uint64) fixtureSym {
	return fixtureSym{
		name:  name,
		value: value,
		size:  size,
		info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
		shndx: 1,
	}
}

type elfFixture struct {
	class    elf.Class
	order    binary.ByteOrder
	machine  elf.Machine
	textName string
	textAddr uint64
	textSize uint64
	syms     []fixtureSym

	// Overrides for malformed files.
	symtabLink   *uint32
	symEntSize   *uint64
	symtabSize   *uint64
	shstrndx     *uint16
	strtabLength *uint64
}

const (
	elfSecText = iota + 1
	elfSecSymtab
	elfSecStrtab
	elfSecShstrtab
	elfSecCount
)

func (f elfFixture) build() []byte {
	if f.order == nil {
		f.order = binary.LittleEndian
	}
	if f.textName == "" {
		f.textName = ".text"
	}
	if f.machine == 0 {
		f.machine = elf.EM_X86_64
	}
	is64 := f.class == elf.ELFCLASS64

	hdrSize, shSize, symSize := uint64(52), uint64(40), uint64(16)
	if is64 {
		hdrSize, shSize, symSize = 64, 64, 24
	}

	text := bytes.Repeat([]byte{0x90}, int(f.textSize))

	shstrtab := []byte{0}
	shName := func(n string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, n...)
		shstrtab = append(shstrtab, 0)
		return off
	}
	textNameOff := shName(f.textName)
	symtabNameOff := shName(".symtab")
	strtabNameOff := shName(".strtab")
	shstrtabNameOff := shName(".shstrtab")

	strtab := []byte{0}
	symtab := &bytes.Buffer{}
	writeSym := func(name uint32, s fixtureSym) {
		if is64 {
			binary.Write(symtab, f.order, elf.Sym64{Name: name, Info: s.info, Shndx: s.shndx, Value: s.value, Size: s.size})
		} else {
			binary.Write(symtab, f.order, elf.Sym32{Name: name, Value: uint32(s.value), Size: uint32(s.size), Info: s.info, Shndx: s.shndx})
		}
	}
	writeSym(0, fixtureSym{})
	for _, s := range f.syms {
		off := uint32(0)
		if s.name != "" {
			off = uint32(len(strtab))
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
		}
		writeSym(off, s)
	}

	textOff := hdrSize
	shstrOff := textOff + uint64(len(text))
	strOff := shstrOff + uint64(len(shstrtab))
	symOff := strOff + uint64(len(strtab))
	shOff := symOff + uint64(symtab.Len())

	link := uint32(elfSecStrtab)
	if f.symtabLink != nil {
		link = *f.symtabLink
	}
	entsize := symSize
	if f.symEntSize != nil {
		entsize = *f.symEntSize
	}
	symtabSize := uint64(symtab.Len())
	if f.symtabSize != nil {
		symtabSize = *f.symtabSize
	}
	shstrndx := uint16(elfSecShstrtab)
	if f.shstrndx != nil {
		shstrndx = *f.shstrndx
	}
	strtabLen := uint64(len(strtab))
	if f.strtabLength != nil {
		strtabLen = *f.strtabLength
	}

	type sec struct {
		name      uint32
		kind      elf.SectionType
		addr      uint64
		off, size uint64
		link      uint32
		entsize   uint64
	}
	sections := []sec{
		{},
		{name: textNameOff, kind: elf.SHT_PROGBITS, addr: f.textAddr, off: textOff, size: f.textSize},
		{name: symtabNameOff, kind: elf.SHT_SYMTAB, off: symOff, size: symtabSize, link: link, entsize: entsize},
		{name: strtabNameOff, kind: elf.SHT_STRTAB, off: strOff, size: strtabLen},
		{name: shstrtabNameOff, kind: elf.SHT_STRTAB, off: shstrOff, size: uint64(len(shstrtab))},
	}

	buf := &bytes.Buffer{}
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(f.class)
	if f.order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	} else {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	}
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	if is64 {
		binary.Write(buf, f.order, elf.Header64{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(f.machine), Version: uint32(elf.EV_CURRENT),
			Shoff: shOff, Ehsize: uint16(hdrSize), Shentsize: uint16(shSize), Shnum: elfSecCount, Shstrndx: shstrndx,
		})
	} else {
		binary.Write(buf, f.order, elf.Header32{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(f.machine), Version: uint32(elf.EV_CURRENT),
			Shoff: uint32(shOff), Ehsize: uint16(hdrSize), Shentsize: uint16(shSize), Shnum: elfSecCount, Shstrndx: shstrndx,
		})
	}
	buf.Write(text)
	buf.Write(shstrtab)
	buf.Write(strtab)
	buf.Write(symtab.Bytes())
	for _, s := range sections {
		if is64 {
			binary.Write(buf, f.order, elf.Section64{
				Name: s.name, Type: uint32(s.kind), Addr: s.addr, Off: s.off, Size: s.size, Link: s.link, Entsize: s.entsize,
			})
		} else {
			binary.Write(buf, f.order, elf.Section32{
				Name: s.name, Type: uint32(s.kind), Addr: uint32(s.addr), Off: uint32(s.off), Size: uint32(s.size), Link: s.link, Entsize: uint32(s.entsize),
			})
		}
	}
	return buf.Bytes()
}

// Mach-O

type machoNlist struct {
	name  string
	typ   uint8
	sect  uint8
	value uint64
}

const (
	nSect = 0x0e
	nExt  = 0x01
)

// machoFunc is an external symbol defined in section 1.
func machoFunc(name string, value uint64) machoNlist {
	return machoNlist{name: name, typ: nSect | nExt, sect: 1, value: value}
}

type machoFixture struct {
	cpu      uint32
	textAddr uint64
	textSize uint64
	syms     []machoNlist
	// textSecond puts a __stubs section before __text.
	textSecond bool
	noSymtab   bool
}

type machoSegment64 struct {
	Cmd, Cmdsize          uint32
	Segname               [16]byte
	Vmaddr, Vmsize        uint64
	Fileoff, Filesize     uint64
	Maxprot, Initprot     uint32
	Nsects, Flags         uint32
}

type machoSection64 struct {
	Sectname, Segname            [16]byte
	Addr, Size                   uint64
	Offset, Align, Reloff        uint32
	Nreloc, Flags                uint32
	Reserved1, Reserved2, Reserv uint32
}

type machoSymtabCmd struct {
	Cmd, Cmdsize                   uint32
	Symoff, Nsyms, Stroff, Strsize uint32
}

type machoNlist64 struct {
	Strx  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64
}

func name16(s string) (b [16]byte) {
	copy(b[:], s)
	return
}

func (f machoFixture) build() []byte {
	le := binary.LittleEndian
	if f.cpu == 0 {
		f.cpu = 0x01000007 // x86_64
	}

	nsects := uint32(1)
	if f.textSecond {
		nsects = 2
	}
	segSize := uint32(72 + 80*nsects)
	symtabCmdSize := uint32(24)
	ncmds := uint32(2)
	sizeofcmds := segSize + symtabCmdSize
	if f.noSymtab {
		ncmds = 1
		sizeofcmds = segSize
	}

	textOff := uint64(32 + sizeofcmds)
	strtab := []byte{' ', 0}
	nlists := &bytes.Buffer{}
	for _, s := range f.syms {
		strx := uint32(0)
		if s.name != "" {
			strx = uint32(len(strtab))
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
		}
		binary.Write(nlists, le, machoNlist64{Strx: strx, Type: s.typ, Sect: s.sect, Value: s.value})
	}
	symOff := textOff + f.textSize
	strOff := symOff + uint64(nlists.Len())

	buf := &bytes.Buffer{}
	binary.Write(buf, le, []uint32{0xfeedfacf, f.cpu, 3, 2, ncmds, sizeofcmds, 0, 0})
	binary.Write(buf, le, machoSegment64{
		Cmd: 0x19, Cmdsize: segSize, Segname: name16("__TEXT"),
		Vmaddr: f.textAddr, Vmsize: f.textSize, Fileoff: textOff, Filesize: f.textSize,
		Maxprot: 5, Initprot: 5, Nsects: nsects,
	})
	if f.textSecond {
		binary.Write(buf, le, machoSection64{Sectname: name16("__stubs"), Segname: name16("__TEXT"), Addr: f.textAddr, Offset: uint32(textOff)})
	}
	binary.Write(buf, le, machoSection64{
		Sectname: name16("__text"), Segname: name16("__TEXT"),
		Addr: f.textAddr, Size: f.textSize, Offset: uint32(textOff),
	})
	if !f.noSymtab {
		binary.Write(buf, le, machoSymtabCmd{
			Cmd: 0x2, Cmdsize: symtabCmdSize,
			Symoff: uint32(symOff), Nsyms: uint32(len(f.syms)), Stroff: uint32(strOff), Strsize: uint32(len(strtab)),
		})
	}
	buf.Write(bytes.Repeat([]byte{0xc3}, int(f.textSize)))
	buf.Write(nlists.Bytes())
	buf.Write(strtab)
	return buf.Bytes()
}

// buildFat wraps thin Mach-O images into a universal binary.
func buildFat(cpus []uint32, slices [][]byte) []byte {
	const align = 12
	be := binary.BigEndian
	buf := &bytes.Buffer{}
	binary.Write(buf, be, []uint32{0xcafebabe, uint32(len(slices))})

	off := uint32(1 << align)
	offsets := make([]uint32, len(slices))
	for i, s := range slices {
		offsets[i] = off
		binary.Write(buf, be, []uint32{cpus[i], 3, off, uint32(len(s)), align})
		off += (uint32(len(s)) + (1<<align - 1)) &^ (1<<align - 1)
	}
	for i, s := range slices {
		buf.Write(make([]byte, int(offsets[i])-buf.Len()))
		buf.Write(s)
	}
	return buf.Bytes()
}

// PE

type coffSym struct {
	name    string
	value   uint32
	section int16
	typ     uint16
	class   uint8
	aux     int
}

// coffFunc is an external function in section 2, the .text section of
// peFixture.
func coffFunc(name string, value uint32) coffSym {
	return coffSym{name: name, value: value, section: 2, typ: 0x20, class: 2}
}

type peFixture struct {
	textSize uint32
	syms     []coffSym
	noText   bool
}

func (f peFixture) build() []byte {
	le := binary.LittleEndian
	const (
		peOff       = 0x40
		optHdrSize  = 16
		nsections   = 2
		sectionsOff = peOff + 4 + 20 + optHdrSize
		textOff     = sectionsOff + nsections*40
	)

	strtab := []byte{0, 0, 0, 0}
	symbols := &bytes.Buffer{}
	nsyms := 0
	for _, s := range f.syms {
		var name [8]byte
		if len(s.name) <= 8 {
			copy(name[:], s.name)
		} else {
			le.PutUint32(name[4:], uint32(len(strtab)))
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
		}
		symbols.Write(name[:])
		binary.Write(symbols, le, s.value)
		binary.Write(symbols, le, s.section)
		binary.Write(symbols, le, s.typ)
		symbols.WriteByte(s.class)
		symbols.WriteByte(uint8(s.aux))
		nsyms++
		// Aux records that would decode as a function if they were
		// mistaken for symbols.
		for i := 0; i < s.aux; i++ {
			symbols.WriteString("bogus\x00\x00\x00")
			binary.Write(symbols, le, s.value+1)
			binary.Write(symbols, le, s.section)
			binary.Write(symbols, le, s.typ)
			symbols.Write([]byte{s.class, 0})
			nsyms++
		}
	}
	le.PutUint32(strtab, uint32(len(strtab)))

	symOff := uint32(textOff) + f.textSize

	buf := &bytes.Buffer{}
	dos := make([]byte, peOff)
	copy(dos, "MZ")
	le.PutUint32(dos[0x3c:], peOff)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")
	binary.Write(buf, le, []uint16{0x8664, nsections})
	binary.Write(buf, le, []uint32{0, symOff, uint32(nsyms)})
	binary.Write(buf, le, []uint16{optHdrSize, 0})
	buf.Write(make([]byte, optHdrSize))

	textName := ".text"
	if f.noText {
		textName = ".code"
	}
	writeSection := func(name string, rawSize, rawOff uint32) {
		var n [8]byte
		copy(n[:], name)
		buf.Write(n[:])
		binary.Write(buf, le, []uint32{rawSize, 0x1000, rawSize, rawOff, 0, 0})
		binary.Write(buf, le, []uint16{0, 0})
		binary.Write(buf, le, uint32(0))
	}
	writeSection(".data", 0, 0)
	writeSection(textName, f.textSize, textOff)

	buf.Write(bytes.Repeat([]byte{0xcc}, int(f.textSize)))
	buf.Write(symbols.Bytes())
	buf.Write(strtab)
	return buf.Bytes()
}

func ptr[T any](v T) *T {
	return &v
}
