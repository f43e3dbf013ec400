// Copyright 2019 The GoRE.tk Authors. All rights reserved.
// Use of this source code is governed by the license that
// can be found in the LICENSE file.

package bloat

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	// ArchAMD64 is a 64-bit x86 binary.
	ArchAMD64 = "amd64"
	// ArchARM is a 32-bit ARM binary.
	ArchARM = "arm"
	// ArchARM64 is a 64-bit ARM binary.
	ArchARM64 = "arm64"
	// Arch386 is a 32-bit x86 binary.
	Arch386 = "i386"
	// ArchMIPS is a MIPS binary.
	ArchMIPS = "mips"
)

// DefaultSectionName is the code section used when Options doesn't name one.
const DefaultSectionName = ".text"

// Options controls how a binary is parsed.
type Options struct {
	// SectionName is the code section whose functions are reported. Mach-O
	// files map the default ".text" to "__text".
	SectionName string
	// PDB is consulted for PE files without COFF symbols.
	PDB PDBLoader
}

// Binary is the parse result for an executable.
type Binary struct {
	Format    Format
	Arch      string
	ByteOrder binary.ByteOrder
	// FileSize is the size of the whole file.
	FileSize uint64
	// TextSize is the size of the code section.
	TextSize uint64
	// SectionName is the name of the code section.
	SectionName string
	// Symbols are the functions of the code section, ordered by address
	// with one symbol per address.
	Symbols []Symbol
	// Malformed is set when the symbol table was unusable and Symbols is
	// empty because of it.
	Malformed *ParseError

	code codeRange
}

// codeRange maps symbol addresses in the code section to file offsets.
type codeRange struct {
	addr   uint64
	offset uint64
	size   uint64
}

func (b *Binary) degrade(stage Stage, err error) *Binary {
	b.Symbols = nil
	b.Malformed = parseErr(b.Format, stage, err)
	return b
}

// FunctionBytes returns the code of sym. data must be the buffer the
// binary was parsed from.
func (b *Binary) FunctionBytes(data []byte, sym Symbol) ([]byte, error) {
	if sym.Address < b.code.addr || sym.Address-b.code.addr+sym.Size > b.code.size {
		return nil, fmt.Errorf("%w: function at %#x is outside of %s", ErrMissingSection, sym.Address, b.SectionName)
	}
	start := b.code.offset + (sym.Address - b.code.addr)
	if !inRange(start, sym.Size, len(data)) {
		return nil, fmt.Errorf("%w: function at %#x", ErrUnexpectedEOF, sym.Address)
	}
	return data[start : start+sym.Size], nil
}

// Open reads and parses the binary at path.
func Open(path string) (*Binary, []byte, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions reads and parses the binary at path. The file content is
// returned alongside the result for FunctionBytes.
func OpenWithOptions(path string, opts Options) (*Binary, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error when reading the file: %w", err)
	}

	bin, err := parse(data, opts)
	if err != nil {
		return nil, nil, err
	}
	if !needsPDB(bin) {
		return bin, data, nil
	}
	if opts.PDB == nil {
		return nil, nil, parseErr(FormatPE, StageSymbols, ErrNoCOFFSymbols)
	}

	syms, err := opts.PDB.Symbols(path, bin.TextSize)
	if err != nil {
		return nil, nil, parseErr(FormatPE, StageSymbols, fmt.Errorf("error when loading symbols from the PDB: %w", err))
	}
	bin.Symbols = dedupByAddress(syms)
	return bin, data, nil
}

// Parse parses an executable held in memory. PE files without COFF
// function symbols fail with ErrNoCOFFSymbols.
func Parse(data []byte, opts Options) (*Binary, error) {
	bin, err := parse(data, opts)
	if err != nil {
		return nil, err
	}
	if needsPDB(bin) {
		return nil, parseErr(FormatPE, StageSymbols, ErrNoCOFFSymbols)
	}
	return bin, nil
}

func parse(data []byte, opts Options) (*Binary, error) {
	format, order, err := DetectFormat(data)
	if err != nil {
		return nil, parseErr(format, StageDetect, err)
	}

	section := opts.SectionName
	if section == "" {
		section = DefaultSectionName
	}

	var bin *Binary
	switch format {
	case FormatELF32, FormatELF64:
		bin, err = parseELF(data, format, order, section)
	case FormatMachO:
		bin, err = parseMachO(data, machoSectionName(section))
	case FormatMachOFat:
		bin, err = parseMachOFat(data, machoSectionName(section))
	case FormatPE:
		bin, err = parsePE(data, section)
	default:
		err = parseErr(format, StageDetect, ErrUnsupportedFile)
	}
	if err != nil {
		return nil, err
	}

	bin.FileSize = uint64(len(data))
	bin.Symbols = dedupByAddress(bin.Symbols)
	return bin, nil
}

func needsPDB(bin *Binary) bool {
	return bin.Format == FormatPE && bin.Malformed == nil && len(bin.Symbols) == 0
}

func machoSectionName(name string) string {
	if name == DefaultSectionName {
		return machoDefaultSection
	}
	return name
}
