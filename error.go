// Copyright 2019 The GoRE.tk Authors. All rights reserved.
// Use of this source code is governed by the license that
// can be found in the LICENSE file.

package bloat

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFile is returned if the file format is not recognized or not supported.
	ErrUnsupportedFile = errors.New("unsupported file")
	// ErrUnexpectedEOF is returned when a record extends past the end of the buffer.
	ErrUnexpectedEOF = errors.New("unexpected end of data")
	// ErrMissingSection is returned when the code section, symbol table or another
	// required section could not be located.
	ErrMissingSection = errors.New("section does not exist")
	// ErrBadLink is returned when a symbol table does not link to a string table.
	ErrBadLink = errors.New("symbol table is not linked to a string table")
	// ErrBadEntrySize is returned when a table declares an entry size that is zero
	// or smaller than the record it holds.
	ErrBadEntrySize = errors.New("invalid table entry size")
	// ErrTruncatedStringTable is returned when a name offset points past its string table.
	ErrTruncatedStringTable = errors.New("name offset outside of string table")
	// ErrBadSymbolTableSize is returned if the symbol table size is not a multiple
	// of its entry size.
	ErrBadSymbolTableSize = errors.New("symbol table size is not a multiple of the entry size")
	// ErrTextNotFirst is returned when the Mach-O __text section is not the first
	// section of the __TEXT segment.
	ErrTextNotFirst = errors.New("__text is not the first section of __TEXT")
	// ErrNoCOFFSymbols is returned for PE files without COFF function symbols.
	ErrNoCOFFSymbols = errors.New("PE file has no COFF function symbols, " +
		"it was probably built by the MSVC toolchain; fall back to its PDB debug info")
	// ErrUnsupportedArch is returned when instructions can't be decoded for the architecture.
	ErrUnsupportedArch = errors.New("unsupported architecture")
)

// Stage identifies the part of a parse that failed.
type Stage int

const (
	// StageDetect is the format detection step.
	StageDetect Stage = iota
	// StageHeader covers the fixed file header.
	StageHeader
	// StageSections covers the section or load command walk.
	StageSections
	// StageSymbols covers symbol table decoding.
	StageSymbols
)

func (s Stage) String() string {
	switch s {
	case StageDetect:
		return "format detection"
	case StageHeader:
		return "header"
	case StageSections:
		return "section walk"
	case StageSymbols:
		return "symbol decode"
	default:
		return "unknown stage"
	}
}

// ParseError reports which stage of parsing a binary failed.
type ParseError struct {
	Format Format
	Stage  Stage
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Format, e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(f Format, s Stage, err error) *ParseError {
	return &ParseError{Format: f, Stage: s, Err: err}
}
