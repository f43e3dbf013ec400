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

	"github.com/blacktop/go-macho/types"
)

// Format is an executable file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF32
	FormatELF64
	FormatMachO
	FormatMachOFat
	FormatPE
)

func (f Format) String() string {
	switch f {
	case FormatELF32:
		return "ELF32"
	case FormatELF64:
		return "ELF64"
	case FormatMachO:
		return "Mach-O"
	case FormatMachOFat:
		return "Mach-O universal"
	case FormatPE:
		return "PE"
	default:
		return "unknown"
	}
}

var (
	elfMagic       = []byte{0x7f, 0x45, 0x4c, 0x46}
	peMagic        = []byte{0x4d, 0x5a}
	peSignature    = []byte{'P', 'E', 0, 0}
	peOffsetField  = 0x3c
	maxFatArches   = 30
	minMagicBufLen = 4
)

const (
	elfClass32   = 1
	elfClass64   = 2
	elfDataLSB   = 1
	elfDataMSB   = 2
	elfIdentSize = 16
)

// DetectFormat classifies data by its magic bytes. For ELF the declared
// byte order is returned as well. Unrecognized data yields FormatUnknown
// and ErrUnsupportedFile.
func DetectFormat(data []byte) (Format, binary.ByteOrder, error) {
	if len(data) < minMagicBufLen {
		return FormatUnknown, nil, fmt.Errorf("%w: file is too small", ErrUnsupportedFile)
	}

	switch {
	case bytes.HasPrefix(data, elfMagic):
		return detectELF(data)
	case bytes.HasPrefix(data, peMagic):
		if isPE(data) {
			return FormatPE, binary.LittleEndian, nil
		}
		return FormatUnknown, nil, fmt.Errorf("%w: MZ stub without a PE header", ErrUnsupportedFile)
	}

	switch types.Magic(binary.LittleEndian.Uint32(data)) {
	case types.Magic64:
		return FormatMachO, binary.LittleEndian, nil
	case types.Magic32:
		return FormatUnknown, nil, fmt.Errorf("%w: 32-bit Mach-O", ErrUnsupportedFile)
	}

	switch types.Magic(binary.BigEndian.Uint32(data)) {
	case types.MagicFat:
		// Java class files share the magic. The second word is the class
		// version there, which is far larger than any arch count.
		if len(data) >= 8 {
			if n := binary.BigEndian.Uint32(data[4:]); n > 0 && n <= uint32(maxFatArches) {
				return FormatMachOFat, binary.BigEndian, nil
			}
		}
	case types.Magic32, types.Magic64:
		return FormatUnknown, nil, fmt.Errorf("%w: big-endian Mach-O", ErrUnsupportedFile)
	}

	return FormatUnknown, nil, ErrUnsupportedFile
}

func detectELF(data []byte) (Format, binary.ByteOrder, error) {
	if len(data) < elfIdentSize {
		return FormatUnknown, nil, fmt.Errorf("%w: truncated ELF identification", ErrUnsupportedFile)
	}

	var order binary.ByteOrder
	switch data[5] {
	case elfDataLSB:
		order = binary.LittleEndian
	case elfDataMSB:
		order = binary.BigEndian
	default:
		return FormatUnknown, nil, fmt.Errorf("%w: invalid ELF data encoding %d", ErrUnsupportedFile, data[5])
	}

	switch data[4] {
	case elfClass32:
		return FormatELF32, order, nil
	case elfClass64:
		return FormatELF64, order, nil
	default:
		return FormatUnknown, nil, fmt.Errorf("%w: invalid ELF class %d", ErrUnsupportedFile, data[4])
	}
}

func isPE(data []byte) bool {
	if len(data) < peOffsetField+4 {
		return false
	}
	off := uint64(binary.LittleEndian.Uint32(data[peOffsetField:]))
	if !inRange(off, uint64(len(peSignature)), len(data)) {
		return false
	}
	return bytes.Equal(data[off:off+4], peSignature)
}
