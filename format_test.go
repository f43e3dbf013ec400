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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFormat(t *testing.T) {
	elfIdent := func(class, data byte) []byte {
		b := make([]byte, 64)
		copy(b, "\x7fELF")
		b[4], b[5] = class, data
		return b
	}
	javaClass := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x34}

	tests := []struct {
		name   string
		data   []byte
		format Format
		order  binary.ByteOrder
		ok     bool
	}{
		{"elf64_le", elfIdent(2, 1), FormatELF64, binary.LittleEndian, true},
		{"elf32_be", elfIdent(1, 2), FormatELF32, binary.BigEndian, true},
		{"elf_bad_class", elfIdent(3, 1), FormatUnknown, nil, false},
		{"elf_bad_data", elfIdent(2, 0), FormatUnknown, nil, false},
		{"elf_truncated", []byte("\x7fELF\x02"), FormatUnknown, nil, false},
		{"elf_fixture", elfFixture{class: elf.ELFCLASS64, textSize: 8}.build(), FormatELF64, binary.LittleEndian, true},
		{"macho", machoFixture{textSize: 8}.build(), FormatMachO, binary.LittleEndian, true},
		{"macho32", []byte{0xce, 0xfa, 0xed, 0xfe}, FormatUnknown, nil, false},
		{"fat", buildFat([]uint32{0x01000007}, [][]byte{machoFixture{textSize: 8}.build()}), FormatMachOFat, binary.BigEndian, true},
		{"java_class", javaClass, FormatUnknown, nil, false},
		{"pe", peFixture{textSize: 8}.build(), FormatPE, binary.LittleEndian, true},
		{"mz_stub", append([]byte("MZ"), make([]byte, 0x40)...), FormatUnknown, nil, false},
		{"short", []byte{0x7f}, FormatUnknown, nil, false},
		{"garbage", []byte("hello world"), FormatUnknown, nil, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)
			format, order, err := DetectFormat(test.data)
			assert.Equal(test.format, format)
			assert.Equal(test.order, order)
			if test.ok {
				assert.NoError(err)
			} else {
				assert.ErrorIs(err, ErrUnsupportedFile)
			}
		})
	}
}

func TestParseUnsupported(t *testing.T) {
	_, err := Parse([]byte("not a binary"), Options{})
	var perr *ParseError
	if assert.ErrorAs(t, err, &perr) {
		assert.Equal(t, StageDetect, perr.Stage)
	}
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}
