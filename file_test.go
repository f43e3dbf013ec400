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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFiles(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		format  Format
		section string
		symbol  string
	}{
		{
			"elf",
			elfFixture{class: elf.ELFCLASS64, textAddr: 0x1000, textSize: 16, syms: []fixtureSym{funcSym("main", 0x1000, 16)}}.build(),
			FormatELF64,
			".text",
			"main",
		},
		{
			"macho",
			machoFixture{textAddr: 0x100000000, textSize: 16, syms: []machoNlist{machoFunc("_main", 0x100000000)}}.build(),
			FormatMachO,
			"__text",
			"_main",
		},
		{
			"pe",
			peFixture{textSize: 16, syms: []coffSym{coffFunc("main", 0)}}.build(),
			FormatPE,
			".text",
			"main",
		},
	}

	dir := t.TempDir()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			path := filepath.Join(dir, test.name)
			require.NoError(os.WriteFile(path, test.data, 0o644))

			bin, data, err := Open(path)
			require.NoError(err)
			assert.Equal(test.data, data)
			assert.Equal(test.format, bin.Format)
			assert.Equal(test.section, bin.SectionName)
			assert.Equal(uint64(len(test.data)), bin.FileSize)
			assert.Equal(uint64(16), bin.TextSize)
			require.Len(bin.Symbols, 1)
			assert.Equal(test.symbol, bin.Symbols[0].Name.Trimmed)
		})
	}
}

func TestOpenUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("just some notes"), 0o644))

	_, _, err := Open(path)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestFunctionBytesBounds(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data := elfFixture{
		class:    elf.ELFCLASS64,
		textAddr: 0x1000,
		textSize: 32,
		syms:     []fixtureSym{funcSym("main", 0x1000, 32)},
	}.build()
	bin, err := Parse(data, Options{})
	require.NoError(err)

	_, err = bin.FunctionBytes(data, Symbol{Address: 0x800, Size: 4})
	assert.ErrorIs(err, ErrMissingSection)

	_, err = bin.FunctionBytes(data, Symbol{Address: 0x1010, Size: 32})
	assert.ErrorIs(err, ErrMissingSection, "the function runs past the section end")

	_, err = bin.FunctionBytes(data[:bin.code.offset+8], Symbol{Address: 0x1000, Size: 16})
	assert.ErrorIs(err, ErrUnexpectedEOF)

	code, err := bin.FunctionBytes(data, Symbol{Address: 0x1004, Size: 4})
	require.NoError(err)
	assert.Len(code, 4)
}

const resourceFolder = "testdata"

// TestGoldFiles checks the size invariants on real executables placed in
// testdata/gold, named gold-<os>-<arch>-<anything>.
func TestGoldFiles(t *testing.T) {
	goldFiles, err := getGoldenResources()
	if err != nil || len(goldFiles) == 0 {
		t.Skip("No golden files")
	}

	for _, file := range goldFiles {
		t.Run(file, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			bin, _, err := Open(filepath.Join(resourceFolder, "gold", file))
			require.NoError(err)
			require.Nil(bin.Malformed)
			require.NotEmpty(bin.Symbols)

			var total uint64
			for i, s := range bin.Symbols {
				assert.NotZero(s.Size, s.Name.Complete)
				if i > 0 {
					assert.Greater(s.Address, bin.Symbols[i-1].Address)
				}
				total += s.Size
			}
			assert.LessOrEqual(total, bin.TextSize)

			fileInfo := strings.Split(file, "-")
			if len(fileInfo) > 2 {
				assert.Equal(fileInfo[2], bin.Arch)
			}
		})
	}
}

func getGoldenResources() ([]string, error) {
	folder, err := os.ReadDir(filepath.Join(resourceFolder, "gold"))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range folder {
		if f.IsDir() || !strings.HasPrefix(f.Name(), "gold-") {
			continue
		}
		files = append(files, f.Name())
	}
	return files, nil
}
