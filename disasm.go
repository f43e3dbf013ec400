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
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

const arm64InstLen = 4

// CountInstructions returns the number of machine instructions in code.
// Bytes that don't decode are skipped: one byte at a time on x86, one
// instruction slot on arm64.
func CountInstructions(code []byte, arch string) (int, error) {
	switch arch {
	case ArchAMD64:
		return countX86(code, 64), nil
	case Arch386:
		return countX86(code, 32), nil
	case ArchARM64:
		return countARM64(code), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedArch, arch)
	}
}

func countX86(code []byte, mode int) int {
	n := 0
	for s := 0; s < len(code); {
		inst, err := x86asm.Decode(code[s:], mode)
		if err != nil || inst.Len == 0 {
			s++
			continue
		}
		s += inst.Len
		n++
	}
	return n
}

func countARM64(code []byte) int {
	n := 0
	for s := 0; s+arm64InstLen <= len(code); s += arm64InstLen {
		if _, err := arm64asm.Decode(code[s : s+arm64InstLen]); err != nil {
			continue
		}
		n++
	}
	return n
}
