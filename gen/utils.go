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

package main

import (
	"errors"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
)

// timestampLine matches the generation time in the file header.
var timestampLine = regexp.MustCompile(`^// \d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

// codeChanged reports whether the generated sources differ in anything
// other than the generation time. A new release tag alone is a change.
func codeChanged(old, new []byte) bool {
	return !slices.Equal(withoutTimestamp(old), withoutTimestamp(new))
}

func withoutTimestamp(src []byte) []string {
	lines := strings.Split(string(src), "\n")
	return slices.DeleteFunc(lines, timestampLine.MatchString)
}

// writeOnDemand formats src and writes it to target unless only the
// timestamp changed. It reports whether the file was written.
func writeOnDemand(src []byte, target string) (bool, error) {
	src, err := format.Source(src)
	if err != nil {
		return false, fmt.Errorf("error when formatting the generated code: %w", err)
	}

	old, err := os.ReadFile(target)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("error when reading %s: %w", target, err)
	}
	if err == nil && !codeChanged(old, src) {
		return false, nil
	}

	if err := os.WriteFile(target, src, 0664); err != nil {
		return false, fmt.Errorf("error when writing %s: %w", target, err)
	}
	return true, nil
}

func getSourceDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("No caller information")
	}
	return filepath.Join(filepath.Dir(filename), "..")
}
