// Copyright 2019 The GoRE.tk Authors. All rights reserved.
// Use of this source code is governed by the license that
// can be found in the LICENSE file.

package bloat

import "fmt"

// Function is a function as it appears in a size report.
type Function struct {
	// Name is the trimmed or complete demangled name.
	Name string
	// Crate is the crate the function was attributed to.
	Crate string
	// Exact is false when the crate is a guess.
	Exact bool
	// Size is the size of the function in bytes.
	Size uint64
	// Address is the start of the function. For PE files it is relative to
	// the code section.
	Address uint64
}

// DisplayCrate returns the crate name with a trailing "?" for guesses.
func (f *Function) DisplayCrate() string {
	return Attribution{Crate: f.Crate, Exact: f.Exact}.Display()
}

// String returns a string summary of the function.
func (f *Function) String() string {
	return fmt.Sprintf("%s %s (%s)", f.DisplayCrate(), f.Name, FormatSize(f.Size))
}

// CrateSize is the total size of all functions attributed to a crate.
type CrateSize struct {
	// Name is the crate name.
	Name string `json:"name"`
	// Size is the sum of the function sizes in bytes.
	Size uint64 `json:"size"`
}

// String returns a string summary of the crate.
func (c *CrateSize) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, FormatSize(c.Size))
}

const (
	kib = 1024
	mib = 1024 * kib
)

// FormatSize formats a byte count as B, KiB or MiB.
func FormatSize(bytes uint64) string {
	switch {
	case bytes >= mib:
		return fmt.Sprintf("%.1fMiB", float64(bytes)/mib)
	case bytes >= kib:
		return fmt.Sprintf("%.1fKiB", float64(bytes)/kib)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// FormatPercent formats part as a percentage of total. A zero total
// yields 0.0%.
func FormatPercent(part, total uint64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}
