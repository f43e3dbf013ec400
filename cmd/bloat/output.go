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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/goretk/bloat"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

const guessworkNote = "Note: numbers above are a result of guesswork. They are not 100% correct and never will be."

type jsonFunction struct {
	Crate        string `json:"crate,omitempty"`
	Exact        bool   `json:"exact"`
	Name         string `json:"name"`
	Size         uint64 `json:"size"`
	Instructions *int   `json:"instructions,omitempty"`
}

type jsonFunctionReport struct {
	FileSize        uint64         `json:"file-size"`
	TextSectionSize uint64         `json:"text-section-size"`
	Functions       []jsonFunction `json:"functions"`
}

type jsonCrateReport struct {
	FileSize        uint64            `json:"file-size"`
	TextSectionSize uint64            `json:"text-section-size"`
	Crates          []bloat.CrateSize `json:"crates"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "could not write the report")
}

func printFunctions(w io.Writer, opts *options, bin *bloat.Binary, report bloat.FunctionReport, instructions []int) error {
	if opts.format == formatJSON {
		out := jsonFunctionReport{
			FileSize:        bin.FileSize,
			TextSectionSize: bin.TextSize,
			Functions:       make([]jsonFunction, 0, len(report.Functions)),
		}
		for i, f := range report.Functions {
			jf := jsonFunction{Exact: f.Exact, Name: f.Name, Size: f.Size}
			if f.Crate != bloat.UnknownCrate {
				jf.Crate = f.Crate
			}
			if instructions != nil && instructions[i] >= 0 {
				jf.Instructions = &instructions[i]
			}
			out.Functions = append(out.Functions, jf)
		}
		return writeJSON(w, out)
	}

	var numeric []string
	if instructions != nil {
		numeric = []string{"Instr"}
	}
	t := newSizeTable(w, opts, bin, numeric, []string{"Crate", "Name"})

	for i, f := range report.Functions {
		row := []string{f.DisplayCrate(), f.Name}
		if instructions != nil {
			n := "-"
			if instructions[i] >= 0 {
				n = strconv.Itoa(instructions[i])
			}
			row = append([]string{n}, row...)
		}
		t.append(f.Size, row...)
	}

	footer := func(size uint64, text string) {
		row := []string{"", text}
		if instructions != nil {
			row = append([]string{""}, row...)
		}
		t.append(size, row...)
	}
	if others := report.Others(); others > 0 {
		footer(report.FilteredOutSize, fmt.Sprintf("And %d smaller methods. Use -n N to show more.", others))
	}
	if report.Filtered {
		footer(report.MatchedSize(), fmt.Sprintf("filtered data size, the file size is %s", bloat.FormatSize(bin.FileSize)))
	}
	footer(bin.TextSize, sectionSummary(bin))

	t.render()
	return nil
}

func printCrates(w io.Writer, opts *options, bin *bloat.Binary, report bloat.CrateReport) error {
	if opts.format == formatJSON {
		crates := report.Crates
		if crates == nil {
			crates = []bloat.CrateSize{}
		}
		return writeJSON(w, jsonCrateReport{
			FileSize:        bin.FileSize,
			TextSectionSize: bin.TextSize,
			Crates:          crates,
		})
	}

	t := newSizeTable(w, opts, bin, nil, []string{"Crate"})
	for _, c := range report.Crates {
		t.append(c.Size, c.Name)
	}
	if report.FilteredOutCount > 0 {
		t.append(report.FilteredOutSize, fmt.Sprintf("And %d more crates. Use -n N to show more.", report.FilteredOutCount))
	}
	t.append(bin.TextSize, sectionSummary(bin))
	t.render()

	note := color.New(color.FgYellow)
	if terminalWidth(w) == 0 {
		note.DisableColor()
	}
	fmt.Fprintln(w)
	_, err := note.Fprintln(w, guessworkNote)
	return err
}

func sectionSummary(bin *bloat.Binary) string {
	return fmt.Sprintf("%s section size, the file size is %s", bin.SectionName, bloat.FormatSize(bin.FileSize))
}

// sizeTable renders rows that start with the size columns: the share of
// the file and of the code section, then the size itself. Numeric columns
// are right aligned, text columns left aligned.
type sizeTable struct {
	w        io.Writer
	bin      *bloat.Binary
	relative bool
	header   []string
	text     int
	rows     [][]string
	// width is the terminal width the last column is truncated to, 0 for
	// no limit.
	width int
}

func newSizeTable(w io.Writer, opts *options, bin *bloat.Binary, numeric, text []string) *sizeTable {
	t := &sizeTable{w: w, bin: bin, relative: !opts.noRelativeSize, text: len(text)}
	if t.relative {
		t.header = []string{"File", bin.SectionName}
	}
	t.header = append(t.header, "Size")
	t.header = append(t.header, numeric...)
	t.header = append(t.header, text...)
	if !opts.wide {
		t.width = terminalWidth(w)
	}
	return t
}

func (t *sizeTable) append(size uint64, columns ...string) {
	var row []string
	if t.relative {
		row = []string{
			bloat.FormatPercent(size, t.bin.FileSize),
			bloat.FormatPercent(size, t.bin.TextSize),
		}
	}
	row = append(row, bloat.FormatSize(size))
	t.rows = append(t.rows, append(row, columns...))
}

func (t *sizeTable) render() {
	last := len(t.header) - 1
	if t.width > 0 {
		if limit := t.width - t.leadingWidth(); limit > 0 {
			for _, row := range t.rows {
				row[last] = truncateName(row[last], limit)
			}
		}
	}

	table := tablewriter.NewWriter(t.w)
	table.SetHeader(t.header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	align := make([]int, len(t.header))
	for i := range align {
		align[i] = tablewriter.ALIGN_RIGHT
		if i >= len(t.header)-t.text {
			align[i] = tablewriter.ALIGN_LEFT
		}
	}
	table.SetColumnAlignment(align)
	table.AppendBulk(t.rows)
	table.Render()
}

// leadingWidth is the width of all columns but the last, padding included.
func (t *sizeTable) leadingWidth() int {
	total := 0
	for col := 0; col < len(t.header)-1; col++ {
		w := len(t.header[col])
		for _, row := range t.rows {
			w = max(w, utf8.RuneCountInString(row[col]))
		}
		total += w + 1
	}
	return total
}

// truncateName shortens s to limit runes, marking the cut with "...".
func truncateName(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string(r[:limit])
	}
	return string(r[:limit-len(ellipsis)]) + ellipsis
}

const ellipsis = "..."

// terminalWidth returns the width of w if it is a terminal, 0 otherwise.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
