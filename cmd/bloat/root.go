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
	"context"
	"io"
	"runtime"

	"github.com/goretk/bloat"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultLimit = 20

type options struct {
	crates         bool
	filter         string
	splitStd       bool
	fullFn         bool
	n              int
	wide           bool
	noRelativeSize bool
	section        string
	format         messageFormat
	depsDirs       []string
	stdDir         string
	deps           []string
	instructions   bool
	jobs           int
}

func (o *options) attribution() bloat.AttributionConfig {
	return bloat.AttributionConfig{
		SplitStd: o.splitStd,
		FullFn:   o.fullFn,
		Filter:   o.filter,
		N:        o.n,
	}
}

func newRootCommand(ctx context.Context) *cobra.Command {
	opts := &options{format: formatTable}
	var logLevel string

	cmd := &cobra.Command{
		Use:   "bloat [flags] <binary>",
		Short: "Find out what takes most of the space in a Rust executable",
		Long: `bloat lists the largest functions, or crates, of an ELF, Mach-O or PE
executable. Functions are attributed to crates using the symbol index of the
rlib archives given with --deps-dir and --std-dir.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				lvl, err := logrus.ParseLevel(logLevel)
				if err != nil {
					return errors.Wrap(err, "could not parse log level")
				}
				logrus.SetLevel(lvl)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(ctx, opts, args[0], cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.crates, "crates", false, "list crates instead of functions")
	flags.StringVar(&opts.filter, "filter", "", "only show functions of a crate, or matching a regular expression")
	flags.BoolVar(&opts.splitStd, "split-std", false, "show the standard library crates individually instead of as std")
	flags.BoolVar(&opts.fullFn, "full-fn", false, "print full function names, including the hash")
	flags.IntVarP(&opts.n, "n", "n", defaultLimit, "number of lines to show, 0 to show all")
	flags.BoolVarP(&opts.wide, "wide", "w", false, "do not truncate function names to the terminal width")
	flags.BoolVar(&opts.noRelativeSize, "no-relative-size", false, "hide the file and section percentage columns")
	flags.StringVar(&opts.section, "symbols-section", bloat.DefaultSectionName, "code section to analyze")
	flags.Var(&opts.format, "message-format", "output format, table or json")
	flags.StringArrayVar(&opts.depsDirs, "deps-dir", nil, "directory with the dependency rlib archives, can be repeated")
	flags.StringVar(&opts.stdDir, "std-dir", "", "directory with the standard library rlib archives")
	flags.StringArrayVar(&opts.deps, "dep", nil, "name of a dependency crate without an archive, can be repeated")
	flags.BoolVar(&opts.instructions, "instructions", false, "count the machine instructions of each function")
	flags.IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "number of archives read in parallel")

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", `set the log level, e.g. "debug", "info", "warn", "error"`)

	return cmd
}

func run(ctx context.Context, opts *options, path string, w io.Writer) error {
	if opts.n < 0 {
		return errors.Errorf("invalid limit %d", opts.n)
	}

	bin, data, err := bloat.OpenWithOptions(path, bloat.Options{SectionName: opts.section})
	if err != nil {
		return errors.Wrapf(err, "could not analyze %s", path)
	}
	log := logrus.WithFields(logrus.Fields{
		"format":  bin.Format,
		"arch":    bin.Arch,
		"symbols": len(bin.Symbols),
	})
	if bin.Malformed != nil {
		log.WithError(bin.Malformed).Warn("the symbol table is malformed, no functions could be recovered")
	}
	log.Debug("parsed binary")

	index, sets, err := loadCrates(ctx, opts)
	if err != nil {
		return err
	}
	r := bloat.NewResolver(index, sets, opts.attribution())

	if opts.crates {
		return printCrates(w, opts, bin, r.CrateSizes(bin.Symbols))
	}

	report := r.Functions(bin.Symbols)
	if report.FilterWarning != nil {
		logrus.Warn(report.FilterWarning)
	}

	var instructions []int
	if opts.instructions {
		instructions = countInstructions(bin, data, report.Functions)
	}
	return printFunctions(w, opts, bin, report, instructions)
}

// countInstructions returns the instruction count of every function, or -1
// where it could not be determined.
func countInstructions(bin *bloat.Binary, data []byte, functions []bloat.Function) []int {
	counts := make([]int, len(functions))
	warned := false
	for i, f := range functions {
		counts[i] = -1
		code, err := bin.FunctionBytes(data, bloat.Symbol{Address: f.Address, Size: f.Size})
		if err != nil {
			logrus.WithError(err).WithField("function", f.Name).Debug("could not read the function")
			continue
		}
		n, err := bloat.CountInstructions(code, bin.Arch)
		if err != nil {
			if !warned {
				logrus.WithError(err).Warn("instructions can't be counted")
				warned = true
			}
			continue
		}
		counts[i] = n
	}
	return counts
}
