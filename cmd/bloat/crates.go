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
	"slices"

	"github.com/goretk/bloat"
	"github.com/goretk/bloat/ar"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// loadCrates builds the symbol index from the rlib archives and classifies
// the crates they belong to. Without --std-dir the built-in list of
// standard library crates is used.
func loadCrates(ctx context.Context, opts *options) (*bloat.DepsIndex, bloat.CrateSets, error) {
	index := bloat.NewDepsIndex()
	deps := slices.Clone(opts.deps)
	std := bloat.DefaultStdCrates

	if opts.stdDir != "" {
		dir, err := homedir.Expand(opts.stdDir)
		if err != nil {
			return nil, bloat.CrateSets{}, errors.Wrap(err, "could not expand --std-dir")
		}
		archives, err := ar.Scan(dir)
		if err != nil {
			return nil, bloat.CrateSets{}, errors.Wrap(err, "could not list the standard library archives")
		}
		std = nil
		for _, a := range archives {
			std = append(std, a.Crate)
		}
		if err := indexArchives(ctx, index, archives, opts.jobs); err != nil {
			return nil, bloat.CrateSets{}, err
		}
	}

	if len(opts.depsDirs) > 0 {
		dirs := make([]string, len(opts.depsDirs))
		for i, d := range opts.depsDirs {
			dir, err := homedir.Expand(d)
			if err != nil {
				return nil, bloat.CrateSets{}, errors.Wrap(err, "could not expand --deps-dir")
			}
			dirs[i] = dir
		}
		archives, err := ar.Scan(dirs...)
		if err != nil {
			return nil, bloat.CrateSets{}, errors.Wrap(err, "could not list the dependency archives")
		}
		for _, a := range archives {
			deps = append(deps, a.Crate)
		}
		if err := indexArchives(ctx, index, archives, opts.jobs); err != nil {
			return nil, bloat.CrateSets{}, err
		}
	}

	if len(deps) == 0 {
		logrus.Warn("no dependency crates given, code outside of the standard library is reported as " + bloat.UnknownCrate)
	}

	sets := bloat.NewCrateSets(deps, std)
	logrus.WithFields(logrus.Fields{
		"deps":    len(sets.Deps),
		"std":     len(sets.Std),
		"symbols": index.Len(),
	}).Debug("loaded crates")
	return index, sets, nil
}

// indexArchives adds the symbols of every archive to index, under both
// the raw and the demangled name.
func indexArchives(ctx context.Context, index *bloat.DepsIndex, archives []ar.Archive, jobs int) error {
	entries, err := ar.Load(ctx, archives, jobs)
	if err != nil {
		return errors.Wrap(err, "could not read the archive symbol tables")
	}
	for _, e := range entries {
		index.Add(e.Symbol, e.Crate)
		if n := bloat.DemangleSymbol(e.Symbol); n.Complete != e.Symbol {
			index.Add(n.Complete, e.Crate)
		}
	}
	return nil
}
