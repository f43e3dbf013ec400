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

package ar

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

const rlibExt = ".rlib"

// Archive is a library archive and the crate it was built from.
type Archive struct {
	Crate string
	Path  string
}

// Entry records that Crate's archive defines Symbol.
type Entry struct {
	Crate  string
	Symbol string
}

// CrateName derives the crate name from an rlib file name:
// libserde_json-0123abcd.rlib is serde_json.
func CrateName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem, _, _ = strings.Cut(stem, "-")
	return strings.TrimPrefix(stem, "lib")
}

// Scan lists the rlib files in dirs, sorted by crate name.
func Scan(dirs ...string) ([]Archive, error) {
	var archives []Archive
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("error when listing %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != rlibExt {
				continue
			}
			archives = append(archives, Archive{
				Crate: CrateName(e.Name()),
				Path:  filepath.Join(dir, e.Name()),
			})
		}
	}
	slices.SortStableFunc(archives, func(a, b Archive) int {
		return cmp.Compare(a.Crate, b.Crate)
	})
	return archives, nil
}

// Load reads the symbol index of every archive using a pool of workers.
// Entries are returned in archive order.
func Load(ctx context.Context, archives []Archive, workers int) ([]Entry, error) {
	if workers < 1 {
		workers = 1
	}

	type result struct {
		symbols []string
		err     error
	}
	results := make([]result, len(archives))
	work := make(chan int)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for i := range work {
			data, err := os.ReadFile(archives[i].Path)
			if err != nil {
				results[i].err = err
				continue
			}
			syms, err := Parse(data)
			if err != nil {
				results[i].err = fmt.Errorf("%s: %w", archives[i].Path, err)
				continue
			}
			results[i].symbols = syms
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	var cancelled error
send:
	for i := range archives {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		select {
		case work <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break send
		}
	}
	close(work)
	wg.Wait()

	if cancelled != nil {
		return nil, cancelled
	}

	var entries []Entry
	for i, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		for _, sym := range r.symbols {
			entries = append(entries, Entry{Crate: archives[i].Crate, Symbol: sym})
		}
	}
	return entries, nil
}
