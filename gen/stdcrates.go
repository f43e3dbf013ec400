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
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const libraryDir = "library"

var stdcratesOutputFile = filepath.Join(getSourceDir(), "stdcrates_gen.go")

type cargoLock struct {
	Package []struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// latestRelease returns the newest stable release tag and its commit.
func latestRelease() (string, *object.Commit, error) {
	tag, err := latestReleaseTag()
	if err != nil {
		return "", nil, err
	}
	ref, err := fetchTag(tag)
	if err != nil {
		return "", nil, err
	}

	// Release tags are annotated, older ones point at the commit directly.
	if t, err := rustRepo.TagObject(ref.Hash()); err == nil {
		commit, err := t.Commit()
		return tag, commit, err
	}
	commit, err := rustRepo.CommitObject(ref.Hash())
	return tag, commit, err
}

// collectStdCrates lists the packages of the standard library workspace.
// Newer trees have a lock file for the library workspace, older ones only
// the per-crate manifests.
func collectStdCrates(commit *object.Commit) ([]string, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	var names []string
	if f, err := tree.File(path.Join(libraryDir, "Cargo.lock")); err == nil {
		contents, err := f.Contents()
		if err != nil {
			return nil, err
		}
		var lock cargoLock
		if _, err := toml.Decode(contents, &lock); err != nil {
			return nil, fmt.Errorf("error when decoding Cargo.lock: %w", err)
		}
		for _, p := range lock.Package {
			names = append(names, p.Name)
		}
	} else {
		lib, err := tree.Tree(libraryDir)
		if err != nil {
			return nil, err
		}
		for _, entry := range lib.Entries {
			if entry.Mode != filemode.Dir {
				continue
			}
			f, err := lib.File(path.Join(entry.Name, "Cargo.toml"))
			if err != nil {
				continue
			}
			contents, err := f.Contents()
			if err != nil {
				return nil, err
			}
			var manifest cargoManifest
			if _, err := toml.Decode(contents, &manifest); err != nil {
				return nil, fmt.Errorf("error when decoding %s/Cargo.toml: %w", entry.Name, err)
			}
			if manifest.Package.Name != "" {
				names = append(names, manifest.Package.Name)
			}
		}
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ReplaceAll(n, "-", "_")] = struct{}{}
	}
	crates := make([]string, 0, len(set))
	for n := range set {
		crates = append(crates, n)
	}
	sort.Strings(crates)
	return crates, nil
}

func generateStdCrates() {
	fmt.Println("Generating " + stdcratesOutputFile)

	tag, commit, err := latestRelease()
	if err != nil {
		fmt.Println("Error when resolving the latest release:", err)
		return
	}
	fmt.Println("Using release " + tag)

	crates, err := collectStdCrates(commit)
	if err != nil {
		fmt.Println("Error when collecting std crates:", err)
		return
	}

	// Generate the code.
	buf := bytes.NewBuffer(nil)

	err = stdcratesTemplate.Execute(buf, struct {
		Timestamp time.Time
		Tag       string
		Crates    []string
	}{
		Timestamp: time.Now().UTC(),
		Tag:       tag,
		Crates:    crates,
	})
	if err != nil {
		fmt.Println("Error when generating the code:", err)
		return
	}

	written, err := writeOnDemand(buf.Bytes(), stdcratesOutputFile)
	switch {
	case err != nil:
		fmt.Println(err)
	case written:
		fmt.Printf("%s updated to %s.\n", stdcratesOutputFile, tag)
	default:
		fmt.Println(stdcratesOutputFile + " no changes.")
	}
}
