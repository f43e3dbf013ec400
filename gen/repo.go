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
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	rustRepoURL = "https://github.com/rust-lang/rust.git"
	// RustRepoEnv points at an existing rust-lang/rust checkout.
	RustRepoEnv = "BLOAT_RUST_REPO"
)

var (
	rustRepo    *git.Repository
	rustRepoDir string
)

// openRepo makes rustRepo available. The checkout named by RustRepoEnv is
// used for CI. Otherwise a bare repository in the user cache directory
// holds the release tags fetched so far.
func openRepo() error {
	dir, ok := os.LookupEnv(RustRepoEnv)
	if !ok {
		cache, err := os.UserCacheDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(cache, "bloat", "rust.git")
	}

	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		fmt.Println("initializing", dir)
		repo, err = git.PlainInit(dir, true)
		if err == nil {
			_, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{rustRepoURL}})
		}
	}
	if err != nil {
		return fmt.Errorf("error when opening %s: %w", dir, err)
	}

	rustRepo, rustRepoDir = repo, dir
	return nil
}

// latestReleaseTag asks origin for its tags and returns the newest stable
// release. Nothing is downloaded besides the ref list.
func latestReleaseTag() (string, error) {
	remote, err := rustRepo.Remote("origin")
	if err != nil {
		return "", err
	}
	refs, err := remote.List(&git.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("error when listing the tags of %s: %w", rustRepoURL, err)
	}

	return newestRelease(refs)
}

// newestRelease picks the highest stable version among the tag refs.
// Peeled entries and tags that are not versions are ignored.
func newestRelease(refs []*plumbing.Reference) (string, error) {
	var (
		best    semver.Version
		bestTag string
	)
	for _, ref := range refs {
		name := ref.Name()
		if !name.IsTag() || strings.HasSuffix(name.String(), "^{}") {
			continue
		}
		v, err := semver.ParseTolerant(name.Short())
		if err != nil || len(v.Pre) > 0 {
			continue
		}
		if bestTag == "" || v.GT(best) {
			best, bestTag = v, name.Short()
		}
	}
	if bestTag == "" {
		return "", errors.New("no release tags")
	}
	return bestTag, nil
}

// fetchTag downloads the tree of a single release. The rust repo is huge,
// a shallow fetch with the git binary is much faster than the go
// implementation.
func fetchTag(tag string) (*plumbing.Reference, error) {
	if ref, err := rustRepo.Tag(tag); err == nil {
		return ref, nil
	}

	fmt.Println("fetching", tag)
	cmd := exec.Command("git", "-C", rustRepoDir, "fetch", "--depth", "1", "origin", "tag", tag)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("error when fetching %s: %w", tag, err)
	}
	return rustRepo.Tag(tag)
}
