// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package snapshot copies the configuration directory of a run into its
// working directory, so the exact inputs of a job stay next to its outputs.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"slurm-submit/pkg/logging"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/otiai10/copy"
)

const (
	// DirName is the snapshot directory inside the working directory.
	DirName = "config_snapshot"
	// IgnoreFileName holds extra ignore patterns, in .dockerignore syntax.
	IgnoreFileName = ".slurmignore"
)

// DefaultIgnorePatterns are always excluded from snapshots.
var DefaultIgnorePatterns = []string{
	".git",
	"outputs",
	"multirun",
	"__pycache__",
	"*.pyc",
	"*.log",
	"tmp/",
	".DS_Store",
}

// ReadIgnorePatterns builds a matcher from defaultPatterns plus the patterns in dir/.slurmignore, if present.
func ReadIgnorePatterns(dir string, defaultPatterns []string) (*patternmatcher.PatternMatcher, error) {
	ignorePath := filepath.Join(dir, IgnoreFileName)

	patterns := append([]string(nil), defaultPatterns...)

	if _, err := os.Stat(ignorePath); err == nil {
		file, err := os.Open(ignorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open ignore file %q: %w", ignorePath, err)
		}
		defer file.Close()

		filePatterns, err := ignorefile.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read ignore file %q: %w", ignorePath, err)
		}
		patterns = append(patterns, filePatterns...)
		logging.Info("Found %d patterns in %s at %q", len(filePatterns), IgnoreFileName, ignorePath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat ignore file %q: %w", ignorePath, err)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern matcher: %w", err)
	}
	return matcher, nil
}

// shouldIgnore reports whether relPath (relative to the snapshot source) matches the ignore patterns.
func shouldIgnore(matcher *patternmatcher.PatternMatcher, relPath string, isDir bool) (bool, error) {
	// Directories get a trailing slash so "dir/" patterns match them.
	relPathSlash := filepath.ToSlash(relPath)
	if isDir && !strings.HasSuffix(relPathSlash, "/") {
		relPathSlash += "/"
	}
	return matcher.MatchesOrParentMatches(relPathSlash)
}

// CopyFiltered copies sourceDir to destDir, skipping ignored entries and symlinks.
// It returns the number of regular files copied.
func CopyFiltered(sourceDir, destDir string, matcher *patternmatcher.PatternMatcher) (int, error) {
	// The root itself may be a symlink, e.g. a fetched config source.
	root, err := filepath.EvalSymlinks(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s: %w", sourceDir, err)
	}

	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}

	copied := 0
	opts := copy.Options{
		Skip: func(info os.FileInfo, src, dest string) (bool, error) {
			// The destination may live inside the source tree.
			if src == destAbs {
				return true, nil
			}
			relPath, err := filepath.Rel(root, src)
			if err != nil {
				return false, fmt.Errorf("failed to get relative path for %q: %w", src, err)
			}
			if relPath == "." {
				return false, nil
			}

			ignored, err := shouldIgnore(matcher, relPath, info.IsDir())
			if err != nil {
				return false, fmt.Errorf("failed to check ignore patterns for %q: %w", src, err)
			}
			if ignored {
				logging.Debug("Ignoring %q", relPath)
				return true, nil
			}
			if info.Mode().IsRegular() {
				copied++
			}
			return false, nil
		},
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Skip
		},
	}

	if err := copy.Copy(root, destDir, opts); err != nil {
		return copied, fmt.Errorf("failed to copy %s to %s: %w", sourceDir, destDir, err)
	}
	return copied, nil
}

// Take snapshots configDir into <workingDir>/config_snapshot and returns that path.
func Take(configDir, workingDir string) (string, error) {
	matcher, err := ReadIgnorePatterns(configDir, DefaultIgnorePatterns)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(workingDir, DirName)
	n, err := CopyFiltered(configDir, dest, matcher)
	if err != nil {
		return "", err
	}
	logging.Info("Snapshot of %s (%d files) saved to %s", configDir, n, dest)
	return dest, nil
}
