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

// Package provenance records which revision of the configuration a job was submitted from.
package provenance

import (
	"fmt"
	"path/filepath"
	"slurm-submit/pkg/logging"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FileName is the provenance record written into the working directory.
const FileName = "provenance.yaml"

// Record describes the git state of a configuration directory at submission time.
type Record struct {
	RepoRoot    string    `yaml:"repo_root"`
	Commit      string    `yaml:"commit"`
	Branch      string    `yaml:"branch,omitempty"`
	Dirty       bool      `yaml:"dirty"`
	ConfigDir   string    `yaml:"config_dir"`
	SubmittedAt time.Time `yaml:"submitted_at"`
}

// Collect inspects the git repository containing dir.
// It returns a nil Record and no error when dir is not inside a repository.
func Collect(dir string, now time.Time) (*Record, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	repo, err := git.PlainOpenWithOptions(absDir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		logging.Debug("%s is not in a git repository, skipping provenance", absDir)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open git repository for %s", absDir)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve HEAD")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read worktree status")
	}

	rec := &Record{
		RepoRoot:    wt.Filesystem.Root(),
		Commit:      head.Hash().String(),
		Dirty:       !status.IsClean(),
		ConfigDir:   absDir,
		SubmittedAt: now.UTC(),
	}
	if head.Name().IsBranch() {
		rec.Branch = head.Name().Short()
	}
	return rec, nil
}

// Write stores rec as FileName under workingDir and returns the file path.
func Write(fs afero.Fs, workingDir string, rec *Record) (string, error) {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal provenance: %w", err)
	}
	path := filepath.Join(workingDir, FileName)
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
