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

package provenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("config.yaml"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("initial configs", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return dir, hash.String()
}

func TestCollectCleanRepo(t *testing.T) {
	dir, commit := initRepo(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := Collect(dir, now)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a record for a git repository")
	}
	if rec.Commit != commit {
		t.Errorf("Expected commit %s, got %s", commit, rec.Commit)
	}
	if rec.Dirty {
		t.Error("Expected a clean worktree")
	}
	if rec.Branch != "master" {
		t.Errorf("Expected branch master, got %q", rec.Branch)
	}
	if !rec.SubmittedAt.Equal(now) {
		t.Errorf("Expected submitted_at %v, got %v", now, rec.SubmittedAt)
	}
}

func TestCollectDirtySubdirectory(t *testing.T) {
	dir, _ := initRepo(t)
	sub := filepath.Join(dir, "model")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rec, err := Collect(sub, time.Now())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected the enclosing repository to be detected")
	}
	if !rec.Dirty {
		t.Error("Expected a modified tracked file to mark the worktree dirty")
	}
	if rec.ConfigDir != sub {
		t.Errorf("Expected config dir %s, got %s", sub, rec.ConfigDir)
	}
}

func TestCollectOutsideRepo(t *testing.T) {
	rec, err := Collect(t.TempDir(), time.Now())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if rec != nil {
		t.Errorf("Expected no record outside a repository, got %+v", rec)
	}
}

func TestWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/w", 0755); err != nil {
		t.Fatal(err)
	}
	rec := &Record{RepoRoot: "/src", Commit: "abc123", Branch: "main", ConfigDir: "/src/configs"}

	path, err := Write(fs, "/w", rec)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != "/w/provenance.yaml" {
		t.Errorf("Expected /w/provenance.yaml, got %s", path)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("provenance is not valid YAML: %v", err)
	}
	if got["commit"] != "abc123" || got["branch"] != "main" || got["dirty"] != false {
		t.Errorf("Unexpected provenance content: %v", got)
	}
}
