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

// Package sources resolves the configuration directory, fetching it first
// when it names a remote location (git, S3, GCS, HTTP archives, ...).
package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slurm-submit/pkg/logging"
	"strings"

	getter "github.com/hashicorp/go-getter"
)

// IsRemote reports whether src has to be fetched rather than read in place.
// Existing local paths are never remote.
func IsRemote(src string) bool {
	if src == "" {
		return false
	}
	if _, err := os.Stat(src); err == nil {
		return false
	}
	if strings.Contains(src, "::") {
		return true
	}

	pwd, err := os.Getwd()
	if err != nil {
		return false
	}
	detected, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(detected, "file://")
}

// Fetch downloads the directory at src into dst. dst must not exist yet.
func Fetch(ctx context.Context, src, dst string) error {
	pwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", src, err)
	}
	return nil
}

// ResolveConfigDir returns a local directory holding the configuration named by src.
// Remote sources are fetched into a temporary directory that cleanup removes;
// for local sources cleanup does nothing.
func ResolveConfigDir(ctx context.Context, src string) (dir string, cleanup func(), err error) {
	cleanup = func() {}
	if !IsRemote(src) {
		return src, cleanup, nil
	}

	tmp, err := os.MkdirTemp("", "slurm-submit-config-*")
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	cleanup = func() {
		if err := os.RemoveAll(tmp); err != nil {
			logging.Warn("failed to remove %s: %v", tmp, err)
		}
	}

	dir = filepath.Join(tmp, "config")
	logging.Info("Fetching config directory %s", src)
	if err := Fetch(ctx, src, dir); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return dir, cleanup, nil
}
