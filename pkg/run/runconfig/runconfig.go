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

// Package runconfig writes the run-time training configuration and the
// launch script that starts training with it.
package runconfig

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigName is passed to the training entry point as --config-name.
	ConfigName = "run_config"
	// ConfigFileName is the file written inside the run directory.
	ConfigFileName = ConfigName + ".yaml"
	// CheckpointDirName is created by the trainer beneath the run directory.
	CheckpointDirName = "checkpoints"
	// DefaultTrainCommand is the training entry point.
	DefaultTrainCommand = "fairseq-hydra-train"
)

// LaunchScriptTemplate is the Go template for the launch script run by srun.
const LaunchScriptTemplate = `{{.TrainCommand}} --config-dir {{.RunDir}} --config-name {{.ConfigName}} hydra.run.dir={{.RunDir}} checkpoint.save_dir={{.CheckpointDir}}`

// LaunchOptions holds parameters for the launch script.
type LaunchOptions struct {
	RunDir       string
	TrainCommand string
}

// StripSection returns a shallow copy of tree without the top-level key.
// tree itself is left untouched.
func StripSection(tree map[string]interface{}, key string) map[string]interface{} {
	stripped := make(map[string]interface{}, len(tree))
	for k, v := range tree {
		if k == key {
			continue
		}
		stripped[k] = v
	}
	return stripped
}

// MarshalConfig serializes tree as YAML with two-space indentation.
func MarshalConfig(tree map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteRunConfig writes tree to <runDir>/run_config.yaml and returns the file path.
// runDir must already exist.
func WriteRunConfig(fs afero.Fs, runDir string, tree map[string]interface{}) (string, error) {
	if _, err := fs.Stat(runDir); err != nil {
		return "", fmt.Errorf("run directory %s is not usable: %w", runDir, err)
	}

	content, err := MarshalConfig(tree)
	if err != nil {
		return "", err
	}

	path := filepath.Join(runDir, ConfigFileName)
	if err := afero.WriteFile(fs, path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write run config to %s: %w", path, err)
	}
	return path, nil
}

// GenerateLaunchScript renders the launch script content.
func GenerateLaunchScript(opts LaunchOptions) (string, error) {
	trainCommand := opts.TrainCommand
	if trainCommand == "" {
		trainCommand = DefaultTrainCommand
	}

	tmpl, err := template.New("launchScript").Parse(LaunchScriptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse launch script template: %w", err)
	}

	data := struct {
		TrainCommand  string
		RunDir        string
		ConfigName    string
		CheckpointDir string
	}{
		TrainCommand:  trainCommand,
		RunDir:        opts.RunDir,
		ConfigName:    ConfigName,
		CheckpointDir: filepath.Join(opts.RunDir, CheckpointDirName),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute launch script template: %w", err)
	}
	return buf.String(), nil
}

// WriteLaunchScript renders the launch script and writes it to path.
func WriteLaunchScript(fs afero.Fs, path string, opts LaunchOptions) error {
	content, err := GenerateLaunchScript(opts)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write launch script to %s: %w", path, err)
	}
	return nil
}

// MakeExecutable adds read and execute permission for user and group (ug+rx).
func MakeExecutable(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := fs.Chmod(path, info.Mode().Perm()|0550); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}
