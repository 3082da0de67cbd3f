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

// Package config composes the training configuration from a primary YAML
// file, optional overlay files and command-line overrides, and extracts the
// slurm section that drives job submission.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/agext/levenshtein"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SlurmKey is the top-level key holding the scheduler section.
const SlurmKey = "slurm"

// ErrMissingSlurmSection is returned when the resolved configuration has no usable slurm section.
var ErrMissingSlurmSection = errors.New("add slurm.run_name, slurm.n_gpus, and slurm.time")

// SlurmSection is the scheduler section of the configuration.
// All values are kept as strings and rendered verbatim into the job script.
type SlurmSection struct {
	RunName string `mapstructure:"run_name"`
	NGPUs   string `mapstructure:"n_gpus"`
	Time    string `mapstructure:"time"`

	// Optional directive overrides; empty means the built-in default.
	Partition   string `mapstructure:"partition"`
	Memory      string `mapstructure:"mem"`
	CPUsPerTask string `mapstructure:"cpus_per_task"`
	Constraint  string `mapstructure:"constraint"`
	Signal      string `mapstructure:"signal"`
	Nodes       string `mapstructure:"nodes"`
	NTasks      string `mapstructure:"ntasks"`
}

// Config is the fully resolved configuration.
type Config struct {
	// Tree is the merged configuration, slurm section included.
	Tree  map[string]interface{}
	Slurm SlurmSection
}

// Options selects the configuration sources.
type Options struct {
	ConfigDir  string
	ConfigName string
	// ExtraFiles are merged over the primary file, in order.
	ExtraFiles []string
	// Overrides are applied last, in order.
	Overrides []string
}

// PrimaryFile returns the path of the primary config file.
func (o Options) PrimaryFile() string {
	dir := o.ConfigDir
	if dir == "" {
		dir = "."
	}
	name := o.ConfigName
	if name == "" {
		name = "config"
	}
	if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
		name += ".yaml"
	}
	return filepath.Join(dir, name)
}

// Load composes the configuration described by opts and validates its slurm section.
// Nothing is written to disk.
func Load(opts Options) (*Config, error) {
	tree, err := Compose(opts)
	if err != nil {
		return nil, err
	}

	slurm, err := ExtractSlurmSection(tree)
	if err != nil {
		return nil, err
	}
	return &Config{Tree: tree, Slurm: slurm}, nil
}

// Compose merges the config files and applies the overrides, without validation.
// Later files are merged into earlier ones key by key; null leaves and empty
// mappings are kept as written.
func Compose(opts Options) (map[string]interface{}, error) {
	primary := opts.PrimaryFile()
	tree, err := readTree(primary)
	if err != nil {
		return nil, err
	}

	for _, extra := range opts.ExtraFiles {
		layer, err := readTree(extra)
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(&tree, layer, mergo.WithOverride); err != nil {
			return nil, errors.Wrapf(err, "failed to merge config file %s", extra)
		}
	}

	for _, arg := range opts.Overrides {
		o, err := ParseOverride(arg)
		if err != nil {
			return nil, err
		}
		if err := o.Apply(tree); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func readTree(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	tree := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	if tree == nil {
		tree = map[string]interface{}{}
	}
	return tree, nil
}

// ExtractSlurmSection decodes and validates the slurm section of tree.
func ExtractSlurmSection(tree map[string]interface{}) (SlurmSection, error) {
	var section SlurmSection

	raw, ok := tree[SlurmKey]
	if !ok || raw == nil {
		if suggestion := suggestKey(tree, SlurmKey); suggestion != "" {
			return section, errors.Wrapf(ErrMissingSlurmSection, "no %q section in configuration (did you mean %q?)", SlurmKey, suggestion)
		}
		return section, errors.Wrapf(ErrMissingSlurmSection, "no %q section in configuration", SlurmKey)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &section,
	})
	if err != nil {
		return section, errors.Wrap(err, "failed to create slurm section decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return section, errors.Wrapf(ErrMissingSlurmSection, "invalid %q section: %v", SlurmKey, err)
	}

	var missing []string
	if section.RunName == "" {
		missing = append(missing, "run_name")
	}
	if section.NGPUs == "" {
		missing = append(missing, "n_gpus")
	}
	if section.Time == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return section, errors.Wrapf(ErrMissingSlurmSection, "%q section is missing %s", SlurmKey, strings.Join(missing, ", "))
	}
	return section, nil
}

// suggestKey returns the top-level key closest to want, if it is a likely typo.
func suggestKey(tree map[string]interface{}, want string) string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestDist := "", 3
	for _, k := range keys {
		if d := levenshtein.Distance(strings.ToLower(k), want, nil); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// String renders the slurm section for log messages.
func (s SlurmSection) String() string {
	return fmt.Sprintf("run_name=%s n_gpus=%s time=%s", s.RunName, s.NGPUs, s.Time)
}
