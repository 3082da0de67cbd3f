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

package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings configure the tool itself, as opposed to the training run.
type Settings struct {
	SubmitBinary string `mapstructure:"submit_binary"`
	TrainCommand string `mapstructure:"train_command"`
	OutputRoot   string `mapstructure:"output_root"`
	WorkDir      string `mapstructure:"work_dir"`
	Snapshot     bool   `mapstructure:"snapshot"`
	Provenance   bool   `mapstructure:"provenance"`
	LogLevel     string `mapstructure:"log_level"`
}

const (
	settingsFileName = ".slurm-submit"
	envPrefix        = "SLURM_SUBMIT"
)

var settingsDefaults = map[string]interface{}{
	"submit_binary": "sbatch",
	"train_command": "fairseq-hydra-train",
	"output_root":   "outputs",
	"work_dir":      "",
	"snapshot":      true,
	"provenance":    true,
	"log_level":     "info",
}

// AddSettingsFlags registers the settings flags on flags.
func AddSettingsFlags(flags *pflag.FlagSet) {
	flags.String("submit-binary", "sbatch", "Scheduler submission executable, looked up on PATH.")
	flags.String("train-command", "fairseq-hydra-train", "Training entry point invoked by the launch script.")
	flags.String("output-root", "outputs", "Root under which per-run working directories are created.")
	flags.StringP("work-dir", "w", "", "Working directory for this run. Defaults to <output-root>/<date>/<time>.")
	flags.Bool("snapshot", true, "Copy the config directory into the working directory.")
	flags.Bool("provenance", true, "Record the git state of the config directory.")
	flags.String("log-level", "info", "Log level (debug, info, warn, error).")
}

// LoadSettings resolves settings from defaults, the settings file, SLURM_SUBMIT_* environment
// variables and flags, in increasing precedence. With an empty settingsFile,
// ~/.slurm-submit.yaml is used when present.
func LoadSettings(flags *pflag.FlagSet, settingsFile string) (*Settings, error) {
	v := viper.New()
	for k, d := range settingsDefaults {
		v.SetDefault(k, d)
	}

	if flags != nil {
		for key := range settingsDefaults {
			flagName := strings.ReplaceAll(key, "_", "-")
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "failed to bind flag --%s", flagName)
				}
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to find home directory")
		}
		v.AddConfigPath(home)
		v.SetConfigName(settingsFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// No settings file in the home directory is fine.
		if settingsFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "failed to read settings file %s", v.ConfigFileUsed())
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	return s, nil
}

// ResolveWorkDir returns WorkDir when set, otherwise <OutputRoot>/<YYYY-MM-DD>/<HH-MM-SS> for now.
func (s *Settings) ResolveWorkDir(now time.Time) string {
	if s.WorkDir != "" {
		return s.WorkDir
	}
	return filepath.Join(s.OutputRoot, now.Format("2006-01-02"), now.Format("15-04-05"))
}
