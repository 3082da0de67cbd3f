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

// Package cmd implements the slurm-submit command line.
package cmd

import (
	"os"
	"slurm-submit/pkg/config"
	"slurm-submit/pkg/logging"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	configDir    string
	configName   string
	configFiles  []string
	settingsFile string

	settings *config.Settings
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "d", "", "Directory holding the primary config file, or a remote source (git::, s3::, https://...).")
	rootCmd.PersistentFlags().StringVarP(&configName, "config-name", "n", "config", "Name of the primary config file, with or without .yaml.")
	rootCmd.PersistentFlags().StringArrayVar(&configFiles, "config-file", nil, "Additional YAML file merged over the primary config. Repeatable; later files win.")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "Settings file. Defaults to ~/.slurm-submit.yaml when present.")
	config.AddSettingsFlags(rootCmd.PersistentFlags())
}

var rootCmd = &cobra.Command{
	Use:   "slurm-submit",
	Short: "Submits a composed training configuration as a Slurm batch job.",
	Long: `slurm-submit composes a YAML training configuration, renders a Slurm batch
script and a launch script into a working directory, and submits the batch
script with sbatch.

Positional arguments are overrides applied to the composed configuration:
  key.path=value    set a value
  +key.path=value   add a value
  ++key.path=value  add or replace a value
  ~key.path         delete a key`,
	PersistentPreRunE: loadSettings,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func loadSettings(cmd *cobra.Command, args []string) error {
	logging.Configure(os.Stderr)

	s, err := config.LoadSettings(cmd.Flags(), settingsFile)
	if err != nil {
		return err
	}
	if err := logging.SetLevel(s.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level %q", s.LogLevel)
	}
	settings = s
	return nil
}

func configOptions(overrides []string) config.Options {
	return config.Options{
		ConfigDir:  configDir,
		ConfigName: configName,
		ExtraFiles: configFiles,
		Overrides:  overrides,
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.Fatal("%v", err)
	}
}
