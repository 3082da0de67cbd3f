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

package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slurm-submit/pkg/config"
	"slurm-submit/pkg/logging"
	"slurm-submit/pkg/orchestrator"
	"slurm-submit/pkg/orchestrator/slurm"
	"slurm-submit/pkg/provenance"
	"slurm-submit/pkg/run/runconfig"
	"slurm-submit/pkg/snapshot"
	"slurm-submit/pkg/sources"
	"time"

	"github.com/spf13/afero"
)

// RunOptions holds all the necessary parameters for the 'submit' and 'render' command logic
type RunOptions struct {
	Config   config.Options
	Settings *config.Settings

	// Executor replaces the process runner used for the submission binary; nil runs it for real.
	Executor slurm.Executor
	// Out receives the submission transcript; nil means stdout.
	Out io.Writer
	// Now is the clock used for the default working directory; nil means time.Now.
	Now func() time.Time
}

func (o RunOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o RunOptions) settings() *config.Settings {
	if o.Settings != nil {
		return o.Settings
	}
	return &config.Settings{
		SubmitBinary: slurm.DefaultSubmitBinary,
		TrainCommand: runconfig.DefaultTrainCommand,
		OutputRoot:   "outputs",
	}
}

// JobDefinitionFor maps a resolved configuration onto a job definition rooted at workDir.
func JobDefinitionFor(cfg *config.Config, workDir string, settings *config.Settings) orchestrator.JobDefinition {
	s := cfg.Slurm
	return orchestrator.JobDefinition{
		RunName:          s.RunName,
		WorkingDir:       workDir,
		Time:             s.Time,
		NGPUs:            s.NGPUs,
		Config:           cfg.Tree,
		SchedulerSection: config.SlurmKey,
		TrainCommand:     settings.TrainCommand,
		Partition:        s.Partition,
		Nodes:            s.Nodes,
		NTasks:           s.NTasks,
		Memory:           s.Memory,
		CPUsPerTask:      s.CPUsPerTask,
		Constraint:       s.Constraint,
		Signal:           s.Signal,
	}
}

// ExecuteRun resolves the configuration, prepares the working directory and submits the job.
// The configuration is fully validated before anything is written.
func ExecuteRun(ctx context.Context, opts RunOptions) error {
	logging.Info("Starting slurm-submit workflow...")
	settings := opts.settings()

	// 1. Fetch the config directory if it is remote
	configDir, cleanup, err := sources.ResolveConfigDir(ctx, opts.Config.ConfigDir)
	if err != nil {
		return err
	}
	defer cleanup()
	cfgOpts := opts.Config
	cfgOpts.ConfigDir = configDir

	// 2. Compose and validate the configuration
	cfg, err := config.Load(cfgOpts)
	if err != nil {
		return err
	}
	logging.Info("Resolved slurm section: %s", cfg.Slurm)

	// 3. Create the working directory
	workDir, err := filepath.Abs(settings.ResolveWorkDir(opts.now()))
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", workDir, err)
	}
	logging.Info("Working directory: %s", workDir)

	// 4. Record where the configuration came from
	// Provenance goes first so the snapshot does not show up as untracked files.
	if settings.Provenance && !sources.IsRemote(opts.Config.ConfigDir) {
		recordProvenance(configDir, workDir, opts.now())
	}
	if settings.Snapshot && opts.Config.ConfigDir != "" {
		if _, err := snapshot.Take(configDir, workDir); err != nil {
			logging.Warn("Skipping config snapshot: %v", err)
		}
	}

	// 5. Render, write and submit
	submitter := slurm.NewSubmitter(settings.SubmitBinary, opts.Out)
	if opts.Executor != nil {
		submitter.WithExecutor(opts.Executor)
	}
	orc := slurm.NewSlurmOrchestrator(afero.NewOsFs(), submitter)
	if err := orc.SubmitJob(JobDefinitionFor(cfg, workDir, settings)); err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}

	logging.Info("slurm-submit workflow completed.")
	return nil
}

// RenderRun resolves the configuration and renders every artifact without writing anything.
func RenderRun(ctx context.Context, opts RunOptions) (*slurm.Rendered, error) {
	settings := opts.settings()

	configDir, cleanup, err := sources.ResolveConfigDir(ctx, opts.Config.ConfigDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	cfgOpts := opts.Config
	cfgOpts.ConfigDir = configDir

	cfg, err := config.Load(cfgOpts)
	if err != nil {
		return nil, err
	}

	workDir, err := filepath.Abs(settings.ResolveWorkDir(opts.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	orc := slurm.NewSlurmOrchestrator(afero.NewMemMapFs(), slurm.NewSubmitter(settings.SubmitBinary, opts.Out))
	return orc.Render(JobDefinitionFor(cfg, workDir, settings))
}

func recordProvenance(configDir, workDir string, now time.Time) {
	rec, err := provenance.Collect(configDir, now)
	if err != nil {
		logging.Warn("Skipping provenance: %v", err)
		return
	}
	if rec == nil {
		return
	}
	if rec.Dirty {
		logging.Warn("Config directory %s has uncommitted changes", configDir)
	}
	if _, err := provenance.Write(afero.NewOsFs(), workDir, rec); err != nil {
		logging.Warn("Skipping provenance: %v", err)
	}
}
