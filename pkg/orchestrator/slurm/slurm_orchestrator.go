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

package slurm

import (
	"fmt"
	"path/filepath"
	"slurm-submit/pkg/logging"
	"slurm-submit/pkg/orchestrator"
	"slurm-submit/pkg/run/jobscript"
	"slurm-submit/pkg/run/runconfig"

	"github.com/spf13/afero"
)

// File and directory names inside the working directory.
const (
	JobScriptName    = "slurm.sh"
	LaunchScriptName = "run.sh"
	RunDirName       = "run"
)

// JobPaths lists the artifacts of one submission.
type JobPaths struct {
	WorkingDir   string
	JobScript    string
	LaunchScript string
	RunDir       string
	RunConfig    string
}

// PathsFor returns the artifact paths beneath workingDir.
func PathsFor(workingDir string) JobPaths {
	runDir := filepath.Join(workingDir, RunDirName)
	return JobPaths{
		WorkingDir:   workingDir,
		JobScript:    filepath.Join(workingDir, JobScriptName),
		LaunchScript: filepath.Join(workingDir, LaunchScriptName),
		RunDir:       runDir,
		RunConfig:    filepath.Join(runDir, runconfig.ConfigFileName),
	}
}

// Rendered holds generated file contents, for dry runs.
type Rendered struct {
	Paths        JobPaths
	JobScript    string
	LaunchScript string
	RunConfig    string
}

// SlurmOrchestrator implements the Orchestrator interface for Slurm.
type SlurmOrchestrator struct {
	fs        afero.Fs
	submitter *Submitter

	// LastResult is the outcome of the most recent submission.
	LastResult *Result
}

// NewSlurmOrchestrator creates and returns a new SlurmOrchestrator writing to fs.
func NewSlurmOrchestrator(fs afero.Fs, submitter *Submitter) *SlurmOrchestrator {
	if submitter == nil {
		submitter = NewSubmitter(DefaultSubmitBinary, nil)
	}
	return &SlurmOrchestrator{fs: fs, submitter: submitter}
}

// SubmitJob writes the job script, run config and launch script, then submits the job script.
func (s *SlurmOrchestrator) SubmitJob(job orchestrator.JobDefinition) error {
	logging.Info("Preparing Slurm job '%s' in %s", job.RunName, job.WorkingDir)

	paths, err := s.Prepare(job)
	if err != nil {
		return err
	}

	result, err := s.submitter.Submit(paths.JobScript)
	if err != nil {
		return fmt.Errorf("failed to submit %s: %w", paths.JobScript, err)
	}
	s.LastResult = result
	return nil
}

// Prepare writes every artifact of job without submitting it.
func (s *SlurmOrchestrator) Prepare(job orchestrator.JobDefinition) (JobPaths, error) {
	paths := PathsFor(job.WorkingDir)

	if err := jobscript.WriteJobScript(s.fs, paths.JobScript, scriptOptions(job, paths)); err != nil {
		return paths, err
	}
	logging.Debug("Wrote job script %s", paths.JobScript)

	if err := s.fs.Mkdir(paths.RunDir, 0755); err != nil {
		return paths, fmt.Errorf("failed to create run directory %s: %w", paths.RunDir, err)
	}

	if _, err := runconfig.WriteRunConfig(s.fs, paths.RunDir, runConfigTree(job)); err != nil {
		return paths, err
	}
	logging.Debug("Wrote run config %s", paths.RunConfig)

	launchOpts := runconfig.LaunchOptions{RunDir: paths.RunDir, TrainCommand: job.TrainCommand}
	if err := runconfig.WriteLaunchScript(s.fs, paths.LaunchScript, launchOpts); err != nil {
		return paths, err
	}
	if err := runconfig.MakeExecutable(s.fs, paths.LaunchScript); err != nil {
		return paths, err
	}
	logging.Debug("Wrote launch script %s", paths.LaunchScript)

	return paths, nil
}

// Render generates the contents Prepare would write, without touching the filesystem.
func (s *SlurmOrchestrator) Render(job orchestrator.JobDefinition) (*Rendered, error) {
	paths := PathsFor(job.WorkingDir)

	jobScript, err := jobscript.GenerateJobScript(scriptOptions(job, paths))
	if err != nil {
		return nil, err
	}
	launchScript, err := runconfig.GenerateLaunchScript(runconfig.LaunchOptions{RunDir: paths.RunDir, TrainCommand: job.TrainCommand})
	if err != nil {
		return nil, err
	}
	runConfig, err := runconfig.MarshalConfig(runConfigTree(job))
	if err != nil {
		return nil, err
	}

	return &Rendered{
		Paths:        paths,
		JobScript:    jobScript,
		LaunchScript: launchScript,
		RunConfig:    string(runConfig),
	}, nil
}

func scriptOptions(job orchestrator.JobDefinition, paths JobPaths) jobscript.ScriptOptions {
	return jobscript.ScriptOptions{
		JobName:      job.RunName,
		WorkingDir:   paths.WorkingDir,
		Time:         job.Time,
		NGPUs:        job.NGPUs,
		LaunchScript: paths.LaunchScript,
		Partition:    job.Partition,
		Nodes:        job.Nodes,
		NTasks:       job.NTasks,
		Memory:       job.Memory,
		CPUsPerTask:  job.CPUsPerTask,
		Constraint:   job.Constraint,
		Signal:       job.Signal,
	}
}

func runConfigTree(job orchestrator.JobDefinition) map[string]interface{} {
	if job.SchedulerSection == "" {
		return job.Config
	}
	return runconfig.StripSection(job.Config, job.SchedulerSection)
}
