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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slurm-submit/pkg/logging"
	"slurm-submit/pkg/shell"
	"strings"
)

// DefaultSubmitBinary is the scheduler's submission executable.
const DefaultSubmitBinary = "sbatch"

const jobIDPrefix = "Submitted batch job "

// Executor runs an external command to completion.
type Executor func(name string, args ...string) shell.CommandResult

// Submitter hands job scripts to the scheduler.
type Submitter struct {
	binary string
	out    io.Writer
	exec   Executor
}

// Result is what the submission command reported.
type Result struct {
	ScriptPath string
	ExitCode   int
	Stdout     string
	Stderr     string
	// JobID is parsed from "Submitted batch job <id>"; empty when not found.
	JobID string
}

// NewSubmitter returns a Submitter running binary (sbatch when empty) and printing its output to out (stdout when nil).
func NewSubmitter(binary string, out io.Writer) *Submitter {
	if binary == "" {
		binary = DefaultSubmitBinary
	}
	if out == nil {
		out = os.Stdout
	}
	return &Submitter{binary: binary, out: out, exec: shell.ExecuteCommand}
}

// WithExecutor replaces the command executor.
func (s *Submitter) WithExecutor(exec Executor) *Submitter {
	s.exec = exec
	return s
}

// Submit runs the submission binary once with the absolute script path as its only argument
// and prints what it wrote to stdout and stderr. A non-zero exit status is reported but not
// returned as an error; only a failure to start the command is.
func (s *Submitter) Submit(scriptPath string) (*Result, error) {
	absPath, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve script path %s: %w", scriptPath, err)
	}

	fmt.Fprintf(s.out, "sending %s\n", absPath)
	logging.Debug("Executing: %s", shell.NewCommand(s.binary, absPath))
	res := s.exec(s.binary, absPath)
	if res.Err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", s.binary, res.Err)
	}

	fmt.Fprintln(s.out, "output:")
	fmt.Fprintln(s.out, res.Stdout)
	fmt.Fprintln(s.out, "err:")
	fmt.Fprintln(s.out, res.Stderr)

	result := &Result{
		ScriptPath: absPath,
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		JobID:      extractJobID(res.Stdout),
	}

	if result.ExitCode != 0 {
		logging.Warn("%s exited with code %d", s.binary, result.ExitCode)
	} else if result.JobID != "" {
		logging.Info("Scheduler accepted %s as job %s", absPath, result.JobID)
	}
	return result, nil
}

// extractJobID finds the job id in sbatch's "Submitted batch job <id>" line.
func extractJobID(stdout string) string {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if id, ok := strings.CutPrefix(line, jobIDPrefix); ok {
			if fields := strings.Fields(id); len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}
