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

package jobscript

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/afero"
)

// SlurmScriptTemplate is the Go template for the sbatch submission script.
const SlurmScriptTemplate = `#!/bin/bash -x
#SBATCH --job-name={{.JobName}}
#SBATCH --output={{.OutputPath}}
#SBATCH --error={{.ErrorPath}}
#SBATCH --time={{.Time}}
#SBATCH --signal={{.Signal}}
#SBATCH --partition="{{.Partition}}"
#SBATCH --nodes={{.Nodes}}
#SBATCH --ntasks={{.NTasks}}
#SBATCH --mem={{.Memory}}
#SBATCH --cpus-per-task={{.CPUsPerTask}}
#SBATCH --constraint="{{.Constraint}}"
#SBATCH --gpus={{.NGPUs}}

srun sh {{.LaunchScript}}`

// Output file names, relative to the working directory.
const (
	OutputFileName = "slurm.out"
	ErrorFileName  = "slurm.err"
)

// Defaults for the resource directives that are not set per run.
const (
	DefaultSignal      = "USR1@120"
	DefaultPartition   = "killable"
	DefaultNodes       = "1"
	DefaultNTasks      = "1"
	DefaultMemory      = "50000"
	DefaultCPUsPerTask = "4"
	DefaultConstraint  = "geforce_rtx_3090"
)

// ScriptOptions holds parameters for job script generation.
// Values are opaque and rendered verbatim; empty directive fields fall back to the defaults above.
type ScriptOptions struct {
	JobName      string
	WorkingDir   string // slurm.out and slurm.err are placed here
	Time         string
	NGPUs        string
	LaunchScript string

	Partition   string
	Nodes       string
	NTasks      string
	Memory      string
	CPUsPerTask string
	Constraint  string
	Signal      string
}

// Directive is a single "#SBATCH --name=value" line.
type Directive struct {
	Name  string
	Value string
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// GenerateJobScript renders the sbatch script content.
func GenerateJobScript(opts ScriptOptions) (string, error) {
	tmpl, err := template.New("slurmScript").Parse(SlurmScriptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse slurm script template: %w", err)
	}

	data := struct {
		JobName      string
		OutputPath   string
		ErrorPath    string
		Time         string
		NGPUs        string
		LaunchScript string
		Signal       string
		Partition    string
		Nodes        string
		NTasks       string
		Memory       string
		CPUsPerTask  string
		Constraint   string
	}{
		JobName:      opts.JobName,
		OutputPath:   filepath.Join(opts.WorkingDir, OutputFileName),
		ErrorPath:    filepath.Join(opts.WorkingDir, ErrorFileName),
		Time:         opts.Time,
		NGPUs:        opts.NGPUs,
		LaunchScript: opts.LaunchScript,
		Signal:       orDefault(opts.Signal, DefaultSignal),
		Partition:    orDefault(opts.Partition, DefaultPartition),
		Nodes:        orDefault(opts.Nodes, DefaultNodes),
		NTasks:       orDefault(opts.NTasks, DefaultNTasks),
		Memory:       orDefault(opts.Memory, DefaultMemory),
		CPUsPerTask:  orDefault(opts.CPUsPerTask, DefaultCPUsPerTask),
		Constraint:   orDefault(opts.Constraint, DefaultConstraint),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute slurm script template: %w", err)
	}
	return buf.String(), nil
}

// WriteJobScript renders the script and writes it to path on fs.
func WriteJobScript(fs afero.Fs, path string, opts ScriptOptions) error {
	content, err := GenerateJobScript(opts)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write slurm script to %s: %w", path, err)
	}
	return nil
}

// ParseDirectives returns the #SBATCH directives of script in order.
// Values keep any quoting they had in the script.
func ParseDirectives(script string) []Directive {
	var directives []Directive
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "#SBATCH")
		if !ok {
			continue
		}
		rest = strings.TrimPrefix(strings.TrimSpace(rest), "--")
		name, value, _ := strings.Cut(rest, "=")
		directives = append(directives, Directive{Name: name, Value: value})
	}
	return directives
}
