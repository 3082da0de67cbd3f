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

package shell

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
)

// CommandResult holds the outcome of a finished command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is set when the command could not be started at all,
	// e.g. the executable is not on PATH. ExitCode is -1 in that case.
	Err error
}

// Command is a single external command invocation.
type Command struct {
	name string
	args []string
}

// NewCommand creates a Command for name with args. The executable is looked up on PATH.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

// String returns the command line as it would be typed in a shell.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// Execute runs the command to completion and captures its output.
func (c *Command) Execute() CommandResult {
	cmd := exec.Command(c.name, c.args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = err
	}
	return res
}

// ExecuteCommand runs name with args and returns its result.
func ExecuteCommand(name string, args ...string) CommandResult {
	return NewCommand(name, args...).Execute()
}
