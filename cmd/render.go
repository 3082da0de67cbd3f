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

package cmd

import (
	"fmt"
	"slurm-submit/pkg/logging"
	"slurm-submit/pkg/run"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render [overrides...]",
	Short: "Prints the files 'submit' would write, without writing or submitting anything.",
	Args:  cobra.ArbitraryArgs,
	RunE:  runRenderCmd,
}

func runRenderCmd(cmd *cobra.Command, args []string) error {
	opts := run.RunOptions{
		Config:   configOptions(args),
		Settings: settings,
	}
	rendered, err := run.RenderRun(cmd.Context(), opts)
	if err != nil {
		return err
	}
	logging.Debug("Rendered job files for %s", rendered.Paths.WorkingDir)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n%s\n\n", rendered.Paths.JobScript, rendered.JobScript)
	fmt.Fprintf(out, "# %s\n%s\n\n", rendered.Paths.LaunchScript, rendered.LaunchScript)
	fmt.Fprintf(out, "# %s\n%s", rendered.Paths.RunConfig, rendered.RunConfig)
	return nil
}
