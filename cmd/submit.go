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
	"slurm-submit/pkg/logging"
	"slurm-submit/pkg/run"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit [overrides...]",
	Short: "Writes the job files into a working directory and submits them with sbatch.",
	Long: `The 'submit' command composes the configuration, validates its slurm section
(run_name, n_gpus and time are required), and writes into the working directory:

  slurm.sh             the batch script
  run.sh               the launch script executed by srun
  run/run_config.yaml  the training configuration without the slurm section

slurm.sh is then passed to the submission binary. Its output is printed as-is;
a non-zero exit status is reported but does not fail the command.`,
	Args:         cobra.ArbitraryArgs,
	Run:          runSubmitCmd,
	SilenceUsage: true,
}

func runSubmitCmd(cmd *cobra.Command, args []string) {
	logging.Info("Executing slurm-submit submit command...")

	opts := run.RunOptions{
		Config:   configOptions(args),
		Settings: settings,
		Out:      cmd.OutOrStdout(),
	}
	if err := run.ExecuteRun(cmd.Context(), opts); err != nil {
		logging.Fatal("slurm-submit submit failed: %v", err)
	}
}
