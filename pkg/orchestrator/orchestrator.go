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

package orchestrator

// JobDefinition holds all the necessary parameters to define a job.
// This struct is intended to be general enough to support various orchestrators,
// with specific orchestrator implementations extracting the fields relevant to them.
type JobDefinition struct {
	RunName    string
	WorkingDir string // Must exist before SubmitJob is called
	Time       string
	NGPUs      string

	// Config is the resolved training configuration, scheduler section included.
	Config map[string]interface{}
	// SchedulerSection is the top-level key of Config that is not passed on to training.
	SchedulerSection string
	TrainCommand     string

	// Resource directives; empty values use the orchestrator's defaults.
	Partition   string
	Nodes       string
	NTasks      string
	Memory      string
	CPUsPerTask string
	Constraint  string
	Signal      string
}

// Orchestrator defines the interface for submitting jobs to a cluster.
type Orchestrator interface {
	// SubmitJob takes a JobDefinition and orchestrates its submission.
	SubmitJob(job JobDefinition) error
}
