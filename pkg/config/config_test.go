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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type MySuite struct {
	dir string
}

var _ = Suite(&MySuite{})

func (s *MySuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

func (s *MySuite) writeFile(c *C, name, content string) string {
	path := filepath.Join(s.dir, name)
	c.Assert(os.WriteFile(path, []byte(content), 0644), IsNil)
	return path
}

const baseConfig = `
common:
  fp16: true
  log_interval: 200
optimization:
  max_update: 400000
  lr: [0.0005]
task:
  data: /data/manifests
`

const slurmConfig = baseConfig + `
slurm:
  run_name: x
  n_gpus: 2
  time: "01:00:00"
`

func (s *MySuite) TestPrimaryFile(c *C) {
	c.Check(Options{}.PrimaryFile(), Equals, "config.yaml")
	c.Check(Options{ConfigDir: "/cfg", ConfigName: "pretrain"}.PrimaryFile(), Equals, "/cfg/pretrain.yaml")
	c.Check(Options{ConfigDir: "/cfg", ConfigName: "a.yml"}.PrimaryFile(), Equals, "/cfg/a.yml")
}

func (s *MySuite) TestLoadWithSlurmSection(c *C) {
	s.writeFile(c, "config.yaml", slurmConfig)

	cfg, err := Load(Options{ConfigDir: s.dir, ConfigName: "config"})
	c.Assert(err, IsNil)
	c.Check(cfg.Slurm.RunName, Equals, "x")
	c.Check(cfg.Slurm.NGPUs, Equals, "2")
	c.Check(cfg.Slurm.Time, Equals, "01:00:00")
	c.Check(cfg.Slurm.Partition, Equals, "")

	common, ok := cfg.Tree["common"].(map[string]interface{})
	c.Assert(ok, Equals, true)
	c.Check(common["log_interval"], Equals, 200)
}

func (s *MySuite) TestLoadMissingSlurmSection(c *C) {
	s.writeFile(c, "config.yaml", baseConfig)

	_, err := Load(Options{ConfigDir: s.dir})
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, ErrMissingSlurmSection), Equals, true)
	c.Check(err, ErrorMatches, ".*add slurm.run_name, slurm.n_gpus, and slurm.time")
}

func (s *MySuite) TestLoadSuggestsMisspelledSection(c *C) {
	s.writeFile(c, "config.yaml", baseConfig+"\nslrum:\n  run_name: x\n")

	_, err := Load(Options{ConfigDir: s.dir})
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, ErrMissingSlurmSection), Equals, true)
	c.Check(err, ErrorMatches, `.*did you mean "slrum".*`)
}

func (s *MySuite) TestLoadIncompleteSlurmSection(c *C) {
	s.writeFile(c, "config.yaml", baseConfig+"\nslurm:\n  run_name: x\n")

	_, err := Load(Options{ConfigDir: s.dir})
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, ErrMissingSlurmSection), Equals, true)
	c.Check(err, ErrorMatches, `.*missing n_gpus, time.*`)
}

func (s *MySuite) TestLoadMissingFile(c *C) {
	_, err := Load(Options{ConfigDir: s.dir, ConfigName: "absent"})
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, ErrMissingSlurmSection), Equals, false)
}

func (s *MySuite) TestLayering(c *C) {
	s.writeFile(c, "config.yaml", baseConfig)
	extra := s.writeFile(c, "cluster.yaml", `
slurm:
  run_name: from-file
  n_gpus: 4
  time: "02:00:00"
  partition: gpu
common:
  log_interval: 50
`)

	cfg, err := Load(Options{
		ConfigDir:  s.dir,
		ExtraFiles: []string{extra},
		Overrides: []string{
			"slurm.run_name=from-cli",
			"+checkpoint.save_interval=5",
			"~task.data",
			"optimization.lr=[0.001,0.002]",
		},
	})
	c.Assert(err, IsNil)
	c.Check(cfg.Slurm.RunName, Equals, "from-cli")
	c.Check(cfg.Slurm.NGPUs, Equals, "4")
	c.Check(cfg.Slurm.Partition, Equals, "gpu")

	common := cfg.Tree["common"].(map[string]interface{})
	c.Check(common["log_interval"], Equals, 50)
	c.Check(common["fp16"], Equals, true)

	checkpoint := cfg.Tree["checkpoint"].(map[string]interface{})
	c.Check(checkpoint["save_interval"], Equals, 5)

	task := cfg.Tree["task"].(map[string]interface{})
	_, hasData := task["data"]
	c.Check(hasData, Equals, false)

	optimization := cfg.Tree["optimization"].(map[string]interface{})
	c.Check(optimization["lr"], DeepEquals, []interface{}{0.001, 0.002})
}

func (s *MySuite) TestComposeKeepsNullsEmptyMappingsAndDottedKeys(c *C) {
	s.writeFile(c, "config.yaml", `
checkpoint:
  restore_file: null
  save_dir: checkpoints
model: {}
bpe: null
task:
  Labels: ltr
  "a.b": 1
common:
  seed: 1
`)

	tree, err := Compose(Options{ConfigDir: s.dir, Overrides: []string{"common.seed=null"}})
	c.Assert(err, IsNil)

	c.Check(tree["checkpoint"], DeepEquals, map[string]interface{}{"restore_file": nil, "save_dir": "checkpoints"})
	c.Check(tree["model"], DeepEquals, map[string]interface{}{})
	bpe, ok := tree["bpe"]
	c.Check(ok, Equals, true)
	c.Check(bpe, IsNil)
	c.Check(tree["task"], DeepEquals, map[string]interface{}{"Labels": "ltr", "a.b": 1})

	common := tree["common"].(map[string]interface{})
	seed, ok := common["seed"]
	c.Check(ok, Equals, true)
	c.Check(seed, IsNil)
}

func (s *MySuite) TestComposeMergesNestedMappings(c *C) {
	s.writeFile(c, "config.yaml", `
model:
  encoder:
    layers: 12
    dropout: 0.1
  decoder: {}
dataset:
  num_workers: 6
`)
	extra := s.writeFile(c, "large.yaml", `
model:
  encoder:
    layers: 24
  extra: null
dataset:
  num_workers: null
`)

	tree, err := Compose(Options{ConfigDir: s.dir, ExtraFiles: []string{extra}})
	c.Assert(err, IsNil)

	c.Check(tree["model"], DeepEquals, map[string]interface{}{
		"encoder": map[string]interface{}{"layers": 24, "dropout": 0.1},
		"decoder": map[string]interface{}{},
		"extra":   nil,
	})
	c.Check(tree["dataset"], DeepEquals, map[string]interface{}{"num_workers": nil})
}

func (s *MySuite) TestComposeRejectsNonMappingFile(c *C) {
	s.writeFile(c, "config.yaml", "- a\n- b\n")

	_, err := Compose(Options{ConfigDir: s.dir})
	c.Check(err, ErrorMatches, "(?s)failed to parse config file .*")
}

func (s *MySuite) TestSlurmSectionFromOverridesOnly(c *C) {
	s.writeFile(c, "config.yaml", baseConfig)

	cfg, err := Load(Options{
		ConfigDir: s.dir,
		Overrides: []string{"+slurm.run_name=x", "+slurm.n_gpus=2", "+slurm.time=01:00:00"},
	})
	c.Assert(err, IsNil)
	c.Check(cfg.Slurm, DeepEquals, SlurmSection{RunName: "x", NGPUs: "2", Time: "01:00:00"})
}

func (s *MySuite) TestParseOverride(c *C) {
	o, err := ParseOverride("Optimization.max_update=10")
	c.Assert(err, IsNil)
	c.Check(o.Path, DeepEquals, []string{"Optimization", "max_update"})
	c.Check(o.Value, Equals, 10)
	c.Check(o.Delete, Equals, false)

	o, err = ParseOverride("checkpoint.restore_file=null")
	c.Assert(err, IsNil)
	c.Check(o.Value, IsNil)

	o, err = ParseOverride("a=~")
	c.Assert(err, IsNil)
	c.Check(o.Value, IsNil)

	o, err = ParseOverride("a=#1")
	c.Assert(err, IsNil)
	c.Check(o.Value, Equals, "#1")

	o, err = ParseOverride("++a=")
	c.Assert(err, IsNil)
	c.Check(o.Value, Equals, "")

	o, err = ParseOverride("~a.b")
	c.Assert(err, IsNil)
	c.Check(o.Delete, Equals, true)

	for _, bad := range []string{"novalue", "=1", "a..b=1", "+"} {
		_, err = ParseOverride(bad)
		c.Check(err, NotNil, Commentf("override %q", bad))
	}
}

func (s *MySuite) TestApplyOverrideErrors(c *C) {
	tree := map[string]interface{}{"a": 1, "b": map[string]interface{}{}}

	o, _ := ParseOverride("a.c=1")
	c.Check(o.Apply(tree), ErrorMatches, `.*"a" is not a mapping`)

	o, _ = ParseOverride("~b.missing")
	c.Check(o.Apply(tree), ErrorMatches, `.*key not found`)

	o, _ = ParseOverride("~x.y")
	c.Check(o.Apply(tree), ErrorMatches, `.*key not found`)
}

func (s *MySuite) TestLoadSettingsDefaults(c *C) {
	settingsFile := s.writeFile(c, "settings.yaml", "")

	st, err := LoadSettings(nil, settingsFile)
	c.Assert(err, IsNil)
	c.Check(st.SubmitBinary, Equals, "sbatch")
	c.Check(st.TrainCommand, Equals, "fairseq-hydra-train")
	c.Check(st.Snapshot, Equals, true)
	c.Check(st.LogLevel, Equals, "info")
}

func (s *MySuite) TestLoadSettingsPrecedence(c *C) {
	settingsFile := s.writeFile(c, "settings.yaml", "submit_binary: /opt/slurm/bin/sbatch\ntrain_command: from-file\noutput_root: /scratch\n")
	c.Assert(os.Setenv("SLURM_SUBMIT_TRAIN_COMMAND", "from-env"), IsNil)
	defer os.Unsetenv("SLURM_SUBMIT_TRAIN_COMMAND")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddSettingsFlags(flags)
	c.Assert(flags.Parse([]string{"--output-root=/from/flag", "--snapshot=false"}), IsNil)

	st, err := LoadSettings(flags, settingsFile)
	c.Assert(err, IsNil)
	c.Check(st.SubmitBinary, Equals, "/opt/slurm/bin/sbatch")
	c.Check(st.TrainCommand, Equals, "from-env")
	c.Check(st.OutputRoot, Equals, "/from/flag")
	c.Check(st.Snapshot, Equals, false)
}

func (s *MySuite) TestLoadSettingsMissingExplicitFile(c *C) {
	_, err := LoadSettings(nil, filepath.Join(s.dir, "nope.yaml"))
	c.Check(err, NotNil)
}

func (s *MySuite) TestResolveWorkDir(c *C) {
	now := time.Date(2026, 10, 18, 9, 5, 7, 0, time.UTC)

	st := &Settings{OutputRoot: "outputs"}
	c.Check(st.ResolveWorkDir(now), Equals, filepath.Join("outputs", "2026-10-18", "09-05-07"))

	st.WorkDir = "/explicit"
	c.Check(st.ResolveWorkDir(now), Equals, "/explicit")
}
