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

// Package logging provides the printf-style log helpers used across the tool.
// It wraps a single logrus logger that writes to stderr.
package logging

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	logger      = logrus.New()
	fatalPrefix = color.New(color.FgRed, color.Bold).SprintFunc()
)

func init() {
	Configure(os.Stderr)
}

// Configure points the logger at out. Colours are only enabled when out is a terminal.
func Configure(out io.Writer) {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	color.NoColor = !tty
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   tty,
		DisableColors: !tty,
		FullTimestamp: true,
	})
}

// SetLevel parses a logrus level name ("debug", "info", ...) and applies it.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// SetExitFunc replaces the function Fatal uses to terminate the process.
func SetExitFunc(fn func(int)) {
	logger.ExitFunc = fn
}

func Debug(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Fatal logs at fatal level and exits with status 1.
func Fatal(format string, args ...interface{}) {
	logger.Fatalf(fatalPrefix("fatal: ")+format, args...)
}
