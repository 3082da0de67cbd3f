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
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Override is a single command-line override in Hydra syntax:
//
//	key.path=value    set
//	+key.path=value   add
//	++key.path=value  add or set
//	~key.path         delete
type Override struct {
	Path   []string
	Value  interface{}
	Delete bool
}

// ParseOverride parses arg into an Override. Values are parsed as YAML, so "2"
// is an int, "[1,2]" a list, "null" a nil value and "01:00:00" a string.
func ParseOverride(arg string) (Override, error) {
	var o Override

	rest := arg
	switch {
	case strings.HasPrefix(rest, "~"):
		o.Delete = true
		rest = rest[1:]
	case strings.HasPrefix(rest, "++"):
		rest = rest[2:]
	case strings.HasPrefix(rest, "+"):
		rest = rest[1:]
	}

	key, raw, hasValue := strings.Cut(rest, "=")
	if !hasValue && !o.Delete {
		return o, errors.Errorf("override %q is not of the form key=value", arg)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return o, errors.Errorf("override %q has an empty key", arg)
	}
	o.Path = strings.Split(key, ".")
	for _, p := range o.Path {
		if p == "" {
			return o, errors.Errorf("override %q has an empty key segment", arg)
		}
	}

	if !o.Delete {
		o.Value = parseValue(raw)
	}
	return o, nil
}

func parseValue(raw string) interface{} {
	if raw == "" {
		return ""
	}
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	if v == nil && !isNullLiteral(raw) {
		// A bare comment such as "#1" decodes to nothing.
		return raw
	}
	return v
}

func isNullLiteral(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "null", "Null", "NULL", "~":
		return true
	}
	return false
}

// Apply sets or deletes the override's key in tree, creating intermediate mappings as needed.
func (o Override) Apply(tree map[string]interface{}) error {
	key := strings.Join(o.Path, ".")
	node := tree
	for i, p := range o.Path[:len(o.Path)-1] {
		next, ok := node[p]
		if !ok || next == nil {
			if o.Delete {
				return errors.Errorf("cannot delete %q: key not found", key)
			}
			child := map[string]interface{}{}
			node[p] = child
			node = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return errors.Errorf("cannot apply override to %q: %q is not a mapping", key, strings.Join(o.Path[:i+1], "."))
		}
		node = child
	}

	leaf := o.Path[len(o.Path)-1]
	if o.Delete {
		if _, ok := node[leaf]; !ok {
			return errors.Errorf("cannot delete %q: key not found", key)
		}
		delete(node, leaf)
		return nil
	}
	node[leaf] = o.Value
	return nil
}
