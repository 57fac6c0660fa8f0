// Copyright 2026 The Lattice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "strings"

// decodeEnv turns LATTICE_-prefixed environment variables into a nested
// settings map. The key is lowercased and split on underscores, each part
// becoming one nesting level: LATTICE_LOG_FILE_DIR=logs yields
// {"log": {"file": {"dir": "logs"}}}. Values stay strings; the struct
// decoder converts them.
func decodeEnv(environ []string) map[string]any {
	values := make(map[string]any)

	for _, env := range environ {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], EnvPrefix) {
			continue
		}

		key := strings.TrimPrefix(pair[0], EnvPrefix)
		rawParts := strings.Split(strings.ToLower(key), "_")
		parts := make([]string, 0, len(rawParts))
		for _, part := range rawParts {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			continue
		}

		current := values
		for _, part := range parts[:len(parts)-1] {
			next, ok := current[part].(map[string]any)
			if !ok {
				// A scalar set earlier loses to the deeper path.
				next = make(map[string]any)
				current[part] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = strings.TrimSpace(pair[1])
	}

	return values
}
