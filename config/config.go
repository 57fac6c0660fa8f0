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

// Package config loads application settings from three layers, each
// overriding the previous: built-in defaults, an optional YAML file, and
// LATTICE_-prefixed environment variables.
//
// Environment variable names map to settings paths by splitting on
// underscores after the prefix: LATTICE_LOG_LEVEL sets log.level. Compound
// setting names are written without separators (LATTICE_LOG_FILE_MAXSIZE).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

// EnvPrefix selects the environment variables this package reads.
const EnvPrefix = "LATTICE_"

// Settings is the application configuration after all layers merged.
type Settings struct {
	// Service is the logical service name stamped on every log record.
	Service string `config:"service"`
	// Environment is the deployment environment ("development",
	// "production", ...). It drives logging and validation defaults.
	Environment string           `config:"environment"`
	Server      ServerSettings   `config:"server"`
	Log         LogSettings      `config:"log"`
	AccessLog   AccessSettings   `config:"accesslog"`
	Validation  ValidateSettings `config:"validation"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Address         string        `config:"address"`
	ReadTimeout     time.Duration `config:"readtimeout"`
	WriteTimeout    time.Duration `config:"writetimeout"`
	ShutdownTimeout time.Duration `config:"shutdowntimeout"`
}

// LogSettings configures the structured logger.
type LogSettings struct {
	// Level is the minimum severity: debug, info, warn, or error.
	Level string `config:"level"`
	// Handler selects the console rendering: "console" or "json".
	Handler string `config:"handler"`
	// Console toggles the console sink.
	Console bool         `config:"console"`
	File    FileSettings `config:"file"`
}

// FileSettings configures the rotating file sinks.
type FileSettings struct {
	Enabled bool   `config:"enabled"`
	Dir     string `config:"dir"`
	// MaxSize is the rotation threshold per segment, in humanized form
	// ("10m", "1gb").
	MaxSize string `config:"maxsize"`
	// MaxFiles caps retained segments per sink; 0 keeps all.
	MaxFiles int `config:"maxfiles"`
	// MaxAge prunes segments older than this; 0 keeps all.
	MaxAge time.Duration `config:"maxage"`
	// Compress gzips rotated segments.
	Compress bool `config:"compress"`

	// MaxSizeBytes is MaxSize parsed; populated by Load.
	MaxSizeBytes int64 `config:"-"`
}

// AccessSettings configures the access-log middleware.
type AccessSettings struct {
	// Format is "dev", "combined", or "json"; empty picks per environment.
	Format string `config:"format"`
	// SkipHealth drops records for the health endpoint. Nil defers to the
	// environment default (skipped in production).
	SkipHealth *bool `config:"skiphealth"`
	// HealthPath is the path SkipHealth matches.
	HealthPath string `config:"healthpath"`
}

// ValidateSettings configures the validation pipeline.
type ValidateSettings struct {
	// Strict rejects request keys not declared by a descriptor.
	Strict     bool `config:"strict"`
	Sanitize   bool `config:"sanitize"`
	AbortEarly bool `config:"abortearly"`
	// VerboseErrors includes the original error and a stack in validation
	// error payloads. Nil defers to the environment default (enabled
	// outside production).
	VerboseErrors *bool `config:"verboseerrors"`
	// MaxBody caps request bodies, humanized ("1mb").
	MaxBody string `config:"maxbody"`

	// MaxBodyBytes is MaxBody parsed; populated by Load.
	MaxBodyBytes int64 `config:"-"`
}

// defaults returns the built-in configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"service":     "lattice",
		"environment": "development",
		"server": map[string]any{
			"address":         ":8080",
			"readtimeout":     "15s",
			"writetimeout":    "30s",
			"shutdowntimeout": "10s",
		},
		"log": map[string]any{
			"level":   "info",
			"handler": "console",
			"console": true,
			"file": map[string]any{
				"enabled":  false,
				"dir":      "logs",
				"maxsize":  "10mb",
				"maxfiles": 14,
				"maxage":   "336h",
				"compress": true,
			},
		},
		"accesslog": map[string]any{
			"format":     "",
			"healthpath": "/health",
		},
		"validation": map[string]any{
			"strict":     true,
			"sanitize":   true,
			"abortearly": false,
			"maxbody":    "1mb",
		},
	}
}

// Load builds the settings from defaults, the optional YAML file at path,
// and the process environment. An empty path skips the file layer; a
// non-empty path must exist.
func Load(path string) (*Settings, error) {
	values := defaults()

	if path != "" {
		fileValues, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(&values, fileValues, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge file settings: %w", err)
		}
	}

	envValues := decodeEnv(os.Environ())
	if err := mergo.Merge(&values, envValues, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge environment settings: %w", err)
	}

	settings, err := decode(values)
	if err != nil {
		return nil, err
	}
	if err := settings.finalize(); err != nil {
		return nil, err
	}
	return settings, nil
}

// loadFile reads one YAML settings file into a layered map.
func loadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return lowerKeys(values), nil
}

// lowerKeys normalizes map keys so file, env, and default layers merge
// case-insensitively.
func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = lowerKeys(nested)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

// decode binds the merged map onto the Settings struct, converting strings
// to durations and numbers along the way.
func decode(values map[string]any) (*Settings, error) {
	settings := &Settings{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           settings,
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("build settings decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// finalize parses humanized sizes and validates the result.
func (s *Settings) finalize() error {
	if s.Log.File.MaxSize != "" {
		n, err := humanize.ParseBytes(s.Log.File.MaxSize)
		if err != nil {
			return fmt.Errorf("log.file.maxsize: %w", err)
		}
		s.Log.File.MaxSizeBytes = int64(n)
	}
	if s.Validation.MaxBody != "" {
		n, err := humanize.ParseBytes(s.Validation.MaxBody)
		if err != nil {
			return fmt.Errorf("validation.maxbody: %w", err)
		}
		s.Validation.MaxBodyBytes = int64(n)
	}
	return s.Validate()
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	if s.Service == "" {
		return errors.New("service name cannot be empty")
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", s.Log.Level)
	}
	switch s.Log.Handler {
	case "console", "json":
	default:
		return fmt.Errorf("log.handler must be console or json, got %q", s.Log.Handler)
	}
	switch s.AccessLog.Format {
	case "", "dev", "combined", "json":
	default:
		return fmt.Errorf("accesslog.format must be dev, combined, or json, got %q", s.AccessLog.Format)
	}
	if s.Server.Address == "" {
		return errors.New("server.address cannot be empty")
	}
	return nil
}
