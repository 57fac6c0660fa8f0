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

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lattice", settings.Service)
	assert.Equal(t, "development", settings.Environment)
	assert.Equal(t, ":8080", settings.Server.Address)
	assert.Equal(t, 10*time.Second, settings.Server.ShutdownTimeout)
	assert.Equal(t, "info", settings.Log.Level)
	assert.True(t, settings.Log.Console)
	assert.False(t, settings.Log.File.Enabled)
	assert.Equal(t, int64(10_000_000), settings.Log.File.MaxSizeBytes)
	assert.Equal(t, int64(1_000_000), settings.Validation.MaxBodyBytes)
	assert.True(t, settings.Validation.Strict)
	assert.Nil(t, settings.Validation.VerboseErrors, "unset defers to environment default")
	assert.Nil(t, settings.AccessLog.SkipHealth, "unset defers to environment default")
}

func TestLoadFileLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service: orders
environment: production
log:
  level: warn
  handler: json
  file:
    enabled: true
    dir: /var/log/orders
    maxsize: 50mb
server:
  address: ":9090"
`), 0o600))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "orders", settings.Service)
	assert.Equal(t, "production", settings.Environment)
	assert.Equal(t, "warn", settings.Log.Level)
	assert.Equal(t, "json", settings.Log.Handler)
	assert.True(t, settings.Log.File.Enabled)
	assert.Equal(t, "/var/log/orders", settings.Log.File.Dir)
	assert.Equal(t, int64(50_000_000), settings.Log.File.MaxSizeBytes)
	assert.Equal(t, ":9090", settings.Server.Address)
	// Untouched settings keep their defaults.
	assert.Equal(t, 14, settings.Log.File.MaxFiles)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	t.Setenv("LATTICE_LOG_LEVEL", "error")
	t.Setenv("LATTICE_SERVER_ADDRESS", ":7070")
	t.Setenv("LATTICE_LOG_FILE_MAXFILES", "3")
	t.Setenv("LATTICE_VALIDATION_VERBOSEERRORS", "true")
	t.Setenv("LATTICE_ACCESSLOG_SKIPHEALTH", "false")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "error", settings.Log.Level, "env beats file")
	assert.Equal(t, ":7070", settings.Server.Address)
	assert.Equal(t, 3, settings.Log.File.MaxFiles, "weak typing converts strings")

	require.NotNil(t, settings.Validation.VerboseErrors)
	assert.True(t, *settings.Validation.VerboseErrors)
	require.NotNil(t, settings.AccessLog.SkipHealth)
	assert.False(t, *settings.AccessLog.SkipHealth)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad level", "LATTICE_LOG_LEVEL", "loud"},
		{"bad handler", "LATTICE_LOG_HANDLER", "xml"},
		{"bad size", "LATTICE_LOG_FILE_MAXSIZE", "ten megs"},
		{"bad access format", "LATTICE_ACCESSLOG_FORMAT", "apache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestDecodeEnv(t *testing.T) {
	t.Parallel()

	values := decodeEnv([]string{
		"LATTICE_SERVICE=billing",
		"LATTICE_LOG_FILE_DIR=/tmp/logs",
		"PATH=/usr/bin",
		"LATTICE_=ignored",
	})

	assert.Equal(t, "billing", values["service"])
	log := values["log"].(map[string]any)
	file := log["file"].(map[string]any)
	assert.Equal(t, "/tmp/logs", file["dir"])
	assert.NotContains(t, values, "path")
}
