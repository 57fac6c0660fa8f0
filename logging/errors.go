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

package logging

import "errors"

// Sentinel errors for the logging package. Check with [errors.Is].
var (
	// ErrNilOutput indicates a nil output writer was provided to [WithOutput].
	ErrNilOutput = errors.New("output writer is nil")

	// ErrNoSinks indicates the configuration produced no active sinks.
	// At least one of console or file logging must be enabled.
	ErrNoSinks = errors.New("no log sinks configured")

	// ErrInvalidHandler indicates an unsupported handler type was specified.
	// Valid types: JSONHandler, ConsoleHandler.
	ErrInvalidHandler = errors.New("invalid handler type")

	// ErrLoggerShutdown indicates the logger has been shut down via [Config.Shutdown].
	ErrLoggerShutdown = errors.New("logger is shut down")

	// ErrInvalidPattern indicates a rotating-file pattern without a %DATE%
	// placeholder was provided.
	ErrInvalidPattern = errors.New("file pattern must contain %DATE%")
)
