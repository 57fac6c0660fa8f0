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

// Command lattice runs the HTTP application: settings are loaded from
// defaults, an optional YAML file (-config), and LATTICE_-prefixed
// environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lattice-dev/lattice/api"
	"github.com/lattice-dev/lattice/config"
	"github.com/lattice-dev/lattice/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lattice:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML settings file")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logOpts := []logging.Option{
		logging.WithServiceName(settings.Service),
		logging.WithEnvironment(settings.Environment),
		logging.WithLevel(logging.ParseLevel(settings.Log.Level)),
		logging.WithConsole(settings.Log.Console),
	}
	if settings.Log.Handler == "json" {
		logOpts = append(logOpts, logging.WithJSONHandler())
	}
	if settings.Log.File.Enabled {
		logOpts = append(logOpts, logging.WithFileSinks(logging.FileOptions{
			Directory: settings.Log.File.Dir,
			MaxBytes:  settings.Log.File.MaxSizeBytes,
			MaxFiles:  settings.Log.File.MaxFiles,
			MaxAge:    settings.Log.File.MaxAge,
			Compress:  settings.Log.File.Compress,
			Symlink:   true,
		}))
	}

	logger, err := logging.New(logOpts...)
	if err != nil {
		return err
	}
	defer logger.Shutdown(context.Background())

	app, err := api.New(settings, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:         settings.Server.Address,
		Handler:      app,
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"address", settings.Server.Address,
			"environment", settings.Environment,
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
		return err
	}
	logger.Info("server stopped")
	return <-errCh
}
