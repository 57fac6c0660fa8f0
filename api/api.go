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

// Package api wires the middleware spine onto an HTTP router: request
// context, access logging, panic recovery, metrics, and per-route
// validation, with a small user CRUD and discovery surface on top.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lattice-dev/lattice/config"
	"github.com/lattice-dev/lattice/logging"
	"github.com/lattice-dev/lattice/middleware/accesslog"
	"github.com/lattice-dev/lattice/middleware/recovery"
	"github.com/lattice-dev/lattice/middleware/requestctx"
	"github.com/lattice-dev/lattice/validation"
)

// API is the assembled HTTP surface.
type API struct {
	router   *mux.Router
	logger   *logging.Config
	pipeline *validation.Pipeline
	users    *userStore
	started  time.Time
	settings *config.Settings
}

// New assembles the router from the loaded settings and logger.
func New(settings *config.Settings, logger *logging.Config) (*API, error) {
	registry := prometheus.NewRegistry()

	pipelineOpts := []validation.Option{
		validation.WithLogger(logger),
		validation.WithEnvironment(settings.Environment),
		validation.WithStrict(settings.Validation.Strict),
		validation.WithSanitize(settings.Validation.Sanitize),
		validation.WithAbortEarly(settings.Validation.AbortEarly),
		validation.WithMaxBodyBytes(settings.Validation.MaxBodyBytes),
		validation.WithMetricsRegisterer(registry),
	}
	if settings.Validation.VerboseErrors != nil {
		pipelineOpts = append(pipelineOpts, validation.WithVerboseErrors(*settings.Validation.VerboseErrors))
	}
	pipeline, err := validation.New(pipelineOpts...)
	if err != nil {
		return nil, err
	}

	httpMetrics, err := newHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}

	a := &API{
		router:   mux.NewRouter(),
		logger:   logger,
		pipeline: pipeline,
		users:    newUserStore(),
		started:  time.Now(),
		settings: settings,
	}

	accessOpts := []accesslog.Option{
		accesslog.WithLogger(logger),
		accesslog.WithEnvironment(settings.Environment),
		accesslog.WithHealthPath(settings.AccessLog.HealthPath),
	}
	if settings.AccessLog.SkipHealth != nil {
		accessOpts = append(accessOpts, accesslog.WithSkipHealth(*settings.AccessLog.SkipHealth))
	}
	if format, ok := accessFormat(settings.AccessLog.Format); ok {
		accessOpts = append(accessOpts, accesslog.WithFormat(format))
	}

	// Outermost first: correlation id, metrics, access record, recovery.
	// Recovery sits inside the access logger so a recovered panic still
	// produces an access record with status 500.
	a.router.Use(
		requestctx.New(),
		httpMetrics.middleware,
		accesslog.New(accessOpts...),
		recovery.New(recovery.WithLogger(logger)),
	)

	a.routes(registry)
	return a, nil
}

// accessFormat maps the settings value onto an access-log format.
func accessFormat(s string) (accesslog.Format, bool) {
	switch s {
	case "dev":
		return accesslog.FormatDev, true
	case "combined":
		return accesslog.FormatCombined, true
	case "json":
		return accesslog.FormatJSON, true
	default:
		return "", false
	}
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Close releases background resources.
func (a *API) Close() {
	a.pipeline.Close()
}

// endpoint is one row of the discovery document.
type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var discovery = []endpoint{
	{http.MethodGet, "/api", "this document"},
	{http.MethodGet, "/api/users", "list users (page, limit, offset, sort, order, search)"},
	{http.MethodPost, "/api/users", "create a user"},
	{http.MethodGet, "/api/users/{id}", "fetch a user"},
	{http.MethodPut, "/api/users/{id}", "update a user"},
	{http.MethodDelete, "/api/users/{id}", "delete a user"},
	{http.MethodGet, "/health", "liveness probe"},
	{http.MethodGet, "/metrics", "Prometheus metrics"},
}

// routes registers every endpoint with its validation chain.
func (a *API) routes(registry *prometheus.Registry) {
	r := a.router

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)
	r.HandleFunc(a.settings.AccessLog.HealthPath, a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api", a.handleDiscovery).Methods(http.MethodGet)

	users := r.PathPrefix("/api/users").Subrouter()

	users.Handle("", a.pipeline.Pagination(
		validation.WithSortFields("createdAt", "name", "email"),
	)(http.HandlerFunc(a.handleListUsers))).Methods(http.MethodGet)

	users.Handle("", a.pipeline.Body(createUserDescriptor())(
		http.HandlerFunc(a.handleCreateUser))).Methods(http.MethodPost)

	users.Handle("/{id}", a.pipeline.IDParam("id", validation.IDUUID)(
		http.HandlerFunc(a.handleGetUser))).Methods(http.MethodGet)

	users.Handle("/{id}", a.pipeline.Compose(validation.Target{
		Path: validation.NewDescriptor(validation.Fields{
			"id": validation.IDRule(validation.IDUUID),
		}),
		Body: updateUserDescriptor(),
	})(http.HandlerFunc(a.handleUpdateUser))).Methods(http.MethodPut)

	users.Handle("/{id}", a.pipeline.IDParam("id", validation.IDUUID)(
		http.HandlerFunc(a.handleDeleteUser))).Methods(http.MethodDelete)
}

// handleHealth answers the liveness probe.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"service":     a.settings.Service,
		"environment": a.settings.Environment,
		"uptime":      time.Since(a.started).String(),
	})
}

// handleDiscovery lists the API surface.
func (a *API) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"service":   a.settings.Service,
		"endpoints": discovery,
	})
}
