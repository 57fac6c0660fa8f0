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

package validation

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// ErrValidation is the sentinel all pipeline validation errors wrap; callers
// test with errors.Is.
var ErrValidation = errors.New("validation failed")

// Category names the request part that failed validation.
type Category string

// Validation categories.
const (
	CategoryBody      Category = "body"
	CategoryQuery     Category = "query"
	CategoryPath      Category = "path"
	CategoryComposite Category = "composite"
	CategoryCustom    Category = "custom"
)

// FieldFailure is one field-level validation failure.
type FieldFailure struct {
	// Path is the dotted location of the field ("address.city", "tags.0").
	Path string
	// Kind is the stable failure kind ("required", "type", "pattern", ...).
	Kind string
	// Message is the human-readable explanation.
	Message string
	// Value is the offending value when scalar, nil otherwise.
	Value any
}

// Error aggregates the field failures of one request part. It implements
// error and wraps [ErrValidation].
type Error struct {
	Category Category
	Failures []FieldFailure
	// CorrelationID ties the error to the request's access and error logs.
	CorrelationID string
	// status overrides the default 400 for custom predicates.
	status int
}

// NewError builds a validation error for one category.
func NewError(category Category, failures []FieldFailure) *Error {
	return &Error{Category: category, Failures: failures}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s validation failed", e.Category)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Path == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Path+" "+f.Message)
	}
	return fmt.Sprintf("%s validation failed: %s", e.Category, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrValidation) succeed.
func (e *Error) Unwrap() error { return ErrValidation }

// HTTPStatus returns the status code the error renders with.
func (e *Error) HTTPStatus() int {
	if e.status != 0 {
		return e.status
	}
	return http.StatusBadRequest
}

// statusCarrier lets custom predicate errors choose their own status code.
type statusCarrier interface {
	HTTPStatus() int
}

// debugInfo is attached to rendered errors outside production.
type debugInfo struct {
	OriginalError string `json:"originalError"`
	Stack         string `json:"stack"`
}

// wireBody renders the error in the stable JSON shape clients parse.
func (e *Error) wireBody(verbose bool) map[string]any {
	fields := make(map[string]any, len(e.Failures))
	for _, f := range e.Failures {
		entry := map[string]any{
			"message": f.Message,
			"type":    f.Kind,
		}
		if f.Value != nil {
			entry["value"] = f.Value
		}
		fields[f.Path] = entry
	}

	body := map[string]any{
		"id":         e.CorrelationID,
		"type":       "ValidationError",
		"message":    "Validation failed",
		"statusCode": e.HTTPStatus(),
		"details": map[string]any{
			"validationType": string(e.Category),
			"fieldCount":     len(e.Failures),
			"fields":         fields,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if verbose {
		body["debug"] = debugInfo{
			OriginalError: e.Error(),
			Stack:         string(debug.Stack()),
		}
	}
	return body
}
