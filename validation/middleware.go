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
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lattice-dev/lattice/middleware/requestctx"
)

// contextKey is the private type for values this package stores on the
// request context.
type contextKey int

const (
	bodyKey contextKey = iota
	queryKey
	pathKey
)

// BodyFrom returns the validated body attached by [Pipeline.Body], or nil.
func BodyFrom(ctx context.Context) map[string]any {
	v, _ := ctx.Value(bodyKey).(map[string]any)
	return v
}

// QueryFrom returns the validated query attached by [Pipeline.Query], or nil.
func QueryFrom(ctx context.Context) map[string]any {
	v, _ := ctx.Value(queryKey).(map[string]any)
	return v
}

// PathFrom returns the validated path parameters attached by
// [Pipeline.Path], or nil.
func PathFrom(ctx context.Context) map[string]any {
	v, _ := ctx.Value(pathKey).(map[string]any)
	return v
}

// Body validates the JSON request body against the descriptor. The
// validated (coerced, defaulted, sanitized) structure replaces the raw body
// for downstream handlers via [BodyFrom]. An empty body validates as an
// empty object, so descriptors with only optional fields accept it.
func (p *Pipeline) Body(d *Descriptor) func(http.Handler) http.Handler {
	d = p.effective(d)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			input, err := decodeBody(r, p.cfg.maxBodyBytes)
			if err != nil {
				verr := NewError(CategoryBody, []FieldFailure{{
					Kind:    "body.malformed",
					Message: err.Error(),
				}})
				verr.CorrelationID = requestctx.CorrelationID(r.Context())
				p.renderError(w, r, verr)
				return
			}

			output, verr := p.validate(r, CategoryBody, d, input)
			if verr != nil {
				p.renderError(w, r, verr)
				return
			}

			ctx := context.WithValue(r.Context(), bodyKey, output)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Query validates the URL query string against the descriptor. Bracketed
// keys nest: "filter[status]=active" becomes {"filter": {"status":
// "active"}}. Repeated keys become arrays.
func (p *Pipeline) Query(d *Descriptor) func(http.Handler) http.Handler {
	d = p.effective(d)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			input := parseQuery(r.URL.Query())

			output, verr := p.validate(r, CategoryQuery, d, input)
			if verr != nil {
				p.renderError(w, r, verr)
				return
			}

			ctx := context.WithValue(r.Context(), queryKey, output)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Path validates the route's path parameters against the descriptor.
// Parameters are read from the router's match (gorilla/mux vars).
func (p *Pipeline) Path(d *Descriptor) func(http.Handler) http.Handler {
	d = p.effective(d)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)
			input := make(map[string]any, len(vars))
			for k, v := range vars {
				input[k] = v
			}

			output, verr := p.validate(r, CategoryPath, d, input)
			if verr != nil {
				p.renderError(w, r, verr)
				return
			}

			ctx := context.WithValue(r.Context(), pathKey, output)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Custom runs predicates against the validated body ([BodyFrom]); attach it
// after [Pipeline.Body] in the chain.
func (p *Pipeline) Custom(checks ...Predicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verr := p.runPredicates(r, BodyFrom(r.Context()), checks); verr != nil {
				p.renderError(w, r, verr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Target names the request parts one route validates. Nil descriptors skip
// that part.
type Target struct {
	Path  *Descriptor
	Query *Descriptor
	Body  *Descriptor
	// Checks run after all parts validated, against the validated body.
	Checks []Predicate
}

// Compose validates several request parts with one middleware, in path,
// query, body order. The first failing part short-circuits: later parts are
// not validated and a single-category error is rendered.
func (p *Pipeline) Compose(t Target) func(http.Handler) http.Handler {
	t.Path = p.effective(t.Path)
	t.Query = p.effective(t.Query)
	t.Body = p.effective(t.Body)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if t.Path != nil {
				vars := mux.Vars(r)
				input := make(map[string]any, len(vars))
				for k, v := range vars {
					input[k] = v
				}
				output, verr := p.validate(r, CategoryPath, t.Path, input)
				if verr != nil {
					p.renderError(w, r, verr)
					return
				}
				ctx = context.WithValue(ctx, pathKey, output)
			}

			if t.Query != nil {
				input := parseQuery(r.URL.Query())
				output, verr := p.validate(r.WithContext(ctx), CategoryQuery, t.Query, input)
				if verr != nil {
					p.renderError(w, r, verr)
					return
				}
				ctx = context.WithValue(ctx, queryKey, output)
			}

			if t.Body != nil {
				input, err := decodeBody(r, p.cfg.maxBodyBytes)
				if err != nil {
					verr := NewError(CategoryBody, []FieldFailure{{
						Kind:    "body.malformed",
						Message: err.Error(),
					}})
					verr.CorrelationID = requestctx.CorrelationID(r.Context())
					p.renderError(w, r, verr)
					return
				}
				output, verr := p.validate(r.WithContext(ctx), CategoryBody, t.Body, input)
				if verr != nil {
					p.renderError(w, r, verr)
					return
				}
				ctx = context.WithValue(ctx, bodyKey, output)
			}

			if len(t.Checks) > 0 {
				r2 := r.WithContext(ctx)
				if verr := p.runPredicates(r2, BodyFrom(ctx), t.Checks); verr != nil {
					p.renderError(w, r2, verr)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// decodeBody reads and decodes the JSON request body. An absent or empty
// body decodes to an empty object. Trailing garbage after the JSON value is
// rejected.
func decodeBody(r *http.Request, maxBytes int64) (map[string]any, error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes))
	dec.UseNumber()

	var input map[string]any
	if err := dec.Decode(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, errors.New("request body is not a JSON object")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("request body has trailing content")
	}
	if input == nil {
		input = map[string]any{}
	}
	return jsonNumbers(input), nil
}

// jsonNumbers converts json.Number values to native numerics so coercion
// and schema validation see concrete types.
func jsonNumbers(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = jsonNumberValue(v)
	}
	return m
}

func jsonNumberValue(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	case map[string]any:
		return jsonNumbers(value)
	case []any:
		for i, elem := range value {
			value[i] = jsonNumberValue(elem)
		}
		return value
	default:
		return v
	}
}

// parseQuery converts url.Values into a nested structure. "filter[status]"
// style keys nest one level; repeated keys collect into arrays; everything
// stays a string until coercion runs.
func parseQuery(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for key, vals := range values {
		var value any
		switch len(vals) {
		case 0:
			value = ""
		case 1:
			value = vals[0]
		default:
			arr := make([]any, len(vals))
			for i, v := range vals {
				arr[i] = v
			}
			value = arr
		}

		if name, sub, ok := bracketKey(key); ok {
			nested, _ := out[name].(map[string]any)
			if nested == nil {
				nested = map[string]any{}
			}
			nested[sub] = value
			out[name] = nested
			continue
		}
		out[key] = value
	}
	return out
}

// bracketKey splits "filter[status]" into ("filter", "status", true).
func bracketKey(key string) (name, sub string, ok bool) {
	open := strings.Index(key, "[")
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	name = key[:open]
	sub = key[open+1 : len(key)-1]
	if sub == "" {
		return "", "", false
	}
	return name, sub, true
}
