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
	"net/http"

	"github.com/gorilla/mux"
)

// IDKind selects the identifier shape accepted by [Pipeline.IDParam].
type IDKind string

// Identifier kinds.
const (
	// IDUUID accepts RFC 4122 UUIDs.
	IDUUID IDKind = "uuid"
	// IDNumeric accepts positive integers, coerced from the path string.
	IDNumeric IDKind = "numeric"
	// IDHex24 accepts 24-character hexadecimal identifiers (ObjectId style).
	IDHex24 IDKind = "hex24"
	// IDAlphanum accepts 1-50 alphanumeric characters.
	IDAlphanum IDKind = "alphanum"
)

// IDRule returns the field rule for one identifier kind.
func IDRule(kind IDKind) *Rule {
	switch kind {
	case IDNumeric:
		return Int().Min(1).Coerce().Required()
	case IDHex24:
		return String().Pattern(`^[0-9a-fA-F]{24}$`).Required()
	case IDAlphanum:
		return String().Pattern(`^[A-Za-z0-9]{1,50}$`).Required()
	default:
		return UUID().Required()
	}
}

// IDParam validates a single path parameter as an identifier. It is the
// common case of [Pipeline.Path] packaged as one call:
//
//	r.Handle("/users/{id}", pipeline.IDParam("id", validation.IDUUID)(handler))
//
// Optional predicates run against the validated path map after the shape
// check passes, for checks the rule cannot express (existence, tenancy).
func (p *Pipeline) IDParam(name string, kind IDKind, checks ...Predicate) func(http.Handler) http.Handler {
	d := p.effective(NewDescriptor(Fields{name: IDRule(kind)}))
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
			if verr := p.runPredicates(r, output, checks); verr != nil {
				p.renderError(w, r, verr)
				return
			}

			ctx := context.WithValue(r.Context(), pathKey, output)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
