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

	"github.com/spf13/cast"

	"github.com/lattice-dev/lattice/middleware/requestctx"
)

type pageKeyType int

const pageKey pageKeyType = 0

// Page is the normalized pagination window attached by
// [Pipeline.Pagination].
type Page struct {
	// Limit is the page size after defaulting and clamping.
	Limit int
	// Offset is the absolute record offset. When the client paginated with
	// "page" it is derived as (page-1)*limit.
	Offset int
	// Number is the 1-based page number, derived from Offset when the
	// client paginated with "offset".
	Number int
	// Sort is the sort field after defaulting, always one of the allowed
	// set.
	Sort string
	// Order is the requested direction: asc, desc, ascending, or
	// descending. Empty when the client sent none.
	Order string
	// Search is the free-text search term, empty when absent.
	Search string
	// Filter is the free-form filter object, nil when absent.
	Filter map[string]any
}

// Descending reports whether the requested order is a descending variant.
func (p *Page) Descending() bool {
	return p.Order == "desc" || p.Order == "descending"
}

// PageFrom returns the pagination window attached by [Pipeline.Pagination],
// or nil.
func PageFrom(ctx context.Context) *Page {
	v, _ := ctx.Value(pageKey).(*Page)
	return v
}

// PaginationOption configures the pagination middleware.
type PaginationOption func(*paginationConfig)

type paginationConfig struct {
	defaultLimit int
	maxLimit     int
	sortFields   []string
	defaultSort  string
}

// WithDefaultLimit sets the page size used when the client sends none.
func WithDefaultLimit(n int) PaginationOption {
	return func(c *paginationConfig) {
		if n > 0 {
			c.defaultLimit = n
		}
	}
}

// WithMaxLimit caps the page size a client may request.
func WithMaxLimit(n int) PaginationOption {
	return func(c *paginationConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithSortFields sets the allowed "sort" values. The first entry becomes
// the default unless [WithDefaultSort] overrides it.
func WithSortFields(fields ...string) PaginationOption {
	return func(c *paginationConfig) {
		if len(fields) > 0 {
			c.sortFields = fields
		}
	}
}

// WithDefaultSort sets the sort field used when the client sends none.
func WithDefaultSort(field string) PaginationOption {
	return func(c *paginationConfig) {
		if field != "" {
			c.defaultSort = field
		}
	}
}

// orderValues are the accepted "order" directions.
var orderValues = []any{"asc", "desc", "ascending", "descending"}

// Pagination validates the standard listing query parameters ("page",
// "limit", "offset", "sort", "order", "search", "filter") and attaches the
// normalized [Page] window. "page" and "offset" are mutually exclusive;
// presence is decided on the raw query, before defaults run, so an injected
// default never triggers the conflict. The validated output, with the
// derived offset injected, is also attached for [QueryFrom].
func (p *Pipeline) Pagination(opts ...PaginationOption) func(http.Handler) http.Handler {
	cfg := &paginationConfig{
		defaultLimit: 20,
		maxLimit:     100,
		sortFields:   []string{"createdAt"},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.defaultSort == "" {
		cfg.defaultSort = cfg.sortFields[0]
	}

	sorts := make([]any, len(cfg.sortFields))
	for i, f := range cfg.sortFields {
		sorts[i] = f
	}

	descriptor := NewDescriptor(Fields{
		"page":   Int().Min(1).Default(1).Coerce(),
		"limit":  Int().Min(1).Max(float64(cfg.maxLimit)).Default(cfg.defaultLimit).Coerce(),
		"offset": Int().Min(0).Coerce(),
		"sort":   Enum(sorts...).Default(cfg.defaultSort),
		"order":  Enum(orderValues...),
		"search": String().MaxLen(100).Trim(),
		"filter": Object(nil),
	}, AllowUnknown(), StripUnknown())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.URL.Query()
			if raw.Has("page") && raw.Has("offset") {
				verr := NewError(CategoryQuery, []FieldFailure{{
					Path:    "page",
					Kind:    "exclusive",
					Message: "page and offset are mutually exclusive",
				}})
				verr.CorrelationID = requestctx.CorrelationID(r.Context())
				p.renderError(w, r, verr)
				return
			}

			input := parseQuery(raw)
			output, verr := p.validate(r, CategoryQuery, descriptor, input)
			if verr != nil {
				p.renderError(w, r, verr)
				return
			}

			page := &Page{
				Limit:  cast.ToInt(output["limit"]),
				Sort:   cast.ToString(output["sort"]),
				Order:  cast.ToString(output["order"]),
				Search: cast.ToString(output["search"]),
			}
			if filter, ok := output["filter"].(map[string]any); ok {
				page.Filter = filter
			}
			if raw.Has("offset") {
				page.Offset = cast.ToInt(output["offset"])
				page.Number = page.Offset/page.Limit + 1
			} else {
				page.Number = cast.ToInt(output["page"])
				page.Offset = (page.Number - 1) * page.Limit
			}
			output["page"] = int64(page.Number)
			output["offset"] = int64(page.Offset)

			ctx := context.WithValue(r.Context(), pageKey, page)
			ctx = context.WithValue(ctx, queryKey, output)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
