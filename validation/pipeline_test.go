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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func decodeWire(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestBodyMiddleware(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	descriptor := NewDescriptor(Fields{
		"name":  String().MinLen(2).Required(),
		"email": Email().Required(),
		"age":   Int().Min(0).Coerce(),
	})

	handler := p.Body(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := BodyFrom(r.Context())
		require.NotNil(t, body)
		assert.Equal(t, int64(30), body["age"])
		w.WriteHeader(http.StatusCreated)
	}))

	t.Run("valid body passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/users",
			strings.NewReader(`{"name":"Ada","email":"ada@example.com","age":"30"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("invalid body renders wire shape", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/users",
			strings.NewReader(`{"name":"A"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeWire(t, rec)
		assert.Equal(t, "ValidationError", body["type"])
		assert.Equal(t, float64(http.StatusBadRequest), body["statusCode"])

		details := body["details"].(map[string]any)
		assert.Equal(t, "body", details["validationType"])
		assert.Equal(t, float64(2), details["fieldCount"])

		fields := details["fields"].(map[string]any)
		require.Contains(t, fields, "email")
		require.Contains(t, fields, "name")
		assert.Equal(t, "required", fields["email"].(map[string]any)["type"])
		assert.Equal(t, "minLength", fields["name"].(map[string]any)["type"])
	})

	t.Run("malformed JSON rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/users",
			strings.NewReader(`{"name":`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		fields := details["fields"].(map[string]any)
		assert.Equal(t, "body.malformed", fields[""].(map[string]any)["type"])
	})
}

func TestBodyEmptyAllOptional(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	descriptor := NewDescriptor(Fields{
		"note": String(),
	})

	handler := p.Body(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := BodyFrom(r.Context())
		require.NotNil(t, body)
		assert.Empty(t, body)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/notes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryMiddleware(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	descriptor := NewDescriptor(Fields{
		"limit": Int().Min(1).Max(100).Default(20).Coerce(),
		"filter": Object(Fields{
			"status": String(),
		}),
	})

	handler := p.Query(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := QueryFrom(r.Context())
		require.NotNil(t, q)
		assert.Equal(t, int64(5), q["limit"])
		filter := q["filter"].(map[string]any)
		assert.Equal(t, "active", filter["status"])
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/users?limit=5&filter[status]=active", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPathMiddleware(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)

	t.Run("uuid accepted", func(t *testing.T) {
		t.Parallel()

		handler := p.IDParam("id", IDUUID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "0d2f6fd8-f371-4a63-9177-3ae207d4b3e8", PathFrom(r.Context())["id"])
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/users/x", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "0d2f6fd8-f371-4a63-9177-3ae207d4b3e8"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("numeric id coerced", func(t *testing.T) {
		t.Parallel()

		handler := p.IDParam("id", IDNumeric)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, int64(42), PathFrom(r.Context())["id"])
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "42"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad uuid rejected", func(t *testing.T) {
		t.Parallel()

		handler := p.IDParam("id", IDUUID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/users/nope", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "nope"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		assert.Equal(t, "path", details["validationType"])
	})
}

func TestComposeShortCircuit(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)

	target := Target{
		Path:  NewDescriptor(Fields{"id": IDRule(IDUUID)}),
		Query: NewDescriptor(Fields{"limit": Int().Coerce()}),
		Body:  NewDescriptor(Fields{"name": String().Required()}),
	}

	handler := p.Compose(target)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// Path fails first; the unreadable body must never be touched.
	req := httptest.NewRequest(http.MethodPut, "/users/nope?limit=zzz",
		strings.NewReader(`{not json`))
	req = mux.SetURLVars(req, map[string]string{"id": "nope"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decodeWire(t, rec)["details"].(map[string]any)
	assert.Equal(t, "path", details["validationType"])
}

func TestComposeAllPartsAttached(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)

	target := Target{
		Path:  NewDescriptor(Fields{"id": IDRule(IDNumeric)}),
		Query: NewDescriptor(Fields{"verbose": Bool().Default(false).Coerce()}),
		Body:  NewDescriptor(Fields{"name": String().Required()}),
	}

	handler := p.Compose(target)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(7), PathFrom(r.Context())["id"])
		assert.Equal(t, false, QueryFrom(r.Context())["verbose"])
		assert.Equal(t, "Ada", BodyFrom(r.Context())["name"])
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPut, "/users/7", strings.NewReader(`{"name":"Ada"}`))
	req = mux.SetURLVars(req, map[string]string{"id": "7"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCustomPredicates(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	descriptor := NewDescriptor(Fields{"name": String().Required()})

	t.Run("predicate error renders custom category", func(t *testing.T) {
		t.Parallel()

		reject := func(ctx context.Context, value map[string]any) error {
			return errors.New("name already taken")
		}
		handler := p.Body(descriptor)(p.Custom(reject)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		assert.Equal(t, "custom", details["validationType"])
	})

	t.Run("predicate panic becomes 500", func(t *testing.T) {
		t.Parallel()

		boom := func(ctx context.Context, value map[string]any) error {
			panic("boom")
		}
		handler := p.Body(descriptor)(p.Custom(boom)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("predicate status carrier respected", func(t *testing.T) {
		t.Parallel()

		conflict := func(ctx context.Context, value map[string]any) error {
			return statusError{status: http.StatusConflict, msg: "duplicate"}
		}
		handler := p.Body(descriptor)(p.Custom(conflict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

type statusError struct {
	status int
	msg    string
}

func (e statusError) Error() string   { return e.msg }
func (e statusError) HTTPStatus() int { return e.status }

func TestPagination(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)

	newHandler := func(check func(t *testing.T, page *Page)) http.Handler {
		return p.Pagination()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			check(t, PageFrom(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))
	}

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			require.NotNil(t, page)
			assert.Equal(t, 20, page.Limit)
			assert.Equal(t, 0, page.Offset)
			assert.Equal(t, 1, page.Number)
			assert.Equal(t, "createdAt", page.Sort, "default sort field")
			assert.Empty(t, page.Order)
			assert.Empty(t, page.Search)
			assert.Nil(t, page.Filter)
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("page derives offset", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			assert.Equal(t, 10, page.Limit)
			assert.Equal(t, 20, page.Offset)
			assert.Equal(t, 3, page.Number)
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?page=3&limit=10", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("offset derives page number", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			assert.Equal(t, 20, page.Limit)
			assert.Equal(t, 40, page.Offset)
			assert.Equal(t, 3, page.Number)
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?offset=40", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("page and offset mutually exclusive", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			t.Fatal("handler must not run")
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?page=2&offset=10", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		fields := details["fields"].(map[string]any)
		assert.Equal(t, "exclusive", fields["page"].(map[string]any)["type"])
	})

	t.Run("limit above max rejected", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			t.Fatal("handler must not run")
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?limit=1000", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sort and order carried into window", func(t *testing.T) {
		t.Parallel()

		handler := p.Pagination(WithSortFields("createdAt", "name"))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				page := PageFrom(r.Context())
				assert.Equal(t, 20, page.Limit)
				assert.Equal(t, 0, page.Offset)
				assert.Equal(t, 1, page.Number)
				assert.Equal(t, "name", page.Sort)
				assert.Equal(t, "desc", page.Order)
				assert.True(t, page.Descending())

				q := QueryFrom(r.Context())
				require.NotNil(t, q)
				assert.Equal(t, int64(0), q["offset"], "derived offset injected into output")
				assert.Equal(t, int64(1), q["page"])
				assert.Equal(t, "name", q["sort"])
				w.WriteHeader(http.StatusOK)
			}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?sort=name&order=desc", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("sort outside allowed set rejected", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			t.Fatal("handler must not run")
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?sort=height", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		fields := details["fields"].(map[string]any)
		assert.Equal(t, "enum", fields["sort"].(map[string]any)["type"])
	})

	t.Run("invalid order rejected", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			t.Fatal("handler must not run")
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?order=sideways", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		fields := details["fields"].(map[string]any)
		assert.Equal(t, "enum", fields["order"].(map[string]any)["type"])
	})

	t.Run("search trimmed and capped", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			assert.Equal(t, "ada", page.Search)
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?search=%20ada%20", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		long := strings.Repeat("x", 101)
		rec = httptest.NewRecorder()
		rejecting := newHandler(func(t *testing.T, page *Page) {
			t.Fatal("handler must not run")
		})
		rejecting.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?search="+long, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("filter object attached", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(func(t *testing.T, page *Page) {
			require.NotNil(t, page.Filter)
			assert.Equal(t, "active", page.Filter["status"])
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?filter[status]=active", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestIDParamPredicates(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)

	t.Run("predicate sees validated value", func(t *testing.T) {
		t.Parallel()

		exists := func(ctx context.Context, value map[string]any) error {
			assert.Equal(t, int64(7), value["id"], "predicate runs after coercion")
			return nil
		}
		handler := p.IDParam("id", IDNumeric, exists)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/users/7", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("predicate rejection renders custom category", func(t *testing.T) {
		t.Parallel()

		gone := func(ctx context.Context, value map[string]any) error {
			return statusError{status: http.StatusNotFound, msg: "no such user"}
		}
		handler := p.IDParam("id", IDNumeric, gone)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/users/7", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "7"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		assert.Equal(t, "custom", details["validationType"])
	})

	t.Run("predicate skipped when shape check fails", func(t *testing.T) {
		t.Parallel()

		check := func(ctx context.Context, value map[string]any) error {
			t.Error("predicate must not run")
			return nil
		}
		handler := p.IDParam("id", IDUUID, check)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/users/nope", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "nope"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStrictPolicy(t *testing.T) {
	t.Parallel()

	descriptor := NewDescriptor(Fields{"name": String().Required()})
	payload := `{"name":"Ada","extra":"kept"}`

	t.Run("strict rejects undeclared keys", func(t *testing.T) {
		t.Parallel()

		p := newTestPipeline(t)
		handler := p.Body(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		details := decodeWire(t, rec)["details"].(map[string]any)
		fields := details["fields"].(map[string]any)
		assert.Equal(t, "unknown", fields["extra"].(map[string]any)["type"])
	})

	t.Run("non-strict accepts undeclared keys", func(t *testing.T) {
		t.Parallel()

		p := newTestPipeline(t, WithStrict(false))
		handler := p.Body(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := BodyFrom(r.Context())
			assert.Equal(t, "kept", body["extra"])
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("descriptor opt-in unaffected by strictness", func(t *testing.T) {
		t.Parallel()

		p := newTestPipeline(t)
		open := NewDescriptor(Fields{"name": String().Required()}, AllowUnknown(), StripUnknown())
		handler := p.Body(open)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := BodyFrom(r.Context())
			assert.NotContains(t, body, "extra")
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCacheAndStats(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, WithCacheJanitor(false))
	descriptor := NewDescriptor(Fields{"name": String().Required()})

	handler := p.Body(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.CacheMisses, "first request compiles")
	assert.Equal(t, int64(2), stats.CacheHits, "later requests reuse")
	assert.Equal(t, int64(3), stats.Attempts)
	assert.Equal(t, int64(0), stats.Failures)
	assert.Equal(t, 1, stats.CacheSize)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)

	// An equivalent descriptor built elsewhere shares the compiled schema.
	twin := NewDescriptor(Fields{"name": String().Required()})
	handler2 := p.Body(twin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada"}`))
	rec := httptest.NewRecorder()
	handler2.ServeHTTP(rec, req)

	assert.Equal(t, 1, p.CacheSize(), "canonical key deduplicates descriptors")
	assert.Equal(t, int64(3), p.Stats().CacheHits)

	p.ClearCache()
	assert.Equal(t, 0, p.CacheSize())
}

func TestVerboseErrorsDebugBlock(t *testing.T) {
	t.Parallel()

	descriptor := NewDescriptor(Fields{"name": String().Required()})

	t.Run("development includes debug", func(t *testing.T) {
		t.Parallel()

		p := newTestPipeline(t, WithEnvironment("development"))
		handler := p.Body(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		body := decodeWire(t, rec)
		require.Contains(t, body, "debug")
		dbg := body["debug"].(map[string]any)
		assert.Contains(t, dbg["originalError"], "name")
		assert.NotEmpty(t, dbg["stack"])
	})

	t.Run("production omits debug", func(t *testing.T) {
		t.Parallel()

		p := newTestPipeline(t, WithEnvironment("production"))
		handler := p.Body(descriptor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.NotContains(t, decodeWire(t, rec), "debug")
	})
}
