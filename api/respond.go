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

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lattice-dev/lattice/middleware/requestctx"
)

// respond writes v as JSON with the given status. A nil v writes only the
// status line.
func respond(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes an error body in the same envelope validation errors
// use, so clients parse one shape.
func respondError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	respond(w, status, map[string]any{
		"id":         requestctx.CorrelationID(r.Context()),
		"type":       errType,
		"message":    message,
		"statusCode": status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}
